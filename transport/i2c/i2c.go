// go-fram
// Copyright (c) 2025 The go-fram Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-fram.
//
// go-fram is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-fram is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-fram; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package i2c runs FRAM command links on a periph.io I2C bus
package i2c

import (
	"context"
	"errors"
	"fmt"

	fram "github.com/jakubarm/go-fram"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// Max clock frequency supported by the chip in fast mode (400 kHz).
const maxClockFreq = 400 * physic.KiloHertz

// Transport implements the fram.Bus interface on top of a periph.io bus
type Transport struct {
	bus     i2c.Bus
	closer  i2c.BusCloser
	busName string
}

// New initializes the periph host drivers and opens the named bus, e.g.
// "/dev/i2c-1", "1" or "" for the first bus found
func New(busName string) (*Transport, error) {
	// Initialize host
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", busName, err)
	}

	_ = bus.SetSpeed(maxClockFreq) // Ignore error, continue with default speed

	return &Transport{
		bus:     bus,
		closer:  bus,
		busName: busName,
	}, nil
}

// NewFromBus wraps a bus that is already open. The caller keeps ownership
// of the bus; Close does not close it.
func NewFromBus(bus i2c.Bus, name string) *Transport {
	return &Transport{bus: bus, busName: name}
}

// Exec runs a command link as a single Tx: the first written byte is the
// device-address byte, later writes are sent as the write phase and reads
// are collected in the read phase after a repeated start.
func (t *Transport) Exec(ctx context.Context, cmd *fram.Cmd) error {
	// Check if context is already cancelled
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	addr, w, reads, err := splitCmd(cmd)
	if err != nil {
		return fmt.Errorf("invalid command link for %s: %w", t.busName, err)
	}

	var r []byte
	if len(reads) > 0 {
		r = make([]byte, len(reads))
	}
	if err := t.bus.Tx(addr, w, r); err != nil {
		return fmt.Errorf("I2C transaction to 0x%02X on %s failed: %w", addr, t.busName, err)
	}

	for i, dst := range reads {
		*dst = r[i]
	}
	return nil
}

// String returns the bus name
func (t *Transport) String() string {
	return t.busName
}

// Close closes the bus if this transport opened it
func (t *Transport) Close() error {
	if t.closer == nil {
		return nil
	}
	if err := t.closer.Close(); err != nil {
		return fmt.Errorf("failed to close I2C bus %s: %w", t.busName, err)
	}
	return nil
}

// splitCmd converts a command link to the address, write and read phases
// of a periph Tx
func splitCmd(cmd *fram.Cmd) (addr uint16, w []byte, reads []*byte, err error) {
	if err := cmd.Validate(); err != nil {
		return 0, nil, nil, err
	}

	ops := cmd.Ops()
	addr = uint16(ops[1].Data >> 1)

	for _, op := range ops[2 : len(ops)-1] {
		switch op.Code {
		case fram.OpWrite:
			if len(reads) > 0 {
				return 0, nil, nil, errors.New("write after read is not supported")
			}
			w = append(w, op.Data)
		case fram.OpRead:
			reads = append(reads, op.Dst)
		case fram.OpStart, fram.OpStop:
			return 0, nil, nil, errors.New("nested start/stop is not supported")
		}
	}
	return addr, w, reads, nil
}

// Ensure Transport implements fram.Bus
var _ fram.Bus = (*Transport)(nil)
