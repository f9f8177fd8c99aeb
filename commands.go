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

package fram

import (
	"errors"
	"fmt"
	"strings"
)

// R/W bit of the device-address byte
const (
	rwWrite byte = 0x00
	rwRead  byte = 0x01
)

// OpCode identifies a single step of a command link
type OpCode uint8

const (
	// OpStart issues a start condition.
	OpStart OpCode = iota
	// OpWrite writes one byte.
	OpWrite
	// OpRead reads one byte and answers with ACK or NACK.
	OpRead
	// OpStop issues a stop condition.
	OpStop
)

// Op is one step of a command link
type Op struct {
	// Dst receives the byte of an OpRead.
	Dst *byte
	// Code is the kind of step.
	Code OpCode
	// Data is the byte sent by an OpWrite.
	Data byte
	// CheckAck asks the master to verify the slave ACKed an OpWrite.
	CheckAck bool
	// Ack makes the master ACK an OpRead; false terminates the burst with NACK.
	Ack bool
}

// Cmd is a command link: an ordered list of ops a Bus executes as one
// I2C transaction. Builder methods return the receiver so links can be
// assembled in a single expression.
type Cmd struct {
	ops []Op
}

// NewCmd creates an empty command link
func NewCmd() *Cmd {
	return &Cmd{ops: make([]Op, 0, 8)}
}

// Start appends a start condition
func (c *Cmd) Start() *Cmd {
	c.ops = append(c.ops, Op{Code: OpStart})
	return c
}

// Write appends a byte write
func (c *Cmd) Write(b byte, checkAck bool) *Cmd {
	c.ops = append(c.ops, Op{Code: OpWrite, Data: b, CheckAck: checkAck})
	return c
}

// WriteBytes appends one write per byte, all with ACK checking
func (c *Cmd) WriteBytes(data []byte) *Cmd {
	for _, b := range data {
		c.Write(b, true)
	}
	return c
}

// Read appends a single byte read into dst
func (c *Cmd) Read(dst *byte, ack bool) *Cmd {
	c.ops = append(c.ops, Op{Code: OpRead, Dst: dst, Ack: ack})
	return c
}

// ReadInto appends a read burst filling buf. Every byte but the last is
// ACKed; the last one is NACKed to end the burst.
func (c *Cmd) ReadInto(buf []byte) *Cmd {
	for i := range buf {
		c.Read(&buf[i], i < len(buf)-1)
	}
	return c
}

// Stop appends a stop condition
func (c *Cmd) Stop() *Cmd {
	c.ops = append(c.ops, Op{Code: OpStop})
	return c
}

// Ops returns the ops of the link in execution order
func (c *Cmd) Ops() []Op {
	return c.ops
}

// Validate checks the link is framed by start/stop and addresses a device
func (c *Cmd) Validate() error {
	if c == nil || len(c.ops) == 0 {
		return errors.New("empty command link")
	}
	if c.ops[0].Code != OpStart {
		return errors.New("command link must begin with a start condition")
	}
	if c.ops[len(c.ops)-1].Code != OpStop {
		return errors.New("command link must end with a stop condition")
	}
	if len(c.ops) < 3 || c.ops[1].Code != OpWrite {
		return errors.New("command link has no device address byte")
	}
	for i, op := range c.ops {
		if op.Code == OpRead && op.Dst == nil {
			return fmt.Errorf("read op %d has no destination", i)
		}
	}
	return nil
}

// String renders the link for debug logs, e.g. "S W:A1 W:10 R:NACK P"
func (c *Cmd) String() string {
	var sb strings.Builder
	for i, op := range c.ops {
		if i > 0 {
			_ = sb.WriteByte(' ')
		}
		switch op.Code {
		case OpStart:
			_, _ = sb.WriteString("S")
		case OpStop:
			_, _ = sb.WriteString("P")
		case OpWrite:
			_, _ = fmt.Fprintf(&sb, "W:%02X", op.Data)
		case OpRead:
			if op.Ack {
				_, _ = sb.WriteString("R:ACK")
			} else {
				_, _ = sb.WriteString("R:NACK")
			}
		}
	}
	return sb.String()
}
