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
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrVirtualNACK is returned by VirtualBus when no simulated chip answers
// the device-address byte
var ErrVirtualNACK = errors.New("virtual bus: address not acknowledged")

// Transaction is one command link executed by a VirtualBus
type Transaction struct {
	Time time.Time
	Err  error
	// Written holds the bytes written after the device-address byte; the
	// first one is the low word address.
	Written []byte
	// Read holds the bytes returned to the master
	Read []byte
	// Acks holds the ACK flag the master sent for each read byte
	Acks       []bool
	DeviceByte byte
}

// MemAddr returns the memory address the transaction started at
func (t Transaction) MemAddr() uint16 {
	if len(t.Written) == 0 {
		return 0
	}
	return uint16(t.DeviceByte>>1&pageBitMask)<<8 | uint16(t.Written[0])
}

// IsRead reports whether the R/W bit of the device-address byte was set
func (t Transaction) IsRead() bool {
	return t.DeviceByte&rwRead != 0
}

// Data returns the payload of a write transaction
func (t Transaction) Data() []byte {
	if t.IsRead() || len(t.Written) < 2 {
		return nil
	}
	return t.Written[1:]
}

// VirtualBus simulates a bus carrying one FRAM chip. It interprets command
// links op by op the way the chip would, records every transaction and
// reports protocol violations such as writes crossing a page or read
// bursts not terminated with NACK.
type VirtualBus struct {
	failOn     map[int]error
	name       string
	mem        []byte
	log        []Transaction
	violations []string
	pageSize   int
	mu         sync.Mutex
	addr       uint8
}

// NewVirtualBus creates a bus with a blank chip (all 0xFF) of size bytes
// answering at addr and addr+1
func NewVirtualBus(addr uint8, size, pageSize int) *VirtualBus {
	mem := make([]byte, size)
	for i := range mem {
		mem[i] = 0xFF
	}
	return &VirtualBus{
		name:     "virtual",
		addr:     addr,
		mem:      mem,
		pageSize: pageSize,
		failOn:   make(map[int]error),
	}
}

// String returns the bus name
func (v *VirtualBus) String() string {
	return v.name
}

// SetName changes the bus name
func (v *VirtualBus) SetName(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.name = name
}

// FailTransaction makes the n-th transaction (counting from 0) fail with
// err without touching memory
func (v *VirtualBus) FailTransaction(n int, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failOn[n] = err
}

// Load copies data into the simulated memory at addr
func (v *VirtualBus) Load(addr int, data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	copy(v.mem[addr:], data)
}

// Memory returns a copy of the simulated memory
func (v *VirtualBus) Memory() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]byte(nil), v.mem...)
}

// Transactions returns the transactions executed so far
func (v *VirtualBus) Transactions() []Transaction {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Transaction(nil), v.log...)
}

// Violations returns the protocol violations seen so far
func (v *VirtualBus) Violations() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.violations...)
}

// Reset clears the transaction log, violations and injected failures
func (v *VirtualBus) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.log = nil
	v.violations = nil
	v.failOn = make(map[int]error)
}

// Exec implements Bus
func (v *VirtualBus) Exec(ctx context.Context, cmd *Cmd) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cmd.Validate(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	index := len(v.log)
	tx := Transaction{Time: time.Now(), DeviceByte: cmd.Ops()[1].Data}
	if err, ok := v.failOn[index]; ok {
		tx.Err = err
		v.log = append(v.log, tx)
		return err
	}

	err := v.run(cmd, &tx)
	tx.Err = err
	v.log = append(v.log, tx)
	return err
}

// run interprets the ops of one link; the caller holds mu
func (v *VirtualBus) run(cmd *Cmd, tx *Transaction) error {
	devByte := tx.DeviceByte
	if devByte>>1&^pageBitMask != v.addr {
		return ErrVirtualNACK
	}
	read := devByte&rwRead != 0
	page := int(devByte>>1) & pageBitMask

	var (
		ptr       int
		start     int
		haveAddr  bool
		nacked    bool
		lastAcked bool
	)

	for _, op := range cmd.Ops()[2:] {
		switch op.Code {
		case OpStart:
			v.violate("repeated start is not supported by the chip model")
		case OpWrite:
			tx.Written = append(tx.Written, op.Data)
			if !haveAddr {
				ptr = (page<<8 | int(op.Data)) % len(v.mem)
				start = ptr
				haveAddr = true
				continue
			}
			if read {
				v.violate(fmt.Sprintf("data byte 0x%02X written in read mode", op.Data))
				continue
			}
			v.storeInPage(start, ptr, op.Data)
			ptr++
		case OpRead:
			if !read {
				v.violate("read requested in write mode")
				continue
			}
			if nacked {
				v.violate("read after the burst was terminated with NACK")
			}
			b := v.mem[ptr%len(v.mem)]
			*op.Dst = b
			tx.Read = append(tx.Read, b)
			tx.Acks = append(tx.Acks, op.Ack)
			nacked = !op.Ack
			lastAcked = op.Ack
			ptr++
		case OpStop:
			if read && len(tx.Read) > 0 && lastAcked {
				v.violate("read burst ended with ACK instead of NACK")
			}
		}
	}
	return nil
}

// storeInPage writes b the way the chip's page buffer does: the pointer
// wraps inside the page the transaction started in
func (v *VirtualBus) storeInPage(start, ptr int, b byte) {
	if v.pageSize <= 0 {
		v.mem[ptr%len(v.mem)] = b
		return
	}
	base := start - start%v.pageSize
	if ptr-ptr%v.pageSize != base {
		v.violate(fmt.Sprintf("write started in page 0x%03X continued to page 0x%03X", base, ptr-ptr%v.pageSize))
	}
	v.mem[(base+ptr%v.pageSize)%len(v.mem)] = b
}

func (v *VirtualBus) violate(msg string) {
	v.violations = append(v.violations, msg)
}

// BlockingMockBus is a bus that holds every Exec until Unblock is called,
// ctx expires or the bus is closed. It is used to test lock ordering and
// context cancellation.
type BlockingMockBus struct {
	blockChan chan struct{}
	ExecFunc  func(ctx context.Context, cmd *Cmd) error
	calls     int
	mu        sync.Mutex
	closed    bool
}

// NewBlockingMockBus creates a new blocking mock bus
func NewBlockingMockBus() *BlockingMockBus {
	return &BlockingMockBus{blockChan: make(chan struct{})}
}

// Exec blocks until Unblock, ctx expiry or Close
func (m *BlockingMockBus) Exec(ctx context.Context, cmd *Cmd) error {
	m.mu.Lock()
	blockChan := m.blockChan
	closed := m.closed
	m.calls++
	m.mu.Unlock()

	if closed {
		return errors.New("mock bus closed")
	}

	select {
	case <-blockChan:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	execFunc := m.ExecFunc
	m.mu.Unlock()
	if execFunc != nil {
		return execFunc(ctx, cmd)
	}
	return nil
}

// Unblock releases the Exec calls currently waiting
func (m *BlockingMockBus) Unblock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		close(m.blockChan)
		m.blockChan = make(chan struct{})
	}
}

// Calls returns the number of Exec calls received
func (m *BlockingMockBus) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close unblocks all calls and fails the following ones
func (m *BlockingMockBus) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.blockChan)
	}
	return nil
}

// String returns the bus name
func (*BlockingMockBus) String() string {
	return "mock"
}
