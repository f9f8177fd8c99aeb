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
	"sync"
	"time"
)

// Stats counts the operations performed through a SyncDevice
type Stats struct {
	LastOperation time.Time
	Operations    uint64
	Failures      uint64
	BytesRead     uint64
	BytesWritten  uint64
}

// SyncDevice serializes access to one Device. Every operation holds the
// handle's lock for its whole duration, including the waits between the
// chunks of a write, so concurrent callers never interleave transactions
// on the chip.
type SyncDevice struct {
	device *Device
	stats  Stats
	mu     sync.Mutex
}

// NewSyncDevice wraps device with an exclusive lock
func NewSyncDevice(device *Device) *SyncDevice {
	return &SyncDevice{device: device}
}

// Device returns the wrapped handle. Calls made on it bypass the lock.
func (s *SyncDevice) Device() *Device {
	return s.device
}

// Stats returns a snapshot of the operation counters
func (s *SyncDevice) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Size returns the addressable size of the chip in bytes
func (s *SyncDevice) Size() int {
	return s.device.Size()
}

// Addr returns the 7-bit bus address of the chip
func (s *SyncDevice) Addr() uint8 {
	return s.device.Addr()
}

// BusName returns the name of the bus the chip sits on
func (s *SyncDevice) BusName() string {
	return s.device.BusName()
}

// InitContext initializes the wrapped device
func (s *SyncDevice) InitContext(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device.InitContext(ctx)
}

// ReadByteAtContext reads the byte stored at addr
func (s *SyncDevice) ReadByteAtContext(ctx context.Context, addr uint16) (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, err := s.device.ReadByteAtContext(ctx, addr)
	s.record(err, 1, 0)
	return value, err
}

// WriteByteAtContext stores value at addr
func (s *SyncDevice) WriteByteAtContext(ctx context.Context, addr uint16, value byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.device.WriteByteAtContext(ctx, addr, value)
	s.record(err, 0, 1)
	return err
}

// ReadContext fills buf with the memory starting at addr
func (s *SyncDevice) ReadContext(ctx context.Context, addr uint16, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.device.ReadContext(ctx, addr, buf)
	s.record(err, len(buf), 0)
	return err
}

// WriteContext stores data starting at addr
func (s *SyncDevice) WriteContext(ctx context.Context, addr uint16, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.device.WriteContext(ctx, addr, data)
	s.record(err, 0, len(data))
	return err
}

// ReadAt implements io.ReaderAt
func (s *SyncDevice) ReadAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.device.ReadAt(p, off)
	s.record(nil, n, 0)
	return n, err
}

// WriteAt implements io.WriterAt
func (s *SyncDevice) WriteAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.device.WriteAt(p, off)
	s.record(err, 0, n)
	return n, err
}

// record updates the counters; the caller holds mu
func (s *SyncDevice) record(err error, read, written int) {
	s.stats.Operations++
	s.stats.LastOperation = time.Now()
	if err != nil {
		s.stats.Failures++
		return
	}
	s.stats.BytesRead += uint64(read)
	s.stats.BytesWritten += uint64(written)
}
