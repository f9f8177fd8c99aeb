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
	"io"
	"log/slog"
	"time"
)

const (
	// MaxSize is the largest memory the chip variant can address: the
	// device-address byte carries a single page bit above the 8-bit word address.
	MaxSize = 512

	// DefaultAddress is the 7-bit bus address of a chip with its address pins low.
	DefaultAddress = 0x50

	pageBitMask = 0x01
)

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// Logger receives debug and error records. Nil uses the package logger.
	Logger *slog.Logger
	// Timeout bounds every bus transaction
	Timeout time.Duration
	// WriteDelay is waited between the page chunks of a multi-chunk write
	WriteDelay time.Duration
	// PageSize is the write buffer size of the chip; a single write
	// transaction never crosses a page boundary
	PageSize int
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		Timeout:    1 * time.Second,
		WriteDelay: 1 * time.Millisecond,
		PageSize:   8,
	}
}

// Device is a handle for one FRAM chip on an I2C bus.
//
// Thread Safety: Device is NOT thread-safe. Every method assumes exclusive
// use of the handle for its whole duration, including the waits between
// write chunks. Use SyncDevice, or your own lock per handle, when several
// goroutines share a chip.
type Device struct {
	bus    Bus
	config *DeviceConfig
	size   uint16
	addr   uint8
}

// New creates a handle for the chip at the 7-bit address addr holding size
// bytes. No bus traffic is generated.
func New(bus Bus, addr uint8, size int, opts ...Option) (*Device, error) {
	if bus == nil {
		return nil, NewInvalidArgumentError("new", errors.New("nil bus"))
	}
	if addr > 0x7F || addr&pageBitMask != 0 {
		return nil, NewInvalidArgumentError("new",
			fmt.Errorf("device address 0x%02X must be 7-bit with the page bit clear", addr))
	}
	if size <= 0 || size > MaxSize {
		return nil, NewInvalidArgumentError("new", fmt.Errorf("size %d not in 1..%d", size, MaxSize))
	}

	device := &Device{
		bus:    bus,
		addr:   addr,
		size:   uint16(size),
		config: DefaultDeviceConfig(),
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}

	return device, nil
}

// Size returns the addressable size of the chip in bytes
func (d *Device) Size() int {
	return int(d.size)
}

// Addr returns the 7-bit bus address of the chip
func (d *Device) Addr() uint8 {
	return d.addr
}

// BusName returns the name of the bus the chip sits on
func (d *Device) BusName() string {
	return d.bus.String()
}

// Config returns a copy of the device configuration
func (d *Device) Config() DeviceConfig {
	return *d.config
}

// Init logs the configured bus and address. The chip needs no setup
// sequence, so no bus traffic is generated.
func (d *Device) Init() error {
	return d.InitContext(context.Background())
}

// InitContext is Init with a context
func (d *Device) InitContext(ctx context.Context) error {
	if d == nil || d.bus == nil {
		return NewInvalidArgumentError("init", errors.New("nil device"))
	}
	d.logger().InfoContext(ctx, "init FRAM", "size", d.size, "page_size", d.config.PageSize)
	return nil
}

// ReadByteAt reads the byte stored at addr
func (d *Device) ReadByteAt(addr uint16) (byte, error) {
	return d.ReadByteAtContext(context.Background(), addr)
}

// ReadByteAtContext reads the byte stored at addr
func (d *Device) ReadByteAtContext(ctx context.Context, addr uint16) (byte, error) {
	const op = "read byte"
	if err := d.checkRange(op, addr, 1); err != nil {
		return 0, err
	}

	d.logger().DebugContext(ctx, "read byte", "mem_addr", addr)

	var value byte
	cmd := NewCmd().
		Start().
		Write(d.deviceByte(addr, rwRead), true).
		Write(byte(addr), true).
		Read(&value, false).
		Stop()

	if err := d.exec(ctx, cmd); err != nil {
		return 0, d.busError(ctx, op, addr, 1, err)
	}
	return value, nil
}

// WriteByteAt stores value at addr
func (d *Device) WriteByteAt(addr uint16, value byte) error {
	return d.WriteByteAtContext(context.Background(), addr, value)
}

// WriteByteAtContext stores value at addr
func (d *Device) WriteByteAtContext(ctx context.Context, addr uint16, value byte) error {
	const op = "write byte"
	if err := d.checkRange(op, addr, 1); err != nil {
		return err
	}

	d.logger().DebugContext(ctx, "write byte", "mem_addr", addr, "value", value)

	cmd := NewCmd().
		Start().
		Write(d.deviceByte(addr, rwWrite), true).
		Write(byte(addr), true).
		Write(value, true).
		Stop()

	if err := d.exec(ctx, cmd); err != nil {
		return d.busError(ctx, op, addr, 1, err)
	}
	return nil
}

// Read fills buf with the memory starting at addr
func (d *Device) Read(addr uint16, buf []byte) error {
	return d.ReadContext(context.Background(), addr, buf)
}

// ReadContext fills buf with the memory starting at addr in a single
// transaction; the chip advances its address pointer across the burst.
// buf is left untouched when the transaction fails.
func (d *Device) ReadContext(ctx context.Context, addr uint16, buf []byte) error {
	const op = "read"
	if err := d.checkRange(op, addr, len(buf)); err != nil {
		return err
	}
	if len(buf) == 0 {
		return nil
	}

	d.logger().DebugContext(ctx, "read", "mem_addr", addr, "len", len(buf))

	scratch := make([]byte, len(buf))
	cmd := NewCmd().
		Start().
		Write(d.deviceByte(addr, rwRead), true).
		Write(byte(addr), true).
		ReadInto(scratch).
		Stop()

	if err := d.exec(ctx, cmd); err != nil {
		return d.busError(ctx, op, addr, len(buf), err)
	}
	copy(buf, scratch)
	return nil
}

// Write stores data starting at addr
func (d *Device) Write(addr uint16, data []byte) error {
	return d.WriteContext(context.Background(), addr, data)
}

// WriteContext stores data starting at addr. The range is split into
// page-aligned chunks, one transaction each, with the configured write
// delay between chunks. A failed chunk aborts the write; chunks written
// before it are not rolled back.
func (d *Device) WriteContext(ctx context.Context, addr uint16, data []byte) error {
	const op = "write"
	if err := d.checkRange(op, addr, len(data)); err != nil {
		return err
	}

	d.logger().DebugContext(ctx, "write", "mem_addr", addr, "len", len(data))

	for i, chunk := range SplitPages(addr, len(data), d.config.PageSize) {
		if i > 0 {
			if err := sleepContext(ctx, d.config.WriteDelay); err != nil {
				return d.busError(ctx, op, chunk.Addr, chunk.Len, err)
			}
		}

		off := int(chunk.Addr - addr)
		cmd := NewCmd().
			Start().
			Write(d.deviceByte(chunk.Addr, rwWrite), true).
			Write(byte(chunk.Addr), true).
			WriteBytes(data[off : off+chunk.Len]).
			Stop()

		if err := d.exec(ctx, cmd); err != nil {
			return d.busError(ctx, op, chunk.Addr, chunk.Len, err)
		}
	}
	return nil
}

// ReadAt implements io.ReaderAt. Reads past the end of the chip are
// truncated and reported with io.EOF.
func (d *Device) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, NewInvalidArgumentError("read", fmt.Errorf("negative offset %d", off))
	}
	if off >= int64(d.size) {
		return 0, io.EOF
	}

	n := len(p)
	if rem := int64(d.size) - off; int64(n) > rem {
		n = int(rem)
	}
	if err := d.Read(uint16(off), p[:n]); err != nil {
		return 0, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt. Writes that do not fit are rejected
// without touching the chip.
func (d *Device) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, NewInvalidArgumentError("write", fmt.Errorf("negative offset %d", off))
	}
	if off > int64(d.size) {
		return 0, &Error{Op: "write", Bus: d.bus.String(), Length: len(p), Kind: KindOutOfRange,
			Err: fmt.Errorf("offset %d beyond size %d", off, d.size)}
	}
	if err := d.Write(uint16(off), p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Chunk is one page-bounded span of a write
type Chunk struct {
	Addr uint16
	Len  int
}

// SplitPages splits the span [addr, addr+length) into chunks that never
// cross a multiple of pageSize. The first chunk ends at the page boundary
// following addr, later ones hold at most pageSize bytes.
func SplitPages(addr uint16, length, pageSize int) []Chunk {
	if length <= 0 || pageSize <= 0 {
		return nil
	}

	end := int(addr) + length
	chunks := make([]Chunk, 0, length/pageSize+2)
	for cur := int(addr); cur < end; {
		next := (cur/pageSize + 1) * pageSize
		if next > end {
			next = end
		}
		chunks = append(chunks, Chunk{Addr: uint16(cur), Len: next - cur})
		cur = next
	}
	return chunks
}

// deviceByte builds the address byte of a transaction: the 7-bit device
// address, the page bit (memory address bit 8) in bit 1, and the R/W bit.
func (d *Device) deviceByte(memAddr uint16, rw byte) byte {
	page := byte(memAddr>>8) & pageBitMask
	return d.addr<<1 | page<<1 | rw
}

// checkRange validates the handle and that [addr, addr+length) lies inside the chip
func (d *Device) checkRange(op string, addr uint16, length int) error {
	if d == nil || d.bus == nil {
		return NewInvalidArgumentError(op, errors.New("nil device"))
	}
	if length < 0 {
		return NewInvalidArgumentError(op, fmt.Errorf("negative length %d", length))
	}
	if addr >= d.size || int(addr)+length > int(d.size) {
		err := &Error{
			Op:      op,
			Bus:     d.bus.String(),
			Address: addr,
			Length:  length,
			Kind:    KindOutOfRange,
			Err:     fmt.Errorf("size is %d", d.size),
		}
		d.logger().Error("FRAM access out of range", "op", op, "mem_addr", addr, "len", length)
		return err
	}
	return nil
}

// exec runs one transaction under the configured command timeout
func (d *Device) exec(ctx context.Context, cmd *Cmd) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	txCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	if err := d.bus.Exec(txCtx, cmd); err != nil {
		return err
	}
	return nil
}

func (d *Device) busError(ctx context.Context, op string, addr uint16, length int, cause error) error {
	d.logger().ErrorContext(ctx, "FRAM transaction failed",
		"op", op, "mem_addr", addr, "len", length, "error", cause)
	return &Error{
		Op:      op,
		Bus:     d.bus.String(),
		Address: addr,
		Length:  length,
		Kind:    KindBus,
		Err:     cause,
	}
}

func (d *Device) logger() *slog.Logger {
	logger := d.config.Logger
	if logger == nil {
		logger = packageLogger()
	}
	return logger.With("bus", d.bus.String(), "address", fmt.Sprintf("0x%02X", d.addr))
}

// sleepContext waits for delay or until ctx is done
func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
