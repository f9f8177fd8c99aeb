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
	"testing"
	"time"

	testutil "github.com/jakubarm/go-fram/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDevice(t *testing.T, opts ...Option) (*Device, *VirtualBus) {
	t.Helper()
	bus := NewVirtualBus(testutil.ChipAddr, testutil.ChipSize, testutil.ChipPageSize)
	opts = append([]Option{WithPageSize(testutil.ChipPageSize), WithWriteDelay(0)}, opts...)
	device, err := New(bus, testutil.ChipAddr, testutil.ChipSize, opts...)
	require.NoError(t, err)
	return device, bus
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		bus     Bus
		name    string
		opts    []Option
		size    int
		addr    uint8
		wantErr bool
	}{
		{
			name: "Valid_MB85RC04V",
			bus:  NewVirtualBus(0x50, 512, 8),
			addr: 0x50,
			size: 512,
		},
		{
			name: "Valid_SmallChip",
			bus:  NewVirtualBus(0x52, 256, 8),
			addr: 0x52,
			size: 256,
		},
		{
			name:    "Nil_Bus",
			addr:    0x50,
			size:    512,
			wantErr: true,
		},
		{
			name:    "Page_Bit_Set_In_Address",
			bus:     NewVirtualBus(0x50, 512, 8),
			addr:    0x51,
			size:    512,
			wantErr: true,
		},
		{
			name:    "Address_Not_7_Bit",
			bus:     NewVirtualBus(0x50, 512, 8),
			addr:    0x80,
			size:    512,
			wantErr: true,
		},
		{
			name:    "Zero_Size",
			bus:     NewVirtualBus(0x50, 512, 8),
			addr:    0x50,
			size:    0,
			wantErr: true,
		},
		{
			name:    "Size_Beyond_Page_Bit",
			bus:     NewVirtualBus(0x50, 512, 8),
			addr:    0x50,
			size:    1024,
			wantErr: true,
		},
		{
			name:    "Page_Size_Not_Power_Of_Two",
			bus:     NewVirtualBus(0x50, 512, 8),
			addr:    0x50,
			size:    512,
			opts:    []Option{WithPageSize(12)},
			wantErr: true,
		},
		{
			name:    "Zero_Timeout",
			bus:     NewVirtualBus(0x50, 512, 8),
			addr:    0x50,
			size:    512,
			opts:    []Option{WithTimeout(0)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, err := New(tt.bus, tt.addr, tt.size, tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				require.ErrorIs(t, err, ErrInvalidArgument)
				assert.Nil(t, device)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.size, device.Size())
			assert.Equal(t, tt.addr, device.Addr())
		})
	}
}

func TestDevice_Init(t *testing.T) {
	t.Parallel()

	device, bus := newTestDevice(t)
	require.NoError(t, device.Init())
	assert.Empty(t, bus.Transactions(), "init must not touch the bus")

	var nilDevice *Device
	err := nilDevice.Init()
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.NotErrorIs(t, err, ErrIO)
}

func TestDevice_ByteRoundTrip(t *testing.T) {
	t.Parallel()

	addresses := []uint16{0x000, 0x001, 0x0FF, 0x100, 0x101, 0x1FE, 0x1FF}
	for _, addr := range addresses {
		device, _ := newTestDevice(t)
		value := byte(addr*3 + 1)

		require.NoError(t, device.WriteByteAt(addr, value))
		got, err := device.ReadByteAt(addr)
		require.NoError(t, err)
		assert.Equal(t, value, got, "address 0x%03X", addr)
	}
}

func TestDevice_PageBitInDeviceByte(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		addr uint16
	}{
		{name: "Lower_Half", addr: 0x0FF},
		{name: "Upper_Half", addr: 0x100},
		{name: "Last_Byte", addr: 0x1FF},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, bus := newTestDevice(t)
			require.NoError(t, device.WriteByteAt(tt.addr, 0x42))
			_, err := device.ReadByteAt(tt.addr)
			require.NoError(t, err)

			txs := bus.Transactions()
			require.Len(t, txs, 2)
			assert.Equal(t, testutil.DeviceAddressByte(testutil.ChipAddr, tt.addr, false), txs[0].DeviceByte)
			assert.Equal(t, testutil.DeviceAddressByte(testutil.ChipAddr, tt.addr, true), txs[1].DeviceByte)
			assert.Equal(t, byte(tt.addr), txs[0].Written[0], "low address byte")
			assert.Equal(t, tt.addr, txs[1].MemAddr())
		})
	}
}

func TestDevice_TransactionFraming(t *testing.T) {
	t.Parallel()

	var links []string
	bus := BusFunc(func(_ context.Context, cmd *Cmd) error {
		links = append(links, cmd.String())
		return nil
	})
	device, err := New(bus, 0x50, 512)
	require.NoError(t, err)

	_, err = device.ReadByteAt(0x123)
	require.NoError(t, err)
	require.NoError(t, device.WriteByteAt(0x005, 0x42))
	require.NoError(t, device.Read(0x010, make([]byte, 3)))

	assert.Equal(t, []string{
		"S W:A3 W:23 R:NACK P",
		"S W:A0 W:05 W:42 P",
		"S W:A1 W:10 R:ACK R:ACK R:NACK P",
	}, links)
}

func TestDevice_OutOfRangePerformsNoTransaction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		call func(d *Device) error
		name string
	}{
		{
			name: "ReadByteAt_At_Size",
			call: func(d *Device) error { _, err := d.ReadByteAt(512); return err },
		},
		{
			name: "ReadByteAt_Far_Beyond",
			call: func(d *Device) error { _, err := d.ReadByteAt(0xFFFF); return err },
		},
		{
			name: "WriteByteAt_At_Size",
			call: func(d *Device) error { return d.WriteByteAt(512, 1) },
		},
		{
			name: "Read_Start_Beyond",
			call: func(d *Device) error { return d.Read(600, make([]byte, 4)) },
		},
		{
			name: "Write_Start_Beyond",
			call: func(d *Device) error { return d.Write(512, []byte{1}) },
		},
		{
			name: "Read_End_Beyond",
			call: func(d *Device) error { return d.Read(510, make([]byte, 4)) },
		},
		{
			name: "Write_End_Beyond",
			call: func(d *Device) error { return d.Write(500, testutil.Sequence(13)) },
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, bus := newTestDevice(t)
			err := tt.call(device)

			require.Error(t, err)
			require.ErrorIs(t, err, ErrIO)
			require.ErrorIs(t, err, ErrOutOfRange)
			assert.NotErrorIs(t, err, ErrBus)
			assert.Empty(t, bus.Transactions())
		})
	}
}

func TestDevice_ReadToLastByte(t *testing.T) {
	t.Parallel()

	device, bus := newTestDevice(t)
	bus.Load(508, []byte{1, 2, 3, 4})

	buf := make([]byte, 4)
	require.NoError(t, device.Read(508, buf))
	assert.Equal(t, []byte{1, 2, 3, 4}, buf)
}

func TestDevice_ReadIsSingleTransaction(t *testing.T) {
	t.Parallel()

	device, bus := newTestDevice(t)
	want := testutil.Pattern(40, 3)
	bus.Load(0x0F0, want)

	buf := make([]byte, len(want))
	require.NoError(t, device.Read(0x0F0, buf))
	assert.Equal(t, want, buf)

	txs := bus.Transactions()
	require.Len(t, txs, 1, "a read of any length is one transaction")
	assert.True(t, txs[0].IsRead())
	require.Len(t, txs[0].Acks, len(want))
	for i, ack := range txs[0].Acks[:len(want)-1] {
		assert.True(t, ack, "byte %d must be ACKed", i)
	}
	assert.False(t, txs[0].Acks[len(want)-1], "last byte must be NACKed")
	assert.Empty(t, bus.Violations())
}

func TestDevice_ZeroLengthOperations(t *testing.T) {
	t.Parallel()

	device, bus := newTestDevice(t)
	require.NoError(t, device.Read(10, nil))
	require.NoError(t, device.Write(10, nil))
	assert.Empty(t, bus.Transactions())

	require.ErrorIs(t, device.Read(512, nil), ErrOutOfRange)
}

func TestDevice_ReadFailureLeavesBufferUntouched(t *testing.T) {
	t.Parallel()

	device, bus := newTestDevice(t)
	busErr := errors.New("arbitration lost")
	bus.FailTransaction(0, busErr)

	buf := []byte{0xAA, 0xBB, 0xCC}
	err := device.Read(0, buf)

	require.Error(t, err)
	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, ErrBus)
	require.ErrorIs(t, err, busErr)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, buf)

	var ferr *Error
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "read", ferr.Op)
	assert.Equal(t, "virtual", ferr.Bus)
	assert.Equal(t, 3, ferr.Length)
}

func TestDevice_NoRetryOnBusFailure(t *testing.T) {
	t.Parallel()

	device, bus := newTestDevice(t)
	bus.FailTransaction(0, errors.New("timeout"))

	require.Error(t, device.WriteByteAt(4, 0x11))
	assert.Len(t, bus.Transactions(), 1)
	assert.Equal(t, byte(0xFF), bus.Memory()[4])
}

func TestDevice_WrongAddressIsBusError(t *testing.T) {
	t.Parallel()

	bus := NewVirtualBus(0x52, 512, 8)
	device, err := New(bus, 0x50, 512)
	require.NoError(t, err)

	_, err = device.ReadByteAt(0)
	require.ErrorIs(t, err, ErrBus)
	require.ErrorIs(t, err, ErrVirtualNACK)
}

func TestDevice_CommandTimeout(t *testing.T) {
	t.Parallel()

	bus := NewBlockingMockBus()
	defer func() { _ = bus.Close() }()

	device, err := New(bus, 0x50, 512, WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	_, err = device.ReadByteAt(0)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.ErrorIs(t, err, ErrBus)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDevice_CancelledContext(t *testing.T) {
	t.Parallel()

	device, bus := newTestDevice(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := device.ReadByteAtContext(ctx, 0)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, bus.Transactions())
}
