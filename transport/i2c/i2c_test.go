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

package i2c

import (
	"context"
	"errors"
	"testing"

	fram "github.com/jakubarm/go-fram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

func newPlaybackDevice(t *testing.T, ops ...i2ctest.IO) (*fram.Device, *i2ctest.Playback) {
	t.Helper()
	bus := &i2ctest.Playback{Ops: ops, DontPanic: true}
	transport := NewFromBus(bus, "playback")
	device, err := fram.New(transport, 0x50, 512, fram.WithWriteDelay(0))
	require.NoError(t, err)
	return device, bus
}

func TestTransport_ReadByteUsesPageAddress(t *testing.T) {
	t.Parallel()

	device, bus := newPlaybackDevice(t,
		i2ctest.IO{Addr: 0x50, W: []byte{0x10}, R: []byte{0xAB}},
		i2ctest.IO{Addr: 0x51, W: []byte{0x10}, R: []byte{0xCD}},
	)

	low, err := device.ReadByteAt(0x010)
	require.NoError(t, err)
	high, err := device.ReadByteAt(0x110)
	require.NoError(t, err)

	assert.Equal(t, byte(0xAB), low)
	assert.Equal(t, byte(0xCD), high)
	require.NoError(t, bus.Close())
}

func TestTransport_WriteChunksBecomeSeparateTx(t *testing.T) {
	t.Parallel()

	device, bus := newPlaybackDevice(t,
		i2ctest.IO{Addr: 0x50, W: []byte{0xFE, 0x01, 0x02}},
		i2ctest.IO{Addr: 0x51, W: []byte{0x00, 0x03, 0x04, 0x05}},
	)

	require.NoError(t, device.Write(0x0FE, []byte{1, 2, 3, 4, 5}))
	require.NoError(t, bus.Close())
}

func TestTransport_BurstReadIsOneTx(t *testing.T) {
	t.Parallel()

	want := []byte{9, 8, 7, 6, 5, 4}
	device, bus := newPlaybackDevice(t,
		i2ctest.IO{Addr: 0x50, W: []byte{0x40}, R: want},
	)

	got := make([]byte, len(want))
	require.NoError(t, device.Read(0x040, got))
	assert.Equal(t, want, got)
	require.NoError(t, bus.Close())
}

func TestTransport_TxErrorIsBusError(t *testing.T) {
	t.Parallel()

	// The playback expects another address, so the Tx fails.
	device, _ := newPlaybackDevice(t,
		i2ctest.IO{Addr: 0x57, W: []byte{0x00}, R: []byte{0x00}},
	)

	_, err := device.ReadByteAt(0)
	require.Error(t, err)
	assert.ErrorIs(t, err, fram.ErrBus)
	assert.Contains(t, err.Error(), "playback")
}

func TestTransport_ContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	transport := NewFromBus(&i2ctest.Playback{DontPanic: true}, "playback")
	var b byte
	cmd := fram.NewCmd().Start().Write(0xA1, true).Write(0, true).Read(&b, false).Stop()

	err := transport.Exec(ctx, cmd)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled error, got: %v", err)
	}
}

func TestSplitCmd(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 2)
	addr, w, reads, err := splitCmd(fram.NewCmd().Start().Write(0xA3, true).Write(0x20, true).ReadInto(buf).Stop())
	require.NoError(t, err)
	assert.Equal(t, uint16(0x51), addr)
	assert.Equal(t, []byte{0x20}, w)
	assert.Len(t, reads, 2)

	var b byte
	_, _, _, err = splitCmd(fram.NewCmd().Start().Write(0xA1, true).Read(&b, true).Write(0x00, true).Stop())
	require.Error(t, err)

	_, _, _, err = splitCmd(fram.NewCmd().Start().Write(0xA0, true).Start().Write(0xA1, true).Stop())
	require.Error(t, err)
}

func TestTransport_Properties(t *testing.T) {
	t.Parallel()

	transport := NewFromBus(&i2ctest.Playback{}, "/dev/i2c-1")
	assert.Equal(t, "/dev/i2c-1", transport.String())
	assert.NoError(t, transport.Close(), "borrowed buses are not closed")
}
