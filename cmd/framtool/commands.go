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

package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	fram "github.com/jakubarm/go-fram"
	"github.com/jakubarm/go-fram/detection"
	"github.com/jakubarm/go-fram/snapshot"
)

const commandHelp = `  detect                 List FRAM chips found on the I2C buses
  info                   Show the device and its statistics
  read <addr> [len]      Hex dump len bytes (default 16) starting at addr
  write <addr> <hex>     Write hex bytes (e.g. deadbeef) starting at addr
  fill <addr> <len> <b>  Write len copies of byte b starting at addr
  dump <file>            Save the whole memory as a CBOR snapshot
  restore <file>         Write a snapshot back and verify it
  shell                  Interactive mode
`

const defaultReadLength = 16

// app runs commands against one device
type app struct {
	mem     *fram.SyncDevice
	out     io.Writer
	timeout time.Duration
}

// exec runs one command given as command-line words
func (a *app) exec(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return nil
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	cmd, rest := strings.ToLower(args[0]), args[1:]
	switch cmd {
	case "info":
		return a.cmdInfo()
	case "read", "r":
		return a.cmdRead(ctx, rest)
	case "write", "w":
		return a.cmdWrite(ctx, rest)
	case "fill":
		return a.cmdFill(ctx, rest)
	case "dump":
		return a.cmdDump(ctx, rest)
	case "restore":
		return a.cmdRestore(ctx, rest)
	case "detect":
		return runDetect(ctx, a.out)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func (a *app) cmdInfo() error {
	stats := a.mem.Stats()
	_, _ = fmt.Fprintf(a.out, "Bus:        %s\n", a.mem.BusName())
	_, _ = fmt.Fprintf(a.out, "Address:    0x%02X\n", a.mem.Addr())
	_, _ = fmt.Fprintf(a.out, "Size:       %d bytes\n", a.mem.Size())
	_, _ = fmt.Fprintf(a.out, "Operations: %d (%d failed)\n", stats.Operations, stats.Failures)
	_, _ = fmt.Fprintf(a.out, "Read:       %d bytes\n", stats.BytesRead)
	_, _ = fmt.Fprintf(a.out, "Written:    %d bytes\n", stats.BytesWritten)
	return nil
}

func (a *app) cmdRead(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: read <addr> [len]")
	}
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	length := defaultReadLength
	if len(args) == 2 {
		if length, err = parseLength(args[1]); err != nil {
			return err
		}
	}
	// Clamp the default length at the end of memory
	if len(args) == 1 && int(addr)+length > a.mem.Size() {
		length = max(a.mem.Size()-int(addr), 0)
	}

	buf := make([]byte, length)
	if err := a.mem.ReadContext(ctx, addr, buf); err != nil {
		return err
	}
	writeDump(a.out, addr, buf)
	return nil
}

func (a *app) cmdWrite(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: write <addr> <hex>")
	}
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	data, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(args[1]), "0x"))
	if err != nil {
		return fmt.Errorf("invalid hex data: %w", err)
	}
	if len(data) == 0 {
		return errors.New("no data to write")
	}

	if err := a.mem.WriteContext(ctx, addr, data); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.out, "Wrote %d bytes at 0x%03X\n", len(data), addr)
	return nil
}

func (a *app) cmdFill(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return errors.New("usage: fill <addr> <len> <byte>")
	}
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	length, err := parseLength(args[1])
	if err != nil {
		return err
	}
	value, err := strconv.ParseUint(args[2], 0, 8)
	if err != nil {
		return fmt.Errorf("invalid fill byte %q: %w", args[2], err)
	}

	data := make([]byte, length)
	for i := range data {
		data[i] = byte(value)
	}
	if err := a.mem.WriteContext(ctx, addr, data); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.out, "Filled %d bytes at 0x%03X with 0x%02X\n", length, addr, value)
	return nil
}

func (a *app) cmdDump(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: dump <file>")
	}

	img, err := snapshot.Capture(ctx, a.mem)
	if err != nil {
		return err
	}

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	if err := snapshot.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}

	_, _ = fmt.Fprintf(a.out, "Saved %d bytes to %s (crc32 0x%08X)\n", img.Size, args[0], img.CRC32)
	return nil
}

func (a *app) cmdRestore(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: restore <file>")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, err := snapshot.Decode(f)
	if err != nil {
		return err
	}
	if err := snapshot.Restore(ctx, a.mem, img); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(a.out, "Restored %d bytes from %s (taken %s)\n",
		img.Size, args[0], img.Taken.Format(time.RFC3339))
	return nil
}

func runDetect(ctx context.Context, out io.Writer) error {
	opts := detection.DefaultOptions()
	devices, err := detection.DetectAll(ctx, &opts)
	if errors.Is(err, detection.ErrNoDevicesFound) {
		_, _ = fmt.Fprintln(out, "No FRAM devices found")
		return nil
	}
	if err != nil {
		return err
	}

	for _, d := range devices {
		_, _ = fmt.Fprintf(out, "%-24s %-4s %-6s %s\n", d.Path, d.Transport, d.Confidence, d.Name)
	}
	return nil
}

// writeDump prints buf as hex with offsets relative to the chip
func writeDump(w io.Writer, addr uint16, buf []byte) {
	const width = 16
	for off := 0; off < len(buf); off += width {
		end := min(off+width, len(buf))
		line := buf[off:end]

		ascii := make([]byte, len(line))
		for i, b := range line {
			if b < 0x20 || b > 0x7E {
				b = '.'
			}
			ascii[i] = b
		}
		_, _ = fmt.Fprintf(w, "%03X  %-47s  |%s|\n", int(addr)+off, spacedHex(line), ascii)
	}
}

func spacedHex(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = hex.EncodeToString([]byte{v})
	}
	return strings.Join(parts, " ")
}

func parseAddress(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return uint16(v), nil
}

func parseLength(s string) (int, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid length %q", s)
	}
	return int(v), nil
}
