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

// Package snapshot captures the contents of a FRAM chip into a
// self-describing CBOR image and writes such images back.
//
// Images use integer map keys and canonical encoding, so capturing the
// same memory twice yields identical bytes.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Version is the image format version written by Capture
const Version = 1

var (
	// ErrChecksum is returned when image data does not match its CRC
	ErrChecksum = errors.New("snapshot: checksum mismatch")
	// ErrSizeMismatch is returned when an image does not fit the device
	ErrSizeMismatch = errors.New("snapshot: size mismatch")
	// ErrVersion is returned for images written by an unknown format version
	ErrVersion = errors.New("snapshot: unsupported version")
	// ErrVerify is returned when the read-back after a restore differs
	ErrVerify = errors.New("snapshot: verification failed")
)

// Memory is the device surface needed to capture and restore images.
// Both *fram.Device and *fram.SyncDevice implement it.
type Memory interface {
	Size() int
	Addr() uint8
	BusName() string
	ReadContext(ctx context.Context, addr uint16, buf []byte) error
	WriteContext(ctx context.Context, addr uint16, data []byte) error
}

// Image is a captured copy of a chip's memory
type Image struct {
	Taken   time.Time `cbor:"5,keyasint"`
	Device  string    `cbor:"2,keyasint,omitempty"`
	Data    []byte    `cbor:"6,keyasint"`
	Version int       `cbor:"1,keyasint"`
	Size    int       `cbor:"4,keyasint"`
	CRC32   uint32    `cbor:"7,keyasint"`
	Address uint8     `cbor:"3,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create snapshot CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create snapshot CBOR decoder mode: %v", err))
	}
}

// NewImage builds an image of data taken from mem
func NewImage(mem Memory, data []byte) *Image {
	return &Image{
		Version: Version,
		Device:  mem.BusName(),
		Address: mem.Addr(),
		Size:    len(data),
		Taken:   time.Now().UTC(),
		Data:    data,
		CRC32:   crc32.ChecksumIEEE(data),
	}
}

// Verify checks the image is internally consistent
func (img *Image) Verify() error {
	if img.Version != Version {
		return fmt.Errorf("%w: %d", ErrVersion, img.Version)
	}
	if img.Size != len(img.Data) {
		return fmt.Errorf("%w: header says %d bytes, image holds %d", ErrSizeMismatch, img.Size, len(img.Data))
	}
	if sum := crc32.ChecksumIEEE(img.Data); sum != img.CRC32 {
		return fmt.Errorf("%w: stored 0x%08X, computed 0x%08X", ErrChecksum, img.CRC32, sum)
	}
	return nil
}

// Capture reads the whole memory of mem into an image
func Capture(ctx context.Context, mem Memory) (*Image, error) {
	data := make([]byte, mem.Size())
	if err := mem.ReadContext(ctx, 0, data); err != nil {
		return nil, fmt.Errorf("capture %s: %w", mem.BusName(), err)
	}
	return NewImage(mem, data), nil
}

// Restore writes img back to mem and reads it back to confirm the chip
// holds the image. Images of a different size are refused before any
// write.
func Restore(ctx context.Context, mem Memory, img *Image) error {
	if err := img.Verify(); err != nil {
		return err
	}
	if img.Size != mem.Size() {
		return fmt.Errorf("%w: image is %d bytes, device is %d", ErrSizeMismatch, img.Size, mem.Size())
	}

	if err := mem.WriteContext(ctx, 0, img.Data); err != nil {
		return fmt.Errorf("restore %s: %w", mem.BusName(), err)
	}

	readBack := make([]byte, img.Size)
	if err := mem.ReadContext(ctx, 0, readBack); err != nil {
		return fmt.Errorf("verify %s: %w", mem.BusName(), err)
	}
	if !bytes.Equal(readBack, img.Data) {
		return fmt.Errorf("%w: first difference at 0x%03X", ErrVerify, firstDiff(readBack, img.Data))
	}
	return nil
}

// Marshal encodes an image to CBOR
func Marshal(img *Image) ([]byte, error) {
	return encMode.Marshal(img)
}

// Unmarshal decodes and verifies a CBOR image
func Unmarshal(data []byte) (*Image, error) {
	var img Image
	if err := decMode.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if err := img.Verify(); err != nil {
		return nil, err
	}
	return &img, nil
}

// Encode writes img to w
func Encode(w io.Writer, img *Image) error {
	return encMode.NewEncoder(w).Encode(img)
}

// Decode reads and verifies one image from r
func Decode(r io.Reader) (*Image, error) {
	var img Image
	if err := decMode.NewDecoder(r).Decode(&img); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if err := img.Verify(); err != nil {
		return nil, err
	}
	return &img, nil
}

func firstDiff(a, b []byte) int {
	for i := range a {
		if i >= len(b) || a[i] != b[i] {
			return i
		}
	}
	return len(a)
}
