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

/*
Package fram provides a pure Go driver for I2C ferroelectric RAM chips of
the MB85RC04V family.

These chips hold up to 512 bytes behind one I2C address pair. The low eight
bits of a memory address travel as the word-address byte; bit 8 selects the
page and is carried in the device-address byte, so a chip at 0x50 answers
at both 0x50 and 0x51. Writes need no erase cycle and complete at bus
speed.

Features:
  - Byte and burst reads, each burst a single bus transaction
  - Writes split at page boundaries with a configurable wait between chunks
  - Range checks before any bus traffic
  - io.ReaderAt and io.WriterAt for use with io.SectionReader and friends
  - Context-aware operations with per-command timeouts
  - A virtual bus that simulates the chip for tests

Basic Usage:

	import (
	    "github.com/jakubarm/go-fram"
	    "github.com/jakubarm/go-fram/transport/i2c"
	)

	// Open the I2C bus
	transport, err := i2c.New("/dev/i2c-1")
	if err != nil {
	    log.Fatal(err)
	}
	defer transport.Close()

	// Create the device for a 512-byte chip at 0x50
	device, err := fram.New(transport, fram.DefaultAddress, fram.MaxSize,
	    fram.WithPageSize(16),
	    fram.WithTimeout(500*time.Millisecond),
	)
	if err != nil {
	    log.Fatal(err)
	}
	if err := device.Init(); err != nil {
	    log.Fatal(err)
	}

	// Store and load a record
	if err := device.Write(0x100, []byte("boot=3")); err != nil {
	    log.Fatal(err)
	}
	buf := make([]byte, 6)
	if err := device.Read(0x100, buf); err != nil {
	    log.Fatal(err)
	}

Command Links:

Every operation is built as a command link, a list of start, write, read
and stop steps, and handed to a Bus. Any I2C master that can run such a
link can drive the chip; transport/i2c runs them on periph.io buses.

Error Handling:

All failures match ErrIO. Callers that need more can tell range errors from
bus errors:

	if errors.Is(err, fram.ErrOutOfRange) {
	    // Nothing was sent to the chip
	}
	var ferr *fram.Error
	if errors.As(err, &ferr) && ferr.Kind == fram.KindBus {
	    // ferr.Address and ferr.Length name the failing transaction
	}

Writes are not atomic. If a chunk fails, the chunks before it stay written
and the call returns the error of the failing chunk.

Thread Safety:

Device operations are not thread-safe. Wrap a device in a SyncDevice to
share it between goroutines.
*/
package fram
