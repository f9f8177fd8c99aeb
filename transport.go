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
)

// Bus is the I2C master a Device talks through. It is implemented by the
// periph.io adapter in transport/i2c and by VirtualBus for tests.
type Bus interface {
	// Exec runs the command link as one transaction and blocks until the
	// bus finishes it or ctx expires. Reads store their bytes through the
	// destinations of the link's read ops.
	Exec(ctx context.Context, cmd *Cmd) error

	// String names the bus, e.g. "/dev/i2c-1"
	String() string
}

// BusFunc adapts a function to the Bus interface
type BusFunc func(ctx context.Context, cmd *Cmd) error

// Exec calls f
func (f BusFunc) Exec(ctx context.Context, cmd *Cmd) error {
	return f(ctx, cmd)
}

// String returns a fixed name
func (BusFunc) String() string {
	return "func"
}
