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
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

var (
	debugEnabled  atomic.Bool
	debugLogger   = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
)

// SetDebugEnabled routes the records of devices without their own logger
// to stderr at debug level. Disabled by default.
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}

func packageLogger() *slog.Logger {
	if debugEnabled.Load() {
		return debugLogger
	}
	return discardLogger
}
