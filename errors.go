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
	"errors"
	"fmt"
)

// Driver errors
var (
	// ErrInvalidArgument is returned for a nil handle or an unusable configuration.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIO matches every failure reported by a memory operation: both
	// out-of-range addresses and failed bus transactions.
	ErrIO = errors.New("i/o failure")

	// ErrOutOfRange is returned when an operation touches memory beyond the device size.
	ErrOutOfRange = errors.New("address out of range")

	// ErrBus is returned when the underlying bus transaction fails.
	ErrBus = errors.New("bus transaction failed")
)

// ErrorKind classifies driver errors
type ErrorKind int

const (
	// KindInvalidArgument indicates a nil handle or a bad parameter.
	KindInvalidArgument ErrorKind = iota
	// KindOutOfRange indicates an address outside the device.
	KindOutOfRange
	// KindBus indicates a failed bus transaction.
	KindBus
)

// String returns the kind name
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindOutOfRange:
		return "out of range"
	case KindBus:
		return "bus"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error carries the kind of a failure together with the offending memory span.
type Error struct {
	Err     error
	Op      string
	Bus     string
	Address uint16
	Length  int
	Kind    ErrorKind
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("fram %s at 0x%03X", e.Op, e.Address)
	if e.Length > 0 {
		msg += fmt.Sprintf(" (%d bytes)", e.Length)
	}
	if e.Bus != "" {
		msg += " on " + e.Bus
	}
	msg += ": " + e.sentinel().Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches one of the package sentinels.
// Out-of-range and bus failures both match ErrIO.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrIO:
		return e.Kind == KindOutOfRange || e.Kind == KindBus
	case ErrOutOfRange, ErrBus, ErrInvalidArgument:
		return e.sentinel() == target
	default:
		return false
	}
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindOutOfRange:
		return ErrOutOfRange
	case KindBus:
		return ErrBus
	default:
		return ErrInvalidArgument
	}
}

// GetErrorKind returns the kind of a driver error. ok is false for errors
// that did not originate from this package.
func GetErrorKind(err error) (kind ErrorKind, ok bool) {
	var ferr *Error
	if errors.As(err, &ferr) {
		return ferr.Kind, true
	}
	return KindInvalidArgument, false
}

// NewInvalidArgumentError creates an invalid-argument error for an operation
func NewInvalidArgumentError(op string, cause error) *Error {
	return &Error{Op: op, Kind: KindInvalidArgument, Err: cause}
}
