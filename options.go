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
	"log/slog"
	"time"
)

// Option is a functional option for configuring a Device
type Option func(*Device) error

// WithTimeout sets the timeout of every bus transaction
func WithTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		if timeout <= 0 {
			return NewInvalidArgumentError("configure", fmt.Errorf("timeout must be positive, got %s", timeout))
		}
		d.config.Timeout = timeout
		return nil
	}
}

// WithPageSize sets the page size used to split writes. It must be a power
// of two no larger than 256 so a page never spans two device addresses.
func WithPageSize(pageSize int) Option {
	return func(d *Device) error {
		if pageSize <= 0 || pageSize > 256 || pageSize&(pageSize-1) != 0 {
			return NewInvalidArgumentError("configure",
				fmt.Errorf("page size %d is not a power of two in 1..256", pageSize))
		}
		d.config.PageSize = pageSize
		return nil
	}
}

// WithWriteDelay sets the wait between the page chunks of a write
func WithWriteDelay(delay time.Duration) Option {
	return func(d *Device) error {
		if delay < 0 {
			return NewInvalidArgumentError("configure", fmt.Errorf("negative write delay %s", delay))
		}
		d.config.WriteDelay = delay
		return nil
	}
}

// WithLogger sets the logger used by the device
func WithLogger(logger *slog.Logger) Option {
	return func(d *Device) error {
		if logger == nil {
			return NewInvalidArgumentError("configure", errors.New("nil logger"))
		}
		d.config.Logger = logger
		return nil
	}
}

// WithConfig replaces the whole device configuration. The values are
// validated the same way as the individual options.
func WithConfig(config *DeviceConfig) Option {
	return func(d *Device) error {
		if config == nil {
			return NewInvalidArgumentError("configure", errors.New("nil config"))
		}
		opts := []Option{
			WithTimeout(config.Timeout),
			WithPageSize(config.PageSize),
			WithWriteDelay(config.WriteDelay),
		}
		if config.Logger != nil {
			opts = append(opts, WithLogger(config.Logger))
		}
		for _, opt := range opts {
			if err := opt(d); err != nil {
				return err
			}
		}
		return nil
	}
}
