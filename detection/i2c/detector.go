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

// Package i2c detects FRAM chips on Linux I2C buses
package i2c

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/jakubarm/go-fram/detection"
)

const (
	// FirstFRAMAddress is the lowest 7-bit address of the 1010xxx FRAM range
	FirstFRAMAddress = 0x50
	// LastFRAMAddress is the highest 7-bit address of the FRAM range
	LastFRAMAddress = 0x57
)

// detector implements the Detector interface for I2C devices
type detector struct{}

// New creates a new I2C detector
func New() detection.Detector {
	return &detector{}
}

// init registers the detector on package import
func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "i2c"
}

// Detect searches for FRAM chips on I2C buses
func (*detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	// I2C detection is platform-specific
	switch runtime.GOOS {
	case "linux":
		return detectLinux(ctx, opts)
	default:
		return nil, detection.ErrUnsupportedPlatform
	}
}

// FormatPath builds a device path such as "/dev/i2c-1:0x50"
func FormatPath(busPath string, addr uint8) string {
	return fmt.Sprintf("%s:0x%02X", busPath, addr)
}

// ParsePath splits a device path produced by detection into the bus path
// and the 7-bit chip address
func ParsePath(path string) (busPath string, addr uint8, err error) {
	idx := strings.LastIndex(path, ":")
	if idx <= 0 || idx == len(path)-1 {
		return "", 0, fmt.Errorf("device path %q is not of the form <bus>:<address>", path)
	}

	value, err := strconv.ParseUint(path[idx+1:], 0, 7)
	if err != nil {
		return "", 0, fmt.Errorf("invalid address in device path %q: %w", path, err)
	}
	return path[:idx], uint8(value), nil
}

// groupAddresses folds the addresses that answered on one bus into chips.
// A chip occupies an even address and, when its page bit is in use, the
// odd address above it.
func groupAddresses(addresses []uint8) map[uint8]detection.Confidence {
	present := make(map[uint8]bool, len(addresses))
	for _, addr := range addresses {
		if addr >= FirstFRAMAddress && addr <= LastFRAMAddress {
			present[addr] = true
		}
	}

	chips := make(map[uint8]detection.Confidence)
	for addr := range present {
		base := addr &^ 0x01
		switch {
		case present[base] && present[base|0x01]:
			chips[base] = detection.High
		case present[base]:
			chips[base] = detection.Medium
		default:
			chips[base] = detection.Low
		}
	}
	return chips
}

// createDeviceInfo creates a DeviceInfo for one chip
func createDeviceInfo(busPath string, addr uint8, confidence detection.Confidence) detection.DeviceInfo {
	return detection.DeviceInfo{
		Transport:  "i2c",
		Path:       FormatPath(busPath, addr),
		Name:       fmt.Sprintf("FRAM at %s address 0x%02X", busPath, addr),
		Confidence: confidence,
		Metadata: map[string]string{
			"bus":     busPath,
			"address": fmt.Sprintf("0x%02X", addr),
		},
	}
}
