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

// Package detection discovers FRAM chips attached to the host's buses
package detection

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Detection errors
var (
	ErrNoDevicesFound      = errors.New("no FRAM devices found")
	ErrUnsupportedPlatform = errors.New("detection not supported on this platform")
	ErrDetectionTimeout    = errors.New("detection timed out")
)

// Mode controls how intrusive detection is
type Mode int

const (
	// Passive only lists buses and addresses without talking to devices.
	Passive Mode = iota
	// Safe probes addresses with a single one-byte read.
	Safe
)

// Confidence rates how likely a detected device is an FRAM chip
type Confidence int

const (
	// Low means something answered in the FRAM address range.
	Low Confidence = iota
	// Medium means a device answered at an even address of the range.
	Medium
	// High means both addresses of a page pair answered.
	High
)

// String returns the confidence name
func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// DeviceInfo describes one detected device
type DeviceInfo struct {
	Metadata   map[string]string
	Transport  string
	Path       string
	Name       string
	Confidence Confidence
}

// Options configures detection
type Options struct {
	IgnorePaths []string
	Timeout     time.Duration
	Mode        Mode
}

// DefaultOptions returns default detection options
func DefaultOptions() Options {
	return Options{
		Mode:    Safe,
		Timeout: 5 * time.Second,
	}
}

// Detector finds devices reachable through one transport
type Detector interface {
	// Detect searches for devices
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
	// Transport returns the transport type, e.g. "i2c"
	Transport() string
}

var (
	detectorsMu sync.RWMutex
	detectors   = make(map[string]Detector)
)

// RegisterDetector makes a detector available to DetectAll. Detector
// packages call it from init.
func RegisterDetector(d Detector) {
	detectorsMu.Lock()
	defer detectorsMu.Unlock()
	detectors[d.Transport()] = d
}

// Detectors returns the registered detectors sorted by transport
func Detectors() []Detector {
	detectorsMu.RLock()
	defer detectorsMu.RUnlock()

	list := make([]Detector, 0, len(detectors))
	for _, d := range detectors {
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Transport() < list[j].Transport() })
	return list
}

// DetectAll runs every registered detector and merges their results,
// dropping ignored paths. Detector errors other than "nothing found" and
// "unsupported platform" are returned when no device at all was found.
func DetectAll(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var (
		devices  []DeviceInfo
		firstErr error
	)
	for _, d := range Detectors() {
		found, err := d.Detect(ctx, opts)
		if err != nil && !errors.Is(err, ErrNoDevicesFound) && !errors.Is(err, ErrUnsupportedPlatform) &&
			firstErr == nil {
			firstErr = err
		}
		for _, device := range found {
			if IsPathIgnored(device.Path, opts.IgnorePaths) {
				continue
			}
			devices = append(devices, device)
		}
	}

	if len(devices) == 0 {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, ErrNoDevicesFound
	}

	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].Confidence > devices[j].Confidence
	})
	return devices, nil
}
