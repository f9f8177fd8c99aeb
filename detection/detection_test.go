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

package detection

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDetector struct {
	err       error
	transport string
	devices   []DeviceInfo
}

func (f *fakeDetector) Transport() string { return f.transport }

func (f *fakeDetector) Detect(context.Context, *Options) ([]DeviceInfo, error) {
	return f.devices, f.err
}

func withDetectors(t *testing.T, list ...Detector) {
	t.Helper()
	detectorsMu.Lock()
	saved := detectors
	detectors = make(map[string]Detector)
	detectorsMu.Unlock()

	for _, d := range list {
		RegisterDetector(d)
	}

	t.Cleanup(func() {
		detectorsMu.Lock()
		detectors = saved
		detectorsMu.Unlock()
	})
}

// The registry is global, so these subtests run sequentially.
func TestDetectAll(t *testing.T) {
	t.Run("merges and sorts by confidence", func(t *testing.T) {
		withDetectors(t,
			&fakeDetector{transport: "a", devices: []DeviceInfo{{Path: "/dev/i2c-1:0x52", Confidence: Low}}},
			&fakeDetector{transport: "b", devices: []DeviceInfo{{Path: "/dev/i2c-1:0x50", Confidence: High}}},
		)

		devices, err := DetectAll(context.Background(), nil)
		require.NoError(t, err)
		require.Len(t, devices, 2)
		assert.Equal(t, "/dev/i2c-1:0x50", devices[0].Path)
		assert.Equal(t, "/dev/i2c-1:0x52", devices[1].Path)
	})

	t.Run("drops ignored paths", func(t *testing.T) {
		withDetectors(t, &fakeDetector{transport: "a", devices: []DeviceInfo{
			{Path: "/dev/i2c-1:0x50"}, {Path: "/dev/i2c-1:0x54"},
		}})

		devices, err := DetectAll(context.Background(), &Options{IgnorePaths: []string{"/dev/i2c-1:0x50"}})
		require.NoError(t, err)
		require.Len(t, devices, 1)
		assert.Equal(t, "/dev/i2c-1:0x54", devices[0].Path)
	})

	t.Run("nothing found", func(t *testing.T) {
		withDetectors(t,
			&fakeDetector{transport: "a", err: ErrUnsupportedPlatform},
			&fakeDetector{transport: "b", err: ErrNoDevicesFound},
		)

		_, err := DetectAll(context.Background(), nil)
		require.ErrorIs(t, err, ErrNoDevicesFound)
	})

	t.Run("surfaces detector failure", func(t *testing.T) {
		failure := errors.New("permission denied")
		withDetectors(t, &fakeDetector{transport: "a", err: failure})

		_, err := DetectAll(context.Background(), nil)
		require.ErrorIs(t, err, failure)
	})

	t.Run("lists detectors in order", func(t *testing.T) {
		withDetectors(t, &fakeDetector{transport: "z"}, &fakeDetector{transport: "i2c"})

		list := Detectors()
		require.Len(t, list, 2)
		assert.Equal(t, "i2c", list[0].Transport())
		assert.Equal(t, "z", list[1].Transport())
	})
}

func TestConfidence_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "low", Low.String())
	assert.Equal(t, "medium", Medium.String())
	assert.Equal(t, "high", High.String())
	assert.Equal(t, "unknown", Confidence(7).String())
}
