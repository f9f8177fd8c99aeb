//go:build !linux

package i2c

import (
	"context"

	"github.com/jakubarm/go-fram/detection"
)

// detectLinux is a stub for non-Linux platforms
func detectLinux(_ context.Context, _ *detection.Options) ([]detection.DeviceInfo, error) {
	return nil, detection.ErrUnsupportedPlatform
}
