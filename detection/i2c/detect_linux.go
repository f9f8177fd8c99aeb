//go:build linux

package i2c

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/jakubarm/go-fram/detection"
	"golang.org/x/sys/unix"
)

const (
	// I2CSlave is the ioctl command to set the slave address
	I2CSlave = 0x0703

	// I2CFuncs is the ioctl command to get adapter functionality
	I2CFuncs = 0x0705

	// I2CFuncI2C indicates plain I2C support
	I2CFuncI2C = 0x00000001
)

// i2cBusInfo contains information about an I2C bus
type i2cBusInfo struct {
	Path   string // Device path, e.g., "/dev/i2c-1"
	Number int    // Bus number
}

// detectLinux searches for FRAM chips on Linux I2C buses
func detectLinux(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	buses, err := findI2CBuses()
	if err != nil {
		return nil, err
	}

	if len(buses) == 0 {
		return nil, detection.ErrNoDevicesFound
	}

	var devices []detection.DeviceInfo
	for _, bus := range buses {
		// Check context cancellation
		select {
		case <-ctx.Done():
			return devices, detection.ErrDetectionTimeout
		default:
		}

		devices = append(devices, detectBusDevices(ctx, bus, opts)...)
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

// detectBusDevices scans a single I2C bus for FRAM chips
func detectBusDevices(ctx context.Context, bus i2cBusInfo, opts *detection.Options) []detection.DeviceInfo {
	var chips map[uint8]detection.Confidence
	if opts.Mode == detection.Passive {
		// Without probing only the default address can be suggested
		chips = map[uint8]detection.Confidence{FirstFRAMAddress: detection.Low}
	} else {
		chips = groupAddresses(scanI2CBus(ctx, bus.Path))
	}

	addrs := make([]int, 0, len(chips))
	for addr := range chips {
		addrs = append(addrs, int(addr))
	}
	sort.Ints(addrs)

	devices := make([]detection.DeviceInfo, 0, len(addrs))
	for _, addr := range addrs {
		device := createDeviceInfo(bus.Path, uint8(addr), chips[uint8(addr)])
		if detection.IsPathIgnored(device.Path, opts.IgnorePaths) {
			continue
		}
		device.Metadata["bus_number"] = fmt.Sprintf("%d", bus.Number)
		devices = append(devices, device)
	}
	return devices
}

// findI2CBuses discovers available I2C buses on the system
func findI2CBuses() ([]i2cBusInfo, error) {
	// Look for /dev/i2c-* devices
	matches, err := filepath.Glob("/dev/i2c-*")
	if err != nil {
		return nil, fmt.Errorf("failed to scan for I2C devices: %w", err)
	}

	// Pre-allocate slice with capacity equal to the number of glob matches
	buses := make([]i2cBusInfo, 0, len(matches))

	for _, path := range matches {
		// Extract bus number from path
		var busNum int
		if _, err := fmt.Sscanf(filepath.Base(path), "i2c-%d", &busNum); err != nil {
			continue
		}

		fd, err := unix.Open(path, unix.O_RDWR, 0)
		if err != nil {
			continue
		}

		// Check I2C functionality
		funcs, err := unix.IoctlGetUint32(fd, I2CFuncs)
		_ = unix.Close(fd)
		if err != nil || funcs&I2CFuncI2C == 0 {
			continue
		}

		buses = append(buses, i2cBusInfo{
			Path:   path,
			Number: busNum,
		})
	}

	return buses, nil
}

// scanI2CBus returns the addresses of the FRAM range that answer a
// one-byte read
func scanI2CBus(ctx context.Context, busPath string) []uint8 {
	var found []uint8

	fd, err := unix.Open(busPath, unix.O_RDWR, 0)
	if err != nil {
		return found
	}
	defer func() { _ = unix.Close(fd) }()

	buf := make([]byte, 1)
	for addr := uint8(FirstFRAMAddress); addr <= LastFRAMAddress; addr++ {
		if ctx.Err() != nil {
			break
		}
		if err := unix.IoctlSetInt(fd, I2CSlave, int(addr)); err != nil {
			continue
		}
		if _, err := unix.Read(fd, buf); err == nil {
			found = append(found, addr)
		}
	}

	return found
}
