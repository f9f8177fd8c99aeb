// Package testing holds fixtures shared by the package tests
package testing

// Test chip geometry matching an MB85RC04V
const (
	ChipAddr     = 0x50
	ChipSize     = 512
	ChipPageSize = 8
)

// DeviceAddressByte builds the expected first byte of a transaction, worked
// out independently from the driver: 1010 A2 A1 P R/W for the MB85RC04V
func DeviceAddressByte(base uint8, memAddr uint16, read bool) byte {
	b := base << 1
	if memAddr >= 0x100 {
		b |= 0x02
	}
	if read {
		b |= 0x01
	}
	return b
}

// Sequence returns n bytes counting up from 0, wrapping at 256
func Sequence(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i)
	}
	return out
}

// Pattern returns n bytes of a seeded, non-monotonic pattern
func Pattern(n int, seed byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i*7+int(seed)) ^ 0x5A
	}
	return out
}

// Blank returns n bytes of erased memory
func Blank(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = 0xFF
	}
	return out
}
