//go:build integration

package fram_test

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	fram "github.com/jakubarm/go-fram"
	"github.com/jakubarm/go-fram/config"
	testutil "github.com/jakubarm/go-fram/internal/testing"
	"github.com/jakubarm/go-fram/snapshot"
	"github.com/jakubarm/go-fram/transport/i2c"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profiles = `
devices:
  - name: primary
    address: 0x50
    page_size: 16
    write_delay: 0s
  - name: spare
    address: 0x54
    size: 512
    page_size: 32
    write_delay: 0s
`

// TestProfileToSnapshotWorkflow copies one chip to another the way a
// provisioning station would
func TestProfileToSnapshotWorkflow(t *testing.T) {
	t.Parallel()

	file, err := config.Parse([]byte(profiles))
	require.NoError(t, err)

	primaryProfile, err := file.Profile("primary")
	require.NoError(t, err)
	spareProfile, err := file.Profile("spare")
	require.NoError(t, err)

	primaryBus := fram.NewVirtualBus(primaryProfile.Address, primaryProfile.Size, primaryProfile.PageSize)
	spareBus := fram.NewVirtualBus(spareProfile.Address, spareProfile.Size, spareProfile.PageSize)

	primary, err := primaryProfile.Open(primaryBus)
	require.NoError(t, err)
	spare, err := spareProfile.Open(spareBus)
	require.NoError(t, err)

	ctx := context.Background()
	record := testutil.Pattern(300, 11)
	require.NoError(t, primary.WriteContext(ctx, 100, record))

	img, err := snapshot.Capture(ctx, fram.NewSyncDevice(primary))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, snapshot.Encode(&buf, img))
	decoded, err := snapshot.Decode(&buf)
	require.NoError(t, err)

	require.NoError(t, snapshot.Restore(ctx, spare, decoded))
	assert.Equal(t, primaryBus.Memory(), spareBus.Memory())
	assert.Empty(t, primaryBus.Violations())
	assert.Empty(t, spareBus.Violations())
}

// TestHardwareRoundTrip runs against a real chip when FRAM_I2C_BUS names
// the bus it is attached to
func TestHardwareRoundTrip(t *testing.T) {
	busName := os.Getenv("FRAM_I2C_BUS")
	if busName == "" {
		t.Skip("FRAM_I2C_BUS not set")
	}

	transport, err := i2c.New(busName)
	require.NoError(t, err)
	defer func() { _ = transport.Close() }()

	device, err := fram.New(transport, fram.DefaultAddress, fram.MaxSize, fram.WithTimeout(time.Second))
	require.NoError(t, err)
	require.NoError(t, device.Init())

	// Keep the user's data: save the region and put it back afterwards
	const addr = 0x0F8
	saved := make([]byte, 16)
	require.NoError(t, device.Read(addr, saved))
	defer func() { _ = device.Write(addr, saved) }()

	want := testutil.Pattern(16, byte(time.Now().UnixNano()))
	require.NoError(t, device.Write(addr, want))

	got := make([]byte, len(want))
	require.NoError(t, device.Read(addr, got))
	assert.Equal(t, want, got)
}
