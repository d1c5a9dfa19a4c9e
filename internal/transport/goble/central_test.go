package goble

import (
	"context"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joyfulhouse/lamotte-spintouch/internal/testutils"
)

// fakeDevice stands in for the BLE adapter. Only Scan is implemented;
// it replays the staged advertisements from a separate goroutine the
// way the real stack delivers callbacks, then blocks until the scan
// context ends.
type fakeDevice struct {
	ble.Device
	advs []ble.Advertisement
}

func (d *fakeDevice) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	replayed := make(chan struct{})
	go func() {
		defer close(replayed)
		for _, adv := range d.advs {
			h(adv)
		}
	}()
	<-replayed
	<-ctx.Done()
	return ctx.Err()
}

func withFakeDevice(t *testing.T, dev *fakeDevice) *Central {
	t.Helper()
	prev := DeviceFactory
	DeviceFactory = func() (ble.Device, error) { return dev, nil }
	t.Cleanup(func() { DeviceFactory = prev })
	return NewCentral(nil)
}

// GOAL: Verify a visibility probe spots the target among concurrently
// delivered advertisements and stops the scan early.
func TestIsAdvertisingFindsTarget(t *testing.T) {
	dev := &fakeDevice{advs: []ble.Advertisement{
		testutils.NewAdvertisementBuilder().WithAddress("11:22:33:44:55:66").Build(),
		testutils.NewAdvertisementBuilder().WithAddress("AA:BB:CC:DD:EE:FF").Build(),
	}}
	central := withFakeDevice(t, dev)

	visible, err := central.IsAdvertising(context.Background(), "aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)
	assert.True(t, visible, "the probe MUST match addresses case-insensitively")
}

// GOAL: Verify a probe that never sees the target reports not visible
// once the scan window closes.
func TestIsAdvertisingTargetAbsent(t *testing.T) {
	dev := &fakeDevice{advs: []ble.Advertisement{
		testutils.NewAdvertisementBuilder().WithAddress("11:22:33:44:55:66").Build(),
	}}
	central := withFakeDevice(t, dev)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	visible, err := central.IsAdvertising(ctx, "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	assert.False(t, visible, "an absent instrument MUST be reported not visible")
}

func TestNormalizeAddr(t *testing.T) {
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", normalizeAddr(" aa:bb:cc:dd:ee:ff "))
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", normalizeAddr("AA:BB:CC:DD:EE:FF"))
}
