package scanner

import (
	"testing"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joyfulhouse/lamotte-spintouch/internal/testutils"
	"github.com/joyfulhouse/lamotte-spintouch/internal/transport"
)

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestNewScanner(t *testing.T) {
	t.Run("creates scanner with provided logger", func(t *testing.T) {
		s, err := NewScanner(discardLogger())
		require.NoError(t, err)
		require.NotNil(t, s)
	})

	t.Run("creates scanner with nil logger", func(t *testing.T) {
		s, err := NewScanner(nil)
		require.NoError(t, err)
		require.NotNil(t, s)
	})
}

// GOAL: Verify only instruments advertising the SpinTouch service or
// name prefix pass the default filter.
func TestSpinTouchFilter(t *testing.T) {
	tests := []struct {
		name     string
		adv      *testutils.FakeAdvertisement
		included bool
	}{
		{
			name: "matches by service UUID",
			adv: testutils.NewAdvertisementBuilder().
				WithAddress("AA:BB:CC:DD:EE:01").
				WithName("unnamed").
				WithServices(transport.ServiceUUID).
				Build(),
			included: true,
		},
		{
			name: "matches by local name prefix",
			adv: testutils.NewAdvertisementBuilder().
				WithAddress("AA:BB:CC:DD:EE:02").
				WithName("SpinTouch 1234").
				Build(),
			included: true,
		},
		{
			name: "rejects unrelated peripheral",
			adv: testutils.NewAdvertisementBuilder().
				WithAddress("AA:BB:CC:DD:EE:03").
				WithName("Heart Rate Monitor").
				WithServices("180D").
				Build(),
			included: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.included, isSpinTouch(tt.adv),
				"filter decision MUST match for %s", tt.adv.LocalName())
		})
	}
}

// GOAL: Verify allow/block lists override the instrument filter and
// compare addresses case-insensitively.
func TestScannerListFiltering(t *testing.T) {
	spin := testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:FF").
		WithName("SpinTouch 1234").
		WithServices(transport.ServiceUUID).
		Build()
	other := testutils.NewAdvertisementBuilder().
		WithAddress("11:22:33:44:55:66").
		WithName("Something Else").
		Build()

	s, err := NewScanner(discardLogger())
	require.NoError(t, err)

	t.Run("block list excludes a matching instrument", func(t *testing.T) {
		opts := &ScanOptions{BlockList: []string{"aa:bb:cc:dd:ee:ff"}}
		assert.False(t, s.shouldInclude(spin, opts),
			"blocked instrument MUST be excluded regardless of filter match")
	})

	t.Run("allow list admits only listed addresses", func(t *testing.T) {
		opts := &ScanOptions{AllowList: []string{"AA:BB:CC:DD:EE:FF"}, AllInstruments: true}
		assert.True(t, s.shouldInclude(spin, opts), "listed address MUST be included")
		assert.False(t, s.shouldInclude(other, opts), "unlisted address MUST be excluded")
	})

	t.Run("all-instruments bypasses the SpinTouch filter", func(t *testing.T) {
		opts := &ScanOptions{AllInstruments: true}
		assert.True(t, s.shouldInclude(other, opts),
			"non-SpinTouch device MUST be included when AllInstruments is set")
	})
}

// GOAL: Verify repeat advertisements update the snapshot and are
// reported as EventUpdated, not rediscovered.
func TestScannerEventStream(t *testing.T) {
	s, err := NewScanner(discardLogger())
	require.NoError(t, err)
	s.instruments = hashmap.New[string, Instrument]()
	s.scanOptions = DefaultScanOptions()

	first := testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:FF").
		WithName("SpinTouch 1234").
		WithRSSI(-50).
		WithServices(transport.ServiceUUID).
		Build()
	second := testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:FF").
		WithName("SpinTouch 1234").
		WithRSSI(-61).
		WithServices(transport.ServiceUUID).
		Build()

	s.handleAdvertisement(first)
	s.handleAdvertisement(second)

	ev1 := <-s.Events()
	assert.Equal(t, EventNew, ev1.Type, "first advertisement MUST be reported as new")
	assert.Equal(t, -50, ev1.Instrument.RSSI)

	ev2 := <-s.Events()
	assert.Equal(t, EventUpdated, ev2.Type, "repeat advertisement MUST be reported as update")
	assert.Equal(t, -61, ev2.Instrument.RSSI, "snapshot MUST carry the latest RSSI")

	got, ok := s.instruments.Get("AA:BB:CC:DD:EE:FF")
	require.True(t, ok, "instrument MUST be tracked by address")
	assert.Equal(t, -61, got.RSSI)
}
