// Package scanner discovers SpinTouch instruments over BLE.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cornelk/hashmap"
	blelib "github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/joyfulhouse/lamotte-spintouch/internal/ringchan"
	"github.com/joyfulhouse/lamotte-spintouch/internal/transport"
	"github.com/joyfulhouse/lamotte-spintouch/internal/transport/goble"
)

// InstrumentNamePrefix is the local-name prefix SpinTouch instruments
// advertise with.
const InstrumentNamePrefix = "SpinTouch"

// ProgressCallback is called when the scan phase changes
type ProgressCallback func(phase string)

// InstrumentEventType marks if the instrument was newly discovered or updated
type InstrumentEventType int

const (
	EventNew InstrumentEventType = iota
	EventUpdated
)

// Instrument is a discovery snapshot for one advertising device.
type Instrument struct {
	Address     string
	Name        string
	RSSI        int
	Connectable bool
	LastSeen    time.Time
}

type InstrumentEvent struct {
	Type       InstrumentEventType
	Instrument Instrument
}

// Scanner handles SpinTouch instrument discovery
type Scanner struct {
	instruments *hashmap.Map[string, Instrument]
	events      *ringchan.RingChannel[InstrumentEvent]
	logger      *logrus.Logger

	scanOptions *ScanOptions
}

// ScanOptions configures scanning behavior
type ScanOptions struct {
	Duration        time.Duration
	DuplicateFilter bool

	// AllInstruments disables the SpinTouch service/name filter and
	// reports every advertising device.
	AllInstruments bool

	AllowList []string
	BlockList []string
}

// DefaultScanOptions returns default scanning options
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		Duration:        10 * time.Second,
		DuplicateFilter: true,
	}
}

// NewScanner creates a new instrument scanner
func NewScanner(logger *logrus.Logger) (*Scanner, error) {
	if logger == nil {
		logger = logrus.New()
	}

	return &Scanner{
		events: ringchan.New[InstrumentEvent](100),
		logger: logger,
	}, nil
}

// Scan performs BLE discovery with provided options
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions, progressCallback ProgressCallback) (map[string]Instrument, error) {
	s.instruments = hashmap.New[string, Instrument]()

	if opts == nil {
		opts = DefaultScanOptions()
	}
	if progressCallback == nil {
		progressCallback = func(string) {} // No-op callback
	}

	s.logger.WithField("duration", opts.Duration).Info("Starting instrument scan...")

	progressCallback("Scanning")

	dev, err := goble.DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}

	scanCtx := ctx
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	s.scanOptions = opts
	defer func() {
		s.scanOptions = nil
	}()
	err = dev.Scan(scanCtx, !opts.DuplicateFilter, s.handleAdvertisement)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	s.logger.WithField("instrument_count", s.instruments.Len()).Info("Instrument scan completed")

	progressCallback("Processing results")

	instruments := make(map[string]Instrument, s.instruments.Len())
	s.instruments.Range(func(key string, value Instrument) bool {
		instruments[key] = value
		return true
	})

	return instruments, nil
}

// handleAdvertisement updates existing or adds a new instrument
func (s *Scanner) handleAdvertisement(adv blelib.Advertisement) {
	address := strings.ToUpper(adv.Addr().String())

	_, existing := s.instruments.Get(address)
	if !existing && !s.shouldInclude(adv, s.scanOptions) {
		return
	}

	snapshot := Instrument{
		Address:     address,
		Name:        adv.LocalName(),
		RSSI:        adv.RSSI(),
		Connectable: adv.Connectable(),
		LastSeen:    time.Now(),
	}
	s.instruments.Set(address, snapshot)

	event := InstrumentEvent{Instrument: snapshot}
	if existing {
		event.Type = EventUpdated
	} else {
		s.logger.WithFields(logrus.Fields{
			"instrument": snapshot.Name,
			"address":    snapshot.Address,
			"rssi":       snapshot.RSSI,
		}).Info("Discovered instrument")
		event.Type = EventNew
	}

	s.events.Send(event)
}

// shouldInclude applies allow/block lists plus the SpinTouch filter
func (s *Scanner) shouldInclude(adv blelib.Advertisement, opts *ScanOptions) bool {
	addr := strings.ToUpper(adv.Addr().String())

	for _, blocked := range opts.BlockList {
		if addr == strings.ToUpper(blocked) {
			return false
		}
	}

	if len(opts.AllowList) > 0 {
		allowed := false
		for _, a := range opts.AllowList {
			if addr == strings.ToUpper(a) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	if opts.AllInstruments {
		return true
	}
	return isSpinTouch(adv)
}

// isSpinTouch matches the advertised service UUID or the local-name
// prefix, either is sufficient.
func isSpinTouch(adv blelib.Advertisement) bool {
	if strings.HasPrefix(adv.LocalName(), InstrumentNamePrefix) {
		return true
	}
	want := transport.NormalizeUUID(transport.ServiceUUID)
	for _, svc := range adv.Services() {
		if transport.NormalizeUUID(svc.String()) == want {
			return true
		}
	}
	return false
}

// Events returns a read-only channel of instrument events
func (s *Scanner) Events() <-chan InstrumentEvent {
	return s.events.C()
}
