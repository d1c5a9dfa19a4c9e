// Package monitor orchestrates transport, lifecycle and reading storage
// for SpinTouch instruments.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"

	"github.com/joyfulhouse/lamotte-spintouch/internal/lifecycle"
	"github.com/joyfulhouse/lamotte-spintouch/internal/reading"
	"github.com/joyfulhouse/lamotte-spintouch/internal/transport"
	"github.com/joyfulhouse/lamotte-spintouch/internal/transport/goble"
)

// Central is the transport surface the monitor needs: the lifecycle
// contract plus a blocking advertisement watch.
type Central interface {
	transport.Central
	Run(ctx context.Context) error
}

// CentralFactory creates the BLE central (can be overridden in tests)
var CentralFactory = func(logger *logrus.Logger) Central {
	return goble.NewCentral(logger)
}

// ProgressCallback is called when the monitor phase changes
type ProgressCallback func(phase string)

// applyMonitorDefaults fills zero-valued option fields from the
// struct's default tags.
func applyMonitorDefaults(opts *MonitorOptions) {
	defaults.SetDefaults(opts)
}

// MonitorOptions contains all the configuration for running a monitor
type MonitorOptions struct {
	Address            string         // instrument BLE address
	DisconnectDelay    time.Duration  `default:"10s"` // link hold after a read
	ReconnectDelay     time.Duration  `default:"5m"`  // yield window
	VisibilityInterval time.Duration  `default:"30s"` // probe period after failure
	ConnectTimeout     time.Duration  `default:"30s"`
	Logger             *logrus.Logger // logger instance
}

// Session is the running monitor handed to the callback.
type Session interface {
	Address() string
	State() lifecycle.State
	Readings() *reading.Store
	ForceReconnect()
	OnStateChange(fn func(lifecycle.State))
}

// MonitorCallback is executed with the running session (mirrors the
// shape of scanner progress callbacks: the callback owns the blocking).
type MonitorCallback[R any] func(Session) (R, error)

type session struct {
	address string
	machine *lifecycle.Machine
	store   *reading.Store
}

func (s *session) Address() string                        { return s.address }
func (s *session) State() lifecycle.State                 { return s.machine.State() }
func (s *session) Readings() *reading.Store               { return s.store }
func (s *session) ForceReconnect()                        { s.machine.ForceReconnect() }
func (s *session) OnStateChange(fn func(lifecycle.State)) { s.machine.OnStateChange(fn) }

// RunDeviceMonitor starts the lifecycle for one instrument and executes
// the callback with the running session. The lifecycle is torn down when
// the callback returns. Blocking is owned by the callback: return only
// when done (or watch ctx yourself).
func RunDeviceMonitor[R any](
	ctx context.Context,
	opts *MonitorOptions,
	progressCallback ProgressCallback,
	callback MonitorCallback[R],
) (R, error) {
	var zero R

	if opts == nil {
		return zero, fmt.Errorf("failed to run monitor: options are required")
	}
	if opts.Address == "" {
		return zero, fmt.Errorf("failed to run monitor: instrument address is required")
	}
	applyMonitorDefaults(opts)

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	if progressCallback == nil {
		progressCallback = func(string) {} // No-op callback
	}

	monitorCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	progressCallback("Starting")

	central := CentralFactory(logger)
	store := reading.NewStore(logger)
	machine := lifecycle.NewMachine(lifecycle.Config{
		DeviceID:           opts.Address,
		DisconnectDelay:    opts.DisconnectDelay,
		ReconnectDelay:     opts.ReconnectDelay,
		VisibilityInterval: opts.VisibilityInterval,
		ConnectTimeout:     opts.ConnectTimeout,
	}, central, store, logger)

	if err := machine.Start(monitorCtx); err != nil {
		progressCallback("Failed")
		return zero, fmt.Errorf("failed to start lifecycle for %s: %w", opts.Address, err)
	}
	defer machine.Stop()

	// Advertisement watch feeds the machine until the monitor stops.
	go func() {
		if err := central.Run(monitorCtx); err != nil {
			logger.WithError(err).Error("Advertisement watch terminated")
		}
	}()

	progressCallback("Monitoring")

	return callback(&session{
		address: opts.Address,
		machine: machine,
		store:   store,
	})
}
