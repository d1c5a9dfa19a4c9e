// Package lifecycle implements the per-instrument connection state
// machine: when to connect, when to let go so the vendor app can claim
// the device, and how to recover from drops and connect failures.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joyfulhouse/lamotte-spintouch/internal/protocol"
	"github.com/joyfulhouse/lamotte-spintouch/internal/reading"
	"github.com/joyfulhouse/lamotte-spintouch/internal/ringchan"
	"github.com/joyfulhouse/lamotte-spintouch/internal/timers"
	"github.com/joyfulhouse/lamotte-spintouch/internal/transport"
)

// Timer names used by the machine. One Manager per machine, so names
// only need to be unique within it.
const (
	timerDisconnect = "disconnect"
	timerReconnect  = "reconnect"
	timerVisibility = "visibility"
)

const (
	// DefaultDisconnectDelay is how long a healthy link is held open
	// after a successful read before yielding it.
	DefaultDisconnectDelay = 10 * time.Second

	// DefaultReconnectDelay is the yield window during which new
	// advertisements are ignored so the vendor app gets exclusive access.
	DefaultReconnectDelay = 5 * time.Minute

	// DefaultVisibilityInterval is the probe period after a failure.
	DefaultVisibilityInterval = 30 * time.Second

	// maxDecodeFailures forces a clean reconnect after this many
	// consecutive malformed records on one connection.
	maxDecodeFailures = 3

	ioTimeout       = 10 * time.Second
	advQueueSize    = 64
	controlChanSize = 16
	ackPayloadByte  = 0x01
)

// Config tunes a Machine. Zero durations fall back to the defaults.
type Config struct {
	DeviceID string

	DisconnectDelay    time.Duration
	ReconnectDelay     time.Duration
	VisibilityInterval time.Duration
	ConnectTimeout     time.Duration
}

func (c *Config) applyDefaults() {
	if c.DisconnectDelay <= 0 {
		c.DisconnectDelay = DefaultDisconnectDelay
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.VisibilityInterval <= 0 {
		c.VisibilityInterval = DefaultVisibilityInterval
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = transport.DefaultConnectTimeout
	}
}

// Machine drives the connection lifecycle for one instrument. All
// stimuli (advertisements, link drops, notifications, timers, API
// calls) are converted to events drained by a single goroutine, so
// handlers never race. Advertisements ride a lossy overwrite-oldest
// ring; control events use a channel that never drops, so a connect
// result or a stop cannot be flooded away by a chatty instrument.
type Machine struct {
	cfg     Config
	central transport.Central
	store   *reading.Store
	timers  *timers.Manager
	logger  *logrus.Entry

	adverts *ringchan.RingChannel[struct{}]
	control chan event
	stop    chan struct{}

	// run-loop private, never touched from outside the loop
	state          State
	connectGen     int
	decodeFailures int

	// published snapshot for State()
	mu        sync.Mutex
	snapshot  State
	listeners []func(State)

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	started  bool
}

// NewMachine wires a machine to a transport and a reading store. The
// store may be shared with other consumers; the machine is its only
// writer.
func NewMachine(cfg Config, central transport.Central, store *reading.Store, logger *logrus.Logger) *Machine {
	cfg.applyDefaults()
	if logger == nil {
		logger = logrus.New()
	}
	return &Machine{
		cfg:     cfg,
		central: central,
		store:   store,
		timers:  timers.NewManager(logger),
		logger:  logger.WithField("device", cfg.DeviceID),
		adverts: ringchan.New[struct{}](advQueueSize),
		control: make(chan event, controlChanSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// OnStateChange registers a callback invoked from the run loop on every
// transition. Register before Start.
func (m *Machine) OnStateChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// State returns the last published state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// Start registers transport handlers and launches the run loop.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return transport.Errorf(transport.Unavailable, "lifecycle for %s already started", m.cfg.DeviceID)
	}
	m.started = true
	m.mu.Unlock()

	m.ctx, m.cancel = context.WithCancel(ctx)

	m.central.RegisterAdvertisementHandler(m.cfg.DeviceID, func() {
		m.adverts.Send(struct{}{})
	})
	m.central.RegisterDisconnectHandler(m.cfg.DeviceID, func() {
		m.sendControl(event{kind: evLinkDropped})
	})

	go m.run()
	m.logger.WithFields(logrus.Fields{
		"disconnect_delay":    m.cfg.DisconnectDelay,
		"reconnect_delay":     m.cfg.ReconnectDelay,
		"visibility_interval": m.cfg.VisibilityInterval,
	}).Info("Lifecycle started, waiting for instrument to advertise")
	return nil
}

// Stop cancels all timers, tears down any live link and terminates the
// run loop. Delivered out-of-band via a closed channel, so it goes
// through no matter how backed up the event traffic is. Safe to call
// more than once after Start.
func (m *Machine) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

// ForceReconnect short-circuits the yield window and any poll timer and
// immediately attempts a connection. Accepted in every state.
func (m *Machine) ForceReconnect() {
	m.sendControl(event{kind: evForceReconnect})
}

// sendControl hands a control event to the run loop. Control events are
// never dropped; the sender parks until the loop takes the event or the
// machine stops.
func (m *Machine) sendControl(ev event) {
	select {
	case m.control <- ev:
	case <-m.stop:
	}
}

func (m *Machine) run() {
	defer close(m.done)
	for {
		// Checked first so a stop wins over pending traffic.
		select {
		case <-m.stop:
			m.shutdown()
			return
		default:
		}

		select {
		case <-m.stop:
			m.shutdown()
			return
		case ev := <-m.control:
			m.dispatch(ev)
		case <-m.adverts.C():
			m.onAdvertisement()
		}
	}
}

func (m *Machine) dispatch(ev event) {
	switch ev.kind {
	case evConnectResult:
		m.onConnectResult(ev)
	case evNotification:
		m.onStatusNotification(ev.data)
	case evLinkDropped:
		m.onLinkDropped()
	case evTimerFired:
		m.onTimerFired(ev.timer)
	case evForceReconnect:
		m.onForceReconnect()
	}
}

func (m *Machine) setState(s State) {
	if s == m.state {
		return
	}
	m.logger.WithFields(logrus.Fields{
		"from": m.state,
		"to":   s,
	}).Debug("State transition")
	m.state = s

	m.mu.Lock()
	m.snapshot = s
	listeners := make([]func(State), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
}

func (m *Machine) onAdvertisement() {
	switch m.state {
	case StateDisconnected:
		if m.timers.IsActive(timerReconnect) {
			m.logger.Debug("Advertisement ignored, yield window active")
			return
		}
		m.beginConnect()
	case StateVisibilityPolling:
		// The instrument advertised on its own, no need to wait for
		// the next poll tick.
		m.timers.Cancel(timerVisibility)
		m.beginConnect()
	case StateConnecting, StateConnected:
		// no-op, never queued
	}
}

// beginConnect launches an async connect attempt. The result comes back
// as an event tagged with a generation counter so a result from an
// abandoned attempt is recognized as stale.
func (m *Machine) beginConnect() {
	m.timers.Cancel(timerReconnect)
	m.timers.Cancel(timerVisibility)
	m.decodeFailures = 0
	m.setState(StateConnecting)

	m.connectGen++
	gen := m.connectGen
	go func() {
		ctx, cancel := context.WithTimeout(m.ctx, m.cfg.ConnectTimeout)
		defer cancel()
		err := m.central.Connect(ctx, m.cfg.DeviceID)
		m.sendControl(event{kind: evConnectResult, err: err, gen: gen})
	}()
}

func (m *Machine) onConnectResult(ev event) {
	if m.state != StateConnecting || ev.gen != m.connectGen {
		// Stale result from an attempt that was superseded. Tear the
		// link down if it actually came up.
		if ev.err == nil {
			_ = m.central.Disconnect(m.cfg.DeviceID)
		}
		return
	}

	if ev.err != nil {
		m.logger.WithError(ev.err).Warn("Connect attempt failed")
		m.enterVisibilityPolling()
		return
	}

	if err := m.central.Subscribe(m.cfg.DeviceID, transport.StatusCharUUID, func(data []byte) {
		m.sendControl(event{kind: evNotification, data: data})
	}); err != nil {
		m.logger.WithError(err).Warn("Status subscription failed, dropping link")
		_ = m.central.Disconnect(m.cfg.DeviceID)
		m.enterVisibilityPolling()
		return
	}

	m.setState(StateConnected)
	m.logger.Info("Instrument connected, listening for test results")
}

func (m *Machine) onStatusNotification(data []byte) {
	if m.state != StateConnected || len(data) == 0 {
		return
	}

	status := protocol.Status(data[0])
	if status != protocol.StatusTestComplete {
		m.logger.WithField("status", status.String()).Debug("Instrument status")
		return
	}

	m.readResult()
}

// readResult performs the read-decode-ack cycle inline on the run loop,
// which keeps it serialized with every other transition.
func (m *Machine) readResult() {
	ctx, cancel := context.WithTimeout(m.ctx, ioTimeout)
	defer cancel()

	raw, err := m.central.Read(ctx, m.cfg.DeviceID, transport.ResultCharUUID)
	if err != nil {
		m.logger.WithError(err).Warn("Result read failed")
		return
	}

	rec, err := protocol.Decode(raw)
	if err != nil {
		m.decodeFailures++
		m.logger.WithError(err).WithField("failures", m.decodeFailures).
			Warn("Malformed result record, previous reading retained")
		if m.decodeFailures >= maxDecodeFailures {
			m.logger.Warn("Repeated decode failures, forcing clean reconnect")
			m.timers.Cancel(timerDisconnect)
			_ = m.central.Disconnect(m.cfg.DeviceID)
			m.setState(StateDisconnected)
		}
		return
	}
	m.decodeFailures = 0

	// Ack even when the reading turns out to be a duplicate, the
	// instrument resends until acknowledged.
	if err := m.central.Write(ctx, m.cfg.DeviceID, transport.AckCharUUID, []byte{ackPayloadByte}); err != nil {
		m.logger.WithError(err).Warn("Result ack failed")
	}

	if m.store.Update(rec) {
		m.logger.WithFields(logrus.Fields{
			"timestamp": rec.Timestamp.String(),
			"series":    rec.Series,
			"params":    rec.ParamCount(),
		}).Info("New test result stored")
	} else {
		m.logger.Debug("Duplicate test result, already stored")
	}

	// Hold the link briefly, then yield it to the vendor app.
	m.timers.Schedule(timerDisconnect, m.cfg.DisconnectDelay, func() {
		m.sendControl(event{kind: evTimerFired, timer: timerDisconnect})
	})
}

func (m *Machine) onTimerFired(name string) {
	switch name {
	case timerDisconnect:
		if m.state != StateConnected {
			return
		}
		if err := m.central.Disconnect(m.cfg.DeviceID); err != nil {
			m.logger.WithError(err).Warn("Yield disconnect failed")
		}
		m.setState(StateDisconnected)
		m.timers.Schedule(timerReconnect, m.cfg.ReconnectDelay, func() {
			m.sendControl(event{kind: evTimerFired, timer: timerReconnect})
		})
		m.logger.WithField("yield", m.cfg.ReconnectDelay).
			Info("Link yielded to other clients")

	case timerReconnect:
		// Yield window over, the next advertisement reconnects.
		m.logger.Debug("Yield window elapsed")

	case timerVisibility:
		if m.state != StateVisibilityPolling {
			return
		}
		m.pollVisibility()
	}
}

// pollVisibility probes whether the instrument is advertising. Runs
// inline so the scan result cannot interleave with other transitions.
func (m *Machine) pollVisibility() {
	ctx, cancel := context.WithTimeout(m.ctx, ioTimeout)
	defer cancel()

	visible, err := m.central.IsAdvertising(ctx, m.cfg.DeviceID)
	if err != nil {
		m.logger.WithError(err).Debug("Visibility probe failed")
	}
	if visible {
		m.logger.Info("Instrument visible again, reconnecting")
		m.beginConnect()
		return
	}
	m.timers.Schedule(timerVisibility, m.cfg.VisibilityInterval, func() {
		m.sendControl(event{kind: evTimerFired, timer: timerVisibility})
	})
}

func (m *Machine) onLinkDropped() {
	if m.state != StateConnected {
		// Drops for links we tore down ourselves are reported by some
		// adapters as well; only an established link counts.
		return
	}
	m.logger.Warn("Link dropped unexpectedly, polling for visibility")
	m.timers.Cancel(timerDisconnect)
	m.enterVisibilityPolling()
}

func (m *Machine) onForceReconnect() {
	m.logger.Info("Force reconnect requested")
	m.timers.CancelAll()
	if m.state == StateConnected || m.state == StateConnecting {
		_ = m.central.Disconnect(m.cfg.DeviceID)
	}
	m.beginConnect()
}

func (m *Machine) enterVisibilityPolling() {
	m.setState(StateVisibilityPolling)
	m.timers.Schedule(timerVisibility, m.cfg.VisibilityInterval, func() {
		m.sendControl(event{kind: evTimerFired, timer: timerVisibility})
	})
}

func (m *Machine) shutdown() {
	m.timers.CancelAll()
	if m.state == StateConnected || m.state == StateConnecting {
		_ = m.central.Disconnect(m.cfg.DeviceID)
	}
	m.setState(StateDisconnected)
	m.cancel()
	m.logger.Info("Lifecycle stopped")
}
