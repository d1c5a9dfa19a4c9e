package monitor

import (
	"context"
	"fmt"
	"strings"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/joyfulhouse/lamotte-spintouch/internal/lifecycle"
	"github.com/joyfulhouse/lamotte-spintouch/internal/reading"
)

// Fleet manages lifecycles for several instruments over one shared
// central. Each instrument gets its own machine and store; there is no
// cross-instrument state beyond the adapter itself.
type Fleet struct {
	central Central
	logger  *logrus.Logger
	members *hashmap.Map[string, *session]
}

// NewFleet creates an empty fleet on the given central.
func NewFleet(central Central, logger *logrus.Logger) *Fleet {
	if logger == nil {
		logger = logrus.New()
	}
	return &Fleet{
		central: central,
		logger:  logger,
		members: hashmap.New[string, *session](),
	}
}

// Add starts monitoring an instrument. The address is the registry key,
// compared case-insensitively.
func (f *Fleet) Add(ctx context.Context, opts *MonitorOptions) (Session, error) {
	if opts == nil || opts.Address == "" {
		return nil, fmt.Errorf("failed to add instrument: address is required")
	}
	key := strings.ToUpper(opts.Address)
	if _, exists := f.members.Get(key); exists {
		return nil, fmt.Errorf("instrument %s is already monitored", key)
	}

	applied := *opts
	applyMonitorDefaults(&applied)

	store := reading.NewStore(f.logger)
	machine := lifecycle.NewMachine(lifecycle.Config{
		DeviceID:           key,
		DisconnectDelay:    applied.DisconnectDelay,
		ReconnectDelay:     applied.ReconnectDelay,
		VisibilityInterval: applied.VisibilityInterval,
		ConnectTimeout:     applied.ConnectTimeout,
	}, f.central, store, f.logger)

	s := &session{address: key, machine: machine, store: store}
	f.members.Set(key, s)

	if err := machine.Start(ctx); err != nil {
		f.members.Del(key)
		return nil, fmt.Errorf("failed to start lifecycle for %s: %w", key, err)
	}

	f.logger.WithField("address", key).Info("Instrument added to fleet")
	return s, nil
}

// Get returns the session for an address, if monitored.
func (f *Fleet) Get(address string) (Session, bool) {
	s, ok := f.members.Get(strings.ToUpper(address))
	if !ok {
		return nil, false
	}
	return s, true
}

// Remove stops monitoring an instrument and tears down its lifecycle.
func (f *Fleet) Remove(address string) bool {
	key := strings.ToUpper(address)
	s, ok := f.members.Get(key)
	if !ok {
		return false
	}
	f.members.Del(key)
	s.machine.Stop()
	f.logger.WithField("address", key).Info("Instrument removed from fleet")
	return true
}

// Len reports how many instruments are monitored.
func (f *Fleet) Len() int {
	return f.members.Len()
}

// Each calls fn for every monitored session.
func (f *Fleet) Each(fn func(Session) bool) {
	f.members.Range(func(_ string, s *session) bool {
		return fn(s)
	})
}

// StopAll tears down every member.
func (f *Fleet) StopAll() {
	f.members.Range(func(key string, s *session) bool {
		f.members.Del(key)
		s.machine.Stop()
		return true
	})
}
