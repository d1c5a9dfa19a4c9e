// Package timers provides named, cancellable delayed callbacks with
// last-writer-wins semantics per name.
package timers

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Manager owns a set of named timers. Scheduling under a name that already
// has a live timer cancels the old one first, so at most one timer per name
// is ever armed. Callbacks fire on their own goroutine; callers that need
// serialization should enqueue an event from the callback rather than
// mutating state directly.
type Manager struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	logger *logrus.Logger
}

// NewManager creates an empty timer manager.
func NewManager(logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		timers: make(map[string]*time.Timer),
		logger: logger,
	}
}

// Schedule arms a timer under the given name, cancelling any existing
// timer with the same name first (restart behavior).
func (m *Manager) Schedule(name string, delay time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelLocked(name)

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		m.mu.Lock()
		// A reschedule or cancel may have raced the firing; only the timer
		// still registered under this name is allowed to run its callback.
		live := m.timers[name] == t
		if live {
			delete(m.timers, name)
		}
		m.mu.Unlock()
		if live {
			fn()
		}
	})
	m.timers[name] = t

	m.logger.WithFields(logrus.Fields{
		"timer": name,
		"delay": delay,
	}).Debug("Timer scheduled")
}

// Cancel stops a scheduled timer. Returns true if a timer was cancelled.
func (m *Manager) Cancel(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelLocked(name)
}

func (m *Manager) cancelLocked(name string) bool {
	timer, ok := m.timers[name]
	if !ok {
		return false
	}
	timer.Stop()
	delete(m.timers, name)
	m.logger.WithField("timer", name).Debug("Timer cancelled")
	return true
}

// CancelAll cancels every pending timer. Used on teardown so no callback
// fires after the owner's state is discarded.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name := range m.timers {
		m.cancelLocked(name)
	}
}

// IsActive reports whether a timer is currently armed under the name.
func (m *Manager) IsActive(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[name]
	return ok
}
