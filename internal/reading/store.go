// Package reading holds the most recent validated reading for an
// instrument and computes derived quantities on demand.
package reading

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/joyfulhouse/lamotte-spintouch/internal/protocol"
)

// ChangeCallback is invoked after the store accepts a new reading.
type ChangeCallback func(*protocol.Reading)

// Store keeps the latest validated reading plus the previous reading's
// device timestamp for de-duplication. One Store per managed instrument;
// safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	current *protocol.Reading
	subs    []ChangeCallback
	logger  *logrus.Logger
}

// NewStore creates an empty reading store.
func NewStore(logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	return &Store{logger: logger}
}

// Current returns the most recent accepted reading, or nil before the
// first successful decode.
func (s *Store) Current() *protocol.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update stores a new reading unless its device timestamp matches the
// previous reading's timestamp. The duplicate case is an idempotence
// guarantee, not an error: it reports false and triggers no notification.
func (s *Store) Update(r *protocol.Reading) bool {
	if r == nil {
		return false
	}

	s.mu.Lock()
	if s.current != nil && s.current.Timestamp == r.Timestamp {
		s.mu.Unlock()
		s.logger.WithField("timestamp", r.Timestamp.String()).Debug("Duplicate reading discarded")
		return false
	}
	s.current = r
	subs := make([]ChangeCallback, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"timestamp": r.Timestamp.String(),
		"series":    r.Series,
		"params":    r.ParamCount(),
	}).Info("New reading stored")

	for _, fn := range subs {
		fn(r)
	}
	return true
}

// OnChange registers a callback invoked for every accepted reading.
// Callbacks run on the updater's goroutine, outside the store lock.
func (s *Store) OnChange(fn ChangeCallback) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}
