package main

import (
	"fmt"
	"sync/atomic"
	"time"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ProgressPrinter displays a progress line with the current phase and
// elapsed (or remaining) time.
//
// A ProgressPrinter is single-use: Start at most once, Stop exactly
// once. Stop is safe to call multiple times and from the phase
// callback.
type ProgressPrinter struct {
	prefix     string
	phase      atomic.Value        // current phase name
	stopPhases map[string]struct{} // phases that trigger a graceful shutdown
	startTime  time.Time
	ticker     atomic.Pointer[time.Ticker]
	stopChan   chan struct{}
	done       chan struct{}
	started    atomic.Bool
	countdown  time.Duration // zero means count up
}

// NewProgressPrinter creates a printer that shows elapsed time.
// stopPhases trigger automatic cleanup when reported via Callback.
func NewProgressPrinter(prefix, phase string, stopPhases ...string) *ProgressPrinter {
	return newProgressPrinter(prefix, phase, 0, stopPhases)
}

// NewCountdownProgressPrinter creates a printer that counts down from
// the given duration.
func NewCountdownProgressPrinter(prefix, phase string, duration time.Duration, stopPhases ...string) *ProgressPrinter {
	return newProgressPrinter(prefix, phase, duration, stopPhases)
}

func newProgressPrinter(prefix, phase string, countdown time.Duration, stopPhases []string) *ProgressPrinter {
	stopSet := make(map[string]struct{}, len(stopPhases))
	for _, p := range stopPhases {
		stopSet[p] = struct{}{}
	}
	p := &ProgressPrinter{
		prefix:     prefix,
		stopPhases: stopSet,
		countdown:  countdown,
	}
	p.phase.Store(phase)
	return p
}

// Start begins displaying progress updates in a background goroutine.
// Panics if called more than once.
func (p *ProgressPrinter) Start() {
	if !p.started.CompareAndSwap(false, true) {
		panic("ProgressPrinter.Start called more than once")
	}

	p.done = make(chan struct{})
	p.stopChan = make(chan struct{})
	p.startTime = time.Now()
	ticker := time.NewTicker(progressUpdateInterval)
	p.ticker.Store(ticker)

	fmt.Printf("\r%s (%s...)   ", p.prefix, p.phase.Load().(string))

	go p.loop(ticker)
}

func (p *ProgressPrinter) loop(ticker *time.Ticker) {
	defer close(p.done)

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			phase := p.phase.Load().(string)
			if _, stop := p.stopPhases[phase]; stop {
				return
			}

			elapsed := time.Since(p.startTime)
			var seconds int
			if p.countdown > 0 {
				if remaining := p.countdown - elapsed; remaining > 0 {
					seconds = int(remaining.Seconds() + 0.5)
				}
			} else {
				seconds = int(elapsed.Seconds())
			}

			if seconds > 0 {
				fmt.Printf("\r%s (%s %ds)   ", p.prefix, phase, seconds)
			} else {
				fmt.Printf("\r%s (%s...)   ", p.prefix, phase)
			}
		}
	}
}

// Callback returns a phase-update function safe for concurrent use.
// Reporting a stop phase stops the printer.
func (p *ProgressPrinter) Callback() func(phase string) {
	return func(phase string) {
		p.phase.Store(phase)
		if _, stop := p.stopPhases[phase]; stop {
			p.Stop()
		}
	}
}

// Stop stops the display and clears the line. Only the first call has
// an effect.
func (p *ProgressPrinter) Stop() {
	ticker := p.ticker.Swap(nil)
	if ticker == nil {
		return // Already stopped
	}

	ticker.Stop()
	close(p.stopChan)
	<-p.done

	fmt.Print(clearLineSequence)
}
