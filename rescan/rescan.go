// Package rescan provides the "burst of DOM mutations, one scan" loop
// shared by the tab agents. Triggers are coalesced with a single
// cancel-and-reschedule debounce timer — a new trigger supersedes the
// pending one, work is never queued — and a periodic fallback ticker
// guards against missed mutation notifications.
//
// Typical usage:
//
//	s := rescan.New(rescan.Options{Debounce: 300 * time.Millisecond, Fallback: 10 * time.Second}, scanFn)
//	go s.Run(ctx)
//	...
//	s.Trigger() // from a mutation event
package rescan

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Options tunes the scanner loop.
type Options struct {
	// Debounce is the quiet period after a trigger before the scan fires.
	// Further triggers during the window reset the timer. Default: 300ms.
	Debounce time.Duration
	// Fallback is the periodic scan interval that runs regardless of
	// triggers. 0 disables the fallback ticker.
	Fallback time.Duration
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Debounce <= 0 {
		o.Debounce = 300 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Stats are point-in-time counters.
type Stats struct {
	Triggers      int64 `json:"triggers"`
	Scans         int64 `json:"scans"`
	FallbackScans int64 `json:"fallback_scans"`
}

// Scanner owns one debounce timer and one fallback ticker for a scan
// function. Safe for concurrent Trigger calls; the scan function itself
// always runs on the Run goroutine.
type Scanner struct {
	opts   Options
	scan   func(ctx context.Context)
	events chan struct{}

	triggers atomic.Int64
	scans    atomic.Int64
	fallback atomic.Int64
}

// New creates a Scanner. Call Run to start the loop.
func New(opts Options, scan func(ctx context.Context)) *Scanner {
	opts.defaults()
	return &Scanner{
		opts:   opts,
		scan:   scan,
		events: make(chan struct{}, 1),
	}
}

// Trigger signals that a rescan is wanted. Never blocks: a trigger that
// arrives while one is already pending is coalesced into it.
func (s *Scanner) Trigger() {
	s.triggers.Add(1)
	select {
	case s.events <- struct{}{}:
	default:
	}
}

// Stats returns the current counters.
func (s *Scanner) Stats() Stats {
	return Stats{
		Triggers:      s.triggers.Load(),
		Scans:         s.scans.Load(),
		FallbackScans: s.fallback.Load(),
	}
}

// Run blocks until ctx is cancelled, firing the scan function after each
// debounced trigger burst and on every fallback tick.
func (s *Scanner) Run(ctx context.Context) {
	log := s.opts.Logger

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time

	var fallbackCh <-chan time.Time
	if s.opts.Fallback > 0 {
		ticker := time.NewTicker(s.opts.Fallback)
		defer ticker.Stop()
		fallbackCh = ticker.C
	}

	log.Debug("rescan: started", "debounce", s.opts.Debounce, "fallback", s.opts.Fallback)

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			log.Debug("rescan: stopped")
			return

		case <-s.events:
			// Cancel-and-reschedule: the pending scan is superseded.
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(s.opts.Debounce)
			debounceCh = debounceTimer.C

		case <-debounceCh:
			debounceCh = nil
			s.scans.Add(1)
			s.scan(ctx)

		case <-fallbackCh:
			s.fallback.Add(1)
			s.scans.Add(1)
			s.scan(ctx)
		}
	}
}
