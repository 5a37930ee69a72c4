// Package monitor is the in-page agent for the SMS/voice inbox tab. It
// rescans the page on DOM mutations (debounced) and a fallback timer,
// selects the newest plausible message text through a layered fallback,
// extracts a code candidate, and forwards it to the coordinator. Every
// classification miss is a silent no-op: this agent never surfaces a
// user-visible failure.
package monitor

import (
	"context"
	_ "embed"
	"log/slog"
	"sync"
	"time"

	"github.com/ysmood/gson"

	"github.com/veilbit/otprelay/dom"
	"github.com/veilbit/otprelay/infer"
	"github.com/veilbit/otprelay/pattern"
	"github.com/veilbit/otprelay/rescan"
)

//go:embed monitor.js
var monitorJS string

// dedupeWindow suppresses re-dispatch of the same code value. Inbox UIs
// re-render the newest message constantly; without this every re-render
// would resubmit.
const dedupeWindow = 30 * time.Second

// Source captures the inbox page DOM. *browser.Tab satisfies it; tests
// supply static HTML.
type Source interface {
	HTML(ctx context.Context) (string, error)
}

// Dispatcher receives detected codes. The coordinator satisfies it.
type Dispatcher interface {
	SubmitCode(ctx context.Context, code, source, messageText string, ts time.Time) error
}

// Config tunes the monitor.
type Config struct {
	// Selectors override the built-in inbox DOM shapes.
	Selectors Selectors
	// Debounce for mutation bursts. Default: 300ms.
	Debounce time.Duration
	// Fallback scan interval guarding against missed mutations. Default: 10s.
	Fallback time.Duration
	// Logger overrides the default slog logger.
	Logger *slog.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

func (c *Config) defaults() {
	c.Selectors.defaults()
	if c.Debounce <= 0 {
		c.Debounce = 300 * time.Millisecond
	}
	if c.Fallback <= 0 {
		c.Fallback = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Monitor is the inbox-tab agent.
type Monitor struct {
	cfg      Config
	source   Source
	dispatch Dispatcher
	scanner  *rescan.Scanner

	mu           sync.Mutex
	lastCode     string
	lastDispatch time.Time
}

// New creates a Monitor over an inbox page source.
func New(source Source, dispatch Dispatcher, cfg Config) *Monitor {
	cfg.defaults()
	m := &Monitor{cfg: cfg, source: source, dispatch: dispatch}
	m.scanner = rescan.New(rescan.Options{
		Debounce: cfg.Debounce,
		Fallback: cfg.Fallback,
		Logger:   cfg.Logger,
	}, m.Scan)
	return m
}

// Injector is the optional page-script hookup: anything that can expose a
// binding and evaluate JS. *browser.Tab satisfies it.
type Injector interface {
	Expose(name string, fn func(gson.JSON) (any, error)) (func() error, error)
	Eval(ctx context.Context, js string, args ...any) (gson.JSON, error)
}

// Start injects the MutationObserver (when inject is non-nil) and runs the
// scan loop until ctx is cancelled. The initial scan fires immediately.
func (m *Monitor) Start(ctx context.Context, inject Injector) error {
	if inject != nil {
		if _, err := inject.Expose("__otprelay_mut", func(gson.JSON) (any, error) {
			m.scanner.Trigger()
			return nil, nil
		}); err != nil {
			return err
		}
		if _, err := inject.Eval(ctx, monitorJS); err != nil {
			// Injection failure degrades to fallback-timer scanning.
			m.cfg.Logger.Warn("monitor: observer injection failed", "error", err)
		}
	}

	go m.scanner.Run(ctx)
	m.scanner.Trigger()
	return nil
}

// Trigger requests a rescan (used by tests and by re-injection paths).
func (m *Monitor) Trigger() { m.scanner.Trigger() }

// Stats exposes the scan counters.
func (m *Monitor) Stats() rescan.Stats { return m.scanner.Stats() }

// Scan performs one full detection pass. Safe to call directly; the scan
// loop serialises calls in normal operation.
func (m *Monitor) Scan(ctx context.Context) {
	log := m.cfg.Logger

	raw, err := m.source.HTML(ctx)
	if err != nil {
		log.Warn("monitor: snapshot failed", "error", err)
		return
	}
	root, err := dom.Parse(raw)
	if err != nil {
		log.Warn("monitor: parse failed", "error", err)
		return
	}

	cand := selectText(root, m.cfg.Selectors)
	if cand == nil {
		return
	}

	code, ok := pattern.Extract(cand.text)
	if !ok {
		return
	}

	now := m.cfg.Now()

	m.mu.Lock()
	if code == m.lastCode && now.Sub(m.lastDispatch) < dedupeWindow {
		m.mu.Unlock()
		log.Debug("monitor: duplicate suppressed", "code", code)
		return
	}
	m.lastCode = code
	m.lastDispatch = now
	m.mu.Unlock()

	source := cand.contact
	if name, ok := infer.Source(cand.text); ok {
		source = name
	}
	ts := infer.Time(cand.timeAttr, cand.timeText, now)

	if err := m.dispatch.SubmitCode(ctx, code, source, cand.raw, ts); err != nil {
		log.Warn("monitor: dispatch failed", "error", err, "code", code)
		return
	}
	log.Info("monitor: code dispatched", "code", code, "source", source)
}
