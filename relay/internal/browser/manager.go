// Package browser manages the Chrome instance the relay rides on: connect
// to a user's running browser over CDP (the normal mode) or launch a local
// one, open the inbox tab, and track target tabs as they come and go.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the WebSocket URL of an already-running Chrome
	// instance. Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Headless applies only when launching locally.
	Headless bool

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns the rod browser handle.
type Manager struct {
	cfg     Config
	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// NewManager creates a Manager. Call Start to connect.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Start connects to (or launches) Chrome.
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wsURL := m.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(m.cfg.Headless)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		m.lnch = l
		wsURL = u
	}

	b := rod.New().Context(ctx).ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect %s: %w", wsURL, err)
	}
	m.browser = b

	m.cfg.Logger.Info("browser: connected", "remote", m.cfg.RemoteURL != "")
	return b, nil
}

// Browser returns the current rod handle. Thread-safe.
func (m *Manager) Browser() *rod.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser
}

// Close disconnects and, when Chrome was launched locally, kills it.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			m.cfg.Logger.Warn("browser: close failed", "error", err)
		}
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Kill()
		m.lnch = nil
	}
	return nil
}

// TargetEvents are callbacks for page-tab lifecycle. OnClose receives the
// target ID of the destroyed tab.
type TargetEvents struct {
	OnNew   func(info *proto.TargetTargetInfo)
	OnClose func(targetID proto.TargetTargetID)
}

// WatchTargets blocks until ctx is cancelled, invoking callbacks as page
// targets appear and disappear. Non-page targets (workers, extensions) are
// ignored.
func (m *Manager) WatchTargets(ctx context.Context, ev TargetEvents) {
	b := m.Browser()
	if b == nil {
		return
	}
	b.Context(ctx).EachEvent(
		func(e *proto.TargetTargetCreated) {
			if e.TargetInfo.Type != proto.TargetTargetInfoTypePage {
				return
			}
			if ev.OnNew != nil {
				ev.OnNew(e.TargetInfo)
			}
		},
		func(e *proto.TargetTargetDestroyed) {
			if ev.OnClose != nil {
				ev.OnClose(e.TargetID)
			}
		},
	)()
}

// Pages returns the currently open page targets.
func (m *Manager) Pages() ([]*rod.Page, error) {
	b := m.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	pages, err := b.Pages()
	if err != nil {
		return nil, fmt.Errorf("browser: list pages: %w", err)
	}
	return pages, nil
}
