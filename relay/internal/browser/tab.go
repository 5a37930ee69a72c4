package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

// Tab wraps a rod page with the relay-specific helpers the agents need:
// full-DOM capture, script injection, and JS-to-Go bindings.
type Tab struct {
	Page    *rod.Page
	PageURL string
	PageID  string
}

// OpenTab creates a new stealth tab and navigates it. Used for the inbox
// page; target tabs are attached, not opened.
func OpenTab(ctx context.Context, mgr *Manager, pageURL, pageID string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return &Tab{Page: page, PageURL: pageURL, PageID: pageID}, nil
}

// AttachTab wraps an existing page (a tab the user already has open).
func AttachTab(page *rod.Page, pageID string) *Tab {
	info, err := page.Info()
	url := ""
	if err == nil {
		url = info.URL
	}
	return &Tab{Page: page, PageURL: url, PageID: pageID}
}

// HTML serialises the complete DOM as outer HTML.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	res, err := t.Page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return res.Value.Str(), nil
}

// Eval runs a JS expression in the page, returning the raw result.
func (t *Tab) Eval(ctx context.Context, js string, args ...any) (gson.JSON, error) {
	res, err := t.Page.Context(ctx).Eval(js, args...)
	if err != nil {
		return gson.JSON{}, fmt.Errorf("browser: eval: %w", err)
	}
	return res.Value, nil
}

// Expose registers a Go function callable from page JS as window[name].
// The returned stop function removes the binding.
func (t *Tab) Expose(name string, fn func(gson.JSON) (any, error)) (func() error, error) {
	stop, err := t.Page.Expose(name, fn)
	if err != nil {
		return nil, fmt.Errorf("browser: expose %s: %w", name, err)
	}
	return stop, nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
