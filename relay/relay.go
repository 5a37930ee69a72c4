// Package relay wires the whole pipeline together: a Chrome instance, the
// coordinator with its durable buffer, a message monitor on the inbox tab,
// and a field agent on every other page tab. Tabs come and go; the relay
// tracks target lifecycle and keeps the coordinator's pending registry
// clean.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/veilbit/otprelay/coordinator"
	"github.com/veilbit/otprelay/idgen"
	"github.com/veilbit/otprelay/relay/internal/browser"
	"github.com/veilbit/otprelay/relay/internal/fieldagent"
	"github.com/veilbit/otprelay/relay/internal/monitor"
	"github.com/veilbit/otprelay/rescan"
)

// Relay owns every component for one browser session.
type Relay struct {
	cfg   *Config
	log   *slog.Logger
	newID idgen.Generator

	coord       *coordinator.Coordinator
	store       *coordinator.Store
	mgr         *browser.Manager
	mon         *monitor.Monitor
	inbox       *browser.Tab
	inboxTarget proto.TargetTargetID

	mu     sync.Mutex
	agents map[proto.TargetTargetID]*agentHandle
}

type agentHandle struct {
	tabID  string
	agent  *fieldagent.Agent
	tab    *browser.Tab
	cancel context.CancelFunc
}

// New creates a Relay from config. Call Start to bring everything up.
func New(cfg *Config, logger *slog.Logger) *Relay {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		cfg:    cfg,
		log:    logger,
		newID:  idgen.Prefixed("tab_", idgen.UUIDv7()),
		agents: make(map[proto.TargetTargetID]*agentHandle),
	}
}

// Coordinator exposes the running coordinator for MCP/HTTP surfaces.
func (r *Relay) Coordinator() *coordinator.Coordinator { return r.coord }

// Start brings up storage, the coordinator, the browser, the inbox
// monitor, and field agents for every page tab. It returns once all
// components are running; they stop when ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	store, err := coordinator.OpenStore(r.cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("relay: open store: %w", err)
	}
	r.store = store

	r.coord = coordinator.New(coordinator.Options{Store: store, Logger: r.log})
	if err := r.coord.Start(ctx); err != nil {
		return fmt.Errorf("relay: start coordinator: %w", err)
	}

	r.mgr = browser.NewManager(browser.Config{
		RemoteURL: r.cfg.Browser.Remote,
		Headless:  r.cfg.Browser.Headless,
		Logger:    r.log,
	})
	if _, err := r.mgr.Start(ctx); err != nil {
		return fmt.Errorf("relay: start browser: %w", err)
	}

	if r.cfg.Inbox.URL != "" {
		if err := r.startMonitor(ctx); err != nil {
			return err
		}
	} else {
		r.log.Warn("relay: no inbox URL configured, code detection disabled")
	}

	r.attachExisting(ctx)
	go r.watchTargets(ctx)
	go func() {
		<-ctx.Done()
		r.shutdown()
	}()

	r.log.Info("relay: started", "inbox", r.cfg.Inbox.URL)
	return nil
}

func (r *Relay) startMonitor(ctx context.Context) error {
	tab, err := browser.OpenTab(ctx, r.mgr, r.cfg.Inbox.URL, r.newID())
	if err != nil {
		return fmt.Errorf("relay: open inbox: %w", err)
	}
	r.inbox = tab
	r.inboxTarget = tab.Page.TargetID

	r.mon = monitor.New(tab, r.coord, monitor.Config{
		Selectors: r.cfg.Inbox.Selectors,
		Debounce:  r.cfg.Inbox.Debounce,
		Fallback:  r.cfg.Inbox.Fallback,
		Logger:    r.log,
	})
	if err := r.mon.Start(ctx, tab); err != nil {
		return fmt.Errorf("relay: start monitor: %w", err)
	}
	return nil
}

// attachExisting puts a field agent on every page tab already open when
// the relay connects.
func (r *Relay) attachExisting(ctx context.Context) {
	pages, err := r.mgr.Pages()
	if err != nil {
		r.log.Warn("relay: list pages failed", "error", err)
		return
	}
	for _, page := range pages {
		info, err := page.Info()
		if err != nil {
			continue
		}
		r.attachAgent(ctx, page, proto.TargetTargetID(info.TargetID))
	}
}

// watchTargets follows tab lifecycle for the life of the relay.
func (r *Relay) watchTargets(ctx context.Context) {
	r.mgr.WatchTargets(ctx, browser.TargetEvents{
		OnNew: func(info *proto.TargetTargetInfo) {
			b := r.mgr.Browser()
			if b == nil {
				return
			}
			page, err := b.PageFromTarget(info.TargetID)
			if err != nil {
				r.log.Warn("relay: attach to new tab failed", "url", info.URL, "error", err)
				return
			}
			r.attachAgent(ctx, page, info.TargetID)
		},
		OnClose: func(targetID proto.TargetTargetID) {
			r.detachAgent(ctx, targetID)
		},
	})
}

func (r *Relay) attachAgent(ctx context.Context, page *rod.Page, targetID proto.TargetTargetID) {
	r.mu.Lock()
	if _, exists := r.agents[targetID]; exists {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	if targetID == r.inboxTarget {
		return
	}

	tabID := r.newID()
	tab := browser.AttachTab(page, tabID)
	if !r.cfg.wantsAgent(tab.PageURL) {
		return
	}

	agent := fieldagent.New(tab, r.coord, fieldagent.Config{
		TabID:        tabID,
		InitialDelay: r.cfg.Agent.InitialDelay,
		Debounce:     r.cfg.Agent.Debounce,
		Fallback:     r.cfg.Agent.Fallback,
		Logger:       r.log,
	})

	agentCtx, cancel := context.WithCancel(ctx)
	if err := agent.Start(agentCtx); err != nil {
		cancel()
		r.log.Warn("relay: field agent start failed", "url", tab.PageURL, "error", err)
		return
	}

	r.mu.Lock()
	r.agents[targetID] = &agentHandle{tabID: tabID, agent: agent, tab: tab, cancel: cancel}
	r.mu.Unlock()

	r.log.Info("relay: field agent attached", "url", tab.PageURL, "tab", tabID)
}

// detachAgent tears down the agent for a closed tab and clears any pending
// registration it left with the coordinator.
func (r *Relay) detachAgent(ctx context.Context, targetID proto.TargetTargetID) {
	r.mu.Lock()
	h, ok := r.agents[targetID]
	if ok {
		delete(r.agents, targetID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	h.cancel()
	if err := r.coord.DropTab(ctx, h.tabID); err != nil {
		r.log.Warn("relay: drop tab failed", "tab", h.tabID, "error", err)
	}
	r.log.Info("relay: field agent detached", "tab", h.tabID)
}

// Handler returns the HTTP API: the coordinator's debug surface plus scan
// statistics.
func (r *Relay) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Mount("/", r.coord.Router())
	mux.Get("/scans", r.handleScans)
	return mux
}

func (r *Relay) handleScans(w http.ResponseWriter, req *http.Request) {
	type scanStats struct {
		Monitor rescan.Stats            `json:"monitor"`
		Agents  map[string]rescan.Stats `json:"agents"`
	}
	st := scanStats{Agents: make(map[string]rescan.Stats)}
	if r.mon != nil {
		st.Monitor = r.mon.Stats()
	}
	r.mu.Lock()
	for _, h := range r.agents {
		st.Agents[h.tabID] = h.agent.Stats()
	}
	r.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		r.log.Warn("relay: scan stats encode failed", "error", err)
	}
}

func (r *Relay) shutdown() {
	r.mu.Lock()
	handles := make([]*agentHandle, 0, len(r.agents))
	for _, h := range r.agents {
		handles = append(handles, h)
	}
	r.agents = make(map[proto.TargetTargetID]*agentHandle)
	r.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}
	if r.inbox != nil {
		r.inbox.Close()
	}
	if r.mgr != nil {
		r.mgr.Close()
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.log.Warn("relay: store close failed", "error", err)
		}
	}
	r.log.Info("relay: stopped")
}
