// Package fieldagent is the in-page agent for arbitrary target tabs. It
// scans the page for OTP-shaped inputs through an ordered heuristic
// ladder, pulls codes from the coordinator when a candidate appears or
// gains focus, renders a floating selection panel, and performs the fill
// when the user picks a code.
package fieldagent

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ysmood/gson"

	"github.com/veilbit/otprelay/codes"
	"github.com/veilbit/otprelay/rescan"
)

//go:embed agent.js
var agentJS string

//go:embed collect.js
var collectJS string

//go:embed panel.js
var panelJS string

//go:embed fill.js
var fillJS string

// Page is the injection surface the agent drives. *browser.Tab satisfies
// it; tests supply a fake.
type Page interface {
	Eval(ctx context.Context, js string, args ...any) (gson.JSON, error)
	Expose(name string, fn func(gson.JSON) (any, error)) (func() error, error)
}

// Backend is the coordinator surface the agent talks to.
type Backend interface {
	RequestLatest(ctx context.Context, tabID string, push chan<- codes.Push) (codes.Reply, error)
	ListAll(ctx context.Context) ([]codes.Record, error)
	ReportFilled(ctx context.Context, code string) error
}

// Config tunes the agent.
type Config struct {
	// TabID identifies this tab to the coordinator's pending registry.
	TabID string
	// InitialDelay before the first scan, letting the page settle. Default: 1s.
	InitialDelay time.Duration
	// Debounce for mutation bursts. Default: 500ms.
	Debounce time.Duration
	// Fallback scan interval. Default: 2s.
	Fallback time.Duration
	// Logger overrides the default slog logger.
	Logger *slog.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

func (c *Config) defaults() {
	if c.InitialDelay <= 0 {
		c.InitialDelay = time.Second
	}
	if c.Debounce <= 0 {
		c.Debounce = 500 * time.Millisecond
	}
	if c.Fallback <= 0 {
		c.Fallback = 2 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Agent is one target tab's field agent.
type Agent struct {
	cfg     Config
	page    Page
	backend Backend
	scanner *rescan.Scanner
	push    chan codes.Push

	runCtx context.Context

	mu      sync.Mutex
	fields  map[int]FieldInfo
	tracked map[int]bool
	latest  []codes.Record
	anchor  int
	shown   bool
}

// New creates an Agent for one page.
func New(page Page, backend Backend, cfg Config) *Agent {
	cfg.defaults()
	a := &Agent{
		cfg:     cfg,
		page:    page,
		backend: backend,
		push:    make(chan codes.Push, 4),
		fields:  make(map[int]FieldInfo),
		tracked: make(map[int]bool),
		anchor:  -1,
	}
	a.scanner = rescan.New(rescan.Options{
		Debounce: cfg.Debounce,
		Fallback: cfg.Fallback,
		Logger:   cfg.Logger,
	}, a.Scan)
	return a
}

// Start wires the page bindings, injects the observer script, and runs the
// scan loop until ctx is cancelled. The first scan fires after the
// configured initial delay.
func (a *Agent) Start(ctx context.Context) error {
	a.runCtx = ctx

	if _, err := a.page.Expose("__otprelay_fa_mut", func(gson.JSON) (any, error) {
		a.scanner.Trigger()
		return nil, nil
	}); err != nil {
		return err
	}
	if _, err := a.page.Expose("__otprelay_fa_focus", func(gson.JSON) (any, error) {
		a.scanner.Trigger()
		return nil, nil
	}); err != nil {
		return err
	}
	if _, err := a.page.Expose("__otprelay_fa_pick", func(v gson.JSON) (any, error) {
		a.onPick(v)
		return nil, nil
	}); err != nil {
		return err
	}

	if _, err := a.page.Eval(ctx, agentJS); err != nil {
		a.cfg.Logger.Warn("fieldagent: observer injection failed", "tab", a.cfg.TabID, "error", err)
	}

	go a.scanner.Run(ctx)
	go a.consumePushes(ctx)
	go func() {
		select {
		case <-time.After(a.cfg.InitialDelay):
			a.scanner.Trigger()
		case <-ctx.Done():
		}
	}()
	return nil
}

// Push returns the channel the coordinator uses to notify this tab. The
// agent hands it to RequestLatest; exposing it lets the orchestrator drop
// the registration on tab close.
func (a *Agent) Push() chan codes.Push { return a.push }

// Stats exposes the scan counters.
func (a *Agent) Stats() rescan.Stats { return a.scanner.Stats() }

// Scan performs one collect/classify pass. A new (or newly focused)
// candidate pulls codes from the coordinator and renders the panel.
func (a *Agent) Scan(ctx context.Context) {
	log := a.cfg.Logger

	res, err := a.page.Eval(ctx, collectJS)
	if err != nil {
		log.Warn("fieldagent: collect failed", "tab", a.cfg.TabID, "error", err)
		return
	}
	var fields []FieldInfo
	if err := json.Unmarshal([]byte(res.Str()), &fields); err != nil {
		log.Warn("fieldagent: bad collect payload", "tab", a.cfg.TabID, "error", err)
		return
	}

	fresh := -1
	a.mu.Lock()
	a.fields = make(map[int]FieldInfo, len(fields))
	for _, f := range fields {
		a.fields[f.Index] = f
		rule, ok := Classify(f)
		if !ok {
			continue
		}
		if !a.tracked[f.Index] {
			a.tracked[f.Index] = true
			if fresh < 0 || f.Focused {
				fresh = f.Index
			}
			log.Debug("fieldagent: candidate field", "tab", a.cfg.TabID, "field", f.Index, "rule", rule)
		} else if f.Focused && !a.shown {
			fresh = f.Index
		}
	}
	a.mu.Unlock()

	if fresh < 0 {
		return
	}
	a.offerCodes(ctx, fresh)
}

// offerCodes pulls the buffer, registers for a push when it is empty, and
// renders the panel under the given field.
func (a *Agent) offerCodes(ctx context.Context, fieldIdx int) {
	log := a.cfg.Logger

	records, err := a.backend.ListAll(ctx)
	if err != nil {
		log.Warn("fieldagent: list codes failed", "tab", a.cfg.TabID, "error", err)
		return
	}
	reply, err := a.backend.RequestLatest(ctx, a.cfg.TabID, a.push)
	if err != nil {
		log.Warn("fieldagent: request code failed", "tab", a.cfg.TabID, "error", err)
		return
	}

	a.mu.Lock()
	a.latest = records
	a.anchor = fieldIdx
	a.mu.Unlock()

	if reply.Waiting {
		log.Debug("fieldagent: no code yet, registered for push", "tab", a.cfg.TabID)
		return
	}
	a.render(ctx)
}

// consumePushes re-renders the panel whenever the coordinator announces a
// new code for this tab.
func (a *Agent) consumePushes(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-a.push:
			if p.Type != codes.MsgCodeAvailable {
				continue
			}
			records, err := a.backend.ListAll(ctx)
			if err != nil {
				a.cfg.Logger.Warn("fieldagent: list after push failed", "tab", a.cfg.TabID, "error", err)
				continue
			}
			a.mu.Lock()
			a.latest = records
			a.mu.Unlock()
			a.render(ctx)
		}
	}
}

// render paints the panel at the current anchor. The panel persists once
// populated; an empty buffer leaves whatever was last shown.
func (a *Agent) render(ctx context.Context) {
	a.mu.Lock()
	anchor := a.anchor
	entries := panelModel(a.latest, a.cfg.Now())
	a.mu.Unlock()

	if anchor < 0 || len(entries) == 0 {
		return
	}
	payload := panelPayload{Index: anchor, Codes: entries}
	if _, err := a.page.Eval(ctx, panelJS, payload); err != nil {
		a.cfg.Logger.Warn("fieldagent: panel render failed", "tab", a.cfg.TabID, "error", err)
		return
	}
	a.mu.Lock()
	a.shown = true
	a.mu.Unlock()
}

// pickPayload is what the panel click handler sends back.
type pickPayload struct {
	Index int    `json:"index"`
	Code  string `json:"code"`
}

func (a *Agent) onPick(v gson.JSON) {
	var pick pickPayload
	if err := json.Unmarshal([]byte(v.Str()), &pick); err != nil {
		a.cfg.Logger.Warn("fieldagent: bad pick payload", "tab", a.cfg.TabID, "error", err)
		return
	}
	ctx := a.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	a.Fill(ctx, pick.Index, pick.Code)
}

// Fill writes a code into the field per the computed plan, acknowledges
// the fill to the coordinator, and clears the local new-code flag.
func (a *Agent) Fill(ctx context.Context, fieldIdx int, code string) {
	log := a.cfg.Logger

	a.mu.Lock()
	f, ok := a.fields[fieldIdx]
	a.mu.Unlock()
	if !ok {
		log.Warn("fieldagent: fill on unknown field", "tab", a.cfg.TabID, "field", fieldIdx)
		return
	}

	plan := PlanFill(f, code)
	if plan.Mode == FillNone {
		log.Warn("fieldagent: field cannot take code", "tab", a.cfg.TabID, "field", fieldIdx, "maxlength", f.MaxLength)
		return
	}

	arg := struct {
		Index  int      `json:"index"`
		Code   string   `json:"code"`
		Mode   FillMode `json:"mode"`
		Digits []string `json:"digits,omitempty"`
	}{fieldIdx, code, plan.Mode, plan.Digits}
	if _, err := a.page.Eval(ctx, fillJS, arg); err != nil {
		log.Warn("fieldagent: fill eval failed", "tab", a.cfg.TabID, "error", err)
		return
	}

	if err := a.backend.ReportFilled(ctx, code); err != nil {
		log.Warn("fieldagent: fill report failed", "tab", a.cfg.TabID, "error", err)
	}

	a.mu.Lock()
	for i := range a.latest {
		if a.latest[i].Code == code {
			a.latest[i].IsNew = false
		}
	}
	a.mu.Unlock()
	a.render(ctx)

	log.Info("fieldagent: code filled", "tab", a.cfg.TabID, "field", fieldIdx, "mode", plan.Mode)
}
