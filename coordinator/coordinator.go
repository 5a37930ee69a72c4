// Package coordinator holds the single source of truth for detected codes:
// a recency-bounded, TTL-expiring buffer and the registry of tabs waiting
// for a code. It is the sole writer; every reader receives an immutable
// copy, so no reader-side locking exists anywhere in the system.
//
// All state lives behind one actor goroutine fed by a request channel.
// Mutations inside one handler are atomic relative to other handlers, but
// no ordering is assumed between logically concurrent requests from
// different tabs.
//
// Usage:
//
//	c := coordinator.New(coordinator.Options{Store: st})
//	if err := c.Start(ctx); err != nil { ... }
//	reply, _ := c.RequestLatest(ctx, tabID, pushCh)
package coordinator

import (
	"context"
	"log/slog"
	"time"

	"github.com/veilbit/otprelay/codes"
)

// Options configures a Coordinator.
type Options struct {
	// Store is the durable backing for the code buffer. Nil disables
	// persistence; the in-memory buffer is always authoritative either way.
	Store *Store
	// Logger overrides the default slog logger.
	Logger *slog.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Coordinator is the privileged, page-independent process mediating shared
// state. Reachable only through its message interface.
type Coordinator struct {
	opts    Options
	reqs    chan request
	started time.Time

	// Actor-owned state. Touched only by the loop goroutine.
	buffer  []codes.Record
	pending map[string]chan<- codes.Push
}

// msgDropTab is internal: tab-close cleanup never crosses the wire.
const msgDropTab codes.MsgType = "DROP_TAB"

// request is one message on the actor channel.
type request struct {
	env   codes.Envelope
	push  chan<- codes.Push
	reply chan codes.Reply
	stats chan Stats
}

// Stats is a point-in-time view for the status surfaces.
type Stats struct {
	BufferSize  int       `json:"buffer_size"`
	PendingTabs int       `json:"pending_tabs"`
	StartedAt   time.Time `json:"started_at"`
}

// New creates a Coordinator. Call Start before use.
func New(opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		opts:    opts,
		reqs:    make(chan request, 64),
		pending: make(map[string]chan<- codes.Push),
	}
}

// Start rehydrates the buffer from durable storage, purges expired
// entries, and launches the actor loop. Storage failures are non-fatal:
// the session continues with an empty buffer.
func (c *Coordinator) Start(ctx context.Context) error {
	c.started = c.opts.Now()

	if c.opts.Store != nil {
		buf, err := c.opts.Store.Load(ctx)
		if err != nil {
			c.opts.Logger.Warn("coordinator: rehydration failed, starting empty", "error", err)
		} else {
			c.buffer = buf
			c.purge()
			c.opts.Logger.Info("coordinator: rehydrated", "codes", len(c.buffer))
		}
	}

	go c.loop(ctx)
	return nil
}

// SubmitCode records a detected code. An existing entry with the same code
// moves to the front with refreshed metadata. Every pending tab is
// notified with the newest entry and the registry is cleared.
func (c *Coordinator) SubmitCode(ctx context.Context, code, source, messageText string, ts time.Time) error {
	_, err := c.send(ctx, codes.Envelope{
		Type:        codes.MsgNewCode,
		Code:        code,
		Source:      source,
		MessageText: messageText,
		Timestamp:   ts,
	}, nil)
	return err
}

// RequestLatest returns the newest buffered code, or registers the tab as
// pending and returns a waiting reply. A pending registration is consumed
// by the next SubmitCode, which pushes exactly one CODE_AVAILABLE to the
// given channel.
func (c *Coordinator) RequestLatest(ctx context.Context, tabID string, push chan<- codes.Push) (codes.Reply, error) {
	return c.send(ctx, codes.Envelope{Type: codes.MsgRequestCode, TabID: tabID}, push)
}

// ListAll returns the full buffer in recency order, newest first.
func (c *Coordinator) ListAll(ctx context.Context) ([]codes.Record, error) {
	reply, err := c.send(ctx, codes.Envelope{Type: codes.MsgGetAllCodes}, nil)
	if err != nil {
		return nil, err
	}
	return reply.Codes, nil
}

// ReportFilled acknowledges that a code was filled into a field. Advisory:
// the matching entry is marked non-new but nothing else changes.
func (c *Coordinator) ReportFilled(ctx context.Context, code string) error {
	_, err := c.send(ctx, codes.Envelope{Type: codes.MsgCodeFilled, Code: code}, nil)
	return err
}

// DropTab removes a closed tab from the pending registry so no push leaks
// to it later.
func (c *Coordinator) DropTab(ctx context.Context, tabID string) error {
	_, err := c.send(ctx, codes.Envelope{Type: msgDropTab, TabID: tabID}, nil)
	return err
}

// Handle dispatches a raw envelope. The HTTP and MCP surfaces route
// through here so every caller shares the same actor semantics.
func (c *Coordinator) Handle(ctx context.Context, env codes.Envelope) (codes.Reply, error) {
	return c.send(ctx, env, nil)
}

// Stats reports buffer and registry sizes.
func (c *Coordinator) Stats(ctx context.Context) (Stats, error) {
	req := request{stats: make(chan Stats, 1)}
	select {
	case c.reqs <- req:
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
	select {
	case st := <-req.stats:
		return st, nil
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

func (c *Coordinator) send(ctx context.Context, env codes.Envelope, push chan<- codes.Push) (codes.Reply, error) {
	req := request{env: env, push: push, reply: make(chan codes.Reply, 1)}
	select {
	case c.reqs <- req:
	case <-ctx.Done():
		return codes.Reply{}, ctx.Err()
	}
	select {
	case reply := <-req.reply:
		return reply, nil
	case <-ctx.Done():
		return codes.Reply{}, ctx.Err()
	}
}

func (c *Coordinator) loop(ctx context.Context) {
	log := c.opts.Logger
	log.Info("coordinator: started")
	for {
		select {
		case <-ctx.Done():
			log.Info("coordinator: stopped")
			return
		case req := <-c.reqs:
			if req.stats != nil {
				c.purge()
				req.stats <- Stats{
					BufferSize:  len(c.buffer),
					PendingTabs: len(c.pending),
					StartedAt:   c.started,
				}
				continue
			}
			req.reply <- c.handle(ctx, req)
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, req request) codes.Reply {
	// TTL is evaluated lazily before every read or write.
	c.purge()

	switch req.env.Type {
	case codes.MsgNewCode:
		return c.handleNewCode(ctx, req.env)
	case codes.MsgRequestCode:
		return c.handleRequestCode(req.env.TabID, req.push)
	case codes.MsgGetAllCodes:
		return codes.Reply{Codes: c.copyBuffer()}
	case codes.MsgCodeFilled:
		return c.handleCodeFilled(ctx, req.env.Code)
	case msgDropTab:
		delete(c.pending, req.env.TabID)
		return codes.Reply{Success: true}
	default:
		c.opts.Logger.Warn("coordinator: unknown message type", "type", req.env.Type)
		return codes.Reply{}
	}
}

func (c *Coordinator) handleNewCode(ctx context.Context, env codes.Envelope) codes.Reply {
	ts := env.Timestamp
	if ts.IsZero() {
		ts = c.opts.Now()
	}

	// Re-detection refreshes metadata and recency, never duplicates.
	for i, r := range c.buffer {
		if r.Code == env.Code {
			c.buffer = append(c.buffer[:i], c.buffer[i+1:]...)
			break
		}
	}
	rec := codes.Record{Code: env.Code, Source: env.Source, Timestamp: ts, IsNew: true}
	c.buffer = append([]codes.Record{rec}, c.buffer...)

	if len(c.buffer) > codes.MaxBuffer {
		c.buffer = c.buffer[:codes.MaxBuffer]
	}

	c.persist(ctx)

	// Consume the pending registry: notify every waiting tab once.
	for tabID, push := range c.pending {
		select {
		case push <- codes.Push{Type: codes.MsgCodeAvailable, Code: rec.Code, Source: rec.Source, Timestamp: rec.Timestamp}:
			c.opts.Logger.Debug("coordinator: notified pending tab", "tab", tabID, "code", rec.Code)
		default:
			// Tab gone or stalled. Affects only this tab.
			c.opts.Logger.Warn("coordinator: push failed, dropping registration", "tab", tabID)
		}
		delete(c.pending, tabID)
	}

	c.opts.Logger.Info("coordinator: code recorded", "code", rec.Code, "source", rec.Source, "buffer", len(c.buffer))
	return codes.Reply{Success: true}
}

func (c *Coordinator) handleRequestCode(tabID string, push chan<- codes.Push) codes.Reply {
	if len(c.buffer) > 0 {
		rec := c.buffer[0]
		return codes.Reply{Record: &rec}
	}
	if tabID != "" && push != nil {
		c.pending[tabID] = push
		c.opts.Logger.Debug("coordinator: tab registered pending", "tab", tabID)
	}
	return codes.Reply{Waiting: true}
}

func (c *Coordinator) handleCodeFilled(ctx context.Context, code string) codes.Reply {
	for i := range c.buffer {
		if c.buffer[i].Code == code {
			c.buffer[i].IsNew = false
			c.persist(ctx)
			break
		}
	}
	c.opts.Logger.Info("coordinator: code filled", "code", code)
	return codes.Reply{Success: true}
}

// purge drops entries past the TTL. The buffer is newest-first, but entry
// timestamps are message-derived and need not be monotonic, so every entry
// is checked.
func (c *Coordinator) purge() {
	now := c.opts.Now()
	kept := c.buffer[:0]
	for _, r := range c.buffer {
		if !r.Expired(now) {
			kept = append(kept, r)
		}
	}
	c.buffer = kept
}

func (c *Coordinator) copyBuffer() []codes.Record {
	out := make([]codes.Record, len(c.buffer))
	copy(out, c.buffer)
	return out
}

// persist flushes the buffer to durable storage. Failures are logged and
// swallowed: the in-memory buffer stays authoritative for the session.
func (c *Coordinator) persist(ctx context.Context) {
	if c.opts.Store == nil {
		return
	}
	if err := c.opts.Store.Save(ctx, c.buffer); err != nil {
		c.opts.Logger.Warn("coordinator: persist failed", "error", err)
	}
}
