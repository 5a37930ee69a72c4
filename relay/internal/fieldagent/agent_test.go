package fieldagent

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ysmood/gson"

	"github.com/veilbit/otprelay/codes"
)

type evalCall struct {
	js   string
	args []any
}

type fakePage struct {
	mu      sync.Mutex
	collect []FieldInfo
	evals   []evalCall
}

func (p *fakePage) Eval(_ context.Context, js string, args ...any) (gson.JSON, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evals = append(p.evals, evalCall{js, args})
	if js == collectJS {
		raw, _ := json.Marshal(p.collect)
		return gson.New(string(raw)), nil
	}
	return gson.New(true), nil
}

func (p *fakePage) Expose(string, func(gson.JSON) (any, error)) (func() error, error) {
	return func() error { return nil }, nil
}

func (p *fakePage) panelCalls() []panelPayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []panelPayload
	for _, c := range p.evals {
		if c.js == panelJS && len(c.args) == 1 {
			if pl, ok := c.args[0].(panelPayload); ok {
				out = append(out, pl)
			}
		}
	}
	return out
}

func (p *fakePage) fillCalls() []evalCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []evalCall
	for _, c := range p.evals {
		if c.js == fillJS {
			out = append(out, c)
		}
	}
	return out
}

type fakeBackend struct {
	mu      sync.Mutex
	records []codes.Record
	waiting []chan<- codes.Push
	filled  []string
}

func (b *fakeBackend) RequestLatest(_ context.Context, _ string, push chan<- codes.Push) (codes.Reply, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) == 0 {
		b.waiting = append(b.waiting, push)
		return codes.Reply{Waiting: true}, nil
	}
	r := b.records[0]
	return codes.Reply{Record: &r}, nil
}

func (b *fakeBackend) ListAll(context.Context) ([]codes.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]codes.Record(nil), b.records...), nil
}

func (b *fakeBackend) ReportFilled(_ context.Context, code string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filled = append(b.filled, code)
	return nil
}

func otpField(idx int) FieldInfo {
	return FieldInfo{Index: idx, Tag: "input", Type: "text", Autocomplete: "one-time-code"}
}

func fixedNow() time.Time { return time.Date(2026, 3, 12, 15, 0, 0, 0, time.UTC) }

func TestScanRendersPanelForCandidate(t *testing.T) {
	page := &fakePage{collect: []FieldInfo{
		{Index: 0, Tag: "input", Type: "text", Name: "username"},
		otpField(1),
	}}
	backend := &fakeBackend{records: []codes.Record{
		{Code: "482135", Source: "Google", Timestamp: fixedNow().Add(-30 * time.Second), IsNew: true},
		{Code: "271828", Source: "Acme", Timestamp: fixedNow().Add(-5 * time.Minute)},
	}}
	a := New(page, backend, Config{TabID: "tab-1", Now: fixedNow})

	a.Scan(context.Background())

	panels := page.panelCalls()
	if len(panels) != 1 {
		t.Fatalf("panel rendered %d times, want 1", len(panels))
	}
	pl := panels[0]
	if pl.Index != 1 {
		t.Errorf("panel anchored at field %d, want 1", pl.Index)
	}
	if len(pl.Codes) != 2 {
		t.Fatalf("panel holds %d codes, want 2", len(pl.Codes))
	}
	if pl.Codes[0].Code != "482135" || !pl.Codes[0].IsNew {
		t.Errorf("newest entry = %+v, want 482135 flagged new", pl.Codes[0])
	}
	if pl.Codes[1].IsNew {
		t.Error("older entry flagged new")
	}
}

func TestScanCapsPanelAtFive(t *testing.T) {
	page := &fakePage{collect: []FieldInfo{otpField(0)}}
	backend := &fakeBackend{}
	for i := 0; i < 8; i++ {
		backend.records = append(backend.records, codes.Record{
			Code:      string(rune('0'+i)) + "11111",
			Timestamp: fixedNow().Add(-time.Duration(i) * time.Minute),
		})
	}
	a := New(page, backend, Config{TabID: "tab-1", Now: fixedNow})

	a.Scan(context.Background())

	panels := page.panelCalls()
	if len(panels) != 1 {
		t.Fatalf("panel rendered %d times, want 1", len(panels))
	}
	if got := len(panels[0].Codes); got != 5 {
		t.Errorf("panel holds %d codes, want 5", got)
	}
}

func TestScanWithoutCandidatesLeavesBackendAlone(t *testing.T) {
	page := &fakePage{collect: []FieldInfo{
		{Index: 0, Tag: "input", Type: "text", Name: "username"},
		{Index: 1, Tag: "input", Type: "text", Autocomplete: "one-time-code", Hidden: true},
	}}
	backend := &fakeBackend{records: []codes.Record{{Code: "482135", Timestamp: fixedNow()}}}
	a := New(page, backend, Config{TabID: "tab-1", Now: fixedNow})

	a.Scan(context.Background())

	if got := len(page.panelCalls()); got != 0 {
		t.Errorf("panel rendered %d times for ineligible fields, want 0", got)
	}
}

func TestScanRegistersAndRendersOnPush(t *testing.T) {
	page := &fakePage{collect: []FieldInfo{otpField(0)}}
	backend := &fakeBackend{}
	a := New(page, backend, Config{TabID: "tab-1", Now: fixedNow})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.consumePushes(ctx)

	a.Scan(ctx)
	if got := len(page.panelCalls()); got != 0 {
		t.Fatalf("panel rendered %d times on empty buffer, want 0", got)
	}

	backend.mu.Lock()
	if len(backend.waiting) != 1 {
		backend.mu.Unlock()
		t.Fatal("agent did not register for a push")
	}
	rec := codes.Record{Code: "914702", Source: "Acme", Timestamp: fixedNow(), IsNew: true}
	backend.records = []codes.Record{rec}
	push := backend.waiting[0]
	backend.mu.Unlock()

	push <- codes.Push{Type: codes.MsgCodeAvailable, Code: rec.Code, Source: rec.Source, Timestamp: rec.Timestamp}

	deadline := time.After(time.Second)
	for {
		if panels := page.panelCalls(); len(panels) > 0 {
			if panels[0].Codes[0].Code != "914702" {
				t.Errorf("pushed panel code = %q, want 914702", panels[0].Codes[0].Code)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("panel never rendered after push")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestFillReportsAndClearsNewFlag(t *testing.T) {
	page := &fakePage{collect: []FieldInfo{otpField(0)}}
	backend := &fakeBackend{records: []codes.Record{
		{Code: "482135", Timestamp: fixedNow(), IsNew: true},
	}}
	a := New(page, backend, Config{TabID: "tab-1", Now: fixedNow})

	a.Scan(context.Background())
	a.Fill(context.Background(), 0, "482135")

	fills := page.fillCalls()
	if len(fills) != 1 {
		t.Fatalf("fill evaluated %d times, want 1", len(fills))
	}

	backend.mu.Lock()
	filled := append([]string(nil), backend.filled...)
	backend.mu.Unlock()
	if len(filled) != 1 || filled[0] != "482135" {
		t.Fatalf("reported fills = %v, want [482135]", filled)
	}

	// The re-render after filling must show the code as no longer new.
	panels := page.panelCalls()
	last := panels[len(panels)-1]
	if last.Codes[0].IsNew {
		t.Error("filled code still flagged new in panel")
	}
}

func TestFillRefusesUnfittableField(t *testing.T) {
	page := &fakePage{collect: []FieldInfo{
		{Index: 0, Tag: "input", Type: "tel", MaxLength: 3, Name: "otp"},
	}}
	backend := &fakeBackend{records: []codes.Record{{Code: "482135", Timestamp: fixedNow()}}}
	a := New(page, backend, Config{TabID: "tab-1", Now: fixedNow})

	a.Scan(context.Background())
	a.Fill(context.Background(), 0, "482135")

	if got := len(page.fillCalls()); got != 0 {
		t.Errorf("fill evaluated %d times for unfittable field, want 0", got)
	}
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.filled) != 0 {
		t.Error("fill reported despite refusal")
	}
}
