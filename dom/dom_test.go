package dom

import (
	"strings"
	"testing"
)

const sampleHTML = `<html><body>
<div id="conversation" class="thread open">
  <div class="bubble incoming"><span class="msg-text">Your code is 482135</span></div>
  <div class="bubble outgoing"><span class="msg-text">thanks</span></div>
</div>
<ul class="message-list">
  <li class="row"><span class="preview" data-ts="1700000000000">Google: G-482135</span></li>
  <li class="row"><span class="preview">lunch tomorrow?</span></li>
</ul>
<script>var x = "code 999999";</script>
</body></html>`

func mustParse(t *testing.T, raw string) *Node {
	t.Helper()
	n, err := Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestFind_SelectorSubset(t *testing.T) {
	root := mustParse(t, sampleHTML)

	cases := []struct {
		sel  string
		want string
	}{
		{"#conversation", "Your code is 482135 thanks"},
		{"div.bubble", "Your code is 482135"},
		{".preview", "Google: G-482135"},
		{"span[data-ts]", "Google: G-482135"},
		{"ul.message-list .preview", "Google: G-482135"},
	}
	for _, tc := range cases {
		n := root.Find(tc.sel)
		if n == nil {
			t.Errorf("Find(%q) = nil", tc.sel)
			continue
		}
		if got := n.Text(); got != tc.want {
			t.Errorf("Find(%q).Text() = %q, want %q", tc.sel, got, tc.want)
		}
	}
}

func TestFind_FirstSelectorWins(t *testing.T) {
	root := mustParse(t, sampleHTML)
	n := root.Find(".does-not-exist", ".preview")
	if n == nil || n.Text() != "Google: G-482135" {
		t.Fatalf("Find fallback failed: %v", n)
	}
}

func TestFindAll_DocumentOrder(t *testing.T) {
	root := mustParse(t, sampleHTML)
	bubbles := root.FindAll("div.bubble")
	if len(bubbles) != 2 {
		t.Fatalf("FindAll = %d nodes, want 2", len(bubbles))
	}
	if bubbles[0].Text() != "Your code is 482135" {
		t.Fatalf("first bubble = %q", bubbles[0].Text())
	}
}

func TestAttr(t *testing.T) {
	root := mustParse(t, sampleHTML)
	n := root.Find("span[data-ts]")
	if got := n.Attr("data-ts"); got != "1700000000000" {
		t.Fatalf("Attr = %q", got)
	}
	if got := n.Attr("missing"); got != "" {
		t.Fatalf("Attr(missing) = %q", got)
	}
}

func TestLines_SkipsScriptAndShortLines(t *testing.T) {
	root := mustParse(t, sampleHTML)
	lines := root.Lines(50)
	for _, line := range lines {
		if strings.Contains(line, "999999") {
			t.Fatalf("script content leaked into lines: %q", line)
		}
	}
	found := false
	for _, line := range lines {
		if strings.Contains(line, "Your code is 482135") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected message line in %v", lines)
	}
}

func TestLines_Max(t *testing.T) {
	root := mustParse(t, sampleHTML)
	if lines := root.Lines(1); len(lines) != 1 {
		t.Fatalf("Lines(1) = %d lines", len(lines))
	}
}

func TestCleanText(t *testing.T) {
	got := CleanText(`<b>Your</b> code   is <span>482135</span>`)
	if got != "Your code is 482135" {
		t.Fatalf("CleanText = %q", got)
	}
}

func TestBubbleText(t *testing.T) {
	got := BubbleText(`<p>Your code is <strong>482135</strong></p>`)
	if !strings.Contains(got, "482135") {
		t.Fatalf("BubbleText = %q", got)
	}
}
