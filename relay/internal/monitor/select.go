package monitor

import (
	"regexp"
	"strings"

	"github.com/veilbit/otprelay/dom"
	"github.com/veilbit/otprelay/pattern"
)

// Selectors describe the inbox DOM shapes the monitor knows about. All
// lists are tried in order; the defaults cover the Google Voice style
// layout plus generic fallbacks. DOM-shape drift is absorbed by the
// layered scan below, never raised as an error.
type Selectors struct {
	Conversation []string `yaml:"conversation"`
	Message      []string `yaml:"message"`
	Preview      []string `yaml:"preview"`
	Row          []string `yaml:"row"`
	Contact      []string `yaml:"contact"`
	Time         []string `yaml:"time"`
}

func (s *Selectors) defaults() {
	if len(s.Conversation) == 0 {
		s.Conversation = []string{
			"div[data-conversation-open]",
			"div[role=main] .conversation",
			"#conversation",
			".thread-details",
		}
	}
	if len(s.Message) == 0 {
		s.Message = []string{
			".message .content",
			".bubble .msg-text",
			"div[role=listitem] .text",
			".message-text",
		}
	}
	if len(s.Preview) == 0 {
		s.Preview = []string{
			".snippet-text",
			".msg-preview",
			".preview",
			".conversation-snippet",
		}
	}
	if len(s.Row) == 0 {
		s.Row = []string{
			".conversation-list-item",
			"li.row",
			"div[role=listitem]",
			"tr.message-row",
		}
	}
	if len(s.Contact) == 0 {
		s.Contact = []string{
			".conversation-title",
			".contact-name",
			"header .title",
		}
	}
	if len(s.Time) == 0 {
		s.Time = []string{
			"time",
			".msg-time",
			".timestamp",
		}
	}
}

// candidate is the selected message text plus the metadata needed to build
// the NEW_CODE payload.
type candidate struct {
	text     string // cleaned text for extraction
	raw      string // readable text for the message_text payload
	timeAttr string // machine-readable datetime, if any
	timeText string // display time text, if any
	contact  string // DOM-derived sender label, if any
}

// conversationWindow is how many trailing messages layer 1 inspects.
const conversationWindow = 5

// rowWindow is how many list rows layer 3 inspects.
const rowWindow = 5

// lineWindow is how many page-text lines the last-resort layer scans.
const lineWindow = 50

// selectText picks the message text to run extraction against, using the
// four-layer fallback: open conversation, preview selectors, list rows,
// raw page lines. Returns nil when every layer comes up empty.
func selectText(root *dom.Node, sel Selectors) *candidate {
	if c := fromConversation(root, sel); c != nil {
		return c
	}
	if c := fromPreview(root, sel); c != nil {
		return c
	}
	if c := fromRows(root, sel); c != nil {
		return c
	}
	return fromLines(root)
}

// fromConversation handles an open conversation view: the last
// conversationWindow message elements, newest first. A message whose text
// yields a code wins outright; otherwise the newest valid text is
// selected and extraction decides later.
func fromConversation(root *dom.Node, sel Selectors) *candidate {
	conv := root.Find(sel.Conversation...)
	if conv == nil {
		return nil
	}

	var msgs []*dom.Node
	for _, msel := range sel.Message {
		if ms := conv.FindAll(msel); len(ms) > 0 {
			msgs = ms
			break
		}
	}
	if len(msgs) > conversationWindow {
		msgs = msgs[len(msgs)-conversationWindow:]
	}

	contact := ""
	if n := conv.Find(sel.Contact...); n != nil {
		contact = n.Text()
	} else if n := root.Find(sel.Contact...); n != nil {
		contact = n.Text()
	}

	var newest *candidate
	for i := len(msgs) - 1; i >= 0; i-- {
		text := msgs[i].Text()
		if !validMessageText(text) {
			continue
		}
		c := &candidate{
			text:    text,
			raw:     dom.BubbleText(msgs[i].HTML()),
			contact: contact,
		}
		c.timeAttr, c.timeText = messageTime(msgs[i], sel)
		if newest == nil {
			newest = c
		}
		if _, ok := pattern.Extract(text); ok {
			return c
		}
	}
	return newest
}

// fromPreview scans the message list through known preview-text
// selectors, taking the first match.
func fromPreview(root *dom.Node, sel Selectors) *candidate {
	for _, psel := range sel.Preview {
		n := root.Find(psel)
		if n == nil {
			continue
		}
		text := n.Text()
		if !validMessageText(text) {
			continue
		}
		c := &candidate{text: text, raw: text}
		c.timeAttr, c.timeText = messageTime(n, sel)
		return c
	}
	return nil
}

// fromRows inspects up to rowWindow list rows, stopping at the first row
// that yields an extractable code.
func fromRows(root *dom.Node, sel Selectors) *candidate {
	for _, rsel := range sel.Row {
		rows := root.FindAll(rsel)
		if len(rows) == 0 {
			continue
		}
		if len(rows) > rowWindow {
			rows = rows[:rowWindow]
		}
		for _, row := range rows {
			text := row.Text()
			if !validMessageText(text) {
				continue
			}
			if _, ok := pattern.Extract(text); !ok {
				continue
			}
			c := &candidate{text: text, raw: text}
			c.timeAttr, c.timeText = messageTime(row, sel)
			return c
		}
		return nil
	}
	return nil
}

// fromLines is the last resort: up to lineWindow valid-looking lines of
// page text, first extractable line wins.
func fromLines(root *dom.Node) *candidate {
	for _, line := range root.Lines(lineWindow) {
		if !validMessageText(line) {
			continue
		}
		if _, ok := pattern.Extract(line); ok {
			return &candidate{text: line, raw: line}
		}
	}
	return nil
}

// messageTime finds time metadata for a message node: a datetime
// attribute on (or under) the node, else nearby display text.
func messageTime(n *dom.Node, sel Selectors) (attr, text string) {
	probe := n
	for hops := 0; probe != nil && hops < 3; hops++ {
		if t := probe.Find(sel.Time...); t != nil {
			return t.Attr("datetime"), t.Text()
		}
		probe = probe.Parent()
	}
	return "", ""
}

var (
	purelyNumericRe = regexp.MustCompile(`^[\d\s.,:-]+$`)
	bareTimeRe      = regexp.MustCompile(`(?i)^\d{1,2}:\d{2}\s*(?:AM|PM)?$`)
)

// validMessageText filters out non-message noise: too short, too long,
// purely numeric, or a bare time label.
func validMessageText(text string) bool {
	text = strings.TrimSpace(text)
	if len(text) < 10 || len(text) > 300 {
		return false
	}
	if purelyNumericRe.MatchString(text) {
		return false
	}
	if bareTimeRe.MatchString(text) {
		return false
	}
	return true
}
