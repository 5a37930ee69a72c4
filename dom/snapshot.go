// Package dom provides read-only utilities over serialized DOM snapshots:
// parsing, a simple CSS-selector subset, and text collection. Agents
// capture a page's outer HTML through the browser layer and interrogate it
// here, so all classification logic stays testable against static HTML.
package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Node wraps an html.Node with query helpers.
type Node struct {
	n *html.Node
}

// Parse parses serialized HTML into a queryable snapshot root.
// html.Parse is forgiving by design; it never fails on real-world markup.
func Parse(raw string) (*Node, error) {
	n, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return &Node{n: n}, nil
}

// Find returns the first node matching any of the given selectors, in
// selector order. Returns nil when nothing matches.
func (nd *Node) Find(selectors ...string) *Node {
	for _, sel := range selectors {
		if ms := querySelectorAll(nd.n, sel, 1); len(ms) > 0 {
			return &Node{n: ms[0]}
		}
	}
	return nil
}

// FindAll returns every node matching the selector, in document order.
func (nd *Node) FindAll(selector string) []*Node {
	ms := querySelectorAll(nd.n, selector, -1)
	out := make([]*Node, len(ms))
	for i, m := range ms {
		out[i] = &Node{n: m}
	}
	return out
}

// Attr returns the value of the named attribute, or "".
func (nd *Node) Attr(key string) string {
	for _, a := range nd.n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// Tag returns the element tag name, or "" for non-element nodes.
func (nd *Node) Tag() string {
	if nd.n.Type != html.ElementNode {
		return ""
	}
	return nd.n.Data
}

// Text returns the node's collected text content with whitespace collapsed.
func (nd *Node) Text() string {
	var b strings.Builder
	collectText(nd.n, &b)
	return strings.Join(strings.Fields(b.String()), " ")
}

// HTML renders the node's subtree back to markup.
func (nd *Node) HTML() string {
	var b strings.Builder
	if err := html.Render(&b, nd.n); err != nil {
		return ""
	}
	return b.String()
}

// Parent returns the parent element, or nil at the root.
func (nd *Node) Parent() *Node {
	if nd.n.Parent == nil {
		return nil
	}
	return &Node{n: nd.n.Parent}
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	}
	// Script and style bodies are markup, not page text.
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

// Lines returns up to max non-empty visible text lines from the snapshot.
// Lines under three characters carry no signal and are skipped.
func (nd *Node) Lines(max int) []string {
	var b strings.Builder
	collectLines(nd.n, &b)
	var out []string
	for _, line := range strings.Split(b.String(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if len(line) < 3 {
			continue
		}
		out = append(out, line)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}

// blockTags force a line break in Lines output.
var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "tr": true, "br": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "section": true,
	"article": true, "header": true, "footer": true,
}

func collectLines(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
		return
	}
	if n.Type == html.ElementNode && blockTags[n.Data] {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectLines(c, b)
	}
	if n.Type == html.ElementNode && blockTags[n.Data] {
		b.WriteByte('\n')
	}
}
