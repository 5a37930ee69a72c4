package dom

import (
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy = bluemonday.StrictPolicy()

	mdOnce sync.Once
	mdConv *converter.Converter
)

// CleanText strips every tag and entity from an HTML fragment, leaving
// plain text with collapsed whitespace. Message bodies pass through here
// before pattern extraction so markup never confuses the digit rules.
func CleanText(fragment string) string {
	plain := strictPolicy.Sanitize(fragment)
	return strings.Join(strings.Fields(plain), " ")
}

// BubbleText converts a message bubble's inner HTML to readable markdown
// for the message_text payload. Falls back to CleanText when conversion
// fails on malformed fragments.
func BubbleText(fragment string) string {
	mdOnce.Do(func() {
		mdConv = converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		)
	})
	md, err := mdConv.ConvertString(fragment)
	if err != nil {
		return CleanText(fragment)
	}
	return strings.TrimSpace(md)
}
