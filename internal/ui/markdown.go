package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// markdownCache renders finished answers once per width. Entries are keyed
// by epoch, which changes with every generation.
type markdownCache struct {
	width    int
	renderer *glamour.TermRenderer
	entries  map[uint64]string
}

func newMarkdownCache() *markdownCache {
	return &markdownCache{entries: make(map[uint64]string)}
}

// Render returns text as terminal markdown, falling back to the raw text
// when glamour cannot render it.
func (c *markdownCache) Render(epoch uint64, text string, width int) string {
	if width < 10 {
		width = 10
	}
	if width != c.width || c.renderer == nil {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return text
		}
		c.renderer = r
		c.width = width
		clear(c.entries)
	}

	if out, ok := c.entries[epoch]; ok && epoch != 0 {
		return out
	}
	out, err := c.renderer.Render(text)
	if err != nil {
		return text
	}
	out = strings.Trim(out, "\n")
	if epoch != 0 {
		c.entries[epoch] = out
	}
	return out
}
