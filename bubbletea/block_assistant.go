package bubbletea

import (
	"strings"

	"github.com/fwojciec/relay/goldmark"
)

var _ MessageBlock = (*AssistantTextBlock)(nil)

// AssistantTextBlock renders assistant text as markdown. While a reply
// streams, SetText replaces the whole text with the latest accumulated
// content. Everything before the last paragraph break outside a code fence
// is rendered once per width and cached; only the tail is re-rendered.
type AssistantTextBlock struct {
	renderer *goldmark.Renderer
	text     string

	stable      string
	stableCache map[int]string
}

// NewAssistantTextBlock creates a block that renders with r.
func NewAssistantTextBlock(r *goldmark.Renderer) *AssistantTextBlock {
	return &AssistantTextBlock{renderer: r, stableCache: make(map[int]string)}
}

// SetText replaces the block's text.
func (b *AssistantTextBlock) SetText(text string) {
	b.text = text
	b.splitStable()
}

// Text returns the raw markdown.
func (b *AssistantTextBlock) Text() string { return b.text }

func (b *AssistantTextBlock) View(width int) string {
	head := b.renderStable(width)
	tail := strings.TrimPrefix(b.text, b.stable)
	tail = strings.TrimPrefix(tail, "\n\n")
	if openFence(tail) {
		// Close the fence for display only.
		tail += "\n```"
	}
	rendered := ""
	if strings.TrimSpace(tail) != "" {
		rendered = b.renderer.Render(tail, width)
	}
	switch {
	case strings.TrimSpace(rendered) == "":
		return head
	case head == "":
		return rendered
	}
	// Rejoin independently rendered halves with exactly one blank line.
	return strings.TrimRight(head, "\n") + "\n\n" + strings.TrimLeft(rendered, "\n")
}

// splitStable moves the stable prefix to the last "\n\n" whose prefix has
// every fence closed.
func (b *AssistantTextBlock) splitStable() {
	if !strings.HasPrefix(b.text, b.stable) {
		b.stable = ""
		clear(b.stableCache)
	}
	end := len(b.text)
	for {
		idx := strings.LastIndex(b.text[:end], "\n\n")
		if idx <= len(b.stable) {
			return
		}
		if candidate := b.text[:idx]; !openFence(candidate) {
			b.stable = candidate
			clear(b.stableCache)
			return
		}
		end = idx
	}
}

func (b *AssistantTextBlock) renderStable(width int) string {
	if width <= 0 || b.stable == "" {
		return ""
	}
	if cached, ok := b.stableCache[width]; ok {
		return cached
	}
	out := b.renderer.Render(b.stable, width)
	b.stableCache[width] = out
	return out
}

// openFence reports whether s has an odd number of ``` markers. Triple
// backticks inside inline code are miscounted.
func openFence(s string) bool {
	return strings.Count(s, "```")%2 == 1
}
