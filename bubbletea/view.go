package bubbletea

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

func (m Model) headerLine() string {
	title := m.session.Title
	if title == "" {
		title = m.session.ID
	}
	line := title
	if m.config.ServerURL != "" {
		line += " · " + m.config.ServerURL
	}
	return m.styles.Header.Render(runewidth.Truncate(line, m.Viewport.Width, "…"))
}

func (m Model) statusLine() string {
	if m.err != nil {
		msg := runewidth.Truncate("Error: "+m.err.Error(), m.Viewport.Width, "…")
		return m.styles.Error.Render(msg)
	}
	left := "Enter to send, Ctrl+C to quit"
	if m.running {
		left = "Generating... Ctrl+C to cancel"
	}
	right := m.config.Model
	if right == "" {
		right = "default model"
	}
	gap := m.Viewport.Width - uniseg.StringWidth(left) - uniseg.StringWidth(right)
	if gap < 1 {
		return m.styles.Muted.Render(left)
	}
	return m.styles.Muted.Render(left) + strings.Repeat(" ", gap) + m.styles.Accent.Render(right)
}
