// Package goldmark renders assistant markdown to ANSI-styled terminal text.
//
// Parsing is done by github.com/yuin/goldmark with the strikethrough and
// linkify extensions; styling and word wrapping by lipgloss. Output is plain
// lines suitable for a viewport: paragraphs and list items reflow to the
// requested width, code is never reflowed.
package goldmark

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/relay"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// DefaultWidth is used when Render is called with a non-positive width.
const DefaultWidth = 80

// Renderer turns markdown into styled terminal text. It keeps its parser
// between calls.
type Renderer struct {
	parser parser.Parser
	styles styles
}

type styles struct {
	bold      lipgloss.Style
	italic    lipgloss.Style
	strike    lipgloss.Style
	heading   lipgloss.Style
	muted     lipgloss.Style
	underline lipgloss.Style
	code      lipgloss.Style
	quote     lipgloss.Style
}

// NewRenderer returns a Renderer styled with theme.
func NewRenderer(theme relay.Theme) *Renderer {
	md := goldmark.New(goldmark.WithExtensions(extension.Strikethrough, extension.Linkify))
	return &Renderer{
		parser: md.Parser(),
		styles: styles{
			bold:      lipgloss.NewStyle().Bold(true),
			italic:    lipgloss.NewStyle().Italic(true),
			strike:    lipgloss.NewStyle().Strikethrough(true),
			heading:   lipgloss.NewStyle().Foreground(ansiColor(theme.Accent)).Bold(true),
			muted:     lipgloss.NewStyle().Foreground(ansiColor(theme.Muted)).Faint(true),
			underline: lipgloss.NewStyle().Underline(true),
			code:      lipgloss.NewStyle().Background(ansiColor(theme.CodeBg)),
			quote:     lipgloss.NewStyle().Foreground(ansiColor(theme.Assistant)),
		},
	}
}

// Render parses source and returns styled output without a trailing newline.
func (r *Renderer) Render(source string, width int) string {
	if source == "" {
		return ""
	}
	if width <= 0 {
		width = DefaultWidth
	}
	src := []byte(source)
	doc := r.parser.Parse(text.NewReader(src))

	w := &writer{styles: &r.styles, src: src}
	var buf bytes.Buffer
	w.blocks(doc, width, &buf)
	return strings.TrimRight(buf.String(), "\n")
}

// Render is a convenience for NewRenderer(theme).Render(source, width).
func Render(source string, width int, theme relay.Theme) string {
	return NewRenderer(theme).Render(source, width)
}

func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}
