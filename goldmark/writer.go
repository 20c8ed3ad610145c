package goldmark

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// minItemWidth keeps deeply nested list items legible on narrow terminals.
const minItemWidth = 10

// writer walks one parsed document.
type writer struct {
	styles *styles
	src    []byte
}

// blocks renders every child of node, separating siblings with a blank line.
func (w *writer) blocks(node ast.Node, width int, buf *bytes.Buffer) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		w.block(c, width, buf)
		if c.NextSibling() != nil && c.Kind() != ast.KindHTMLBlock {
			buf.WriteByte('\n')
		}
	}
}

func (w *writer) block(node ast.Node, width int, buf *bytes.Buffer) {
	switch n := node.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		w.wrapped(w.inlines(n), width, buf)
	case *ast.Heading:
		w.wrapped(w.styles.heading.Render(w.inlines(n)), width, buf)
	case *ast.FencedCodeBlock:
		if lang := n.Language(w.src); len(lang) > 0 {
			buf.WriteString(w.styles.muted.Render(string(lang)))
			buf.WriteByte('\n')
		}
		w.code(n.Lines(), buf)
	case *ast.CodeBlock:
		w.code(n.Lines(), buf)
	case *ast.List:
		w.list(n, width, 0, buf)
	case *ast.Blockquote:
		w.quote(n, width, buf)
	case *ast.ThematicBreak:
		buf.WriteString(w.styles.muted.Render("---"))
		buf.WriteByte('\n')
	case *ast.HTMLBlock:
		lines := n.Lines()
		for i := range lines.Len() {
			seg := lines.At(i)
			buf.Write(seg.Value(w.src))
		}
	default:
		w.blocks(node, width, buf)
	}
}

func (w *writer) wrapped(s string, width int, buf *bytes.Buffer) {
	buf.WriteString(lipgloss.NewStyle().Width(width).Render(s))
	buf.WriteByte('\n')
}

// code writes lines verbatim behind a gutter; long lines are not wrapped.
func (w *writer) code(lines *text.Segments, buf *bytes.Buffer) {
	gutter := w.styles.muted.Render("│") + " "
	for i := range lines.Len() {
		seg := lines.At(i)
		line := strings.TrimRight(string(seg.Value(w.src)), "\n")
		buf.WriteString(gutter)
		buf.WriteString(w.styles.code.Render(line))
		buf.WriteByte('\n')
	}
}

// quote renders the quoted blocks two columns narrower and prefixes each
// resulting line with a bar.
func (w *writer) quote(n *ast.Blockquote, width int, buf *bytes.Buffer) {
	var inner bytes.Buffer
	w.blocks(n, max(width-2, minItemWidth), &inner)
	bar := w.styles.quote.Render("▌") + " "
	for _, line := range strings.Split(strings.TrimRight(inner.String(), "\n"), "\n") {
		buf.WriteString(bar)
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
}

func (w *writer) list(n *ast.List, width, depth int, buf *bytes.Buffer) {
	indent := strings.Repeat("  ", depth)
	num := n.Start
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		item, ok := c.(*ast.ListItem)
		if !ok {
			continue
		}
		marker := "- "
		if n.IsOrdered() {
			marker = strconv.Itoa(num) + ". "
			num++
		}

		var pending strings.Builder
		flush := func() {
			if pending.Len() > 0 {
				w.item(indent+marker, pending.String(), width, buf)
				pending.Reset()
				// Later paragraphs of the same item align under the text.
				marker = strings.Repeat(" ", len(marker))
			}
		}
		for ic := item.FirstChild(); ic != nil; ic = ic.NextSibling() {
			switch child := ic.(type) {
			case *ast.Paragraph, *ast.TextBlock:
				flush()
				pending.WriteString(w.inlines(child))
			case *ast.List:
				flush()
				w.list(child, width, depth+1, buf)
			default:
				flush()
				var nested bytes.Buffer
				w.block(ic, width-len(indent)-len(marker), &nested)
				pad := strings.Repeat(" ", len(indent)+len(marker))
				for _, line := range strings.Split(strings.TrimRight(nested.String(), "\n"), "\n") {
					buf.WriteString(pad + line + "\n")
				}
			}
		}
		flush()
	}
}

// item writes one list entry with a hanging indent.
func (w *writer) item(prefix, content string, width int, buf *bytes.Buffer) {
	wrapped := lipgloss.NewStyle().Width(max(width-len(prefix), minItemWidth)).Render(content)
	hang := strings.Repeat(" ", len(prefix))
	for i, line := range strings.Split(wrapped, "\n") {
		if i == 0 {
			buf.WriteString(prefix)
		} else {
			buf.WriteString(hang)
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
}

// inlines collects the styled inline content of node.
func (w *writer) inlines(node ast.Node) string {
	var b strings.Builder
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		w.inline(c, &b)
	}
	return b.String()
}

func (w *writer) inline(node ast.Node, b *strings.Builder) {
	switch n := node.(type) {
	case *ast.Text:
		b.Write(n.Segment.Value(w.src))
		switch {
		case n.HardLineBreak():
			b.WriteByte('\n')
		case n.SoftLineBreak():
			b.WriteByte(' ')
		}
	case *ast.String:
		b.Write(n.Value)
	case *ast.Emphasis:
		style := w.styles.bold
		if n.Level == 1 {
			style = w.styles.italic
		}
		b.WriteString(style.Render(w.inlines(n)))
	case *extast.Strikethrough:
		b.WriteString(w.styles.strike.Render(w.inlines(n)))
	case *ast.CodeSpan:
		b.WriteString(w.styles.code.Render(w.inlines(n)))
	case *ast.Link:
		w.reference(w.inlines(n), string(n.Destination), b)
	case *ast.Image:
		w.reference(w.inlines(n), string(n.Destination), b)
	case *ast.AutoLink:
		b.WriteString(w.styles.underline.Render(string(n.URL(w.src))))
	case *ast.RawHTML:
		for i := range n.Segments.Len() {
			seg := n.Segments.At(i)
			b.Write(seg.Value(w.src))
		}
	default:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			w.inline(c, b)
		}
	}
}

// reference renders link text followed by its destination.
func (w *writer) reference(label, dest string, b *strings.Builder) {
	b.WriteString(w.styles.underline.Render(label))
	if dest != "" && dest != label {
		b.WriteString(" ")
		b.WriteString(w.styles.muted.Render("(" + dest + ")"))
	}
}
