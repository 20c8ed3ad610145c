package bubbletea

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/goldmark"
)

// chromeHeight is the number of terminal rows not available to the viewport:
// header, status line, input and one separator row.
const chromeHeight = 4

var _ tea.Model = Model{}

// Model is the Bubble Tea model for the relay chat client.
type Model struct {
	// Input is the text input component. Exported for test access.
	Input textinput.Model
	// Viewport is the scrollable output area. Exported for test access.
	Viewport viewport.Model

	chat     ChatFunc
	session  relay.Session
	config   Config
	styles   Styles
	renderer *goldmark.Renderer

	blocks []MessageBlock

	// pending is the optimistic user turn of the running exchange; active is
	// its assistant reply once the first content frame arrives.
	pending *UserMessageBlock
	active  *AssistantTextBlock

	running bool
	cancel  context.CancelFunc
	stream  relay.FrameStream
	err     error
	ready   bool
}

// New creates a Model for session, rendering history as the existing
// conversation.
func New(chat ChatFunc, session relay.Session, history []relay.Message, theme relay.Theme, config Config) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 0

	m := Model{
		Input:    ti,
		chat:     chat,
		session:  session,
		config:   config,
		styles:   NewStyles(theme),
		renderer: goldmark.NewRenderer(theme),
	}
	for _, msg := range history {
		switch msg.Role {
		case relay.RoleUser:
			m.blocks = append(m.blocks, NewUserMessageBlock(msg.Content, m.styles))
		case relay.RoleAssistant:
			b := NewAssistantTextBlock(m.renderer)
			b.SetText(msg.Content)
			m.blocks = append(m.blocks, b)
		}
	}
	return m
}

// Running reports whether a turn is in flight.
func (m Model) Running() bool { return m.running }

// Err returns the error of the last failed turn, if any.
func (m Model) Err() error { return m.err }

// Blocks returns the rendered conversation blocks.
func (m Model) Blocks() []MessageBlock { return m.blocks }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StreamOpenedMsg:
		if !m.running {
			_ = msg.Stream.Close()
			return m, nil
		}
		m.stream = msg.Stream
		return m, nextFrame(m.stream)

	case FrameMsg:
		if !m.running {
			return m, nil
		}
		return m.handleFrame(msg.Frame)

	case ChatDoneMsg:
		if !m.running {
			return m, nil
		}
		err := msg.Err
		if err == nil {
			err = relay.ErrStreamTruncated
		}
		m = m.rollback()
		if !errors.Is(err, context.Canceled) {
			m.err = err
		}
		return m.finish()
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)
	if !m.running {
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	var b strings.Builder
	b.WriteString(m.headerLine())
	b.WriteString("\n")
	b.WriteString(m.Viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.Input.View())
	return b.String()
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	vpHeight := max(msg.Height-chromeHeight, 1)
	if !m.ready {
		m.Viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.Viewport.Width = msg.Width
		m.Viewport.Height = vpHeight
	}
	m.Input.Width = msg.Width
	m.refresh()
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.running {
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}
		return m, tea.Quit

	case tea.KeyEnter:
		if m.running {
			return m, nil
		}
		text := strings.TrimSpace(m.Input.Value())
		if text == "" {
			return m, nil
		}
		return m.submit(text)
	}

	if m.running {
		return m, nil
	}
	// Character keys go to the input only; 'j'/'k' would otherwise scroll.
	var cmds []tea.Cmd
	var cmd tea.Cmd
	if msg.Type != tea.KeyRunes {
		m.Viewport, cmd = m.Viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.Input, cmd = m.Input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	m.Input.SetValue("")
	m.Input.Blur()
	m.err = nil

	m.pending = NewPendingUserMessageBlock(text, m.styles)
	m.active = nil
	m.blocks = append(m.blocks, m.pending)
	m.refresh()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true

	turn := relay.Turn{
		SessionID:    m.session.ID,
		Message:      text,
		SystemPrompt: m.config.SystemPrompt,
		Options:      relay.Options{Model: m.config.Model},
	}
	return m, openStream(ctx, m.chat, turn)
}

func (m Model) handleFrame(f relay.Frame) (tea.Model, tea.Cmd) {
	switch f := f.(type) {
	case relay.ContentFrame:
		m = m.showReply(f.Text)
		return m, nextFrame(m.stream)

	case relay.DoneFrame:
		if f.Message.Content != "" || m.active != nil {
			m = m.showReply(f.Message.Content)
		}
		m.pending.Confirm()
		m.pending = nil
		m.active = nil
		return m.finish()

	case relay.ErrorFrame:
		m = m.rollback()
		m.err = frameError(f)
		return m.finish()
	}
	return m, nextFrame(m.stream)
}

// showReply redraws the in-flight assistant reply with the accumulated text.
func (m Model) showReply(text string) Model {
	if m.active == nil {
		m.active = NewAssistantTextBlock(m.renderer)
		m.blocks = append(m.blocks, m.active)
	}
	m.active.SetText(text)
	m.refresh()
	return m
}

// rollback removes the optimistic user turn and any partial reply, and
// returns the user's text to the input for another attempt.
func (m Model) rollback() Model {
	if m.pending == nil {
		return m
	}
	for i, b := range m.blocks {
		if b == MessageBlock(m.pending) {
			m.blocks = m.blocks[:i:i]
			break
		}
	}
	m.Input.SetValue(m.pending.Text())
	m.pending = nil
	m.active = nil
	m.refresh()
	return m
}

// finish releases the turn's resources and returns focus to the input.
func (m Model) finish() (tea.Model, tea.Cmd) {
	if m.stream != nil {
		_ = m.stream.Close()
		m.stream = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.running = false
	m.refresh()
	return m, m.Input.Focus()
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.Viewport.SetContent(m.renderContent())
	m.Viewport.GotoBottom()
}

func (m Model) renderContent() string {
	var b strings.Builder
	for i, block := range m.blocks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(block.View(m.Viewport.Width))
	}
	return b.String()
}

func frameError(f relay.ErrorFrame) error {
	if f.Details == "" {
		return errors.New(f.Error)
	}
	return errors.New(f.Error + ": " + f.Details)
}

func openStream(ctx context.Context, chat ChatFunc, turn relay.Turn) tea.Cmd {
	return func() tea.Msg {
		s, err := chat(ctx, turn)
		if err != nil {
			return ChatDoneMsg{Err: err}
		}
		return StreamOpenedMsg{Stream: s}
	}
}

// nextFrame reads one frame. Streams end with io.EOF only after a terminal
// frame, which the model never reads past.
func nextFrame(s relay.FrameStream) tea.Cmd {
	return func() tea.Msg {
		f, err := s.Next()
		if errors.Is(err, io.EOF) {
			return ChatDoneMsg{}
		}
		if err != nil {
			return ChatDoneMsg{Err: err}
		}
		return FrameMsg{Frame: f}
	}
}
