package bubbletea_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/relay"
	bt "github.com/fwojciec/relay/bubbletea"
	"github.com/fwojciec/relay/mock"
	"github.com/stretchr/testify/require"
)

var testSession = relay.Session{ID: "01HZX", Title: "Test chat"}

// initModel creates a model and sends a WindowSizeMsg to initialize the viewport.
func initModel(t *testing.T, chat bt.ChatFunc, history ...relay.Message) bt.Model {
	t.Helper()
	return initModelWithSize(t, chat, 80, 24, history...)
}

// initModelWithSize creates a model with a custom terminal size.
func initModelWithSize(t *testing.T, chat bt.ChatFunc, width, height int, history ...relay.Message) bt.Model {
	t.Helper()
	m := bt.New(chat, testSession, history, relay.DefaultTheme(), bt.Config{
		ServerURL: "http://localhost:3000/api",
		Model:     "gpt-4o-mini",
	})
	return updateModel(t, m, tea.WindowSizeMsg{Width: width, Height: height})
}

// updateModel sends a message and returns the updated Model.
func updateModel(t *testing.T, m bt.Model, msg tea.Msg) bt.Model {
	t.Helper()
	updated, _ := m.Update(msg)
	model, ok := updated.(bt.Model)
	require.True(t, ok)
	return model
}

// submit types text and presses enter, returning the command that opens the
// stream.
func submit(t *testing.T, m bt.Model, text string) (bt.Model, tea.Cmd) {
	t.Helper()
	m.Input.SetValue(text)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model, ok := updated.(bt.Model)
	require.True(t, ok)
	return model, cmd
}

// step runs cmd and feeds its message back into the model.
func step(t *testing.T, m bt.Model, cmd tea.Cmd) (bt.Model, tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	updated, next := m.Update(cmd())
	model, ok := updated.(bt.Model)
	require.True(t, ok)
	return model, next
}

// drain steps the model until the turn is over.
func drain(t *testing.T, m bt.Model, cmd tea.Cmd) bt.Model {
	t.Helper()
	for m.Running() {
		m, cmd = step(t, m, cmd)
	}
	return m
}

// frames returns a stream that yields fs in order and then io.EOF.
func frames(fs ...relay.Frame) *mock.FrameStream {
	i := 0
	return &mock.FrameStream{
		NextFn: func() (relay.Frame, error) {
			if i >= len(fs) {
				return nil, io.EOF
			}
			f := fs[i]
			i++
			return f, nil
		},
	}
}

// chatRecorder is a ChatFunc that records turns and serves a fixed stream.
type chatRecorder struct {
	mu     sync.Mutex
	turns  []relay.Turn
	stream relay.FrameStream
	err    error
}

func (c *chatRecorder) chat(_ context.Context, turn relay.Turn) (relay.FrameStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, turn)
	if c.err != nil {
		return nil, c.err
	}
	return c.stream, nil
}

func (c *chatRecorder) recorded() []relay.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]relay.Turn(nil), c.turns...)
}

func done(content string) relay.DoneFrame {
	return relay.DoneFrame{Message: relay.Message{
		Role:      relay.RoleAssistant,
		Content:   content,
		Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}}
}

// nopChat fails the test if a turn is started.
func nopChat(t *testing.T) bt.ChatFunc {
	return func(context.Context, relay.Turn) (relay.FrameStream, error) {
		t.Error("unexpected chat call")
		return nil, io.EOF
	}
}
