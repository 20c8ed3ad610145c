package bubbletea_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/fwojciec/relay"
	bt "github.com/fwojciec/relay/bubbletea"
	"github.com/fwojciec/relay/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("idle with no error", func(t *testing.T) {
		t.Parallel()
		m := bt.New(nopChat(t), testSession, nil, relay.DefaultTheme(), bt.Config{})
		assert.False(t, m.Running())
		assert.NoError(t, m.Err())
		assert.Equal(t, "Initializing...", m.View())
	})

	t.Run("history becomes blocks", func(t *testing.T) {
		t.Parallel()
		m := initModel(t, nopChat(t),
			relay.Message{Role: relay.RoleUser, Content: "hello there"},
			relay.Message{Role: relay.RoleAssistant, Content: "Hi! How can I help?"},
		)
		require.Len(t, m.Blocks(), 2)
		assert.IsType(t, &bt.UserMessageBlock{}, m.Blocks()[0])
		assert.IsType(t, &bt.AssistantTextBlock{}, m.Blocks()[1])
		view := m.View()
		assert.Contains(t, view, "hello there")
		assert.Contains(t, view, "Hi! How can I help?")
	})
}

func TestModel_Layout(t *testing.T) {
	t.Parallel()

	t.Run("viewport takes the rows left by header, status and input", func(t *testing.T) {
		t.Parallel()
		m := initModel(t, nopChat(t))
		assert.Equal(t, 80, m.Viewport.Width)
		assert.Equal(t, 20, m.Viewport.Height)

		m = updateModel(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
		assert.Equal(t, 120, m.Viewport.Width)
		assert.Equal(t, 36, m.Viewport.Height)
	})

	t.Run("resize re-renders content", func(t *testing.T) {
		t.Parallel()
		m := initModelWithSize(t, nopChat(t), 30, 20,
			relay.Message{Role: relay.RoleAssistant, Content: "word1 word2 word3 word4 word5 word6 word7 word8"},
		)
		m = updateModel(t, m, tea.WindowSizeMsg{Width: 120, Height: 20})

		found := false
		for _, line := range strings.Split(m.Viewport.View(), "\n") {
			if strings.Contains(line, "word1") && strings.Contains(line, "word8") {
				found = true
			}
		}
		assert.True(t, found, "expected word1 and word8 on one line after widening")
	})

	t.Run("header shows title and server", func(t *testing.T) {
		t.Parallel()
		m := initModel(t, nopChat(t))
		header := strings.Split(m.View(), "\n")[0]
		assert.Contains(t, header, "Test chat · http://localhost:3000/api")
	})

	t.Run("header is truncated to width", func(t *testing.T) {
		t.Parallel()
		m := initModelWithSize(t, nopChat(t), 16, 10)
		header := strings.Split(m.View(), "\n")[0]
		assert.LessOrEqual(t, lipgloss.Width(header), 16)
		assert.Contains(t, header, "…")
	})

	t.Run("status line shows hint and model", func(t *testing.T) {
		t.Parallel()
		m := initModel(t, nopChat(t))
		assert.Contains(t, m.View(), "Enter to send")
		assert.Contains(t, m.View(), "gpt-4o-mini")
	})

	t.Run("no line exceeds the terminal width", func(t *testing.T) {
		t.Parallel()
		m := initModelWithSize(t, nopChat(t), 40, 12,
			relay.Message{Role: relay.RoleUser, Content: strings.Repeat("long words ", 12)},
		)
		for _, line := range strings.Split(m.View(), "\n") {
			assert.LessOrEqual(t, lipgloss.Width(line), 40, "line %q", line)
		}
	})
}

func TestModel_Keys(t *testing.T) {
	t.Parallel()

	t.Run("ctrl+c when idle quits", func(t *testing.T) {
		t.Parallel()
		m := initModel(t, nopChat(t))
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		require.NotNil(t, cmd)
		_, isQuit := cmd().(tea.QuitMsg)
		assert.True(t, isQuit)
	})

	t.Run("enter with blank input does nothing", func(t *testing.T) {
		t.Parallel()
		m := initModel(t, nopChat(t))
		m, cmd := submit(t, m, "   ")
		assert.False(t, m.Running())
		assert.Nil(t, cmd)
	})

	t.Run("enter while running is ignored", func(t *testing.T) {
		t.Parallel()
		rec := &chatRecorder{stream: frames()}
		m, _ := submit(t, initModel(t, rec.chat), "hi")
		require.True(t, m.Running())

		updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		assert.True(t, updated.(bt.Model).Running())
		assert.Nil(t, cmd)
	})
}

func TestModel_Turn(t *testing.T) {
	t.Parallel()

	t.Run("submit inserts the user turn optimistically", func(t *testing.T) {
		t.Parallel()
		rec := &chatRecorder{stream: frames()}
		m, cmd := submit(t, initModel(t, rec.chat), "  hello relay ")

		require.NotNil(t, cmd)
		assert.True(t, m.Running())
		assert.Empty(t, m.Input.Value())
		require.Len(t, m.Blocks(), 1)
		user := m.Blocks()[0].(*bt.UserMessageBlock)
		assert.True(t, user.Pending())
		assert.Equal(t, "hello relay", user.Text())
		assert.Contains(t, m.View(), "hello relay")
		assert.Contains(t, m.View(), "Generating...")
		assert.Empty(t, rec.recorded(), "chat is only called when the command runs")
	})

	t.Run("turn carries session, model and system prompt", func(t *testing.T) {
		t.Parallel()
		rec := &chatRecorder{stream: frames(done(""))}
		m := bt.New(rec.chat, testSession, nil, relay.DefaultTheme(), bt.Config{Model: "m-1", SystemPrompt: "be brief"})
		m = updateModel(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
		m, cmd := submit(t, m, "hi")
		drain(t, m, cmd)

		assert.Equal(t, []relay.Turn{{
			SessionID:    testSession.ID,
			Message:      "hi",
			SystemPrompt: "be brief",
			Options:      relay.Options{Model: "m-1"},
		}}, rec.recorded())
	})

	t.Run("content frames redraw the reply and done finalizes it", func(t *testing.T) {
		t.Parallel()
		var closed bool
		stream := frames(
			relay.ContentFrame{Delta: "Hel", Text: "Hel"},
			relay.ContentFrame{Delta: "lo!", Text: "Hello!"},
			done("Hello!"),
		)
		stream.CloseFn = func() error { closed = true; return nil }
		rec := &chatRecorder{stream: stream}

		m, cmd := submit(t, initModel(t, rec.chat), "hi")
		m, cmd = step(t, m, cmd) // stream opened
		m, cmd = step(t, m, cmd) // "Hel"
		require.Len(t, m.Blocks(), 2)
		assert.Contains(t, m.View(), "Hel")

		m, cmd = step(t, m, cmd) // "Hello!"
		require.Len(t, m.Blocks(), 2)
		assert.Equal(t, "Hello!", m.Blocks()[1].(*bt.AssistantTextBlock).Text())

		m, _ = step(t, m, cmd) // done
		assert.False(t, m.Running())
		assert.NoError(t, m.Err())
		assert.True(t, closed)
		require.Len(t, m.Blocks(), 2)
		assert.False(t, m.Blocks()[0].(*bt.UserMessageBlock).Pending())
		assert.Contains(t, m.View(), "Hello!")
		assert.Contains(t, m.View(), "Enter to send")
	})

	t.Run("done without content keeps only the user turn", func(t *testing.T) {
		t.Parallel()
		rec := &chatRecorder{stream: frames(done(""))}
		m, cmd := submit(t, initModel(t, rec.chat), "hi")
		m = drain(t, m, cmd)
		require.Len(t, m.Blocks(), 1)
		assert.False(t, m.Blocks()[0].(*bt.UserMessageBlock).Pending())
	})

	t.Run("error frame rolls back the turn", func(t *testing.T) {
		t.Parallel()
		history := []relay.Message{
			{Role: relay.RoleUser, Content: "earlier"},
			{Role: relay.RoleAssistant, Content: "reply"},
		}
		rec := &chatRecorder{stream: frames(
			relay.ContentFrame{Delta: "partial", Text: "partial"},
			relay.ErrorFrame{Error: "Failed to process message", Details: "boom"},
		)}
		m, cmd := submit(t, initModel(t, rec.chat, history...), "doomed")
		m = drain(t, m, cmd)

		require.Len(t, m.Blocks(), 2)
		require.Error(t, m.Err())
		assert.Equal(t, "Failed to process message: boom", m.Err().Error())
		assert.Equal(t, "doomed", m.Input.Value())
		view := m.View()
		assert.NotContains(t, view, "partial")
		assert.Contains(t, view, "Error: Failed to process message: boom")
	})

	t.Run("opening failure rolls back the turn", func(t *testing.T) {
		t.Parallel()
		rec := &chatRecorder{err: errors.New("connection refused")}
		m, cmd := submit(t, initModel(t, rec.chat), "hi")
		m = drain(t, m, cmd)

		assert.Empty(t, m.Blocks())
		assert.EqualError(t, m.Err(), "connection refused")
		assert.Equal(t, "hi", m.Input.Value())
	})

	t.Run("read failure rolls back the turn", func(t *testing.T) {
		t.Parallel()
		calls := 0
		rec := &chatRecorder{stream: &mock.FrameStream{NextFn: func() (relay.Frame, error) {
			calls++
			if calls == 1 {
				return relay.ContentFrame{Delta: "a", Text: "a"}, nil
			}
			return nil, relay.ErrStreamTruncated
		}}}
		m, cmd := submit(t, initModel(t, rec.chat), "hi")
		m = drain(t, m, cmd)

		assert.Empty(t, m.Blocks())
		assert.ErrorIs(t, m.Err(), relay.ErrStreamTruncated)
	})

	t.Run("end of stream without terminal frame counts as truncation", func(t *testing.T) {
		t.Parallel()
		rec := &chatRecorder{stream: frames(relay.ContentFrame{Delta: "a", Text: "a"})}
		m, cmd := submit(t, initModel(t, rec.chat), "hi")
		m = drain(t, m, cmd)

		assert.Empty(t, m.Blocks())
		assert.ErrorIs(t, m.Err(), relay.ErrStreamTruncated)
	})

	t.Run("ctrl+c cancels the turn without an error", func(t *testing.T) {
		t.Parallel()
		var turnCtx context.Context
		chat := func(ctx context.Context, _ relay.Turn) (relay.FrameStream, error) {
			turnCtx = ctx
			return &mock.FrameStream{NextFn: func() (relay.Frame, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}}, nil
		}
		m, cmd := submit(t, initModel(t, chat), "hi")
		m, cmd = step(t, m, cmd) // stream opened
		require.NotNil(t, turnCtx)

		updated, quit := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		m = updated.(bt.Model)
		assert.Nil(t, quit)
		assert.ErrorIs(t, turnCtx.Err(), context.Canceled)
		assert.True(t, m.Running(), "still running until the read returns")

		m = drain(t, m, cmd)
		assert.NoError(t, m.Err())
		assert.Empty(t, m.Blocks())
		assert.Equal(t, "hi", m.Input.Value())
	})

	t.Run("submit after an error clears it", func(t *testing.T) {
		t.Parallel()
		rec := &chatRecorder{err: errors.New("down")}
		m, cmd := submit(t, initModel(t, rec.chat), "hi")
		m = drain(t, m, cmd)
		require.Error(t, m.Err())

		rec.mu.Lock()
		rec.err, rec.stream = nil, frames(done("ok"))
		rec.mu.Unlock()
		m, cmd = submit(t, m, "hi again")
		assert.NoError(t, m.Err())
		m = drain(t, m, cmd)
		assert.NoError(t, m.Err())
		assert.Len(t, m.Blocks(), 2)
	})

	t.Run("messages after the turn ends are ignored", func(t *testing.T) {
		t.Parallel()
		m := initModel(t, nopChat(t))
		m = updateModel(t, m, bt.FrameMsg{Frame: relay.ContentFrame{Text: "stray"}})
		m = updateModel(t, m, bt.ChatDoneMsg{Err: errors.New("stray")})
		assert.Empty(t, m.Blocks())
		assert.NoError(t, m.Err())
	})

	t.Run("a stream opened after the turn ended is closed", func(t *testing.T) {
		t.Parallel()
		var closed bool
		m := initModel(t, nopChat(t))
		m = updateModel(t, m, bt.StreamOpenedMsg{Stream: &mock.FrameStream{CloseFn: func() error {
			closed = true
			return nil
		}}})
		assert.True(t, closed)
	})
}

func TestModel_Teatest(t *testing.T) {
	t.Parallel()

	t.Run("full exchange", func(t *testing.T) {
		t.Parallel()
		rec := &chatRecorder{stream: frames(
			relay.ContentFrame{Delta: "Hello", Text: "Hello"},
			relay.ContentFrame{Delta: "!", Text: "Hello!"},
			done("Hello!"),
		)}
		m := bt.New(rec.chat, testSession, nil, relay.DefaultTheme(), bt.Config{})

		tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(80, 24))
		tm.Type("hi")
		tm.Send(tea.KeyMsg{Type: tea.KeyEnter})

		teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
			return bytes.Contains(out, []byte("Hello!")) &&
				bytes.Contains(out, []byte("Enter to send"))
		}, teatest.WithDuration(5*time.Second))

		tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})

		fm := tm.FinalModel(t, teatest.WithFinalTimeout(5*time.Second))
		final, ok := fm.(bt.Model)
		require.True(t, ok)
		assert.False(t, final.Running())
		assert.NoError(t, final.Err())
		assert.Len(t, final.Blocks(), 2)
		require.Len(t, rec.recorded(), 1)
		assert.Equal(t, "hi", rec.recorded()[0].Message)
	})

	t.Run("history renders on start", func(t *testing.T) {
		t.Parallel()
		m := bt.New(nopChat(t), testSession, []relay.Message{
			{Role: relay.RoleUser, Content: "hello there"},
			{Role: relay.RoleAssistant, Content: "Hi! How can I help?"},
		}, relay.DefaultTheme(), bt.Config{})

		tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(80, 24))
		teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
			return bytes.Contains(out, []byte("hello there")) &&
				bytes.Contains(out, []byte("Hi! How can I help?"))
		}, teatest.WithDuration(5*time.Second))

		tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
		tm.WaitFinished(t, teatest.WithFinalTimeout(5*time.Second))
	})
}
