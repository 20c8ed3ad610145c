// Package bubbletea provides a Bubble Tea terminal client for a relay server.
//
// The client renders a session's history, inserts the user's turn
// optimistically, redraws the assistant reply from each content frame as it
// streams, and rolls the optimistic turn back if the stream fails.
package bubbletea

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/relay"
)

// ChatFunc starts one turn against the relay and returns its frame stream.
// The stream is read until a terminal frame or an error.
type ChatFunc func(ctx context.Context, turn relay.Turn) (relay.FrameStream, error)

// Config carries display and turn settings that do not change during a run.
type Config struct {
	// ServerURL is shown in the header.
	ServerURL string
	// Model is forwarded with every turn and shown in the status bar.
	Model string
	// SystemPrompt is forwarded with every turn; empty uses the server default.
	SystemPrompt string
}

// Run creates and runs the Bubble Tea program. It blocks until the program
// exits. Cancelling ctx quits the program.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// StreamOpenedMsg reports that the relay accepted a turn.
type StreamOpenedMsg struct {
	Stream relay.FrameStream
}

// FrameMsg delivers one decoded frame to the model.
type FrameMsg struct {
	Frame relay.Frame
}

// ChatDoneMsg reports that a turn ended without a terminal frame, either
// because opening the stream failed or because reading it did. Err is nil
// when the stream ended after its terminal frame.
type ChatDoneMsg struct {
	Err error
}
