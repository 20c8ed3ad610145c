package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fwojciec/relay"
	bt "github.com/fwojciec/relay/bubbletea"
	relayhttp "github.com/fwojciec/relay/http"
	"github.com/spf13/cobra"
)

type chatFlags struct {
	session      string
	newSession   bool
	title        string
	model        string
	systemPrompt string
}

func newChatCmd(e env, root *rootFlags) *cobra.Command {
	var f chatFlags
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the relay in the terminal",
		Long: "Opens the most recently active session unless --session or --new is given. " +
			"A new session is created when none exist.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			server := root.server(e)
			client := relayhttp.NewClient(server)
			if _, err := client.Health(ctx); err != nil {
				return fmt.Errorf("relay at %s: %w", server, err)
			}

			session, err := f.resolveSession(ctx, client)
			if err != nil {
				return err
			}
			history, err := client.ListMessages(ctx, session.ID)
			if err != nil {
				return fmt.Errorf("load history: %w", err)
			}

			chat := func(ctx context.Context, turn relay.Turn) (relay.FrameStream, error) {
				return client.Chat(ctx, relayhttp.NewChatRequest(turn))
			}
			m := bt.New(chat, session, history, relay.DefaultTheme(), bt.Config{
				ServerURL:    server,
				Model:        f.model,
				SystemPrompt: f.systemPrompt,
			})
			if err := bt.Run(ctx, m); err != nil {
				return fmt.Errorf("TUI: %w", err)
			}
			fmt.Fprintf(e.stdout, "Session %s\n", session.ID)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.session, "session", "", "session ID to open")
	fl.BoolVar(&f.newSession, "new", false, "start a new session")
	fl.StringVar(&f.title, "title", "", "title for a new session")
	fl.StringVar(&f.model, "model", "", "model to request (default: server default)")
	fl.StringVar(&f.systemPrompt, "system-prompt", "", "system prompt for every turn (default: server default)")
	cmd.MarkFlagsMutuallyExclusive("session", "new")
	return cmd
}

// sessionClient is the part of the API client used to pick a session.
type sessionClient interface {
	CreateSession(ctx context.Context, title string) (relay.Session, error)
	ListSessions(ctx context.Context) ([]relay.Session, error)
	FindSession(ctx context.Context, id string) (relay.Session, error)
}

func (f *chatFlags) resolveSession(ctx context.Context, c sessionClient) (relay.Session, error) {
	switch {
	case f.session != "":
		s, err := c.FindSession(ctx, f.session)
		var apiErr *relayhttp.Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return relay.Session{}, fmt.Errorf("session %s not found", f.session)
		}
		return s, err
	case f.newSession:
		return c.CreateSession(ctx, f.title)
	}
	sessions, err := c.ListSessions(ctx)
	if err != nil {
		return relay.Session{}, err
	}
	if len(sessions) > 0 {
		return sessions[0], nil
	}
	return c.CreateSession(ctx, f.title)
}
