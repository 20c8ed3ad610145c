package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	relayhttp "github.com/fwojciec/relay/http"
	"github.com/spf13/cobra"
)

func newSessionsCmd(e env, root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage chat sessions on a relay server",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List sessions, most recently active first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				client := relayhttp.NewClient(root.server(e))
				sessions, err := client.ListSessions(cmd.Context())
				if err != nil {
					return err
				}
				if len(sessions) == 0 {
					fmt.Fprintln(e.stdout, "No sessions.")
					return nil
				}
				t := table.New().
					Border(lipgloss.HiddenBorder()).
					Headers("ID", "TITLE", "UPDATED")
				for _, s := range sessions {
					t.Row(s.ID, s.Title, s.UpdatedAt.Local().Format(time.DateTime))
				}
				fmt.Fprintln(e.stdout, t.Render())
				return nil
			},
		},
		&cobra.Command{
			Use:   "new [title]",
			Short: "Create a session and print its ID",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var title string
				if len(args) == 1 {
					title = args[0]
				}
				s, err := relayhttp.NewClient(root.server(e)).CreateSession(cmd.Context(), title)
				if err != nil {
					return err
				}
				fmt.Fprintln(e.stdout, s.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "rm ID...",
			Short: "Delete sessions and their messages",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				client := relayhttp.NewClient(root.server(e))
				for _, id := range args {
					if err := client.DeleteSession(cmd.Context(), id); err != nil {
						return fmt.Errorf("delete %s: %w", id, err)
					}
				}
				return nil
			},
		},
	)
	return cmd
}
