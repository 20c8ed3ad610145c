package relay

import (
	"context"
	"fmt"
	"strings"
)

// Assemble builds the upstream prompt for a session from stored history.
// A non-blank systemPrompt is prepended as a single system entry for this call
// only; it is never persisted. Assemble must run after the new user turn has
// been appended so that turn is the last entry.
func Assemble(ctx context.Context, messages MessageService, sessionID, systemPrompt string) ([]PromptMessage, error) {
	history, err := messages.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	prompt := make([]PromptMessage, 0, len(history)+1)
	if strings.TrimSpace(systemPrompt) != "" {
		prompt = append(prompt, PromptMessage{Role: RoleSystem, Content: systemPrompt})
	}
	for _, m := range history {
		prompt = append(prompt, PromptMessage{Role: m.Role, Content: m.Content})
	}
	return prompt, nil
}
