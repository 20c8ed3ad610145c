package relay

import "time"

// Message is one persisted entry of a session's history.
// For a fixed session, messages are totally ordered by Timestamp with ties
// broken by ID.
type Message struct {
	ID        int64
	SessionID string
	Role      Role
	Content   string
	Timestamp time.Time
}

// PromptMessage is one {role, content} entry of an upstream prompt.
type PromptMessage struct {
	Role    Role
	Content string
}
