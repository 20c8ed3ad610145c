package relay

import (
	"context"
	"time"
)

// DefaultSessionTitle is used when a session is created without a title.
const DefaultSessionTitle = "New Chat"

// Session represents a named, independently ordered conversation thread.
// UpdatedAt is bumped on every message append and is never earlier than the
// newest message's Timestamp.
type Session struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionService manages sessions.
type SessionService interface {
	// CreateSession creates a session. A blank title becomes DefaultSessionTitle.
	CreateSession(ctx context.Context, title string) (Session, error)

	// ListSessions returns sessions, most recently active first.
	ListSessions(ctx context.Context) ([]Session, error)

	// FindSession returns ErrSessionNotFound when id does not exist.
	FindSession(ctx context.Context, id string) (Session, error)

	// DeleteSession removes a session and all its messages. Deleting a
	// missing session is not an error.
	DeleteSession(ctx context.Context, id string) error
}

// MessageService manages the ordered message history of sessions.
type MessageService interface {
	// AppendMessage returns ErrSessionNotFound if the session does not exist.
	// The insert and the session's UpdatedAt refresh are observed together.
	AppendMessage(ctx context.Context, sessionID string, role Role, content string) (Message, error)

	// ListMessages returns a session's messages in replay order.
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)

	// ListAllMessages returns messages across all sessions in timestamp order.
	ListAllMessages(ctx context.Context) ([]Message, error)
}

// ConversationStore is the durable mapping from session to ordered messages.
type ConversationStore interface {
	SessionService
	MessageService
}
