package mock

import (
	"context"

	"github.com/fwojciec/relay"
)

// Interface compliance check.
var _ relay.ConversationStore = (*Store)(nil)

// Store is a test double for relay.ConversationStore.
// Set the function fields for the methods you need; unset fields panic.
type Store struct {
	CreateSessionFn   func(ctx context.Context, title string) (relay.Session, error)
	ListSessionsFn    func(ctx context.Context) ([]relay.Session, error)
	FindSessionFn     func(ctx context.Context, id string) (relay.Session, error)
	DeleteSessionFn   func(ctx context.Context, id string) error
	AppendMessageFn   func(ctx context.Context, sessionID string, role relay.Role, content string) (relay.Message, error)
	ListMessagesFn    func(ctx context.Context, sessionID string) ([]relay.Message, error)
	ListAllMessagesFn func(ctx context.Context) ([]relay.Message, error)
}

func (s *Store) CreateSession(ctx context.Context, title string) (relay.Session, error) {
	return s.CreateSessionFn(ctx, title)
}

func (s *Store) ListSessions(ctx context.Context) ([]relay.Session, error) {
	return s.ListSessionsFn(ctx)
}

func (s *Store) FindSession(ctx context.Context, id string) (relay.Session, error) {
	return s.FindSessionFn(ctx, id)
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.DeleteSessionFn(ctx, id)
}

func (s *Store) AppendMessage(ctx context.Context, sessionID string, role relay.Role, content string) (relay.Message, error) {
	return s.AppendMessageFn(ctx, sessionID, role, content)
}

func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]relay.Message, error) {
	return s.ListMessagesFn(ctx, sessionID)
}

func (s *Store) ListAllMessages(ctx context.Context) ([]relay.Message, error) {
	return s.ListAllMessagesFn(ctx)
}
