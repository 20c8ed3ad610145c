package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/fwojciec/relay"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
)

// CreateSession inserts a session with a ULID identifier, so IDs sort by
// creation time and need no shared sequence.
func (s *Store) CreateSession(ctx context.Context, title string) (relay.Session, error) {
	if strings.TrimSpace(title) == "" {
		title = relay.DefaultSessionTitle
	}
	now := s.timestamp()
	sess := relay.Session{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, title, created_at_ms, updated_at_ms)
		VALUES (?, ?, ?, ?)
	`, sess.ID, sess.Title, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return relay.Session{}, errors.Wrap(err, "sqlite: insert session")
	}
	return sess, nil
}

// ListSessions returns sessions by UpdatedAt descending. Equal timestamps
// fall back to creation order, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]relay.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, created_at_ms, updated_at_ms
		FROM sessions
		ORDER BY updated_at_ms DESC, created_at_ms DESC, id DESC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close()

	sessions := []relay.Session{}
	for rows.Next() {
		var (
			sess               relay.Session
			createdMs, updated int64
		)
		if err := rows.Scan(&sess.ID, &sess.Title, &createdMs, &updated); err != nil {
			return nil, errors.Wrap(err, "sqlite: scan session")
		}
		sess.CreatedAt = fromMillis(createdMs)
		sess.UpdatedAt = fromMillis(updated)
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite: list sessions")
	}
	return sessions, nil
}

// FindSession returns the session with the given ID.
func (s *Store) FindSession(ctx context.Context, id string) (relay.Session, error) {
	var (
		sess               relay.Session
		createdMs, updated int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, created_at_ms, updated_at_ms
		FROM sessions WHERE id = ?
	`, id).Scan(&sess.ID, &sess.Title, &createdMs, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return relay.Session{}, errors.Wrapf(relay.ErrSessionNotFound, "sqlite: session %q", id)
	}
	if err != nil {
		return relay.Session{}, errors.Wrap(err, "sqlite: find session")
	}
	sess.CreatedAt = fromMillis(createdMs)
	sess.UpdatedAt = fromMillis(updated)
	return sess, nil
}

// DeleteSession removes the session and its messages in one transaction.
// The explicit message delete keeps the cascade intact even when the DSN does
// not enable foreign keys.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "sqlite: begin delete")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return errors.Wrap(err, "sqlite: delete messages")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return errors.Wrap(err, "sqlite: delete session")
	}
	return errors.Wrap(tx.Commit(), "sqlite: commit delete")
}
