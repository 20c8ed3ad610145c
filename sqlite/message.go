package sqlite

import (
	"context"
	"database/sql"

	"github.com/fwojciec/relay"
	"github.com/pkg/errors"
)

// AppendMessage inserts a message and refreshes the session's UpdatedAt in
// one transaction.
//
// The message timestamp is clamped to the session's current UpdatedAt, so
// within a session timestamps never decrease in insertion order and
// UpdatedAt stays at or after every message even if the wall clock steps back.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, role relay.Role, content string) (relay.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return relay.Message{}, errors.Wrap(err, "sqlite: begin append")
	}
	defer func() { _ = tx.Rollback() }()

	var updatedMs int64
	err = tx.QueryRowContext(ctx, `SELECT updated_at_ms FROM sessions WHERE id = ?`, sessionID).Scan(&updatedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return relay.Message{}, errors.Wrapf(relay.ErrSessionNotFound, "sqlite: session %q", sessionID)
	}
	if err != nil {
		return relay.Message{}, errors.Wrap(err, "sqlite: read session")
	}

	ts := max(s.timestamp().UnixMilli(), updatedMs)
	res, err := tx.ExecContext(ctx, `
		INSERT INTO messages (session_id, role, content, timestamp_ms)
		VALUES (?, ?, ?, ?)
	`, sessionID, string(role), content, ts)
	if err != nil {
		return relay.Message{}, errors.Wrap(err, "sqlite: insert message")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return relay.Message{}, errors.Wrap(err, "sqlite: message id")
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at_ms = ? WHERE id = ?`, ts, sessionID); err != nil {
		return relay.Message{}, errors.Wrap(err, "sqlite: touch session")
	}
	if err := tx.Commit(); err != nil {
		return relay.Message{}, errors.Wrap(err, "sqlite: commit append")
	}

	return relay.Message{
		ID:        id,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: fromMillis(ts),
	}, nil
}

// ListMessages returns the session's messages by timestamp, ties broken by
// insertion order. An unknown session yields an empty list.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]relay.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, timestamp_ms
		FROM messages WHERE session_id = ?
		ORDER BY timestamp_ms ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: list messages")
	}
	return scanMessages(rows)
}

// ListAllMessages returns every message across sessions by timestamp.
func (s *Store) ListAllMessages(ctx context.Context) ([]relay.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, timestamp_ms
		FROM messages
		ORDER BY timestamp_ms ASC, id ASC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: list all messages")
	}
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]relay.Message, error) {
	defer rows.Close()
	msgs := []relay.Message{}
	for rows.Next() {
		var (
			m    relay.Message
			role string
			ts   int64
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &ts); err != nil {
			return nil, errors.Wrap(err, "sqlite: scan message")
		}
		r, err := relay.ParseRole(role)
		if err != nil {
			return nil, errors.Wrapf(err, "sqlite: message %d", m.ID)
		}
		m.Role = r
		m.Timestamp = fromMillis(ts)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite: scan messages")
	}
	return msgs, nil
}
