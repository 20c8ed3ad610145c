package sqlite_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func openStore(t *testing.T, opts ...sqlite.Option) *sqlite.Store {
	t.Helper()
	dsn, err := sqlite.DSNForFile(filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	s, err := sqlite.Open(dsn, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDSNForFile(t *testing.T) {
	t.Parallel()
	dsn, err := sqlite.DSNForFile("/tmp/relay.db")
	require.NoError(t, err)
	assert.Equal(t, "file:/tmp/relay.db?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", dsn)

	_, err = sqlite.DSNForFile(" ")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	t.Parallel()
	t.Run("rejects empty dsn", func(t *testing.T) {
		t.Parallel()
		_, err := sqlite.Open("")
		assert.Error(t, err)
	})

	t.Run("reopen keeps data", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		dsn, err := sqlite.DSNForFile(filepath.Join(t.TempDir(), "relay.db"))
		require.NoError(t, err)

		s, err := sqlite.Open(dsn)
		require.NoError(t, err)
		sess, err := s.CreateSession(ctx, "Keep")
		require.NoError(t, err)
		_, err = s.AppendMessage(ctx, sess.ID, relay.RoleUser, "Hi")
		require.NoError(t, err)
		require.NoError(t, s.Close())

		s, err = sqlite.Open(dsn)
		require.NoError(t, err)
		defer s.Close()
		got, err := s.FindSession(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, "Keep", got.Title)
		msgs, err := s.ListMessages(ctx, sess.ID)
		require.NoError(t, err)
		assert.Len(t, msgs, 1)
	})
}

func TestStore_CreateSession(t *testing.T) {
	t.Parallel()
	t.Run("blank title becomes default", func(t *testing.T) {
		t.Parallel()
		s := openStore(t)
		sess, err := s.CreateSession(context.Background(), "   ")
		require.NoError(t, err)
		assert.Equal(t, relay.DefaultSessionTitle, sess.Title)
		assert.Len(t, sess.ID, 26)
		assert.Equal(t, sess.CreatedAt, sess.UpdatedAt)
	})

	t.Run("ids are unique", func(t *testing.T) {
		t.Parallel()
		s := openStore(t)
		seen := map[string]bool{}
		for range 20 {
			sess, err := s.CreateSession(context.Background(), "")
			require.NoError(t, err)
			assert.False(t, seen[sess.ID])
			seen[sess.ID] = true
		}
	})
}

func TestStore_FindSession(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	_, err := s.FindSession(context.Background(), "missing")
	assert.ErrorIs(t, err, relay.ErrSessionNotFound)
}

func TestStore_ListSessions(t *testing.T) {
	t.Parallel()
	t.Run("empty store", func(t *testing.T) {
		t.Parallel()
		s := openStore(t)
		got, err := s.ListSessions(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("most recently active first", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
		s := openStore(t, sqlite.WithClock(c.Now))

		a, err := s.CreateSession(ctx, "A")
		require.NoError(t, err)
		c.Set(c.Now().Add(time.Second))
		b, err := s.CreateSession(ctx, "B")
		require.NoError(t, err)

		got, err := s.ListSessions(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, b.ID, got[0].ID)

		c.Set(c.Now().Add(time.Second))
		_, err = s.AppendMessage(ctx, a.ID, relay.RoleUser, "bump")
		require.NoError(t, err)

		got, err = s.ListSessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, a.ID, got[0].ID)
		assert.Equal(t, c.Now(), got[0].UpdatedAt)
	})
}

func TestStore_AppendMessage(t *testing.T) {
	t.Parallel()
	t.Run("unknown session", func(t *testing.T) {
		t.Parallel()
		s := openStore(t)
		_, err := s.AppendMessage(context.Background(), "missing", relay.RoleUser, "Hi")
		assert.ErrorIs(t, err, relay.ErrSessionNotFound)

		all, err := s.ListAllMessages(context.Background())
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("returns stored message", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		c := &clock{now: time.Date(2024, 1, 1, 12, 0, 0, 123456789, time.UTC)}
		s := openStore(t, sqlite.WithClock(c.Now))
		sess, err := s.CreateSession(ctx, "")
		require.NoError(t, err)

		m, err := s.AppendMessage(ctx, sess.ID, relay.RoleAssistant, "Hello")
		require.NoError(t, err)
		assert.NotZero(t, m.ID)
		assert.Equal(t, sess.ID, m.SessionID)
		assert.Equal(t, relay.RoleAssistant, m.Role)
		assert.Equal(t, "Hello", m.Content)
		assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 123000000, time.UTC), m.Timestamp)

		got, err := s.FindSession(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, m.Timestamp, got.UpdatedAt)
	})

	t.Run("clock going backwards keeps order", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		c := &clock{now: start}
		s := openStore(t, sqlite.WithClock(c.Now))
		sess, err := s.CreateSession(ctx, "")
		require.NoError(t, err)

		first, err := s.AppendMessage(ctx, sess.ID, relay.RoleUser, "first")
		require.NoError(t, err)
		c.Set(start.Add(-time.Hour))
		second, err := s.AppendMessage(ctx, sess.ID, relay.RoleAssistant, "second")
		require.NoError(t, err)

		assert.False(t, second.Timestamp.Before(first.Timestamp))

		msgs, err := s.ListMessages(ctx, sess.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "first", msgs[0].Content)
		assert.Equal(t, "second", msgs[1].Content)

		got, err := s.FindSession(ctx, sess.ID)
		require.NoError(t, err)
		assert.False(t, got.UpdatedAt.Before(second.Timestamp))
	})

	t.Run("concurrent appends", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := openStore(t)
		sess, err := s.CreateSession(ctx, "")
		require.NoError(t, err)

		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.AppendMessage(ctx, sess.ID, relay.RoleUser, "x")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		msgs, err := s.ListMessages(ctx, sess.ID)
		require.NoError(t, err)
		assert.Len(t, msgs, 10)
	})
}

func TestStore_ListMessages(t *testing.T) {
	t.Parallel()
	t.Run("unknown session is empty", func(t *testing.T) {
		t.Parallel()
		s := openStore(t)
		got, err := s.ListMessages(context.Background(), "missing")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("sessions are isolated", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := openStore(t)
		a, err := s.CreateSession(ctx, "A")
		require.NoError(t, err)
		b, err := s.CreateSession(ctx, "B")
		require.NoError(t, err)
		_, err = s.AppendMessage(ctx, a.ID, relay.RoleUser, "for a")
		require.NoError(t, err)
		_, err = s.AppendMessage(ctx, b.ID, relay.RoleUser, "for b")
		require.NoError(t, err)

		got, err := s.ListMessages(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "for a", got[0].Content)

		all, err := s.ListAllMessages(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestStore_DeleteSession(t *testing.T) {
	t.Parallel()
	t.Run("removes session and messages", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := openStore(t)
		sess, err := s.CreateSession(ctx, "")
		require.NoError(t, err)
		keep, err := s.CreateSession(ctx, "")
		require.NoError(t, err)
		_, err = s.AppendMessage(ctx, sess.ID, relay.RoleUser, "Hi")
		require.NoError(t, err)
		_, err = s.AppendMessage(ctx, keep.ID, relay.RoleUser, "Stay")
		require.NoError(t, err)

		require.NoError(t, s.DeleteSession(ctx, sess.ID))

		_, err = s.FindSession(ctx, sess.ID)
		assert.ErrorIs(t, err, relay.ErrSessionNotFound)
		msgs, err := s.ListMessages(ctx, sess.ID)
		require.NoError(t, err)
		assert.Empty(t, msgs)

		all, err := s.ListAllMessages(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, keep.ID, all[0].SessionID)
	})

	t.Run("missing session is not an error", func(t *testing.T) {
		t.Parallel()
		s := openStore(t)
		assert.NoError(t, s.DeleteSession(context.Background(), "missing"))
	})
}
