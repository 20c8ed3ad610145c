package mock_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_Stream(t *testing.T) {
	t.Parallel()

	t.Run("passes the request through", func(t *testing.T) {
		t.Parallel()
		var got relay.Request
		p := &mock.Provider{
			StreamFn: func(_ context.Context, req relay.Request) (relay.Stream, error) {
				got = req
				return mock.NewStream(nil, "pong"), nil
			},
		}
		req := relay.Request{
			Messages: []relay.PromptMessage{{Role: relay.RoleUser, Content: "ping"}},
			Options:  relay.Options{Model: "gpt-4o-mini"},
		}
		s, err := p.Stream(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, req, got)

		delta, err := s.Next()
		require.NoError(t, err)
		assert.Equal(t, "pong", delta)
		_, err = s.Next()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("open error", func(t *testing.T) {
		t.Parallel()
		wantErr := errors.New("rate limited")
		p := &mock.Provider{
			StreamFn: func(context.Context, relay.Request) (relay.Stream, error) {
				return nil, wantErr
			},
		}
		_, err := p.Stream(context.Background(), relay.Request{})
		assert.ErrorIs(t, err, wantErr)
	})

	t.Run("unset StreamFn panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			_, _ = (&mock.Provider{}).Stream(context.Background(), relay.Request{})
		})
	})
}
