package mock

import (
	"io"

	"github.com/fwojciec/relay"
)

// Interface compliance check.
var _ relay.Stream = (*Stream)(nil)

// Stream is a test double for relay.Stream.
// NextFn panics when nil to catch missing setup. CloseFn and StateFn are
// nil-safe (no-op and zero value) because callers commonly defer Close.
type Stream struct {
	NextFn  func() (string, error)
	StateFn func() relay.StreamState
	CloseFn func() error
}

// NewStream returns a Stream that yields deltas in order and then final.
// A nil final ends the stream with io.EOF. The returned Stream tracks its
// own state.
func NewStream(final error, deltas ...string) *Stream {
	if final == nil {
		final = io.EOF
	}
	state := relay.StreamStateNew
	i := 0
	s := &Stream{}
	s.NextFn = func() (string, error) {
		if state == relay.StreamStateClosed {
			return "", relay.ErrStreamClosed
		}
		if i < len(deltas) {
			state = relay.StreamStateStreaming
			d := deltas[i]
			i++
			return d, nil
		}
		if final == io.EOF {
			state = relay.StreamStateComplete
		} else {
			state = relay.StreamStateError
		}
		return "", final
	}
	s.StateFn = func() relay.StreamState { return state }
	s.CloseFn = func() error {
		if state == relay.StreamStateNew || state == relay.StreamStateStreaming {
			state = relay.StreamStateClosed
		}
		return nil
	}
	return s
}

// Next delegates to NextFn.
func (s *Stream) Next() (string, error) {
	return s.NextFn()
}

// State delegates to StateFn. Returns StreamStateNew when StateFn is nil.
func (s *Stream) State() relay.StreamState {
	if s.StateFn == nil {
		return relay.StreamStateNew
	}
	return s.StateFn()
}

// Close delegates to CloseFn. Returns nil when CloseFn is not set.
func (s *Stream) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}
