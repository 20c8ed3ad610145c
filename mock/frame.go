package mock

import (
	"time"

	"github.com/fwojciec/relay"
)

// Interface compliance checks.
var (
	_ relay.FrameStream = (*FrameStream)(nil)
	_ relay.FrameWriter = (*FrameWriter)(nil)
)

// FrameStream is a test double for relay.FrameStream.
// NextFn panics when nil; CloseFn is nil-safe.
type FrameStream struct {
	NextFn  func() (relay.Frame, error)
	CloseFn func() error
}

// Next delegates to NextFn.
func (s *FrameStream) Next() (relay.Frame, error) {
	return s.NextFn()
}

// Close delegates to CloseFn. Returns nil when CloseFn is not set.
func (s *FrameStream) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}

// FrameWriter is a test double for relay.FrameWriter.
// Every field is nil-safe and succeeds when unset.
type FrameWriter struct {
	BeginFn        func() error
	WriteContentFn func(delta string) error
	WriteDoneFn    func(ts time.Time) error
	WriteErrorFn   func(message, details string) error
	CloseFn        func() error
}

func (w *FrameWriter) Begin() error {
	if w.BeginFn == nil {
		return nil
	}
	return w.BeginFn()
}

func (w *FrameWriter) WriteContent(delta string) error {
	if w.WriteContentFn == nil {
		return nil
	}
	return w.WriteContentFn(delta)
}

func (w *FrameWriter) WriteDone(ts time.Time) error {
	if w.WriteDoneFn == nil {
		return nil
	}
	return w.WriteDoneFn(ts)
}

func (w *FrameWriter) WriteError(message, details string) error {
	if w.WriteErrorFn == nil {
		return nil
	}
	return w.WriteErrorFn(message, details)
}

func (w *FrameWriter) Close() error {
	if w.CloseFn == nil {
		return nil
	}
	return w.CloseFn()
}
