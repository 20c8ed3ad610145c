package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// DefaultIdleTimeout bounds how long the relay waits for the next upstream
// delta before giving up on the turn.
const DefaultIdleTimeout = 2 * time.Minute

// UpstreamErrorMessage is the error text carried by in-band failure frames.
const UpstreamErrorMessage = "Failed to process message"

// TurnState is the position of one relay invocation in its state machine.
type TurnState int

const (
	TurnValidating      TurnState = iota // Checking the request and session.
	TurnHistoryPrepared                  // User turn persisted, prompt assembled.
	TurnStreaming                        // Transport open, relaying deltas.
	TurnCommitting                       // Upstream done, persisting the assistant turn.
	TurnCompleted                        // Done frame written.
	TurnFailed                           // Terminated by an error.
)

func (s TurnState) String() string {
	switch s {
	case TurnValidating:
		return "validating"
	case TurnHistoryPrepared:
		return "history_prepared"
	case TurnStreaming:
		return "streaming"
	case TurnCommitting:
		return "committing"
	case TurnCompleted:
		return "completed"
	case TurnFailed:
		return "failed"
	default:
		return fmt.Sprintf("TurnState(%d)", int(s))
	}
}

// Turn is one user submission to relay.
type Turn struct {
	SessionID string
	Message   string

	// SystemPrompt is a per-request overlay; it is not stored in history.
	SystemPrompt string
	Options      Options
}

// Result describes how far a turn got.
//
// FailedIn is the state the turn was in when it failed; it is only
// meaningful when State is TurnFailed. Content holds the accumulated upstream
// text, which on failure is reported but never persisted.
type Result struct {
	State            TurnState
	FailedIn         TurnState
	UserMessage      Message
	AssistantMessage Message
	Content          string
	Prompt           []PromptMessage
}

// Relay turns a stored history plus a new user turn into an upstream
// streaming completion, frames each delta toward the caller, and commits the
// finished assistant turn.
//
// Turns on the same session are not serialized. Two concurrent turns may
// interleave their appends and each see the other's user message in its
// prompt.
type Relay struct {
	store       ConversationStore
	provider    Provider
	idleTimeout time.Duration
}

// RelayOption configures a [Relay].
type RelayOption func(*Relay)

// WithIdleTimeout sets the maximum silence between upstream deltas.
// Zero disables the timeout.
func WithIdleTimeout(d time.Duration) RelayOption {
	return func(r *Relay) { r.idleTimeout = d }
}

// NewRelay creates a Relay over the given store and upstream provider.
func NewRelay(store ConversationStore, provider Provider, opts ...RelayOption) *Relay {
	r := &Relay{
		store:       store,
		provider:    provider,
		idleTimeout: DefaultIdleTimeout,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes one turn.
//
// Errors returned before the transport was opened (Result.FailedIn is
// TurnValidating or TurnHistoryPrepared) mean nothing was written to w and the
// caller should answer synchronously: they wrap ErrValidation,
// ErrSessionNotFound or ErrStorage. Once the transport is open every outcome
// is reported in-band and w is closed before Run returns; the returned error
// is then informational and wraps ErrUpstream, ErrStorage or ErrClientGone.
func (r *Relay) Run(ctx context.Context, turn Turn, w FrameWriter) (Result, error) {
	res := Result{State: TurnValidating}

	if turn.Message == "" {
		return res.fail(ErrMessageRequired)
	}
	if turn.SessionID == "" {
		return res.fail(ErrSessionIDRequired)
	}
	if _, err := r.store.FindSession(ctx, turn.SessionID); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return res.fail(err)
		}
		return res.fail(fmt.Errorf("find session: %w: %w", ErrStorage, err))
	}

	res.State = TurnHistoryPrepared
	userMsg, err := r.store.AppendMessage(ctx, turn.SessionID, RoleUser, turn.Message)
	if err != nil {
		return res.fail(fmt.Errorf("append user turn: %w: %w", ErrStorage, err))
	}
	res.UserMessage = userMsg

	prompt, err := Assemble(ctx, r.store, turn.SessionID, turn.SystemPrompt)
	if err != nil {
		return res.fail(fmt.Errorf("assemble prompt: %w: %w", ErrStorage, err))
	}
	res.Prompt = prompt

	res.State = TurnStreaming
	if err := w.Begin(); err != nil {
		return res.fail(fmt.Errorf("open transport: %w: %w", ErrClientGone, err))
	}
	defer w.Close()

	content, err := r.stream(ctx, Request{Messages: prompt, Options: turn.Options}, w)
	res.Content = content
	if err != nil {
		return res.fail(err)
	}

	// The upstream finished; a caller that leaves now must not lose the turn.
	res.State = TurnCommitting
	assistantMsg, err := r.store.AppendMessage(context.WithoutCancel(ctx), turn.SessionID, RoleAssistant, content)
	if err != nil {
		err = fmt.Errorf("commit assistant turn: %w: %w", ErrStorage, err)
		if werr := w.WriteError(UpstreamErrorMessage, err.Error()); werr != nil {
			err = fmt.Errorf("%w (error frame: %w)", err, werr)
		}
		return res.fail(err)
	}
	res.AssistantMessage = assistantMsg

	res.State = TurnCompleted
	if err := w.WriteDone(assistantMsg.Timestamp); err != nil {
		return res, fmt.Errorf("write done frame: %w: %w", ErrClientGone, err)
	}
	return res, nil
}

// stream relays upstream deltas to w and returns the accumulated text.
// Failures other than a vanished caller are reported with an error frame.
func (r *Relay) stream(ctx context.Context, req Request, w FrameWriter) (string, error) {
	streamCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var idle *time.Timer
	if r.idleTimeout > 0 {
		idle = time.AfterFunc(r.idleTimeout, func() { cancel(ErrIdleTimeout) })
		defer idle.Stop()
	}

	var acc strings.Builder
	s, err := r.provider.Stream(streamCtx, req)
	if err != nil {
		return "", r.upstreamFailed(ctx, streamCtx, err, w)
	}
	defer s.Close()

	for {
		delta, err := s.Next()
		if err == io.EOF {
			return acc.String(), nil
		}
		if err != nil {
			return acc.String(), r.upstreamFailed(ctx, streamCtx, err, w)
		}
		if delta == "" {
			resetIdle(idle, r.idleTimeout)
			continue
		}
		acc.WriteString(delta)
		// Only time spent waiting on the upstream counts toward the idle timeout.
		if idle != nil {
			idle.Stop()
		}
		if err := w.WriteContent(delta); err != nil {
			return acc.String(), fmt.Errorf("write content frame: %w: %w", ErrClientGone, err)
		}
		resetIdle(idle, r.idleTimeout)
	}
}

func resetIdle(t *time.Timer, d time.Duration) {
	if t != nil {
		t.Reset(d)
	}
}

// upstreamFailed classifies an upstream error and, unless the caller is
// gone, emits the error frame.
func (r *Relay) upstreamFailed(ctx, streamCtx context.Context, err error, w FrameWriter) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrClientGone, context.Cause(ctx))
	}
	details := err.Error()
	if cause := context.Cause(streamCtx); errors.Is(cause, ErrIdleTimeout) {
		err = cause
		details = cause.Error()
	}
	err = fmt.Errorf("%w: %w", ErrUpstream, err)
	if werr := w.WriteError(UpstreamErrorMessage, details); werr != nil {
		return fmt.Errorf("%w (error frame: %w)", err, werr)
	}
	return err
}

func (res Result) fail(err error) (Result, error) {
	res.FailedIn = res.State
	res.State = TurnFailed
	return res, err
}
