package relay

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a request failed validation.
	ErrValidation = errors.New("validation error")

	// ErrMessageRequired indicates a turn was submitted without message text.
	ErrMessageRequired = fmt.Errorf("message is required: %w", ErrValidation)

	// ErrSessionIDRequired indicates a turn was submitted without a session ID.
	ErrSessionIDRequired = fmt.Errorf("session id is required: %w", ErrValidation)

	// ErrSessionNotFound indicates the referenced session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrStorage indicates a persistence failure.
	ErrStorage = errors.New("storage error")

	// ErrUpstream indicates the completion producer failed or was interrupted
	// after streaming began.
	ErrUpstream = errors.New("upstream error")

	// ErrIdleTimeout indicates the upstream produced nothing within the
	// relay's idle window.
	ErrIdleTimeout = errors.New("upstream idle timeout")

	// ErrClientGone indicates the caller went away mid-stream.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamClosed indicates an operation on a closed stream.
	ErrStreamClosed = errors.New("stream closed")

	// ErrStreamTruncated indicates a frame stream ended without a done or
	// error frame.
	ErrStreamTruncated = errors.New("stream ended without terminal frame")

	// ErrMalformedFrame indicates a data line whose payload is not a
	// recognized frame.
	ErrMalformedFrame = errors.New("malformed frame")
)
