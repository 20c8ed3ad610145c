package relay

// StreamState indicates the current state of a Stream.
type StreamState int

const (
	StreamStateNew       StreamState = iota // Before Next() is ever called.
	StreamStateStreaming                    // Mid-stream, receiving deltas.
	StreamStateComplete                     // Next() returned io.EOF.
	StreamStateError                        // Next() returned non-EOF error.
	StreamStateClosed                       // Close() called before terminal state.
)

// Stream is a pull-based iterator over upstream text deltas. Cancellation
// flows through the context passed to Provider.Stream().
//
// Next returns the next non-empty text delta, io.EOF when the upstream ended
// normally, or the terminal error. The caller only asks for the next delta
// after it has handled the current one, so a slow caller slows the upstream
// read rather than buffering.
//
// Close stops further upstream reads and releases the upstream connection.
// It is safe to call after a terminal state.
type Stream interface {
	Next() (string, error)
	State() StreamState
	Close() error
}
