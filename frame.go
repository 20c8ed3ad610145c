package relay

import "time"

// Frame is a sealed interface representing one decoded unit of a chat event
// stream. The unexported marker method prevents external implementations.
type Frame interface {
	frame()
}

// ContentFrame carries one incremental text delta. Text is the accumulated
// content of the turn so far, including Delta.
type ContentFrame struct {
	Delta string
	Text  string
}

func (ContentFrame) frame() {}

// DoneFrame is the terminal success marker. Message is the finalized
// assistant message assembled from all preceding content frames; it has no
// ID or SessionID because the wire frame carries neither.
type DoneFrame struct {
	Message Message
}

func (DoneFrame) frame() {}

// ErrorFrame is the terminal failure marker.
type ErrorFrame struct {
	Error   string
	Details string
}

func (ErrorFrame) frame() {}

// Interface compliance checks.
var (
	_ Frame = ContentFrame{}
	_ Frame = DoneFrame{}
	_ Frame = ErrorFrame{}
)

// FrameStream is a pull-based iterator over a relay response. Next returns
// io.EOF after a DoneFrame or ErrorFrame has been returned; it is not
// restartable.
type FrameStream interface {
	Next() (Frame, error)
	Close() error
}

// FrameWriter is the streaming transport toward the caller. Begin commits the
// transport to event-stream mode; before Begin the caller can still be
// answered with an ordinary error response. Each Write is delivered to the
// caller before it returns.
type FrameWriter interface {
	Begin() error
	WriteContent(delta string) error
	WriteDone(ts time.Time) error
	WriteError(message, details string) error
	Close() error
}
