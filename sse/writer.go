package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fwojciec/relay"
)

// Interface compliance check.
var _ relay.FrameWriter = (*Writer)(nil)

// Writer writes frames to an HTTP response, flushing after each one.
// It is not safe for concurrent use.
type Writer struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
	closed  bool
}

// NewWriter returns a Writer over w. Nothing is sent until Begin.
func NewWriter(w http.ResponseWriter) *Writer {
	return &Writer{w: w, rc: http.NewResponseController(w)}
}

// Begin sends the event-stream headers and a 200 status.
func (w *Writer) Begin() error {
	if w.started {
		return nil
	}
	h := w.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.w.WriteHeader(http.StatusOK)
	w.started = true
	if err := w.rc.Flush(); err != nil {
		return fmt.Errorf("sse: flush headers: %w", err)
	}
	return nil
}

// Started reports whether Begin has committed the response.
func (w *Writer) Started() bool {
	return w.started
}

// WriteContent writes a content frame.
func (w *Writer) WriteContent(delta string) error {
	return w.write(payload{Content: &delta})
}

// WriteDone writes the terminal success frame.
func (w *Writer) WriteDone(ts time.Time) error {
	return w.write(payload{Done: true, Timestamp: FormatTime(ts)})
}

// WriteError writes the terminal failure frame. Empty details are omitted.
func (w *Writer) WriteError(message, details string) error {
	return w.write(payload{Error: &message, Details: details})
}

// Close marks the stream finished. The response itself ends when the handler
// returns.
func (w *Writer) Close() error {
	w.closed = true
	return nil
}

func (w *Writer) write(p payload) error {
	if w.closed {
		return relay.ErrStreamClosed
	}
	if !w.started {
		if err := w.Begin(); err != nil {
			return err
		}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("sse: encode frame: %w", err)
	}
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", b); err != nil {
		return fmt.Errorf("sse: write frame: %w", err)
	}
	if err := w.rc.Flush(); err != nil {
		return fmt.Errorf("sse: flush frame: %w", err)
	}
	return nil
}
