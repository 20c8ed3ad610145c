package sse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"github.com/fwojciec/relay"
)

// Interface compliance check.
var _ relay.FrameStream = (*Reader)(nil)

const dataPrefix = "data: "

// Reader decodes frames from an event stream.
//
// Bytes are appended to an internal buffer as they arrive and only complete
// lines are parsed, so a frame split across any number of reads decodes the
// same as one delivered whole. Lines that do not start with "data: " are
// skipped. Content deltas are accumulated; the DoneFrame carries the
// accumulated text as its message content.
type Reader struct {
	r     io.Reader
	now   func() time.Time
	chunk []byte
	buf   []byte
	text  strings.Builder
	eof   bool
	done  bool
	err   error
}

// ReaderOption configures a [Reader].
type ReaderOption func(*Reader)

// WithClock sets the time used for a done frame that carries no timestamp.
func WithClock(now func() time.Time) ReaderOption {
	return func(r *Reader) { r.now = now }
}

// NewReader returns a Reader over r. If r is an io.Closer, Close closes it.
func NewReader(r io.Reader, opts ...ReaderOption) *Reader {
	rd := &Reader{
		r:     r,
		now:   time.Now,
		chunk: make([]byte, 4096),
	}
	for _, o := range opts {
		o(rd)
	}
	return rd
}

// Next returns the next frame. After a DoneFrame or ErrorFrame it returns
// io.EOF. If the input ends before a terminal frame it returns an error
// wrapping relay.ErrStreamTruncated.
func (r *Reader) Next() (relay.Frame, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.done {
		return nil, io.EOF
	}

	for {
		if i := bytes.IndexByte(r.buf, '\n'); i >= 0 {
			line := bytes.TrimSuffix(r.buf[:i], []byte{'\r'})
			r.buf = r.buf[i+1:]
			f, err := r.parseLine(line)
			if err != nil {
				r.err = err
				return nil, err
			}
			if f != nil {
				return f, nil
			}
			continue
		}

		if r.eof {
			// A final line without a newline is still a frame.
			if len(r.buf) > 0 {
				line := bytes.TrimSuffix(r.buf, []byte{'\r'})
				r.buf = nil
				f, err := r.parseLine(line)
				if err != nil {
					r.err = err
					return nil, err
				}
				if f != nil {
					return f, nil
				}
			}
			r.err = fmt.Errorf("sse: %w", relay.ErrStreamTruncated)
			return nil, r.err
		}

		n, err := r.r.Read(r.chunk)
		r.buf = append(r.buf, r.chunk[:n]...)
		if err == io.EOF {
			r.eof = true
		} else if err != nil {
			r.err = fmt.Errorf("sse: read: %w", err)
			return nil, r.err
		}
	}
}

// Close closes the underlying reader if it is an io.Closer. Further calls to
// Next return relay.ErrStreamClosed.
func (r *Reader) Close() error {
	if r.err == nil && !r.done {
		r.err = relay.ErrStreamClosed
	}
	if c, ok := r.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// All returns an iterator over the remaining frames. Iteration stops after a
// terminal frame or at the first error, which is yielded with a nil frame.
func (r *Reader) All() iter.Seq2[relay.Frame, error] {
	return func(yield func(relay.Frame, error) bool) {
		for {
			f, err := r.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(f, nil) {
				return
			}
		}
	}
}

// parseLine decodes one line. It returns a nil frame for lines that carry no
// frame.
func (r *Reader) parseLine(line []byte) (relay.Frame, error) {
	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return nil, nil
	}
	data := line[len(dataPrefix):]

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("sse: %w: %w", relay.ErrMalformedFrame, err)
	}

	switch {
	case p.Error != nil:
		r.done = true
		return relay.ErrorFrame{Error: *p.Error, Details: p.Details}, nil
	case p.Done:
		ts := r.now().UTC()
		if p.Timestamp != "" {
			t, err := time.Parse(time.RFC3339Nano, p.Timestamp)
			if err != nil {
				return nil, fmt.Errorf("sse: %w: timestamp %q", relay.ErrMalformedFrame, p.Timestamp)
			}
			ts = t.UTC()
		}
		r.done = true
		msg := relay.Message{Role: relay.RoleAssistant, Content: r.text.String(), Timestamp: ts}
		r.text.Reset()
		return relay.DoneFrame{Message: msg}, nil
	case p.Content != nil && *p.Content != "":
		r.text.WriteString(*p.Content)
		return relay.ContentFrame{Delta: *p.Content, Text: r.text.String()}, nil
	default:
		return nil, nil
	}
}
