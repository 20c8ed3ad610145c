package gemini

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/fwojciec/relay"
	"google.golang.org/genai"
)

// stream implements [relay.Stream] by wrapping the genai SDK's streaming
// iterator. One response chunk may carry several text parts; they are
// joined into a single delta.
type stream struct {
	ctx   context.Context
	pull  func() (*genai.GenerateContentResponse, error, bool)
	stop  func()
	state relay.StreamState
	err   error
}

// Interface compliance check.
var _ relay.Stream = (*stream)(nil)

// NewStreamFromIter wraps a genai response iterator. Exported for testing.
func NewStreamFromIter(ctx context.Context, seq iter.Seq2[*genai.GenerateContentResponse, error]) relay.Stream {
	next, stop := iter.Pull2(seq)
	return &stream{
		ctx:   ctx,
		pull:  next,
		stop:  stop,
		state: relay.StreamStateNew,
	}
}

func (s *stream) Next() (string, error) {
	switch s.state {
	case relay.StreamStateComplete:
		return "", io.EOF
	case relay.StreamStateError:
		return "", s.err
	case relay.StreamStateClosed:
		return "", fmt.Errorf("gemini: %w", relay.ErrStreamClosed)
	}

	for {
		if err := s.ctx.Err(); err != nil {
			return "", s.fail(err)
		}
		chunk, err, ok := s.pull()
		if !ok {
			s.state = relay.StreamStateComplete
			return "", io.EOF
		}
		if err != nil {
			return "", s.fail(err)
		}
		s.state = relay.StreamStateStreaming
		if chunk == nil {
			continue
		}
		if len(chunk.Candidates) == 0 {
			if fb := chunk.PromptFeedback; fb != nil && fb.BlockReason != "" {
				return "", s.fail(fmt.Errorf("prompt blocked: %s", fb.BlockReason))
			}
			continue
		}
		if delta := candidateText(chunk.Candidates[0]); delta != "" {
			return delta, nil
		}
	}
}

func (s *stream) State() relay.StreamState {
	return s.state
}

func (s *stream) Close() error {
	if s.state != relay.StreamStateComplete && s.state != relay.StreamStateError {
		s.state = relay.StreamStateClosed
	}
	s.stop()
	return nil
}

func (s *stream) fail(err error) error {
	s.state = relay.StreamStateError
	s.err = fmt.Errorf("gemini: %w", err)
	return s.err
}

// candidateText joins the visible text parts of a candidate, skipping
// thought summaries.
func candidateText(c *genai.Candidate) string {
	if c == nil || c.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range c.Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String()
}
