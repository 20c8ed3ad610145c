package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fwojciec/relay"
	goopenai "github.com/sashabaranov/go-openai"
)

// stream implements [relay.Stream] over a go-openai chat completion stream.
type stream struct {
	ctx   context.Context
	raw   *goopenai.ChatCompletionStream
	state relay.StreamState
	err   error
}

// Interface compliance check.
var _ relay.Stream = (*stream)(nil)

func newStream(ctx context.Context, raw *goopenai.ChatCompletionStream) *stream {
	return &stream{ctx: ctx, raw: raw, state: relay.StreamStateNew}
}

func (s *stream) Next() (string, error) {
	switch s.state {
	case relay.StreamStateComplete:
		return "", io.EOF
	case relay.StreamStateError:
		return "", s.err
	case relay.StreamStateClosed:
		return "", fmt.Errorf("openai: %w", relay.ErrStreamClosed)
	}

	for {
		resp, err := s.raw.Recv()
		if errors.Is(err, io.EOF) {
			s.state = relay.StreamStateComplete
			return "", io.EOF
		}
		if err != nil {
			s.state = relay.StreamStateError
			if cerr := s.ctx.Err(); cerr != nil {
				err = cerr
			}
			s.err = fmt.Errorf("openai: %w", err)
			return "", s.err
		}
		s.state = relay.StreamStateStreaming
		if delta := firstChoiceContent(resp); delta != "" {
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
	s.raw.Close()
	return nil
}

func firstChoiceContent(resp goopenai.ChatCompletionStreamResponse) string {
	for _, c := range resp.Choices {
		if c.Index == 0 {
			return c.Delta.Content
		}
	}
	return ""
}
