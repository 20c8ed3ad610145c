package gemini_test

import (
	"context"
	"io"
	"testing"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/gemini"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// mockChunks returns a genai-style streaming iterator from pre-built chunks.
func mockChunks(chunks []*genai.GenerateContentResponse) func(func(*genai.GenerateContentResponse, error) bool) {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
	}
}

func textChunk(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}},
	}
}

func collectDeltas(t *testing.T, s relay.Stream) []string {
	t.Helper()
	var deltas []string
	for {
		d, err := s.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		deltas = append(deltas, d)
	}
	return deltas
}

func TestStream_TextDelta(t *testing.T) {
	t.Parallel()
	s := gemini.NewStreamFromIter(context.Background(), mockChunks([]*genai.GenerateContentResponse{
		textChunk(&genai.Part{Text: "Hello"}),
		textChunk(&genai.Part{Text: " world"}),
	}))
	assert.Equal(t, []string{"Hello", " world"}, collectDeltas(t, s))
	assert.Equal(t, relay.StreamStateComplete, s.State())
}

func TestStream_MultiPartChunk(t *testing.T) {
	t.Parallel()
	s := gemini.NewStreamFromIter(context.Background(), mockChunks([]*genai.GenerateContentResponse{
		textChunk(&genai.Part{Text: "a"}, &genai.Part{Text: "b"}),
	}))
	assert.Equal(t, []string{"ab"}, collectDeltas(t, s))
}

func TestStream_ThoughtsSkipped(t *testing.T) {
	t.Parallel()
	s := gemini.NewStreamFromIter(context.Background(), mockChunks([]*genai.GenerateContentResponse{
		textChunk(&genai.Part{Text: "thinking...", Thought: true}),
		textChunk(&genai.Part{Text: "answer"}),
	}))
	assert.Equal(t, []string{"answer"}, collectDeltas(t, s))
}

func TestStream_EmptyAndNilChunksSkipped(t *testing.T) {
	t.Parallel()
	iter := func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, c := range []*genai.GenerateContentResponse{
			nil,
			{},
			textChunk(),
			{Candidates: []*genai.Candidate{{}}},
			textChunk(&genai.Part{Text: "Hi"}),
		} {
			if !yield(c, nil) {
				return
			}
		}
	}
	s := gemini.NewStreamFromIter(context.Background(), iter)
	assert.Equal(t, []string{"Hi"}, collectDeltas(t, s))
}

func TestStream_OnlyFirstCandidate(t *testing.T) {
	t.Parallel()
	s := gemini.NewStreamFromIter(context.Background(), mockChunks([]*genai.GenerateContentResponse{
		{Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: "first"}}}},
			{Content: &genai.Content{Parts: []*genai.Part{{Text: "second"}}}},
		}},
	}))
	assert.Equal(t, []string{"first"}, collectDeltas(t, s))
}

func TestStream_ContextCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := gemini.NewStreamFromIter(ctx, mockChunks([]*genai.GenerateContentResponse{textChunk(&genai.Part{Text: "x"})}))
	_, err := s.Next()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, relay.StreamStateError, s.State())
}

func TestStream_IteratorError(t *testing.T) {
	t.Parallel()
	errIter := func(yield func(*genai.GenerateContentResponse, error) bool) {
		yield(nil, assert.AnError)
	}

	s := gemini.NewStreamFromIter(context.Background(), errIter)
	_, err := s.Next()
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "gemini:")
	assert.Equal(t, relay.StreamStateError, s.State())

	_, err2 := s.Next()
	assert.Equal(t, err, err2)
}

func TestStream_PromptBlocked(t *testing.T) {
	t.Parallel()
	s := gemini.NewStreamFromIter(context.Background(), mockChunks([]*genai.GenerateContentResponse{
		{PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety}},
	}))
	_, err := s.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt blocked")
	assert.Equal(t, relay.StreamStateError, s.State())
}

func TestStream_State(t *testing.T) {
	t.Parallel()

	t.Run("new before first next", func(t *testing.T) {
		t.Parallel()
		s := gemini.NewStreamFromIter(context.Background(), mockChunks(nil))
		assert.Equal(t, relay.StreamStateNew, s.State())
	})

	t.Run("streaming mid-stream", func(t *testing.T) {
		t.Parallel()
		s := gemini.NewStreamFromIter(context.Background(), mockChunks([]*genai.GenerateContentResponse{
			textChunk(&genai.Part{Text: "a"}),
			textChunk(&genai.Part{Text: "b"}),
		}))
		_, err := s.Next()
		require.NoError(t, err)
		assert.Equal(t, relay.StreamStateStreaming, s.State())
		require.NoError(t, s.Close())
	})
}

func TestStream_Close(t *testing.T) {
	t.Parallel()

	t.Run("close mid-stream", func(t *testing.T) {
		t.Parallel()
		s := gemini.NewStreamFromIter(context.Background(), mockChunks([]*genai.GenerateContentResponse{
			textChunk(&genai.Part{Text: "a"}),
			textChunk(&genai.Part{Text: "b"}),
		}))
		_, err := s.Next()
		require.NoError(t, err)
		require.NoError(t, s.Close())
		assert.Equal(t, relay.StreamStateClosed, s.State())

		_, err = s.Next()
		assert.ErrorIs(t, err, relay.ErrStreamClosed)
	})

	t.Run("close preserves terminal state", func(t *testing.T) {
		t.Parallel()
		s := gemini.NewStreamFromIter(context.Background(), mockChunks(nil))
		_, err := s.Next()
		require.ErrorIs(t, err, io.EOF)
		require.NoError(t, s.Close())
		assert.Equal(t, relay.StreamStateComplete, s.State())
	})
}
