package gemini

import (
	"context"
	"fmt"

	"github.com/fwojciec/relay"
	"google.golang.org/genai"
)

// Interface compliance check.
var _ relay.Provider = (*Client)(nil)

// Client implements [relay.Provider] for the Google Gemini API.
type Client struct {
	client *genai.Client
	model  string
}

// Option configures a [Client].
type Option func(*Client)

// WithModel sets the model used when a request names none.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// New creates a new Gemini [Client] with the given API key and options.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	c := &Client{
		client: gc,
		model:  defaultModel,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Stream starts a streaming generation and returns a [relay.Stream] of
// text deltas from the first candidate.
func (c *Client) Stream(ctx context.Context, req relay.Request) (relay.Stream, error) {
	model := req.Options.Model
	if model == "" {
		model = c.model
	}

	system, contents := ConvertMessages(req.Messages)
	if len(contents) == 0 {
		return nil, fmt.Errorf("gemini: no conversation turns: %w", relay.ErrValidation)
	}
	config := BuildConfig(req.Options, system)

	seq := c.client.Models.GenerateContentStream(ctx, model, contents, config)
	return NewStreamFromIter(ctx, seq), nil
}

// BuildConfig maps generation options onto a Gemini request config.
// LogitBias and User have no Gemini counterpart and are ignored.
// Exported for testing.
func BuildConfig(o relay.Options, system *genai.Content) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		SystemInstruction: system,
		StopSequences:     o.Stop,
		Temperature:       float32Ptr(o.Temperature),
		TopP:              float32Ptr(o.TopP),
		FrequencyPenalty:  float32Ptr(o.FrequencyPenalty),
		PresencePenalty:   float32Ptr(o.PresencePenalty),
		Logprobs:          int32Ptr(o.TopLogprobs),
		Seed:              int32Ptr(o.Seed),
	}
	if o.MaxTokens != nil {
		config.MaxOutputTokens = int32(*o.MaxTokens)
	}
	if o.N != nil {
		config.CandidateCount = int32(*o.N)
	}
	if o.Logprobs != nil {
		config.ResponseLogprobs = *o.Logprobs
	}
	return config
}

// ConvertMessages splits a prompt into a system instruction and the
// conversation contents. Assistant turns use Gemini's "model" role.
// Exported for testing.
func ConvertMessages(msgs []relay.PromptMessage) (*genai.Content, []*genai.Content) {
	var (
		system   *genai.Content
		contents []*genai.Content
	)
	for _, m := range msgs {
		switch m.Role {
		case relay.RoleSystem:
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, &genai.Part{Text: m.Content})
		case relay.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return system, contents
}

func float32Ptr(v *float64) *float32 {
	if v == nil {
		return nil
	}
	f := float32(*v)
	return &f
}

func int32Ptr(v *int) *int32 {
	if v == nil {
		return nil
	}
	n := int32(*v)
	return &n
}
