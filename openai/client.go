package openai

import (
	"context"
	"fmt"
	"math"

	"github.com/fwojciec/relay"
	goopenai "github.com/sashabaranov/go-openai"
)

// Interface compliance check.
var _ relay.Provider = (*Client)(nil)

// Client implements [relay.Provider] for OpenAI-compatible chat completion
// endpoints.
type Client struct {
	client *goopenai.Client
	model  string
}

// Option configures a [Client].
type Option func(*config)

type config struct {
	base  goopenai.ClientConfig
	model string
}

// WithBaseURL points the client at an OpenAI-compatible endpoint, including
// the version prefix (e.g. "http://localhost:8080/v1").
func WithBaseURL(url string) Option {
	return func(c *config) {
		if url != "" {
			c.base.BaseURL = url
		}
	}
}

// WithModel sets the model used when a request names none.
func WithModel(model string) Option {
	return func(c *config) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc goopenai.HTTPDoer) Option {
	return func(c *config) { c.base.HTTPClient = hc }
}

// New creates a new OpenAI [Client] with the given API key and options.
func New(apiKey string, opts ...Option) *Client {
	cfg := &config{base: goopenai.DefaultConfig(apiKey), model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}
	return &Client{
		client: goopenai.NewClientWithConfig(cfg.base),
		model:  cfg.model,
	}
}

// Stream opens a streaming chat completion and returns a [relay.Stream] of
// text deltas from the first choice.
func (c *Client) Stream(ctx context.Context, req relay.Request) (relay.Stream, error) {
	raw, err := c.client.CreateChatCompletionStream(ctx, BuildRequest(req, c.model))
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return newStream(ctx, raw), nil
}

// BuildRequest maps a relay request onto a chat completion request. Unset
// options are left at their zero value so go-openai omits them. Exported for
// testing.
func BuildRequest(req relay.Request, fallbackModel string) goopenai.ChatCompletionRequest {
	o := req.Options
	out := goopenai.ChatCompletionRequest{
		Model:     o.Model,
		Messages:  convertMessages(req.Messages),
		Stream:    true,
		Stop:      o.Stop,
		LogitBias: o.LogitBias,
		User:      o.User,
		Seed:      o.Seed,
	}
	if out.Model == "" {
		out.Model = fallbackModel
	}
	if o.Temperature != nil {
		out.Temperature = float32(*o.Temperature)
		// go-openai drops a zero temperature from the wire.
		if out.Temperature == 0 {
			out.Temperature = math.SmallestNonzeroFloat32
		}
	}
	if o.MaxTokens != nil {
		out.MaxTokens = *o.MaxTokens
	}
	if o.TopP != nil {
		out.TopP = float32(*o.TopP)
	}
	if o.FrequencyPenalty != nil {
		out.FrequencyPenalty = float32(*o.FrequencyPenalty)
	}
	if o.PresencePenalty != nil {
		out.PresencePenalty = float32(*o.PresencePenalty)
	}
	if o.N != nil {
		out.N = *o.N
	}
	if o.Logprobs != nil {
		out.LogProbs = *o.Logprobs
	}
	if o.TopLogprobs != nil {
		out.TopLogProbs = *o.TopLogprobs
	}
	return out
}

func convertMessages(msgs []relay.PromptMessage) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, goopenai.ChatCompletionMessage{
			Role:    chatRole(m.Role),
			Content: m.Content,
		})
	}
	return out
}

func chatRole(r relay.Role) string {
	switch r {
	case relay.RoleSystem:
		return goopenai.ChatMessageRoleSystem
	case relay.RoleAssistant:
		return goopenai.ChatMessageRoleAssistant
	default:
		return goopenai.ChatMessageRoleUser
	}
}
