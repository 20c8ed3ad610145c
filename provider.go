package relay

import "context"

// Provider is a strategy pattern interface for upstream completion services.
// Implementations receive Request by value; Messages shares its backing array
// with the caller and must not be modified in place.
type Provider interface {
	Stream(ctx context.Context, req Request) (Stream, error)
}

// Request is one upstream streaming completion request.
type Request struct {
	// Messages is the assembled prompt, optionally led by a system entry.
	Messages []PromptMessage
	Options  Options
}

// Options enumerates the generation controls a caller may forward upstream.
// Nil pointers, empty strings and empty collections are omitted from the
// upstream request so the provider's own defaults apply. The relay passes
// them through without interpreting them.
type Options struct {
	// Model is the provider-specific model ID; empty = provider default.
	Model string

	// Temperature controls sampling randomness, 0–2.
	Temperature *float64

	// MaxTokens caps the number of output tokens.
	MaxTokens *int

	// TopP is the nucleus sampling threshold, 0–1.
	TopP *float64

	// FrequencyPenalty penalizes tokens by how often they already appeared, -2–2.
	FrequencyPenalty *float64

	// PresencePenalty penalizes tokens that already appeared at all, -2–2.
	PresencePenalty *float64

	// Stop lists sequences at which generation halts.
	Stop []string

	// N is the requested completion count. Only the first completion is relayed.
	N *int

	// LogitBias maps token IDs to a bias added to their logits, -100–100.
	LogitBias map[string]int

	// User is an opaque end-user identifier forwarded for abuse monitoring.
	User string

	// Seed requests deterministic sampling where the provider supports it.
	Seed *int

	// Logprobs requests log-probability reporting for output tokens.
	Logprobs *bool

	// TopLogprobs is the number of most likely alternatives reported per
	// token position, 0–20. Requires Logprobs.
	TopLogprobs *int
}
