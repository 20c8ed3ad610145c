// Package openai implements [relay.Provider] on top of the OpenAI chat
// completions API.
//
// Requests are built and streamed with github.com/sashabaranov/go-openai.
// Only the first choice is relayed; additional choices requested through n
// are read and discarded.
package openai

const defaultModel = "gpt-3.5-turbo"
