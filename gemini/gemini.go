// Package gemini implements [relay.Provider] for the Google Gemini API.
//
// It wraps the google.golang.org/genai SDK, translating the relay's prompt
// and generation options into Gemini request types. Streaming uses the SDK's
// iter.Seq2 iterator, wrapped into the pull-based [relay.Stream] interface.
package gemini

const defaultModel = "gemini-2.5-flash"
