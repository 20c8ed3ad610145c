package main

import (
	"context"
	"fmt"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/anthropic"
	"github.com/fwojciec/relay/config"
	"github.com/fwojciec/relay/gemini"
	"github.com/fwojciec/relay/openai"
)

// resolveProvider constructs the upstream named by cfg.Provider.
func resolveProvider(ctx context.Context, cfg config.Config) (relay.Provider, error) {
	key := cfg.APIKey()
	switch cfg.Provider {
	case config.ProviderOpenAI:
		if key == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set (environment or openai.api_key in config)")
		}
		return openai.New(key, openai.WithBaseURL(cfg.OpenAI.BaseURL), openai.WithModel(cfg.Model)), nil
	case config.ProviderGemini:
		if key == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY not set (environment or gemini.api_key in config)")
		}
		client, err := gemini.New(ctx, key, gemini.WithModel(cfg.Model))
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.ProviderAnthropic:
		if key == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set (environment or anthropic.api_key in config)")
		}
		return anthropic.New(key, anthropic.WithBaseURL(cfg.Anthropic.BaseURL), anthropic.WithModel(cfg.Model)), nil
	default:
		return nil, fmt.Errorf("unknown provider %q: must be %q, %q or %q",
			cfg.Provider, config.ProviderOpenAI, config.ProviderGemini, config.ProviderAnthropic)
	}
}
