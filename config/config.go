// Package config loads relay settings from defaults, an optional YAML file
// and the environment, in that order of precedence (later wins). Command-line
// flags are applied on top by cmd/relay.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fwojciec/relay"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Provider names accepted by Config.Provider.
const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Config is the complete relay configuration.
type Config struct {
	Addr           string        `yaml:"addr"`
	BasePath       string        `yaml:"base_path"`
	DatabasePath   string        `yaml:"database_path"`
	Provider       string        `yaml:"provider"`
	Model          string        `yaml:"model"`
	SystemPrompt   string        `yaml:"system_prompt"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	LogLevel       string        `yaml:"log_level"`

	OpenAI    OpenAI    `yaml:"openai"`
	Gemini    Gemini    `yaml:"gemini"`
	Anthropic Anthropic `yaml:"anthropic"`
}

// OpenAI holds credentials for the OpenAI provider. BaseURL selects an
// OpenAI-compatible endpoint other than api.openai.com.
type OpenAI struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// Gemini holds credentials for the Gemini provider.
type Gemini struct {
	APIKey string `yaml:"api_key"`
}

// Anthropic holds credentials for the Anthropic provider.
type Anthropic struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:           ":3000",
		BasePath:       "/api",
		DatabasePath:   "chat.db",
		Provider:       ProviderOpenAI,
		IdleTimeout:    relay.DefaultIdleTimeout,
		AllowedOrigins: []string{"*"},
		LogLevel:       "info",
	}
}

// Load reads a YAML file over Default. An empty path returns Default. Unknown
// keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.decode(data); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overlays environment variables read through getenv. PORT is
// honoured for platforms that inject it; RELAY_ADDR takes precedence.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("PORT"); v != "" {
		c.Addr = ":" + v
	}
	if v := getenv("RELAY_ADDR"); v != "" {
		c.Addr = v
	}
	if v := getenv("RELAY_DB"); v != "" {
		c.DatabasePath = v
	}
	if v := getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := getenv("GEMINI_API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
	if v := getenv("ANTHROPIC_API_KEY"); v != "" {
		c.Anthropic.APIKey = v
	}
}

// APIKey returns the key configured for the selected provider.
func (c Config) APIKey() string {
	switch c.Provider {
	case ProviderOpenAI:
		return c.OpenAI.APIKey
	case ProviderGemini:
		return c.Gemini.APIKey
	case ProviderAnthropic:
		return c.Anthropic.APIKey
	}
	return ""
}

// Validate reports the first problem that would stop the server from
// starting. Missing API keys are not checked here; only serve needs one.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("config: addr is required")
	}
	if c.DatabasePath == "" {
		return errors.New("config: database_path is required")
	}
	if c.BasePath != "" && (!strings.HasPrefix(c.BasePath, "/") || strings.HasSuffix(c.BasePath, "/")) {
		return fmt.Errorf("config: base_path %q must start with / and not end with /", c.BasePath)
	}
	switch c.Provider {
	case ProviderOpenAI, ProviderGemini, ProviderAnthropic:
	default:
		return fmt.Errorf("config: unknown provider %q: must be %q, %q or %q",
			c.Provider, ProviderOpenAI, ProviderGemini, ProviderAnthropic)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("config: idle_timeout must not be negative, got %s", c.IdleTimeout)
	}
	for _, o := range c.AllowedOrigins {
		if !doublestar.ValidatePattern(o) {
			return fmt.Errorf("config: invalid allowed origin pattern %q", o)
		}
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel. An empty level means info.
func (c Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("config: log_level: %w", err)
	}
	return lvl, nil
}
