// Package provider contains machine translation backends and the factory
// that builds one from configuration.
package provider

import (
	"fmt"
	"strings"
	"time"

	"github.com/ZaguanLabs/lazytl"
)

// Client is the interface for machine translation backends.
// This is an alias to the main package interface for convenience.
type Client = lazytl.Provider

// TranslateRequest is an alias to the main package type.
type TranslateRequest = lazytl.TranslateRequest

// Kind names a provider implementation.
type Kind string

const (
	KindDeepL  Kind = "deepl"
	KindOpenAI Kind = "openai"
	KindNone   Kind = "none"
)

// Config selects and configures a provider.
type Config struct {
	Kind       Kind
	APIKey     string
	BaseURL    string
	Model      string        // OpenAI only
	Timeout    time.Duration // Per HTTP call
	MaxRetries int           // Zero disables the retry decorator
	RPM        int           // Requests per minute; zero disables rate limiting
}

// New builds the configured provider wrapped in the rate limit and retry
// decorators. Without an API key, or with KindNone, it returns a nil Client
// and lazytl.ErrProviderUnavailable; callers pass the nil Client on to
// lazytl.NewTranslator, which then returns source text unchanged.
func New(cfg Config) (Client, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(string(cfg.Kind))))
	if kind == "" {
		kind = KindDeepL
	}
	if kind == KindNone || strings.TrimSpace(cfg.APIKey) == "" {
		return nil, lazytl.ErrProviderUnavailable
	}

	var client Client
	switch kind {
	case KindDeepL:
		client = NewDeepLProvider(DeepLConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		})
	case KindOpenAI:
		client = NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Kind)
	}

	// Rate limiting sits inside retry so every attempt takes a token.
	if cfg.RPM > 0 {
		client = lazytl.NewRateLimitedProvider(client, lazytl.RateLimitConfig{RequestsPerMinute: cfg.RPM})
	}
	if cfg.MaxRetries > 0 {
		rc := lazytl.DefaultRetryConfig()
		rc.MaxRetries = cfg.MaxRetries
		client = lazytl.NewRetryableProvider(client, rc)
	}
	return client, nil
}
