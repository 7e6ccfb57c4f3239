package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Provider names a generative backend.
type Provider string

const (
	ProviderNone   Provider = "none"
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// Config selects and configures the backend.
type Config struct {
	Provider    Provider
	BaseURL     string
	APIKey      string
	Model       string
	GeminiKey   string
	GeminiModel string
	Timeout     time.Duration
	// SkipPing disables the OpenAI startup health check.
	SkipPing bool
}

// ParseProvider normalizes a provider name.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderNone, ProviderOpenAI, ProviderGemini:
		return p, nil
	case "":
		return ProviderNone, nil
	default:
		return "", fmt.Errorf("unknown ai provider %q (want none, openai or gemini)", s)
	}
}

// FromConfig builds the service once at startup. Any construction or health
// check failure degrades to Null so the engine runs on its local tiers.
func FromConfig(ctx context.Context, cfg Config) GenerativeService {
	opts := []Option{WithTimeout(cfg.Timeout)}

	switch cfg.Provider {
	case ProviderOpenAI:
		client, err := NewOpenAIClient(cfg.BaseURL, cfg.APIKey, cfg.Model)
		if err != nil {
			slog.Warn("openai backend disabled", "error", err)
			return Null{}
		}
		if !cfg.SkipPing {
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if err := client.Ping(pingCtx); err != nil {
				slog.Warn("openai health check failed, using local fallbacks", "url", cfg.BaseURL, "error", err)
				return Null{}
			}
		}
		slog.Info("generative backend ready", "provider", cfg.Provider, "model", client.Model())
		return NewService(client, opts...)
	case ProviderGemini:
		client, err := NewGeminiClient(ctx, cfg.GeminiKey, cfg.GeminiModel)
		if err != nil {
			slog.Warn("gemini backend disabled", "error", err)
			return Null{}
		}
		slog.Info("generative backend ready", "provider", cfg.Provider, "model", client.Model())
		return NewService(client, opts...)
	default:
		slog.Info("no generative backend configured, using local fallbacks")
		return Null{}
	}
}
