// Package llm is the transport layer for the external decision capability.
// It exposes a single Provider interface with per-vendor adapters behind it;
// callers build their own prompts and parse their own responses.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cmtonkinson/releasepilot/internal/config"
)

// Request is one completion request. System and Prompt are sent as separate
// messages where the provider's wire format distinguishes them.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Provider renders a completion for a request. Implementations are safe for
// sequential reuse across a run; they hold no per-request state.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// NewProvider constructs the adapter selected by the configuration. The API
// key is read from the configured environment variable; a missing key is an
// error for hosted providers but allowed for generic endpoints, which are
// typically local.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	switch cfg.Provider {
	case config.ProviderOpenAI:
		if key == "" {
			return nil, fmt.Errorf("provider %s requires an API key in $%s", cfg.Provider, cfg.APIKeyEnv)
		}
		return newChatClient(cfg.Provider, openAIEndpoint, key, cfg.Model, timeout), nil
	case config.ProviderAnthropic:
		if key == "" {
			return nil, fmt.Errorf("provider %s requires an API key in $%s", cfg.Provider, cfg.APIKeyEnv)
		}
		return newAnthropicProvider(key, cfg.Model, timeout), nil
	case config.ProviderGeneric:
		endpoint := strings.TrimSpace(cfg.Endpoint)
		if endpoint == "" {
			return nil, fmt.Errorf("provider %s requires an endpoint", cfg.Provider)
		}
		return newChatClient(cfg.Provider, endpoint, key, cfg.Model, timeout), nil
	}
	return nil, fmt.Errorf("unknown provider: %q", cfg.Provider)
}
