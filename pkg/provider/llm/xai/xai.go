// Package xai provides an LLM provider backed by the X.AI GROK API, which
// speaks the OpenAI Chat Completions wire format.
package xai

import (
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/conclave/pkg/provider/llm"
	"github.com/MrWong99/conclave/pkg/provider/llm/openai"
)

// DefaultBaseURL is the public X.AI API endpoint.
const DefaultBaseURL = "https://api.x.ai/v1"

// Provider implements llm.Provider using the X.AI API.
type Provider struct {
	openai.Compat
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default X.AI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new X.AI LLM Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("xai: apiKey must not be empty")
	}

	cfg := &config{baseURL: DefaultBaseURL}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.baseURL),
		option.WithMaxRetries(0),
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{Compat: openai.Compat{
		Client:       oai.NewClient(reqOpts...),
		ProviderKind: llm.KindXAI,
		Catalog:      Catalog(),
	}}, nil
}

// Catalog returns the static capability table for GROK models.
func Catalog() *llm.Catalog {
	return llm.NewCatalog(
		llm.Capability{
			Name:         "grok-4",
			FriendlyName: "X.AI (Grok 4)",
			Aliases:      []string{"grok", "grok4"},
			Kind:         llm.KindXAI,
			ContextWindow: 256_000, MaxOutputTokens: 64_000,
			// Grok 4 reasons unconditionally and rejects the effort knob.
			SupportsThinking:    true,
			SupportsTemperature: true, Temperature: llm.TemperatureRange{Min: 0, Max: 2},
			SupportsImages: true, MaxImages: 5, MaxImageSizeMB: 10,
			SupportsJSONMode: true, SupportsSystemPrompt: true,
			Description: "Frontier reasoning model (256K context) - complex analysis with built-in thinking",
		},
		llm.Capability{
			Name:         "grok-3",
			FriendlyName: "X.AI (Grok 3)",
			Aliases:      []string{"grok3"},
			Kind:         llm.KindXAI,
			ContextWindow: 131_072, MaxOutputTokens: 32_768,
			SupportsTemperature: true, Temperature: llm.TemperatureRange{Min: 0, Max: 2},
			SupportsJSONMode: true, SupportsSystemPrompt: true,
			Description: "Advanced reasoning model (131K context) - general coding and analysis",
		},
		llm.Capability{
			Name:         "grok-3-fast",
			FriendlyName: "X.AI (Grok 3 Fast)",
			Aliases:      []string{"grok3fast", "grokfast"},
			Kind:         llm.KindXAI,
			ContextWindow: 131_072, MaxOutputTokens: 32_768,
			SupportsTemperature: true, Temperature: llm.TemperatureRange{Min: 0, Max: 2},
			SupportsJSONMode: true, SupportsSystemPrompt: true,
			Description: "Higher-throughput Grok 3 (131K context) - faster responses at higher cost",
		},
	)
}

// Ensure Provider implements llm.Provider at compile time.
var (
	_ llm.Provider    = (*Provider)(nil)
	_ llm.ModelLister = (*Provider)(nil)
)
