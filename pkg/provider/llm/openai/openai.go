// Package openai provides an LLM provider backed by the OpenAI API, plus the
// Chat Completions request core reused by every OpenAI-compatible provider.
package openai

import (
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/conclave/pkg/provider/llm"
)

// Provider implements llm.Provider using the OpenAI API.
type Provider struct {
	Compat
}

// config holds optional configuration for the provider.
type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) {
		c.organization = org
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI LLM Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	// Retries are owned by the resilience layer, not the SDK.
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{Compat: Compat{
		Client:       oai.NewClient(reqOpts...),
		ProviderKind: llm.KindOpenAI,
		Catalog:      Catalog(),
	}}, nil
}

// Catalog returns the static capability table for OpenAI models.
func Catalog() *llm.Catalog {
	return llm.NewCatalog(
		llm.Capability{
			Name:         "o3",
			FriendlyName: "OpenAI (O3)",
			Kind:         llm.KindOpenAI,
			ContextWindow: 200_000, MaxOutputTokens: 100_000,
			SupportsThinking: true,
			SupportsReasoningEffort: true,
			SupportsTemperature: false, Temperature: llm.FixedTemperature(1),
			SupportsImages: true, MaxImages: 5, MaxImageSizeMB: 20,
			SupportsJSONMode: true, SupportsSystemPrompt: true,
			Description: "Strong reasoning (200K context) - logical problems, code generation, systematic analysis",
		},
		llm.Capability{
			Name:         "o3-mini",
			FriendlyName: "OpenAI (O3-mini)",
			Aliases:      []string{"o3mini"},
			Kind:         llm.KindOpenAI,
			ContextWindow: 200_000, MaxOutputTokens: 65_536,
			SupportsThinking: true,
			SupportsReasoningEffort: true,
			SupportsTemperature: false, Temperature: llm.FixedTemperature(1),
			SupportsJSONMode: true, SupportsSystemPrompt: true,
			Description: "Fast O3 variant (200K context) - balanced reasoning speed and quality",
		},
		llm.Capability{
			Name:         "o3-pro",
			FriendlyName: "OpenAI (O3-Pro)",
			Aliases:      []string{"o3pro"},
			Kind:         llm.KindOpenAI,
			ContextWindow: 200_000, MaxOutputTokens: 100_000,
			SupportsThinking: true,
			SupportsReasoningEffort: true,
			SupportsTemperature: false, Temperature: llm.FixedTemperature(1),
			SupportsImages: true, MaxImages: 5, MaxImageSizeMB: 20,
			SupportsJSONMode: true, SupportsSystemPrompt: true,
			Description: "Professional-grade reasoning (200K context) - the hardest problems, extremely expensive",
		},
		llm.Capability{
			Name:         "o4-mini",
			FriendlyName: "OpenAI (O4-mini)",
			Aliases:      []string{"mini", "o4mini"},
			Kind:         llm.KindOpenAI,
			ContextWindow: 200_000, MaxOutputTokens: 100_000,
			SupportsThinking: true,
			SupportsReasoningEffort: true,
			SupportsTemperature: false, Temperature: llm.FixedTemperature(1),
			SupportsImages: true, MaxImages: 5, MaxImageSizeMB: 20,
			SupportsJSONMode: true, SupportsSystemPrompt: true,
			Description: "Latest reasoning model (200K context) - optimized for shorter contexts, rapid analysis",
		},
		llm.Capability{
			Name:         "gpt-4.1",
			FriendlyName: "OpenAI (GPT-4.1)",
			Aliases:      []string{"gpt4.1"},
			Kind:         llm.KindOpenAI,
			ContextWindow: 1_047_576, MaxOutputTokens: 32_768,
			SupportsTemperature: true, Temperature: llm.TemperatureRange{Min: 0, Max: 2},
			SupportsImages: true, MaxImages: 5, MaxImageSizeMB: 20,
			SupportsJSONMode: true, SupportsSystemPrompt: true,
			Description: "Advanced model with very large context (1M context) - big codebases, long documents",
		},
		llm.Capability{
			Name:         "gpt-5",
			FriendlyName: "OpenAI (GPT-5)",
			Aliases:      []string{"gpt5"},
			Kind:         llm.KindOpenAI,
			ContextWindow: 400_000, MaxOutputTokens: 128_000,
			SupportsThinking: true,
			SupportsReasoningEffort: true,
			SupportsTemperature: false, Temperature: llm.FixedTemperature(1),
			SupportsImages: true, MaxImages: 5, MaxImageSizeMB: 20,
			SupportsJSONMode: true, SupportsSystemPrompt: true,
			Description: "Flagship model (400K context) - advanced reasoning and coding",
		},
		llm.Capability{
			Name:         "gpt-5-mini",
			FriendlyName: "OpenAI (GPT-5-mini)",
			Aliases:      []string{"gpt5-mini", "gpt5mini"},
			Kind:         llm.KindOpenAI,
			ContextWindow: 400_000, MaxOutputTokens: 128_000,
			SupportsThinking: true,
			SupportsReasoningEffort: true,
			SupportsTemperature: false, Temperature: llm.FixedTemperature(1),
			SupportsImages: true, MaxImages: 5, MaxImageSizeMB: 20,
			SupportsJSONMode: true, SupportsSystemPrompt: true,
			Description: "Faster, cheaper GPT-5 (400K context) - high-volume balanced workloads",
		},
	)
}

// Ensure Provider implements llm.Provider at compile time.
var (
	_ llm.Provider    = (*Provider)(nil)
	_ llm.ModelLister = (*Provider)(nil)
)
