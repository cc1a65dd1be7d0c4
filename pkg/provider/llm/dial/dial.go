// Package dial provides an LLM provider backed by an EPAM DIAL deployment.
// DIAL exposes OpenAI-compatible chat completions, but scopes each model to
// its own deployment path and authenticates with an Api-Key header instead
// of a bearer token.
package dial

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/conclave/pkg/provider/llm"
	"github.com/MrWong99/conclave/pkg/provider/llm/openai"
)

// DefaultAPIVersion is sent as the api-version query parameter when the
// deployment does not pin one.
const DefaultAPIVersion = "2024-12-01-preview"

// Provider implements llm.Provider against a DIAL installation.
type Provider struct {
	openai.Compat
}

// config holds optional configuration for the provider.
type config struct {
	apiVersion string
	timeout    time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithAPIVersion overrides the api-version query parameter.
func WithAPIVersion(v string) Option {
	return func(c *config) {
		c.apiVersion = v
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new DIAL LLM Provider for the given host, for example
// "https://core.dialx.ai".
func New(apiKey, host string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("dial: apiKey must not be empty")
	}
	if host == "" {
		return nil, fmt.Errorf("dial: host must not be empty")
	}
	host = strings.TrimRight(host, "/")

	cfg := &config{apiVersion: DefaultAPIVersion}
	for _, o := range opts {
		o(cfg)
	}

	// DIAL authenticates with Api-Key, so no WithAPIKey here; a bearer
	// Authorization header would be rejected.
	reqOpts := []option.RequestOption{
		option.WithBaseURL(host + "/openai/"),
		option.WithHeader("Api-Key", apiKey),
		option.WithQuery("api-version", cfg.apiVersion),
		option.WithMaxRetries(0),
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{Compat: openai.Compat{
		Client:       oai.NewClient(reqOpts...),
		ProviderKind: llm.KindDIAL,
		Catalog:      Catalog(),
		PerRequest: func(model string) []option.RequestOption {
			// Deployment-scoped path: {host}/openai/deployments/{model}/chat/completions.
			return []option.RequestOption{
				option.WithBaseURL(host + "/openai/deployments/" + model + "/"),
			}
		},
	}}, nil
}

// Catalog returns the static capability table for common DIAL deployments.
func Catalog() *llm.Catalog {
	return llm.NewCatalog(
		llm.Capability{
			Name:         "o3-2025-04-16",
			FriendlyName: "DIAL (O3)",
			Aliases:      []string{"o3"},
			Kind:         llm.KindDIAL,
			ContextWindow: 200_000, MaxOutputTokens: 100_000,
			SupportsThinking: true, SupportsReasoningEffort: true,
			SupportsTemperature: false, Temperature: llm.FixedTemperature(1),
			SupportsImages: true, MaxImages: 5, MaxImageSizeMB: 20,
			SupportsJSONMode: true, SupportsSystemPrompt: true,
			Description: "OpenAI O3 deployment - strong reasoning behind a DIAL gateway",
		},
		llm.Capability{
			Name:         "o4-mini-2025-04-16",
			FriendlyName: "DIAL (O4-mini)",
			Aliases:      []string{"o4-mini"},
			Kind:         llm.KindDIAL,
			ContextWindow: 200_000, MaxOutputTokens: 100_000,
			SupportsThinking: true, SupportsReasoningEffort: true,
			SupportsTemperature: false, Temperature: llm.FixedTemperature(1),
			SupportsImages: true, MaxImages: 5, MaxImageSizeMB: 20,
			SupportsJSONMode: true, SupportsSystemPrompt: true,
			Description: "OpenAI O4-mini deployment - fast reasoning behind a DIAL gateway",
		},
		llm.Capability{
			Name:         "gemini-2.5-pro-preview-05-06",
			FriendlyName: "DIAL (Gemini 2.5 Pro)",
			Aliases:      []string{"gemini-2.5-pro"},
			Kind:         llm.KindDIAL,
			ContextWindow: 1_048_576, MaxOutputTokens: 65_536,
			SupportsThinking:    true,
			SupportsTemperature: true, Temperature: llm.TemperatureRange{Min: 0, Max: 2},
			SupportsImages: true, MaxImages: 16, MaxImageSizeMB: 20,
			SupportsJSONMode: true, SupportsSystemPrompt: true,
			Description: "Gemini 2.5 Pro deployment - huge-context analysis behind a DIAL gateway",
		},
		llm.Capability{
			Name:         "gemini-2.5-flash-preview-05-20",
			FriendlyName: "DIAL (Gemini 2.5 Flash)",
			Aliases:      []string{"gemini-2.5-flash"},
			Kind:         llm.KindDIAL,
			ContextWindow: 1_048_576, MaxOutputTokens: 65_536,
			SupportsThinking:    true,
			SupportsTemperature: true, Temperature: llm.TemperatureRange{Min: 0, Max: 2},
			SupportsImages: true, MaxImages: 16, MaxImageSizeMB: 20,
			SupportsJSONMode: true, SupportsSystemPrompt: true,
			Description: "Gemini 2.5 Flash deployment - fast iteration behind a DIAL gateway",
		},
		llm.Capability{
			Name:         "anthropic.claude-sonnet-4",
			FriendlyName: "DIAL (Claude Sonnet 4)",
			Aliases:      []string{"claude-sonnet-4"},
			Kind:         llm.KindDIAL,
			ContextWindow: 200_000, MaxOutputTokens: 64_000,
			SupportsThinking:    true,
			SupportsTemperature: true, Temperature: llm.TemperatureRange{Min: 0, Max: 1},
			SupportsImages: true, MaxImages: 5, MaxImageSizeMB: 5,
			SupportsSystemPrompt: true,
			Description:          "Claude Sonnet 4 deployment - balanced coding model behind a DIAL gateway",
		},
	)
}

// Ensure Provider implements llm.Provider at compile time.
var (
	_ llm.Provider    = (*Provider)(nil)
	_ llm.ModelLister = (*Provider)(nil)
)
