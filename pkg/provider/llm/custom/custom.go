// Package custom provides an LLM provider for self-hosted or third-party
// OpenAI-compatible endpoints (Ollama, vLLM, LM Studio, text-generation-webui)
// backed by github.com/mozilla-ai/any-llm-go.
//
// Capabilities come from the user's model registry file; models absent from
// it are served with conservative defaults. Validation is strict: only
// registered models and the configured default are accepted, so arbitrary
// names can still fall through to OpenRouter in the provider precedence.
package custom

import (
	"context"
	"fmt"
	"sort"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/MrWong99/conclave/internal/tokens"
	"github.com/MrWong99/conclave/pkg/provider/llm"
)

// Provider implements llm.Provider against one OpenAI-compatible base URL.
type Provider struct {
	backend      anyllmlib.Provider
	catalog      *llm.Catalog
	defaultModel string
}

// config holds optional configuration for the provider.
type config struct {
	apiKey       string
	defaultModel string
	models       []llm.Capability
}

// Option is a functional option for Provider.
type Option func(*config)

// WithAPIKey sets the bearer token. Local inference servers usually run
// without one.
func WithAPIKey(key string) Option {
	return func(c *config) {
		c.apiKey = key
	}
}

// WithDefaultModel registers the model name used when callers rely on the
// endpoint's default.
func WithDefaultModel(model string) Option {
	return func(c *config) {
		c.defaultModel = model
	}
}

// WithModels registers capability records from the model registry file.
func WithModels(models []llm.Capability) Option {
	return func(c *config) {
		c.models = models
	}
}

// New constructs a new custom-endpoint LLM Provider for the given base URL,
// for example "http://localhost:11434/v1".
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("custom: baseURL must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	libOpts := []anyllmlib.Option{anyllmlib.WithBaseURL(baseURL)}
	if cfg.apiKey != "" {
		libOpts = append(libOpts, anyllmlib.WithAPIKey(cfg.apiKey))
	} else {
		// Keep the backend from falling through to OPENAI_API_KEY, which
		// belongs to the real OpenAI provider.
		libOpts = append(libOpts, anyllmlib.WithAPIKey("unused"))
	}

	backend, err := anyllmoai.New(libOpts...)
	if err != nil {
		return nil, fmt.Errorf("custom: create backend: %w", err)
	}

	return &Provider{
		backend:      backend,
		catalog:      llm.NewCatalog(cfg.models...),
		defaultModel: cfg.defaultModel,
	}, nil
}

// Kind implements llm.Provider.
func (p *Provider) Kind() llm.ProviderKind { return llm.KindCustom }

// ValidateModel implements llm.Provider.
func (p *Provider) ValidateModel(name string) bool {
	_, ok := p.capabilityFor(name)
	return ok
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities(name string) (llm.Capability, bool) {
	return p.capabilityFor(name)
}

// ListModels implements llm.ModelLister.
func (p *Provider) ListModels() []string {
	names := p.catalog.Names()
	if p.defaultModel != "" {
		if _, ok := p.catalog.Resolve(p.defaultModel); !ok {
			names = append(names, p.defaultModel)
			sort.Strings(names)
		}
	}
	return names
}

// Generate implements llm.Provider.
func (p *Provider) Generate(ctx context.Context, req llm.GenerationRequest) (*llm.ModelResponse, error) {
	capability, ok := p.capabilityFor(req.Model)
	if !ok {
		return nil, fmt.Errorf("custom: model %q: %w", req.Model, llm.ErrModelUnavailable)
	}

	params := buildParams(capability, req)
	resp, err := p.backend.Completion(ctx, params)
	if err != nil {
		return nil, &llm.TransportError{Err: fmt.Errorf("custom: completion: %w", err)}
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("custom: empty choices in response")
	}

	out := &llm.ModelResponse{
		Content:      resp.Choices[0].Message.ContentString(),
		ModelName:    capability.Name,
		FriendlyName: capability.FriendlyName,
		Kind:         llm.KindCustom,
		Metadata:     map[string]any{"finish_reason": resp.Choices[0].FinishReason},
	}
	if resp.Usage != nil {
		out.Usage = llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}
	return out, nil
}

// CountTokens implements llm.Provider. Custom endpoints expose no counting
// API, so this is the shared character estimate.
func (p *Provider) CountTokens(_ context.Context, _ string, text string) (int, error) {
	return tokens.Estimate(text), nil
}

func (p *Provider) capabilityFor(name string) (llm.Capability, bool) {
	if capability, ok := p.catalog.Get(name); ok {
		return capability, true
	}
	if p.defaultModel != "" && strings.EqualFold(name, p.defaultModel) {
		return GenericCapability(p.defaultModel), true
	}
	return llm.Capability{}, false
}

// GenericCapability is the conservative default contract for models the
// registry file does not describe.
func GenericCapability(name string) llm.Capability {
	return llm.Capability{
		Name:         name,
		FriendlyName: "Custom (" + name + ")",
		Kind:         llm.KindCustom,
		ContextWindow: 32_768, MaxOutputTokens: 4_096,
		SupportsTemperature: true, Temperature: llm.TemperatureRange{Min: 0, Max: 2},
		SupportsSystemPrompt: true,
		Description:          "Custom endpoint model (capabilities unverified)",
	}
}

// buildParams converts a GenerationRequest into any-llm completion params.
// Image attachments and thinking budgets have no equivalent on this wire and
// are dropped.
func buildParams(capability llm.Capability, req llm.GenerationRequest) anyllmlib.CompletionParams {
	userText := req.Prompt
	var messages []anyllmlib.Message

	if req.SystemPrompt != "" {
		if capability.SupportsSystemPrompt {
			messages = append(messages, anyllmlib.Message{
				Role:    anyllmlib.RoleSystem,
				Content: req.SystemPrompt,
			})
		} else {
			userText = req.SystemPrompt + "\n\n" + userText
		}
	}
	messages = append(messages, anyllmlib.Message{
		Role:    anyllmlib.RoleUser,
		Content: userText,
	})

	params := anyllmlib.CompletionParams{
		Model:    capability.Name,
		Messages: messages,
	}
	if capability.SupportsTemperature {
		t := req.Temperature
		params.Temperature = &t
	}

	maxOut := req.MaxOutputTokens
	if maxOut <= 0 || (capability.MaxOutputTokens > 0 && maxOut > capability.MaxOutputTokens) {
		maxOut = capability.MaxOutputTokens
	}
	if maxOut > 0 {
		params.MaxTokens = &maxOut
	}

	return params
}

// Ensure Provider implements llm.Provider at compile time.
var (
	_ llm.Provider    = (*Provider)(nil)
	_ llm.ModelLister = (*Provider)(nil)
)
