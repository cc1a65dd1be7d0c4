// Package gemini provides an LLM provider backed by the Google Gemini API
// through the native genai SDK.
package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/genai"

	"github.com/MrWong99/conclave/pkg/provider/llm"
)

// Provider implements llm.Provider using the Gemini API.
type Provider struct {
	client  *genai.Client
	catalog *llm.Catalog
}

// config holds optional configuration for the provider.
type config struct {
	baseURL    string
	httpClient *http.Client
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default Gemini API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// New constructs a new Gemini LLM Provider.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: apiKey must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.baseURL}
	}
	if cfg.httpClient != nil {
		cc.HTTPClient = cfg.httpClient
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Provider{client: client, catalog: Catalog()}, nil
}

// Kind implements llm.Provider.
func (p *Provider) Kind() llm.ProviderKind { return llm.KindGoogle }

// ValidateModel implements llm.Provider.
func (p *Provider) ValidateModel(name string) bool {
	_, ok := p.catalog.Resolve(name)
	return ok
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities(name string) (llm.Capability, bool) {
	return p.catalog.Get(name)
}

// ListModels implements llm.ModelLister.
func (p *Provider) ListModels() []string { return p.catalog.Names() }

// Generate implements llm.Provider.
func (p *Provider) Generate(ctx context.Context, req llm.GenerationRequest) (*llm.ModelResponse, error) {
	capability, ok := p.catalog.Get(req.Model)
	if !ok {
		return nil, fmt.Errorf("gemini: model %q: %w", req.Model, llm.ErrModelUnavailable)
	}

	contents, gcfg, err := buildRequest(capability, req)
	if err != nil {
		return nil, fmt.Errorf("gemini: build request: %w", err)
	}

	resp, err := p.client.Models.GenerateContent(ctx, capability.Name, contents, gcfg)
	if err != nil {
		return nil, mapError(capability.Name, err)
	}

	out := &llm.ModelResponse{
		Content:      resp.Text(),
		ModelName:    capability.Name,
		FriendlyName: capability.FriendlyName,
		Kind:         llm.KindGoogle,
		Metadata:     map[string]any{},
	}
	if len(resp.Candidates) > 0 {
		out.Metadata["finish_reason"] = string(resp.Candidates[0].FinishReason)
	}
	if um := resp.UsageMetadata; um != nil {
		out.Usage = llm.Usage{
			InputTokens:  int(um.PromptTokenCount),
			OutputTokens: int(um.CandidatesTokenCount),
			TotalTokens:  int(um.TotalTokenCount),
		}
		if um.ThoughtsTokenCount > 0 {
			out.Metadata["thoughts_token_count"] = int(um.ThoughtsTokenCount)
		}
	}
	return out, nil
}

// CountTokens implements llm.Provider using the native counting endpoint.
func (p *Provider) CountTokens(ctx context.Context, model, text string) (int, error) {
	capability, ok := p.catalog.Get(model)
	if !ok {
		return 0, fmt.Errorf("gemini: model %q: %w", model, llm.ErrModelUnavailable)
	}
	resp, err := p.client.Models.CountTokens(ctx, capability.Name, genai.Text(text), nil)
	if err != nil {
		return 0, mapError(capability.Name, err)
	}
	return int(resp.TotalTokens), nil
}

// buildRequest converts a GenerationRequest into genai contents and config.
func buildRequest(capability llm.Capability, req llm.GenerationRequest) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	parts := []*genai.Part{{Text: req.Prompt}}
	if capability.SupportsImages {
		for _, img := range req.Images {
			blob, err := imageBlob(img)
			if err != nil {
				return nil, nil, err
			}
			parts = append(parts, &genai.Part{InlineData: blob})
		}
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	gcfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.SystemPrompt != "" {
		gcfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}

	maxOut := req.MaxOutputTokens
	if maxOut <= 0 || (capability.MaxOutputTokens > 0 && maxOut > capability.MaxOutputTokens) {
		maxOut = capability.MaxOutputTokens
	}
	if maxOut > 0 {
		gcfg.MaxOutputTokens = int32(maxOut)
	}

	if budget := capability.ThinkingBudget(req.ThinkingMode); budget > 0 {
		gcfg.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(int32(budget)),
		}
	}

	if req.JSONMode && capability.SupportsJSONMode {
		gcfg.ResponseMIMEType = "application/json"
	}

	return contents, gcfg, nil
}

// imageBlob turns an image reference (data URL or absolute file path) into
// inline blob data.
func imageBlob(ref string) (*genai.Blob, error) {
	if strings.HasPrefix(ref, "data:") {
		mimeType, data, err := decodeDataURL(ref)
		if err != nil {
			return nil, fmt.Errorf("decode image data URL: %v: %w", err, llm.ErrInvalidRequest)
		}
		return &genai.Blob{MIMEType: mimeType, Data: data}, nil
	}

	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("read image %q: %v: %w", ref, err, llm.ErrInvalidRequest)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(ref))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return &genai.Blob{MIMEType: mimeType, Data: data}, nil
}

// decodeDataURL splits a base64 data URL into its MIME type and raw bytes.
func decodeDataURL(ref string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("missing data separator")
	}
	mimeType, _, _ := strings.Cut(meta, ";")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode base64 payload: %w", err)
	}
	return mimeType, data, nil
}

// mapError annotates SDK failures for the retry layer. A 404 means the model
// name is unknown to the API.
func mapError(model string, err error) error {
	var apierr *genai.APIError
	if !errors.As(err, &apierr) {
		return &llm.TransportError{Err: fmt.Errorf("gemini: %w", err)}
	}

	inner := fmt.Errorf("gemini: %w", err)
	if apierr.Code == http.StatusNotFound {
		inner = fmt.Errorf("gemini: model %q: %w", model, llm.ErrModelUnavailable)
	}
	return &llm.TransportError{StatusCode: apierr.Code, Err: inner}
}

// Catalog returns the static capability table for Gemini models.
func Catalog() *llm.Catalog {
	return llm.NewCatalog(
		llm.Capability{
			Name:         "gemini-2.5-pro",
			FriendlyName: "Gemini (Pro 2.5)",
			Aliases:      []string{"pro", "gemini-pro", "gemini pro"},
			Kind:         llm.KindGoogle,
			ContextWindow: 1_048_576, MaxOutputTokens: 65_536,
			SupportsThinking: true, MaxThinkingTokens: 32_768,
			SupportsTemperature: true, Temperature: llm.TemperatureRange{Min: 0, Max: 2},
			SupportsImages: true, MaxImages: 16, MaxImageSizeMB: 20,
			SupportsJSONMode: true, SupportsSystemPrompt: true,
			Description: "Deep reasoning + thinking mode (1M context) - complex problems, architecture, deep analysis",
		},
		llm.Capability{
			Name:         "gemini-2.5-flash",
			FriendlyName: "Gemini (Flash 2.5)",
			Aliases:      []string{"flash", "flash2.5"},
			Kind:         llm.KindGoogle,
			ContextWindow: 1_048_576, MaxOutputTokens: 65_536,
			SupportsThinking: true, MaxThinkingTokens: 24_576,
			SupportsTemperature: true, Temperature: llm.TemperatureRange{Min: 0, Max: 2},
			SupportsImages: true, MaxImages: 16, MaxImageSizeMB: 20,
			SupportsJSONMode: true, SupportsSystemPrompt: true,
			Description: "Ultra-fast (1M context) - quick analysis, simple queries, rapid iterations",
		},
		llm.Capability{
			Name:         "gemini-2.0-flash",
			FriendlyName: "Gemini (Flash 2.0)",
			Aliases:      []string{"flash-2.0", "flash2"},
			Kind:         llm.KindGoogle,
			ContextWindow: 1_048_576, MaxOutputTokens: 8_192,
			SupportsTemperature: true, Temperature: llm.TemperatureRange{Min: 0, Max: 2},
			SupportsImages: true, MaxImages: 16, MaxImageSizeMB: 20,
			SupportsJSONMode: true, SupportsSystemPrompt: true,
			Description: "Fast general model (1M context) - summaries, explanations, everyday tasks",
		},
		llm.Capability{
			Name:         "gemini-2.0-flash-lite",
			FriendlyName: "Gemini (Flash Lite 2.0)",
			Aliases:      []string{"flashlite", "flash-lite"},
			Kind:         llm.KindGoogle,
			ContextWindow: 1_048_576, MaxOutputTokens: 8_192,
			SupportsTemperature: true, Temperature: llm.TemperatureRange{Min: 0, Max: 2},
			SupportsJSONMode: true, SupportsSystemPrompt: true,
			Description: "Lightweight text-only model (1M context) - high-volume, cost-sensitive workloads",
		},
	)
}

// Ensure Provider implements llm.Provider at compile time.
var (
	_ llm.Provider    = (*Provider)(nil)
	_ llm.ModelLister = (*Provider)(nil)
)
