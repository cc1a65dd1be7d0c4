package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/conclave/internal/tokens"
	"github.com/MrWong99/conclave/pkg/provider/llm"
)

// Compat is the Chat Completions request core shared by every provider that
// speaks the OpenAI wire format (OpenAI itself, X.AI, OpenRouter, DIAL).
// Adapters configure it with their own client, kind and model catalog and
// promote its methods.
type Compat struct {
	// Client is the configured SDK client.
	Client oai.Client

	// ProviderKind identifies the provider family for responses and errors.
	ProviderKind llm.ProviderKind

	// Catalog holds the statically known model capabilities.
	Catalog *llm.Catalog

	// Fallback, if non-nil, supplies capabilities for models absent from
	// Catalog. Used by providers with an open model namespace.
	Fallback func(model string) (llm.Capability, bool)

	// PerRequest, if non-nil, returns extra request options applied to a
	// single generation call.
	PerRequest func(model string) []option.RequestOption
}

// Kind implements llm.Provider.
func (c *Compat) Kind() llm.ProviderKind { return c.ProviderKind }

// ValidateModel implements llm.Provider.
func (c *Compat) ValidateModel(name string) bool {
	_, ok := c.capabilityFor(name)
	return ok
}

// Capabilities implements llm.Provider.
func (c *Compat) Capabilities(name string) (llm.Capability, bool) {
	return c.capabilityFor(name)
}

// ListModels implements llm.ModelLister.
func (c *Compat) ListModels() []string { return c.Catalog.Names() }

// CountTokens implements llm.Provider. The Chat Completions API has no
// counting endpoint, so this is the shared character estimate.
func (c *Compat) CountTokens(_ context.Context, _ string, text string) (int, error) {
	return tokens.Estimate(text), nil
}

// Generate implements llm.Provider.
func (c *Compat) Generate(ctx context.Context, req llm.GenerationRequest) (*llm.ModelResponse, error) {
	capability, ok := c.capabilityFor(req.Model)
	if !ok {
		return nil, fmt.Errorf("%s: model %q: %w", c.ProviderKind, req.Model, llm.ErrModelUnavailable)
	}

	params, err := buildParams(capability, req)
	if err != nil {
		return nil, fmt.Errorf("%s: build params: %w", c.ProviderKind, err)
	}

	var opts []option.RequestOption
	if c.PerRequest != nil {
		opts = c.PerRequest(capability.Name)
	}

	resp, err := c.Client.Chat.Completions.New(ctx, params, opts...)
	if err != nil {
		return nil, mapError(c.ProviderKind, capability.Name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: empty choices in response", c.ProviderKind)
	}

	choice := resp.Choices[0]
	return &llm.ModelResponse{
		Content: choice.Message.Content,
		Usage: llm.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
		ModelName:    capability.Name,
		FriendlyName: capability.FriendlyName,
		Kind:         c.ProviderKind,
		Metadata:     map[string]any{"finish_reason": string(choice.FinishReason)},
	}, nil
}

func (c *Compat) capabilityFor(name string) (llm.Capability, bool) {
	if capability, ok := c.Catalog.Get(name); ok {
		return capability, true
	}
	if c.Fallback != nil {
		return c.Fallback(name)
	}
	return llm.Capability{}, false
}

// buildParams converts a GenerationRequest into Chat Completions params,
// honouring the model's capability contract.
func buildParams(capability llm.Capability, req llm.GenerationRequest) (oai.ChatCompletionNewParams, error) {
	userText := req.Prompt
	var messages []oai.ChatCompletionMessageParamUnion

	if req.SystemPrompt != "" {
		if capability.SupportsSystemPrompt {
			messages = append(messages, oai.SystemMessage(req.SystemPrompt))
		} else {
			userText = req.SystemPrompt + "\n\n" + userText
		}
	}

	if len(req.Images) > 0 && capability.SupportsImages {
		parts := []oai.ChatCompletionContentPartUnionParam{oai.TextContentPart(userText)}
		for _, img := range req.Images {
			url, err := imageDataURL(img)
			if err != nil {
				return oai.ChatCompletionNewParams{}, err
			}
			parts = append(parts, oai.ImageContentPart(oai.ChatCompletionContentPartImageImageURLParam{URL: url}))
		}
		messages = append(messages, oai.UserMessage(parts))
	} else {
		messages = append(messages, oai.UserMessage(userText))
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(capability.Name),
		Messages: messages,
	}

	// Fixed-temperature models reject the parameter outright, so omit it and
	// let the API apply its default.
	if capability.SupportsTemperature {
		params.Temperature = param.NewOpt(req.Temperature)
	}

	maxOut := req.MaxOutputTokens
	if maxOut <= 0 || (capability.MaxOutputTokens > 0 && maxOut > capability.MaxOutputTokens) {
		maxOut = capability.MaxOutputTokens
	}
	if maxOut > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(maxOut))
	}

	// Models with effort-level reasoning take a coarse effort instead of a
	// token budget.
	if capability.SupportsReasoningEffort && req.ThinkingMode.IsValid() {
		params.ReasoningEffort = reasoningEffort(req.ThinkingMode)
	}

	if req.JSONMode && capability.SupportsJSONMode {
		params.ResponseFormat = oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	return params, nil
}

// reasoningEffort maps a thinking mode onto the three-level effort scale.
func reasoningEffort(mode llm.ThinkingMode) shared.ReasoningEffort {
	switch mode {
	case llm.ThinkingMinimal, llm.ThinkingLow:
		return shared.ReasoningEffortLow
	case llm.ThinkingHigh, llm.ThinkingMax:
		return shared.ReasoningEffortHigh
	default:
		return shared.ReasoningEffortMedium
	}
}

// imageDataURL turns an image reference (data URL or absolute file path)
// into a data URL suitable for the image_url content part.
func imageDataURL(ref string) (string, error) {
	if strings.HasPrefix(ref, "data:") {
		return ref, nil
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return "", fmt.Errorf("read image %q: %v: %w", ref, err, llm.ErrInvalidRequest)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(ref))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// mapError annotates SDK failures with transport detail so the retry layer
// can classify them. 404 responses mean the model or deployment is unknown.
func mapError(kind llm.ProviderKind, model string, err error) error {
	var apierr *oai.Error
	if !errors.As(err, &apierr) {
		return &llm.TransportError{Err: fmt.Errorf("%s: %w", kind, err)}
	}

	inner := fmt.Errorf("%s: %w", kind, err)
	if apierr.StatusCode == http.StatusNotFound {
		inner = fmt.Errorf("%s: model %q: %w", kind, model, llm.ErrModelUnavailable)
	}
	return &llm.TransportError{
		StatusCode: apierr.StatusCode,
		RetryAfter: retryAfterFrom(apierr.Response),
		Err:        inner,
	}
}

// retryAfterFrom parses a Retry-After header given either as delay seconds
// or as an HTTP date.
func retryAfterFrom(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
