// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote model API (Gemini, OpenAI, X.AI, OpenRouter,
// a DIAL gateway, or any OpenAI-compatible endpoint) and exposes a uniform
// interface for generating content, counting tokens, and inspecting model
// capabilities without coupling callers to any specific SDK.
//
// The package also carries the static model capability catalog: declarative
// metadata (context window, output limits, thinking support, temperature
// constraints, vision support, aliases) registered per provider at process
// start. Capability introspection is data, not inheritance.
//
// Implementors must be safe for concurrent use.
package llm

import "context"

// Usage holds token accounting information returned by the LLM backend.
// All counts are in the model's native token unit and may differ between
// providers for the same textual content.
type Usage struct {
	// InputTokens is the number of tokens consumed by the prompt and system
	// prompt. This value directly affects context-window budget tracking.
	InputTokens int

	// OutputTokens is the number of tokens generated in the response.
	OutputTokens int

	// TotalTokens is InputTokens + OutputTokens. Provided as a convenience;
	// some providers return it directly rather than computing it from the parts.
	TotalTokens int
}

// GenerationRequest carries everything a provider needs to produce a response.
// Callers should treat a zero-value request as invalid; at minimum Prompt and
// Model must be non-empty.
//
// Knobs a given provider or model does not support are silently dropped with
// a warning log rather than failing the request.
type GenerationRequest struct {
	// Prompt is the user-facing content driving the response. Conversation
	// history and embedded files, when present, are already folded in.
	Prompt string

	// Model is the canonical model name to generate with. Alias resolution
	// happens before the request reaches a provider.
	Model string

	// SystemPrompt is an optional high-priority instruction injected before
	// the prompt. Providers without native system-prompt support prepend it
	// to the prompt text.
	SystemPrompt string

	// Temperature controls output randomness. The tool layer has already
	// validated and corrected it against the model's temperature constraint.
	Temperature float64

	// MaxOutputTokens caps the completion length. Zero means use the model's
	// default (usually its catalog MaxOutputTokens).
	MaxOutputTokens int

	// ThinkingMode selects the extended-reasoning budget for models that
	// support it. Empty means no explicit thinking configuration.
	ThinkingMode ThinkingMode

	// Images holds absolute file paths or data URLs to attach. Providers
	// without vision support drop them with a warning.
	Images []string

	// JSONMode asks the model to emit a single JSON document. Dropped with a
	// warning on models without JSON output support.
	JSONMode bool
}

// ModelResponse is the uniform result of a generation call.
type ModelResponse struct {
	// Content is the full text of the model's reply.
	Content string

	// Usage contains token accounting for this request/response pair. May be
	// zero when the backend does not report usage.
	Usage Usage

	// ModelName is the canonical name of the model that produced the reply.
	ModelName string

	// FriendlyName is the human-facing label from the capability catalog.
	FriendlyName string

	// Kind identifies the provider that served the request.
	Kind ProviderKind

	// Metadata carries provider-specific extras (finish reason, warnings,
	// upstream model identifiers). Never nil on a successful response.
	Metadata map[string]any
}

// Provider is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use from multiple goroutines
// and must propagate context cancellation promptly: when ctx is cancelled a
// method must return as quickly as possible.
type Provider interface {
	// Kind returns the provider family this client belongs to.
	Kind() ProviderKind

	// ValidateModel reports whether name (canonical or alias) is a model this
	// provider can serve. It must not perform network I/O on the hot path;
	// providers with live listings may consult a process-wide cache.
	ValidateModel(name string) bool

	// Generate sends req to the model and waits for the full response. It may
	// block for the duration of the upstream call; it never streams back up.
	//
	// Returns an error if the request fails or if ctx is cancelled before the
	// completion arrives.
	Generate(ctx context.Context, req GenerationRequest) (*ModelResponse, error)

	// CountTokens estimates how many tokens text would consume in the given
	// model's context window. Implementations may call the provider's
	// tokenisation API or perform a local approximation; the result need not
	// be exact but should not undercount badly.
	CountTokens(ctx context.Context, model, text string) (int, error)

	// Capabilities returns the static capability record for name, resolving
	// aliases. The boolean is false when the model is unknown to this
	// provider.
	Capabilities(name string) (Capability, bool)
}

// ModelLister is implemented by providers that can enumerate the canonical
// names of the models they serve. The registry uses it to build availability
// listings; providers backed by live catalogs return their cached snapshot.
type ModelLister interface {
	ListModels() []string
}
