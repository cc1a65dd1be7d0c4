// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify that tools send correct
// GenerationRequests and to feed controlled responses without a live backend.
// All fields are safe to set before calling any method; mutating them during
// a concurrent call is the caller's responsibility.
//
// Example:
//
//	p := &mock.Provider{
//	    Models:           []llm.Capability{{Name: "test-model"}},
//	    GenerateResponse: &llm.ModelResponse{Content: "Hello!"},
//	}
//	resp, err := p.Generate(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/conclave/pkg/provider/llm"
)

// GenerateCall records a single invocation of Generate.
type GenerateCall struct {
	// Ctx is the context passed to Generate.
	Ctx context.Context
	// Req is the GenerationRequest passed to Generate.
	Req llm.GenerationRequest
}

// CountTokensCall records a single invocation of CountTokens.
type CountTokensCall struct {
	Model string
	Text  string
}

// GenerateResult is one scripted outcome for Generate.
type GenerateResult struct {
	Response *llm.ModelResponse
	Err      error
}

// Provider is a mock implementation of llm.Provider.
// When GenerateScript is non-empty its entries are consumed in order; after
// that Generate falls back to GenerateResponse/GenerateErr. A nil
// GenerateResponse yields a synthesized empty response so callers never see
// a nil response without an error.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// ProviderKind is returned by Kind. Defaults to llm.KindCustom when unset.
	ProviderKind llm.ProviderKind

	// Models drives ValidateModel, Capabilities and ListModels.
	Models []llm.Capability

	// GenerateScript, if non-empty, supplies Generate outcomes in order.
	GenerateScript []GenerateResult

	// GenerateResponse is returned by Generate once the script is exhausted.
	GenerateResponse *llm.ModelResponse

	// GenerateErr, if non-nil, is returned as the error from Generate.
	GenerateErr error

	// TokenCount is returned by CountTokens.
	TokenCount int

	// CountTokensErr, if non-nil, is returned as the error from CountTokens.
	CountTokensErr error

	// --- Call records (read after test) ---

	// GenerateCalls records every invocation of Generate in order.
	GenerateCalls []GenerateCall

	// CountTokensCalls records every invocation of CountTokens in order.
	CountTokensCalls []CountTokensCall

	scriptPos int
}

// Kind returns ProviderKind, defaulting to llm.KindCustom.
func (p *Provider) Kind() llm.ProviderKind {
	if p.ProviderKind == "" {
		return llm.KindCustom
	}
	return p.ProviderKind
}

// ValidateModel reports whether name matches a configured model or alias.
func (p *Provider) ValidateModel(name string) bool {
	_, ok := p.catalog().Resolve(name)
	return ok
}

// Capabilities returns the configured capability for name.
func (p *Provider) Capabilities(name string) (llm.Capability, bool) {
	return p.catalog().Get(name)
}

// ListModels returns the canonical names of all configured models.
func (p *Provider) ListModels() []string {
	return p.catalog().Names()
}

// Generate records the call and returns the next scripted outcome, or the
// fallback response fields.
func (p *Provider) Generate(ctx context.Context, req llm.GenerationRequest) (*llm.ModelResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateCalls = append(p.GenerateCalls, GenerateCall{Ctx: ctx, Req: req})

	if p.scriptPos < len(p.GenerateScript) {
		r := p.GenerateScript[p.scriptPos]
		p.scriptPos++
		return r.Response, r.Err
	}
	if p.GenerateErr != nil {
		return nil, p.GenerateErr
	}
	if p.GenerateResponse != nil {
		return p.GenerateResponse, nil
	}
	return &llm.ModelResponse{ModelName: req.Model, Kind: p.Kind()}, nil
}

// CountTokens records the call and returns TokenCount, CountTokensErr.
func (p *Provider) CountTokens(_ context.Context, model, text string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CountTokensCalls = append(p.CountTokensCalls, CountTokensCall{Model: model, Text: text})
	return p.TokenCount, p.CountTokensErr
}

// Reset clears all recorded calls and rewinds the script. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateCalls = nil
	p.CountTokensCalls = nil
	p.scriptPos = 0
}

func (p *Provider) catalog() *llm.Catalog {
	return llm.NewCatalog(p.Models...)
}

// Ensure Provider implements llm.Provider at compile time.
var (
	_ llm.Provider    = (*Provider)(nil)
	_ llm.ModelLister = (*Provider)(nil)
)
