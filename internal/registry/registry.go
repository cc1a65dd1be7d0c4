// Package registry maps model names to the provider clients able to serve
// them.
//
// One process-wide [Registry] holds at most one client per provider kind.
// Model resolution walks the kinds in [llm.KindPrecedence] order (native
// vendors before aggregators), filters through env-driven allow-lists, and
// falls back per tool category when a caller delegates model choice with the
// "auto" sentinel.
//
// The registry is read-mostly: registration happens during wiring, lookups
// for the rest of the process lifetime.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/conclave/pkg/provider/llm"
)

// ToolCategory groups tools by the model profile they benefit from.
type ToolCategory string

const (
	// CategoryFastResponse prefers low-latency models (chat, listings).
	CategoryFastResponse ToolCategory = "fast_response"

	// CategoryBalanced prefers a speed/quality middle ground (reviews,
	// refactoring, test generation).
	CategoryBalanced ToolCategory = "balanced"

	// CategoryExtendedReasoning prefers deep-thinking models (debugging,
	// analysis, consensus).
	CategoryExtendedReasoning ToolCategory = "extended_reasoning"
)

// fallbackPreference ranks model names per category, best first. Names
// resolve through each provider's own catalog, so the same preference list
// works regardless of which providers are configured.
var fallbackPreference = map[ToolCategory][]string{
	CategoryExtendedReasoning: {
		"gemini-2.5-pro", "o3", "gpt-5", "grok-4",
		"anthropic/claude-opus-4.1", "deepseek/deepseek-r1-0528",
	},
	CategoryBalanced: {
		"gemini-2.5-flash", "gpt-5", "gpt-4.1", "grok-4",
		"anthropic/claude-sonnet-4",
	},
	CategoryFastResponse: {
		"gemini-2.5-flash", "o4-mini", "gpt-5-mini", "grok-3-fast",
		"gemini-2.0-flash", "anthropic/claude-sonnet-4",
	},
}

// suggestionMaxDistance bounds the Levenshtein distance for "did you mean"
// hints in resolution errors.
const suggestionMaxDistance = 3

// ModelNotAvailableError reports a failed model resolution together with
// everything the caller needs to self-correct.
type ModelNotAvailableError struct {
	// Model is the requested name.
	Model string

	// Available lists the canonical models currently served, sorted.
	Available []string

	// Suggestion is the nearest available name, or "" when nothing is close.
	Suggestion string

	// RestrictedBy names the allow-list env var that filtered the model out,
	// when restriction rather than absence caused the failure.
	RestrictedBy string
}

func (e *ModelNotAvailableError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Model '%s' is not available", e.Model)
	if e.RestrictedBy != "" {
		fmt.Fprintf(&b, " (excluded by %s)", e.RestrictedBy)
	} else {
		b.WriteString(" with current API keys")
	}
	b.WriteString(".")
	if e.Suggestion != "" {
		fmt.Fprintf(&b, " Did you mean '%s'?", e.Suggestion)
	}
	if len(e.Available) > 0 {
		fmt.Fprintf(&b, " Available models: %s", strings.Join(e.Available, ", "))
	} else {
		b.WriteString(" No models are available; configure at least one provider API key.")
	}
	return b.String()
}

// Restriction is one provider's env-driven allow-list.
type Restriction struct {
	// EnvVar names the variable for error messages.
	EnvVar string

	// Models lists the permitted names (canonical or alias,
	// case-insensitive). Empty permits everything.
	Models []string
}

// Registry is the provider lookup table. Safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	providers    map[llm.ProviderKind]llm.Provider
	restrictions map[llm.ProviderKind]Restriction
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		providers:    make(map[llm.ProviderKind]llm.Provider),
		restrictions: make(map[llm.ProviderKind]Restriction),
	}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry singleton. Tests should use
// [New] to avoid cross-test pollution.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = New()
	})
	return defaultRegistry
}

// Register installs a provider for its kind. Registration is idempotent:
// a kind that already has a client keeps it.
func (r *Registry) Register(p llm.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[p.Kind()]; exists {
		return
	}
	r.providers[p.Kind()] = p
}

// Restrict installs the allow-list for a provider kind, replacing any
// previous one. Restriction lists are snapshotted at process start.
func (r *Registry) Restrict(kind llm.ProviderKind, restriction Restriction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restrictions[kind] = restriction
}

// Provider returns the client registered for kind.
func (r *Registry) Provider(kind llm.ProviderKind) (llm.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[kind]
	return p, ok
}

// Kinds returns the registered provider kinds in precedence order.
func (r *Registry) Kinds() []llm.ProviderKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var kinds []llm.ProviderKind
	for _, kind := range llm.KindPrecedence {
		if _, ok := r.providers[kind]; ok {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// snapshot copies the provider and restriction tables. Model lookups may
// consult a provider's live catalog over the network, so resolution works on
// a snapshot instead of holding the registry lock across provider calls.
func (r *Registry) snapshot() (map[llm.ProviderKind]llm.Provider, map[llm.ProviderKind]Restriction) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	providers := make(map[llm.ProviderKind]llm.Provider, len(r.providers))
	for kind, p := range r.providers {
		providers[kind] = p
	}
	restrictions := make(map[llm.ProviderKind]Restriction, len(r.restrictions))
	for kind, restriction := range r.restrictions {
		restrictions[kind] = restriction
	}
	return providers, restrictions
}

// ProviderForModel resolves a model name (canonical or alias) to the first
// provider in precedence order that can serve it, honouring restriction
// lists. The returned capability has aliases resolved.
func (r *Registry) ProviderForModel(name string) (llm.Provider, llm.Capability, error) {
	providers, restrictions := r.snapshot()

	var restrictedBy string
	for _, kind := range llm.KindPrecedence {
		p, ok := providers[kind]
		if !ok || !p.ValidateModel(name) {
			continue
		}
		capability, ok := p.Capabilities(name)
		if !ok {
			continue
		}
		if envVar, ok := allowed(restrictions, kind, name, capability); !ok {
			restrictedBy = envVar
			continue
		}
		return p, capability, nil
	}

	available := availableNames(providers, restrictions)
	return nil, llm.Capability{}, &ModelNotAvailableError{
		Model:        name,
		Available:    available,
		Suggestion:   nearestName(name, available),
		RestrictedBy: restrictedBy,
	}
}

// AvailableModels maps every servable canonical model name to the provider
// kind that wins resolution for it.
func (r *Registry) AvailableModels() map[string]llm.ProviderKind {
	providers, restrictions := r.snapshot()

	out := make(map[string]llm.ProviderKind)
	// Reverse precedence so higher-precedence kinds overwrite.
	for i := len(llm.KindPrecedence) - 1; i >= 0; i-- {
		kind := llm.KindPrecedence[i]
		p, ok := providers[kind]
		if !ok {
			continue
		}
		for _, name := range listModels(p) {
			capability, ok := p.Capabilities(name)
			if !ok {
				continue
			}
			if _, ok := allowed(restrictions, kind, name, capability); ok {
				out[name] = kind
			}
		}
	}
	return out
}

// AvailableModelNames returns the sorted canonical names of every servable
// model.
func (r *Registry) AvailableModelNames() []string {
	models := r.AvailableModels()
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PreferredFallback picks the best available model for a tool category,
// walking the category's preference ranking across registered providers.
// When nothing in the ranking is available it falls back to any model, and
// reports false only when no provider serves anything at all.
func (r *Registry) PreferredFallback(category ToolCategory) (string, bool) {
	for _, name := range fallbackPreference[category] {
		if _, capability, err := r.ProviderForModel(name); err == nil {
			return capability.Name, true
		}
	}
	if names := r.AvailableModelNames(); len(names) > 0 {
		return names[0], true
	}
	return "", false
}

// allowed checks name against kind's restriction list, matching the
// requested name, the canonical name and every alias case-insensitively.
func allowed(restrictions map[llm.ProviderKind]Restriction, kind llm.ProviderKind, name string, capability llm.Capability) (envVar string, ok bool) {
	restriction, present := restrictions[kind]
	if !present || len(restriction.Models) == 0 {
		return "", true
	}
	candidates := append([]string{name, capability.Name}, capability.Aliases...)
	for _, entry := range restriction.Models {
		for _, candidate := range candidates {
			if strings.EqualFold(entry, candidate) {
				return "", true
			}
		}
	}
	return restriction.EnvVar, false
}

// availableNames lists servable canonical names from a registry snapshot.
func availableNames(providers map[llm.ProviderKind]llm.Provider, restrictions map[llm.ProviderKind]Restriction) []string {
	seen := make(map[string]bool)
	var names []string
	for _, kind := range llm.KindPrecedence {
		p, ok := providers[kind]
		if !ok {
			continue
		}
		for _, name := range listModels(p) {
			capability, ok := p.Capabilities(name)
			if !ok || seen[capability.Name] {
				continue
			}
			if _, ok := allowed(restrictions, kind, name, capability); ok {
				seen[capability.Name] = true
				names = append(names, capability.Name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// listModels enumerates a provider's canonical model names.
func listModels(p llm.Provider) []string {
	if lister, ok := p.(llm.ModelLister); ok {
		return lister.ListModels()
	}
	return nil
}

// nearestName returns the available name closest to requested when the edit
// distance is small enough to look like a typo.
func nearestName(requested string, available []string) string {
	best := ""
	bestDist := suggestionMaxDistance + 1
	lower := strings.ToLower(requested)
	for _, name := range available {
		dist := matchr.Levenshtein(lower, strings.ToLower(name))
		if dist < bestDist {
			best, bestDist = name, dist
		}
	}
	return best
}
