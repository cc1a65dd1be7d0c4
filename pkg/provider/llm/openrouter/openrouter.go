// Package openrouter provides an LLM provider backed by OpenRouter, an
// OpenAI-compatible aggregator that fronts many vendors. Model names are
// vendor-prefixed (for example "anthropic/claude-sonnet-4").
package openrouter

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/conclave/pkg/provider/llm"
	"github.com/MrWong99/conclave/pkg/provider/llm/openai"
)

// DefaultBaseURL is the public OpenRouter API endpoint.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

const (
	// cacheTTL bounds how long the live model listing is trusted.
	cacheTTL = 5 * time.Minute

	// fetchTimeout bounds one listing request.
	fetchTimeout = 10 * time.Second
)

// Provider implements llm.Provider using the OpenRouter API. Model validation
// consults a cached live listing on top of the static catalog, so newly
// published models work without a release.
type Provider struct {
	openai.Compat
	cache *modelCache
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	referer string
	title   string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenRouter API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithAttribution sets the HTTP-Referer and X-Title headers OpenRouter uses
// for app attribution.
func WithAttribution(referer, title string) Option {
	return func(c *config) {
		c.referer = referer
		c.title = title
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenRouter LLM Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openrouter: apiKey must not be empty")
	}

	cfg := &config{
		baseURL: DefaultBaseURL,
		referer: "https://github.com/MrWong99/conclave",
		title:   "Conclave MCP",
	}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.baseURL),
		option.WithMaxRetries(0),
		option.WithHeader("HTTP-Referer", cfg.referer),
		option.WithHeader("X-Title", cfg.title),
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	p := &Provider{
		cache: newModelCache(func(ctx context.Context) ([]string, error) {
			page, err := client.Models.List(ctx)
			if err != nil {
				return nil, err
			}
			ids := make([]string, 0, len(page.Data))
			for _, m := range page.Data {
				ids = append(ids, m.ID)
			}
			return ids, nil
		}),
	}
	p.Compat = openai.Compat{
		Client:       client,
		ProviderKind: llm.KindOpenRouter,
		Catalog:      Catalog(),
		Fallback:     p.liveCapability,
	}
	return p, nil
}

// ListModels implements llm.ModelLister. It merges the static catalog with
// whatever the live listing currently knows.
func (p *Provider) ListModels() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, n := range p.Catalog.Names() {
		seen[strings.ToLower(n)] = struct{}{}
		names = append(names, n)
	}
	for _, n := range p.cache.Names() {
		if _, ok := seen[strings.ToLower(n)]; !ok {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// liveCapability admits models that the live listing knows but the static
// catalog does not, with conservative generic capabilities.
func (p *Provider) liveCapability(name string) (llm.Capability, bool) {
	if !p.cache.Has(name) {
		return llm.Capability{}, false
	}
	return GenericCapability(name), true
}

// GenericCapability is the conservative default contract for models known
// only from the live listing.
func GenericCapability(name string) llm.Capability {
	return llm.Capability{
		Name:         name,
		FriendlyName: "OpenRouter (" + name + ")",
		Kind:         llm.KindOpenRouter,
		ContextWindow: 32_768, MaxOutputTokens: 4_096,
		SupportsTemperature: true, Temperature: llm.TemperatureRange{Min: 0, Max: 2},
		SupportsSystemPrompt: true,
		Description:          "OpenRouter model (capabilities unverified)",
	}
}

// modelCache is a lazily refreshed snapshot of the live model listing. The
// first lookup fills it synchronously; after that, stale lookups answer from
// the old snapshot while a background refetch runs, so model validation never
// stalls on the network once warm. Fetch failures leave the previous snapshot
// in place; the static catalog still answers for curated models.
type modelCache struct {
	list func(context.Context) ([]string, error)

	mu         sync.Mutex
	names      map[string]struct{}
	fetched    time.Time
	refreshing bool
}

func newModelCache(list func(context.Context) ([]string, error)) *modelCache {
	return &modelCache{list: list}
}

// Has reports whether the live listing includes name.
func (c *modelCache) Has(name string) bool {
	_, ok := c.snapshot()[strings.ToLower(name)]
	return ok
}

// Names returns the cached listing, sorted.
func (c *modelCache) Names() []string {
	snapshot := c.snapshot()
	names := make([]string, 0, len(snapshot))
	for n := range snapshot {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// snapshot returns the current listing, filling a cold cache synchronously
// and kicking off at most one background refresh for a stale one. The
// returned map is replaced on refresh, never mutated, so callers may read it
// without the lock.
func (c *modelCache) snapshot() map[string]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.names == nil:
		names, err := c.fetch()
		c.fetched = time.Now()
		if err != nil {
			// Remember the failure so a dead endpoint is not hammered on
			// every lookup.
			c.names = map[string]struct{}{}
			break
		}
		c.names = names
	case time.Since(c.fetched) >= cacheTTL && !c.refreshing:
		c.refreshing = true
		go c.refresh()
	}
	return c.names
}

// refresh refetches the listing and installs the result.
func (c *modelCache) refresh() {
	names, err := c.fetch()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshing = false
	c.fetched = time.Now()
	if err != nil {
		return
	}
	c.names = names
}

// fetch performs one bounded listing request. The cache is process-owned
// maintenance state, so the request runs on its own deadline rather than any
// caller's context.
func (c *modelCache) fetch() (map[string]struct{}, error) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	ids, err := c.list(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		names[strings.ToLower(id)] = struct{}{}
	}
	return names, nil
}

// Catalog returns the static capability table for curated OpenRouter models.
func Catalog() *llm.Catalog {
	return llm.NewCatalog(
		llm.Capability{
			Name:         "anthropic/claude-opus-4.1",
			FriendlyName: "OpenRouter (Claude Opus 4.1)",
			Aliases:      []string{"opus", "claude-opus"},
			Kind:         llm.KindOpenRouter,
			ContextWindow: 200_000, MaxOutputTokens: 32_000,
			SupportsThinking:    true,
			SupportsTemperature: true, Temperature: llm.TemperatureRange{Min: 0, Max: 1},
			SupportsImages: true, MaxImages: 5, MaxImageSizeMB: 5,
			SupportsSystemPrompt: true,
			Description:          "Anthropic's most capable model (200K context) - hardest reasoning and review work",
		},
		llm.Capability{
			Name:         "anthropic/claude-sonnet-4",
			FriendlyName: "OpenRouter (Claude Sonnet 4)",
			Aliases:      []string{"sonnet", "claude-sonnet"},
			Kind:         llm.KindOpenRouter,
			ContextWindow: 200_000, MaxOutputTokens: 64_000,
			SupportsThinking:    true,
			SupportsTemperature: true, Temperature: llm.TemperatureRange{Min: 0, Max: 1},
			SupportsImages: true, MaxImages: 5, MaxImageSizeMB: 5,
			SupportsSystemPrompt: true,
			Description:          "Balanced Anthropic model (200K context) - strong coding at moderate cost",
		},
		llm.Capability{
			Name:         "openai/o3",
			FriendlyName: "OpenRouter (O3)",
			Kind:         llm.KindOpenRouter,
			ContextWindow: 200_000, MaxOutputTokens: 100_000,
			SupportsThinking: true, SupportsReasoningEffort: true,
			SupportsTemperature: false, Temperature: llm.FixedTemperature(1),
			SupportsImages: true, MaxImages: 5, MaxImageSizeMB: 20,
			SupportsJSONMode: true, SupportsSystemPrompt: true,
			Description: "OpenAI O3 via OpenRouter (200K context) - strong reasoning without a direct key",
		},
		llm.Capability{
			Name:         "google/gemini-2.5-pro",
			FriendlyName: "OpenRouter (Gemini 2.5 Pro)",
			Kind:         llm.KindOpenRouter,
			ContextWindow: 1_048_576, MaxOutputTokens: 65_536,
			SupportsThinking:    true,
			SupportsTemperature: true, Temperature: llm.TemperatureRange{Min: 0, Max: 2},
			SupportsImages: true, MaxImages: 16, MaxImageSizeMB: 20,
			SupportsJSONMode: true, SupportsSystemPrompt: true,
			Description: "Gemini 2.5 Pro via OpenRouter (1M context) - huge-context analysis without a direct key",
		},
		llm.Capability{
			Name:         "mistralai/mistral-large",
			FriendlyName: "OpenRouter (Mistral Large)",
			Aliases:      []string{"mistral"},
			Kind:         llm.KindOpenRouter,
			ContextWindow: 128_000, MaxOutputTokens: 8_192,
			SupportsTemperature: true, Temperature: llm.TemperatureRange{Min: 0, Max: 1},
			SupportsJSONMode: true, SupportsSystemPrompt: true,
			Description: "Mistral's flagship (128K context) - multilingual coding and analysis",
		},
		llm.Capability{
			Name:         "meta-llama/llama-3.3-70b-instruct",
			FriendlyName: "OpenRouter (Llama 3.3 70B)",
			Aliases:      []string{"llama", "llama3"},
			Kind:         llm.KindOpenRouter,
			ContextWindow: 131_072, MaxOutputTokens: 8_192,
			SupportsTemperature: true, Temperature: llm.TemperatureRange{Min: 0, Max: 2},
			SupportsSystemPrompt: true,
			Description:          "Open-weights workhorse (131K context) - cheap general-purpose inference",
		},
	)
}

// Ensure Provider implements llm.Provider at compile time.
var (
	_ llm.Provider    = (*Provider)(nil)
	_ llm.ModelLister = (*Provider)(nil)
)
