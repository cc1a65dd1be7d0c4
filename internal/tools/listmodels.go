package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/MrWong99/conclave/internal/registry"
	"github.com/MrWong99/conclave/pkg/provider/llm"
)

// ListModels enumerates the configured providers and their servable models
// with aliases and capability summaries. No provider network calls are made;
// everything comes from the registry and the static catalogs.
type ListModels struct {
	deps *Deps
}

// NewListModels builds the listmodels tool.
func NewListModels(deps *Deps) *ListModels {
	return &ListModels{deps: deps}
}

func (l *ListModels) Name() string { return "listmodels" }

func (l *ListModels) Description() string {
	return "Lists the configured providers, their available models, aliases, and " +
		"capabilities (context window, thinking support, vision support)."
}

func (l *ListModels) InputSchema() *jsonschema.Schema {
	return BuildSchema(nil, nil)
}

func (l *ListModels) Category() registry.ToolCategory { return registry.CategoryFastResponse }
func (l *ListModels) RequiresModel() bool             { return false }
func (l *ListModels) DefaultTemperature() float64     { return TemperatureBalanced }

func (l *ListModels) Execute(_ context.Context, _ map[string]any) (*Envelope, error) {
	var b strings.Builder
	b.WriteString("# Available Models\n")

	kinds := l.deps.Registry.Kinds()
	if len(kinds) == 0 {
		b.WriteString("\nNo providers are configured. Set at least one provider API key.\n")
	}

	total := 0
	for _, kind := range kinds {
		provider, ok := l.deps.Registry.Provider(kind)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n", kind)

		names := providerModels(provider)
		sort.Strings(names)
		for _, name := range names {
			capability, ok := provider.Capabilities(name)
			if !ok {
				continue
			}
			total++
			fmt.Fprintf(&b, "- **%s**", capability.Name)
			if len(capability.Aliases) > 0 {
				fmt.Fprintf(&b, " (aliases: %s)", strings.Join(capability.Aliases, ", "))
			}
			fmt.Fprintf(&b, " — %s context", formatTokens(capability.ContextWindow))
			if capability.SupportsThinking {
				b.WriteString(", thinking")
			}
			if capability.SupportsImages {
				b.WriteString(", vision")
			}
			if capability.Description != "" {
				fmt.Fprintf(&b, ". %s", capability.Description)
			}
			b.WriteByte('\n')
		}
	}

	return &Envelope{
		Status:      StatusSuccess,
		Content:     b.String(),
		ContentType: ContentMarkdown,
		Metadata: map[string]any{
			"tool_name":   l.Name(),
			"model_count": total,
		},
	}, nil
}

func providerModels(p llm.Provider) []string {
	if lister, ok := p.(llm.ModelLister); ok {
		return lister.ListModels()
	}
	return nil
}

func formatTokens(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%dK", n/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

var _ Tool = (*ListModels)(nil)
