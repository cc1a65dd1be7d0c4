package tools

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/MrWong99/conclave/internal/registry"
)

// BuildInfo identifies the running server. Populated at wiring time; the
// Version field is overridable through -ldflags.
type BuildInfo struct {
	Version string
	Commit  string
}

// Version reports server version, build info, and the configured providers.
// No provider calls are made.
type Version struct {
	deps *Deps
	info BuildInfo
}

// NewVersion builds the version tool.
func NewVersion(deps *Deps, info BuildInfo) *Version {
	if info.Version == "" {
		info.Version = "dev"
	}
	return &Version{deps: deps, info: info}
}

func (v *Version) Name() string { return "version" }

func (v *Version) Description() string {
	return "Reports the server version, build information, and configured providers."
}

func (v *Version) InputSchema() *jsonschema.Schema {
	return BuildSchema(nil, nil)
}

func (v *Version) Category() registry.ToolCategory { return registry.CategoryFastResponse }
func (v *Version) RequiresModel() bool             { return false }
func (v *Version) DefaultTemperature() float64     { return TemperatureBalanced }

func (v *Version) Execute(_ context.Context, _ map[string]any) (*Envelope, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# Conclave MCP Server\n\n")
	fmt.Fprintf(&b, "- Version: %s\n", v.info.Version)
	if v.info.Commit != "" {
		fmt.Fprintf(&b, "- Commit: %s\n", v.info.Commit)
	}
	fmt.Fprintf(&b, "- Runtime: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)

	b.WriteString("\n## Configured providers\n")
	kinds := v.deps.Registry.Kinds()
	if len(kinds) == 0 {
		b.WriteString("- none (set at least one provider API key)\n")
	}
	for _, kind := range kinds {
		fmt.Fprintf(&b, "- %s\n", kind)
	}
	fmt.Fprintf(&b, "\nDefault model: %s\n", v.deps.Settings.DefaultModel)

	return &Envelope{
		Status:      StatusSuccess,
		Content:     b.String(),
		ContentType: ContentMarkdown,
		Metadata: map[string]any{
			"tool_name": v.Name(),
			"version":   v.info.Version,
		},
	}, nil
}

var _ Tool = (*Version)(nil)
