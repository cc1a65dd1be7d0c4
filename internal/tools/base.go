// Package tools implements the MCP tool surface: the shared Tool contract,
// request validation, the simple-tool runner, and the individual simple
// tools (chat, challenge, consensus, listmodels, version).
//
// Every tool rides the same infrastructure: schema assembly from field maps,
// recursive absolute-path validation, image and temperature validation, the
// prompt-size gate, conversation threading, and provider resolution through
// the registry. Workflow tools reuse all of it via this package.
package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/MrWong99/conclave/internal/config"
	"github.com/MrWong99/conclave/internal/conversation"
	"github.com/MrWong99/conclave/internal/files"
	"github.com/MrWong99/conclave/internal/observe"
	"github.com/MrWong99/conclave/internal/registry"
	"github.com/MrWong99/conclave/internal/resilience"
	"github.com/MrWong99/conclave/pkg/provider/llm"
)

// Deps bundles the shared infrastructure every tool runs on.
type Deps struct {
	Settings *config.Settings
	Registry *registry.Registry
	Store    *conversation.Store
	Guard    *resilience.Guard
	Metrics  *observe.Metrics
}

// Tool is the contract every tool implements for the MCP server shell.
type Tool interface {
	// Name is the MCP tool name.
	Name() string

	// Description is the host-facing tool description.
	Description() string

	// InputSchema is the tool's JSON schema, assembled from its field map
	// plus the common fields.
	InputSchema() *jsonschema.Schema

	// Category groups the tool by the model profile it benefits from.
	Category() registry.ToolCategory

	// RequiresModel reports whether the tool makes provider calls. Tools
	// that return false bypass model resolution entirely.
	RequiresModel() bool

	// DefaultTemperature is used when the caller omits temperature.
	DefaultTemperature() float64

	// Execute runs the tool against raw request arguments.
	Execute(ctx context.Context, args map[string]any) (*Envelope, error)
}

// Default temperatures by tool character.
const (
	TemperatureAnalytical = 0.2
	TemperatureBalanced   = 0.5
	TemperatureCreative   = 0.7
)

// Request holds the common fields shared by every tool request.
type Request struct {
	Prompt         string   `json:"prompt"`
	Model          string   `json:"model"`
	Temperature    *float64 `json:"temperature"`
	ThinkingMode   string   `json:"thinking_mode"`
	UseWebsearch   bool     `json:"use_websearch"`
	ContinuationID string   `json:"continuation_id"`
	Images         []string `json:"images"`
	Files          []string `json:"files"`
}

// DecodeRequest maps raw arguments onto a request struct via JSON
// round-tripping, so tool structs declare their shapes with ordinary tags.
func DecodeRequest(args map[string]any, into any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("tools: encoding arguments: %w", err)
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("tools: decoding arguments: %w", err)
	}
	return nil
}

// CommonFields returns the schema for the fields every tool accepts. The
// returned map is fresh per call so tools may extend it.
func CommonFields() map[string]*jsonschema.Schema {
	return map[string]*jsonschema.Schema{
		"model": {
			Type: "string",
			Description: "Model to use, by canonical name or alias. " +
				"Omit to use the server default.",
		},
		"temperature": {
			Type:        "number",
			Description: "Sampling temperature. Out-of-range values are corrected with a warning.",
		},
		"thinking_mode": {
			Type:        "string",
			Enum:        []any{"minimal", "low", "medium", "high", "max"},
			Description: "Extended-reasoning budget for models that support it.",
		},
		"use_websearch": {
			Type:        "boolean",
			Description: "Encourage the model to suggest web searches for current information.",
		},
		"continuation_id": {
			Type:        "string",
			Description: "Thread ID from a previous response to continue that conversation.",
		},
		"images": {
			Type:        "array",
			Items:       &jsonschema.Schema{Type: "string"},
			Description: "Absolute image paths or data URLs for visual context.",
		},
		"files": {
			Type:        "array",
			Items:       &jsonschema.Schema{Type: "string"},
			Description: "Absolute file paths to embed as context.",
		},
	}
}

// BuildSchema assembles an object schema from tool-specific fields merged
// over the common field map. Tool fields win on collision.
func BuildSchema(specific map[string]*jsonschema.Schema, required []string) *jsonschema.Schema {
	props := CommonFields()
	for name, s := range specific {
		props[name] = s
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

// pathField reports whether a request field carries filesystem paths that
// must be absolute.
func pathField(name string) bool {
	return name == "images" || name == "files_checked" || strings.HasSuffix(name, "files")
}

// ValidateAbsolutePaths walks the raw arguments recursively and returns an
// error naming the first non-absolute entry in any path-carrying field.
// Data URLs in image fields are exempt.
func ValidateAbsolutePaths(args map[string]any) error {
	for name, value := range args {
		if err := checkPathValue(name, value, pathField(name)); err != nil {
			return err
		}
	}
	return nil
}

func checkPathValue(field string, value any, isPathField bool) error {
	switch v := value.(type) {
	case string:
		if !isPathField {
			return nil
		}
		if strings.HasPrefix(v, "data:") {
			return nil
		}
		if !files.IsAbsolute(v) {
			return fmt.Errorf("all file paths must be absolute. Received: %s", v)
		}
	case []any:
		for _, item := range v {
			if err := checkPathValue(field, item, isPathField); err != nil {
				return err
			}
		}
	case map[string]any:
		for name, item := range v {
			if err := checkPathValue(name, item, pathField(name)); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateImages checks the image list against a model's vision limits:
// count, per-image decoded size, and vision support at all. Data URLs are
// base64-decoded for size; file paths are stat'ed.
func ValidateImages(images []string, capability llm.Capability) error {
	if len(images) == 0 {
		return nil
	}
	if !capability.SupportsImages || capability.MaxImages == 0 {
		return fmt.Errorf("model %s does not support image input", capability.Name)
	}
	if len(images) > capability.MaxImages {
		return fmt.Errorf("too many images: %d provided, model %s accepts at most %d",
			len(images), capability.Name, capability.MaxImages)
	}

	limit := int64(capability.MaxImageSizeMB * 1024 * 1024)
	if limit <= 0 {
		return nil
	}
	for _, img := range images {
		size, err := imageSize(img)
		if err != nil {
			return fmt.Errorf("unreadable image %s: %w", img, err)
		}
		if size > limit {
			return fmt.Errorf("image %s is %.1f MB, exceeding the %.1f MB limit for model %s",
				img, float64(size)/(1024*1024), capability.MaxImageSizeMB, capability.Name)
		}
	}
	return nil
}

func imageSize(img string) (int64, error) {
	if strings.HasPrefix(img, "data:") {
		_, payload, found := strings.Cut(img, ",")
		if !found {
			return 0, fmt.Errorf("malformed data URL")
		}
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return 0, fmt.Errorf("invalid base64 payload: %w", err)
		}
		return int64(len(decoded)), nil
	}
	info, err := os.Stat(img)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// ValidateTemperature resolves the effective temperature for a request:
// the caller's value corrected against the model's constraint, or the tool
// default when omitted. A correction produces a warning string.
func ValidateTemperature(requested *float64, toolDefault float64, capability llm.Capability) (float64, []string) {
	value := toolDefault
	if requested != nil {
		value = *requested
	}
	constraint := capability.Temperature
	if constraint == nil {
		return value, nil
	}
	if constraint.Validate(value) {
		return value, nil
	}
	corrected := constraint.Corrected(value)
	warning := fmt.Sprintf("temperature %g is outside the contract for %s (%s); using %g",
		value, capability.Name, constraint.Describe(), corrected)
	return corrected, []string{warning}
}

// CheckPromptSize gates oversized inline prompts. A prompt longer than the
// configured threshold must be resent as a prompt.txt file so it rides the
// file channel instead of the MCP request.
func CheckPromptSize(prompt string, limit int) *Envelope {
	if limit <= 0 {
		limit = config.DefaultMaxPromptChars
	}
	if len(prompt) <= limit {
		return nil
	}
	return &Envelope{
		Status: StatusRequiresFilePrompt,
		Content: fmt.Sprintf(
			"The prompt is %d characters, exceeding the %d character limit. "+
				"Save the prompt text to a file named prompt.txt and resend the request "+
				"with that file in the files list, using a short summary as the prompt.",
			len(prompt), limit),
		ContentType: ContentText,
		Metadata:    map[string]any{"prompt_size": len(prompt), "limit": limit},
	}
}

// AbsorbPromptFile implements the prompt.txt convention: when the file list
// carries a file named prompt.txt or prompt.md, its content replaces the
// prompt and the file is removed from the list.
func AbsorbPromptFile(prompt string, paths []string) (string, []string) {
	out := paths[:0:0]
	for _, p := range paths {
		base := strings.ToLower(p)
		if i := strings.LastIndexAny(base, `/\`); i >= 0 {
			base = base[i+1:]
		}
		if base == "prompt.txt" || base == "prompt.md" {
			content, _, err := files.Read(p, false)
			if err == nil {
				prompt = content
			}
			continue
		}
		out = append(out, p)
	}
	return prompt, out
}

// ResolveModel resolves the request's model through the registry, applying
// the server default when the caller omitted one. The "auto" sentinel is
// deliberately not special-cased: it fails resolution with a listing of the
// available models, which is the contract for tools that require a model.
func (d *Deps) ResolveModel(requested string) (llm.Provider, llm.Capability, error) {
	name := requested
	if name == "" {
		name = d.Settings.DefaultModel
	}
	if name == "" {
		name = config.DefaultModelAuto
	}
	return d.Registry.ProviderForModel(name)
}
