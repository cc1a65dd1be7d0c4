package tools

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/MrWong99/conclave/internal/prompts"
	"github.com/MrWong99/conclave/internal/registry"
)

// Challenge wraps a statement in critical-reassessment instructions and hands
// it straight back to the calling agent. No provider call is made: the point
// is to interrupt reflexive agreement, not to get a second model's answer.
type Challenge struct{}

// NewChallenge builds the challenge tool.
func NewChallenge() *Challenge {
	return &Challenge{}
}

func (c *Challenge) Name() string { return "challenge" }

func (c *Challenge) Description() string {
	return "Prevents reflexive agreement. Wraps a statement in critical-reassessment " +
		"instructions so it is analyzed on its merits instead of accepted. Use when " +
		"a user challenges or contradicts a previous conclusion."
}

func (c *Challenge) InputSchema() *jsonschema.Schema {
	return BuildSchema(map[string]*jsonschema.Schema{
		"prompt": {
			Type:        "string",
			Description: "The statement or question to reassess critically.",
		},
	}, []string{"prompt"})
}

func (c *Challenge) Category() registry.ToolCategory { return registry.CategoryFastResponse }
func (c *Challenge) RequiresModel() bool             { return false }
func (c *Challenge) DefaultTemperature() float64     { return TemperatureCreative }

func (c *Challenge) Execute(_ context.Context, args map[string]any) (*Envelope, error) {
	var req Request
	if err := DecodeRequest(args, &req); err != nil {
		return ErrorEnvelope(err.Error()), nil
	}
	if req.Prompt == "" {
		return ErrorEnvelope("missing required field: prompt"), nil
	}
	return &Envelope{
		Status:      StatusSuccess,
		Content:     fmt.Sprintf(prompts.Challenge, req.Prompt),
		ContentType: ContentText,
		Metadata: map[string]any{
			"tool_name":       c.Name(),
			"original_prompt": req.Prompt,
		},
	}, nil
}

var _ Tool = (*Challenge)(nil)
