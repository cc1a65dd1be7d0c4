package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/MrWong99/conclave/internal/prompts"
	"github.com/MrWong99/conclave/internal/registry"
)

// chatFooter nudges the calling agent to treat the reply as input to its own
// reasoning rather than a verdict.
const chatFooter = "\n\n---\n\nAGENT'S TURN: Evaluate this perspective alongside your own analysis, " +
	"and continue the conversation with continuation_id if more discussion would help."

// Chat is the general collaborative-thinking tool: one prompt, one model
// reply, optional file and image context, optional continuation threading.
type Chat struct {
	deps *Deps
}

// NewChat builds the chat tool.
func NewChat(deps *Deps) *Chat {
	return &Chat{deps: deps}
}

func (c *Chat) Name() string { return "chat" }

func (c *Chat) Description() string {
	return "General chat and collaborative thinking. Use for brainstorming, getting " +
		"second opinions, validating approaches, and exploring alternatives with " +
		"another model. Supports file context, images, and conversation continuation."
}

func (c *Chat) InputSchema() *jsonschema.Schema {
	return BuildSchema(map[string]*jsonschema.Schema{
		"prompt": {
			Type:        "string",
			Description: "Your question or idea, with as much context as is relevant.",
		},
	}, []string{"prompt"})
}

func (c *Chat) Category() registry.ToolCategory { return registry.CategoryFastResponse }
func (c *Chat) RequiresModel() bool             { return true }
func (c *Chat) DefaultTemperature() float64     { return TemperatureBalanced }

func (c *Chat) Execute(ctx context.Context, args map[string]any) (*Envelope, error) {
	if err := ValidateAbsolutePaths(args); err != nil {
		return ErrorEnvelope(err.Error()), nil
	}
	var req Request
	if err := DecodeRequest(args, &req); err != nil {
		return ErrorEnvelope(err.Error()), nil
	}
	if req.Prompt == "" {
		return ErrorEnvelope("missing required field: prompt"), nil
	}
	return c.deps.RunSimple(ctx, c, prompts.Chat, req, func(content string) string {
		return content + chatFooter
	})
}

var _ Tool = (*Chat)(nil)
