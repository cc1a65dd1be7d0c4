package workflow

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/MrWong99/conclave/internal/registry"
	"github.com/MrWong99/conclave/internal/tools"
)

// Definition describes one workflow tool as data. The shared [Engine]
// interprets it; nothing here executes on its own.
type Definition struct {
	// Name is the MCP tool name.
	Name string

	// Description is the host-facing tool description.
	Description string

	// Category groups the tool by preferred model profile.
	Category registry.ToolCategory

	// DefaultTemperature applies to the expert call when the caller omits
	// temperature.
	DefaultTemperature float64

	// SystemPrompt steers the expert-analysis call. Unused when Expert is
	// false.
	SystemPrompt string

	// ExpertInstruction is appended to the expert context block.
	ExpertInstruction string

	// PauseStatus is emitted between steps (pause_for_<tool>).
	PauseStatus string

	// CompletionKey names the final-packet field (complete_<tool>) and
	// doubles as the completion status unless FinalStatus overrides it.
	CompletionKey string

	// FinalStatus overrides the completion status (planner's
	// planning_success, docgen's documentation_analysis_complete).
	FinalStatus string

	// Expert enables the expert-analysis call on the final step.
	Expert bool

	// SkipConfidence, when non-empty, names the confidence level that
	// bypasses the expert call on the final step.
	SkipConfidence string

	// CertainStatus, when non-empty, replaces the completion status on a
	// confidence skip (debug's certain_confidence_proceed_with_fix).
	CertainStatus string

	// Fields are tool-specific schema properties merged over the workflow
	// step fields.
	Fields map[string]*jsonschema.Schema

	// RequiredFields extends the baseline required list (step, step_number,
	// total_steps, next_step_required).
	RequiredFields []string

	// RequiredActions produces the between-step investigation guidance.
	RequiredActions func(stepNumber, totalSteps int, confidence string) []string

	// CompletionGate can veto completion (docgen counter matching). The
	// message becomes the forced-continuation instruction.
	CompletionGate func(req *StepRequest) (allowed bool, message string)

	// PreStep can intercept a step before any state is recorded (tracer's
	// ask mode). A non-nil envelope is returned to the caller as-is.
	PreStep func(req *StepRequest) *tools.Envelope
}

func (d *Definition) finalStatus() string {
	if d.FinalStatus != "" {
		return d.FinalStatus
	}
	return d.CompletionKey
}

func (d *Definition) skipsOnConfidence(confidence string) bool {
	return d.SkipConfidence != "" && confidence != "" && confidence == d.SkipConfidence
}

func (d *Definition) completionGuidance() string {
	return fmt.Sprintf("The %s workflow is complete. Present the consolidated findings "+
		"to the user and proceed with the agreed actions.", d.Name)
}

// stepFields is the schema every workflow tool shares.
func stepFields() map[string]*jsonschema.Schema {
	return map[string]*jsonschema.Schema{
		"step": {
			Type:        "string",
			Description: "What was investigated or decided in this step.",
		},
		"step_number": {
			Type:        "integer",
			Description: "1-based index of this step.",
		},
		"total_steps": {
			Type:        "integer",
			Description: "Current estimate of the steps needed; adjust as understanding grows.",
		},
		"next_step_required": {
			Type:        "boolean",
			Description: "True while the investigation continues; false on the final step.",
		},
		"findings": {
			Type:        "string",
			Description: "Concrete discoveries from this step: evidence, behavior, ruled-out theories.",
		},
		"files_checked": {
			Type:        "array",
			Items:       &jsonschema.Schema{Type: "string"},
			Description: "Absolute paths of all files examined, including dead ends.",
		},
		"relevant_files": {
			Type:        "array",
			Items:       &jsonschema.Schema{Type: "string"},
			Description: "Absolute paths of the files that matter for the outcome.",
		},
		"relevant_context": {
			Type:        "array",
			Items:       &jsonschema.Schema{Type: "string"},
			Description: "Key symbols: ClassName.methodName or functionName.",
		},
		"issues_found": {
			Type:        "array",
			Items:       &jsonschema.Schema{Type: "object"},
			Description: "Issues recorded so far, each with a severity field.",
		},
		"confidence": {
			Type: "string",
			Enum: []any{"exploring", "low", "medium", "high", "very_high", "almost_certain", "certain", "complete"},
			Description: "Confidence in the current conclusion. Reserve certain/complete for " +
				"cases needing no further validation.",
		},
		"hypothesis": {
			Type:        "string",
			Description: "Current working theory, grounded in the evidence gathered.",
		},
		"backtrack_from_step": {
			Type:        "integer",
			Description: "When a path proved wrong, the step number to discard from (inclusive).",
		},
		"use_assistant_model": {
			Type:        "boolean",
			Description: "Set false to skip the expert-analysis call and rely on the investigation alone.",
		},
	}
}

// baselineRequired is the required list every workflow tool starts from.
var baselineRequired = []string{"step", "step_number", "total_steps", "next_step_required"}

// workflowTool adapts a Definition plus the shared Engine to tools.Tool.
type workflowTool struct {
	def    *Definition
	engine *Engine
}

// NewTool binds def to the engine as a registrable tool.
func NewTool(def *Definition, engine *Engine) tools.Tool {
	return &workflowTool{def: def, engine: engine}
}

func (w *workflowTool) Name() string                    { return w.def.Name }
func (w *workflowTool) Description() string             { return w.def.Description }
func (w *workflowTool) Category() registry.ToolCategory { return w.def.Category }
func (w *workflowTool) RequiresModel() bool             { return w.def.Expert }
func (w *workflowTool) DefaultTemperature() float64     { return w.def.DefaultTemperature }

func (w *workflowTool) InputSchema() *jsonschema.Schema {
	fields := stepFields()
	for name, s := range w.def.Fields {
		fields[name] = s
	}
	required := append(append([]string{}, baselineRequired...), w.def.RequiredFields...)
	return tools.BuildSchema(fields, required)
}

func (w *workflowTool) Execute(ctx context.Context, args map[string]any) (*tools.Envelope, error) {
	return w.engine.Execute(ctx, w.def, args)
}

var _ tools.Tool = (*workflowTool)(nil)
