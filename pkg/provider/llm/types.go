package llm

import (
	"fmt"
	"slices"
)

// TemperatureConstraint describes what sampling temperatures a model accepts.
// The tool layer validates caller-supplied values against it and corrects
// out-of-contract values before the request reaches the provider.
type TemperatureConstraint interface {
	// Validate reports whether v is acceptable as-is.
	Validate(v float64) bool

	// Corrected maps an unacceptable v to the nearest acceptable value.
	Corrected(v float64) float64

	// Describe renders the constraint for warning messages.
	Describe() string
}

// FixedTemperature is a constraint for models that only accept one value
// (reasoning models typically pin temperature to 1).
type FixedTemperature float64

func (f FixedTemperature) Validate(v float64) bool    { return v == float64(f) }
func (f FixedTemperature) Corrected(float64) float64  { return float64(f) }
func (f FixedTemperature) Describe() string           { return fmt.Sprintf("fixed at %g", float64(f)) }

// TemperatureRange accepts any value in [Min, Max].
type TemperatureRange struct {
	Min float64
	Max float64
}

func (r TemperatureRange) Validate(v float64) bool { return v >= r.Min && v <= r.Max }

func (r TemperatureRange) Corrected(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

func (r TemperatureRange) Describe() string {
	return fmt.Sprintf("range [%g, %g]", r.Min, r.Max)
}

// DiscreteTemperature accepts only the listed values, corrected to the
// nearest one.
type DiscreteTemperature []float64

func (d DiscreteTemperature) Validate(v float64) bool { return slices.Contains(d, v) }

func (d DiscreteTemperature) Corrected(v float64) float64 {
	if len(d) == 0 {
		return v
	}
	best := d[0]
	for _, allowed := range d[1:] {
		if abs(allowed-v) < abs(best-v) {
			best = allowed
		}
	}
	return best
}

func (d DiscreteTemperature) Describe() string {
	return fmt.Sprintf("one of %v", []float64(d))
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// Capability is the immutable capability record for one model. Instances are
// registered in a [Catalog] at process start and never mutated afterwards.
type Capability struct {
	// Name is the canonical model name sent to the provider API.
	Name string

	// FriendlyName is the human-facing label used in logs and responses.
	FriendlyName string

	// Aliases lists shorthand names that resolve to Name (case-insensitive).
	Aliases []string

	// Kind is the provider family that serves this model.
	Kind ProviderKind

	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one call.
	MaxOutputTokens int

	// SupportsThinking indicates the model accepts an extended-reasoning
	// budget or effort level.
	SupportsThinking bool

	// MaxThinkingTokens is the model's reasoning-token ceiling. Zero for
	// models whose thinking support is an effort level rather than a budget.
	MaxThinkingTokens int

	// SupportsReasoningEffort indicates the API accepts a reasoning_effort
	// parameter. Some reasoning models think unconditionally and reject it.
	SupportsReasoningEffort bool

	// SupportsTemperature indicates caller-supplied temperatures are honoured.
	// When false, Temperature describes the enforced value.
	SupportsTemperature bool

	// Temperature is the model's temperature contract. Never nil for a
	// registered capability.
	Temperature TemperatureConstraint

	// SupportsImages indicates vision input support.
	SupportsImages bool

	// MaxImages caps the number of images per request. Zero when images are
	// unsupported.
	MaxImages int

	// MaxImageSizeMB is the per-image decoded size limit in megabytes.
	MaxImageSizeMB float64

	// SupportsJSONMode indicates native structured-output support.
	SupportsJSONMode bool

	// SupportsSystemPrompt indicates a dedicated system-prompt channel.
	// Providers without one prepend the system prompt to the user content.
	SupportsSystemPrompt bool

	// Description is a one-line summary for model listings.
	Description string
}

// ThinkingBudget returns the token budget mode may spend on this model:
// the mode's fraction of MaxThinkingTokens, rounded down. Models without a
// token-denominated budget return 0.
func (c Capability) ThinkingBudget(mode ThinkingMode) int {
	if !c.SupportsThinking || c.MaxThinkingTokens <= 0 {
		return 0
	}
	return int(mode.BudgetFraction() * float64(c.MaxThinkingTokens))
}
