package llm

// ThinkingMode selects how much of a model's reasoning-token budget a request
// may spend. Modes map to fractions of the model's MaxThinkingTokens.
type ThinkingMode string

const (
	ThinkingMinimal ThinkingMode = "minimal"
	ThinkingLow     ThinkingMode = "low"
	ThinkingMedium  ThinkingMode = "medium"
	ThinkingHigh    ThinkingMode = "high"
	ThinkingMax     ThinkingMode = "max"
)

// IsValid reports whether m is a recognised thinking mode. The empty string
// is not valid; it means "no explicit thinking configuration".
func (m ThinkingMode) IsValid() bool {
	switch m {
	case ThinkingMinimal, ThinkingLow, ThinkingMedium, ThinkingHigh, ThinkingMax:
		return true
	}
	return false
}

// BudgetFraction returns the fraction of a model's maximum thinking-token
// budget this mode is allowed to spend. Unknown modes return 0.
func (m ThinkingMode) BudgetFraction() float64 {
	switch m {
	case ThinkingMinimal:
		return 0.005
	case ThinkingLow:
		return 0.08
	case ThinkingMedium:
		return 0.33
	case ThinkingHigh:
		return 0.67
	case ThinkingMax:
		return 1.0
	}
	return 0
}

// ThinkingModeNames lists the valid modes in ascending budget order, for
// schema enums and error messages.
var ThinkingModeNames = []string{"minimal", "low", "medium", "high", "max"}
