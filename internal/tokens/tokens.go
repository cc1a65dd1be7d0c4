// Package tokens provides cheap character-based token estimation.
//
// Estimates are used exclusively for context-window budgeting decisions,
// never for billing. English text averages roughly 4 characters per token
// across common LLM tokenizers; this avoids pulling in a tokenizer
// dependency on the hot path.
package tokens

// charsPerToken is the heuristic ratio used for token estimation.
const charsPerToken = 4

// Estimate returns a rough token count for s using the
// 1-token-per-4-characters heuristic, rounding up. It is O(len(s)) and
// performs no allocations.
func Estimate(s string) int {
	return EstimateBytes(len(s))
}

// EstimateBytes returns the estimated token count for n bytes of text.
// Useful for pre-read budgeting from a file's size without reading it.
func EstimateBytes(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + charsPerToken - 1) / charsPerToken
}
