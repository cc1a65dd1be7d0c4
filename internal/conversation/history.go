package conversation

import (
	"fmt"
	"strings"

	"github.com/MrWong99/conclave/internal/files"
	"github.com/MrWong99/conclave/internal/tokens"
	"github.com/MrWong99/conclave/pkg/provider/llm"
)

// Budget split fractions. The remainder after history and files is headroom
// for the caller's new content. These are deliberate constants, not knobs.
const (
	historyFraction = 0.6
	fileFraction    = 0.3

	// minReservedOutput floors the response headroom regardless of how small
	// the model's window is.
	minReservedOutput = 4096
)

// Budget is the per-request token allocation for one target model.
type Budget struct {
	// Total is the context window minus reserved output headroom.
	Total int

	// History is the share available to reconstructed conversation turns.
	History int

	// Files is the share available to embedded file content.
	Files int

	// User is the share reserved for the caller's new prompt content.
	User int
}

// ReservedOutput returns the response headroom for a model: a tenth of the
// context window capped by the model's output limit, floored at 4096.
func ReservedOutput(c llm.Capability) int {
	reserved := c.ContextWindow / 10
	if c.MaxOutputTokens > 0 && c.MaxOutputTokens < reserved {
		reserved = c.MaxOutputTokens
	}
	if reserved < minReservedOutput {
		reserved = minReservedOutput
	}
	return reserved
}

// BudgetFor computes the token allocation for the given model.
func BudgetFor(c llm.Capability) Budget {
	total := c.ContextWindow - ReservedOutput(c)
	if total < 0 {
		total = 0
	}
	history := int(historyFraction * float64(total))
	file := int(fileFraction * float64(total))
	return Budget{
		Total:   total,
		History: history,
		Files:   file,
		User:    total - history - file,
	}
}

// History is the reconstructed conversation context for one thread chain.
type History struct {
	// Text is the rendered history, oldest turn first.
	Text string

	// Tokens is the estimate charged against the history budget: turn blocks
	// and manifests, excluding embedded file content.
	Tokens int

	// FileTokens is the estimate charged against the file budget by content
	// embedded inside the history.
	FileTokens int

	// EmbeddedFiles lists the paths whose content was inlined, so the file
	// preparer does not embed them again.
	EmbeddedFiles []string

	// OmittedTurns counts older turns dropped to fit the history budget.
	OmittedTurns int
}

// omittedNoteFormat is the marker for turns dropped by budget truncation.
const omittedNoteFormat = "[%d earlier turns omitted to fit the context window]\n\n"

// numberedTurn pairs a turn with its global position across the chain.
type numberedTurn struct {
	n    int
	turn Turn
}

// BuildHistory reconstructs the conversation context for threadID against the
// target model's budget.
//
// Turns are retained newest-first until the history budget is exhausted, then
// emitted oldest-first. The content of each referenced file is inlined at its
// newest occurrence and charged to the file budget; older occurrences carry a
// reference stub instead. An absent or expired thread yields a zero History.
func BuildHistory(store *Store, threadID string, capability llm.Capability) History {
	chain := store.Chain(threadID)
	if len(chain) == 0 {
		return History{}
	}

	// Global turn numbering: a thread's turns come after its parent's.
	var all []numberedTurn
	for _, t := range chain {
		for _, turn := range t.Turns() {
			all = append(all, numberedTurn{n: len(all) + 1, turn: turn})
		}
	}
	if len(all) == 0 {
		return History{}
	}

	budget := BudgetFor(capability)

	header := fmt.Sprintf("=== CONVERSATION HISTORY (thread %s) ===\n", chain[len(chain)-1].ID)
	footer := "=== END CONVERSATION HISTORY ===\n"

	h := History{Tokens: tokens.Estimate(header) + tokens.Estimate(footer)}
	// The omission note renders inside the block, so its worst-case cost is
	// reserved before any turn is retained.
	noteReserve := tokens.Estimate(fmt.Sprintf(omittedNoteFormat, len(all)))
	historyLeft := budget.History - h.Tokens - noteReserve
	fileLeft := budget.Files

	embedded := make(map[string]bool)
	var blocks []string

	// Newest → oldest retention.
	for i := len(all) - 1; i >= 0; i-- {
		block, fileCost, newFiles := renderTurn(all[i], embedded, fileLeft)
		cost := tokens.Estimate(block) - fileCost
		if cost > historyLeft {
			h.OmittedTurns = i + 1
			break
		}
		blocks = append(blocks, block)
		historyLeft -= cost
		fileLeft -= fileCost
		h.Tokens += cost
		h.FileTokens += fileCost
		for _, path := range newFiles {
			embedded[path] = true
		}
	}

	if len(blocks) == 0 {
		return History{}
	}

	var b strings.Builder
	b.WriteString(header)
	if h.OmittedTurns > 0 {
		note := fmt.Sprintf(omittedNoteFormat, h.OmittedTurns)
		b.WriteString(note)
		h.Tokens += tokens.Estimate(note)
	}
	// Blocks were collected newest-first; emit oldest-first.
	for i := len(blocks) - 1; i >= 0; i-- {
		b.WriteString(blocks[i])
	}
	b.WriteString(footer)

	h.Text = b.String()
	for path := range embedded {
		h.EmbeddedFiles = append(h.EmbeddedFiles, path)
	}
	return h
}

// renderTurn formats one turn block and embeds file content still inside the
// file budget. embedded tracks paths already inlined by newer turns; newFiles
// lists paths embedded by this block, committed by the caller only when the
// block is retained. fileCost is the token charge for the embedded content.
func renderTurn(nt numberedTurn, embedded map[string]bool, fileBudget int) (block string, fileCost int, newFiles []string) {
	turn := nt.turn

	var b strings.Builder
	fmt.Fprintf(&b, "--- Turn %d (%s) ---\n", nt.n, turnLabel(turn))
	b.WriteString(turn.Content)
	if !strings.HasSuffix(turn.Content, "\n") {
		b.WriteByte('\n')
	}

	for _, path := range turn.Files {
		if embedded[path] {
			// Content already inlined at a newer occurrence.
			fmt.Fprintf(&b, "(file %s referenced earlier)\n", path)
			continue
		}
		content, cost, err := files.Read(path, true)
		if err != nil || cost > fileBudget-fileCost {
			fmt.Fprintf(&b, "(file %s not embedded)\n", path)
			continue
		}
		newFiles = append(newFiles, path)
		fmt.Fprintf(&b, "=== FILE: %s ===\n%s\n=== END FILE ===\n", path, content)
		fileCost += cost
	}

	if len(turn.Images) > 0 {
		fmt.Fprintf(&b, "[images: %s]\n", strings.Join(turn.Images, ", "))
	}
	b.WriteByte('\n')
	return b.String(), fileCost, newFiles
}

// turnLabel renders the attribution part of a turn header.
func turnLabel(t Turn) string {
	switch {
	case t.Role == RoleAssistant && t.ModelName != "":
		return fmt.Sprintf("Agent using %s via %s/%s", t.ToolName, t.ProviderKind, t.ModelName)
	case t.ToolName != "":
		return fmt.Sprintf("%s using %s", t.Role, t.ToolName)
	default:
		return string(t.Role)
	}
}
