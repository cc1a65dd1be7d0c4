package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/conclave/internal/conversation"
	"github.com/MrWong99/conclave/internal/prompts"
	"github.com/MrWong99/conclave/internal/registry"
	"github.com/MrWong99/conclave/pkg/provider/llm"
)

// maxStanceDuplicates caps how many consensus entries may share the same
// (model, stance) pair. Extras are skipped, not errors.
const maxStanceDuplicates = 2

// ConsensusEntry is one model/stance participant.
type ConsensusEntry struct {
	Model        string `json:"model"`
	Stance       string `json:"stance"`
	StancePrompt string `json:"stance_prompt"`
}

// ConsensusRequest is the consensus tool's input shape.
type ConsensusRequest struct {
	Request
	Models     []ConsensusEntry `json:"models"`
	FocusAreas []string         `json:"focus_areas"`
}

// Consensus fans a proposal out to multiple models with per-model stance
// steering and aggregates their verdicts. Responses preserve the caller's
// model order; one success is enough for a consensus result.
type Consensus struct {
	deps *Deps
}

// NewConsensus builds the consensus tool. It panics when the stance system
// prompt does not carry exactly one stance placeholder: that is an authoring
// error best caught at wiring time.
func NewConsensus(deps *Deps) *Consensus {
	if n := strings.Count(prompts.Consensus, prompts.StancePlaceholder); n != 1 {
		panic(fmt.Sprintf("consensus system prompt must contain exactly one %s placeholder, found %d",
			prompts.StancePlaceholder, n))
	}
	return &Consensus{deps: deps}
}

func (c *Consensus) Name() string { return "consensus" }

func (c *Consensus) Description() string {
	return "Gathers perspectives from multiple models on a proposal, optionally " +
		"steering each toward a supportive, critical, or neutral stance, and " +
		"returns all verdicts for synthesis."
}

func (c *Consensus) InputSchema() *jsonschema.Schema {
	return BuildSchema(map[string]*jsonschema.Schema{
		"prompt": {
			Type:        "string",
			Description: "The proposal or question to gather consensus on.",
		},
		"models": {
			Type:        "array",
			Description: "Participants: model name plus optional stance (for/against/neutral).",
			Items: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"model":         {Type: "string"},
					"stance":        {Type: "string", Enum: []any{"for", "support", "favor", "against", "oppose", "critical", "neutral"}},
					"stance_prompt": {Type: "string", Description: "Custom stance instructions overriding the default for this stance."},
				},
				Required: []string{"model"},
			},
		},
		"focus_areas": {
			Type:        "array",
			Items:       &jsonschema.Schema{Type: "string"},
			Description: "Aspects each participant should weigh most heavily.",
		},
	}, []string{"prompt", "models"})
}

func (c *Consensus) Category() registry.ToolCategory { return registry.CategoryExtendedReasoning }
func (c *Consensus) RequiresModel() bool             { return true }
func (c *Consensus) DefaultTemperature() float64     { return TemperatureCreative }

// consensusResult is one participant's outcome, in input order.
type consensusResult struct {
	entry    ConsensusEntry
	response *llm.ModelResponse
	err      error
}

func (c *Consensus) Execute(ctx context.Context, args map[string]any) (*Envelope, error) {
	if err := ValidateAbsolutePaths(args); err != nil {
		return ErrorEnvelope(err.Error()), nil
	}
	var req ConsensusRequest
	if err := DecodeRequest(args, &req); err != nil {
		return ErrorEnvelope(err.Error()), nil
	}
	if req.Prompt == "" {
		return ErrorEnvelope("missing required field: prompt"), nil
	}
	if len(req.Models) == 0 {
		return ErrorEnvelope("missing required field: models"), nil
	}

	prompt, paths := AbsorbPromptFile(req.Prompt, req.Files)
	if gate := CheckPromptSize(prompt, 0); gate != nil {
		return gate, nil
	}

	// Duplicate (model, stance) cap; skipped entries are reported, not fatal.
	var entries []ConsensusEntry
	var skipped []string
	seen := make(map[string]int)
	for _, entry := range req.Models {
		entry.Stance = NormalizeStance(entry.Stance)
		key := entry.Model + ":" + entry.Stance
		if seen[key] >= maxStanceDuplicates {
			skipped = append(skipped, key)
			continue
		}
		seen[key]++
		entries = append(entries, entry)
	}

	base, err := c.basePrompt(prompt, paths, req)
	if err != nil {
		return ErrorEnvelope(err.Error()), nil
	}

	// Order-preserving fan-out: each entry writes its own results slot, and
	// individual failures never cancel the siblings.
	results := make([]consensusResult, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(entries))
	for i, entry := range entries {
		results[i].entry = entry
		g.Go(func() error {
			results[i].response, results[i].err = c.consult(gctx, entry, base, req)
			return nil
		})
	}
	_ = g.Wait()

	return c.assemble(results, skipped, req), nil
}

// basePrompt builds the shared prompt every participant receives.
func (c *Consensus) basePrompt(prompt string, paths []string, req ConsensusRequest) (string, error) {
	var b strings.Builder

	if req.ContinuationID != "" {
		if _, capability, err := c.deps.ResolveModel(req.Models[0].Model); err == nil {
			if h := conversation.BuildHistory(c.deps.Store, req.ContinuationID, capability); h.Text != "" {
				b.WriteString(h.Text)
				b.WriteByte('\n')
			}
		}
	}
	if len(paths) > 0 {
		// A conservative shared budget: participants have differing windows,
		// so files are prepared once against the smallest plausible one.
		block, _, err := conversation.PrepareFiles(c.deps.Store, paths, req.ContinuationID, "CONTEXT", 24_000)
		if err != nil {
			return "", err
		}
		b.WriteString(block)
		b.WriteByte('\n')
	}
	if len(req.FocusAreas) > 0 {
		fmt.Fprintf(&b, "Weigh these aspects most heavily: %s.\n\n", strings.Join(req.FocusAreas, ", "))
	}
	b.WriteString(prompt)
	return b.String(), nil
}

// consult runs one participant's provider call with its stance-injected
// system prompt.
func (c *Consensus) consult(ctx context.Context, entry ConsensusEntry, base string, req ConsensusRequest) (*llm.ModelResponse, error) {
	provider, capability, err := c.deps.ResolveModel(entry.Model)
	if err != nil {
		return nil, err
	}

	stanceText := entry.StancePrompt
	if stanceText == "" {
		stanceText = defaultStancePrompt(entry.Stance)
	}
	system := strings.Replace(prompts.Consensus, prompts.StancePlaceholder, stanceText, 1)

	temperature, _ := ValidateTemperature(req.Temperature, TemperatureCreative, capability)
	return c.deps.Generate(ctx, provider, llm.GenerationRequest{
		Prompt:       base,
		Model:        capability.Name,
		SystemPrompt: c.deps.FinishSystemPrompt(system, req.UseWebsearch),
		Temperature:  temperature,
		ThinkingMode: llm.ThinkingMode(req.ThinkingMode),
		Images:       req.Images,
	})
}

// assemble folds per-participant outcomes into the consensus envelope.
func (c *Consensus) assemble(results []consensusResult, skipped []string, req ConsensusRequest) *Envelope {
	var used []string
	var errored []map[string]any
	var responses []map[string]any

	for _, r := range results {
		key := r.entry.Model + ":" + r.entry.Stance
		if r.err != nil {
			errored = append(errored, map[string]any{
				"model":  r.entry.Model,
				"stance": r.entry.Stance,
				"error":  r.err.Error(),
			})
			continue
		}
		used = append(used, key)
		responses = append(responses, map[string]any{
			"model":    r.response.ModelName,
			"stance":   r.entry.Stance,
			"verdict":  r.response.Content,
			"provider": string(r.response.Kind),
		})
	}

	if len(responses) == 0 {
		env := ErrorEnvelope("all consensus participants failed")
		env.Status = StatusConsensusFailed
		env.Extra = map[string]any{
			"models_skipped": skipped,
			"models_errored": errored,
		}
		return env
	}

	env := &Envelope{
		Status:      StatusConsensusSuccess,
		ContentType: ContentJSON,
		Metadata:    map[string]any{"tool_name": c.Name()},
		Extra: map[string]any{
			"models_used":    used,
			"models_skipped": skipped,
			"models_errored": errored,
			"responses":      responses,
			"next_steps": "Synthesize the verdicts above: identify where the models agree, " +
				"weigh the disagreements on their evidence, and present a final recommendation.",
		},
	}

	if req.ContinuationID != "" {
		if _, ok := c.deps.Store.Get(req.ContinuationID); ok {
			c.deps.Store.AddTurn(req.ContinuationID, conversation.Turn{
				Role:     conversation.RoleUser,
				Content:  req.Prompt,
				Files:    req.Files,
				Images:   req.Images,
				ToolName: c.Name(),
			})
			for _, r := range responses {
				c.deps.Store.AddTurn(req.ContinuationID, conversation.Turn{
					Role:         conversation.RoleAssistant,
					Content:      r["verdict"].(string),
					ToolName:     c.Name(),
					ProviderKind: r["provider"].(string),
					ModelName:    r["model"].(string),
				})
			}
			env.ContinuationID = req.ContinuationID
		}
	}
	return env
}

// NormalizeStance maps stance synonyms onto the canonical three.
func NormalizeStance(stance string) string {
	switch strings.ToLower(strings.TrimSpace(stance)) {
	case "for", "support", "favor":
		return "for"
	case "against", "oppose", "critical":
		return "against"
	default:
		return "neutral"
	}
}

func defaultStancePrompt(stance string) string {
	switch stance {
	case "for":
		return prompts.StanceFor
	case "against":
		return prompts.StanceAgainst
	default:
		return prompts.StanceNeutral
	}
}

var _ Tool = (*Consensus)(nil)
