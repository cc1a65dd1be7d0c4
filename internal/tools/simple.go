package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrWong99/conclave/internal/conversation"
	"github.com/MrWong99/conclave/pkg/provider/llm"
)

// websearchHint is appended to the system prompt when the caller enables
// use_websearch. The server cannot browse; the hint asks the model to name
// searches the agent should run instead.
const websearchHint = `

When current documentation, version-specific behavior, or recent changes would
materially improve the answer, explicitly recommend the web searches the agent
should run, instead of relying on potentially stale knowledge.`

// RunSimple executes the single-call tool flow: resolve the model, validate
// the request, assemble system prompt + history + files + user content, make
// one provider call, and thread the exchange when the caller continued a
// conversation.
//
// format, when non-nil, post-processes the model's reply for the envelope.
func (d *Deps) RunSimple(ctx context.Context, tool Tool, systemPrompt string, req Request, format func(string) string) (*Envelope, error) {
	provider, capability, err := d.ResolveModel(req.Model)
	if err != nil {
		return ErrorEnvelope(err.Error()), nil
	}

	prompt, paths := AbsorbPromptFile(req.Prompt, req.Files)
	if gate := CheckPromptSize(prompt, 0); gate != nil {
		return gate, nil
	}
	if err := ValidateImages(req.Images, capability); err != nil {
		return ErrorEnvelope(err.Error()), nil
	}
	temperature, warnings := ValidateTemperature(req.Temperature, tool.DefaultTemperature(), capability)

	// Continuation: reuse the live thread, or start fresh when it expired.
	threadID := req.ContinuationID
	var expiredContinuation bool
	if threadID != "" {
		if _, ok := d.Store.Get(threadID); !ok {
			threadID = d.Store.Create(tool.Name(), map[string]any{"prompt": prompt}, "")
			expiredContinuation = true
		}
	}

	budget := conversation.BudgetFor(capability)
	var history conversation.History
	if threadID != "" && !expiredContinuation {
		history = conversation.BuildHistory(d.Store, threadID, capability)
	}

	fileBlock, included, err := conversation.PrepareFiles(
		d.Store, paths, threadID, "CONTEXT", budget.Files-history.FileTokens)
	if err != nil {
		return ErrorEnvelope(err.Error()), nil
	}

	var b strings.Builder
	if history.Text != "" {
		b.WriteString(history.Text)
		b.WriteByte('\n')
	}
	if fileBlock != "" {
		b.WriteString(fileBlock)
		b.WriteByte('\n')
	}
	b.WriteString(prompt)

	resp, err := d.Generate(ctx, provider, llm.GenerationRequest{
		Prompt:       b.String(),
		Model:        capability.Name,
		SystemPrompt: d.FinishSystemPrompt(systemPrompt, req.UseWebsearch),
		Temperature:  temperature,
		ThinkingMode: thinkingMode(req.ThinkingMode, capability, &warnings),
		Images:       req.Images,
	})
	if err != nil {
		return ErrorEnvelope(fmt.Sprintf("%s failed: %v", tool.Name(), err)), nil
	}

	content := resp.Content
	if format != nil {
		content = format(content)
	}

	env := &Envelope{
		Status:      StatusSuccess,
		Content:     content,
		ContentType: ContentMarkdown,
		Metadata: map[string]any{
			"tool_name":     tool.Name(),
			"model_name":    resp.ModelName,
			"provider_kind": string(resp.Kind),
		},
	}
	for _, w := range warnings {
		env.AddWarning(w)
	}
	if expiredContinuation {
		env.AddWarning("continuation thread expired or unknown; a new conversation was started")
	}

	if threadID != "" {
		d.Store.AddTurn(threadID, conversation.Turn{
			Role:     conversation.RoleUser,
			Content:  prompt,
			Files:    included,
			Images:   req.Images,
			ToolName: tool.Name(),
		})
		d.Store.AddTurn(threadID, conversation.Turn{
			Role:         conversation.RoleAssistant,
			Content:      resp.Content,
			ToolName:     tool.Name(),
			ProviderKind: string(resp.Kind),
			ModelName:    resp.ModelName,
		})
		env.Status = StatusContinuationAvailable
		env.ContinuationID = threadID
		env.Metadata["remaining_turns"] = d.Store.RemainingTurns(threadID)
	}
	return env, nil
}

// Generate routes one provider call through the resilience guard and records
// provider metrics.
func (d *Deps) Generate(ctx context.Context, provider llm.Provider, req llm.GenerationRequest) (*llm.ModelResponse, error) {
	start := time.Now()
	resp, err := d.Guard.Generate(ctx, provider, req)
	elapsed := time.Since(start)

	if d.Metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
			d.Metrics.RecordProviderError(ctx, string(provider.Kind()), req.Model)
		}
		d.Metrics.RecordProviderRequest(ctx, string(provider.Kind()), req.Model, status, elapsed.Seconds())
		if resp != nil {
			d.Metrics.RecordProviderTokens(ctx, string(provider.Kind()), req.Model,
				resp.Usage.InputTokens, resp.Usage.OutputTokens)
		}
	}
	if err != nil {
		slog.Warn("provider call failed",
			"provider", string(provider.Kind()), "model", req.Model,
			"duration", elapsed, "err", err)
		return nil, err
	}
	slog.Debug("provider call completed",
		"provider", string(provider.Kind()), "model", req.Model, "duration", elapsed)
	return resp, nil
}

// FinishSystemPrompt appends the locale instruction and the websearch hint
// to a tool's base system prompt.
func (d *Deps) FinishSystemPrompt(base string, useWebsearch bool) string {
	var b strings.Builder
	b.WriteString(base)
	if d.Settings.Locale != "" {
		fmt.Fprintf(&b, "\n\nAlways respond in %s.", d.Settings.Locale)
	}
	if useWebsearch {
		b.WriteString(websearchHint)
	}
	return b.String()
}

// thinkingMode validates the requested mode against the model, dropping it
// with a warning when unsupported.
func thinkingMode(requested string, capability llm.Capability, warnings *[]string) llm.ThinkingMode {
	if requested == "" {
		return ""
	}
	mode := llm.ThinkingMode(requested)
	if !mode.IsValid() {
		*warnings = append(*warnings,
			fmt.Sprintf("unknown thinking_mode %q ignored (valid: %s)",
				requested, strings.Join(llm.ThinkingModeNames, ", ")))
		return ""
	}
	if !capability.SupportsThinking {
		*warnings = append(*warnings,
			fmt.Sprintf("model %s does not support thinking modes; %q ignored", capability.Name, requested))
		return ""
	}
	return mode
}
