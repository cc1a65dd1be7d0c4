// Package workflow drives the multi-step investigation tools: a generic
// state machine that consolidates findings across steps, enforces the
// investigate-between-calls pause, decides when to escalate to an expert
// model, and packages the final synthesis.
//
// Each workflow tool is a [Definition]: data describing its statuses, schema
// fields, required-action guidance, and completion gating. The [Engine] is
// shared by all of them and keyed by conversation thread.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/MrWong99/conclave/internal/conversation"
	"github.com/MrWong99/conclave/internal/registry"
	"github.com/MrWong99/conclave/internal/tools"
	"github.com/MrWong99/conclave/pkg/provider/llm"
)

// ExpertSkippedStatus marks an expert analysis bypassed because the agent
// reported certainty.
const ExpertSkippedStatus = "skipped_due_to_certain_confidence"

// StepRequest is one workflow step as posted by the agent.
type StepRequest struct {
	Step             string   `json:"step"`
	StepNumber       int      `json:"step_number"`
	TotalSteps       int      `json:"total_steps"`
	NextStepRequired bool     `json:"next_step_required"`
	Findings         string   `json:"findings"`
	FilesChecked     []string `json:"files_checked"`
	RelevantFiles    []string `json:"relevant_files"`
	RelevantContext  []string `json:"relevant_context"`
	IssuesFound      []map[string]any `json:"issues_found"`
	Confidence       string   `json:"confidence"`
	Hypothesis       string   `json:"hypothesis"`
	BacktrackFrom    int      `json:"backtrack_from_step"`
	Images           []string `json:"images"`
	ContinuationID   string   `json:"continuation_id"`

	Model             string   `json:"model"`
	Temperature       *float64 `json:"temperature"`
	ThinkingMode      string   `json:"thinking_mode"`
	UseWebsearch      bool     `json:"use_websearch"`
	UseAssistantModel *bool    `json:"use_assistant_model"`

	// Docgen counters.
	NumFilesDocumented   int `json:"num_files_documented"`
	TotalFilesToDocument int `json:"total_files_to_document"`

	// Tracer.
	TraceMode         string `json:"trace_mode"`
	TargetDescription string `json:"target_description"`
}

// Hypothesis is one recorded theory with its step index.
type Hypothesis struct {
	Step       int    `json:"step"`
	Confidence string `json:"confidence"`
	Hypothesis string `json:"hypothesis"`
}

// ConsolidatedFindings accumulates investigation state across steps. Path
// and symbol collections are ordered sets: first-seen order, no duplicates.
type ConsolidatedFindings struct {
	FilesChecked    []string
	RelevantFiles   []string
	RelevantContext []string
	Findings        []string
	Hypotheses      []Hypothesis
	IssuesFound     []map[string]any
	Images          []string
	Confidence      string
}

// merge folds one step into the findings.
func (f *ConsolidatedFindings) merge(req StepRequest) {
	f.FilesChecked = appendUnique(f.FilesChecked, req.FilesChecked...)
	f.RelevantFiles = appendUnique(f.RelevantFiles, req.RelevantFiles...)
	f.RelevantContext = appendUnique(f.RelevantContext, req.RelevantContext...)
	f.Images = appendUnique(f.Images, req.Images...)
	if req.Findings != "" {
		f.Findings = append(f.Findings, fmt.Sprintf("Step %d: %s", req.StepNumber, req.Findings))
	}
	if req.Hypothesis != "" {
		f.Hypotheses = append(f.Hypotheses, Hypothesis{
			Step:       req.StepNumber,
			Confidence: req.Confidence,
			Hypothesis: req.Hypothesis,
		})
	}
	f.IssuesFound = append(f.IssuesFound, req.IssuesFound...)
	if req.Confidence != "" {
		f.Confidence = req.Confidence
	}
}

func appendUnique(dst []string, items ...string) []string {
	for _, item := range items {
		found := false
		for _, existing := range dst {
			if existing == item {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, item)
		}
	}
	return dst
}

// session is the per-thread step record. Findings are always rebuilt by
// replaying steps, which makes backtracking a truncate-and-replay.
type session struct {
	steps []StepRequest
}

func (s *session) findings() ConsolidatedFindings {
	var f ConsolidatedFindings
	for _, step := range s.steps {
		f.merge(step)
	}
	return f
}

// Engine executes workflow steps for every workflow tool. Safe for
// concurrent use; per-thread state is guarded by the engine mutex.
type Engine struct {
	deps *tools.Deps

	mu       sync.Mutex
	sessions map[string]*session
}

// NewEngine creates an Engine on the shared tool infrastructure.
func NewEngine(deps *tools.Deps) *Engine {
	e := &Engine{
		deps:     deps,
		sessions: make(map[string]*session),
	}
	// Session state lives alongside the store's threads; when a thread
	// expires its recorded steps go with it.
	deps.Store.OnEvict(func(threadID string) {
		e.mu.Lock()
		delete(e.sessions, threadID)
		e.mu.Unlock()
	})
	return e
}

// Execute runs one step of def's workflow.
func (e *Engine) Execute(ctx context.Context, def *Definition, args map[string]any) (*tools.Envelope, error) {
	if err := tools.ValidateAbsolutePaths(args); err != nil {
		return tools.ErrorEnvelope(err.Error()), nil
	}
	var req StepRequest
	if err := tools.DecodeRequest(args, &req); err != nil {
		return tools.ErrorEnvelope(err.Error()), nil
	}
	if req.Step == "" {
		return tools.ErrorEnvelope("missing required field: step"), nil
	}
	if req.StepNumber < 1 {
		return tools.ErrorEnvelope("step_number must be >= 1"), nil
	}
	if req.TotalSteps < req.StepNumber {
		// The agent extended the investigation; follow it.
		req.TotalSteps = req.StepNumber
	}
	if def.PreStep != nil {
		if intercepted := def.PreStep(&req); intercepted != nil {
			return intercepted, nil
		}
	}

	env := &tools.Envelope{
		ContentType: tools.ContentJSON,
		Metadata:    map[string]any{"tool_name": def.Name},
		Extra:       map[string]any{},
	}

	threadID := req.ContinuationID
	if threadID != "" {
		if _, ok := e.deps.Store.Get(threadID); !ok {
			threadID = ""
			env.AddWarning("continuation thread expired or unknown; a new investigation was started")
		}
	}
	if threadID == "" {
		threadID = e.deps.Store.Create(def.Name, map[string]any{"step": req.Step}, "")
	}
	env.ContinuationID = threadID

	findings := e.record(threadID, req)

	e.deps.Store.AddTurn(threadID, conversation.Turn{
		Role:     conversation.RoleUser,
		Content:  req.Step,
		Files:    req.RelevantFiles,
		Images:   req.Images,
		ToolName: def.Name,
		ModelMetadata: map[string]any{
			"step_number": req.StepNumber,
			"total_steps": req.TotalSteps,
			"findings":    req.Findings,
		},
	})

	env.Extra["step_number"] = req.StepNumber
	env.Extra["total_steps"] = req.TotalSteps
	env.Extra["next_step_required"] = req.NextStepRequired

	if req.NextStepRequired {
		return e.pause(def, req, env), nil
	}
	return e.complete(ctx, def, req, findings, env)
}

// record appends the step to the thread's session, handling backtracking,
// and returns the replayed findings.
func (e *Engine) record(threadID string, req StepRequest) ConsolidatedFindings {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[threadID]
	if !ok {
		s = &session{}
		e.sessions[threadID] = s
	}
	if req.BacktrackFrom > 0 {
		kept := s.steps[:0]
		for _, step := range s.steps {
			if step.StepNumber < req.BacktrackFrom {
				kept = append(kept, step)
			}
		}
		s.steps = kept
	}
	s.steps = append(s.steps, req)
	return s.findings()
}

// Findings returns the replayed consolidated findings for a thread. Used by
// tests and the completion packet.
func (e *Engine) Findings(threadID string) ConsolidatedFindings {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[threadID]; ok {
		return s.findings()
	}
	return ConsolidatedFindings{}
}

// pause returns the forced-investigation envelope between steps.
func (e *Engine) pause(def *Definition, req StepRequest, env *tools.Envelope) *tools.Envelope {
	env.Status = def.PauseStatus
	if def.RequiredActions != nil {
		env.Extra["required_actions"] = def.RequiredActions(req.StepNumber, req.TotalSteps, req.Confidence)
	}
	env.Extra["next_steps"] = fmt.Sprintf(
		"Do NOT call %s again yet. Complete the required investigation first: examine the "+
			"relevant code, record concrete findings, and only then post step %d with what you learned.",
		def.Name, req.StepNumber+1)
	return env
}

// complete finishes a workflow: completion gating, expert-analysis decision,
// and the final packet.
func (e *Engine) complete(ctx context.Context, def *Definition, req StepRequest, findings ConsolidatedFindings, env *tools.Envelope) (*tools.Envelope, error) {
	// Tool-specific completion veto (docgen counters).
	if def.CompletionGate != nil {
		if allowed, message := def.CompletionGate(&req); !allowed {
			env.Status = def.PauseStatus
			env.Extra["next_step_required"] = true
			env.Extra["next_steps"] = message
			env.AddWarning("completion vetoed: " + message)
			return env, nil
		}
	}

	env.Status = def.finalStatus()
	completion := map[string]any{
		"steps_taken":      req.StepNumber,
		"findings":         findings.Findings,
		"relevant_files":   findings.RelevantFiles,
		"relevant_context": findings.RelevantContext,
		"confidence_level": findings.Confidence,
	}
	if len(findings.IssuesFound) > 0 {
		completion["issues_found"] = findings.IssuesFound
	}
	env.Extra[def.CompletionKey] = completion

	if !def.Expert {
		env.Extra["next_steps"] = def.completionGuidance()
		return env, nil
	}

	if req.UseAssistantModel != nil && !*req.UseAssistantModel {
		env.Extra["expert_analysis"] = map[string]any{
			"status": "skipped_by_request",
			"reason": "use_assistant_model was disabled by the caller",
		}
		return env, nil
	}
	if def.skipsOnConfidence(req.Confidence) {
		env.Extra["expert_analysis"] = map[string]any{
			"status": ExpertSkippedStatus,
			"reason": fmt.Sprintf("the agent reported %s confidence; proceed with the identified resolution", req.Confidence),
		}
		if def.CertainStatus != "" {
			env.Status = def.CertainStatus
		}
		return env, nil
	}

	expert, clarification, err := e.expertAnalysis(ctx, def, req, findings, env.ContinuationID)
	if err != nil {
		env.Extra["expert_analysis"] = map[string]any{
			"status": "analysis_error",
			"error":  err.Error(),
		}
		env.AddWarning("expert analysis failed; the findings above stand on the investigation alone")
		return env, nil
	}
	if clarification != nil {
		return clarification, nil
	}
	env.Extra["expert_analysis"] = expert
	return env, nil
}

// expertAnalysis dispatches the investigation summary to a reasoning model.
// The returned envelope is non-nil only when the expert asked for more files.
func (e *Engine) expertAnalysis(ctx context.Context, def *Definition, req StepRequest, findings ConsolidatedFindings, threadID string) (map[string]any, *tools.Envelope, error) {
	provider, capability, err := e.resolveExpert(req.Model, def.Category)
	if err != nil {
		return nil, nil, err
	}

	budget := conversation.BudgetFor(capability)
	// No history dedup here: the expert prompt carries no conversation
	// history, so every relevant file must be embedded fresh.
	fileBlock, _, err := conversation.PrepareFiles(
		e.deps.Store, findings.RelevantFiles, "", "ESSENTIAL", budget.Files)
	if err != nil {
		return nil, nil, err
	}

	var b strings.Builder
	b.WriteString("=== INVESTIGATION SUMMARY ===\n")
	for _, finding := range findings.Findings {
		b.WriteString(finding)
		b.WriteByte('\n')
	}
	b.WriteString("=== END INVESTIGATION SUMMARY ===\n\n")
	if len(findings.Hypotheses) > 0 {
		b.WriteString("Hypotheses considered:\n")
		for _, h := range findings.Hypotheses {
			fmt.Fprintf(&b, "- (step %d, confidence %s) %s\n", h.Step, h.Confidence, h.Hypothesis)
		}
		b.WriteByte('\n')
	}
	if len(findings.RelevantContext) > 0 {
		fmt.Fprintf(&b, "Key symbols: %s\n\n", strings.Join(findings.RelevantContext, ", "))
	}
	if fileBlock != "" {
		b.WriteString(fileBlock)
		b.WriteByte('\n')
	}
	if def.ExpertInstruction != "" {
		b.WriteString(def.ExpertInstruction)
	}

	temperature, _ := tools.ValidateTemperature(req.Temperature, def.DefaultTemperature, capability)
	mode := llm.ThinkingMode(req.ThinkingMode)
	if !mode.IsValid() || !capability.SupportsThinking {
		mode = ""
	}
	resp, err := e.deps.Generate(ctx, provider, llm.GenerationRequest{
		Prompt:       b.String(),
		Model:        capability.Name,
		SystemPrompt: e.deps.FinishSystemPrompt(def.SystemPrompt, req.UseWebsearch),
		Temperature:  temperature,
		ThinkingMode: mode,
		Images:       findings.Images,
	})
	if err != nil {
		return nil, nil, err
	}

	// An expert reply that is itself a structured request for more material
	// surfaces as a clarification demand, not as analysis.
	var structured struct {
		Status string   `json:"status"`
		Files  []string `json:"files_needed"`
	}
	if json.Unmarshal([]byte(resp.Content), &structured) == nil &&
		structured.Status == "files_required_to_continue" {
		return nil, &tools.Envelope{
			Status:      tools.StatusRequiresClarification,
			Content:     resp.Content,
			ContentType: tools.ContentJSON,
			Metadata: map[string]any{
				"tool_name":    def.Name,
				"files_needed": structured.Files,
			},
			ContinuationID: threadID,
		}, nil
	}

	return map[string]any{
		"status":   "analysis_complete",
		"model":    resp.ModelName,
		"provider": string(resp.Kind),
		"analysis": resp.Content,
	}, nil, nil
}

// resolveExpert picks the expert model: the caller's explicit choice, the
// server default, then the category's preferred fallback.
func (e *Engine) resolveExpert(requested string, category registry.ToolCategory) (llm.Provider, llm.Capability, error) {
	if requested != "" && requested != "auto" {
		return e.deps.Registry.ProviderForModel(requested)
	}
	if name := e.deps.Settings.DefaultModel; name != "" && name != "auto" {
		if p, capability, err := e.deps.Registry.ProviderForModel(name); err == nil {
			return p, capability, nil
		}
	}
	if name, ok := e.deps.Registry.PreferredFallback(category); ok {
		return e.deps.Registry.ProviderForModel(name)
	}
	return e.deps.Registry.ProviderForModel("auto")
}
