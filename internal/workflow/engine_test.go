package workflow

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/conclave/internal/config"
	"github.com/MrWong99/conclave/internal/conversation"
	"github.com/MrWong99/conclave/internal/registry"
	"github.com/MrWong99/conclave/internal/resilience"
	"github.com/MrWong99/conclave/internal/tools"
	"github.com/MrWong99/conclave/pkg/provider/llm"
	"github.com/MrWong99/conclave/pkg/provider/llm/mock"
)

func newTestEngine(p *mock.Provider) *Engine {
	reg := registry.New()
	reg.Register(p)
	return NewEngine(&tools.Deps{
		Settings: &config.Settings{DefaultModel: "expert-model"},
		Registry: reg,
		Store:    conversation.NewStore(conversation.StoreConfig{}),
		Guard:    resilience.NewGuard(resilience.RetryConfig{}),
	})
}

func newExpertProvider() *mock.Provider {
	return &mock.Provider{
		Models: []llm.Capability{{
			Name:                 "expert-model",
			Kind:                 llm.KindCustom,
			ContextWindow:        200_000,
			MaxOutputTokens:      8_192,
			SupportsTemperature:  true,
			Temperature:          llm.TemperatureRange{Min: 0, Max: 2},
			SupportsSystemPrompt: true,
		}},
		GenerateResponse: &llm.ModelResponse{
			Content:   "expert verdict",
			ModelName: "expert-model",
			Kind:      llm.KindCustom,
		},
	}
}

// tempFile creates a readable absolute path for relevant_files.
func tempFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func step(overrides map[string]any) map[string]any {
	args := map[string]any{
		"step":               "investigate the failure",
		"step_number":        1,
		"total_steps":        3,
		"next_step_required": true,
		"findings":           "initial observations",
	}
	for k, v := range overrides {
		args[k] = v
	}
	return args
}

func TestWorkflowPauseBetweenSteps(t *testing.T) {
	engine := newTestEngine(newExpertProvider())
	debug := Debug()

	env, err := engine.Execute(context.Background(), debug, step(nil))
	if err != nil {
		t.Fatal(err)
	}
	if env.Status != "pause_for_investigation" {
		t.Fatalf("status = %s, want pause_for_investigation", env.Status)
	}
	if env.ContinuationID == "" {
		t.Fatal("workflow steps must always return a continuation_id")
	}
	actions, ok := env.Extra["required_actions"].([]string)
	if !ok || len(actions) == 0 {
		t.Errorf("required_actions = %#v", env.Extra["required_actions"])
	}
	next, _ := env.Extra["next_steps"].(string)
	if !strings.Contains(next, "Do NOT call debug again yet") {
		t.Errorf("next_steps should forbid immediate recursion: %q", next)
	}
	if env.Extra["step_number"] != 1 || env.Extra["total_steps"] != 3 {
		t.Errorf("step bookkeeping: %v / %v", env.Extra["step_number"], env.Extra["total_steps"])
	}
}

func TestWorkflowExpertAnalysisOnCompletion(t *testing.T) {
	p := newExpertProvider()
	engine := newTestEngine(p)
	td := ThinkDeep()
	relevant := tempFile(t, "core.go", "package core\n")

	env, err := engine.Execute(context.Background(), td, step(nil))
	if err != nil {
		t.Fatal(err)
	}
	threadID := env.ContinuationID

	env, err = engine.Execute(context.Background(), td, step(map[string]any{
		"step":               "conclusion reached",
		"step_number":        2,
		"total_steps":        2,
		"next_step_required": false,
		"findings":           "the approach holds",
		"relevant_files":     []any{relevant},
		"relevant_context":   []any{"core.Process"},
		"confidence":         "high",
		"continuation_id":    threadID,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if env.Status != "complete_thinkdeep" {
		t.Fatalf("status = %s, want complete_thinkdeep", env.Status)
	}

	completion, ok := env.Extra["complete_thinkdeep"].(map[string]any)
	if !ok {
		t.Fatalf("missing completion packet: %#v", env.Extra)
	}
	findings, _ := completion["findings"].([]string)
	if len(findings) != 2 || !strings.Contains(findings[0], "Step 1") {
		t.Errorf("findings = %v", findings)
	}
	if completion["confidence_level"] != "high" {
		t.Errorf("confidence_level = %v", completion["confidence_level"])
	}

	expert, ok := env.Extra["expert_analysis"].(map[string]any)
	if !ok || expert["status"] != "analysis_complete" {
		t.Fatalf("expert_analysis = %#v", env.Extra["expert_analysis"])
	}
	if expert["analysis"] != "expert verdict" {
		t.Errorf("analysis = %v", expert["analysis"])
	}

	if len(p.GenerateCalls) != 1 {
		t.Fatalf("expected 1 expert call, got %d", len(p.GenerateCalls))
	}
	prompt := p.GenerateCalls[0].Req.Prompt
	for _, want := range []string{"=== INVESTIGATION SUMMARY ===", "the approach holds", "core.Process", "ESSENTIAL FILES"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("expert prompt missing %q", want)
		}
	}
}

func TestDebugCertainSkipsExpert(t *testing.T) {
	p := newExpertProvider()
	engine := newTestEngine(p)

	env, err := engine.Execute(context.Background(), Debug(), step(map[string]any{
		"step_number":        1,
		"total_steps":        1,
		"next_step_required": false,
		"findings":           "off-by-one in the loop bound",
		"hypothesis":         "loop bound excludes the final element",
		"confidence":         "certain",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if env.Status != "certain_confidence_proceed_with_fix" {
		t.Fatalf("status = %s, want certain_confidence_proceed_with_fix", env.Status)
	}
	expert, _ := env.Extra["expert_analysis"].(map[string]any)
	if expert["status"] != ExpertSkippedStatus {
		t.Errorf("expert_analysis.status = %v, want %s", expert["status"], ExpertSkippedStatus)
	}
	if len(p.GenerateCalls) != 0 {
		t.Errorf("certain confidence must not call the expert, got %d calls", len(p.GenerateCalls))
	}
}

func TestAnalyzeNeverSkipsExpert(t *testing.T) {
	p := newExpertProvider()
	engine := newTestEngine(p)

	env, err := engine.Execute(context.Background(), Analyze(), step(map[string]any{
		"step_number":        1,
		"total_steps":        1,
		"next_step_required": false,
		"confidence":         "certain",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if env.Status != "complete_analysis" {
		t.Fatalf("status = %s", env.Status)
	}
	if len(p.GenerateCalls) != 1 {
		t.Errorf("analyze must always consult the expert, got %d calls", len(p.GenerateCalls))
	}
}

func TestUseAssistantModelOptOut(t *testing.T) {
	p := newExpertProvider()
	engine := newTestEngine(p)

	env, err := engine.Execute(context.Background(), CodeReview(), step(map[string]any{
		"step_number":         1,
		"total_steps":         1,
		"next_step_required":  false,
		"use_assistant_model": false,
	}))
	if err != nil {
		t.Fatal(err)
	}
	expert, _ := env.Extra["expert_analysis"].(map[string]any)
	if expert["status"] != "skipped_by_request" {
		t.Errorf("expert_analysis = %#v", expert)
	}
	if len(p.GenerateCalls) != 0 {
		t.Errorf("opt-out must not call the expert")
	}
}

func TestPlannerCompletion(t *testing.T) {
	p := newExpertProvider()
	engine := newTestEngine(p)

	env, err := engine.Execute(context.Background(), Planner(), step(map[string]any{
		"step":               "final plan assembled",
		"step_number":        1,
		"total_steps":        1,
		"next_step_required": false,
		"findings":           "three-phase rollout",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if env.Status != "planning_success" {
		t.Fatalf("status = %s, want planning_success", env.Status)
	}
	if _, ok := env.Extra["complete_planning"]; !ok {
		t.Error("missing complete_planning packet")
	}
	if _, ok := env.Extra["expert_analysis"]; ok {
		t.Error("planner must not produce expert analysis")
	}
	if len(p.GenerateCalls) != 0 {
		t.Errorf("planner must make no provider calls, got %d", len(p.GenerateCalls))
	}
}

func TestDocgenCounterGate(t *testing.T) {
	engine := newTestEngine(newExpertProvider())
	dg := Docgen()

	env, err := engine.Execute(context.Background(), dg, step(map[string]any{
		"step_number":             2,
		"total_steps":             2,
		"next_step_required":      false,
		"num_files_documented":    1,
		"total_files_to_document": 3,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if env.Status != "pause_for_docgen" {
		t.Fatalf("status = %s, want pause_for_docgen (completion vetoed)", env.Status)
	}
	if env.Extra["next_step_required"] != true {
		t.Error("vetoed completion must force next_step_required")
	}
	next, _ := env.Extra["next_steps"].(string)
	if !strings.Contains(next, "1 of 3") {
		t.Errorf("next_steps should report the counters: %q", next)
	}

	// Matching counters complete with the docgen final status.
	env, err = engine.Execute(context.Background(), dg, step(map[string]any{
		"step_number":             3,
		"total_steps":             3,
		"next_step_required":      false,
		"num_files_documented":    3,
		"total_files_to_document": 3,
		"continuation_id":         env.ContinuationID,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if env.Status != "documentation_analysis_complete" {
		t.Fatalf("status = %s, want documentation_analysis_complete", env.Status)
	}
}

func TestBacktrackReplaysFindings(t *testing.T) {
	engine := newTestEngine(newExpertProvider())
	debug := Debug()

	env, err := engine.Execute(context.Background(), debug, step(map[string]any{
		"findings":      "step one evidence",
		"files_checked": []any{"/src/a.go"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	threadID := env.ContinuationID

	_, err = engine.Execute(context.Background(), debug, step(map[string]any{
		"step_number":     2,
		"findings":        "wrong turn",
		"files_checked":   []any{"/src/wrong.go"},
		"hypothesis":      "bad theory",
		"continuation_id": threadID,
	}))
	if err != nil {
		t.Fatal(err)
	}

	// Backtrack discards step 2 before recording the replacement.
	_, err = engine.Execute(context.Background(), debug, step(map[string]any{
		"step_number":         2,
		"findings":            "corrected direction",
		"files_checked":       []any{"/src/b.go"},
		"backtrack_from_step": 2,
		"continuation_id":     threadID,
	}))
	if err != nil {
		t.Fatal(err)
	}

	findings := engine.Findings(threadID)
	joined := strings.Join(findings.Findings, "\n")
	if strings.Contains(joined, "wrong turn") {
		t.Error("backtracked findings must be discarded")
	}
	if !strings.Contains(joined, "step one evidence") || !strings.Contains(joined, "corrected direction") {
		t.Errorf("findings = %v", findings.Findings)
	}
	for _, f := range findings.FilesChecked {
		if f == "/src/wrong.go" {
			t.Error("backtracked file reference survived the replay")
		}
	}
	if len(findings.Hypotheses) != 0 {
		t.Errorf("backtracked hypothesis survived: %v", findings.Hypotheses)
	}
}

func TestTracerAskMode(t *testing.T) {
	p := newExpertProvider()
	engine := newTestEngine(p)

	env, err := engine.Execute(context.Background(), Tracer(), step(map[string]any{
		"trace_mode":         "ask",
		"target_description": "the request dispatch path",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if env.Status != "mode_selection_required" {
		t.Fatalf("status = %s, want mode_selection_required", env.Status)
	}
	if !strings.Contains(env.Content, "precision") || !strings.Contains(env.Content, "dependencies") {
		t.Errorf("guidance should describe both modes: %q", env.Content)
	}
	if env.ContinuationID != "" {
		t.Error("ask mode must not start a thread")
	}
	if len(p.GenerateCalls) != 0 {
		t.Error("ask mode must not call a provider")
	}
}

func TestExpertClarificationRequest(t *testing.T) {
	p := newExpertProvider()
	p.GenerateResponse = &llm.ModelResponse{
		Content:   `{"status": "files_required_to_continue", "files_needed": ["/src/missing.go"]}`,
		ModelName: "expert-model",
		Kind:      llm.KindCustom,
	}
	engine := newTestEngine(p)

	env, err := engine.Execute(context.Background(), Secaudit(), step(map[string]any{
		"step_number":        1,
		"total_steps":        1,
		"next_step_required": false,
		"confidence":         "medium",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if env.Status != tools.StatusRequiresClarification {
		t.Fatalf("status = %s, want %s", env.Status, tools.StatusRequiresClarification)
	}
	needed, _ := env.Metadata["files_needed"].([]string)
	if len(needed) != 1 || needed[0] != "/src/missing.go" {
		t.Errorf("files_needed = %v", needed)
	}
	if env.ContinuationID == "" {
		t.Error("clarification must carry the thread id for the follow-up")
	}
}

func TestWorkflowValidation(t *testing.T) {
	engine := newTestEngine(newExpertProvider())
	debug := Debug()

	env, _ := engine.Execute(context.Background(), debug, map[string]any{
		"step_number": 1, "total_steps": 1, "next_step_required": false,
	})
	if env.Status != tools.StatusError || !strings.Contains(env.Content, "step") {
		t.Errorf("missing step: %s / %q", env.Status, env.Content)
	}

	env, _ = engine.Execute(context.Background(), debug, step(map[string]any{"step_number": 0}))
	if env.Status != tools.StatusError {
		t.Errorf("step_number 0 should fail, got %s", env.Status)
	}

	env, _ = engine.Execute(context.Background(), debug, step(map[string]any{
		"relevant_files": []any{"not/absolute.go"},
	}))
	if env.Status != tools.StatusError || !strings.Contains(env.Content, "absolute") {
		t.Errorf("relative path should fail: %s / %q", env.Status, env.Content)
	}
}

func TestWorkflowToolSchema(t *testing.T) {
	tool := NewTool(Docgen(), newTestEngine(newExpertProvider()))

	if tool.Name() != "docgen" {
		t.Fatalf("name = %s", tool.Name())
	}
	s := tool.InputSchema()
	for _, field := range []string{"step", "step_number", "total_steps", "next_step_required",
		"findings", "confidence", "backtrack_from_step", "num_files_documented"} {
		if _, ok := s.Properties[field]; !ok {
			t.Errorf("schema missing %q", field)
		}
	}
	required := strings.Join(s.Required, ",")
	for _, want := range []string{"step", "num_files_documented", "total_files_to_document"} {
		if !strings.Contains(required, want) {
			t.Errorf("required missing %q: %s", want, required)
		}
	}
}

// newShortTTLEngine wires an engine to a store whose threads expire almost
// immediately.
func newShortTTLEngine(p *mock.Provider, ttl time.Duration) (*Engine, *conversation.Store) {
	reg := registry.New()
	reg.Register(p)
	store := conversation.NewStore(conversation.StoreConfig{TTL: ttl})
	engine := NewEngine(&tools.Deps{
		Settings: &config.Settings{DefaultModel: "expert-model"},
		Registry: reg,
		Store:    store,
		Guard:    resilience.NewGuard(resilience.RetryConfig{}),
	})
	return engine, store
}

func (e *Engine) sessionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

func TestSweepEvictsWorkflowSession(t *testing.T) {
	engine, store := newShortTTLEngine(newExpertProvider(), 10*time.Millisecond)

	env, err := engine.Execute(context.Background(), Debug(), step(nil))
	if err != nil {
		t.Fatal(err)
	}
	threadID := env.ContinuationID
	if got := engine.Findings(threadID); len(got.Findings) == 0 {
		t.Fatal("expected recorded findings for the live thread")
	}

	time.Sleep(20 * time.Millisecond)
	store.Sweep()

	if _, ok := store.Get(threadID); ok {
		t.Fatal("thread should have expired")
	}
	if n := engine.sessionCount(); n != 0 {
		t.Errorf("engine retained %d sessions after the sweep", n)
	}
	if got := engine.Findings(threadID); len(got.Findings) != 0 {
		t.Errorf("expired thread still has findings: %v", got.Findings)
	}
}

func TestExpiredContinuationDropsOldSession(t *testing.T) {
	engine, _ := newShortTTLEngine(newExpertProvider(), 10*time.Millisecond)

	env, err := engine.Execute(context.Background(), Debug(), step(nil))
	if err != nil {
		t.Fatal(err)
	}
	oldID := env.ContinuationID

	time.Sleep(20 * time.Millisecond)

	// The stale continuation starts a fresh thread; the dead thread's
	// session must not linger behind it.
	env, err = engine.Execute(context.Background(), Debug(), step(map[string]any{
		"continuation_id": oldID,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if env.ContinuationID == oldID {
		t.Fatal("expected a fresh thread for the expired continuation")
	}
	if n := engine.sessionCount(); n != 1 {
		t.Errorf("session count = %d, want only the fresh thread", n)
	}
	if got := engine.Findings(oldID); len(got.Findings) != 0 {
		t.Errorf("orphaned session survived expiry: %v", got.Findings)
	}
}
