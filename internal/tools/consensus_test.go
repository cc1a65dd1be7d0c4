package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/conclave/pkg/provider/llm"
	"github.com/MrWong99/conclave/pkg/provider/llm/mock"
)

func TestNormalizeStance(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"for", "for"},
		{"support", "for"},
		{"Favor", "for"},
		{"against", "against"},
		{"oppose", "against"},
		{"CRITICAL", "against"},
		{"neutral", "neutral"},
		{"", "neutral"},
		{"whatever", "neutral"},
	}
	for _, tt := range tests {
		if got := NormalizeStance(tt.in); got != tt.want {
			t.Errorf("NormalizeStance(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConsensusStanceSteeringAndOrder(t *testing.T) {
	p := newTestProvider()
	consensus := NewConsensus(newTestDeps(p))

	env, err := consensus.Execute(context.Background(), map[string]any{
		"prompt": "should we adopt the new framework?",
		"models": []any{
			map[string]any{"model": "test-model", "stance": "for"},
			map[string]any{"model": "test-model", "stance": "against"},
			map[string]any{"model": "test-model", "stance": "neutral"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if env.Status != StatusConsensusSuccess {
		t.Fatalf("status = %s (content: %s)", env.Status, env.Content)
	}

	responses, ok := env.Extra["responses"].([]map[string]any)
	if !ok || len(responses) != 3 {
		t.Fatalf("responses = %#v", env.Extra["responses"])
	}
	// Input order survives the concurrent fan-out.
	for i, wantStance := range []string{"for", "against", "neutral"} {
		if responses[i]["stance"] != wantStance {
			t.Errorf("responses[%d].stance = %v, want %s", i, responses[i]["stance"], wantStance)
		}
	}

	if len(p.GenerateCalls) != 3 {
		t.Fatalf("expected 3 provider calls, got %d", len(p.GenerateCalls))
	}
	// Each call carries a stance-substituted system prompt, never the raw
	// placeholder.
	for _, call := range p.GenerateCalls {
		if strings.Contains(call.Req.SystemPrompt, "{stance_prompt}") {
			t.Error("stance placeholder leaked into a system prompt")
		}
	}
}

func TestConsensusDuplicateCap(t *testing.T) {
	p := newTestProvider()
	consensus := NewConsensus(newTestDeps(p))

	env, err := consensus.Execute(context.Background(), map[string]any{
		"prompt": "evaluate the proposal",
		"models": []any{
			map[string]any{"model": "test-model", "stance": "for"},
			map[string]any{"model": "test-model", "stance": "support"},
			map[string]any{"model": "test-model", "stance": "favor"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if env.Status != StatusConsensusSuccess {
		t.Fatalf("status = %s", env.Status)
	}

	// All three normalize to (test-model, for); only two may run.
	if len(p.GenerateCalls) != 2 {
		t.Errorf("expected 2 provider calls after dedup, got %d", len(p.GenerateCalls))
	}
	skipped, _ := env.Extra["models_skipped"].([]string)
	if len(skipped) != 1 || skipped[0] != "test-model:for" {
		t.Errorf("models_skipped = %v, want [test-model:for]", skipped)
	}
}

func TestConsensusPartialFailure(t *testing.T) {
	good := newTestProvider()
	bad := &mock.Provider{
		ProviderKind: llm.KindOpenRouter,
		Models: []llm.Capability{{
			Name:        "flaky-model",
			Kind:        llm.KindOpenRouter,
			Temperature: llm.TemperatureRange{Min: 0, Max: 2},
		}},
		// 401 is terminal: no retries, so the test stays fast.
		GenerateErr: &llm.TransportError{StatusCode: 401, Err: errors.New("bad key")},
	}
	deps := newTestDeps(good)
	deps.Registry.Register(bad)
	consensus := NewConsensus(deps)

	env, err := consensus.Execute(context.Background(), map[string]any{
		"prompt": "judge this",
		"models": []any{
			map[string]any{"model": "flaky-model"},
			map[string]any{"model": "test-model"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	// One success is enough for a consensus result.
	if env.Status != StatusConsensusSuccess {
		t.Fatalf("status = %s", env.Status)
	}
	errored, _ := env.Extra["models_errored"].([]map[string]any)
	if len(errored) != 1 || errored[0]["model"] != "flaky-model" {
		t.Errorf("models_errored = %v", errored)
	}
	responses, _ := env.Extra["responses"].([]map[string]any)
	if len(responses) != 1 || responses[0]["model"] != "test-model" {
		t.Errorf("responses = %v", responses)
	}
}

func TestConsensusAllFailed(t *testing.T) {
	p := newTestProvider()
	p.GenerateErr = &llm.TransportError{StatusCode: 403, Err: errors.New("quota exhausted")}
	p.GenerateResponse = nil
	consensus := NewConsensus(newTestDeps(p))

	env, err := consensus.Execute(context.Background(), map[string]any{
		"prompt": "judge this",
		"models": []any{
			map[string]any{"model": "test-model", "stance": "for"},
			map[string]any{"model": "test-model", "stance": "against"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if env.Status != StatusConsensusFailed {
		t.Fatalf("status = %s, want %s", env.Status, StatusConsensusFailed)
	}
	errored, _ := env.Extra["models_errored"].([]map[string]any)
	if len(errored) != 2 {
		t.Errorf("models_errored = %v, want both participants", errored)
	}
}

func TestConsensusValidation(t *testing.T) {
	consensus := NewConsensus(newTestDeps(newTestProvider()))

	env, _ := consensus.Execute(context.Background(), map[string]any{"prompt": "p"})
	if env.Status != StatusError || !strings.Contains(env.Content, "models") {
		t.Errorf("missing models: status=%s content=%q", env.Status, env.Content)
	}

	env, _ = consensus.Execute(context.Background(), map[string]any{
		"models": []any{map[string]any{"model": "test-model"}},
	})
	if env.Status != StatusError || !strings.Contains(env.Content, "prompt") {
		t.Errorf("missing prompt: status=%s content=%q", env.Status, env.Content)
	}
}
