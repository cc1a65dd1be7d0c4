package openai

import (
	"errors"
	"net/http"
	"testing"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/conclave/pkg/provider/llm"
)

func TestCatalogAliases(t *testing.T) {
	cat := Catalog()

	tests := []struct {
		alias string
		want  string
	}{
		{"mini", "o4-mini"},
		{"o4mini", "o4-mini"},
		{"o3mini", "o3-mini"},
		{"gpt4.1", "gpt-4.1"},
		{"GPT5", "gpt-5"},
	}
	for _, tt := range tests {
		t.Run(tt.alias, func(t *testing.T) {
			got, ok := cat.Resolve(tt.alias)
			if !ok || got != tt.want {
				t.Errorf("Resolve(%q) = (%q, %v), want (%q, true)", tt.alias, got, ok, tt.want)
			}
		})
	}
}

func mustGet(t *testing.T, name string) llm.Capability {
	t.Helper()
	capability, ok := Catalog().Get(name)
	if !ok {
		t.Fatalf("model %q missing from catalog", name)
	}
	return capability
}

func TestBuildParamsTemperature(t *testing.T) {
	t.Run("fixed temperature omitted", func(t *testing.T) {
		params, err := buildParams(mustGet(t, "o3"), llm.GenerationRequest{Prompt: "hi", Temperature: 0.5})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if params.Temperature.Valid() {
			t.Errorf("temperature sent for fixed-temperature model: %v", params.Temperature.Value)
		}
	})

	t.Run("range temperature forwarded", func(t *testing.T) {
		params, err := buildParams(mustGet(t, "gpt-4.1"), llm.GenerationRequest{Prompt: "hi", Temperature: 0.7})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !params.Temperature.Valid() || params.Temperature.Value != 0.7 {
			t.Errorf("temperature = %v, want 0.7", params.Temperature)
		}
	})
}

func TestBuildParamsReasoningEffort(t *testing.T) {
	tests := []struct {
		mode llm.ThinkingMode
		want shared.ReasoningEffort
	}{
		{llm.ThinkingMinimal, shared.ReasoningEffortLow},
		{llm.ThinkingLow, shared.ReasoningEffortLow},
		{llm.ThinkingMedium, shared.ReasoningEffortMedium},
		{llm.ThinkingHigh, shared.ReasoningEffortHigh},
		{llm.ThinkingMax, shared.ReasoningEffortHigh},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			params, err := buildParams(mustGet(t, "o3"), llm.GenerationRequest{Prompt: "hi", ThinkingMode: tt.mode})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if params.ReasoningEffort != tt.want {
				t.Errorf("reasoning effort = %q, want %q", params.ReasoningEffort, tt.want)
			}
		})
	}

	t.Run("omitted for non-thinking model", func(t *testing.T) {
		params, err := buildParams(mustGet(t, "gpt-4.1"), llm.GenerationRequest{Prompt: "hi", ThinkingMode: llm.ThinkingHigh})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if params.ReasoningEffort != "" {
			t.Errorf("reasoning effort = %q, want empty", params.ReasoningEffort)
		}
	})
}

func TestBuildParamsSystemPrompt(t *testing.T) {
	params, err := buildParams(mustGet(t, "o3"), llm.GenerationRequest{Prompt: "question", SystemPrompt: "you are terse"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Error("first message is not a system message")
	}
	if params.Messages[1].OfUser == nil {
		t.Error("second message is not a user message")
	}
}

func TestBuildParamsOutputTokenClamp(t *testing.T) {
	capability := mustGet(t, "o3-mini")

	tests := []struct {
		name      string
		requested int
		want      int64
	}{
		{"over model limit", 10_000_000, 65_536},
		{"zero uses model limit", 0, 65_536},
		{"under limit kept", 1_000, 1_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := buildParams(capability, llm.GenerationRequest{Prompt: "hi", MaxOutputTokens: tt.requested})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !params.MaxCompletionTokens.Valid() || params.MaxCompletionTokens.Value != tt.want {
				t.Errorf("max completion tokens = %v, want %d", params.MaxCompletionTokens, tt.want)
			}
		})
	}
}

func TestBuildParamsJSONMode(t *testing.T) {
	params, err := buildParams(mustGet(t, "o3"), llm.GenerationRequest{Prompt: "hi", JSONMode: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.ResponseFormat.OfJSONObject == nil {
		t.Error("JSON mode did not set json_object response format")
	}
}

func TestImageDataURL(t *testing.T) {
	t.Run("data URL passthrough", func(t *testing.T) {
		in := "data:image/png;base64,iVBORw0KGgo="
		got, err := imageDataURL(in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != in {
			t.Errorf("got %q, want input unchanged", got)
		}
	})

	t.Run("unreadable file is invalid request", func(t *testing.T) {
		_, err := imageDataURL("/nonexistent/image.png")
		if !errors.Is(err, llm.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
		if llm.RetryableError(err) {
			t.Error("image read failure should not be retryable")
		}
	})
}

func TestMapError(t *testing.T) {
	t.Run("404 is model unavailable", func(t *testing.T) {
		err := mapError(llm.KindOpenAI, "o3", &oai.Error{StatusCode: http.StatusNotFound})
		if !errors.Is(err, llm.ErrModelUnavailable) {
			t.Errorf("error = %v, want ErrModelUnavailable", err)
		}
		if llm.RetryableError(err) {
			t.Error("404 should not be retryable")
		}
	})

	t.Run("429 carries retry-after", func(t *testing.T) {
		resp := &http.Response{Header: http.Header{"Retry-After": []string{"7"}}}
		err := mapError(llm.KindOpenAI, "o3", &oai.Error{StatusCode: 429, Response: resp})
		if !llm.RetryableError(err) {
			t.Fatal("429 should be retryable")
		}
		d, ok := llm.RetryAfterHint(err)
		if !ok || d != 7*time.Second {
			t.Errorf("retry-after = (%v, %v), want (7s, true)", d, ok)
		}
	})

	t.Run("500 is retryable", func(t *testing.T) {
		err := mapError(llm.KindOpenAI, "o3", &oai.Error{StatusCode: 500})
		if !llm.RetryableError(err) {
			t.Error("500 should be retryable")
		}
	})

	t.Run("400 is terminal", func(t *testing.T) {
		err := mapError(llm.KindOpenAI, "o3", &oai.Error{StatusCode: 400})
		if llm.RetryableError(err) {
			t.Error("400 should not be retryable")
		}
	})

	t.Run("non-API error is retryable transport failure", func(t *testing.T) {
		err := mapError(llm.KindOpenAI, "o3", errors.New("connection reset"))
		if !llm.RetryableError(err) {
			t.Error("network error should be retryable")
		}
	})
}

func TestRetryAfterFromDate(t *testing.T) {
	at := time.Now().Add(42 * time.Second).UTC()
	resp := &http.Response{Header: http.Header{"Retry-After": []string{at.Format(http.TimeFormat)}}}
	d := retryAfterFrom(resp)
	if d <= 0 || d > 42*time.Second {
		t.Errorf("retryAfterFrom date = %v, want within (0s, 42s]", d)
	}
}
