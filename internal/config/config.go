// Package config provides the environment-driven settings schema and the
// custom model registry file loader for the Conclave MCP server.
//
// All configuration comes from environment variables snapshotted once at
// process start by [FromEnv]; changing a restriction list or provider key
// requires a restart. The one file-based input is the custom model registry
// (see [LoadModelsFile]), which declares capabilities for models served by
// user-supplied OpenAI-compatible endpoints.
package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/MrWong99/conclave/pkg/provider/llm"
)

// LogLevel controls log verbosity for the Conclave server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l onto the slog level scale. Unrecognised values map to
// info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DefaultModelAuto is the sentinel model name that delegates model selection
// to the server. Tools that require a model reject it with a listing of what
// is actually available.
const DefaultModelAuto = "auto"

const (
	// DefaultConversationTTL bounds a thread's lifetime measured from its
	// last update.
	DefaultConversationTTL = 3 * time.Hour

	// DefaultMaxConversationTurns caps the number of turns per thread.
	DefaultMaxConversationTurns = 50

	// DefaultMaxPromptChars is the prompt-size gate: a caller-supplied prompt
	// longer than this must be resent as a prompt.txt file.
	DefaultMaxPromptChars = 50_000
)

// GoogleSettings configures the Gemini provider.
type GoogleSettings struct {
	// APIKey comes from GEMINI_API_KEY, falling back to GOOGLE_API_KEY.
	APIKey string
}

// OpenAISettings configures the OpenAI provider.
type OpenAISettings struct {
	// APIKey comes from OPENAI_API_KEY.
	APIKey string
}

// XAISettings configures the X.AI (Grok) provider.
type XAISettings struct {
	// APIKey comes from XAI_API_KEY.
	APIKey string
}

// OpenRouterSettings configures the OpenRouter aggregator provider.
type OpenRouterSettings struct {
	// APIKey comes from OPENROUTER_API_KEY.
	APIKey string
}

// DIALSettings configures the DIAL gateway provider.
type DIALSettings struct {
	// APIKey comes from DIAL_API_KEY.
	APIKey string

	// Host is the DIAL installation base URL, from DIAL_API_HOST.
	Host string

	// APIVersion is the api-version query parameter, from DIAL_API_VERSION.
	// Empty selects the provider's default.
	APIVersion string
}

// CustomSettings configures the user-declared OpenAI-compatible provider.
type CustomSettings struct {
	// BaseURL is the endpoint base URL, from CUSTOM_API_URL.
	BaseURL string

	// APIKey is the optional bearer token, from CUSTOM_API_KEY.
	APIKey string

	// DefaultModel is the endpoint's default model name, from
	// CUSTOM_MODEL_NAME.
	DefaultModel string

	// ModelsFile is the path to the model registry file, from
	// CUSTOM_MODELS_FILE. Empty means no registry: only DefaultModel is
	// known, with conservative capabilities.
	ModelsFile string
}

// Settings is the process-wide configuration snapshot. Populate it with
// [FromEnv]; the struct is never mutated afterwards.
type Settings struct {
	Google     GoogleSettings
	OpenAI     OpenAISettings
	XAI        XAISettings
	OpenRouter OpenRouterSettings
	DIAL       DIALSettings
	Custom     CustomSettings

	// DefaultModel is used when a tool caller omits the model field.
	// Defaults to [DefaultModelAuto].
	DefaultModel string

	// Locale, when non-empty, appends an "answer in <locale>" instruction to
	// every system prompt.
	Locale string

	// AllowedModels holds the per-provider restriction lists from
	// <PROVIDER>_ALLOWED_MODELS. A missing or empty entry means the provider
	// serves its full catalog.
	AllowedModels map[llm.ProviderKind][]string

	// ConversationTTL bounds thread lifetime, from CONVERSATION_TIMEOUT_HOURS.
	ConversationTTL time.Duration

	// MaxConversationTurns caps turns per thread, from MAX_CONVERSATION_TURNS.
	MaxConversationTurns int

	// LogLevel controls stderr log verbosity, from LOG_LEVEL.
	LogLevel LogLevel

	// MetricsAddr, when non-empty, serves /healthz and Prometheus /metrics on
	// this address (e.g. ":9090"). From METRICS_ADDR.
	MetricsAddr string
}

// EnabledKinds returns the provider kinds that have enough configuration to
// be constructed, in registry precedence order.
func (s *Settings) EnabledKinds() []llm.ProviderKind {
	var kinds []llm.ProviderKind
	for _, kind := range llm.KindPrecedence {
		if s.KindEnabled(kind) {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// KindEnabled reports whether the given provider kind is configured.
func (s *Settings) KindEnabled(kind llm.ProviderKind) bool {
	switch kind {
	case llm.KindGoogle:
		return s.Google.APIKey != ""
	case llm.KindOpenAI:
		return s.OpenAI.APIKey != ""
	case llm.KindXAI:
		return s.XAI.APIKey != ""
	case llm.KindOpenRouter:
		return s.OpenRouter.APIKey != ""
	case llm.KindDIAL:
		return s.DIAL.APIKey != "" && s.DIAL.Host != ""
	case llm.KindCustom:
		return s.Custom.BaseURL != ""
	}
	return false
}

// Allowed reports whether model passes the restriction list for kind. An
// empty list allows everything. Matching is case-insensitive and should be
// performed against both canonical names and aliases by the caller; this
// helper checks one candidate name.
func (s *Settings) Allowed(kind llm.ProviderKind, model string) bool {
	list := s.AllowedModels[kind]
	if len(list) == 0 {
		return true
	}
	for _, allowed := range list {
		if strings.EqualFold(allowed, model) {
			return true
		}
	}
	return false
}
