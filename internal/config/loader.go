package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/conclave/pkg/provider/llm"
)

// allowListVars maps a provider kind to its restriction-list variable.
var allowListVars = map[llm.ProviderKind]string{
	llm.KindGoogle:     "GOOGLE_ALLOWED_MODELS",
	llm.KindOpenAI:     "OPENAI_ALLOWED_MODELS",
	llm.KindXAI:        "XAI_ALLOWED_MODELS",
	llm.KindOpenRouter: "OPENROUTER_ALLOWED_MODELS",
	llm.KindDIAL:       "DIAL_ALLOWED_MODELS",
	llm.KindCustom:     "CUSTOM_ALLOWED_MODELS",
}

// AllowListVar returns the restriction-list environment variable for kind,
// for use in error messages.
func AllowListVar(kind llm.ProviderKind) string {
	return allowListVars[kind]
}

// FromEnv snapshots the process environment into a validated [Settings].
// It is a convenience wrapper around [FromLookup] with [os.LookupEnv].
func FromEnv() (*Settings, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup builds Settings from the given lookup function. Useful in tests
// where the environment is constructed from a map.
func FromLookup(lookup func(string) (string, bool)) (*Settings, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	s := &Settings{
		Google: GoogleSettings{APIKey: get("GEMINI_API_KEY")},
		OpenAI: OpenAISettings{APIKey: get("OPENAI_API_KEY")},
		XAI:    XAISettings{APIKey: get("XAI_API_KEY")},
		OpenRouter: OpenRouterSettings{
			APIKey: get("OPENROUTER_API_KEY"),
		},
		DIAL: DIALSettings{
			APIKey:     get("DIAL_API_KEY"),
			Host:       get("DIAL_API_HOST"),
			APIVersion: get("DIAL_API_VERSION"),
		},
		Custom: CustomSettings{
			BaseURL:      get("CUSTOM_API_URL"),
			APIKey:       get("CUSTOM_API_KEY"),
			DefaultModel: get("CUSTOM_MODEL_NAME"),
			ModelsFile:   get("CUSTOM_MODELS_FILE"),
		},
		DefaultModel:         get("DEFAULT_MODEL"),
		Locale:               get("LOCALE"),
		MetricsAddr:          get("METRICS_ADDR"),
		ConversationTTL:      DefaultConversationTTL,
		MaxConversationTurns: DefaultMaxConversationTurns,
		LogLevel:             LogInfo,
		AllowedModels:        make(map[llm.ProviderKind][]string),
	}

	if s.Google.APIKey == "" {
		s.Google.APIKey = get("GOOGLE_API_KEY")
	}
	if s.DefaultModel == "" {
		s.DefaultModel = DefaultModelAuto
	}

	var errs []error

	if raw := get("LOG_LEVEL"); raw != "" {
		lvl := LogLevel(strings.ToLower(raw))
		if !lvl.IsValid() {
			errs = append(errs, fmt.Errorf("LOG_LEVEL %q is invalid; valid values: debug, info, warn, error", raw))
		} else {
			s.LogLevel = lvl
		}
	}

	if raw := get("CONVERSATION_TIMEOUT_HOURS"); raw != "" {
		hours, err := strconv.ParseFloat(raw, 64)
		if err != nil || hours <= 0 {
			errs = append(errs, fmt.Errorf("CONVERSATION_TIMEOUT_HOURS %q is not a positive number", raw))
		} else {
			s.ConversationTTL = time.Duration(hours * float64(time.Hour))
		}
	}

	if raw := get("MAX_CONVERSATION_TURNS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("MAX_CONVERSATION_TURNS %q is not a positive integer", raw))
		} else {
			s.MaxConversationTurns = n
		}
	}

	for kind, envVar := range allowListVars {
		raw := get(envVar)
		if raw == "" {
			continue
		}
		var list []string
		for _, entry := range strings.Split(raw, ",") {
			if entry = strings.TrimSpace(entry); entry != "" {
				list = append(list, entry)
			}
		}
		s.AllowedModels[kind] = list
	}

	if s.DIAL.APIKey != "" && s.DIAL.Host == "" {
		errs = append(errs, errors.New("DIAL_API_KEY is set but DIAL_API_HOST is empty"))
	}
	if s.Custom.DefaultModel != "" && s.Custom.BaseURL == "" {
		errs = append(errs, errors.New("CUSTOM_MODEL_NAME is set but CUSTOM_API_URL is empty"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return s, nil
}

// modelsFile is the registry file schema. YAML is a superset of JSON, so the
// strict decoder accepts either serialisation of the same document.
type modelsFile struct {
	Models []modelEntry `yaml:"models" json:"models"`
}

// modelEntry declares the capabilities of one model served by the custom (or
// OpenRouter) endpoint.
type modelEntry struct {
	ModelName           string   `yaml:"model_name" json:"model_name"`
	Aliases             []string `yaml:"aliases" json:"aliases"`
	ContextWindow       int      `yaml:"context_window" json:"context_window"`
	MaxOutputTokens     int      `yaml:"max_output_tokens" json:"max_output_tokens"`
	SupportsExtendedThinking bool `yaml:"supports_extended_thinking" json:"supports_extended_thinking"`
	SupportsJSONMode    bool     `yaml:"supports_json_mode" json:"supports_json_mode"`
	SupportsSystemPrompt *bool   `yaml:"supports_system_prompts" json:"supports_system_prompts"`
	SupportsImages      bool     `yaml:"supports_images" json:"supports_images"`
	MaxImageSizeMB      float64  `yaml:"max_image_size_mb" json:"max_image_size_mb"`
	Description         string   `yaml:"description" json:"description"`
}

// LoadModelsFile reads the custom model registry at path and converts it to
// capability records for the given provider kind. Unknown fields are a load
// error so that typos in capability names surface immediately.
func LoadModelsFile(path string, kind llm.ProviderKind) ([]llm.Capability, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open models file %q: %w", path, err)
	}
	defer f.Close()

	caps, err := loadModelsFrom(f, kind)
	if err != nil {
		return nil, fmt.Errorf("config: models file %q: %w", path, err)
	}
	return caps, nil
}

// loadModelsFrom decodes and validates a registry document from r.
func loadModelsFrom(r io.Reader, kind llm.ProviderKind) ([]llm.Capability, error) {
	var file modelsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	var errs []error
	caps := make([]llm.Capability, 0, len(file.Models))
	for i, entry := range file.Models {
		prefix := fmt.Sprintf("models[%d]", i)
		if entry.ModelName == "" {
			errs = append(errs, fmt.Errorf("%s.model_name is required", prefix))
			continue
		}
		if entry.ContextWindow <= 0 {
			errs = append(errs, fmt.Errorf("%s (%s): context_window must be positive", prefix, entry.ModelName))
			continue
		}

		maxOut := entry.MaxOutputTokens
		if maxOut <= 0 {
			maxOut = entry.ContextWindow / 4
		}
		systemPrompt := true
		if entry.SupportsSystemPrompt != nil {
			systemPrompt = *entry.SupportsSystemPrompt
		}
		maxImages := 0
		if entry.SupportsImages {
			maxImages = 5
		}

		caps = append(caps, llm.Capability{
			Name:                 entry.ModelName,
			FriendlyName:         fmt.Sprintf("%s (%s)", titleKind(kind), entry.ModelName),
			Aliases:              entry.Aliases,
			Kind:                 kind,
			ContextWindow:        entry.ContextWindow,
			MaxOutputTokens:      maxOut,
			SupportsThinking:     entry.SupportsExtendedThinking,
			SupportsTemperature:  true,
			Temperature:          llm.TemperatureRange{Min: 0, Max: 2},
			SupportsImages:       entry.SupportsImages,
			MaxImages:            maxImages,
			MaxImageSizeMB:       entry.MaxImageSizeMB,
			SupportsJSONMode:     entry.SupportsJSONMode,
			SupportsSystemPrompt: systemPrompt,
			Description:          entry.Description,
		})
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return caps, nil
}

// titleKind renders a provider kind for friendly names ("custom" → "Custom").
func titleKind(kind llm.ProviderKind) string {
	s := string(kind)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
