package llm

// ProviderKind identifies a provider family.
type ProviderKind string

const (
	KindGoogle     ProviderKind = "google"
	KindOpenAI     ProviderKind = "openai"
	KindXAI        ProviderKind = "xai"
	KindOpenRouter ProviderKind = "openrouter"
	KindDIAL       ProviderKind = "dial"
	KindCustom     ProviderKind = "custom"
)

// IsValid reports whether k is a recognised provider kind.
func (k ProviderKind) IsValid() bool {
	switch k {
	case KindGoogle, KindOpenAI, KindXAI, KindOpenRouter, KindDIAL, KindCustom:
		return true
	}
	return false
}

// KindPrecedence is the model-resolution order. Native providers are
// consulted before aggregators so that a bare model name binds to the
// vendor's own API when both could serve it.
var KindPrecedence = []ProviderKind{
	KindGoogle,
	KindOpenAI,
	KindXAI,
	KindDIAL,
	KindCustom,
	KindOpenRouter,
}
