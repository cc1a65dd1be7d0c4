package tools

import "encoding/json"

// Well-known envelope statuses. Workflow tools add their own pause and
// completion statuses on top of these.
const (
	StatusSuccess               = "success"
	StatusError                 = "error"
	StatusContinuationAvailable = "continuation_available"
	StatusRequiresClarification = "requires_clarification"
	StatusRequiresFilePrompt    = "requires_file_prompt"
	StatusConsensusSuccess      = "consensus_success"
	StatusConsensusFailed       = "consensus_failed"
)

// Content types carried by the envelope.
const (
	ContentText     = "text"
	ContentMarkdown = "markdown"
	ContentJSON     = "json"
)

// Envelope is the uniform tool response returned to the MCP host. Workflow
// responses carry additional top-level fields through Extra.
type Envelope struct {
	Status         string
	Content        string
	ContentType    string
	Metadata       map[string]any
	ContinuationID string

	// Extra fields are merged into the top-level JSON object (step_number,
	// required_actions, expert_analysis, complete_<tool>, ...).
	Extra map[string]any
}

// MarshalJSON flattens Extra into the top-level object.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 5+len(e.Extra))
	out["status"] = e.Status
	if e.Content != "" {
		out["content"] = e.Content
	}
	if e.ContentType != "" {
		out["content_type"] = e.ContentType
	}
	if len(e.Metadata) > 0 {
		out["metadata"] = e.Metadata
	}
	if e.ContinuationID != "" {
		out["continuation_id"] = e.ContinuationID
	}
	for k, v := range e.Extra {
		out[k] = v
	}
	return json.Marshal(out)
}

// ErrorEnvelope builds a plain-text error envelope.
func ErrorEnvelope(msg string) *Envelope {
	return &Envelope{Status: StatusError, Content: msg, ContentType: ContentText}
}

// AddWarning appends a warning string to the envelope's metadata.
func (e *Envelope) AddWarning(w string) {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	warnings, _ := e.Metadata["warnings"].([]string)
	e.Metadata["warnings"] = append(warnings, w)
}
