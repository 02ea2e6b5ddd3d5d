// Canonical interface definitions live here, at the API boundary, so that
// internal packages can depend on them without importing one another.
package schemas

import (
	"context"
)

// -- LLM Client Schemas & Interface --

// ModelTier allows for selecting a large language model based on a preference
// for speed versus advanced capabilities.
type ModelTier string

const (
	TierFast     ModelTier = "fast"     // Prefers a faster, potentially less capable model.
	TierPowerful ModelTier = "powerful" // Prefers a more capable, potentially slower model.
)

// GenerationOptions provides detailed parameters to control the text
// generation process of the LLM.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`       // Controls randomness. Lower is more deterministic.
	ForceJSONFormat bool    `json:"force_json_format"` // If true, forces the model to output valid JSON.
	TopP            float64 `json:"top_p"`             // Nucleus sampling parameter.
	TopK            int     `json:"top_k"`             // Top-k sampling parameter.
	MaxTokens       int     `json:"max_tokens"`        // Caps the response length. Zero means provider default.
}

// GenerationRequest encapsulates a complete request to the LLM, including the
// system and user prompts, the desired model tier, and generation options.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"` // Instructions for the model's persona and task.
	UserPrompt   string            `json:"user_prompt"`   // The specific query or input from the user.
	Tier         ModelTier         `json:"tier"`          // The desired model tier (fast or powerful).
	Options      GenerationOptions `json:"options"`       // Advanced generation parameters.
}

// LLMClient defines a standard interface for interacting with a Large
// Language Model, abstracting the specifics of the underlying provider. The
// oracle behind this interface is treated as untrusted: its output is always
// validated before it drives any action.
type LLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close cleans up any resources held by the client.
	Close() error
}

// -- Session Interface --

// SessionManager owns the lifecycle of the one shared browser resource. The
// three-layer liveness logic (engine, isolated context, active page) stays
// hidden behind it.
type SessionManager interface {
	// GetHandle returns a context bound to a live page, self-healing any dead
	// layer first. It fails only when even a cold start is impossible.
	GetHandle(ctx context.Context) (context.Context, error)
	// Reset forcibly tears down every layer and cold-starts a fresh session.
	Reset(ctx context.Context) error
	// IsReady reports whether a live page handle currently exists.
	IsReady() bool
	// Close releases the browser entirely.
	Close(ctx context.Context) error
}

// -- Store Interface --

// RunStore persists run reports for later audit. A nil store disables
// persistence.
type RunStore interface {
	SaveRun(ctx context.Context, report *RunReport) error
	GetRun(ctx context.Context, id string) (*RunReport, error)
	ListRecentRuns(ctx context.Context, limit int) ([]RunReport, error)
}
