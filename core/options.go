package core

// TelemetryOptions asks the adapter to attach a tracing metadata block to the
// resolved invocation.
type TelemetryOptions struct {
	Enabled    bool           `json:"isEnabled"`
	FunctionID string         `json:"functionId,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"` // Caller-level metadata, wins over prompt-level keys
}

// AdaptOptions carry per-call inputs to adaptation. They are never persisted
// and never outlive the adapt call that received them.
type AdaptOptions struct {
	Telemetry   *TelemetryOptions
	APIKey      string         // Forwarded to model builders
	BaseURL     string         // Forwarded to model builders
	Props       map[string]any // Caller-visible properties, serialized into telemetry metadata
	ToolContext map[string]any // Passed to every tool invocation of this call
}
