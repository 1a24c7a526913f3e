package model

import (
	"context"
	"encoding/json"

	"github.com/promptwire/promptwire/core"
)

// Settings are the fully-resolved generation settings forwarded to a model.
// Pointer fields mirror the source configuration: nil means the caller never
// set the value and providers must fall back to their own defaults.
type Settings struct {
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	TopK             *int     `json:"top_k,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	StopSequences    []string `json:"stop_sequences,omitempty"`
	Seed             *int     `json:"seed,omitempty"`
}

// ToolDefinition declaratively exposes a callable tool to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures one normalized model invocation.
type Request struct {
	Messages          []core.ChatMessage `json:"messages"`
	Settings          Settings           `json:"settings"`
	Tools             []ToolDefinition   `json:"tools,omitempty"`
	Schema            map[string]any     `json:"schema,omitempty"` // Structured output schema (object kind)
	SchemaName        *string            `json:"schema_name,omitempty"`
	SchemaDescription *string            `json:"schema_description,omitempty"`
	Stream            bool               `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// ToolCallEvent is a model-requested tool invocation surfaced mid-stream.
type ToolCallEvent struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResultEvent reports the outcome of executing a requested tool call.
type ToolResultEvent struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Response is a (partial or final) event emitted by a generating model. At
// most one of Delta, Object, ToolCall and ToolResult is set per event; the
// final event of a stream carries FinishReason and Usage. Object always holds
// the latest complete partial state, not an increment.
type Response struct {
	Partial      bool             `json:"partial"`
	Delta        string           `json:"delta,omitempty"`
	Object       map[string]any   `json:"object,omitempty"`
	ToolCall     *ToolCallEvent   `json:"toolCall,omitempty"`
	ToolResult   *ToolResultEvent `json:"toolResult,omitempty"`
	FinishReason string           `json:"finishReason,omitempty"` // "stop", "length", "tool_calls", ...
	Usage        *TokenUsage      `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// LanguageModel is the invocation engine contract for text and object
// generation. Generate returns immediately; events arrive on the response
// channel and a terminal failure on the error channel. Both channels are
// closed by the implementation.
type LanguageModel interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// ImageRequest is one image generation invocation.
type ImageRequest struct {
	Prompt      string  `json:"prompt"`
	NumImages   *int    `json:"num_images,omitempty"`
	Size        *string `json:"size,omitempty"`
	AspectRatio *string `json:"aspect_ratio,omitempty"`
	Seed        *int    `json:"seed,omitempty"`
}

// GeneratedImage is one produced image, base64 encoded.
type GeneratedImage struct {
	Base64   string `json:"base64"`
	MimeType string `json:"mimeType,omitempty"`
}

// ImageResult is the outcome of an image generation invocation.
type ImageResult struct {
	Images []GeneratedImage `json:"images"`
}

// ImageModel generates images from a prompt.
type ImageModel interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error)
	Info() Info
}

// SpeechRequest is one speech synthesis invocation.
type SpeechRequest struct {
	Text         string   `json:"text"`
	Voice        *string  `json:"voice,omitempty"`
	OutputFormat *string  `json:"output_format,omitempty"`
	Speed        *float64 `json:"speed,omitempty"`
}

// SpeechResult is the synthesized audio.
type SpeechResult struct {
	Audio    []byte `json:"audio"`
	MimeType string `json:"mimeType,omitempty"`
}

// SpeechModel synthesizes speech from text.
type SpeechModel interface {
	GenerateSpeech(ctx context.Context, req SpeechRequest) (*SpeechResult, error)
	Info() Info
}
