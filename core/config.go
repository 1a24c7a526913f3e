package core

import (
	"encoding/json"
	"fmt"
)

// PromptKind discriminates the four supported generation request kinds.
type PromptKind string

// Supported prompt kinds.
const (
	KindText   PromptKind = "text"
	KindObject PromptKind = "object"
	KindImage  PromptKind = "image"
	KindSpeech PromptKind = "speech"
)

// PromptConfig is implemented by every normalized prompt configuration.
type PromptConfig interface {
	Kind() PromptKind
	PromptName() string
}

// ToolEntry is one declared tool of a text prompt. Either Remote holds an
// mcp://server/tool reference string, or Inline holds a full definition.
// Entries keep declaration order, which governs resolution order.
type ToolEntry struct {
	Alias  string         `json:"alias"`
	Remote string         `json:"remote,omitempty"`
	Inline *InlineToolDef `json:"inline,omitempty"`
}

// InlineToolDef is an inline tool declaration: schema and description only,
// the implementation is looked up in the local tool registry at adapt time.
type InlineToolDef struct {
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// TextSettings holds the model selection and optional generation settings of
// a text prompt. Optional fields are pointers so an explicit zero survives
// adaptation while an absent field stays absent.
type TextSettings struct {
	ModelName        string      `json:"model_name"`
	MaxTokens        *int        `json:"max_tokens,omitempty"`
	Temperature      *float64    `json:"temperature,omitempty"`
	TopP             *float64    `json:"top_p,omitempty"`
	TopK             *int        `json:"top_k,omitempty"`
	PresencePenalty  *float64    `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64    `json:"frequency_penalty,omitempty"`
	StopSequences    []string    `json:"stop_sequences,omitempty"`
	Seed             *int        `json:"seed,omitempty"`
	Tools            []ToolEntry `json:"tools,omitempty"`
}

// ObjectSettings extends the text settings with a verbatim JSON schema for
// structured output.
type ObjectSettings struct {
	ModelName         string         `json:"model_name"`
	MaxTokens         *int           `json:"max_tokens,omitempty"`
	Temperature       *float64       `json:"temperature,omitempty"`
	TopP              *float64       `json:"top_p,omitempty"`
	TopK              *int           `json:"top_k,omitempty"`
	PresencePenalty   *float64       `json:"presence_penalty,omitempty"`
	FrequencyPenalty  *float64       `json:"frequency_penalty,omitempty"`
	StopSequences     []string       `json:"stop_sequences,omitempty"`
	Seed              *int           `json:"seed,omitempty"`
	Schema            map[string]any `json:"schema"`
	SchemaName        *string        `json:"schema_name,omitempty"`
	SchemaDescription *string        `json:"schema_description,omitempty"`
}

// ImageSettings holds model selection and optional parameters for image
// generation prompts.
type ImageSettings struct {
	ModelName   string  `json:"model_name"`
	NumImages   *int    `json:"num_images,omitempty"`
	Size        *string `json:"size,omitempty"`         // e.g. "1024x1024"
	AspectRatio *string `json:"aspect_ratio,omitempty"` // e.g. "1:1"
	Seed        *int    `json:"seed,omitempty"`
}

// SpeechSettings holds model selection and optional parameters for speech
// synthesis prompts.
type SpeechSettings struct {
	ModelName    string   `json:"model_name"`
	Voice        *string  `json:"voice,omitempty"`
	OutputFormat *string  `json:"output_format,omitempty"`
	Speed        *float64 `json:"speed,omitempty"`
}

// TextConfig is a normalized text generation prompt.
type TextConfig struct {
	Name     string         `json:"name"`
	Messages []ChatMessage  `json:"messages"`
	Text     TextSettings   `json:"text_config"`
	Metadata map[string]any `json:"metadata,omitempty"` // Prompt-level metadata
}

// Kind implements PromptConfig.
func (TextConfig) Kind() PromptKind { return KindText }

// PromptName implements PromptConfig.
func (c TextConfig) PromptName() string { return c.Name }

// ObjectConfig is a normalized structured output prompt.
type ObjectConfig struct {
	Name     string         `json:"name"`
	Messages []ChatMessage  `json:"messages"`
	Object   ObjectSettings `json:"object_config"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Kind implements PromptConfig.
func (ObjectConfig) Kind() PromptKind { return KindObject }

// PromptName implements PromptConfig.
func (c ObjectConfig) PromptName() string { return c.Name }

// ImageConfig is a normalized image generation prompt.
type ImageConfig struct {
	Name     string         `json:"name"`
	Prompt   string         `json:"prompt"`
	Image    ImageSettings  `json:"image_config"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Kind implements PromptConfig.
func (ImageConfig) Kind() PromptKind { return KindImage }

// PromptName implements PromptConfig.
func (c ImageConfig) PromptName() string { return c.Name }

// SpeechConfig is a normalized speech synthesis prompt.
type SpeechConfig struct {
	Name     string         `json:"name"`
	Prompt   string         `json:"prompt"`
	Speech   SpeechSettings `json:"speech_config"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Kind implements PromptConfig.
func (SpeechConfig) Kind() PromptKind { return KindSpeech }

// PromptName implements PromptConfig.
func (c SpeechConfig) PromptName() string { return c.Name }

// UnmarshalJSON for ToolEntry also accepts the compact map form
// {"alias": "mcp://..."} and {"alias": {description, parameters}} emitted by
// some compilers, normalizing it into the tagged struct.
func (e *ToolEntry) UnmarshalJSON(data []byte) error {
	type alias ToolEntry
	var tagged alias
	if err := json.Unmarshal(data, &tagged); err == nil && tagged.Alias != "" {
		*e = ToolEntry(tagged)
		return nil
	}
	var compact map[string]json.RawMessage
	if err := json.Unmarshal(data, &compact); err != nil {
		return err
	}
	if len(compact) != 1 {
		return fmt.Errorf("tool entry must declare exactly one alias, got %d", len(compact))
	}
	for name, raw := range compact {
		e.Alias = name
		if len(raw) > 0 && raw[0] == '"' {
			return json.Unmarshal(raw, &e.Remote)
		}
		e.Inline = &InlineToolDef{}
		return json.Unmarshal(raw, e.Inline)
	}
	return nil
}
