package core

// Part represents a polymorphic segment of message content. Concrete part
// types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text string `json:"text"`
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// ImagePart references an image, either inlined (base64 or data URI) or by URL.
type ImagePart struct {
	Image    string `json:"image"`
	MimeType string `json:"mimeType,omitempty"`
}

// isPart implements the Part interface for ImagePart.
func (ImagePart) isPart() {}

// FilePart is an arbitrary file attachment segment with inlined data.
type FilePart struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

// isPart implements the Part interface for FilePart.
func (FilePart) isPart() {}

// ToolCall describes a tool invocation requested by a model.
type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"` // Serialized JSON argument payload
}

// ToolCallPart wraps a ToolCall as a content part so a requested invocation
// can be replayed into subsequent model turns.
type ToolCallPart struct {
	ToolCall ToolCall `json:"toolCall"`
}

// isPart implements the Part interface for ToolCallPart.
func (ToolCallPart) isPart() {}

// ToolResult describes the outcome of a tool invocation.
type ToolResult struct {
	ID     string `json:"id,omitempty"` // Matches the originating ToolCall ID
	Name   string `json:"name"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"` // Populated on failure
}

// ToolResultPart wraps a ToolResult as a content part.
type ToolResultPart struct {
	ToolResult ToolResult `json:"toolResult"`
}

// isPart implements the Part interface for ToolResultPart.
func (ToolResultPart) isPart() {}
