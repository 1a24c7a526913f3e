package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies the author of a chat message.
type Role string

// Conversation roles produced by the external compiler or by promptwire
// itself during tool round-trips.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ChatMessage is one entry of a normalized prompt's message list. Content is
// either plain text or an ordered list of heterogeneous parts; both shapes
// round-trip through JSON unchanged.
type ChatMessage struct {
	Role  Role   `json:"role"`
	Text  string `json:"-"` // Plain content when Parts is empty
	Parts []Part `json:"-"` // Multipart content, mutually exclusive with Text
}

// NewTextMessage builds a plain text message for the given role.
func NewTextMessage(role Role, text string) ChatMessage {
	return ChatMessage{Role: role, Text: text}
}

// PlainText flattens the message content to text, joining text parts with
// newlines. Non-text parts are skipped.
func (m ChatMessage) PlainText() string {
	if len(m.Parts) == 0 {
		return m.Text
	}
	var texts []string
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			texts = append(texts, tp.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// MarshalJSON serializes content as a plain string when possible and as a part
// list otherwise.
func (m ChatMessage) MarshalJSON() ([]byte, error) {
	if len(m.Parts) == 0 {
		return json.Marshal(struct {
			Role    Role   `json:"role"`
			Content string `json:"content"`
		}{m.Role, m.Text})
	}
	parts := make([]any, 0, len(m.Parts))
	for _, p := range m.Parts {
		parts = append(parts, taggedPart(p))
	}
	return json.Marshal(struct {
		Role    Role  `json:"role"`
		Content []any `json:"content"`
	}{m.Role, parts})
}

// UnmarshalJSON accepts both the string and the part-list content shape.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    Role            `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role
	m.Parts = nil
	m.Text = ""
	if len(raw.Content) == 0 {
		return nil
	}
	if raw.Content[0] == '"' {
		return json.Unmarshal(raw.Content, &m.Text)
	}
	var rawParts []json.RawMessage
	if err := json.Unmarshal(raw.Content, &rawParts); err != nil {
		return fmt.Errorf("invalid message content: %w", err)
	}
	for _, rp := range rawParts {
		part, err := unmarshalPart(rp)
		if err != nil {
			return err
		}
		m.Parts = append(m.Parts, part)
	}
	return nil
}

type partEnvelope struct {
	Type string `json:"type"`
}

func taggedPart(p Part) any {
	switch v := p.(type) {
	case TextPart:
		return struct {
			Type string `json:"type"`
			TextPart
		}{"text", v}
	case ImagePart:
		return struct {
			Type string `json:"type"`
			ImagePart
		}{"image", v}
	case FilePart:
		return struct {
			Type string `json:"type"`
			FilePart
		}{"file", v}
	case ToolCallPart:
		return struct {
			Type string `json:"type"`
			ToolCallPart
		}{"tool-call", v}
	case ToolResultPart:
		return struct {
			Type string `json:"type"`
			ToolResultPart
		}{"tool-result", v}
	default:
		return p
	}
}

func unmarshalPart(data json.RawMessage) (Part, error) {
	var env partEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Type {
	case "text":
		var p TextPart
		return p, json.Unmarshal(data, &p)
	case "image":
		var p ImagePart
		return p, json.Unmarshal(data, &p)
	case "file":
		var p FilePart
		return p, json.Unmarshal(data, &p)
	case "tool-call":
		var p ToolCallPart
		return p, json.Unmarshal(data, &p)
	case "tool-result":
		var p ToolResultPart
		return p, json.Unmarshal(data, &p)
	default:
		return nil, fmt.Errorf("unknown content part type %q", env.Type)
	}
}
