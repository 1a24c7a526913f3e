// Package anthropic adapts the Anthropic Messages API to the model
// interfaces. Anthropic offers no image or speech endpoints, so the provider
// hands out language models only.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/promptwire/promptwire/core"
	"github.com/promptwire/promptwire/model"
)

// The Messages API requires max_tokens on every request; this is the value
// used when the prompt sets none.
const defaultMaxTokens = 4096

// Options configure the Anthropic provider. Per-call credentials from the
// adapt options take precedence over these.
type Options struct {
	APIKey  string
	BaseURL string
}

// Provider hands out Anthropic-backed model handles by name.
type Provider struct {
	opts Options
}

// NewProvider creates an Anthropic provider.
func NewProvider(optFns ...func(o *Options)) *Provider {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{opts: opts}
}

func (p *Provider) client(adaptOpts *core.AdaptOptions) *anthropic.Client {
	var reqOpts []option.RequestOption

	apiKey := p.opts.APIKey
	baseURL := p.opts.BaseURL
	if adaptOpts != nil {
		if adaptOpts.APIKey != "" {
			apiKey = adaptOpts.APIKey
		}
		if adaptOpts.BaseURL != "" {
			baseURL = adaptOpts.BaseURL
		}
	}
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}

	client := anthropic.NewClient(reqOpts...)
	return &client
}

// LanguageModel implements model.Provider.
func (p *Provider) LanguageModel(name string, adaptOpts *core.AdaptOptions) (model.LanguageModel, error) {
	return &LanguageModel{client: p.client(adaptOpts), name: name}, nil
}

// ImageModel implements model.Provider.
func (p *Provider) ImageModel(string, *core.AdaptOptions) (model.ImageModel, error) {
	return nil, errors.New("anthropic does not provide image models")
}

// SpeechModel implements model.Provider.
func (p *Provider) SpeechModel(string, *core.AdaptOptions) (model.SpeechModel, error) {
	return nil, errors.New("anthropic does not provide speech models")
}

// LanguageModel wraps the Messages API behind model.LanguageModel.
type LanguageModel struct {
	client *anthropic.Client
	name   string
}

// NewLanguageModel creates a language model from an existing client, mostly
// for direct registry registration.
func NewLanguageModel(client *anthropic.Client, name string) *LanguageModel {
	return &LanguageModel{client: client, name: name}
}

// Generate implements model.LanguageModel.
func (m *LanguageModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := m.buildParams(req)
		if req.Stream {
			m.generateStreaming(ctx, req, params, out, errCh)
			return
		}
		m.generateOnce(ctx, req, params, out, errCh)
	}()

	return out, errCh
}

// Info implements model.LanguageModel.
func (m *LanguageModel) Info() model.Info {
	return model.Info{Name: m.name, Provider: "anthropic"}
}

// buildParams assembles the Messages API parameters. Settings map only when
// present; penalties and seed have no Messages API counterpart and are
// dropped.
func (m *LanguageModel) buildParams(req model.Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.name),
		Messages:  buildMessages(req.Messages),
		MaxTokens: defaultMaxTokens,
	}

	s := req.Settings
	if s.MaxTokens != nil {
		params.MaxTokens = int64(*s.MaxTokens)
	}
	if s.Temperature != nil {
		params.Temperature = anthropic.Float(*s.Temperature)
	}
	if s.TopP != nil {
		params.TopP = anthropic.Float(*s.TopP)
	}
	if s.TopK != nil {
		params.TopK = anthropic.Int(int64(*s.TopK))
	}
	if len(s.StopSequences) > 0 {
		params.StopSequences = s.StopSequences
	}

	if systemBlocks := extractSystem(req.Messages); len(systemBlocks) > 0 {
		params.System = systemBlocks
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	return params
}

// buildMessages converts normalized messages. System messages are handled
// separately; tool results attach as tool_result blocks of a user turn, as
// the Messages API requires.
func buildMessages(messages []core.ChatMessage) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, msg := range messages {
		switch msg.Role {
		case core.RoleSystem:
			continue
		case core.RoleAssistant:
			if content := assistantContent(msg); len(content) > 0 {
				out = append(out, anthropic.NewAssistantMessage(content...))
			}
		case core.RoleTool:
			var content []anthropic.ContentBlockParamUnion
			for _, p := range msg.Parts {
				tr, ok := p.(core.ToolResultPart)
				if !ok {
					continue
				}
				content = append(content, anthropic.NewToolResultBlock(
					tr.ToolResult.ID,
					toolResultText(tr.ToolResult),
					tr.ToolResult.Error != "",
				))
			}
			if len(content) > 0 {
				out = append(out, anthropic.NewUserMessage(content...))
			}
		default:
			if text := msg.PlainText(); text != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
			}
		}
	}
	return out
}

func assistantContent(msg core.ChatMessage) []anthropic.ContentBlockParamUnion {
	var content []anthropic.ContentBlockParamUnion
	if text := msg.Text; text != "" {
		content = append(content, anthropic.NewTextBlock(text))
	}
	for _, p := range msg.Parts {
		switch part := p.(type) {
		case core.TextPart:
			if part.Text != "" {
				content = append(content, anthropic.NewTextBlock(part.Text))
			}
		case core.ToolCallPart:
			var input any
			if part.ToolCall.Arguments != "" {
				if err := json.Unmarshal([]byte(part.ToolCall.Arguments), &input); err != nil {
					input = part.ToolCall.Arguments
				}
			}
			content = append(content, anthropic.NewToolUseBlock(part.ToolCall.ID, input, part.ToolCall.Name))
		}
	}
	return content
}

func extractSystem(messages []core.ChatMessage) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, msg := range messages {
		if msg.Role != core.RoleSystem {
			continue
		}
		if text := msg.PlainText(); text != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: text})
		}
	}
	return blocks
}

func toolResultText(tr core.ToolResult) string {
	if tr.Error != "" {
		return tr.Error
	}
	if s, ok := tr.Result.(string); ok {
		return s
	}
	data, err := json.Marshal(tr.Result)
	if err != nil {
		return fmt.Sprintf("%v", tr.Result)
	}
	return string(data)
}

func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, tdef := range tools {
		schema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if tdef.Parameters != nil {
			if properties, ok := tdef.Parameters["properties"]; ok {
				schema.Properties = properties
			}
			schema.Required = requiredNames(tdef.Parameters["required"])
		}
		out[i] = anthropic.ToolUnionParamOfTool(schema, tdef.Name)
	}
	return out
}

func requiredNames(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		var names []string
		for _, r := range req {
			if s, ok := r.(string); ok {
				names = append(names, s)
			}
		}
		return names
	default:
		return nil
	}
}

func (m *LanguageModel) generateStreaming(
	ctx context.Context,
	req model.Request,
	params anthropic.MessageNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Messages.NewStreaming(ctx, params)

	acc := anthropic.Message{}
	var textBuf string

	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			errCh <- fmt.Errorf("anthropic streaming error: %w", err)
			return
		}

		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta := ev.Delta.Text; delta != "" {
				textBuf += delta
				resp := model.Response{Partial: true, Delta: delta}
				if req.Schema != nil {
					resp.Object = parseObject(textBuf)
				}
				out <- resp
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("anthropic streaming error: %w", err)
		return
	}

	emitToolCalls(acc.Content, out)

	final := model.Response{
		FinishReason: finishReason(acc.StopReason),
		Usage:        convertUsage(acc.Usage),
	}
	if req.Schema != nil {
		final.Object = parseObject(textBuf)
	}
	out <- final
}

func (m *LanguageModel) generateOnce(
	ctx context.Context,
	req model.Request,
	params anthropic.MessageNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		errCh <- fmt.Errorf("anthropic api error: %w", err)
		return
	}

	var textBuf string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text := block.AsText().Text
			if text == "" {
				continue
			}
			textBuf += text
			event := model.Response{Partial: true, Delta: text}
			if req.Schema != nil {
				event.Object = parseObject(textBuf)
			}
			out <- event
		}
	}

	emitToolCalls(resp.Content, out)

	final := model.Response{
		FinishReason: finishReason(resp.StopReason),
		Usage:        convertUsage(resp.Usage),
	}
	if req.Schema != nil {
		final.Object = parseObject(textBuf)
	}
	out <- final
}

func emitToolCalls(content []anthropic.ContentBlockUnion, out chan<- model.Response) {
	for _, block := range content {
		if block.Type != "tool_use" {
			continue
		}
		toolBlock := block.AsToolUse()
		args := json.RawMessage("{}")
		if toolBlock.Input != nil {
			if data, err := json.Marshal(toolBlock.Input); err == nil {
				args = data
			}
		}
		out <- model.Response{Partial: true, ToolCall: &model.ToolCallEvent{
			ID:        toolBlock.ID,
			Name:      toolBlock.Name,
			Arguments: args,
		}}
	}
}

// finishReason maps Anthropic stop reasons onto the normalized vocabulary.
func finishReason(reason anthropic.StopReason) string {
	switch reason {
	case anthropic.StopReasonToolUse:
		return "tool_calls"
	case anthropic.StopReasonMaxTokens:
		return "length"
	case "":
		return "stop"
	default:
		return "stop"
	}
}

func convertUsage(u anthropic.Usage) *model.TokenUsage {
	return &model.TokenUsage{
		PromptTokens:     int(u.InputTokens),
		CompletionTokens: int(u.OutputTokens),
		TotalTokens:      int(u.InputTokens + u.OutputTokens),
	}
}

func parseObject(s string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil
	}
	return obj
}
