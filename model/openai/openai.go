// Package openai adapts the OpenAI API to the model interfaces: Chat
// Completions (streaming + tool calling + structured output) for language
// generation, the Images API for image generation, and the Audio API for
// speech synthesis. Normalized requests are translated into SDK parameters
// and SDK events back into model.Response values.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/promptwire/promptwire/core"
	"github.com/promptwire/promptwire/model"
)

// Options configure the OpenAI provider. Per-call credentials from the
// adapt options take precedence over these.
type Options struct {
	APIKey  string
	BaseURL string
}

// Provider hands out OpenAI-backed model handles by name.
type Provider struct {
	opts Options
}

// NewProvider creates an OpenAI provider.
func NewProvider(optFns ...func(o *Options)) *Provider {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{opts: opts}
}

func (p *Provider) client(adaptOpts *core.AdaptOptions) *openai.Client {
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

	client := openai.NewClient(reqOpts...)
	return &client
}

// LanguageModel implements model.Provider.
func (p *Provider) LanguageModel(name string, adaptOpts *core.AdaptOptions) (model.LanguageModel, error) {
	return &LanguageModel{client: p.client(adaptOpts), name: name}, nil
}

// ImageModel implements model.Provider.
func (p *Provider) ImageModel(name string, adaptOpts *core.AdaptOptions) (model.ImageModel, error) {
	return &ImageModel{client: p.client(adaptOpts), name: name}, nil
}

// SpeechModel implements model.Provider.
func (p *Provider) SpeechModel(name string, adaptOpts *core.AdaptOptions) (model.SpeechModel, error) {
	return &SpeechModel{client: p.client(adaptOpts), name: name}, nil
}

// LanguageModel wraps Chat Completions behind model.LanguageModel.
type LanguageModel struct {
	client *openai.Client
	name   string
}

// NewLanguageModel creates a language model from an existing client, mostly
// for direct registry registration.
func NewLanguageModel(client *openai.Client, name string) *LanguageModel {
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
	return model.Info{Name: m.name, Provider: "openai"}
}

// buildParams assembles the Chat Completion parameters. Settings map only
// when present, so unset values fall back to API defaults. TopK has no Chat
// Completions counterpart and is dropped.
func (m *LanguageModel) buildParams(req model.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages: buildMessages(req.Messages),
		Model:    m.name,
	}

	s := req.Settings
	if s.Temperature != nil {
		params.Temperature = openai.Float(*s.Temperature)
	}
	if s.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*s.MaxTokens))
	}
	if s.TopP != nil {
		params.TopP = openai.Float(*s.TopP)
	}
	if s.PresencePenalty != nil {
		params.PresencePenalty = openai.Float(*s.PresencePenalty)
	}
	if s.FrequencyPenalty != nil {
		params.FrequencyPenalty = openai.Float(*s.FrequencyPenalty)
	}
	if s.Seed != nil {
		params.Seed = openai.Int(int64(*s.Seed))
	}
	if len(s.StopSequences) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: s.StopSequences}
	}

	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
		for i, tdef := range req.Tools {
			tools[i] = openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        tdef.Name,
					Description: openai.String(tdef.Description),
					Parameters:  openai.FunctionParameters(tdef.Parameters),
				},
			}
		}
		params.Tools = tools
	}

	if req.Schema != nil {
		schemaName := "output"
		if req.SchemaName != nil {
			schemaName = *req.SchemaName
		}
		jsonSchema := openai.ResponseFormatJSONSchemaJSONSchemaParam{
			Name:   schemaName,
			Schema: req.Schema,
		}
		if req.SchemaDescription != nil {
			jsonSchema.Description = openai.String(*req.SchemaDescription)
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: jsonSchema},
		}
	}

	return params
}

// buildMessages converts normalized messages into chat messages. Tool
// round-trip parts become assistant tool calls followed by tool messages.
func buildMessages(messages []core.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion
	for _, msg := range messages {
		switch msg.Role {
		case core.RoleSystem:
			out = append(out, openai.SystemMessage(msg.PlainText()))
		case core.RoleUser:
			out = append(out, openai.UserMessage(msg.PlainText()))
		case core.RoleAssistant:
			toolCalls := extractToolCalls(msg)
			if len(toolCalls) == 0 {
				out = append(out, openai.AssistantMessage(msg.PlainText()))
				continue
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: toolCalls,
				},
			})
		case core.RoleTool:
			for _, p := range msg.Parts {
				tr, ok := p.(core.ToolResultPart)
				if !ok {
					continue
				}
				out = append(out, openai.ToolMessage(toolResultText(tr.ToolResult), tr.ToolResult.ID))
			}
		default:
			if text := msg.PlainText(); text != "" {
				out = append(out, openai.UserMessage(text))
			}
		}
	}
	return out
}

func extractToolCalls(msg core.ChatMessage) []openai.ChatCompletionMessageToolCallParam {
	var calls []openai.ChatCompletionMessageToolCallParam
	for _, p := range msg.Parts {
		tc, ok := p.(core.ToolCallPart)
		if !ok {
			continue
		}
		calls = append(calls, openai.ChatCompletionMessageToolCallParam{
			ID:   tc.ToolCall.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.ToolCall.Name,
				Arguments: tc.ToolCall.Arguments,
			},
		})
	}
	return calls
}

func toolResultText(tr core.ToolResult) string {
	if tr.Error != "" {
		return fmt.Sprintf("error: %s", tr.Error)
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

// aggCall aggregates partial tool call deltas until the finish chunk, when
// complete calls are emitted exactly once.
type aggCall struct{ id, name, args string }

func (m *LanguageModel) generateStreaming(
	ctx context.Context,
	req model.Request,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)

	var textBuilder strings.Builder
	toolAgg := map[int64]*aggCall{}
	var toolOrder []int64
	var finish string
	var usage *model.TokenUsage

	for stream.Next() {
		ck := stream.Current()
		if ck.Usage.TotalTokens > 0 {
			usage = convertUsage(ck.Usage)
		}
		for _, ch := range ck.Choices {
			if ch.Delta.Content != "" {
				textBuilder.WriteString(ch.Delta.Content)
				out <- textResponse(req, ch.Delta.Content, textBuilder.String())
			}
			for _, tc := range ch.Delta.ToolCalls {
				ac, ok := toolAgg[tc.Index]
				if !ok {
					ac = &aggCall{}
					toolAgg[tc.Index] = ac
					toolOrder = append(toolOrder, tc.Index)
				}
				if tc.ID != "" {
					ac.id = tc.ID
				}
				if tc.Function.Name != "" {
					ac.name = tc.Function.Name
				}
				ac.args += tc.Function.Arguments
			}
			if ch.FinishReason != "" {
				finish = ch.FinishReason
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("openai streaming error: %w", err)
		return
	}

	for _, idx := range toolOrder {
		ac := toolAgg[idx]
		out <- model.Response{Partial: true, ToolCall: &model.ToolCallEvent{
			ID:        ac.id,
			Name:      ac.name,
			Arguments: json.RawMessage(ac.args),
		}}
	}

	final := model.Response{FinishReason: finish, Usage: usage}
	if req.Schema != nil {
		if obj := parseObject(textBuilder.String()); obj != nil {
			final.Object = obj
		}
	}
	out <- final
}

func (m *LanguageModel) generateOnce(
	ctx context.Context,
	req model.Request,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		errCh <- fmt.Errorf("openai api error: %w", err)
		return
	}
	if len(resp.Choices) == 0 {
		errCh <- fmt.Errorf("openai returned no choices")
		return
	}

	choice := resp.Choices[0]
	if choice.Message.Content != "" {
		out <- textResponse(req, choice.Message.Content, choice.Message.Content)
	}
	for _, tc := range choice.Message.ToolCalls {
		out <- model.Response{Partial: true, ToolCall: &model.ToolCallEvent{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		}}
	}

	final := model.Response{FinishReason: choice.FinishReason, Usage: convertUsage(resp.Usage)}
	if req.Schema != nil {
		if obj := parseObject(choice.Message.Content); obj != nil {
			final.Object = obj
		}
	}
	out <- final
}

// textResponse frames one content delta. Object generations additionally
// carry the latest parseable partial state.
func textResponse(req model.Request, delta, accumulated string) model.Response {
	resp := model.Response{Partial: true, Delta: delta}
	if req.Schema != nil {
		resp.Object = parseObject(accumulated)
	}
	return resp
}

// parseObject best-effort parses accumulated structured output. Returns nil
// while the buffer is not yet a complete JSON object.
func parseObject(s string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil
	}
	return obj
}

func convertUsage(u openai.CompletionUsage) *model.TokenUsage {
	return &model.TokenUsage{
		PromptTokens:     int(u.PromptTokens),
		CompletionTokens: int(u.CompletionTokens),
		TotalTokens:      int(u.TotalTokens),
	}
}

// ImageModel wraps the Images API behind model.ImageModel.
type ImageModel struct {
	client *openai.Client
	name   string
}

// GenerateImage implements model.ImageModel. Images return base64 encoded
// regardless of size or count.
func (m *ImageModel) GenerateImage(ctx context.Context, req model.ImageRequest) (*model.ImageResult, error) {
	params := openai.ImageGenerateParams{
		Prompt:         req.Prompt,
		Model:          m.name,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	}
	if req.NumImages != nil {
		params.N = openai.Int(int64(*req.NumImages))
	}
	if req.Size != nil {
		params.Size = openai.ImageGenerateParamsSize(*req.Size)
	}

	resp, err := m.client.Images.Generate(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai image generation: %w", err)
	}

	result := &model.ImageResult{Images: make([]model.GeneratedImage, 0, len(resp.Data))}
	for _, img := range resp.Data {
		result.Images = append(result.Images, model.GeneratedImage{
			Base64:   img.B64JSON,
			MimeType: "image/png",
		})
	}
	return result, nil
}

// Info implements model.ImageModel.
func (m *ImageModel) Info() model.Info {
	return model.Info{Name: m.name, Provider: "openai"}
}

// SpeechModel wraps the Audio API behind model.SpeechModel.
type SpeechModel struct {
	client *openai.Client
	name   string
}

// GenerateSpeech implements model.SpeechModel.
func (m *SpeechModel) GenerateSpeech(ctx context.Context, req model.SpeechRequest) (*model.SpeechResult, error) {
	params := openai.AudioSpeechNewParams{
		Model: m.name,
		Input: req.Text,
		Voice: openai.AudioSpeechNewParamsVoiceAlloy,
	}
	if req.Voice != nil {
		params.Voice = openai.AudioSpeechNewParamsVoice(*req.Voice)
	}
	format := "mp3"
	if req.OutputFormat != nil {
		format = *req.OutputFormat
		params.ResponseFormat = openai.AudioSpeechNewParamsResponseFormat(format)
	}
	if req.Speed != nil {
		params.Speed = openai.Float(*req.Speed)
	}

	resp, err := m.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai speech synthesis: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read speech audio: %w", err)
	}

	return &model.SpeechResult{Audio: audio, MimeType: "audio/" + format}, nil
}

// Info implements model.SpeechModel.
func (m *SpeechModel) Info() model.Info {
	return model.Info{Name: m.name, Provider: "openai"}
}
