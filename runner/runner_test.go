package runner

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptwire/promptwire/adapter"
	"github.com/promptwire/promptwire/core"
	"github.com/promptwire/promptwire/model"
	"github.com/promptwire/promptwire/tool"
)

func textParams(m model.LanguageModel, tools *tool.Set) *adapter.TextParams {
	if tools == nil {
		tools = tool.NewSet()
	}
	return &adapter.TextParams{
		Model: m,
		Request: model.Request{
			Messages: []core.ChatMessage{core.NewTextMessage(core.RoleUser, "What is 2+2?")},
		},
		Tools: tools,
	}
}

func TestRunTextPlainCompletion(t *testing.T) {
	mock := model.NewMockLanguageModel("m", model.TextTurn("The answer ", "is 4."))
	r := New()

	outcome, err := r.CollectText(context.Background(), textParams(mock, nil))
	require.NoError(t, err)
	assert.Equal(t, "The answer is 4.", outcome.Text)
	assert.Equal(t, "stop", outcome.Finish)
	require.NotNil(t, outcome.Usage)
	assert.Len(t, mock.Requests(), 1)
}

func TestRunTextToolRoundTrip(t *testing.T) {
	toolCallTurn := model.MockTurn{Responses: []model.Response{
		{Partial: true, ToolCall: &model.ToolCallEvent{
			ID: "c1", Name: "calculator", Arguments: json.RawMessage(`{"a":2,"b":2}`),
		}},
		{FinishReason: "tool_calls"},
	}}
	mock := model.NewMockLanguageModel("m", toolCallTurn, model.TextTurn("4"))

	tools := tool.NewSet()
	tools.Add("calculator", tool.NewResolved("calculator", "Add numbers", map[string]any{"type": "object"},
		func(_ context.Context, args map[string]any, toolCtx map[string]any) (any, error) {
			assert.Equal(t, map[string]any{"caller": "test"}, toolCtx)
			return args["a"].(float64) + args["b"].(float64), nil
		}))

	params := textParams(mock, tools)
	params.ToolContext = map[string]any{"caller": "test"}

	r := New()
	responses, errs := r.RunText(context.Background(), params)

	var toolResults []*model.ToolResultEvent
	var text string
	for resp := range responses {
		text += resp.Delta
		if resp.ToolResult != nil {
			toolResults = append(toolResults, resp.ToolResult)
		}
	}
	require.NoError(t, <-errs)

	assert.Equal(t, "4", text)
	require.Len(t, toolResults, 1)
	assert.Equal(t, "c1", toolResults[0].ID)
	assert.Equal(t, float64(4), toolResults[0].Result)

	// Second request replays the call and its outcome.
	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	replayed := reqs[1].Messages
	require.Len(t, replayed, 3)
	assert.Equal(t, core.RoleAssistant, replayed[1].Role)
	assert.Equal(t, core.RoleTool, replayed[2].Role)
}

func TestRunTextToolFailureGoesBackToModel(t *testing.T) {
	toolCallTurn := model.MockTurn{Responses: []model.Response{
		{Partial: true, ToolCall: &model.ToolCallEvent{ID: "c1", Name: "flaky", Arguments: json.RawMessage(`{}`)}},
		{FinishReason: "tool_calls"},
	}}
	mock := model.NewMockLanguageModel("m", toolCallTurn, model.TextTurn("I could not compute that."))

	tools := tool.NewSet()
	tools.Add("flaky", tool.NewResolved("flaky", "", map[string]any{"type": "object"},
		func(_ context.Context, _ map[string]any, _ map[string]any) (any, error) {
			return nil, errors.New("upstream timeout")
		}))

	r := New()
	outcome, err := r.CollectText(context.Background(), textParams(mock, tools))
	require.NoError(t, err)
	assert.Equal(t, "I could not compute that.", outcome.Text)

	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	part := reqs[1].Messages[2].Parts[0].(core.ToolResultPart)
	assert.Equal(t, "upstream timeout", part.ToolResult.Error)
}

func TestRunTextUnknownToolReported(t *testing.T) {
	toolCallTurn := model.MockTurn{Responses: []model.Response{
		{Partial: true, ToolCall: &model.ToolCallEvent{ID: "c1", Name: "ghost", Arguments: json.RawMessage(`{}`)}},
		{FinishReason: "tool_calls"},
	}}
	mock := model.NewMockLanguageModel("m", toolCallTurn, model.TextTurn("done"))

	r := New()
	responses, errs := r.RunText(context.Background(), textParams(mock, tool.NewSet()))

	var resultEvent *model.ToolResultEvent
	for resp := range responses {
		if resp.ToolResult != nil {
			resultEvent = resp.ToolResult
		}
	}
	require.NoError(t, <-errs)
	require.NotNil(t, resultEvent)
	assert.Contains(t, resultEvent.Error, "ghost")
}

func TestRunTextEngineErrorTerminates(t *testing.T) {
	mock := model.NewMockLanguageModel("m", model.ErrTurn(
		errors.New("connection reset"),
		model.Response{Partial: true, Delta: "partial"},
	))

	r := New()
	responses, errs := r.RunText(context.Background(), textParams(mock, nil))

	var deltas []string
	for resp := range responses {
		if resp.Delta != "" {
			deltas = append(deltas, resp.Delta)
		}
	}
	err := <-errs
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, []string{"partial"}, deltas)
}

func TestRunTextCallLimit(t *testing.T) {
	toolCallTurn := model.MockTurn{Responses: []model.Response{
		{Partial: true, ToolCall: &model.ToolCallEvent{ID: "c1", Name: "loop", Arguments: json.RawMessage(`{}`)}},
		{FinishReason: "tool_calls"},
	}}
	// The mock replays the last turn forever, so the model never stops
	// asking for the tool.
	mock := model.NewMockLanguageModel("m", toolCallTurn)

	tools := tool.NewSet()
	tools.Add("loop", tool.NewResolved("loop", "", map[string]any{"type": "object"},
		func(_ context.Context, _ map[string]any, _ map[string]any) (any, error) {
			return "again", nil
		}))

	r := New(func(o *Options) { o.MaxModelCalls = 3 })
	_, err := r.CollectText(context.Background(), textParams(mock, tools))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "call limit")
	assert.Len(t, mock.Requests(), 3)
}

func TestRunObject(t *testing.T) {
	mock := model.NewMockLanguageModel("m", model.MockTurn{Responses: []model.Response{
		{Partial: true, Object: map[string]any{"answer": "4"}},
		{FinishReason: "stop", Usage: &model.TokenUsage{TotalTokens: 3}},
	}})

	r := New()
	params := &adapter.ObjectParams{
		Model:   mock,
		Request: model.Request{Schema: map[string]any{"type": "object"}},
	}
	responses, errs := r.RunObject(context.Background(), params)

	var last map[string]any
	for resp := range responses {
		if resp.Object != nil {
			last = resp.Object
		}
	}
	require.NoError(t, <-errs)
	assert.Equal(t, map[string]any{"answer": "4"}, last)
}
