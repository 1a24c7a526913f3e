package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptwire/promptwire/model"
)

func scripted(responses []model.Response, err error) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, len(responses))
	errCh := make(chan error, 1)
	for _, r := range responses {
		out <- r
	}
	if err != nil {
		errCh <- err
	}
	close(out)
	close(errCh)
	return out, errCh
}

func TestFrameText(t *testing.T) {
	responses, errs := scripted([]model.Response{
		{Partial: true, Delta: "Hel"},
		{Partial: true, Delta: "lo"},
		{FinishReason: "stop", Usage: &model.TokenUsage{TotalTokens: 5}},
	}, nil)

	records := Collect(Frame(context.Background(), TypeText, responses, errs))
	require.Len(t, records, 3)
	assert.Equal(t, Record{Type: TypeText, Result: "Hel"}, records[0])
	assert.Equal(t, Record{Type: TypeText, Result: "lo"}, records[1])
	assert.Equal(t, "stop", records[2].FinishReason)
	require.NotNil(t, records[2].Usage)
	assert.Equal(t, 5, records[2].Usage.TotalTokens)
}

func TestFrameErrorIsTerminal(t *testing.T) {
	responses, errs := scripted([]model.Response{
		{Partial: true, Delta: "one"},
		{Partial: true, Delta: "two"},
	}, errors.New("connection reset"))

	records := Collect(Frame(context.Background(), TypeText, responses, errs))

	// Exactly two text records, one error record, nothing after.
	require.Len(t, records, 3)
	assert.Equal(t, TypeText, records[0].Type)
	assert.Equal(t, "one", records[0].Result)
	assert.Equal(t, TypeText, records[1].Type)
	assert.Equal(t, "two", records[1].Result)
	assert.Equal(t, Record{Type: TypeError, Error: "connection reset"}, records[2])
}

func TestFrameObjectReplaces(t *testing.T) {
	responses, errs := scripted([]model.Response{
		{Partial: true, Object: map[string]any{"name": "Ada"}},
		{Partial: true, Object: map[string]any{"name": "Ada", "year": 1815}},
		{FinishReason: "stop"},
	}, nil)

	records := Collect(Frame(context.Background(), TypeObject, responses, errs))
	require.Len(t, records, 3)
	assert.Equal(t, map[string]any{"name": "Ada"}, records[0].Result)
	// Later records carry the full latest state, not an increment.
	assert.Equal(t, map[string]any{"name": "Ada", "year": 1815}, records[1].Result)
}

func TestFrameToolEvents(t *testing.T) {
	call := &model.ToolCallEvent{ID: "c1", Name: "calculator", Arguments: json.RawMessage(`{"a":1}`)}
	result := &model.ToolResultEvent{ID: "c1", Name: "calculator", Result: 2}
	responses, errs := scripted([]model.Response{
		{Partial: true, ToolCall: call},
		{Partial: true, ToolResult: result},
		{FinishReason: "stop"},
	}, nil)

	records := Collect(Frame(context.Background(), TypeText, responses, errs))
	require.Len(t, records, 3)
	assert.Equal(t, call, records[0].ToolCall)
	assert.Equal(t, result, records[1].ToolResult)
}

func TestFrameConsumerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	responses := make(chan model.Response)
	errs := make(chan error)
	out := Frame(ctx, TypeText, responses, errs)

	responses <- model.Response{Partial: true, Delta: "first"}
	rec := <-out
	assert.Equal(t, "first", rec.Result)

	cancel()
	_, open := <-out
	assert.False(t, open)
}

func TestWriteNDJSON(t *testing.T) {
	records := make(chan Record, 2)
	records <- Record{Type: TypeText, Result: "hi"}
	records <- Record{Type: TypeError, Error: "boom"}
	close(records)

	var buf bytes.Buffer
	require.NoError(t, WriteNDJSON(&buf, records))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "text", first["type"])
	assert.Equal(t, "hi", first["result"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "error", second["type"])
	assert.Equal(t, "boom", second["error"])
}
