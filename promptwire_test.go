package promptwire

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptwire/promptwire/core"
	"github.com/promptwire/promptwire/eval"
	"github.com/promptwire/promptwire/experiment"
	"github.com/promptwire/promptwire/model"
	"github.com/promptwire/promptwire/stream"
)

func registerMock(c *Client, mock *model.MockLanguageModel) {
	c.Models().Language.RegisterExact(func(_ string, _ *core.AdaptOptions) (model.LanguageModel, error) {
		return mock, nil
	}, "test-model")
}

func textConfig() core.TextConfig {
	return core.TextConfig{
		Name:     "greeting",
		Messages: []core.ChatMessage{core.NewTextMessage(core.RoleUser, "Say hello")},
		Text:     core.TextSettings{ModelName: "test-model"},
	}
}

func TestRunPromptText(t *testing.T) {
	c := New()
	registerMock(c, model.NewMockLanguageModel("test-model", model.TextTurn("Hello", " there")))

	records, err := c.RunPromptSync(context.Background(), textConfig(), nil)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, stream.TypeText, records[0].Type)
	assert.Equal(t, "Hello", records[0].Result)
	assert.Equal(t, " there", records[1].Result)
	assert.Equal(t, "stop", records[2].FinishReason)
}

func TestRunPromptRequestsStreaming(t *testing.T) {
	c := New()
	mock := model.NewMockLanguageModel("test-model", model.TextTurn("Hello"))
	registerMock(c, mock)

	_, err := c.RunPromptSync(context.Background(), textConfig(), nil)
	require.NoError(t, err)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].Stream)
}

func TestRunPromptErrorBecomesTerminalRecord(t *testing.T) {
	c := New()
	registerMock(c, model.NewMockLanguageModel("test-model", model.ErrTurn(
		errors.New("boom"),
		model.Response{Partial: true, Delta: "one"},
		model.Response{Partial: true, Delta: "two"},
	)))

	records, err := c.RunPromptSync(context.Background(), textConfig(), nil)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, stream.TypeText, records[0].Type)
	assert.Equal(t, stream.TypeText, records[1].Type)
	assert.Equal(t, stream.TypeError, records[2].Type)
	assert.Contains(t, records[2].Error, "boom")
}

func TestRunPromptObject(t *testing.T) {
	c := New()
	registerMock(c, model.NewMockLanguageModel("test-model", model.MockTurn{Responses: []model.Response{
		{Partial: true, Object: map[string]any{"greeting": "hi"}},
		{FinishReason: "stop"},
	}}))

	cfg := core.ObjectConfig{
		Name:     "structured",
		Messages: []core.ChatMessage{core.NewTextMessage(core.RoleUser, "Greet")},
		Object: core.ObjectSettings{
			ModelName: "test-model",
			Schema:    map[string]any{"type": "object"},
		},
	}

	records, err := c.RunPromptSync(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, stream.TypeObject, records[0].Type)
	assert.Equal(t, map[string]any{"greeting": "hi"}, records[0].Result)
}

func TestRunPromptAdaptErrorIsSynchronous(t *testing.T) {
	c := New()

	_, err := c.RunPrompt(context.Background(), textConfig(), nil)
	require.ErrorIs(t, err, model.ErrModelNotRegistered)
}

func TestRunPromptRejectsImageKind(t *testing.T) {
	c := New()
	_, err := c.RunPrompt(context.Background(), core.ImageConfig{Name: "poster"}, nil)
	require.Error(t, err)
}

func TestRunExperiment(t *testing.T) {
	c := New()
	registerMock(c, model.NewMockLanguageModel("test-model", model.TextTurn("Paris")))
	c.Evals().Register(eval.ExactMatch, "exact_match")

	records, err := c.RunExperiment(context.Background(), textConfig(), experiment.RunOptions{
		RunName: "smoke",
		Dataset: core.NewSliceDataset(&core.DatasetChunk{Item: &core.DatasetItem{
			Input:          map[string]any{"country": "France"},
			ExpectedOutput: "Paris",
			Evals:          []string{"exact_match"},
		}}),
	})
	require.NoError(t, err)

	got := stream.Collect(records)
	require.Len(t, got, 3)
	assert.Equal(t, stream.TypeExperimentStart, got[0].Type)
	assert.Equal(t, stream.TypeDataset, got[1].Type)
	assert.Equal(t, "smoke", got[1].RunName)
	res := got[1].Result.(stream.DatasetResult)
	assert.Equal(t, "Paris", res.ActualOutput)
	require.Len(t, res.Evals, 1)
	assert.Equal(t, stream.TypeExperimentEnd, got[2].Type)
}
