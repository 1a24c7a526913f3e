package experiment

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptwire/promptwire/adapter"
	"github.com/promptwire/promptwire/core"
	"github.com/promptwire/promptwire/eval"
	"github.com/promptwire/promptwire/model"
	"github.com/promptwire/promptwire/runner"
	"github.com/promptwire/promptwire/stream"
	"github.com/promptwire/promptwire/tool"
)

type nilRemote struct{}

func (nilRemote) GetTool(_ context.Context, server, toolName string) (tool.Resolved, error) {
	return tool.Resolved{}, errors.New("no remote servers")
}

func (nilRemote) GetAllTools(_ context.Context, _ string) (*tool.Set, error) {
	return nil, errors.New("no remote servers")
}

func newExperimentRunner(t *testing.T, mock *model.MockLanguageModel) *Runner {
	t.Helper()
	hub := model.NewHub()
	hub.Language.RegisterExact(func(_ string, _ *core.AdaptOptions) (model.LanguageModel, error) {
		return mock, nil
	}, "test-model")

	evals := eval.NewRegistry()
	evals.Register(eval.ExactMatch, "exact_match")

	a := adapter.New(hub, tool.NewRegistry(), nilRemote{})
	return New(a, runner.New(), evals)
}

func experimentConfig() core.TextConfig {
	return core.TextConfig{
		Name:     "capitals",
		Messages: []core.ChatMessage{core.NewTextMessage(core.RoleUser, "Name the capital.")},
		Text:     core.TextSettings{ModelName: "test-model"},
	}
}

func item(expected string, evals ...string) *core.DatasetChunk {
	return &core.DatasetChunk{Item: &core.DatasetItem{
		Input:          map[string]any{"country": "France"},
		ExpectedOutput: expected,
		Evals:          evals,
	}}
}

func TestRunEmitsOrderedDatasetRecords(t *testing.T) {
	mock := model.NewMockLanguageModel("m", model.TextTurn("Paris"), model.TextTurn("Berlin"))
	r := newExperimentRunner(t, mock)

	records, err := r.Run(context.Background(), experimentConfig(), RunOptions{
		RunName: "capitals-v1",
		Dataset: core.NewSliceDataset(
			item("Paris", "exact_match"),
			item("Paris", "unregistered_eval"),
		),
	})
	require.NoError(t, err)

	got := stream.Collect(records)
	require.Len(t, got, 4)

	start := got[0]
	assert.Equal(t, stream.TypeExperimentStart, start.Type)
	assert.Equal(t, "capitals-v1", start.RunName)
	assert.Equal(t, "capitals", start.PromptName)
	assert.NotEmpty(t, start.RunID)

	first := got[1]
	assert.Equal(t, stream.TypeDataset, first.Type)
	assert.Equal(t, "capitals-v1", first.RunName)
	assert.NotEmpty(t, first.RunID)
	assert.NotEmpty(t, first.TraceID)
	res := first.Result.(stream.DatasetResult)
	assert.Equal(t, "Paris", res.ActualOutput)
	assert.Equal(t, "Paris", res.ExpectedOutput)
	require.Len(t, res.Evals, 1)
	evalRes := res.Evals[0].(eval.Result)
	assert.Equal(t, "exact_match", evalRes.Name)
	assert.True(t, evalRes.Passed)

	// Unregistered evaluator names drop silently; the record still emits.
	second := got[2]
	assert.Equal(t, stream.TypeDataset, second.Type)
	secondRes := second.Result.(stream.DatasetResult)
	assert.Equal(t, "Berlin", secondRes.ActualOutput)
	assert.Empty(t, secondRes.Evals)
	assert.NotNil(t, secondRes.Evals)

	// One runId across the run, fresh traceIds per item.
	assert.Equal(t, first.RunID, second.RunID)
	assert.NotEqual(t, first.TraceID, second.TraceID)

	end := got[3]
	assert.Equal(t, stream.TypeExperimentEnd, end.Type)
	assert.Equal(t, start.RunID, end.RunID)
	require.NotNil(t, end.TotalItems)
	assert.Equal(t, 2, *end.TotalItems)
}

func TestRunSkipsErrorTaggedItems(t *testing.T) {
	mock := model.NewMockLanguageModel("m", model.TextTurn("Paris"))
	r := newExperimentRunner(t, mock)

	records, err := r.Run(context.Background(), experimentConfig(), RunOptions{
		Dataset: core.NewSliceDataset(
			&core.DatasetChunk{Err: "row 1 unparseable"},
			item("Paris"),
		),
	})
	require.NoError(t, err)

	got := stream.Collect(records)
	require.Len(t, got, 4)
	assert.Equal(t, stream.TypeError, got[1].Type)
	assert.Equal(t, "row 1 unparseable", got[1].Error)
	assert.Equal(t, stream.TypeDataset, got[2].Type)

	// Skipped rows still count toward the run total.
	end := got[3]
	assert.Equal(t, stream.TypeExperimentEnd, end.Type)
	require.NotNil(t, end.TotalItems)
	assert.Equal(t, 2, *end.TotalItems)

	// The skipped row never reached the model.
	assert.Len(t, mock.Requests(), 1)
}

func TestRunItemFailureContinues(t *testing.T) {
	mock := model.NewMockLanguageModel("m",
		model.ErrTurn(errors.New("rate limited")),
		model.TextTurn("Paris"),
	)
	r := newExperimentRunner(t, mock)

	records, err := r.Run(context.Background(), experimentConfig(), RunOptions{
		Dataset: core.NewSliceDataset(item("Paris"), item("Paris")),
	})
	require.NoError(t, err)

	got := stream.Collect(records)
	require.Len(t, got, 4)
	assert.Equal(t, stream.TypeError, got[1].Type)
	assert.Contains(t, got[1].Error, "rate limited")
	assert.Equal(t, stream.TypeDataset, got[2].Type)
	assert.Equal(t, stream.TypeExperimentEnd, got[3].Type)
}

func TestRunEvaluatorFailureLandsInOwnSlot(t *testing.T) {
	mock := model.NewMockLanguageModel("m", model.TextTurn("Paris"))
	hub := model.NewHub()
	hub.Language.RegisterExact(func(_ string, _ *core.AdaptOptions) (model.LanguageModel, error) {
		return mock, nil
	}, "test-model")

	evals := eval.NewRegistry()
	evals.Register(func(_ context.Context, _ eval.Params) (eval.Result, error) {
		return eval.Result{}, errors.New("judge unavailable")
	}, "llm_judge")
	evals.Register(eval.ExactMatch, "exact_match")

	r := New(adapter.New(hub, tool.NewRegistry(), nilRemote{}), runner.New(), evals)

	records, err := r.Run(context.Background(), experimentConfig(), RunOptions{
		Dataset: core.NewSliceDataset(item("Paris", "llm_judge", "exact_match")),
	})
	require.NoError(t, err)

	got := stream.Collect(records)
	require.Len(t, got, 3)
	res := got[1].Result.(stream.DatasetResult)
	require.Len(t, res.Evals, 2)

	failed := res.Evals[0].(eval.Result)
	assert.Equal(t, "llm_judge", failed.Name)
	assert.False(t, failed.Passed)
	assert.Contains(t, failed.Reason, "judge unavailable")

	passed := res.Evals[1].(eval.Result)
	assert.True(t, passed.Passed)
}

func TestRunCancellationBetweenItems(t *testing.T) {
	mock := model.NewMockLanguageModel("m", model.TextTurn("Paris"))
	r := newExperimentRunner(t, mock)

	ctx, cancel := context.WithCancel(context.Background())
	records, err := r.Run(ctx, experimentConfig(), RunOptions{
		Dataset: core.NewSliceDataset(item("Paris"), item("Paris"), item("Paris")),
	})
	require.NoError(t, err)

	// Consume the start record and the first item, then disconnect.
	<-records
	<-records
	cancel()
	for range records {
	}

	assert.Less(t, len(mock.Requests()), 3)
}

func TestRunRejectsUnsupportedKinds(t *testing.T) {
	mock := model.NewMockLanguageModel("m")
	r := newExperimentRunner(t, mock)

	_, err := r.Run(context.Background(), core.ImageConfig{Name: "poster"}, RunOptions{
		Dataset: core.NewSliceDataset(),
	})
	require.Error(t, err)
}

func TestFileDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.jsonl")
	content := `{"input":{"country":"France"},"expected_output":"Paris","evals":["exact_match"]}

{"type":"error","error":"upstream parse failure"}
{"input":{"country":"Germany"},"expected_output":"Berlin"}
not json at all
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	ds, err := OpenDataset(path)
	require.NoError(t, err)
	defer ds.Close()

	ctx := context.Background()

	chunk, err := ds.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, chunk.Item)
	assert.Equal(t, "Paris", chunk.Item.ExpectedOutput)
	assert.Equal(t, []string{"exact_match"}, chunk.Item.Evals)

	chunk, err = ds.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "upstream parse failure", chunk.Err)

	chunk, err = ds.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, chunk.Item)
	assert.Equal(t, "Berlin", chunk.Item.ExpectedOutput)

	chunk, err = ds.Next(ctx)
	require.NoError(t, err)
	assert.Contains(t, chunk.Err, "dataset line")

	_, err = ds.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}
