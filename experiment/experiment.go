// Package experiment runs a prompt over a dataset, one item at a time, and
// emits one framed record per item, bracketed by a run start record and, on
// dataset exhaustion, an end record carrying the item count. Items process
// strictly in dataset order; item n+1 does not begin until item n's record,
// including evaluation, has been emitted.
package experiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/promptwire/promptwire/adapter"
	"github.com/promptwire/promptwire/core"
	"github.com/promptwire/promptwire/eval"
	"github.com/promptwire/promptwire/internal/util"
	"github.com/promptwire/promptwire/logging"
	"github.com/promptwire/promptwire/runner"
	"github.com/promptwire/promptwire/stream"
)

// Options configure an experiment Runner.
type Options struct {
	// Tracer produces one span per dataset item. Defaults to a noop tracer;
	// the per-item traceId then falls back to a fresh UUID.
	Tracer trace.Tracer
	// Logger receives run lifecycle events. Defaults to NoOp.
	Logger logging.Logger
}

// RunOptions parameterize one experiment run.
type RunOptions struct {
	// RunName labels every emitted record.
	RunName string
	// DatasetPath locates the dataset. Ignored when Dataset is set, but
	// still recorded in per-item telemetry.
	DatasetPath string
	// Dataset overrides file loading with a caller-supplied stream.
	Dataset core.DatasetStream
}

// Runner executes experiment runs.
type Runner struct {
	adapter *adapter.Adapter
	exec    *runner.Runner
	evals   *eval.Registry
	tracer  trace.Tracer
	logger  logging.Logger
}

// New creates a Runner over the given adapter, invocation runner, and
// evaluator registry.
func New(a *adapter.Adapter, exec *runner.Runner, evals *eval.Registry, optFns ...func(o *Options)) *Runner {
	opts := Options{
		Tracer: noop.NewTracerProvider().Tracer("promptwire"),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Runner{
		adapter: a,
		exec:    exec,
		evals:   evals,
		tracer:  opts.Tracer,
		logger:  opts.Logger,
	}
}

// Run starts an experiment over the dataset and returns the record stream.
// Text and object prompts are supported. The stream opens with a run start
// record; on dataset exhaustion an end record with the item count closes the
// run. Consumer cancellation is checked between items so no further model
// calls happen after a disconnect.
func (r *Runner) Run(ctx context.Context, cfg core.PromptConfig, opts RunOptions) (<-chan stream.Record, error) {
	switch cfg.Kind() {
	case core.KindText, core.KindObject:
	default:
		return nil, fmt.Errorf("experiment runs support text and object prompts, got %q", cfg.Kind())
	}

	dataset := opts.Dataset
	if dataset == nil {
		var err error
		dataset, err = OpenDataset(opts.DatasetPath)
		if err != nil {
			return nil, err
		}
	}

	runID := util.NewID()
	out := make(chan stream.Record)

	go func() {
		defer close(out)
		if closer, ok := dataset.(interface{ Close() error }); ok {
			defer closer.Close()
		}

		r.logger.Info("experiment.start", "runId", runID, "runName", opts.RunName, "prompt", cfg.PromptName())

		if !r.emit(ctx, out, stream.Record{
			Type:        stream.TypeExperimentStart,
			RunID:       runID,
			RunName:     opts.RunName,
			PromptName:  cfg.PromptName(),
			DatasetPath: opts.DatasetPath,
		}) {
			return
		}

		items := 0
		for index := 0; ; index++ {
			if ctx.Err() != nil {
				return
			}

			chunk, err := dataset.Next(ctx)
			if err != nil {
				if errors.Is(err, io.EOF) {
					total := items
					r.emit(ctx, out, stream.Record{
						Type:       stream.TypeExperimentEnd,
						RunID:      runID,
						RunName:    opts.RunName,
						TotalItems: &total,
					})
					return
				}
				// Cancellation ends the run silently; a genuine retrieval
				// failure surfaces as a final error record.
				if ctx.Err() == nil {
					r.emit(ctx, out, stream.ErrorRecord(err))
				}
				return
			}

			rec := r.runItem(ctx, cfg, opts, runID, index, chunk)
			if !r.emit(ctx, out, rec) {
				return
			}
			items++
		}
	}()

	return out, nil
}

func (r *Runner) emit(ctx context.Context, out chan<- stream.Record, rec stream.Record) bool {
	select {
	case out <- rec:
		return true
	case <-ctx.Done():
		return false
	}
}

// runItem executes one dataset item: telemetry, adapt+invoke, evaluation.
// Failures never abort the run; they become the item's record.
func (r *Runner) runItem(ctx context.Context, cfg core.PromptConfig, opts RunOptions, runID string, index int, chunk *core.DatasetChunk) stream.Record {
	if chunk.Err != "" {
		r.logger.Warn("experiment.item.skipped", "runId", runID, "index", index, "error", chunk.Err)
		return stream.Record{Type: stream.TypeError, Error: chunk.Err, RunID: runID, RunName: opts.RunName}
	}
	item := chunk.Item

	itemCtx, span := r.tracer.Start(ctx, "experiment.item",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("run.name", opts.RunName),
			attribute.Int("item.index", index),
		))
	defer span.End()

	traceID := util.NewID()
	if sc := span.SpanContext(); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}

	adaptOpts := &core.AdaptOptions{
		Props: item.Input,
		Telemetry: &core.TelemetryOptions{
			Enabled: true,
			Metadata: map[string]any{
				"run_id":          runID,
				"run_name":        opts.RunName,
				"dataset_path":    opts.DatasetPath,
				"item_index":      index,
				"trace_id":        traceID,
				"expected_output": item.ExpectedOutput,
			},
		},
	}

	actual, tokens, err := r.invoke(itemCtx, cfg, adaptOpts)
	if err != nil {
		r.logger.Warn("experiment.item.failed", "runId", runID, "index", index, "error", err)
		return stream.Record{
			Type:    stream.TypeError,
			Error:   err.Error(),
			RunID:   runID,
			RunName: opts.RunName,
			TraceID: traceID,
		}
	}

	return stream.Record{
		Type: stream.TypeDataset,
		Result: stream.DatasetResult{
			Input:          item.Input,
			ExpectedOutput: item.ExpectedOutput,
			ActualOutput:   actual,
			Tokens:         tokens,
			Evals:          r.evaluate(itemCtx, item, actual),
		},
		RunID:   runID,
		RunName: opts.RunName,
		TraceID: traceID,
	}
}

// invoke adapts and runs the prompt for one item, collecting the final
// output text and token count.
func (r *Runner) invoke(ctx context.Context, cfg core.PromptConfig, opts *core.AdaptOptions) (string, int, error) {
	switch c := cfg.(type) {
	case core.TextConfig:
		params, err := r.adapter.AdaptText(ctx, c, opts)
		if err != nil {
			return "", 0, err
		}
		outcome, err := r.exec.CollectText(ctx, params)
		if err != nil {
			return "", 0, err
		}
		tokens := 0
		if outcome.Usage != nil {
			tokens = outcome.Usage.TotalTokens
		}
		return outcome.Text, tokens, nil

	case core.ObjectConfig:
		params, err := r.adapter.AdaptObject(ctx, c, opts)
		if err != nil {
			return "", 0, err
		}
		return r.collectObject(ctx, params)

	default:
		return "", 0, fmt.Errorf("unsupported prompt config kind %q", cfg.Kind())
	}
}

func (r *Runner) collectObject(ctx context.Context, params *adapter.ObjectParams) (string, int, error) {
	responses, errs := r.exec.RunObject(ctx, params)

	var last map[string]any
	tokens := 0
	for resp := range responses {
		if resp.Object != nil {
			last = resp.Object
		}
		if resp.Usage != nil {
			tokens = resp.Usage.TotalTokens
		}
	}
	if err := <-errs; err != nil {
		return "", 0, err
	}

	data, err := json.Marshal(last)
	if err != nil {
		return "", 0, fmt.Errorf("serialize object output: %w", err)
	}
	return string(data), tokens, nil
}

// evaluate runs the item's declared evaluators. Names with no registered
// match are dropped silently. An evaluator failure lands in that evaluator's
// own result slot so one bad evaluator cannot abort the run.
func (r *Runner) evaluate(ctx context.Context, item *core.DatasetItem, actual string) []any {
	results := make([]any, 0, len(item.Evals))

	input := serializeInput(item.Input)
	for _, name := range item.Evals {
		fn, ok := r.evals.Get(name)
		if !ok {
			continue
		}
		res, err := runEval(ctx, fn, eval.Params{
			Input:          input,
			Output:         actual,
			ExpectedOutput: item.ExpectedOutput,
		})
		if err != nil {
			results = append(results, eval.Result{Name: name, Reason: err.Error(), Passed: false})
			continue
		}
		if res.Name == "" {
			res.Name = name
		}
		results = append(results, res)
	}
	return results
}

// runEval shields the run from a panicking evaluator.
func runEval(ctx context.Context, fn eval.Func, params eval.Params) (res eval.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluator panic: %v", r)
		}
	}()
	return fn(ctx, params)
}

func serializeInput(input map[string]any) string {
	if input == nil {
		return "{}"
	}
	data, err := json.Marshal(input)
	if err != nil {
		return "{}"
	}
	return string(data)
}
