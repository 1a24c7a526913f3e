// Package stream frames internal model event streams into ordered,
// independently-parseable records for transport. Each record is one
// self-contained JSON value tagged by type; consumers never need more than
// the latest record to know current state.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/promptwire/promptwire/model"
)

// Record types.
const (
	TypeText    = "text"
	TypeObject  = "object"
	TypeDataset = "dataset"
	TypeError   = "error"

	// Experiment runs are bracketed by a start and an end record.
	TypeExperimentStart = "experiment_start"
	TypeExperimentEnd   = "experiment_end"
)

// DatasetResult is the payload of one experiment item record. Evals is
// always present, empty when no declared evaluator matched.
type DatasetResult struct {
	Input          any    `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	ActualOutput   string `json:"actualOutput"`
	Tokens         int    `json:"tokens"`
	Evals          []any  `json:"evals"`
}

// Record is one framed output event. Exactly one of the payload fields
// matching the record type is set.
type Record struct {
	Type string `json:"type"`

	// Result carries the text delta, the latest partial object, or the
	// dataset item result, depending on Type.
	Result any `json:"result,omitempty"`

	ToolCall     *model.ToolCallEvent   `json:"toolCall,omitempty"`
	ToolResult   *model.ToolResultEvent `json:"toolResult,omitempty"`
	FinishReason string                 `json:"finishReason,omitempty"`
	Usage        *model.TokenUsage      `json:"usage,omitempty"`

	Error string `json:"error,omitempty"`

	// Experiment run fields.
	RunID   string `json:"runId,omitempty"`
	RunName string `json:"runName,omitempty"`
	TraceID string `json:"traceId,omitempty"`

	// Run bracket fields, set on experiment start and end records only.
	PromptName  string `json:"promptName,omitempty"`
	DatasetPath string `json:"datasetPath,omitempty"`
	TotalItems  *int   `json:"totalItems,omitempty"`
}

// ErrorRecord builds a terminal error record.
func ErrorRecord(err error) Record {
	return Record{Type: TypeError, Error: err.Error()}
}

// Frame converts one invocation's event channels into a record stream of the
// given kind ("text" or "object"). An error from the engine yields exactly
// one terminal error record after the already-received events, and nothing
// follows it. The output channel closes when the input is exhausted, an
// error record was emitted, or ctx is done.
func Frame(ctx context.Context, kind string, responses <-chan model.Response, errs <-chan error) <-chan Record {
	out := make(chan Record)

	go func() {
		defer close(out)

		emit := func(rec Record) bool {
			select {
			case out <- rec:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				// Drain events already produced before the failure, so
				// consumers see every delta the engine managed to emit,
				// then end with the one error record.
				for resp := range responses {
					if !emit(frameResponse(kind, resp)) {
						return
					}
				}
				emit(ErrorRecord(err))
				return
			case resp, ok := <-responses:
				if !ok {
					if errs == nil {
						return
					}
					// Events done; wait for a trailing error, if any.
					select {
					case <-ctx.Done():
					case err, open := <-errs:
						if open && err != nil {
							emit(ErrorRecord(err))
						}
					}
					return
				}
				if !emit(frameResponse(kind, resp)) {
					return
				}
			}
		}
	}()

	return out
}

// frameResponse maps one engine event to a record. Object events replace the
// previous partial wholesale; text events carry only the delta.
func frameResponse(kind string, resp model.Response) Record {
	rec := Record{
		Type:         kind,
		ToolCall:     resp.ToolCall,
		ToolResult:   resp.ToolResult,
		FinishReason: resp.FinishReason,
		Usage:        resp.Usage,
	}
	switch kind {
	case TypeObject:
		if resp.Object != nil {
			rec.Result = resp.Object
		}
	default:
		if resp.Delta != "" {
			rec.Result = resp.Delta
		}
	}
	return rec
}

// WriteNDJSON writes every record of the stream to w as one JSON document
// per line, flushing after each record so consumers observe records as they
// are produced.
func WriteNDJSON(w io.Writer, records <-chan Record) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("flush record: %w", err)
		}
	}
	return nil
}

// Collect drains a record stream into a slice, mainly for tests and
// non-streaming callers.
func Collect(records <-chan Record) []Record {
	var out []Record
	for rec := range records {
		out = append(out, rec)
	}
	return out
}
