package core

import (
	"context"
	"io"
)

// DatasetItem is one row of an experiment dataset.
type DatasetItem struct {
	Input          map[string]any `json:"input"`
	ExpectedOutput string         `json:"expected_output,omitempty"`
	Evals          []string       `json:"evals,omitempty"`
}

// DatasetChunk is the unit yielded by a DatasetStream: either a valid item or
// an error-tagged entry the producer could not parse. Error-tagged entries are
// reported but never executed.
type DatasetChunk struct {
	Item *DatasetItem `json:"item,omitempty"`
	Err  string       `json:"error,omitempty"`
}

// DatasetStream is a pull-based, lazily produced sequence of dataset chunks.
// Implementations are supplied by an external dataset source; a stream is
// consumed exactly once, to exhaustion or early termination. Next returns
// io.EOF after the final chunk.
type DatasetStream interface {
	Next(ctx context.Context) (*DatasetChunk, error)
}

// SliceDataset is an in-memory DatasetStream over a fixed chunk slice.
// Intended for tests and examples.
type SliceDataset struct {
	chunks []*DatasetChunk
	pos    int
}

// NewSliceDataset builds a SliceDataset yielding the given chunks in order.
func NewSliceDataset(chunks ...*DatasetChunk) *SliceDataset {
	return &SliceDataset{chunks: chunks}
}

// Next implements DatasetStream.
func (d *SliceDataset) Next(ctx context.Context) (*DatasetChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.pos >= len(d.chunks) {
		return nil, io.EOF
	}
	c := d.chunks[d.pos]
	d.pos++
	return c, nil
}
