package experiment

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/promptwire/promptwire/core"
)

// FileDataset reads an NDJSON dataset lazily, one item per line. A line that
// does not parse as a dataset item yields an error-tagged chunk instead of
// aborting the stream, matching the "report but never execute" contract for
// bad rows.
type FileDataset struct {
	f       *os.File
	scanner *bufio.Scanner
	line    int
}

// OpenDataset opens an NDJSON dataset file.
func OpenDataset(path string) (*FileDataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &FileDataset{f: f, scanner: scanner}, nil
}

// Next implements core.DatasetStream.
func (d *FileDataset) Next(ctx context.Context) (*core.DatasetChunk, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !d.scanner.Scan() {
			if err := d.scanner.Err(); err != nil {
				return nil, fmt.Errorf("read dataset: %w", err)
			}
			return nil, io.EOF
		}
		d.line++

		text := strings.TrimSpace(d.scanner.Text())
		if text == "" {
			continue
		}

		// Producer-side error rows pass through as error-tagged chunks.
		var tagged struct {
			Type  string `json:"type"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal([]byte(text), &tagged); err == nil && tagged.Type == "error" {
			return &core.DatasetChunk{Err: tagged.Error}, nil
		}

		var item core.DatasetItem
		if err := json.Unmarshal([]byte(text), &item); err != nil {
			return &core.DatasetChunk{Err: fmt.Sprintf("dataset line %d: %v", d.line, err)}, nil
		}
		return &core.DatasetChunk{Item: &item}, nil
	}
}

// Close releases the underlying file.
func (d *FileDataset) Close() error {
	return d.f.Close()
}
