// Package eval provides a registry of named evaluators for scoring model
// output against dataset expectations during experiment runs.
package eval

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Params carry the material one evaluator scores: the rendered input, the
// model's actual output, and the dataset's expected output. ExpectedOutput
// may be empty when the dataset item carries none.
type Params struct {
	Input          string
	Output         string
	ExpectedOutput string
}

// Result is one evaluator's verdict for one dataset item.
type Result struct {
	// Name identifies the evaluator that produced the result.
	Name string `json:"name"`
	// Score is the numeric verdict, typically in [0, 1].
	Score float64 `json:"score"`
	// Label is an optional categorical verdict.
	Label string `json:"label,omitempty"`
	// Reason optionally explains the verdict.
	Reason string `json:"reason,omitempty"`
	// Passed reports whether the item met the evaluator's bar.
	Passed bool `json:"passed"`
}

// Func scores one dataset item.
type Func func(ctx context.Context, params Params) (Result, error)

// Registry maps evaluator names to scoring functions. Registration happens
// at startup; lookups during a run are read-only.
type Registry struct {
	mu    sync.RWMutex
	evals map[string]Func
}

// NewRegistry creates an empty evaluator registry.
func NewRegistry() *Registry {
	return &Registry{evals: make(map[string]Func)}
}

// Register binds fn under one or more names, replacing any previous binding.
func (r *Registry) Register(fn Func, names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		r.evals[name] = fn
	}
}

// Get returns the evaluator registered under name.
func (r *Registry) Get(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.evals[name]
	return fn, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Remove unregisters name. Unknown names are ignored.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.evals, name)
}

// Names returns the registered evaluator names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.evals))
	for name := range r.evals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExactMatch passes when the output equals the expected output after
// trimming surrounding whitespace.
func ExactMatch(_ context.Context, params Params) (Result, error) {
	passed := strings.TrimSpace(params.Output) == strings.TrimSpace(params.ExpectedOutput)
	res := Result{Name: "exact_match", Passed: passed}
	if passed {
		res.Score = 1
		res.Label = "match"
	} else {
		res.Label = "mismatch"
	}
	return res, nil
}

// Contains passes when the output contains the expected output as a
// substring, case-insensitively.
func Contains(_ context.Context, params Params) (Result, error) {
	passed := strings.Contains(strings.ToLower(params.Output), strings.ToLower(strings.TrimSpace(params.ExpectedOutput)))
	res := Result{Name: "contains", Passed: passed}
	if passed {
		res.Score = 1
		res.Label = "contains"
	} else {
		res.Label = "missing"
	}
	return res, nil
}
