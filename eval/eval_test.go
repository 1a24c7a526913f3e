package eval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Has("exact_match"))

	r.Register(ExactMatch, "exact_match", "equals")
	r.Register(Contains, "contains")

	assert.True(t, r.Has("exact_match"))
	assert.True(t, r.Has("equals"))
	assert.Equal(t, []string{"contains", "equals", "exact_match"}, r.Names())

	fn, ok := r.Get("equals")
	require.True(t, ok)
	res, err := fn(context.Background(), Params{Output: "a", ExpectedOutput: "a"})
	require.NoError(t, err)
	assert.True(t, res.Passed)

	r.Remove("equals")
	assert.False(t, r.Has("equals"))
	assert.True(t, r.Has("exact_match"))
}

func TestExactMatch(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		expected string
		passed   bool
	}{
		{name: "equal", output: "Paris", expected: "Paris", passed: true},
		{name: "trims whitespace", output: "  Paris\n", expected: "Paris", passed: true},
		{name: "case matters", output: "paris", expected: "Paris", passed: false},
		{name: "different", output: "London", expected: "Paris", passed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ExactMatch(context.Background(), Params{Output: tt.output, ExpectedOutput: tt.expected})
			require.NoError(t, err)
			assert.Equal(t, tt.passed, res.Passed)
			assert.Equal(t, "exact_match", res.Name)
			if tt.passed {
				assert.Equal(t, float64(1), res.Score)
			} else {
				assert.Zero(t, res.Score)
			}
		})
	}
}

func TestContains(t *testing.T) {
	res, err := Contains(context.Background(), Params{Output: "The capital is Paris.", ExpectedOutput: "paris"})
	require.NoError(t, err)
	assert.True(t, res.Passed)

	res, err = Contains(context.Background(), Params{Output: "The capital is London.", ExpectedOutput: "Paris"})
	require.NoError(t, err)
	assert.False(t, res.Passed)
}
