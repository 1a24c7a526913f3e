package model

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/promptwire/promptwire/core"
)

// Sentinel errors returned by model resolution. They are distinct so callers
// can tell a typo in a model name from a misconfigured provider mapping.
var (
	ErrModelNotRegistered    = errors.New("model not registered")
	ErrProviderNotRegistered = errors.New("provider not registered")
)

// Builder constructs a model handle for a resolved name. Builders may consult
// the per-call options (API key, base URL, telemetry) but must not perform
// network I/O; construction is local.
type Builder[T any] func(name string, opts *core.AdaptOptions) (T, error)

type patternEntry[T any] struct {
	re      *regexp.Regexp
	builder Builder[T]
}

// Registry resolves model names to handles of type T. Registration happens
// once at startup; afterwards the registry is read-only and safe for
// concurrent resolution. Resolution order is exact match, then patterns in
// registration order, then the default builder.
type Registry[T any] struct {
	exact    map[string]Builder[T]
	patterns []patternEntry[T]
	fallback Builder[T]
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{exact: make(map[string]Builder[T])}
}

// RegisterExact registers a builder for one or more exact model names.
// Returns the registry for chaining.
func (r *Registry[T]) RegisterExact(builder Builder[T], names ...string) *Registry[T] {
	for _, name := range names {
		r.exact[name] = builder
	}
	return r
}

// RegisterPattern registers a builder for every model name matching re.
// Patterns are consulted in registration order, after exact matches.
func (r *Registry[T]) RegisterPattern(re *regexp.Regexp, builder Builder[T]) *Registry[T] {
	r.patterns = append(r.patterns, patternEntry[T]{re: re, builder: builder})
	return r
}

// SetDefault installs the fallback builder used when no exact or pattern
// registration matches.
func (r *Registry[T]) SetDefault(builder Builder[T]) *Registry[T] {
	r.fallback = builder
	return r
}

// Resolve returns a handle for name. The zero value of T is returned together
// with a wrapped ErrModelNotRegistered when nothing matches.
func (r *Registry[T]) Resolve(name string, opts *core.AdaptOptions) (T, error) {
	if builder, ok := r.exact[name]; ok {
		return builder(name, opts)
	}
	for _, p := range r.patterns {
		if p.re.MatchString(name) {
			return p.builder(name, opts)
		}
	}
	if r.fallback != nil {
		return r.fallback(name, opts)
	}
	var zero T
	return zero, fmt.Errorf("%w: %q", ErrModelNotRegistered, name)
}

// Has reports whether name would resolve without invoking any builder.
func (r *Registry[T]) Has(name string) bool {
	if _, ok := r.exact[name]; ok {
		return true
	}
	for _, p := range r.patterns {
		if p.re.MatchString(name) {
			return true
		}
	}
	return r.fallback != nil
}
