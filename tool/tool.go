// Package tool implements the local tool capability registry and the
// resolved tool set attached to adapted text invocations. A resolved tool is
// either usable (a registered implementation backs it) or unavailable (the
// prompt declared it but nothing implements it locally); both variants share
// the same schema and description so the model sees the capability either
// way, and the distinction only matters at call time.
package tool

import (
	"context"
	"fmt"
	"strings"
)

// Func is a tool implementation. It receives the parsed arguments and the
// per-call tool context supplied through the adapt options. Implementations
// may block and should honor ctx cancellation.
type Func func(ctx context.Context, args map[string]any, toolCtx map[string]any) (any, error)

// Resolved is one entry of a resolved tool set: schema and description for
// the model, plus an invoker that either runs the implementation or reports
// why none exists.
type Resolved struct {
	Name        string
	Description string
	Schema      map[string]any

	fn          Func
	unavailable error
}

// NewResolved builds a usable resolved tool.
func NewResolved(name, description string, schema map[string]any, fn Func) Resolved {
	return Resolved{Name: name, Description: description, Schema: schema, fn: fn}
}

// NewUnavailable builds a resolved tool whose invocation always fails with
// the given reason. The tool still carries its full schema and description.
func NewUnavailable(name, description string, schema map[string]any, reason error) Resolved {
	return Resolved{Name: name, Description: description, Schema: schema, unavailable: reason}
}

// Available reports whether an implementation backs this tool.
func (r Resolved) Available() bool { return r.fn != nil }

// Invoke runs the tool. Unavailable tools fail with their recorded reason.
func (r Resolved) Invoke(ctx context.Context, args map[string]any, toolCtx map[string]any) (any, error) {
	if r.fn == nil {
		if r.unavailable != nil {
			return nil, r.unavailable
		}
		return nil, fmt.Errorf("tool %q has no implementation", r.Name)
	}
	return r.fn(ctx, args, toolCtx)
}

// Renamed returns a copy of the tool exposed under a different name. Used
// when a prompt binds a remote tool to a local alias.
func (r Resolved) Renamed(name string) Resolved {
	r.Name = name
	return r
}

// Definition converts the resolved tool into the declarative shape forwarded
// to models.
func (r Resolved) Definition() (name, description string, schema map[string]any) {
	return r.Name, r.Description, r.Schema
}

// Set is an ordered collection of resolved tools keyed by alias. Iteration
// follows insertion order, which mirrors declaration order in the prompt
// (with wildcard expansions following the remote catalog order).
type Set struct {
	order   []string
	byAlias map[string]Resolved
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{byAlias: make(map[string]Resolved)}
}

// Add inserts or replaces a tool under alias. First insertion fixes the
// alias position.
func (s *Set) Add(alias string, r Resolved) {
	if _, exists := s.byAlias[alias]; !exists {
		s.order = append(s.order, alias)
	}
	s.byAlias[alias] = r
}

// Get returns the tool registered under alias.
func (s *Set) Get(alias string) (Resolved, bool) {
	r, ok := s.byAlias[alias]
	return r, ok
}

// Aliases returns all aliases in insertion order.
func (s *Set) Aliases() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of tools in the set.
func (s *Set) Len() int { return len(s.order) }

// String lists the aliases, mainly for logs and error messages.
func (s *Set) String() string {
	return strings.Join(s.order, ", ")
}
