package tool

import (
	"sort"
)

// Registry maps tool names to local implementations. It is populated once at
// startup and treated read-only during request handling.
type Registry struct {
	fns map[string]Func
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{fns: make(map[string]Func)}
}

// Register binds fn to name, replacing any previous binding. Returns the
// registry for chaining.
func (r *Registry) Register(name string, fn Func) *Registry {
	r.fns[name] = fn
	return r
}

// Has reports whether an implementation is registered under name.
func (r *Registry) Has(name string) bool {
	_, ok := r.fns[name]
	return ok
}

// Get returns the implementation registered under name.
func (r *Registry) Get(name string) (Func, bool) {
	fn, ok := r.fns[name]
	return fn, ok
}

// Names returns all registered tool names, sorted for stable error messages.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.fns))
	for name := range r.fns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
