package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/promptwire/promptwire/logging"
	"github.com/promptwire/promptwire/tool"
)

// session is the subset of an MCP client session the resolver needs. The SDK
// session satisfies it; tests substitute fakes.
type session interface {
	ListTools(ctx context.Context, params *sdk.ListToolsParams) (*sdk.ListToolsResult, error)
	CallTool(ctx context.Context, params *sdk.CallToolParams) (*sdk.CallToolResult, error)
	Close() error
}

type dialFunc func(ctx context.Context, cfg ServerConfig) (session, error)

// catalogEntry is one tool of a fetched server catalog, in server order.
type catalogEntry struct {
	name        string
	description string
	schema      map[string]any
}

// serverEntry tracks the single connection attempt for one server. done is
// closed once the attempt finished; afterwards either catalog+sess or err is
// set, and the outcome never changes.
type serverEntry struct {
	done    chan struct{}
	sess    session
	catalog []catalogEntry
	err     error
}

// Options configure a Registry.
type Options struct {
	// Logger receives connection and resolution events. Defaults to NoOp.
	Logger logging.Logger
}

// Registry lazily connects to registered remote tool servers and caches
// their catalogs. The first reference to a server starts exactly one
// connection attempt; concurrent callers for the same server wait for that
// attempt instead of starting another. Server registration happens at
// startup; the per-server cache is the only state mutated during request
// handling.
type Registry struct {
	mu      sync.Mutex
	servers map[string]ServerConfig
	entries map[string]*serverEntry

	dial   dialFunc
	logger logging.Logger
}

// NewRegistry creates an empty resolver.
func NewRegistry(optFns ...func(o *Options)) *Registry {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{
		servers: make(map[string]ServerConfig),
		entries: make(map[string]*serverEntry),
		dial:    dialServer,
		logger:  opts.Logger,
	}
}

// Register adds a server configuration under name. The configuration is
// validated immediately; no connection is attempted until the first tool
// resolution referencing the server.
func (r *Registry) Register(name string, cfg ServerConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("server %q: %w", name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers[name] = cfg
	return nil
}

// RegisterAll registers every server of the given map.
func (r *Registry) RegisterAll(servers map[string]ServerConfig) error {
	for name, cfg := range servers {
		if err := r.Register(name, cfg); err != nil {
			return err
		}
	}
	return nil
}

// Servers returns the registered server names, sorted.
func (r *Registry) Servers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.servers))
	for name := range r.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetTool resolves one tool by name from the given server's catalog. The
// returned tool is keyed by whatever alias the caller chooses; its invoker
// calls through the cached session.
func (r *Registry) GetTool(ctx context.Context, server, toolName string) (tool.Resolved, error) {
	entry, err := r.serverEntry(ctx, server)
	if err != nil {
		return tool.Resolved{}, err
	}
	for _, ce := range entry.catalog {
		if ce.name == toolName {
			return r.newRemoteTool(server, ce), nil
		}
	}
	available := make([]string, 0, len(entry.catalog))
	for _, ce := range entry.catalog {
		available = append(available, ce.name)
	}
	return tool.Resolved{}, fmt.Errorf("tool not found: %s/%s (available tools: %s)",
		server, toolName, strings.Join(available, ", "))
}

// GetAllTools resolves the server's entire catalog as a set keyed by each
// tool's own name, in server catalog order.
func (r *Registry) GetAllTools(ctx context.Context, server string) (*tool.Set, error) {
	entry, err := r.serverEntry(ctx, server)
	if err != nil {
		return nil, err
	}
	set := tool.NewSet()
	for _, ce := range entry.catalog {
		set.Add(ce.name, r.newRemoteTool(server, ce))
	}
	return set, nil
}

// Close tears down every established session.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for name, e := range r.entries {
		select {
		case <-e.done:
		default:
			continue // Attempt still in flight, its session is not ours to close yet
		}
		if e.sess == nil {
			continue
		}
		if err := e.sess.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close mcp session %q: %w", name, err)
		}
		e.sess = nil
	}
	return firstErr
}

// serverEntry returns the finished cache entry for server, performing the
// single connection attempt if this caller is the first to reference it.
func (r *Registry) serverEntry(ctx context.Context, server string) (*serverEntry, error) {
	r.mu.Lock()
	if e, ok := r.entries[server]; ok {
		r.mu.Unlock()
		select {
		case <-e.done:
			return e, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	cfg, ok := r.servers[server]
	if !ok {
		registered := make([]string, 0, len(r.servers))
		for name := range r.servers {
			registered = append(registered, name)
		}
		r.mu.Unlock()
		sort.Strings(registered)
		return nil, fmt.Errorf("mcp server %q not registered (registered servers: %s)",
			server, strings.Join(registered, ", "))
	}

	e := &serverEntry{done: make(chan struct{})}
	r.entries[server] = e
	r.mu.Unlock()

	r.connect(ctx, server, cfg, e)
	return e, e.err
}

// connect performs the one connection + catalog fetch for a server and
// publishes the outcome. Failures are cached like successes: a broken server
// does not get re-dialed on every resolution.
func (r *Registry) connect(ctx context.Context, server string, cfg ServerConfig, e *serverEntry) {
	defer close(e.done)

	r.logger.Debug("mcp.connect.start", "server", server)

	sess, err := r.dial(ctx, cfg)
	if err != nil {
		e.err = fmt.Errorf("connect to mcp server %q: %w", server, err)
		r.logger.Error("mcp.connect.failed", "server", server, "error", err)
		return
	}

	catalog, err := fetchCatalog(ctx, sess)
	if err != nil {
		_ = sess.Close()
		e.err = fmt.Errorf("list tools of mcp server %q: %w", server, err)
		r.logger.Error("mcp.catalog.failed", "server", server, "error", err)
		return
	}

	e.sess = sess
	e.catalog = catalog
	r.logger.Info("mcp.connect.ready", "server", server, "tools", len(catalog))
}

// fetchCatalog lists every tool of the session, following pagination.
func fetchCatalog(ctx context.Context, sess session) ([]catalogEntry, error) {
	var catalog []catalogEntry
	params := &sdk.ListToolsParams{}
	for {
		res, err := sess.ListTools(ctx, params)
		if err != nil {
			return nil, err
		}
		for _, t := range res.Tools {
			catalog = append(catalog, catalogEntry{
				name:        t.Name,
				description: t.Description,
				schema:      schemaToMap(t.InputSchema),
			})
		}
		if res.NextCursor == "" {
			return catalog, nil
		}
		params.Cursor = res.NextCursor
	}
}

func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object"}
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return map[string]any{"type": "object"}
	}
	return out
}

// newRemoteTool wraps one catalog entry as a resolved tool calling through
// the server's session.
func (r *Registry) newRemoteTool(server string, ce catalogEntry) tool.Resolved {
	name := ce.name
	invoke := func(ctx context.Context, args map[string]any, _ map[string]any) (any, error) {
		entry, err := r.serverEntry(ctx, server)
		if err != nil {
			return nil, err
		}
		res, err := entry.sess.CallTool(ctx, &sdk.CallToolParams{Name: name, Arguments: args})
		if err != nil {
			return nil, fmt.Errorf("call remote tool %s/%s: %w", server, name, err)
		}
		if res.IsError {
			return nil, fmt.Errorf("remote tool %s/%s failed: %s", server, name, resultText(res))
		}
		if res.StructuredContent != nil {
			return res.StructuredContent, nil
		}
		return resultText(res), nil
	}
	return tool.NewResolved(name, ce.description, ce.schema, invoke)
}

// resultText flattens the textual content blocks of a call result.
func resultText(res *sdk.CallToolResult) string {
	var texts []string
	for _, c := range res.Content {
		if tc, ok := c.(*sdk.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	return strings.Join(texts, "\n")
}
