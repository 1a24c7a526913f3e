// Package promptwire provides a high-level façade over the adaptation and
// execution layers: model registries, the local and remote tool registries,
// the request adapter, the invocation runner, and the experiment runner.
// Most applications interact with this package by:
//  1. Creating a Client via New() (optionally overriding defaults)
//  2. Registering providers, models, tools, remote servers and evaluators
//  3. Running prompts (RunPrompt) or experiments (RunExperiment)
//
// The façade delegates the mechanics to the underlying packages while
// keeping setup and usage ergonomics concise. All defaults are safe for
// local development and testing; production deployments typically supply a
// structured logger and a real tracer.
package promptwire

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/promptwire/promptwire/adapter"
	"github.com/promptwire/promptwire/core"
	"github.com/promptwire/promptwire/eval"
	"github.com/promptwire/promptwire/experiment"
	"github.com/promptwire/promptwire/logging"
	"github.com/promptwire/promptwire/mcp"
	"github.com/promptwire/promptwire/model"
	"github.com/promptwire/promptwire/runner"
	"github.com/promptwire/promptwire/stream"
	"github.com/promptwire/promptwire/tool"
)

// Options configures a Client.
type Options struct {
	// MaxModelCalls limits invocations per run, bounding tool round-trips.
	MaxModelCalls int
	// EventBufferSize sets the channel buffer size for event processing.
	EventBufferSize int
	// Tracer produces per-item spans for experiment runs. Optional.
	Tracer trace.Tracer
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Client is the high-level façade aggregating the registries and runners.
type Client struct {
	models *model.Hub
	tools  *tool.Registry
	remote *mcp.Registry
	evals  *eval.Registry

	adapter     *adapter.Adapter
	runner      *runner.Runner
	experiments *experiment.Runner

	logger logging.Logger
}

// New creates a Client with optional overrides.
func New(optFns ...func(o *Options)) *Client {
	opts := Options{
		MaxModelCalls:   10,
		EventBufferSize: 64,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	models := model.NewHub()
	tools := tool.NewRegistry()
	remote := mcp.NewRegistry(func(o *mcp.Options) { o.Logger = opts.Logger })
	evals := eval.NewRegistry()

	a := adapter.New(models, tools, remote, func(o *adapter.Options) { o.Logger = opts.Logger })
	exec := runner.New(func(o *runner.Options) {
		o.MaxModelCalls = opts.MaxModelCalls
		o.EventBufferSize = opts.EventBufferSize
		o.Logger = opts.Logger
	})
	experiments := experiment.New(a, exec, evals, func(o *experiment.Options) {
		if opts.Tracer != nil {
			o.Tracer = opts.Tracer
		}
		o.Logger = opts.Logger
	})

	return &Client{
		models:      models,
		tools:       tools,
		remote:      remote,
		evals:       evals,
		adapter:     a,
		runner:      exec,
		experiments: experiments,
		logger:      opts.Logger,
	}
}

// Models exposes the model hub for registration.
func (c *Client) Models() *model.Hub { return c.models }

// Tools exposes the local tool registry.
func (c *Client) Tools() *tool.Registry { return c.tools }

// RemoteServers exposes the remote tool resolver for server registration.
func (c *Client) RemoteServers() *mcp.Registry { return c.remote }

// Evals exposes the evaluator registry.
func (c *Client) Evals() *eval.Registry { return c.evals }

// Adapter exposes the request adapter for callers that want resolved params
// without running them.
func (c *Client) Adapter() *adapter.Adapter { return c.adapter }

// RunPrompt adapts and executes a text or object prompt, returning the
// framed record stream. The stream ends with the final event or exactly one
// terminal error record.
func (c *Client) RunPrompt(ctx context.Context, cfg core.PromptConfig, opts *core.AdaptOptions) (<-chan stream.Record, error) {
	switch config := cfg.(type) {
	case core.TextConfig:
		params, err := c.adapter.AdaptText(ctx, config, opts)
		if err != nil {
			return nil, err
		}
		responses, errs := c.runner.RunText(ctx, params)
		return stream.Frame(ctx, stream.TypeText, responses, errs), nil

	case core.ObjectConfig:
		params, err := c.adapter.AdaptObject(ctx, config, opts)
		if err != nil {
			return nil, err
		}
		responses, errs := c.runner.RunObject(ctx, params)
		return stream.Frame(ctx, stream.TypeObject, responses, errs), nil

	default:
		return nil, fmt.Errorf("RunPrompt supports text and object prompts, got %q", cfg.Kind())
	}
}

// RunPromptSync is a synchronous helper that drains the record stream.
func (c *Client) RunPromptSync(ctx context.Context, cfg core.PromptConfig, opts *core.AdaptOptions) ([]stream.Record, error) {
	records, err := c.RunPrompt(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	return stream.Collect(records), nil
}

// GenerateImage adapts and executes an image prompt.
func (c *Client) GenerateImage(ctx context.Context, cfg core.ImageConfig, opts *core.AdaptOptions) (*model.ImageResult, error) {
	params, err := c.adapter.AdaptImage(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	return params.Model.GenerateImage(ctx, params.Request)
}

// GenerateSpeech adapts and executes a speech prompt.
func (c *Client) GenerateSpeech(ctx context.Context, cfg core.SpeechConfig, opts *core.AdaptOptions) (*model.SpeechResult, error) {
	params, err := c.adapter.AdaptSpeech(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	return params.Model.GenerateSpeech(ctx, params.Request)
}

// RunExperiment runs the prompt over a dataset and returns the per-item
// record stream.
func (c *Client) RunExperiment(ctx context.Context, cfg core.PromptConfig, opts experiment.RunOptions) (<-chan stream.Record, error) {
	return c.experiments.Run(ctx, cfg, opts)
}

// Close releases remote tool sessions.
func (c *Client) Close() error {
	return c.remote.Close()
}
