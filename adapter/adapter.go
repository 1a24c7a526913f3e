// Package adapter turns normalized prompt configurations into resolved
// invocations: a model handle, a provider-ready request, and (for text
// prompts) a resolved tool set. Adaptation is presence-preserving: a setting
// absent from the source configuration never appears in the output with a
// default value, and an explicit zero survives.
package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/promptwire/promptwire/core"
	"github.com/promptwire/promptwire/logging"
	"github.com/promptwire/promptwire/mcp"
	"github.com/promptwire/promptwire/model"
	"github.com/promptwire/promptwire/tool"
)

// RemoteResolver resolves remote tool references. *mcp.Registry satisfies
// it.
type RemoteResolver interface {
	GetTool(ctx context.Context, server, toolName string) (tool.Resolved, error)
	GetAllTools(ctx context.Context, server string) (*tool.Set, error)
}

// Options configure an Adapter.
type Options struct {
	// Logger receives adaptation events. Defaults to NoOp.
	Logger logging.Logger
}

// Adapter resolves prompt configurations against the model hub, the local
// tool registry, and the remote tool resolver.
type Adapter struct {
	models *model.Hub
	tools  *tool.Registry
	remote RemoteResolver
	logger logging.Logger
}

// New creates an Adapter over the given registries.
func New(models *model.Hub, tools *tool.Registry, remote RemoteResolver, optFns ...func(o *Options)) *Adapter {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Adapter{
		models: models,
		tools:  tools,
		remote: remote,
		logger: opts.Logger,
	}
}

// TextParams is the resolved invocation of a text prompt.
type TextParams struct {
	Model       model.LanguageModel
	Request     model.Request
	Tools       *tool.Set
	Telemetry   *core.TelemetryOptions
	ToolContext map[string]any
}

// ObjectParams is the resolved invocation of a structured output prompt.
type ObjectParams struct {
	Model     model.LanguageModel
	Request   model.Request
	Telemetry *core.TelemetryOptions
}

// ImageParams is the resolved invocation of an image generation prompt.
type ImageParams struct {
	Model     model.ImageModel
	Request   model.ImageRequest
	Telemetry *core.TelemetryOptions
}

// SpeechParams is the resolved invocation of a speech synthesis prompt.
type SpeechParams struct {
	Model     model.SpeechModel
	Request   model.SpeechRequest
	Telemetry *core.TelemetryOptions
}

// AdaptText resolves a text prompt: model handle, request with
// presence-preserved settings, and the declared tools resolved into a set.
// The request asks for streamed delivery so deltas arrive as the provider
// produces them. Model and remote tool resolution errors propagate
// unchanged; a malformed remote reference fails before any connection
// attempt.
func (a *Adapter) AdaptText(ctx context.Context, cfg core.TextConfig, opts *core.AdaptOptions) (*TextParams, error) {
	if opts == nil {
		opts = &core.AdaptOptions{}
	}

	m, err := a.models.ResolveLanguage(cfg.Text.ModelName, opts)
	if err != nil {
		return nil, err
	}

	set, err := a.resolveTools(ctx, cfg.Text.Tools)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("adapt.text", "prompt", cfg.Name, "model", cfg.Text.ModelName, "tools", set.Len())

	return &TextParams{
		Model: m,
		Request: model.Request{
			Messages: cfg.Messages,
			Settings: textSettings(cfg.Text),
			Tools:    definitions(set),
			Stream:   true,
		},
		Tools:       set,
		Telemetry:   buildTelemetry(cfg.Name, cfg.Metadata, opts),
		ToolContext: opts.ToolContext,
	}, nil
}

// AdaptObject resolves a structured output prompt. The declared schema is
// attached verbatim; the adapter does not validate it.
func (a *Adapter) AdaptObject(ctx context.Context, cfg core.ObjectConfig, opts *core.AdaptOptions) (*ObjectParams, error) {
	if opts == nil {
		opts = &core.AdaptOptions{}
	}

	m, err := a.models.ResolveLanguage(cfg.Object.ModelName, opts)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("adapt.object", "prompt", cfg.Name, "model", cfg.Object.ModelName)

	return &ObjectParams{
		Model: m,
		Request: model.Request{
			Messages:          cfg.Messages,
			Settings:          objectSettings(cfg.Object),
			Schema:            cfg.Object.Schema,
			SchemaName:        cfg.Object.SchemaName,
			SchemaDescription: cfg.Object.SchemaDescription,
			Stream:            true,
		},
		Telemetry: buildTelemetry(cfg.Name, cfg.Metadata, opts),
	}, nil
}

// AdaptImage resolves an image generation prompt.
func (a *Adapter) AdaptImage(_ context.Context, cfg core.ImageConfig, opts *core.AdaptOptions) (*ImageParams, error) {
	if opts == nil {
		opts = &core.AdaptOptions{}
	}

	m, err := a.models.ResolveImage(cfg.Image.ModelName, opts)
	if err != nil {
		return nil, err
	}

	return &ImageParams{
		Model: m,
		Request: model.ImageRequest{
			Prompt:      cfg.Prompt,
			NumImages:   cfg.Image.NumImages,
			Size:        cfg.Image.Size,
			AspectRatio: cfg.Image.AspectRatio,
			Seed:        cfg.Image.Seed,
		},
		Telemetry: buildTelemetry(cfg.Name, cfg.Metadata, opts),
	}, nil
}

// AdaptSpeech resolves a speech synthesis prompt.
func (a *Adapter) AdaptSpeech(_ context.Context, cfg core.SpeechConfig, opts *core.AdaptOptions) (*SpeechParams, error) {
	if opts == nil {
		opts = &core.AdaptOptions{}
	}

	m, err := a.models.ResolveSpeech(cfg.Speech.ModelName, opts)
	if err != nil {
		return nil, err
	}

	return &SpeechParams{
		Model: m,
		Request: model.SpeechRequest{
			Text:         cfg.Prompt,
			Voice:        cfg.Speech.Voice,
			OutputFormat: cfg.Speech.OutputFormat,
			Speed:        cfg.Speech.Speed,
		},
		Telemetry: buildTelemetry(cfg.Name, cfg.Metadata, opts),
	}, nil
}

// Adapt dispatches on the configuration kind and returns the kind-specific
// params value.
func (a *Adapter) Adapt(ctx context.Context, cfg core.PromptConfig, opts *core.AdaptOptions) (any, error) {
	switch c := cfg.(type) {
	case core.TextConfig:
		return a.AdaptText(ctx, c, opts)
	case core.ObjectConfig:
		return a.AdaptObject(ctx, c, opts)
	case core.ImageConfig:
		return a.AdaptImage(ctx, c, opts)
	case core.SpeechConfig:
		return a.AdaptSpeech(ctx, c, opts)
	default:
		return nil, fmt.Errorf("unsupported prompt config kind %q", cfg.Kind())
	}
}

// resolveTools builds the resolved tool set in declaration order. Remote
// references go through the remote resolver; a singular reference is keyed by
// the declared alias, while a wildcard expands to one entry per catalog tool
// keyed by the tool's own name. Inline definitions look up their
// implementation locally; a missing implementation still yields an entry
// whose invocation fails.
func (a *Adapter) resolveTools(ctx context.Context, entries []core.ToolEntry) (*tool.Set, error) {
	set := tool.NewSet()
	for _, entry := range entries {
		switch {
		case entry.Remote != "":
			server, toolName, err := mcp.ParseToolURI(entry.Remote)
			if err != nil {
				return nil, err
			}
			if toolName == mcp.Wildcard {
				all, err := a.remote.GetAllTools(ctx, server)
				if err != nil {
					return nil, err
				}
				for _, name := range all.Aliases() {
					r, _ := all.Get(name)
					set.Add(name, r)
				}
				continue
			}
			r, err := a.remote.GetTool(ctx, server, toolName)
			if err != nil {
				return nil, err
			}
			set.Add(entry.Alias, r.Renamed(entry.Alias))

		case entry.Inline != nil:
			if fn, ok := a.tools.Get(entry.Alias); ok {
				set.Add(entry.Alias, tool.NewResolved(entry.Alias, entry.Inline.Description, entry.Inline.Parameters, fn))
				continue
			}
			reason := unavailableReason(entry.Alias, a.tools.Names())
			a.logger.Warn("adapt.tool.unavailable", "tool", entry.Alias)
			set.Add(entry.Alias, tool.NewUnavailable(entry.Alias, entry.Inline.Description, entry.Inline.Parameters, reason))

		default:
			return nil, fmt.Errorf("tool entry %q declares neither a remote reference nor an inline definition", entry.Alias)
		}
	}
	return set, nil
}

func unavailableReason(name string, registered []string) error {
	if len(registered) == 0 {
		return fmt.Errorf("tool %q is not registered", name)
	}
	return fmt.Errorf("tool %q is not registered (registered tools: %s)", name, strings.Join(registered, ", "))
}

// definitions flattens a resolved set into the declarative list forwarded to
// the model, preserving set order.
func definitions(set *tool.Set) []model.ToolDefinition {
	if set.Len() == 0 {
		return nil
	}
	defs := make([]model.ToolDefinition, 0, set.Len())
	for _, alias := range set.Aliases() {
		r, _ := set.Get(alias)
		name, description, schema := r.Definition()
		defs = append(defs, model.ToolDefinition{Name: name, Description: description, Parameters: schema})
	}
	return defs
}

// textSettings copies the optional generation settings of a text prompt.
// Pointer copies keep "unset" and "explicit zero" distinguishable.
func textSettings(s core.TextSettings) model.Settings {
	return model.Settings{
		MaxTokens:        s.MaxTokens,
		Temperature:      s.Temperature,
		TopP:             s.TopP,
		TopK:             s.TopK,
		PresencePenalty:  s.PresencePenalty,
		FrequencyPenalty: s.FrequencyPenalty,
		StopSequences:    s.StopSequences,
		Seed:             s.Seed,
	}
}

func objectSettings(s core.ObjectSettings) model.Settings {
	return model.Settings{
		MaxTokens:        s.MaxTokens,
		Temperature:      s.Temperature,
		TopP:             s.TopP,
		TopK:             s.TopK,
		PresencePenalty:  s.PresencePenalty,
		FrequencyPenalty: s.FrequencyPenalty,
		StopSequences:    s.StopSequences,
		Seed:             s.Seed,
	}
}
