package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/promptwire/promptwire/adapter"
	"github.com/promptwire/promptwire/core"
	"github.com/promptwire/promptwire/logging"
	"github.com/promptwire/promptwire/model"
)

// Options holds configuration overrides passed to New().
type Options struct {
	// MaxModelCalls limits the number of model invocations per run,
	// bounding tool round-trips.
	MaxModelCalls int
	// EventBufferSize sets channel buffering for forwarded events.
	EventBufferSize int
	// Logger receives run lifecycle events. Defaults to NoOp.
	Logger logging.Logger
}

// Runner executes adapted invocations. Public methods are safe for
// concurrent use; each run owns its own channels and message history.
type Runner struct {
	maxModelCalls   int
	eventBufferSize int
	logger          logging.Logger
}

// New constructs a Runner with optional overrides.
func New(optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxModelCalls:   10,
		EventBufferSize: 64,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Runner{
		maxModelCalls:   opts.MaxModelCalls,
		eventBufferSize: opts.EventBufferSize,
		logger:          opts.Logger,
	}
}

// RunText executes a resolved text invocation, transparently handling tool
// round-trips. Every model event is forwarded, and tool executions surface
// as ToolResult events between turns. Both returned channels close when the
// run ends; a terminal failure arrives on the error channel.
func (r *Runner) RunText(ctx context.Context, params *adapter.TextParams) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, r.eventBufferSize)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		messages := make([]core.ChatMessage, len(params.Request.Messages))
		copy(messages, params.Request.Messages)

		for call := 0; call < r.maxModelCalls; call++ {
			req := params.Request
			req.Messages = messages

			pending, finish, err := r.forwardTurn(ctx, params.Model, req, out)
			if err != nil {
				errCh <- err
				return
			}
			if finish != "tool_calls" || len(pending) == 0 {
				return
			}

			turnMessages, err := r.executeTools(ctx, params, pending, out)
			if err != nil {
				errCh <- err
				return
			}
			messages = append(messages, turnMessages...)
		}

		errCh <- fmt.Errorf("model call limit of %d reached without a final response", r.maxModelCalls)
	}()

	return out, errCh
}

// RunObject executes a resolved structured output invocation. Object prompts
// carry no tools, so the single turn is forwarded as-is.
func (r *Runner) RunObject(ctx context.Context, params *adapter.ObjectParams) (<-chan model.Response, <-chan error) {
	return params.Model.Generate(ctx, params.Request)
}

// forwardTurn streams one model invocation to out, collecting requested tool
// calls and the finish reason.
func (r *Runner) forwardTurn(
	ctx context.Context,
	m model.LanguageModel,
	req model.Request,
	out chan<- model.Response,
) ([]model.ToolCallEvent, string, error) {
	responses, errs := m.Generate(ctx, req)

	var pending []model.ToolCallEvent
	var finish string

	for responses != nil || errs != nil {
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			// Forward events the model produced before failing, so
			// consumers see every delta up to the failure point.
			for resp := range responses {
				select {
				case out <- resp:
				case <-ctx.Done():
					return nil, "", ctx.Err()
				}
			}
			return nil, "", err
		case resp, ok := <-responses:
			if !ok {
				responses = nil
				continue
			}
			if resp.ToolCall != nil {
				pending = append(pending, *resp.ToolCall)
			}
			if resp.FinishReason != "" {
				finish = resp.FinishReason
			}
			select {
			case out <- resp:
			case <-ctx.Done():
				return nil, "", ctx.Err()
			}
		}
	}

	return pending, finish, nil
}

// executeTools runs the pending tool calls in request order and returns the
// messages replaying the calls and their outcomes into the next turn. Tool
// failures do not abort the run; the failure text goes back to the model.
func (r *Runner) executeTools(
	ctx context.Context,
	params *adapter.TextParams,
	pending []model.ToolCallEvent,
	out chan<- model.Response,
) ([]core.ChatMessage, error) {
	var messages []core.ChatMessage

	for _, tc := range pending {
		messages = append(messages, core.ChatMessage{
			Role: core.RoleAssistant,
			Parts: []core.Part{core.ToolCallPart{ToolCall: core.ToolCall{
				ID:        tc.ID,
				Name:      tc.Name,
				Arguments: string(tc.Arguments),
			}}},
		})

		result := core.ToolResult{ID: tc.ID, Name: tc.Name}
		value, err := r.invokeTool(ctx, params, tc)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn("runner.tool.failed", "tool", tc.Name, "error", err)
			result.Error = err.Error()
		} else {
			result.Result = value
		}

		event := model.ToolResultEvent{ID: tc.ID, Name: tc.Name, Result: result.Result, Error: result.Error}
		select {
		case out <- model.Response{Partial: true, ToolResult: &event}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		messages = append(messages, core.ChatMessage{
			Role:  core.RoleTool,
			Parts: []core.Part{core.ToolResultPart{ToolResult: result}},
		})
	}

	return messages, nil
}

func (r *Runner) invokeTool(ctx context.Context, params *adapter.TextParams, tc model.ToolCallEvent) (any, error) {
	resolved, ok := params.Tools.Get(tc.Name)
	if !ok {
		return nil, fmt.Errorf("model requested unknown tool %q (resolved tools: %s)", tc.Name, params.Tools)
	}

	var args map[string]any
	if len(tc.Arguments) > 0 {
		if err := json.Unmarshal(tc.Arguments, &args); err != nil {
			return nil, fmt.Errorf("parse arguments of tool %q: %w", tc.Name, err)
		}
	}

	return resolved.Invoke(ctx, args, params.ToolContext)
}

// TextOutcome is the collected result of a completed text run.
type TextOutcome struct {
	Text   string
	Usage  *model.TokenUsage
	Finish string
}

// CollectText runs a text invocation to completion and assembles the final
// text. Convenience for non-streaming callers such as experiment runs.
func (r *Runner) CollectText(ctx context.Context, params *adapter.TextParams) (*TextOutcome, error) {
	responses, errs := r.RunText(ctx, params)

	var sb strings.Builder
	outcome := &TextOutcome{}
	for resp := range responses {
		sb.WriteString(resp.Delta)
		if resp.FinishReason != "" {
			outcome.Finish = resp.FinishReason
		}
		if resp.Usage != nil {
			outcome.Usage = resp.Usage
		}
	}
	if err := <-errs; err != nil {
		return nil, err
	}

	outcome.Text = sb.String()
	return outcome, nil
}
