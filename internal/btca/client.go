// Package btca drives the btca command-line program. It builds argument
// vectors for the configured convention, runs btca, and normalises every
// outcome into the single string returned to the agent.
package btca

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deixis/btcamcp/internal/observe"
	"github.com/deixis/btcamcp/internal/runner"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Executor runs btca with an argument vector.
// Implemented by runner.Runner.
type Executor interface {
	Run(ctx context.Context, args []string) (*runner.Result, error)
	RunRaced(ctx context.Context, args []string, wait time.Duration) (*runner.Result, error)
}

// DefaultModelWait bounds a model change; btca keeps running after it has
// written the new model.
const DefaultModelWait = 5 * time.Second

// Operation names, used as span names and metric attributes.
const (
	OpAsk            = "ask"
	OpSetModel       = "set_model"
	OpListResources  = "list_resources"
	OpAddResource    = "add_resource"
	OpRemoveResource = "remove_resource"
	OpClearCache     = "clear_cache"
)

// ResourceType is the kind of source a resource points at.
type ResourceType string

const (
	GitResource   ResourceType = "git"
	LocalResource ResourceType = "local"
)

// AddRequest describes a resource to add.
type AddRequest struct {
	Name        string
	Type        ResourceType
	URL         string // required for git
	Branch      string // git only
	Path        string // required for local
	SearchPaths []string
	Notes       string
}

// Validate returns a user-facing message for a request that must not reach
// btca, or "" if the request is acceptable.
func (r AddRequest) Validate() string {
	if strings.TrimSpace(r.Name) == "" {
		return "Error: name is required"
	}
	switch r.Type {
	case GitResource:
		if r.URL == "" {
			return "Error: url is required for git type resources"
		}
	case LocalResource:
		if r.Path == "" {
			return "Error: path is required for local type resources"
		}
	default:
		return fmt.Sprintf("Error: type must be one of: %s, %s", GitResource, LocalResource)
	}
	return ""
}

// Response is the outcome of an operation. Text is what the agent sees.
// Failed is set when the request was rejected or btca exited with a failure
// status; it never depends on what Text happens to say.
type Response struct {
	Text   string
	Failed bool
}

// Client runs btca operations. It holds no per-call state and is safe for
// concurrent use as long as its fields are not changed after the first
// call; each call owns its own child process.
type Client struct {
	Runner     Executor
	Convention Convention
	ModelWait  time.Duration // zero means DefaultModelWait
	Metrics    *observe.Metrics
}

// Ask answers question using the named resources.
func (c *Client) Ask(ctx context.Context, resources []string, question string) (Response, error) {
	if len(resources) == 0 {
		return c.reject(ctx, OpAsk, "Error: at least one resource is required"), nil
	}
	for _, r := range resources {
		if strings.TrimSpace(r) == "" {
			return c.reject(ctx, OpAsk, "Error: resource names must not be empty"), nil
		}
	}
	if strings.TrimSpace(question) == "" {
		return c.reject(ctx, OpAsk, "Error: question is required"), nil
	}
	return c.invoke(ctx, OpAsk, c.Convention.AskArgs(resources, question))
}

// SetModel switches btca to provider/model.
//
// btca writes the new model and then does not exit, so the run is raced
// against ModelWait. A run that is still going at the deadline, or that was
// ended with status 124, is reported as a success. This cannot be verified
// from here: if btca ever starts hanging before the write, failures will be
// reported as updates.
func (c *Client) SetModel(ctx context.Context, provider, model string) (Response, error) {
	if strings.TrimSpace(provider) == "" || strings.TrimSpace(model) == "" {
		return c.reject(ctx, OpSetModel, "Error: provider and model are required"), nil
	}

	args := c.Convention.ModelArgs(provider, model)
	ctx, span := c.start(ctx, OpSetModel, args)
	defer span.End()

	wait := c.ModelWait
	if wait <= 0 {
		wait = DefaultModelWait
	}

	res, err := c.Runner.RunRaced(ctx, args, wait)
	if err != nil {
		return Response{}, c.fail(ctx, span, OpSetModel, err)
	}

	confirmation := fmt.Sprintf("Model updated: %s/%s", provider, model)
	status := observe.StatusOK
	var out Response
	switch {
	case res.TimedOut:
		status = observe.StatusTimeout
		out.Text = confirmation
	case res.ExitCode == 0 || res.ExitCode == exitTimedOut:
		out.Text = strings.TrimSpace(string(res.Stdout))
		if out.Text == "" {
			out.Text = confirmation
		}
	default:
		status = observe.StatusError
		out = Response{Text: Normalize(res), Failed: true}
	}

	c.finish(ctx, span, OpSetModel, status, res)
	return out, nil
}

// ListResources lists the configured resources.
func (c *Client) ListResources(ctx context.Context) (Response, error) {
	return c.invoke(ctx, OpListResources, c.Convention.ListArgs())
}

// AddResource adds a git or local resource. Invalid requests are answered
// with a message and never run btca.
func (c *Client) AddResource(ctx context.Context, req AddRequest) (Response, error) {
	if msg := req.Validate(); msg != "" {
		return c.reject(ctx, OpAddResource, msg), nil
	}
	return c.invoke(ctx, OpAddResource, c.Convention.AddArgs(req))
}

// RemoveResource removes the named resource.
func (c *Client) RemoveResource(ctx context.Context, name string) (Response, error) {
	if strings.TrimSpace(name) == "" {
		return c.reject(ctx, OpRemoveResource, "Error: name is required"), nil
	}
	return c.invoke(ctx, OpRemoveResource, c.Convention.RemoveArgs(name))
}

// ClearCache deletes every locally cached resource.
func (c *Client) ClearCache(ctx context.Context) (Response, error) {
	return c.invoke(ctx, OpClearCache, c.Convention.ClearArgs())
}

// invoke runs args to completion and normalises the result. The error is
// non-nil only when btca could not be started.
func (c *Client) invoke(ctx context.Context, op string, args []string) (Response, error) {
	ctx, span := c.start(ctx, op, args)
	defer span.End()

	res, err := c.Runner.Run(ctx, args)
	if err != nil {
		return Response{}, c.fail(ctx, span, op, err)
	}

	status := observe.StatusOK
	if res.ExitCode != 0 {
		status = observe.StatusError
	}
	c.finish(ctx, span, op, status, res)
	return Response{Text: Normalize(res), Failed: res.ExitCode != 0}, nil
}

func (c *Client) start(ctx context.Context, op string, args []string) (context.Context, trace.Span) {
	return observe.StartSpan(ctx, "btca."+op,
		trace.WithAttributes(attribute.StringSlice("btca.args", args)))
}

func (c *Client) finish(ctx context.Context, span trace.Span, op, status string, res *runner.Result) {
	span.SetAttributes(
		attribute.String("btca.run_id", res.RunID),
		attribute.Int("btca.exit_code", res.ExitCode),
		attribute.Bool("btca.timed_out", res.TimedOut),
	)
	if status == observe.StatusError {
		span.SetStatus(codes.Error, fmt.Sprintf("exit %d", res.ExitCode))
	}
	c.Metrics.RecordToolCall(ctx, op, status, res.Duration)

	log := observe.Logger(ctx)
	if res.Truncated {
		log.Warn("btca output truncated", "op", op, "run_id", res.RunID)
	}
	log.Debug("btca finished",
		"op", op,
		"run_id", res.RunID,
		"exit_code", res.ExitCode,
		"timed_out", res.TimedOut,
		"duration", res.Duration,
	)
}

func (c *Client) fail(ctx context.Context, span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.Metrics.RecordToolCall(ctx, op, observe.StatusError, 0)
	observe.Logger(ctx).Error("btca failed to run", "op", op, "err", err)
	return fmt.Errorf("%s: %w", op, err)
}

func (c *Client) reject(ctx context.Context, op, msg string) Response {
	c.Metrics.RecordToolCall(ctx, op, observe.StatusInvalid, 0)
	observe.Logger(ctx).Debug("btca request rejected", "op", op, "reason", msg)
	return Response{Text: msg, Failed: true}
}
