package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tailored-agentic-units/terminus/approval"
	"github.com/tailored-agentic-units/terminus/core/protocol"
	"github.com/tailored-agentic-units/terminus/observability"
)

// EventExecute is emitted once per call after its outcome is known.
const EventExecute observability.EventType = "tools.execute"

const defaultConcurrency = 4

// Gate decides whether a gated call may run.
type Gate interface {
	Approve(ctx context.Context, policy approval.Policy, req approval.Request) (approval.Decision, error)
}

// Env is the session context a batch runs in.
type Env struct {
	SessionID string
	Dir       string
	Policy    approval.Policy
}

// Execution pairs a call with its outcome and requested effects.
type Execution struct {
	Call     protocol.ToolCall
	Outcome  protocol.Outcome
	Effects  Effects
	Duration time.Duration
}

// Result converts the execution into the tool_result payload for history.
func (e Execution) Result() protocol.ToolResult {
	return protocol.ToolResult{ID: e.Call.ID, Name: e.Call.Name, Outcome: e.Outcome}
}

// Executor resolves, validates, gates, and runs tool calls. It never
// retries a call; retrying is the model's decision on the next round.
type Executor struct {
	registry *Registry
	gate     Gate
	observer observability.Observer
	limit    int
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithGate sets the confirmation gate. Without one, every gated call that
// would need a prompt is declined.
func WithGate(g Gate) ExecutorOption {
	return func(x *Executor) { x.gate = g }
}

// WithObserver sets the observer that receives execution events.
func WithObserver(o observability.Observer) ExecutorOption {
	return func(x *Executor) { x.observer = o }
}

// WithConcurrency bounds how many approved handlers run at once within a
// batch. Values below 1 select the default.
func WithConcurrency(n int) ExecutorOption {
	return func(x *Executor) {
		if n > 0 {
			x.limit = n
		}
	}
}

// NewExecutor creates an Executor over registry.
func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	x := &Executor{
		registry: registry,
		gate:     approval.NewGate(nil),
		observer: observability.NoOpObserver{},
		limit:    defaultConcurrency,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Catalog returns the registry's tool definitions in registration order.
func (x *Executor) Catalog() []protocol.Tool {
	return x.registry.Catalog()
}

// Execute runs a single call. See ExecuteBatch.
func (x *Executor) Execute(ctx context.Context, call protocol.ToolCall, env Env) Execution {
	return x.ExecuteBatch(ctx, []protocol.ToolCall{call}, env)[0]
}

type job struct {
	index   int
	call    Call
	handler Handler
}

// ExecuteBatch runs one round of calls and returns exactly one Execution
// per call, in request order. Resolution, validation, and confirmation run
// sequentially in request order because the gate may block on the user.
// Approved handlers then run concurrently. Every failure is absorbed into
// the corresponding Outcome.
func (x *Executor) ExecuteBatch(ctx context.Context, calls []protocol.ToolCall, env Env) []Execution {
	if env.Policy == nil {
		env.Policy = approval.NewState(false, nil)
	}

	execs := make([]Execution, len(calls))
	jobs := make([]job, 0, len(calls))

	for i, call := range calls {
		execs[i].Call = call
		j, failure := x.prepare(ctx, call, env)
		if failure != nil {
			execs[i].Outcome = *failure
			continue
		}
		j.index = i
		jobs = append(jobs, j)
	}

	var g errgroup.Group
	g.SetLimit(x.limit)
	for _, j := range jobs {
		g.Go(func() error {
			start := time.Now()
			outcome, effects := invoke(ctx, j.handler, j.call)
			execs[j.index].Outcome = outcome
			execs[j.index].Effects = effects
			execs[j.index].Duration = time.Since(start)
			return nil
		})
	}
	_ = g.Wait()

	for _, e := range execs {
		x.emit(ctx, env, e)
	}
	return execs
}

// prepare resolves, validates, and gates one call. A non-nil outcome means
// the handler must not run.
func (x *Executor) prepare(ctx context.Context, call protocol.ToolCall, env Env) (job, *protocol.Outcome) {
	fail := func(kind protocol.FailureKind, format string, args ...any) (job, *protocol.Outcome) {
		o := protocol.Fail(kind, format, args...)
		return job{}, &o
	}

	if err := ctx.Err(); err != nil {
		return fail(protocol.FailureCanceled, "turn canceled before %s ran", call.Name)
	}
	if call.Name == "" {
		return fail(protocol.FailureUnknownTool, "tool call has no name")
	}

	e, err := x.registry.get(call.Name)
	if err != nil {
		return fail(protocol.FailureUnknownTool, "no tool named %q is available", call.Name)
	}

	args, err := validate(e, call.Arguments)
	if err != nil {
		return fail(protocol.FailureInvalidArguments, "%s", err.Error())
	}

	c := Call{ID: call.ID, Name: call.Name, Args: args, Dir: env.Dir}

	if e.spec.SideEffect.RequiresConfirmation() {
		req := approval.Request{
			CallID:     call.ID,
			Tool:       call.Name,
			SideEffect: e.spec.SideEffect,
		}
		if e.spec.Commands != nil {
			if cmds, err := e.spec.Commands(c); err == nil {
				req.Commands = cmds
			}
		}
		if !env.Policy.AutoApprove() && !env.Policy.Trusted(call.Name) {
			req.Preview = preview(ctx, e.spec, c)
		}

		decision, err := x.gate.Approve(ctx, env.Policy, req)
		switch {
		case err != nil && ctx.Err() != nil:
			return fail(protocol.FailureCanceled, "turn canceled while confirming %s", call.Name)
		case err != nil:
			return fail(protocol.FailureUserDeclined, "confirmation failed: %v", err)
		case decision != approval.Approved:
			return fail(protocol.FailureUserDeclined, "the user declined to run %s", call.Name)
		}
	}

	return job{call: c, handler: e.spec.Handler}, nil
}

func preview(ctx context.Context, spec Spec, call Call) string {
	if spec.Preview != nil {
		p, err := spec.Preview(ctx, call)
		if err == nil {
			return p
		}
		return fmt.Sprintf("(preview unavailable: %v)", err)
	}
	data, err := json.MarshalIndent(call.Args, "", "  ")
	if err != nil {
		return fmt.Sprint(call.Args)
	}
	return string(data)
}

func invoke(ctx context.Context, h Handler, call Call) (out protocol.Outcome, effects Effects) {
	defer func() {
		if r := recover(); r != nil {
			out = protocol.Fail(protocol.FailureExecution, "%s panicked: %v", call.Name, r)
			effects = Effects{}
		}
	}()

	res, err := h(ctx, call)
	if err != nil {
		if ctx.Err() != nil {
			return protocol.Fail(protocol.FailureCanceled, "%s was canceled", call.Name), Effects{}
		}
		return protocol.Fail(protocol.FailureExecution, "%s", err.Error()), Effects{}
	}
	return protocol.Success(res.Content), res.Effects
}

func (x *Executor) emit(ctx context.Context, env Env, e Execution) {
	data := map[string]any{
		"call_id":     e.Call.ID,
		"name":        e.Call.Name,
		"duration_ms": e.Duration.Milliseconds(),
	}
	level := observability.LevelVerbose
	if e.Outcome.Failure != nil {
		data["failure"] = string(e.Outcome.Failure.Kind)
		if e.Outcome.Failure.Kind == protocol.FailureExecution {
			level = observability.LevelWarning
		}
	}
	observability.Emit(ctx, x.observer, observability.Event{
		Type:      EventExecute,
		Level:     level,
		Source:    "tools.Executor",
		SessionID: env.SessionID,
		Data:      data,
	})
}
