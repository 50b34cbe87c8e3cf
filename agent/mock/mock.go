// Package mock provides a scripted Agent for tests. Each Generate call
// consumes the next Step of the script and records what the loop sent.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/terminus/core/protocol"
	"github.com/tailored-agentic-units/terminus/core/response"
)

// ErrScriptExhausted is returned once every step has been consumed.
var ErrScriptExhausted = errors.New("mock: script exhausted")

// Invocation is one recorded Generate call.
type Invocation struct {
	System  string
	History []protocol.Turn
	Catalog []protocol.Tool
}

// Step produces the reply for one Generate call.
type Step func(ctx context.Context, inv Invocation) (*response.Response, error)

// Reply returns a step that answers with resp.
func Reply(resp *response.Response) Step {
	return func(context.Context, Invocation) (*response.Response, error) {
		return resp, nil
	}
}

// Final returns a step that answers with final text.
func Final(text string) Step {
	return Reply(response.Final(text))
}

// Calls returns a step that requests the given tool calls.
func Calls(calls ...protocol.ToolCall) Step {
	return Reply(response.Batch(calls...))
}

// Fail returns a step that fails with err.
func Fail(err error) Step {
	return func(context.Context, Invocation) (*response.Response, error) {
		return nil, err
	}
}

// Block returns a step that waits for ctx to be done.
func Block() Step {
	return func(ctx context.Context, _ Invocation) (*response.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

// Agent is a scripted backend. Safe for concurrent use.
type Agent struct {
	id       string
	provider string
	model    string

	mu          sync.Mutex
	steps       []Step
	repeat      Step
	invocations []Invocation
}

// Option configures an Agent.
type Option func(*Agent)

// WithModel sets the reported model name.
func WithModel(name string) Option {
	return func(a *Agent) { a.model = name }
}

// WithRepeat sets the step used after the script runs out, instead of
// failing with ErrScriptExhausted.
func WithRepeat(s Step) Option {
	return func(a *Agent) { a.repeat = s }
}

// New creates an Agent that plays steps in order.
func New(steps []Step, opts ...Option) *Agent {
	a := &Agent{
		id:       uuid.Must(uuid.NewV7()).String(),
		provider: "mock",
		model:    "mock",
		steps:    steps,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) ID() string       { return a.id }
func (a *Agent) Provider() string { return a.provider }
func (a *Agent) Model() string    { return a.model }

func (a *Agent) Generate(ctx context.Context, system string, history []protocol.Turn, catalog []protocol.Tool) (*response.Response, error) {
	inv := Invocation{
		System:  system,
		History: append([]protocol.Turn(nil), history...),
		Catalog: append([]protocol.Tool(nil), catalog...),
	}

	a.mu.Lock()
	a.invocations = append(a.invocations, inv)
	var step Step
	switch {
	case len(a.steps) > 0:
		step = a.steps[0]
		a.steps = a.steps[1:]
	case a.repeat != nil:
		step = a.repeat
	}
	a.mu.Unlock()

	if step == nil {
		return nil, ErrScriptExhausted
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return step(ctx, inv)
}

// Invocations returns every recorded call in order.
func (a *Agent) Invocations() []Invocation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Invocation(nil), a.invocations...)
}

// Count returns the number of Generate calls made.
func (a *Agent) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.invocations)
}

// Remaining returns the number of unconsumed steps.
func (a *Agent) Remaining() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.steps)
}
