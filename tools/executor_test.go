package tools_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/terminus/approval"
	"github.com/tailored-agentic-units/terminus/core/protocol"
	"github.com/tailored-agentic-units/terminus/observability"
	"github.com/tailored-agentic-units/terminus/tools"
)

type counter struct {
	mu    sync.Mutex
	calls map[string]int
}

func (c *counter) inc(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[name]++
}

func (c *counter) get(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func fixture(t *testing.T, c *counter) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()

	specs := []tools.Spec{
		{
			Name:       "list_directory",
			Schema:     tools.NewSchema().String("path", "dir", true).Build(),
			SideEffect: protocol.ReadOnly,
			Handler: func(_ context.Context, call tools.Call) (tools.Result, error) {
				c.inc("list_directory")
				return tools.Result{Content: "listing of " + call.StringArg("path")}, nil
			},
		},
		{
			Name:       "write_file",
			Schema:     tools.NewSchema().String("path", "file", true).String("content", "body", true).Build(),
			SideEffect: protocol.Mutating,
			Preview: func(_ context.Context, call tools.Call) (string, error) {
				return "write " + call.StringArg("path"), nil
			},
			Handler: func(_ context.Context, call tools.Call) (tools.Result, error) {
				c.inc("write_file")
				return tools.Result{Content: "wrote " + call.StringArg("path")}, nil
			},
		},
		{
			Name:       "run_command",
			Schema:     tools.NewSchema().String("cmd", "command", true).Build(),
			SideEffect: protocol.Destructive,
			Commands: func(call tools.Call) ([]string, error) {
				return []string{call.StringArg("cmd")}, nil
			},
			Handler: func(_ context.Context, call tools.Call) (tools.Result, error) {
				c.inc("run_command")
				return tools.Result{Content: "ran " + call.StringArg("cmd")}, nil
			},
		},
		{
			Name:       "fail",
			SideEffect: protocol.ReadOnly,
			Handler: func(context.Context, tools.Call) (tools.Result, error) {
				c.inc("fail")
				return tools.Result{}, errors.New("disk on fire")
			},
		},
		{
			Name:       "panic",
			SideEffect: protocol.ReadOnly,
			Handler: func(context.Context, tools.Call) (tools.Result, error) {
				c.inc("panic")
				panic("boom")
			},
		},
		{
			Name:       "change_directory",
			Schema:     tools.NewSchema().String("path", "dir", true).Build(),
			SideEffect: protocol.ReadOnly,
			Handler: func(_ context.Context, call tools.Call) (tools.Result, error) {
				return tools.Result{Content: "ok", Effects: tools.Effects{Dir: call.StringArg("path")}}, nil
			},
		},
	}
	for _, s := range specs {
		require.NoError(t, r.Register(s))
	}
	r.Seal()
	return r
}

func env(policy approval.Policy) tools.Env {
	return tools.Env{SessionID: "s", Dir: "/work", Policy: policy}
}

func TestExecutor_ReadOnlyNeverPrompts(t *testing.T) {
	c := &counter{}
	spy := approval.NewSpy(approval.DeclineAll)
	x := tools.NewExecutor(fixture(t, c), tools.WithGate(approval.NewGate(spy)))

	exec := x.Execute(context.Background(),
		protocol.ToolCall{ID: "c1", Name: "list_directory", Arguments: `{"path":"."}`},
		env(approval.NewState(false, nil)))

	assert.False(t, exec.Outcome.Failed())
	assert.Equal(t, "listing of .", exec.Outcome.Content)
	assert.Zero(t, spy.Count())
}

func TestExecutor_DeclinedHandlerNeverInvoked(t *testing.T) {
	c := &counter{}
	spy := approval.NewSpy(approval.DeclineAll)
	x := tools.NewExecutor(fixture(t, c), tools.WithGate(approval.NewGate(spy)))

	exec := x.Execute(context.Background(),
		protocol.ToolCall{ID: "c1", Name: "run_command", Arguments: `{"cmd":"rm temp.txt"}`},
		env(approval.NewState(false, nil)))

	require.True(t, exec.Outcome.Failed())
	assert.Equal(t, protocol.FailureUserDeclined, exec.Outcome.Failure.Kind)
	assert.Equal(t, 1, spy.Count())
	assert.Zero(t, c.get("run_command"))
}

func TestExecutor_PromptPrecedesExecution(t *testing.T) {
	c := &counter{}
	var invokedBeforeDecision atomic.Bool
	prompter := approval.PrompterFunc(func(_ context.Context, req approval.Request) (approval.Answer, error) {
		if c.get("write_file") > 0 {
			invokedBeforeDecision.Store(true)
		}
		assert.Equal(t, "write notes.txt", req.Preview)
		return approval.AnswerYes, nil
	})
	x := tools.NewExecutor(fixture(t, c), tools.WithGate(approval.NewGate(prompter)))

	exec := x.Execute(context.Background(),
		protocol.ToolCall{ID: "c1", Name: "write_file", Arguments: `{"path":"notes.txt","content":"x"}`},
		env(approval.NewState(false, nil)))

	assert.False(t, exec.Outcome.Failed())
	assert.False(t, invokedBeforeDecision.Load())
	assert.Equal(t, 1, c.get("write_file"))
}

func TestExecutor_AutoApproveSkipsPrompt(t *testing.T) {
	c := &counter{}
	spy := approval.NewSpy(approval.DeclineAll)
	x := tools.NewExecutor(fixture(t, c), tools.WithGate(approval.NewGate(spy)))

	exec := x.Execute(context.Background(),
		protocol.ToolCall{ID: "c1", Name: "write_file", Arguments: `{"path":"a","content":"b"}`},
		env(approval.NewState(true, nil)))

	assert.False(t, exec.Outcome.Failed())
	assert.Zero(t, spy.Count())
}

func TestExecutor_AllowedCommandSkipsPrompt(t *testing.T) {
	c := &counter{}
	spy := approval.NewSpy(approval.DeclineAll)
	x := tools.NewExecutor(fixture(t, c), tools.WithGate(approval.NewGate(spy)))

	exec := x.Execute(context.Background(),
		protocol.ToolCall{ID: "c1", Name: "run_command", Arguments: `{"cmd":"ls"}`},
		env(approval.NewState(false, []string{"ls"})))

	assert.False(t, exec.Outcome.Failed())
	assert.Zero(t, spy.Count())
	assert.Equal(t, 1, c.get("run_command"))
}

func TestExecutor_FailureTaxonomy(t *testing.T) {
	tests := []struct {
		name string
		call protocol.ToolCall
		want protocol.FailureKind
	}{
		{name: "unknown tool", call: protocol.ToolCall{ID: "c1", Name: "teleport"}, want: protocol.FailureUnknownTool},
		{name: "missing name", call: protocol.ToolCall{ID: "c1"}, want: protocol.FailureUnknownTool},
		{name: "bad json", call: protocol.ToolCall{ID: "c1", Name: "list_directory", Arguments: `{`}, want: protocol.FailureInvalidArguments},
		{name: "missing required", call: protocol.ToolCall{ID: "c1", Name: "list_directory", Arguments: `{}`}, want: protocol.FailureInvalidArguments},
		{name: "handler error", call: protocol.ToolCall{ID: "c1", Name: "fail"}, want: protocol.FailureExecution},
		{name: "handler panic", call: protocol.ToolCall{ID: "c1", Name: "panic"}, want: protocol.FailureExecution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := tools.NewExecutor(fixture(t, &counter{}))
			exec := x.Execute(context.Background(), tt.call, env(nil))

			require.True(t, exec.Outcome.Failed(), "outcome = %+v", exec.Outcome)
			assert.Equal(t, tt.want, exec.Outcome.Failure.Kind)
		})
	}
}

func TestExecutor_InvalidArgumentsSkipHandler(t *testing.T) {
	c := &counter{}
	spy := approval.NewSpy(approval.ApproveAll)
	x := tools.NewExecutor(fixture(t, c), tools.WithGate(approval.NewGate(spy)))

	x.Execute(context.Background(),
		protocol.ToolCall{ID: "c1", Name: "write_file", Arguments: `{"path":"a"}`},
		env(approval.NewState(false, nil)))

	assert.Zero(t, c.get("write_file"))
	assert.Zero(t, spy.Count(), "invalid calls are rejected before confirmation")
}

func TestExecutor_BatchPreservesRequestOrder(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(tools.Spec{
		Name:   "sleep",
		Schema: tools.NewSchema().Integer("ms", "delay", true).Build(),
		Handler: func(ctx context.Context, call tools.Call) (tools.Result, error) {
			time.Sleep(time.Duration(call.IntArg("ms", 0)) * time.Millisecond)
			return tools.Result{Content: call.ID}, nil
		},
	}))
	x := tools.NewExecutor(r, tools.WithConcurrency(8))

	delays := []string{"40", "5", "25", "1", "15"}
	calls := make([]protocol.ToolCall, len(delays))
	for i, d := range delays {
		calls[i] = protocol.ToolCall{ID: "c" + d, Name: "sleep", Arguments: `{"ms":` + d + `}`}
	}

	execs := x.ExecuteBatch(context.Background(), calls, env(nil))

	require.Len(t, execs, len(calls))
	for i, e := range execs {
		assert.Equal(t, calls[i].ID, e.Call.ID)
		assert.Equal(t, calls[i].ID, e.Outcome.Content)
		assert.Equal(t, calls[i].ID, e.Result().ID)
	}
}

func TestExecutor_BatchRunsConcurrently(t *testing.T) {
	var running, peak atomic.Int32
	release := make(chan struct{})

	r := tools.NewRegistry()
	require.NoError(t, r.Register(tools.Spec{
		Name: "block",
		Handler: func(ctx context.Context, _ tools.Call) (tools.Result, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-release
			running.Add(-1)
			return tools.Result{Content: "done"}, nil
		},
	}))
	x := tools.NewExecutor(r, tools.WithConcurrency(3))

	calls := []protocol.ToolCall{{ID: "a", Name: "block"}, {ID: "b", Name: "block"}, {ID: "c", Name: "block"}}
	done := make(chan []tools.Execution)
	go func() { done <- x.ExecuteBatch(context.Background(), calls, env(nil)) }()

	require.Eventually(t, func() bool { return peak.Load() == 3 }, time.Second, 5*time.Millisecond)
	close(release)

	execs := <-done
	for _, e := range execs {
		assert.Equal(t, "done", e.Outcome.Content)
	}
}

func TestExecutor_GatingIsSequentialInRequestOrder(t *testing.T) {
	c := &counter{}
	spy := approval.NewSpy(approval.ApproveAll)
	x := tools.NewExecutor(fixture(t, c), tools.WithGate(approval.NewGate(spy)))

	calls := []protocol.ToolCall{
		{ID: "c1", Name: "write_file", Arguments: `{"path":"1","content":""}`},
		{ID: "c2", Name: "list_directory", Arguments: `{"path":"."}`},
		{ID: "c3", Name: "run_command", Arguments: `{"cmd":"make"}`},
	}
	x.ExecuteBatch(context.Background(), calls, env(approval.NewState(false, nil)))

	reqs := spy.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "c1", reqs[0].CallID)
	assert.Equal(t, "c3", reqs[1].CallID)
	assert.Equal(t, []string{"make"}, reqs[1].Commands)
}

func TestExecutor_EffectsReturnedNotApplied(t *testing.T) {
	x := tools.NewExecutor(fixture(t, &counter{}))
	e := x.Execute(context.Background(),
		protocol.ToolCall{ID: "c1", Name: "change_directory", Arguments: `{"path":"/tmp"}`},
		env(nil))

	assert.Equal(t, "/tmp", e.Effects.Dir)
}

func TestExecutor_CanceledContext(t *testing.T) {
	c := &counter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	x := tools.NewExecutor(fixture(t, c))
	execs := x.ExecuteBatch(ctx, []protocol.ToolCall{
		{ID: "c1", Name: "list_directory", Arguments: `{"path":"."}`},
		{ID: "c2", Name: "write_file", Arguments: `{"path":"a","content":"b"}`},
	}, env(nil))

	for _, e := range execs {
		require.True(t, e.Outcome.Failed())
		assert.Equal(t, protocol.FailureCanceled, e.Outcome.Failure.Kind)
	}
	assert.Zero(t, c.get("list_directory"))
}

func TestExecutor_CancelDuringHandler(t *testing.T) {
	r := tools.NewRegistry()
	started := make(chan struct{})
	require.NoError(t, r.Register(tools.Spec{
		Name: "wait",
		Handler: func(ctx context.Context, _ tools.Call) (tools.Result, error) {
			close(started)
			<-ctx.Done()
			return tools.Result{}, ctx.Err()
		},
	}))
	x := tools.NewExecutor(r)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	e := x.Execute(ctx, protocol.ToolCall{ID: "c1", Name: "wait"}, env(nil))
	require.True(t, e.Outcome.Failed())
	assert.Equal(t, protocol.FailureCanceled, e.Outcome.Failure.Kind)
}

func TestExecutor_EmitsEvents(t *testing.T) {
	obs := &observability.CaptureObserver{}
	x := tools.NewExecutor(fixture(t, &counter{}), tools.WithObserver(obs))

	x.ExecuteBatch(context.Background(), []protocol.ToolCall{
		{ID: "c1", Name: "list_directory", Arguments: `{"path":"."}`},
		{ID: "c2", Name: "nope"},
	}, env(nil))

	events := obs.OfType(tools.EventExecute)
	require.Len(t, events, 2)
	assert.Equal(t, "c1", events[0].Data["call_id"])
	assert.Equal(t, "unknown_tool", events[1].Data["failure"])
	assert.Equal(t, "s", events[1].SessionID)
}

func TestExecutor_NoGateDeclinesGatedCalls(t *testing.T) {
	c := &counter{}
	x := tools.NewExecutor(fixture(t, c))

	e := x.Execute(context.Background(),
		protocol.ToolCall{ID: "c1", Name: "write_file", Arguments: `{"path":"a","content":"b"}`},
		env(nil))

	require.True(t, e.Outcome.Failed())
	assert.Equal(t, protocol.FailureUserDeclined, e.Outcome.Failure.Kind)
	assert.Zero(t, c.get("write_file"))
}
