// Package kernel implements the agent loop that composes the model
// backends, the tool executor, the confirmation gate, and project memory
// into the request → tools → answer cycle.
//
// The kernel initializes from configuration via New, creating all subsystems
// internally. Functional options allow test overrides of any subsystem.
//
//	k, err := kernel.New(&cfg, kernel.WithPrompter(prompter))
//	sess, err := k.NewSession()
//	result, err := k.Run(ctx, sess, "list files in .")
package kernel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/terminus/agent"
	"github.com/tailored-agentic-units/terminus/approval"
	"github.com/tailored-agentic-units/terminus/core/protocol"
	"github.com/tailored-agentic-units/terminus/memory"
	"github.com/tailored-agentic-units/terminus/observability"
	"github.com/tailored-agentic-units/terminus/session"
	"github.com/tailored-agentic-units/terminus/tools"
	"github.com/tailored-agentic-units/terminus/tools/builtin"
)

// Status describes how a Run ended.
type Status string

const (
	StatusCompleted        Status = "completed"
	StatusRoundCapExceeded Status = "round_cap_exceeded"
	StatusCanceled         Status = "canceled"
	StatusFailed           Status = "failed"
)

// Result holds the outcome of a kernel Run invocation.
type Result struct {
	Response  string           // Final text answer, or the synthesized failure answer.
	Status    Status           // How the run ended.
	Rounds    int              // Number of backend calls made.
	ToolCalls []ToolCallRecord // Log of all tool invocations.
}

// ToolCallRecord logs one executed call.
type ToolCallRecord struct {
	protocol.ToolCall
	Round   int              // Round in which the call occurred.
	Outcome protocol.Outcome // Outcome fed back to the backend.
}

// Option configures a Kernel. Options are applied before config-driven
// initialization; any subsystem an option supplies is not created from
// configuration.
type Option func(*Kernel)

// WithAgent sets the default backend instead of creating it from the agent
// config section.
func WithAgent(a agent.Agent) Option {
	return func(k *Kernel) { k.agent = a }
}

// WithRegistry overrides the config-created backend registry.
func WithRegistry(r *agent.Registry) Option {
	return func(k *Kernel) { k.agents = r }
}

// WithTools overrides the config-created tool registry.
func WithTools(r *tools.Registry) Option {
	return func(k *Kernel) { k.tools = r }
}

// WithExecutor overrides the config-created executor. The prompter and
// tool registry options are ignored when an executor is supplied.
func WithExecutor(x *tools.Executor) Option {
	return func(k *Kernel) { k.executor = x }
}

// WithPrompter sets the prompter the confirmation gate asks. Without one,
// every call that needs confirmation is declined.
func WithPrompter(p approval.Prompter) Option {
	return func(k *Kernel) { k.prompter = p }
}

// WithObserver overrides the observer named in configuration.
func WithObserver(o observability.Observer) Option {
	return func(k *Kernel) { k.observer = o }
}

// WithMemory overrides the config-created notes cache and project guide.
// Either may be nil.
func WithMemory(notes *memory.Cache, guide *memory.Guide) Option {
	return func(k *Kernel) {
		k.notes = notes
		k.guide = guide
		k.memorySet = true
	}
}

// Kernel runs the agent loop. One Run executes at a time.
type Kernel struct {
	mu sync.Mutex

	agent     agent.Agent
	agents    *agent.Registry
	tools     *tools.Registry
	executor  *tools.Executor
	prompter  approval.Prompter
	observer  observability.Observer
	notes     *memory.Cache
	guide     *memory.Guide
	memorySet bool
	watcher   *memory.Watcher

	cfg          Config
	maxRounds    int
	systemPrompt string
}

// New creates a Kernel from configuration. Subsystems not supplied through
// options are initialized from their config sections.
func New(cfg *Config, opts ...Option) (*Kernel, error) {
	k := &Kernel{
		cfg:          *cfg,
		maxRounds:    cfg.MaxRounds,
		systemPrompt: cfg.SystemPrompt,
	}
	if k.maxRounds <= 0 {
		k.maxRounds = defaultMaxRounds
	}

	for _, opt := range opts {
		opt(k)
	}

	if k.observer == nil {
		name := cfg.Observer
		if name == "" {
			name = defaultObserver
		}
		obs, err := observability.GetObserver(name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve observer: %w", err)
		}
		k.observer = obs
	}

	if err := k.initAgents(cfg); err != nil {
		return nil, err
	}
	if err := k.initMemory(cfg); err != nil {
		return nil, err
	}
	if err := k.initTools(cfg); err != nil {
		k.Close()
		return nil, err
	}
	return k, nil
}

func (k *Kernel) initAgents(cfg *Config) error {
	if k.agents == nil {
		k.agents = agent.NewRegistry()
		for name, agentCfg := range cfg.Agents {
			if err := k.agents.Register(name, agentCfg); err != nil {
				return fmt.Errorf("failed to register agent %q: %w", name, err)
			}
		}
	}

	switch {
	case k.agent != nil:
		return k.agents.Set(DefaultBackend, k.agent)
	case k.agents.Has(DefaultBackend):
		return nil
	default:
		if err := k.agents.Register(DefaultBackend, cfg.Agent); err != nil {
			return fmt.Errorf("failed to register default agent: %w", err)
		}
		return nil
	}
}

func (k *Kernel) initMemory(cfg *Config) error {
	if k.memorySet || cfg.Memory.Disabled {
		return nil
	}

	base := cfg.Session.WorkingDirectory
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to resolve working directory: %w", err)
		}
		base = wd
	}
	notesDir, guidePath := cfg.Memory.Resolve(base)

	store, err := memory.NewStore(&cfg.Memory, base)
	if err != nil {
		return fmt.Errorf("failed to create memory store: %w", err)
	}
	if store != nil {
		k.notes = memory.NewCache(store)
		if err := k.notes.Load(context.Background()); err != nil {
			k.report(context.Background(), "", "load notes", err)
		}
	}
	if guidePath != "" {
		k.guide = memory.NewGuide(guidePath)
		if err := k.guide.Load(); err != nil {
			k.report(context.Background(), "", "load guide", err)
		}
	}

	if cfg.Memory.Watching() && (k.notes != nil || k.guide != nil) {
		w, err := memory.NewWatcher(k.notes, notesDir, k.guide, memory.WithWatchObserver(k.observer))
		if err != nil {
			k.report(context.Background(), "", "watch memory", err)
			return nil
		}
		if err := w.Start(context.Background()); err != nil {
			w.Stop()
			k.report(context.Background(), "", "watch memory", err)
			return nil
		}
		k.watcher = w
	}
	return nil
}

func (k *Kernel) initTools(cfg *Config) error {
	if k.executor != nil {
		return nil
	}

	if k.tools == nil {
		k.tools = tools.NewRegistry()
		err := builtin.Register(k.tools, builtin.Options{
			CommandTimeout: cfg.Tools.CommandTimeout.Std(),
			Notes:          k.notes,
			Extensions:     cfg.Tools.Extensions,
		})
		if err != nil {
			return fmt.Errorf("failed to register tools: %w", err)
		}
		k.tools.Seal()
	}

	gate := approval.NewGate(k.prompter, approval.WithObserver(k.observer))
	k.executor = tools.NewExecutor(k.tools,
		tools.WithGate(gate),
		tools.WithObserver(k.observer),
		tools.WithConcurrency(cfg.Tools.Concurrency),
	)
	return nil
}

// Close stops background memory watching. The kernel must not be used
// afterwards.
func (k *Kernel) Close() {
	if k.watcher != nil {
		k.watcher.Stop()
		k.watcher = nil
	}
}

// Registry returns the kernel's backend registry.
func (k *Kernel) Registry() *agent.Registry {
	return k.agents
}

// Catalog returns the tool definitions sent to the backend.
func (k *Kernel) Catalog() []protocol.Tool {
	return k.executor.Catalog()
}

// Notes returns the project notes cache, or nil when memory is disabled.
func (k *Kernel) Notes() *memory.Cache {
	return k.notes
}

// Guide returns the project guide, or nil when memory is disabled.
func (k *Kernel) Guide() *memory.Guide {
	return k.guide
}

// NewSession creates a session from the session config section.
func (k *Kernel) NewSession(opts ...session.Option) (session.Session, error) {
	return session.New(&k.cfg.Session, opts...)
}

// Backend resolves a session's backend identifier. The empty identifier
// selects the default backend.
func (k *Kernel) Backend(name string) (agent.Agent, error) {
	if name == "" {
		name = DefaultBackend
	}
	return k.agents.Get(name)
}

// Clear empties sess's history. It waits for a running turn to finish so a
// turn never sees its history vanish halfway.
func (k *Kernel) Clear(sess session.Session) {
	k.mu.Lock()
	defer k.mu.Unlock()
	sess.Clear()
}

// Run executes one user turn: it appends text to the session's history and
// alternates backend calls with tool batches until the backend answers, the
// round budget is spent, or ctx is canceled. History is consistent on every
// return: each tool_call turn has exactly one tool_result turn.
func (k *Kernel) Run(ctx context.Context, sess session.Session, text string) (*Result, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	result := &Result{Status: StatusFailed}
	if err := sess.Append(protocol.UserTurn(text)); err != nil {
		return result, err
	}

	backend, err := k.Backend(sess.Backend())
	if err != nil {
		k.emitError(ctx, sess, err)
		return result, fmt.Errorf("%w: %w", ErrBackend, err)
	}

	catalog := k.executor.Catalog()
	observability.Emit(ctx, k.observer, observability.Event{
		Type:      EventRunStart,
		Level:     observability.LevelInfo,
		Source:    "kernel.Run",
		SessionID: sess.ID(),
		Data: map[string]any{
			"prompt_length": len(text),
			"max_rounds":    k.maxRounds,
			"tools":         len(catalog),
			"backend":       backend.Model(),
		},
	})

	for round := 1; round <= k.maxRounds; round++ {
		if ctx.Err() != nil {
			return k.canceled(ctx, sess, result)
		}
		result.Rounds = round

		observability.Emit(ctx, k.observer, observability.Event{
			Type:      EventRoundStart,
			Level:     observability.LevelVerbose,
			Source:    "kernel.Run",
			SessionID: sess.ID(),
			Data:      map[string]any{"round": round},
		})

		resp, err := backend.Generate(ctx, k.systemContent(sess), sess.History(), catalog)
		if err != nil {
			if ctx.Err() != nil {
				return k.canceled(ctx, sess, result)
			}
			k.emitError(ctx, sess, err)
			return result, fmt.Errorf("%w: %w", ErrBackend, err)
		}
		if resp == nil || resp.Empty() {
			err := errors.New("backend returned an empty response")
			k.emitError(ctx, sess, err)
			return result, fmt.Errorf("%w: %w", ErrBackend, err)
		}

		if resp.IsFinal() {
			if err := sess.Append(protocol.AssistantTurn(resp.Text)); err != nil {
				return result, err
			}
			result.Response = resp.Text
			result.Status = StatusCompleted

			observability.Emit(ctx, k.observer, observability.Event{
				Type:      EventResponse,
				Level:     observability.LevelInfo,
				Source:    "kernel.Run",
				SessionID: sess.ID(),
				Data: map[string]any{
					"round":           round,
					"response_length": len(resp.Text),
				},
			})
			return result, nil
		}

		if strings.TrimSpace(resp.Text) != "" {
			if err := sess.Append(protocol.AssistantTurn(resp.Text)); err != nil {
				return result, err
			}
		}

		calls := normalizeCalls(resp.Calls, sess.History())
		for _, call := range calls {
			if err := sess.Append(protocol.CallTurn(call)); err != nil {
				return k.settle(ctx, sess, result, err)
			}
			observability.Emit(ctx, k.observer, observability.Event{
				Type:      EventToolCall,
				Level:     observability.LevelVerbose,
				Source:    "kernel.Run",
				SessionID: sess.ID(),
				Data:      map[string]any{"round": round, "call_id": call.ID, "name": call.Name},
			})
		}

		execs := k.executor.ExecuteBatch(ctx, calls, tools.Env{
			SessionID: sess.ID(),
			Dir:       sess.WorkingDirectory(),
			Policy:    sess,
		})

		for _, e := range execs {
			if err := sess.Append(protocol.ResultTurn(e.Result())); err != nil {
				return k.settle(ctx, sess, result, err)
			}
			result.ToolCalls = append(result.ToolCalls, ToolCallRecord{
				ToolCall: e.Call,
				Round:    round,
				Outcome:  e.Outcome,
			})

			data := map[string]any{"round": round, "call_id": e.Call.ID, "name": e.Call.Name, "error": e.Outcome.Failed()}
			if e.Outcome.Failed() {
				data["failure"] = string(e.Outcome.Failure.Kind)
			}
			observability.Emit(ctx, k.observer, observability.Event{
				Type:      EventToolComplete,
				Level:     observability.LevelVerbose,
				Source:    "kernel.Run",
				SessionID: sess.ID(),
				Data:      data,
			})
		}

		k.applyEffects(ctx, sess, execs)
	}

	if ctx.Err() != nil {
		return k.canceled(ctx, sess, result)
	}

	answer := fmt.Sprintf("I stopped after %d rounds of tool calls without reaching an answer. "+
		"Try narrowing the request or splitting it into smaller steps.", k.maxRounds)
	if err := sess.Append(protocol.AssistantTurn(answer)); err != nil {
		return result, err
	}
	result.Response = answer
	result.Status = StatusRoundCapExceeded

	observability.Emit(ctx, k.observer, observability.Event{
		Type:      EventError,
		Level:     observability.LevelWarning,
		Source:    "kernel.Run",
		SessionID: sess.ID(),
		Data: map[string]any{
			"error":  ErrRoundCapExceeded.Error(),
			"rounds": k.maxRounds,
		},
	})
	return result, ErrRoundCapExceeded
}

// applyEffects applies handler-requested session changes in request order.
func (k *Kernel) applyEffects(ctx context.Context, sess session.Session, execs []tools.Execution) {
	for _, e := range execs {
		if e.Effects.Dir == "" {
			continue
		}
		if err := sess.SetWorkingDirectory(e.Effects.Dir); err != nil {
			k.report(ctx, sess.ID(), "change directory", err)
		}
	}
}

// settle closes every pending call with a failure result after an append
// error, so the history stays paired.
func (k *Kernel) settle(ctx context.Context, sess session.Session, result *Result, cause error) (*Result, error) {
	k.closePending(sess, protocol.FailureExecution, "the call could not be recorded")
	k.emitError(ctx, sess, cause)
	return result, cause
}

// canceled injects a Canceled result for every call that has none and
// reports the turn as canceled.
func (k *Kernel) canceled(ctx context.Context, sess session.Session, result *Result) (*Result, error) {
	closed := k.closePending(sess, protocol.FailureCanceled, "the turn was canceled before this call completed")
	result.Status = StatusCanceled

	observability.Emit(ctx, k.observer, observability.Event{
		Type:      EventRunCanceled,
		Level:     observability.LevelInfo,
		Source:    "kernel.Run",
		SessionID: sess.ID(),
		Data:      map[string]any{"rounds": result.Rounds, "closed_calls": closed},
	})
	return result, fmt.Errorf("%w: %w", ErrTurnCanceled, context.Cause(ctx))
}

func (k *Kernel) closePending(sess session.Session, kind protocol.FailureKind, msg string) int {
	pending := sess.Pending()
	for _, call := range pending {
		_ = sess.Append(protocol.ResultTurn(protocol.ToolResult{
			ID:      call.ID,
			Name:    call.Name,
			Outcome: protocol.Fail(kind, "%s", msg),
		}))
	}
	return len(pending)
}

// normalizeCalls gives every call a correlation id that is non-empty and
// unique within the batch and the session history.
func normalizeCalls(calls []protocol.ToolCall, history []protocol.Turn) []protocol.ToolCall {
	seen := make(map[string]bool, len(history)+len(calls))
	for _, t := range history {
		if t.Kind == protocol.KindToolCall {
			seen[t.CallID()] = true
		}
	}

	out := make([]protocol.ToolCall, len(calls))
	for i, call := range calls {
		if call.ID == "" || seen[call.ID] {
			call.ID = "call_" + uuid.NewString()
		}
		seen[call.ID] = true
		out[i] = call
	}
	return out
}

// systemContent assembles the system prompt, the working directory, the
// project guide, and the saved notes.
func (k *Kernel) systemContent(sess session.Session) string {
	var b strings.Builder
	b.WriteString(k.systemPrompt)
	fmt.Fprintf(&b, "\n\nCurrent working directory: %s", sess.WorkingDirectory())

	if k.guide != nil {
		if guide := strings.TrimSpace(k.guide.Content()); guide != "" {
			fmt.Fprintf(&b, "\n\n# Project guide\n\n%s", guide)
		}
	}

	if k.notes != nil {
		entries := k.notes.Entries("")
		if len(entries) > 0 {
			b.WriteString("\n\n# Notes")
			for _, e := range entries {
				fmt.Fprintf(&b, "\n\n## %s\n\n%s", e.Key, strings.TrimSpace(string(e.Value)))
			}
		}
	}
	return strings.TrimLeft(b.String(), "\n")
}

func (k *Kernel) emitError(ctx context.Context, sess session.Session, err error) {
	observability.Emit(ctx, k.observer, observability.Event{
		Type:      EventError,
		Level:     observability.LevelError,
		Source:    "kernel.Run",
		SessionID: sess.ID(),
		Data:      map[string]any{"error": err.Error()},
	})
}

func (k *Kernel) report(ctx context.Context, sessionID, op string, err error) {
	observability.Emit(ctx, k.observer, observability.Event{
		Type:      EventError,
		Level:     observability.LevelWarning,
		Source:    "kernel",
		SessionID: sessionID,
		Data:      map[string]any{"op": op, "error": err.Error()},
	})
}
