// Package repl runs the interactive read-eval-print loop: it reads user
// requests, dispatches slash commands, runs each request as one kernel turn
// under its own interrupt context, and renders the outcome.
package repl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/tailored-agentic-units/terminus/approval"
	"github.com/tailored-agentic-units/terminus/kernel"
	"github.com/tailored-agentic-units/terminus/session"
	"github.com/tailored-agentic-units/terminus/ui"
)

const (
	promptSymbol = "$ "
	continuation = "  "
	farewell     = "Thanks for all the fish."
)

// Runner is the part of the kernel the REPL drives.
type Runner interface {
	Run(ctx context.Context, sess session.Session, text string) (*kernel.Result, error)
}

// REPL is one interactive loop over a single session.
type REPL struct {
	console *ui.Console
	input   ui.LineReader
	signals []os.Signal

	mu     sync.Mutex
	cancel context.CancelCauseFunc
}

// Option configures a REPL.
type Option func(*REPL)

// WithSignals sets the signals that interrupt a running turn. The default
// is os.Interrupt; no signals means turns end only through ctx.
func WithSignals(sigs ...os.Signal) Option {
	return func(r *REPL) { r.signals = sigs }
}

// New creates a REPL reading from input and writing to console.
func New(console *ui.Console, input ui.LineReader, opts ...Option) *REPL {
	r := &REPL{
		console: console,
		input:   input,
		signals: []os.Signal{os.Interrupt},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Prompter returns the confirmation prompter bound to this REPL's
// terminal. Interrupting a prompt cancels the running turn.
func (r *REPL) Prompter() approval.Prompter {
	return ui.NewPrompter(r.console, r.input, ui.WithInterrupt(func() {
		r.interrupt(ui.ErrInterrupted)
	}))
}

func (r *REPL) interrupt(cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel(cause)
	}
}

// Run reads and handles input until the user exits, input ends, or ctx is
// done.
func (r *REPL) Run(ctx context.Context, k *kernel.Kernel, sess session.Session) error {
	env := &Env{Kernel: k, Session: sess, Console: r.console}

	r.banner(env)

	for {
		if err := ctx.Err(); err != nil {
			break
		}

		r.console.Line()
		line, err := ui.ReadMessage(r.input, promptSymbol, continuation)
		if err != nil {
			break
		}
		r.console.Line()
		r.console.ResetContext()

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if isExit(text) {
			break
		}

		if handled, err := Dispatch(ctx, env, text); handled {
			if err != nil {
				r.console.Error("Command failed", err)
			}
			continue
		}

		r.turn(ctx, k, sess, text)
	}

	r.console.Info(farewell)
	return nil
}

func (r *REPL) banner(env *Env) {
	if info, ok := env.currentBackend(); ok {
		r.console.Info("Using model %s", info)
	}
	r.console.Success("Welcome to terminus. Type /help for commands.")
}

func isExit(text string) bool {
	switch strings.ToLower(text) {
	case "exit", "quit", "/exit":
		return true
	}
	return false
}

// turn runs one request. Each turn gets its own cancelable context, wired
// to the interrupt signals only for the turn's duration.
func (r *REPL) turn(ctx context.Context, runner Runner, sess session.Session, text string) {
	turnCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	if len(r.signals) > 0 {
		var stop context.CancelFunc
		turnCtx, stop = signal.NotifyContext(turnCtx, r.signals...)
		defer stop()
	}

	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
	}()

	r.console.Thinking("Thinking...")
	result, err := runner.Run(turnCtx, sess, text)
	r.report(result, err)
}

func (r *REPL) report(result *kernel.Result, err error) {
	if result != nil {
		for _, call := range result.ToolCalls {
			if call.Outcome.Failed() {
				r.console.Thinking(fmt.Sprintf("%s: %s", call.Name, call.Outcome.Failure.Kind))
			} else {
				r.console.Thinking(call.Name)
			}
		}
	}

	switch {
	case err == nil:
		r.console.Answer(result.Response)
	case errors.Is(err, kernel.ErrTurnCanceled):
		r.console.Warning("Request interrupted")
	case errors.Is(err, kernel.ErrRoundCapExceeded):
		if result != nil && result.Response != "" {
			r.console.Answer(result.Response)
		}
		r.console.Warning("Stopped before a final answer: %v", err)
	case errors.Is(err, kernel.ErrBackend):
		r.console.ErrorPanel("Error", "The model backend request failed.", err.Error())
	default:
		r.console.ErrorPanel("Error", "The request failed.", err.Error())
	}
}
