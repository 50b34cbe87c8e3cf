package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tailored-agentic-units/terminus/approval"
	"github.com/tailored-agentic-units/terminus/core/protocol"
)

// ErrInterrupted is returned when the user ends input at a confirmation
// prompt (Ctrl-C or Ctrl-D).
var ErrInterrupted = errors.New("confirmation interrupted")

// Prompter asks the user to confirm tool calls on the terminal. It
// implements approval.Prompter.
type Prompter struct {
	console   *Console
	input     LineReader
	interrupt func()
}

// PrompterOption configures a Prompter.
type PrompterOption func(*Prompter)

// WithInterrupt sets a hook called when the user interrupts a prompt,
// typically canceling the running turn.
func WithInterrupt(fn func()) PrompterOption {
	return func(p *Prompter) { p.interrupt = fn }
}

// NewPrompter creates a Prompter that shows requests on console and reads
// answers from input.
func NewPrompter(console *Console, input LineReader, opts ...PrompterOption) *Prompter {
	p := &Prompter{console: console, input: input}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prompt shows the request and reads until a recognizable answer arrives.
// The read itself cannot be abandoned, so ctx is checked before showing the
// request and again after every line.
func (p *Prompter) Prompt(ctx context.Context, req approval.Request) (approval.Answer, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.console.ToolPanel(Title(req), req.Preview, Footer(req))
	p.console.Line()
	for _, opt := range Options(req) {
		p.console.status(p.console.styles.Option, "  %s", opt)
	}

	for {
		line, err := p.input.ReadLine("  Continue? (y/a/N): ")
		p.console.ResetContext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if p.interrupt != nil {
					p.interrupt()
				}
				return "", ErrInterrupted
			}
			return "", err
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if answer, ok := approval.ParseAnswer(line); ok {
			return answer, nil
		}
		p.console.Warning("Please answer y, a, or n")
	}
}

// Title is the panel heading for req.
func Title(req approval.Request) string {
	switch req.SideEffect {
	case protocol.Destructive:
		return fmt.Sprintf("%s (destructive)", req.Tool)
	default:
		return req.Tool
	}
}

// Footer lists the shell commands a request would run, if any.
func Footer(req approval.Request) string {
	if len(req.Commands) == 0 {
		return ""
	}
	return "Commands: " + strings.Join(req.Commands, ", ")
}

// Options returns the answer lines offered for req.
func Options(req approval.Request) []string {
	always := "a: Always allow this tool"
	if len(req.Commands) > 0 {
		always = "a: Always allow these commands"
	}
	return []string{
		"y: Yes, run this tool",
		always,
		"n: No, cancel this call",
	}
}
