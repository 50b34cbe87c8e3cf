// Package approval implements the confirmation gate consulted before any
// mutating or destructive tool call runs.
//
// Read-only calls always pass. Other calls pass without prompting when the
// session has auto-approve enabled, when the tool was trusted earlier with
// an "always" answer, or when every shell command the call would run is on
// the session's allowed-command list. Everything else blocks on a Prompter.
package approval

import (
	"context"
	"fmt"

	"github.com/tailored-agentic-units/terminus/core/protocol"
	"github.com/tailored-agentic-units/terminus/observability"
)

// EventDecision is emitted once per gated call.
const EventDecision observability.EventType = "approval.decision"

// Decision is the gate's verdict for one call.
type Decision int

const (
	Declined Decision = iota
	Approved
)

func (d Decision) String() string {
	if d == Approved {
		return "approved"
	}
	return "declined"
}

// Reason records why the gate reached its decision.
type Reason string

const (
	ReasonReadOnly        Reason = "read_only"
	ReasonAutoApprove     Reason = "auto_approve"
	ReasonTrusted         Reason = "trusted"
	ReasonAllowedCommands Reason = "allowed_commands"
	ReasonUser            Reason = "user"
	ReasonNoPrompter      Reason = "no_prompter"
)

// Request describes a pending call for the user to confirm.
type Request struct {
	CallID     string
	Tool       string
	SideEffect protocol.SideEffect
	Preview    string
	Commands   []string
}

// Policy is the per-session state the gate reads and, on an "always"
// answer, updates.
type Policy interface {
	AutoApprove() bool
	Trusted(tool string) bool
	Trust(tool string)
	CommandsAllowed(commands []string) bool
	AllowCommands(commands ...string)
}

// Gate decides whether a tool call may run.
type Gate struct {
	prompter Prompter
	observer observability.Observer
}

// Option configures a Gate.
type Option func(*Gate)

// WithObserver sets the observer that receives decision events.
func WithObserver(o observability.Observer) Option {
	return func(g *Gate) { g.observer = o }
}

// NewGate creates a Gate that asks prompter for confirmation. A nil prompter
// declines every call that would need a prompt.
func NewGate(prompter Prompter, opts ...Option) *Gate {
	g := &Gate{
		prompter: prompter,
		observer: observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Approve returns the decision for req under policy. An error is returned
// only when the prompt itself failed or ctx was canceled; the decision is
// Declined in that case.
func (g *Gate) Approve(ctx context.Context, policy Policy, req Request) (Decision, error) {
	decision, reason, err := g.decide(ctx, policy, req)

	data := map[string]any{
		"tool":     req.Tool,
		"call_id":  req.CallID,
		"decision": decision.String(),
		"reason":   string(reason),
	}
	if err != nil {
		data["error"] = err.Error()
	}
	observability.Emit(ctx, g.observer, observability.Event{
		Type:   EventDecision,
		Level:  observability.LevelVerbose,
		Source: "approval.Gate",
		Data:   data,
	})

	return decision, err
}

func (g *Gate) decide(ctx context.Context, policy Policy, req Request) (Decision, Reason, error) {
	if !req.SideEffect.RequiresConfirmation() {
		return Approved, ReasonReadOnly, nil
	}
	if policy.AutoApprove() {
		return Approved, ReasonAutoApprove, nil
	}
	if policy.Trusted(req.Tool) {
		return Approved, ReasonTrusted, nil
	}
	if len(req.Commands) > 0 && policy.CommandsAllowed(req.Commands) {
		return Approved, ReasonAllowedCommands, nil
	}

	if err := ctx.Err(); err != nil {
		return Declined, ReasonUser, err
	}
	if g.prompter == nil {
		return Declined, ReasonNoPrompter, nil
	}

	answer, err := g.prompter.Prompt(ctx, req)
	if err != nil {
		return Declined, ReasonUser, fmt.Errorf("confirmation prompt failed: %w", err)
	}

	switch answer {
	case AnswerYes:
		return Approved, ReasonUser, nil
	case AnswerAlways:
		if len(req.Commands) > 0 {
			policy.AllowCommands(req.Commands...)
		} else {
			policy.Trust(req.Tool)
		}
		return Approved, ReasonUser, nil
	default:
		return Declined, ReasonUser, nil
	}
}
