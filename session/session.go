// Package session manages per-conversation state for the agent loop: the
// append-only turn history, the working directory, the backend selection,
// and the confirmation policy.
package session

import (
	"errors"

	"github.com/tailored-agentic-units/terminus/approval"
	"github.com/tailored-agentic-units/terminus/core/protocol"
)

// Sentinel errors for history and environment updates.
var (
	ErrOrphanResult  = errors.New("tool result has no pending call")
	ErrDuplicateCall = errors.New("duplicate tool call id")
	ErrPendingCalls  = errors.New("tool calls are still awaiting results")
	ErrInvalidTurn   = errors.New("invalid turn")
	ErrNotDirectory  = errors.New("not a directory")
)

// Session holds one conversation and its environment. Each Session is an
// independent value; nothing is shared between sessions. Implementations
// must be safe for concurrent use.
type Session interface {
	approval.Policy

	// ID returns the unique session identifier.
	ID() string

	// Append validates turn against the history, assigns its sequence
	// number and timestamp, and appends it.
	Append(turn protocol.Turn) error
	// History returns a copy of the turns in append order.
	History() []protocol.Turn
	// Len returns the number of turns in the history.
	Len() int
	// Pending returns tool calls that have no result yet, in request order.
	Pending() []protocol.ToolCall
	// Clear empties the history. The environment is preserved.
	Clear()

	SetAutoApprove(on bool)
	AllowedCommands() []string

	WorkingDirectory() string
	// SetWorkingDirectory changes the working directory. Relative paths
	// resolve against the current one.
	SetWorkingDirectory(path string) error

	// Backend returns the selected model backend name; empty selects the
	// default backend.
	Backend() string
	SetBackend(name string)
}

// Recorder observes history changes, for example to persist a transcript.
type Recorder interface {
	RecordTurn(sessionID string, turn protocol.Turn)
	RecordClear(sessionID string)
}
