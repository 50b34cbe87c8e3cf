package tools

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/tailored-agentic-units/terminus/core/protocol"
)

// Handler is the function signature for tool implementations. Handlers
// receive validated arguments and the session's working directory. They
// must not assume a confirmation happened and must not touch the session;
// environment changes are requested through Result.Effects.
type Handler func(ctx context.Context, call Call) (Result, error)

// PreviewFunc renders a human-readable summary of what a call would do,
// shown by the confirmation gate before the user decides.
type PreviewFunc func(ctx context.Context, call Call) (string, error)

// CommandsFunc lists the shell commands a call would run, so the gate can
// compare them against the session's allowed commands.
type CommandsFunc func(call Call) ([]string, error)

// Spec is an immutable registry entry describing one tool.
type Spec struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
	SideEffect  protocol.SideEffect
	Handler     Handler
	Preview     PreviewFunc
	Commands    CommandsFunc
}

// Call is a validated invocation handed to a Handler.
type Call struct {
	ID   string
	Name string
	Args map[string]any
	Dir  string
}

// Result is the handler output fed back to the model on the next round.
type Result struct {
	Content string
	Effects Effects
}

// Effects are session changes a handler requests. The kernel applies them
// in request order once the whole batch has finished.
type Effects struct {
	// Dir is the new working directory, or empty for no change.
	Dir string
}

// Empty reports whether no effect was requested.
func (e Effects) Empty() bool {
	return e.Dir == ""
}

// StringArg returns a string argument, or the empty string when absent.
func (c Call) StringArg(name string) string {
	switch v := c.Args[name].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// IntArg returns an integer argument, or def when absent.
func (c Call) IntArg(name string, def int) int {
	switch v := c.Args[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// BoolArg returns a boolean argument, or def when absent.
func (c Call) BoolArg(name string, def bool) bool {
	if v, ok := c.Args[name].(bool); ok {
		return v
	}
	return def
}

// StringsArg returns a string-array argument.
func (c Call) StringsArg(name string) []string {
	raw, ok := c.Args[name].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
