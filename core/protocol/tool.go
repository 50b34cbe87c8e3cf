package protocol

import (
	"fmt"
	"strings"
)

// Tool is the catalog entry exposed to the model backend for one tool.
// Parameters uses JSON Schema format to describe the function's input.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// SideEffect classifies what a tool may change.
type SideEffect int

const (
	ReadOnly SideEffect = iota
	Mutating
	Destructive
)

func (s SideEffect) String() string {
	switch s {
	case ReadOnly:
		return "read-only"
	case Mutating:
		return "mutating"
	case Destructive:
		return "destructive"
	default:
		return fmt.Sprintf("SideEffect(%d)", int(s))
	}
}

// RequiresConfirmation reports whether calls with this side effect go
// through the confirmation gate.
func (s SideEffect) RequiresConfirmation() bool {
	return s != ReadOnly
}

// ParseSideEffect converts a configuration string into a SideEffect.
// The empty string parses as Mutating.
func ParseSideEffect(s string) (SideEffect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "read-only", "readonly", "read_only":
		return ReadOnly, nil
	case "", "mutating":
		return Mutating, nil
	case "destructive":
		return Destructive, nil
	}
	return 0, fmt.Errorf("unknown side effect %q", s)
}
