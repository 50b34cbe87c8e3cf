// Package protocol defines the conversation and tool-call types shared by
// every terminus subsystem.
package protocol

import "time"

// Kind tags the variant held by a Turn.
type Kind string

const (
	KindUser       Kind = "user"
	KindAssistant  Kind = "assistant"
	KindToolCall   Kind = "tool_call"
	KindToolResult Kind = "tool_result"
)

// Turn is one atomic entry in conversation history. Exactly one of Text,
// Call, or Result is meaningful, selected by Kind. Seq and Time are assigned
// by the session on append; a Turn is immutable afterwards.
type Turn struct {
	Seq    int         `json:"seq" yaml:"seq"`
	Kind   Kind        `json:"kind" yaml:"kind"`
	Text   string      `json:"text,omitempty" yaml:"text,omitempty"`
	Call   *ToolCall   `json:"call,omitempty" yaml:"call,omitempty"`
	Result *ToolResult `json:"result,omitempty" yaml:"result,omitempty"`
	Time   time.Time   `json:"time" yaml:"time"`
}

// UserTurn creates a user message turn.
func UserTurn(text string) Turn {
	return Turn{Kind: KindUser, Text: text}
}

// AssistantTurn creates an assistant message turn.
func AssistantTurn(text string) Turn {
	return Turn{Kind: KindAssistant, Text: text}
}

// CallTurn creates a tool-call request turn.
func CallTurn(call ToolCall) Turn {
	return Turn{Kind: KindToolCall, Call: &call}
}

// ResultTurn creates a tool-call result turn.
func ResultTurn(result ToolResult) Turn {
	return Turn{Kind: KindToolResult, Result: &result}
}

// CallID returns the correlation id for tool_call and tool_result turns,
// and the empty string for message turns.
func (t Turn) CallID() string {
	switch {
	case t.Call != nil:
		return t.Call.ID
	case t.Result != nil:
		return t.Result.ID
	}
	return ""
}

// Clone returns a copy of t that shares no pointers with the original.
func (t Turn) Clone() Turn {
	if t.Call != nil {
		c := *t.Call
		t.Call = &c
	}
	if t.Result != nil {
		r := *t.Result
		if r.Failure != nil {
			f := *r.Failure
			r.Failure = &f
		}
		t.Result = &r
	}
	return t
}
