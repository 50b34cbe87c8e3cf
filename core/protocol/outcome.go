package protocol

import "fmt"

// FailureKind classifies why a tool call did not produce a success payload.
type FailureKind string

const (
	FailureUnknownTool      FailureKind = "unknown_tool"
	FailureInvalidArguments FailureKind = "invalid_arguments"
	FailureUserDeclined     FailureKind = "user_declined"
	FailureExecution        FailureKind = "tool_execution_error"
	FailureCanceled         FailureKind = "canceled"
)

// Failure describes a failed tool call. It is data fed back to the model,
// not an error that propagates out of the agent loop.
type Failure struct {
	Kind    FailureKind `json:"kind" yaml:"kind"`
	Message string      `json:"message" yaml:"message"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Outcome is either a success payload or a Failure, never both.
type Outcome struct {
	Content string   `json:"content,omitempty" yaml:"content,omitempty"`
	Failure *Failure `json:"failure,omitempty" yaml:"failure,omitempty"`
}

// Success creates a successful Outcome carrying content.
func Success(content string) Outcome {
	return Outcome{Content: content}
}

// Fail creates a failed Outcome of the given kind.
func Fail(kind FailureKind, format string, args ...any) Outcome {
	return Outcome{Failure: &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}}
}

// Failed reports whether the outcome carries a Failure.
func (o Outcome) Failed() bool {
	return o.Failure != nil
}

// Text renders the outcome as the text the model reads on the next round.
func (o Outcome) Text() string {
	if o.Failure != nil {
		return "error (" + string(o.Failure.Kind) + "): " + o.Failure.Message
	}
	return o.Content
}
