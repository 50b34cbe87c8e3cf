// Package response defines the normalized reply returned by every model
// backend: either a final text answer or a batch of tool calls.
package response

import (
	"strings"

	"github.com/tailored-agentic-units/terminus/core/protocol"
)

// TokenUsage reports token consumption for a single backend call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a backend reply. When Calls is empty the reply is a final
// answer carried in Text; otherwise Text is optional commentary that
// accompanied the tool-call batch.
type Response struct {
	Model string              `json:"model,omitempty"`
	Text  string              `json:"text,omitempty"`
	Calls []protocol.ToolCall `json:"calls,omitempty"`
	Usage *TokenUsage         `json:"usage,omitempty"`
}

// Final creates a final-answer response.
func Final(text string) *Response {
	return &Response{Text: text}
}

// Batch creates a tool-call batch response.
func Batch(calls ...protocol.ToolCall) *Response {
	return &Response{Calls: calls}
}

// Empty reports whether the response carries neither text nor calls, as
// happens when a candidate was blocked or truncated.
func (r *Response) Empty() bool {
	return strings.TrimSpace(r.Text) == "" && len(r.Calls) == 0
}

// IsFinal reports whether the response is a final answer.
func (r *Response) IsFinal() bool {
	return len(r.Calls) == 0
}
