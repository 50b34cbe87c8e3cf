package kernel

import "github.com/tailored-agentic-units/terminus/observability"

// Kernel event types emitted during the agent loop.
const (
	EventRunStart     observability.EventType = "kernel.run.start"
	EventRoundStart   observability.EventType = "kernel.round.start"
	EventToolCall     observability.EventType = "kernel.tool.call"
	EventToolComplete observability.EventType = "kernel.tool.complete"
	EventResponse     observability.EventType = "kernel.response"
	EventError        observability.EventType = "kernel.error"
	EventRunCanceled  observability.EventType = "kernel.run.canceled"
)
