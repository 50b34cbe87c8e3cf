// Package agent defines the model backend abstraction used by the kernel
// loop and the registry of named backends a session can switch between.
//
// A backend receives the system content, the full ordered history, and the
// tool catalog, and replies with either a final answer or a batch of tool
// calls. Backends are untrusted: names and arguments in their replies are
// re-validated by the tool executor.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/tailored-agentic-units/terminus/agent/providers"
	"github.com/tailored-agentic-units/terminus/core/config"
	"github.com/tailored-agentic-units/terminus/core/protocol"
	"github.com/tailored-agentic-units/terminus/core/response"
)

// Agent is a model backend.
type Agent interface {
	// ID returns a unique identifier for this agent instance.
	ID() string

	// Provider returns the provider name, e.g. "gemini" or "openai".
	Provider() string

	// Model returns the model name sent to the provider.
	Model() string

	// Generate asks the model for the next step of the conversation.
	Generate(ctx context.Context, system string, history []protocol.Turn, catalog []protocol.Tool) (*response.Response, error)
}

// New creates an Agent from configuration. Backend calls are wrapped with
// transport-level retries when cfg.Retry.MaxRetries is positive.
func New(cfg *config.AgentConfig) (Agent, error) {
	var (
		a   Agent
		err error
	)

	switch normalizeProvider(cfg.Provider) {
	case "gemini":
		a, err = providers.NewGemini(cfg)
	case "openai":
		a, err = providers.NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Retry.MaxRetries > 0 {
		a = WithRetry(a, cfg.Retry)
	}
	return a, nil
}

func normalizeProvider(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gemini", "google", "google-gla", "google-genai":
		return "gemini"
	case "openai", "openai-compatible", "ollama":
		return "openai"
	}
	return name
}
