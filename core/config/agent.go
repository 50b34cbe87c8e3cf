// Package config holds configuration types shared across terminus
// subsystems and the multi-format file decoder used to load them.
package config

import (
	"strings"
	"time"
)

const (
	DefaultProvider = "gemini"
	DefaultModel    = "gemini-2.0-flash-exp"
)

// AgentConfig selects and configures one model backend.
type AgentConfig struct {
	Provider  string      `json:"provider,omitempty"`
	Model     string      `json:"model,omitempty"`
	BaseURL   string      `json:"base_url,omitempty"`
	APIKey    string      `json:"api_key,omitempty"`
	APIKeyEnv string      `json:"api_key_env,omitempty"`
	Timeout   Duration    `json:"timeout,omitempty"`
	Retry     RetryConfig `json:"retry"`
}

// RetryConfig bounds transport-level retries of backend calls.
type RetryConfig struct {
	MaxRetries int      `json:"max_retries,omitempty"`
	Backoff    Duration `json:"backoff,omitempty"`
}

// DefaultAgentConfig returns the Gemini backend with conservative retries.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Provider: DefaultProvider,
		Model:    DefaultModel,
		Timeout:  Duration(2 * time.Minute),
		Retry: RetryConfig{
			MaxRetries: 2,
			Backoff:    Duration(500 * time.Millisecond),
		},
	}
}

// Merge applies non-zero values from source into c. A source model written
// as "provider:model" also sets the provider.
func (c *AgentConfig) Merge(source *AgentConfig) {
	if source.Provider != "" {
		c.Provider = source.Provider
	}
	if source.Model != "" {
		provider, model := SplitModel(source.Model)
		if provider != "" && source.Provider == "" {
			c.Provider = provider
		}
		c.Model = model
	}
	if source.BaseURL != "" {
		c.BaseURL = source.BaseURL
	}
	if source.APIKey != "" {
		c.APIKey = source.APIKey
	}
	if source.APIKeyEnv != "" {
		c.APIKeyEnv = source.APIKeyEnv
	}
	if source.Timeout > 0 {
		c.Timeout = source.Timeout
	}
	if source.Retry.MaxRetries > 0 {
		c.Retry.MaxRetries = source.Retry.MaxRetries
	}
	if source.Retry.Backoff > 0 {
		c.Retry.Backoff = source.Retry.Backoff
	}
}

// SplitModel separates an optional "provider:" prefix from a model name.
func SplitModel(s string) (provider, model string) {
	if before, after, ok := strings.Cut(s, ":"); ok && before != "" && after != "" {
		return before, after
	}
	return "", s
}
