package kernel

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tailored-agentic-units/terminus/core/config"
	"github.com/tailored-agentic-units/terminus/journal"
	"github.com/tailored-agentic-units/terminus/memory"
	"github.com/tailored-agentic-units/terminus/session"
	"github.com/tailored-agentic-units/terminus/tools"
)

const (
	defaultMaxRounds = 10
	defaultObserver  = "noop"

	// DefaultBackend names the backend built from the agent section. A
	// session with an empty backend identifier uses it.
	DefaultBackend = "default"
)

// Config holds initialization parameters for all kernel subsystems.
// Each subsystem section delegates to that subsystem's config type.
type Config struct {
	Agent        config.AgentConfig            `json:"agent"`
	Agents       map[string]config.AgentConfig `json:"agents,omitempty"`
	Session      session.Config                `json:"session"`
	Memory       memory.Config                 `json:"memory"`
	Tools        tools.Config                  `json:"tools"`
	Journal      journal.Config                `json:"journal"`
	Observer     string                        `json:"observer,omitempty"`
	MaxRounds    int                           `json:"max_rounds,omitempty"`
	SystemPrompt string                        `json:"system_prompt,omitempty"`
	Env          map[string]string             `json:"env,omitempty"`
}

// DefaultConfig returns a Config with defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		Agent:        config.DefaultAgentConfig(),
		Session:      session.DefaultConfig(),
		Memory:       memory.DefaultConfig(),
		Tools:        tools.DefaultConfig(),
		Journal:      journal.DefaultConfig(),
		Observer:     defaultObserver,
		MaxRounds:    defaultMaxRounds,
		SystemPrompt: DefaultSystemPrompt,
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method. A zero MaxRounds keeps the current value, so
// the loop always has a finite budget.
func (c *Config) Merge(source *Config) {
	c.Agent.Merge(&source.Agent)
	c.Session.Merge(&source.Session)
	c.Memory.Merge(&source.Memory)
	c.Tools.Merge(&source.Tools)
	c.Journal.Merge(&source.Journal)

	if source.Observer != "" {
		c.Observer = source.Observer
	}
	if source.MaxRounds > 0 {
		c.MaxRounds = source.MaxRounds
	}
	if source.SystemPrompt != "" {
		c.SystemPrompt = source.SystemPrompt
	}
	if len(source.Agents) > 0 {
		c.Agents = source.Agents
	}
	if len(source.Env) > 0 {
		if c.Env == nil {
			c.Env = make(map[string]string, len(source.Env))
		}
		for k, v := range source.Env {
			c.Env[k] = v
		}
	}
}

// ExportEnv sets every env entry in the process environment. Variables
// already set are left alone so the shell can override the file.
func (c *Config) ExportEnv() error {
	for k, v := range c.Env {
		if _, set := os.LookupEnv(k); set {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("failed to export %s: %w", k, err)
		}
	}
	return nil
}

// DefaultConfigPath returns ~/.config/terminus.json.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "terminus.json"), nil
}

// LoadConfig reads a config file, merges it with defaults, and returns the
// resulting Config. The format follows the file extension (.json, .toml,
// .yaml or .yml). A missing file yields the defaults.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	var loaded Config
	if err := config.ReadFile(filename, &loaded); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &cfg, nil
		}
		return nil, err
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
