package session

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailored-agentic-units/terminus/approval"
)

// Config holds session initialization parameters.
type Config struct {
	AutoApprove      bool     `json:"auto_approve,omitempty"`
	AllowedCommands  []string `json:"allowed_commands,omitempty"`
	WorkingDirectory string   `json:"working_directory,omitempty"`
	Backend          string   `json:"backend,omitempty"`
}

// DefaultConfig returns the default session configuration: confirmations
// on, the default allowed commands, and the process working directory.
func DefaultConfig() Config {
	return Config{
		AllowedCommands: append([]string(nil), approval.DefaultAllowedCommands...),
	}
}

// Merge applies non-zero values from source into c. Allowed commands from
// source replace the defaults rather than extending them.
func (c *Config) Merge(source *Config) {
	if source.AutoApprove {
		c.AutoApprove = true
	}
	if source.AllowedCommands != nil {
		c.AllowedCommands = source.AllowedCommands
	}
	if source.WorkingDirectory != "" {
		c.WorkingDirectory = source.WorkingDirectory
	}
	if source.Backend != "" {
		c.Backend = source.Backend
	}
}

// New creates an in-memory Session from configuration.
func New(cfg *Config, opts ...Option) (Session, error) {
	dir := cfg.WorkingDirectory
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		dir = wd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}

	base := []Option{
		WithPolicy(approval.NewState(cfg.AutoApprove, cfg.AllowedCommands)),
		WithWorkingDirectory(dir),
		WithBackend(cfg.Backend),
	}
	s := NewMemorySession(append(base, opts...)...)

	if err := s.SetWorkingDirectory(dir); err != nil {
		return nil, err
	}
	return s, nil
}
