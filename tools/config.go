package tools

import (
	"time"

	"github.com/tailored-agentic-units/terminus/core/config"
)

const defaultCommandTimeout = 30 * time.Second

// Config holds tool subsystem parameters.
type Config struct {
	Concurrency    int             `json:"concurrency,omitempty"`
	CommandTimeout config.Duration `json:"command_timeout,omitempty"`
	Extensions     []Extension     `json:"extensions,omitempty"`
}

// Extension declares a command-backed tool in configuration. Command is a
// text/template rendered with the validated arguments, for example
// "go test {{.package}}".
type Extension struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Command     string           `json:"command"`
	Params      []ExtensionParam `json:"params,omitempty"`
	SideEffect  string           `json:"side_effect,omitempty"`
}

// ExtensionParam declares one parameter of an extension tool.
type ExtensionParam struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// DefaultConfig returns the default tool configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:    defaultConcurrency,
		CommandTimeout: config.Duration(defaultCommandTimeout),
	}
}

// Merge applies non-zero values from source into c. Extensions from source
// are appended.
func (c *Config) Merge(source *Config) {
	if source.Concurrency > 0 {
		c.Concurrency = source.Concurrency
	}
	if source.CommandTimeout > 0 {
		c.CommandTimeout = source.CommandTimeout
	}
	c.Extensions = append(c.Extensions, source.Extensions...)
}
