package journal

import (
	"os"
	"path/filepath"
)

// DefaultFile is the journal database name under the user's state directory.
const DefaultFile = "terminus/journal.db"

// Config holds journal parameters.
type Config struct {
	Path     string `json:"path,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// DefaultConfig returns an enabled journal at the default location.
func DefaultConfig() Config {
	return Config{}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Path != "" {
		c.Path = source.Path
	}
	if source.Disabled {
		c.Disabled = true
	}
}

// Location returns the database path, defaulting to
// $XDG_STATE_HOME/terminus/journal.db or ~/.local/state/terminus/journal.db.
func (c *Config) Location() (string, error) {
	if c.Path != "" {
		return c.Path, nil
	}
	if state := os.Getenv("XDG_STATE_HOME"); state != "" {
		return filepath.Join(state, filepath.FromSlash(DefaultFile)), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", filepath.FromSlash(DefaultFile)), nil
}
