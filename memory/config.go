package memory

import "path/filepath"

const (
	DefaultNotesDir = ".terminus/memory"
	DefaultGuide    = "terminus.md"
)

// Config holds memory initialization parameters. Relative paths resolve
// against the session's starting directory.
type Config struct {
	Dir      string `json:"dir,omitempty"`
	Guide    string `json:"guide,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
	Watch    *bool  `json:"watch,omitempty"`
}

// DefaultConfig returns the default memory configuration: notes under
// .terminus/memory, the guide in terminus.md, watched for changes.
func DefaultConfig() Config {
	watch := true
	return Config{
		Dir:   DefaultNotesDir,
		Guide: DefaultGuide,
		Watch: &watch,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Dir != "" {
		c.Dir = source.Dir
	}
	if source.Guide != "" {
		c.Guide = source.Guide
	}
	if source.Disabled {
		c.Disabled = true
	}
	if source.Watch != nil {
		w := *source.Watch
		c.Watch = &w
	}
}

// Watching reports whether file watching is enabled.
func (c *Config) Watching() bool {
	return !c.Disabled && (c.Watch == nil || *c.Watch)
}

// Resolve returns the notes directory and guide path made absolute
// against base.
func (c *Config) Resolve(base string) (dir, guide string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	return abs(c.Dir), abs(c.Guide)
}

// NewStore creates a Store from configuration rooted at base. Returns a nil
// Store when memory is disabled or no notes directory is configured.
func NewStore(cfg *Config, base string) (Store, error) {
	if cfg.Disabled || cfg.Dir == "" {
		return nil, nil
	}
	dir, _ := cfg.Resolve(base)
	return NewFileStore(dir), nil
}
