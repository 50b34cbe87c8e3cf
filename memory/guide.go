package memory

import (
	"fmt"
	"os"
	"sync"
)

// Guide is the project guide file (terminus.md by default), read at
// startup and reloaded by the Watcher. A missing file is an empty guide.
type Guide struct {
	path string

	mu      sync.RWMutex
	content string
}

// NewGuide creates a Guide for path. Call Load to read it.
func NewGuide(path string) *Guide {
	return &Guide{path: path}
}

// Path returns the guide's file path.
func (g *Guide) Path() string {
	return g.path
}

// Load rereads the file.
func (g *Guide) Load() error {
	if g.path == "" {
		return nil
	}

	data, err := os.ReadFile(g.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %s: %v", ErrLoadFailed, g.path, err)
	}

	g.mu.Lock()
	g.content = string(data)
	g.mu.Unlock()
	return nil
}

// Content returns the most recently loaded text.
func (g *Guide) Content() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.content
}
