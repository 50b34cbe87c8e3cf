package approval

import (
	"slices"
	"sync"
)

// DefaultAllowedCommands are shell commands that only inspect the system
// and therefore run without confirmation.
var DefaultAllowedCommands = []string{
	"ls", "cat", "grep", "rg", "find", "pwd", "echo", "which", "head", "tail",
	"wc", "sort", "uniq", "diff", "tree", "file", "stat", "du", "df", "ps",
	"top", "env", "date", "whoami", "hostname", "uname", "id", "groups", "history",
}

// State is a Policy held in memory. The zero value is ready to use with
// auto-approve off and nothing trusted. Safe for concurrent use.
type State struct {
	mu          sync.RWMutex
	autoApprove bool
	trusted     map[string]bool
	allowed     map[string]bool
}

// NewState creates a State seeded with allowed commands.
func NewState(autoApprove bool, allowed []string) *State {
	s := &State{autoApprove: autoApprove}
	s.AllowCommands(allowed...)
	return s
}

func (s *State) AutoApprove() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.autoApprove
}

// SetAutoApprove toggles auto-approve. Turning it off also forgets every
// tool trusted through an "always" answer.
func (s *State) SetAutoApprove(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoApprove = on
	if !on {
		s.trusted = nil
	}
}

func (s *State) Trusted(tool string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trusted[tool]
}

func (s *State) Trust(tool string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trusted == nil {
		s.trusted = make(map[string]bool)
	}
	s.trusted[tool] = true
}

// TrustedTools returns the trusted tool names in sorted order.
func (s *State) TrustedTools() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.trusted)
}

// CommandsAllowed reports whether every command is allowed. An empty list
// is never allowed.
func (s *State) CommandsAllowed(commands []string) bool {
	if len(commands) == 0 {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range commands {
		if !s.allowed[c] {
			return false
		}
	}
	return true
}

func (s *State) AllowCommands(commands ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.allowed == nil {
		s.allowed = make(map[string]bool)
	}
	for _, c := range commands {
		if c != "" {
			s.allowed[c] = true
		}
	}
}

// AllowedCommands returns the allowed commands in sorted order.
func (s *State) AllowedCommands() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.allowed)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
