package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/terminus/approval"
	"github.com/tailored-agentic-units/terminus/core/protocol"
)

type memorySession struct {
	*approval.State

	id       string
	recorder Recorder

	mu      sync.RWMutex
	turns   []protocol.Turn
	pending []protocol.ToolCall
	seen    map[string]bool
	seq     int
	dir     string
	backend string
}

// Option configures a session created by NewMemorySession.
type Option func(*memorySession)

// WithRecorder attaches a Recorder notified after every append and clear.
func WithRecorder(r Recorder) Option {
	return func(s *memorySession) { s.recorder = r }
}

// WithPolicy replaces the default approval state.
func WithPolicy(state *approval.State) Option {
	return func(s *memorySession) { s.State = state }
}

// WithWorkingDirectory sets the initial working directory without
// validation.
func WithWorkingDirectory(dir string) Option {
	return func(s *memorySession) { s.dir = filepath.Clean(dir) }
}

// WithBackend sets the initial backend name.
func WithBackend(name string) Option {
	return func(s *memorySession) { s.backend = name }
}

// NewMemorySession creates a Session backed by an in-memory slice. The
// session is assigned a unique UUIDv7 identifier and starts in the process
// working directory with the default allowed commands.
func NewMemorySession(opts ...Option) Session {
	dir, _ := os.Getwd()
	s := &memorySession{
		State: approval.NewState(false, approval.DefaultAllowedCommands),
		id:    uuid.Must(uuid.NewV7()).String(),
		seen:  make(map[string]bool),
		dir:   dir,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *memorySession) ID() string {
	return s.id
}

func (s *memorySession) Append(turn protocol.Turn) error {
	s.mu.Lock()

	if err := s.admit(turn); err != nil {
		s.mu.Unlock()
		return err
	}

	s.seq++
	turn = turn.Clone()
	turn.Seq = s.seq
	if turn.Time.IsZero() {
		turn.Time = time.Now()
	}
	s.turns = append(s.turns, turn)

	s.mu.Unlock()

	if s.recorder != nil {
		s.recorder.RecordTurn(s.id, turn.Clone())
	}
	return nil
}

// admit checks turn against the pairing invariants and updates the pending
// set. Callers hold s.mu.
func (s *memorySession) admit(turn protocol.Turn) error {
	switch turn.Kind {
	case protocol.KindUser, protocol.KindAssistant:
		if len(s.pending) > 0 {
			return fmt.Errorf("%w: %d outstanding", ErrPendingCalls, len(s.pending))
		}
	case protocol.KindToolCall:
		if turn.Call == nil || turn.Call.ID == "" {
			return fmt.Errorf("%w: tool call without id", ErrInvalidTurn)
		}
		if s.seen[turn.Call.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateCall, turn.Call.ID)
		}
		s.seen[turn.Call.ID] = true
		s.pending = append(s.pending, *turn.Call)
	case protocol.KindToolResult:
		if turn.Result == nil {
			return fmt.Errorf("%w: tool result without payload", ErrInvalidTurn)
		}
		idx := -1
		for i, call := range s.pending {
			if call.ID == turn.Result.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrOrphanResult, turn.Result.ID)
		}
		s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTurn, turn.Kind)
	}
	return nil
}

func (s *memorySession) History() []protocol.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]protocol.Turn, len(s.turns))
	for i, turn := range s.turns {
		copied[i] = turn.Clone()
	}
	return copied
}

func (s *memorySession) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

func (s *memorySession) Pending() []protocol.ToolCall {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := make([]protocol.ToolCall, len(s.pending))
	copy(pending, s.pending)
	return pending
}

func (s *memorySession) Clear() {
	s.mu.Lock()
	s.turns = nil
	s.pending = nil
	s.seen = make(map[string]bool)
	s.mu.Unlock()

	if s.recorder != nil {
		s.recorder.RecordClear(s.id)
	}
}

func (s *memorySession) WorkingDirectory() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dir
}

func (s *memorySession) SetWorkingDirectory(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := path
	if !filepath.IsAbs(target) {
		target = filepath.Join(s.dir, target)
	}
	target = filepath.Clean(target)

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotDirectory, path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, path)
	}

	s.dir = target
	return nil
}

func (s *memorySession) Backend() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backend
}

func (s *memorySession) SetBackend(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backend = name
}
