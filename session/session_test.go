package session_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/tailored-agentic-units/terminus/core/protocol"
	"github.com/tailored-agentic-units/terminus/session"
)

func call(id, name string) protocol.Turn {
	return protocol.CallTurn(protocol.ToolCall{ID: id, Name: name, Arguments: "{}"})
}

func result(id, name, content string) protocol.Turn {
	return protocol.ResultTurn(protocol.ToolResult{ID: id, Name: name, Outcome: protocol.Success(content)})
}

func mustAppend(t *testing.T, s session.Session, turns ...protocol.Turn) {
	t.Helper()
	for _, turn := range turns {
		if err := s.Append(turn); err != nil {
			t.Fatalf("Append(%s) failed: %v", turn.Kind, err)
		}
	}
}

func TestNew(t *testing.T) {
	s := session.NewMemorySession()

	if s.ID() == "" {
		t.Error("session ID should not be empty")
	}
	if s.Len() != 0 {
		t.Errorf("new session should have 0 turns, got %d", s.Len())
	}
	if s.AutoApprove() {
		t.Error("new session should not auto-approve")
	}
}

func TestSession_ID_Unique(t *testing.T) {
	s1 := session.NewMemorySession()
	s2 := session.NewMemorySession()

	if s1.ID() == s2.ID() {
		t.Errorf("two sessions should have different IDs, both got %q", s1.ID())
	}
}

func TestSession_Append_AssignsSequence(t *testing.T) {
	s := session.NewMemorySession()
	mustAppend(t, s,
		protocol.UserTurn("list files in ."),
		call("c1", "list_directory"),
		result("c1", "list_directory", "a.txt"),
		protocol.AssistantTurn("There is one file."),
	)

	history := s.History()
	if len(history) != 4 {
		t.Fatalf("got %d turns, want 4", len(history))
	}
	for i, turn := range history {
		if turn.Seq != i+1 {
			t.Errorf("turn %d: Seq = %d, want %d", i, turn.Seq, i+1)
		}
		if turn.Time.IsZero() {
			t.Errorf("turn %d: Time not assigned", i)
		}
	}
}

func TestSession_Append_PairingInvariants(t *testing.T) {
	tests := []struct {
		name    string
		setup   []protocol.Turn
		turn    protocol.Turn
		wantErr error
	}{
		{
			name:    "orphan result",
			turn:    result("missing", "find", "x"),
			wantErr: session.ErrOrphanResult,
		},
		{
			name:    "duplicate call id",
			setup:   []protocol.Turn{call("c1", "find")},
			turn:    call("c1", "grep"),
			wantErr: session.ErrDuplicateCall,
		},
		{
			name:    "duplicate result",
			setup:   []protocol.Turn{call("c1", "find"), result("c1", "find", "x")},
			turn:    result("c1", "find", "y"),
			wantErr: session.ErrOrphanResult,
		},
		{
			name:    "reused id after completion",
			setup:   []protocol.Turn{call("c1", "find"), result("c1", "find", "x")},
			turn:    call("c1", "find"),
			wantErr: session.ErrDuplicateCall,
		},
		{
			name:    "message while calls pending",
			setup:   []protocol.Turn{call("c1", "find")},
			turn:    protocol.AssistantTurn("done"),
			wantErr: session.ErrPendingCalls,
		},
		{
			name:    "call without id",
			turn:    protocol.CallTurn(protocol.ToolCall{Name: "find"}),
			wantErr: session.ErrInvalidTurn,
		},
		{
			name:    "unknown kind",
			turn:    protocol.Turn{Kind: "system"},
			wantErr: session.ErrInvalidTurn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := session.NewMemorySession()
			mustAppend(t, s, tt.setup...)
			before := s.Len()

			err := s.Append(tt.turn)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Append() error = %v, want %v", err, tt.wantErr)
			}
			if s.Len() != before {
				t.Errorf("rejected turn changed history length: %d -> %d", before, s.Len())
			}
		})
	}
}

func TestSession_Pending_OrderAndCompletion(t *testing.T) {
	s := session.NewMemorySession()
	mustAppend(t, s, call("c1", "find"), call("c2", "grep"), call("c3", "read_file"))
	mustAppend(t, s, result("c2", "grep", ""))

	pending := s.Pending()
	ids := []string{pending[0].ID, pending[1].ID}
	if diff := cmp.Diff([]string{"c1", "c3"}, ids); diff != "" {
		t.Errorf("Pending() mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_History_DefensiveCopy(t *testing.T) {
	s := session.NewMemorySession()
	mustAppend(t, s, call("c1", "find"))

	history := s.History()
	history[0].Call.Name = "mutated"

	if got := s.History()[0].Call.Name; got != "find" {
		t.Errorf("history mutated through copy: %q", got)
	}
}

func TestSession_History_AppendOnly(t *testing.T) {
	s := session.NewMemorySession()
	mustAppend(t, s, protocol.UserTurn("one"), protocol.AssistantTurn("two"))
	before := s.History()

	mustAppend(t, s, protocol.UserTurn("three"), call("c1", "find"), result("c1", "find", "x"))
	after := s.History()

	if len(after) < len(before) {
		t.Fatalf("history shrank: %d -> %d", len(before), len(after))
	}
	if diff := cmp.Diff(before, after[:len(before)], cmpopts.EquateApproxTime(0)); diff != "" {
		t.Errorf("existing turns changed (-before +after):\n%s", diff)
	}
}

func TestSession_Clear_PreservesEnvironment(t *testing.T) {
	dir := t.TempDir()
	s := session.NewMemorySession()
	mustAppend(t, s, protocol.UserTurn("hello"), call("c1", "find"))

	s.SetAutoApprove(true)
	s.SetBackend("openai")
	s.AllowCommands("make")
	if err := s.SetWorkingDirectory(dir); err != nil {
		t.Fatalf("SetWorkingDirectory failed: %v", err)
	}

	s.Clear()

	if s.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", s.Len())
	}
	if len(s.Pending()) != 0 {
		t.Errorf("Pending() after Clear = %d, want 0", len(s.Pending()))
	}
	if !s.AutoApprove() {
		t.Error("Clear reset auto-approve")
	}
	if s.WorkingDirectory() != dir {
		t.Errorf("WorkingDirectory() = %q, want %q", s.WorkingDirectory(), dir)
	}
	if s.Backend() != "openai" {
		t.Errorf("Backend() = %q, want %q", s.Backend(), "openai")
	}
	if !s.CommandsAllowed([]string{"make"}) {
		t.Error("Clear reset allowed commands")
	}

	mustAppend(t, s, call("c1", "find"))
}

func TestSession_SetWorkingDirectory(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(root, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := session.NewMemorySession(session.WithWorkingDirectory(root))

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr error
	}{
		{name: "relative", path: "sub", want: sub},
		{name: "parent", path: "..", want: root},
		{name: "absolute", path: sub, want: sub},
		{name: "missing", path: "nope", want: sub, wantErr: session.ErrNotDirectory},
		{name: "file", path: file, want: sub, wantErr: session.ErrNotDirectory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name == "parent" {
				if err := s.SetWorkingDirectory(sub); err != nil {
					t.Fatal(err)
				}
			}
			err := s.SetWorkingDirectory(tt.path)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SetWorkingDirectory(%q) error = %v, want %v", tt.path, err, tt.wantErr)
			}
			if got := s.WorkingDirectory(); got != tt.want {
				t.Errorf("WorkingDirectory() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSession_IndependentState(t *testing.T) {
	s1 := session.NewMemorySession()
	s2 := session.NewMemorySession()

	s1.SetAutoApprove(true)
	s1.Trust("write_file")

	if s2.AutoApprove() {
		t.Error("auto-approve leaked across sessions")
	}
	if s2.Trusted("write_file") {
		t.Error("trusted tools leaked across sessions")
	}
}

type recorder struct {
	mu     sync.Mutex
	turns  []protocol.Turn
	clears int
}

func (r *recorder) RecordTurn(_ string, turn protocol.Turn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, turn)
}

func (r *recorder) RecordClear(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
}

func TestSession_Recorder(t *testing.T) {
	rec := &recorder{}
	s := session.NewMemorySession(session.WithRecorder(rec))

	mustAppend(t, s, protocol.UserTurn("hi"))
	_ = s.Append(result("nope", "find", ""))
	s.Clear()

	if len(rec.turns) != 1 {
		t.Errorf("recorded %d turns, want 1 (rejected turns are not recorded)", len(rec.turns))
	}
	if rec.turns[0].Seq != 1 {
		t.Errorf("recorded Seq = %d, want 1", rec.turns[0].Seq)
	}
	if rec.clears != 1 {
		t.Errorf("recorded %d clears, want 1", rec.clears)
	}
}

func TestSession_ConcurrentReads(t *testing.T) {
	s := session.NewMemorySession()
	var wg sync.WaitGroup

	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Append(protocol.UserTurn("msg"))
		}()
		go func() {
			defer wg.Done()
			_ = s.History()
		}()
	}
	wg.Wait()

	if s.Len() != 50 {
		t.Errorf("Len() = %d, want 50", s.Len())
	}
}
