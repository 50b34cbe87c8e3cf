package session_test

import (
	"testing"

	"github.com/tailored-agentic-units/terminus/approval"
	"github.com/tailored-agentic-units/terminus/session"
)

func TestDefaultConfig(t *testing.T) {
	cfg := session.DefaultConfig()

	if cfg.AutoApprove {
		t.Error("default config should not auto-approve")
	}
	if len(cfg.AllowedCommands) != len(approval.DefaultAllowedCommands) {
		t.Errorf("got %d allowed commands, want %d", len(cfg.AllowedCommands), len(approval.DefaultAllowedCommands))
	}
}

func TestConfig_Merge(t *testing.T) {
	cfg := session.DefaultConfig()
	source := session.Config{
		AutoApprove:     true,
		AllowedCommands: []string{"ls"},
		Backend:         "openai",
	}

	cfg.Merge(&source)

	if !cfg.AutoApprove {
		t.Error("AutoApprove not merged")
	}
	if len(cfg.AllowedCommands) != 1 || cfg.AllowedCommands[0] != "ls" {
		t.Errorf("AllowedCommands = %v, want [ls]", cfg.AllowedCommands)
	}
	if cfg.Backend != "openai" {
		t.Errorf("Backend = %q, want %q", cfg.Backend, "openai")
	}
}

func TestNew_FromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := session.DefaultConfig()
	cfg.WorkingDirectory = dir
	cfg.AutoApprove = true

	s, err := session.New(&cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if s.WorkingDirectory() != dir {
		t.Errorf("WorkingDirectory() = %q, want %q", s.WorkingDirectory(), dir)
	}
	if !s.AutoApprove() {
		t.Error("AutoApprove() = false, want true")
	}
	if !s.CommandsAllowed([]string{"ls"}) {
		t.Error("default allowed commands not applied")
	}
}

func TestNew_MissingDirectory(t *testing.T) {
	cfg := session.DefaultConfig()
	cfg.WorkingDirectory = "/definitely/not/here"

	if _, err := session.New(&cfg); err == nil {
		t.Error("New() with missing directory should fail")
	}
}
