package kernel_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tailored-agentic-units/terminus/core/config"
	"github.com/tailored-agentic-units/terminus/kernel"
)

func TestDefaultConfig(t *testing.T) {
	cfg := kernel.DefaultConfig()

	if cfg.MaxRounds != 10 {
		t.Errorf("got MaxRounds %d, want 10", cfg.MaxRounds)
	}
	if cfg.Observer != "noop" {
		t.Errorf("got Observer %q, want noop", cfg.Observer)
	}
	if cfg.SystemPrompt != kernel.DefaultSystemPrompt {
		t.Error("default config should carry the default system prompt")
	}
	if cfg.Tools.CommandTimeout.Std() != 30*time.Second {
		t.Errorf("got CommandTimeout %s, want 30s", cfg.Tools.CommandTimeout.Std())
	}
	if len(cfg.Session.AllowedCommands) == 0 {
		t.Error("default config should seed allowed commands")
	}
}

func TestConfig_Merge(t *testing.T) {
	cfg := kernel.DefaultConfig()

	source := &kernel.Config{
		MaxRounds:    20,
		SystemPrompt: "merged prompt",
		Observer:     "slog",
		Env:          map[string]string{"GEMINI_API_KEY": "k"},
	}

	cfg.Merge(source)

	if cfg.MaxRounds != 20 {
		t.Errorf("got MaxRounds %d, want 20", cfg.MaxRounds)
	}
	if cfg.SystemPrompt != "merged prompt" {
		t.Errorf("got SystemPrompt %q, want %q", cfg.SystemPrompt, "merged prompt")
	}
	if cfg.Observer != "slog" {
		t.Errorf("got Observer %q, want slog", cfg.Observer)
	}
	if cfg.Env["GEMINI_API_KEY"] != "k" {
		t.Errorf("got Env %v, want GEMINI_API_KEY set", cfg.Env)
	}
}

func TestConfig_Merge_ZeroValuesPreserveDefaults(t *testing.T) {
	cfg := kernel.DefaultConfig()
	original := cfg.MaxRounds

	source := &kernel.Config{} // All zero values, including max_rounds: 0

	cfg.Merge(source)

	if cfg.MaxRounds != original {
		t.Errorf("got MaxRounds %d, want %d (preserved default)", cfg.MaxRounds, original)
	}
	if cfg.Agent.Provider != config.DefaultProvider {
		t.Errorf("got Provider %q, want %q", cfg.Agent.Provider, config.DefaultProvider)
	}
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "json",
			file: "terminus.json",
			content: `{
				"max_rounds": 25,
				"system_prompt": "loaded prompt",
				"agent": {"model": "openai:gpt-4o-mini"},
				"memory": {"dir": "/tmp/notes"},
				"tools": {"command_timeout": "5s", "extensions": [{"name": "lint", "command": "make lint"}]},
				"journal": {"path": "/tmp/journal.db"},
				"env": {"OPENAI_API_KEY": "sk-test"}
			}`,
		},
		{
			name: "yaml",
			file: "terminus.yaml",
			content: `
max_rounds: 25
system_prompt: loaded prompt
agent:
  model: openai:gpt-4o-mini
memory:
  dir: /tmp/notes
tools:
  command_timeout: 5s
  extensions:
    - name: lint
      command: make lint
journal:
  path: /tmp/journal.db
env:
  OPENAI_API_KEY: sk-test
`,
		},
		{
			name: "toml",
			file: "terminus.toml",
			content: `
max_rounds = 25
system_prompt = "loaded prompt"

[agent]
model = "openai:gpt-4o-mini"

[memory]
dir = "/tmp/notes"

[tools]
command_timeout = "5s"

[[tools.extensions]]
name = "lint"
command = "make lint"

[journal]
path = "/tmp/journal.db"

[env]
OPENAI_API_KEY = "sk-test"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}

			cfg, err := kernel.LoadConfig(path)
			if err != nil {
				t.Fatalf("LoadConfig failed: %v", err)
			}

			if cfg.MaxRounds != 25 {
				t.Errorf("got MaxRounds %d, want 25", cfg.MaxRounds)
			}
			if cfg.SystemPrompt != "loaded prompt" {
				t.Errorf("got SystemPrompt %q, want %q", cfg.SystemPrompt, "loaded prompt")
			}
			if cfg.Agent.Provider != "openai" || cfg.Agent.Model != "gpt-4o-mini" {
				t.Errorf("got agent %s:%s, want openai:gpt-4o-mini", cfg.Agent.Provider, cfg.Agent.Model)
			}
			if cfg.Memory.Dir != "/tmp/notes" {
				t.Errorf("got Memory.Dir %q, want /tmp/notes", cfg.Memory.Dir)
			}
			if cfg.Memory.Guide != "terminus.md" {
				t.Errorf("got Memory.Guide %q, want default terminus.md", cfg.Memory.Guide)
			}
			if cfg.Tools.CommandTimeout.Std() != 5*time.Second {
				t.Errorf("got CommandTimeout %s, want 5s", cfg.Tools.CommandTimeout.Std())
			}
			if len(cfg.Tools.Extensions) != 1 || cfg.Tools.Extensions[0].Name != "lint" {
				t.Errorf("got Extensions %+v, want one named lint", cfg.Tools.Extensions)
			}
			if cfg.Journal.Path != "/tmp/journal.db" {
				t.Errorf("got Journal.Path %q, want /tmp/journal.db", cfg.Journal.Path)
			}
			if cfg.Env["OPENAI_API_KEY"] != "sk-test" {
				t.Errorf("got Env %v, want OPENAI_API_KEY", cfg.Env)
			}
		})
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := kernel.LoadConfig("/nonexistent/path/config.json")
	if err != nil {
		t.Fatalf("missing file should yield defaults, got %v", err)
	}
	if cfg.MaxRounds != 10 {
		t.Errorf("got MaxRounds %d, want default 10", cfg.MaxRounds)
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.json")

	if err := os.WriteFile(configPath, []byte("{invalid}"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := kernel.LoadConfig(configPath)
	if err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}

func TestLoadConfig_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terminus.ini")
	if err := os.WriteFile(path, []byte("x=1"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := kernel.LoadConfig(path)
	if !errors.Is(err, config.ErrUnsupportedFormat) {
		t.Fatalf("got %v, want ErrUnsupportedFormat", err)
	}
}

func TestConfig_ExportEnv(t *testing.T) {
	t.Setenv("TERMINUS_TEST_PRESET", "from-shell")
	os.Unsetenv("TERMINUS_TEST_NEW")
	t.Cleanup(func() { os.Unsetenv("TERMINUS_TEST_NEW") })

	cfg := kernel.DefaultConfig()
	cfg.Env = map[string]string{
		"TERMINUS_TEST_PRESET": "from-file",
		"TERMINUS_TEST_NEW":    "from-file",
	}

	if err := cfg.ExportEnv(); err != nil {
		t.Fatalf("ExportEnv failed: %v", err)
	}
	if got := os.Getenv("TERMINUS_TEST_PRESET"); got != "from-shell" {
		t.Errorf("preset variable = %q, want from-shell", got)
	}
	if got := os.Getenv("TERMINUS_TEST_NEW"); got != "from-file" {
		t.Errorf("new variable = %q, want from-file", got)
	}
}
