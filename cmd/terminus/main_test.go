package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tailored-agentic-units/terminus/core/protocol"
	"github.com/tailored-agentic-units/terminus/journal"
	"github.com/tailored-agentic-units/terminus/kernel"
)

func TestApplyFlags(t *testing.T) {
	t.Cleanup(func() {
		modelFlag, workDir, yoloFlag, noJournal, debug = "", "", false, false, false
	})
	modelFlag, workDir, yoloFlag, noJournal, debug = "openai:gpt-4o-mini", "/tmp/project", true, true, true

	cfg := kernel.DefaultConfig()
	applyFlags(&cfg)

	assert.Equal(t, "openai", cfg.Agent.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Agent.Model)
	assert.Equal(t, "/tmp/project", cfg.Session.WorkingDirectory)
	assert.True(t, cfg.Session.AutoApprove)
	assert.True(t, cfg.Journal.Disabled)
	assert.Equal(t, "zap", cfg.Observer)
}

func TestApplyFlags_NoneSet(t *testing.T) {
	cfg := kernel.DefaultConfig()
	want := kernel.DefaultConfig()
	applyFlags(&cfg)
	assert.Equal(t, want, cfg)
}

func TestLogLocation(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/state")

	got, err := logLocation("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/state", "terminus", "debug.log"), got)

	got, err = logLocation("/tmp/x.log")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.log", got)
}

func TestNewDebugLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "debug.log")
	l, err := newDebugLogger(path)
	require.NoError(t, err)

	l.Debug("hello")
	require.NoError(t, l.Sync())
	assert.FileExists(t, path)
}

func TestPrintSessions(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		printSessions(&buf, nil, now)
		assert.Equal(t, "No recorded sessions.\n", buf.String())
	})

	t.Run("listed", func(t *testing.T) {
		var buf bytes.Buffer
		printSessions(&buf, []journal.Summary{
			{ID: "s2", Updated: now.Add(-2 * time.Hour), Turns: 1204, Clears: 2},
			{ID: "s1", Updated: now.Add(-48 * time.Hour), Turns: 1},
		}, now)

		lines := strings.Split(buf.String(), "\n")
		assert.True(t, strings.HasPrefix(lines[0], "s2  2 hours ago"))
		assert.True(t, strings.HasSuffix(lines[0], "1,204 turns, 2 clears"))
		assert.True(t, strings.HasPrefix(lines[1], "s1  2 days ago"))
		assert.True(t, strings.HasSuffix(lines[1], "1 turn"))
		assert.Contains(t, buf.String(), "2 sessions. Use: terminus history <session-id>")
	})
}

func transcript() []journal.Entry {
	at := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	return []journal.Entry{
		{Turn: protocol.Turn{Seq: 1, Kind: protocol.KindUser, Text: "delete temp.txt"}, Time: at},
		{Turn: protocol.Turn{Seq: 2, Kind: protocol.KindToolCall, Call: &protocol.ToolCall{
			ID: "c1", Name: "run_command", Arguments: `{"command":"rm temp.txt"}`,
		}}, Time: at},
		{Turn: protocol.Turn{Seq: 3, Kind: protocol.KindToolResult, Result: &protocol.ToolResult{
			ID: "c1", Name: "run_command", Outcome: protocol.Fail(protocol.FailureUserDeclined, "declined"),
		}}, Time: at},
		{Clear: true, Time: at},
		{Turn: protocol.Turn{Seq: 4, Kind: protocol.KindAssistant, Text: "line one\nline two"}, Time: at},
	}
}

func TestPrintTranscript(t *testing.T) {
	var buf bytes.Buffer
	printTranscript(&buf, transcript())
	out := buf.String()

	assert.Contains(t, out, "[1] user\n    delete temp.txt\n")
	assert.Contains(t, out, `[2] tool_call run_command({"command":"rm temp.txt"}) id=c1`)
	assert.Contains(t, out, "[3] tool_result run_command id=c1 user_declined\n    error (user_declined): declined\n")
	assert.Contains(t, out, "---- cleared ")
	assert.Contains(t, out, "[4] assistant\n    line one\n    line two\n")
}

func TestPrintTranscriptYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printTranscriptYAML(&buf, transcript()))

	var decoded []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 5)
	assert.Contains(t, decoded[3], "cleared")
	assert.NotContains(t, decoded[3], "turn")
	assert.Contains(t, decoded[0], "turn")
}
