package repl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tailored-agentic-units/terminus/core/protocol"
	"github.com/tailored-agentic-units/terminus/kernel"
	"github.com/tailored-agentic-units/terminus/session"
	"github.com/tailored-agentic-units/terminus/ui"
)

// ErrUsage reports a command invoked with the wrong arguments.
var ErrUsage = errors.New("usage")

// Env is what a slash command operates on.
type Env struct {
	Kernel  *kernel.Kernel
	Session session.Session
	Console *ui.Console
}

// Command is one slash command.
type Command struct {
	Name        string
	Usage       string
	Description string
	Run         func(ctx context.Context, env *Env, args []string) error
}

// Commands lists the slash commands in help order.
func Commands() []Command {
	return []Command{
		{Name: "/help", Usage: "/help", Description: "Show this help", Run: help},
		{Name: "/yolo", Usage: "/yolo", Description: "Toggle tool confirmations (auto-approves every action)", Run: yolo},
		{Name: "/clear", Usage: "/clear", Description: "Clear the conversation history", Run: clearHistory},
		{Name: "/dump", Usage: "/dump", Description: "Show the conversation history", Run: dump},
		{Name: "/save", Usage: "/save <file>", Description: "Write the conversation history as YAML", Run: save},
		{Name: "/model", Usage: "/model [name]", Description: "List backends or switch to one", Run: model},
	}
}

// Dispatch runs text as a slash command. It reports false when text is not
// a command and should go to the model instead. A slash-prefixed path such
// as /etc/hosts is not a command.
func Dispatch(ctx context.Context, env *Env, text string) (bool, error) {
	if !strings.HasPrefix(text, "/") {
		return false, nil
	}
	fields := strings.Fields(text)
	name, args := strings.ToLower(fields[0]), fields[1:]

	for _, cmd := range Commands() {
		if cmd.Name == name {
			err := cmd.Run(ctx, env, args)
			if errors.Is(err, ErrUsage) {
				env.Console.Warning("Usage: %s", cmd.Usage)
				return true, nil
			}
			return true, err
		}
	}

	if strings.Contains(name[1:], "/") {
		return false, nil
	}
	env.Console.Warning("Unknown command %s. Type /help for commands.", name)
	return true, nil
}

func help(_ context.Context, env *Env, _ []string) error {
	var entries []ui.HelpEntry
	for _, cmd := range Commands() {
		entries = append(entries, ui.HelpEntry{Command: cmd.Usage, Description: cmd.Description})
	}
	entries = append(entries, ui.HelpEntry{Command: "exit", Description: "Exit terminus (also quit, /exit)"})

	env.Console.Help("terminus help", entries,
		`Ask in plain language, e.g. "list files in ." or "show git status"`,
		"End a line with \\ to continue on the next line",
		"Ctrl-C interrupts the running request",
		"Answer a at a confirmation to stop asking for that tool or command",
	)
	return nil
}

func yolo(_ context.Context, env *Env, _ []string) error {
	on := !env.Session.AutoApprove()
	env.Session.SetAutoApprove(on)
	if on {
		env.Console.Info("Tool confirmations disabled (YOLO mode)")
	} else {
		env.Console.Info("Tool confirmations enabled")
	}
	return nil
}

func clearHistory(_ context.Context, env *Env, _ []string) error {
	env.Kernel.Clear(env.Session)
	env.Console.Success("Conversation history cleared")
	return nil
}

// MarshalHistory renders turns as YAML.
func MarshalHistory(turns []protocol.Turn) ([]byte, error) {
	if turns == nil {
		turns = []protocol.Turn{}
	}
	return yaml.Marshal(turns)
}

func dump(_ context.Context, env *Env, _ []string) error {
	history := env.Session.History()
	if len(history) == 0 {
		env.Console.Info("History is empty")
		return nil
	}
	out, err := MarshalHistory(history)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	env.Console.Raw(string(out))
	return nil
}

func save(_ context.Context, env *Env, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	path := args[0]
	if !filepath.IsAbs(path) {
		path = filepath.Join(env.Session.WorkingDirectory(), path)
	}

	history := env.Session.History()
	out, err := MarshalHistory(history)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	env.Console.Success("Saved %d turns to %s", len(history), path)
	return nil
}

func model(_ context.Context, env *Env, args []string) error {
	switch len(args) {
	case 0:
		current := env.Session.Backend()
		if current == "" {
			current = kernel.DefaultBackend
		}
		for _, info := range env.Kernel.Registry().List() {
			marker := " "
			if info.Name == current {
				marker = "*"
			}
			env.Console.Bullet("%s %s (%s:%s)", marker, info.Name, info.Provider, info.Model)
		}
		return nil
	case 1:
		name := args[0]
		if _, err := env.Kernel.Backend(name); err != nil {
			return err
		}
		if name == kernel.DefaultBackend {
			name = ""
		}
		env.Session.SetBackend(name)
		info, _ := env.currentBackend()
		env.Console.Info("Using model %s", info)
		return nil
	default:
		return ErrUsage
	}
}

// currentBackend describes the session's backend as provider:model.
func (e *Env) currentBackend() (string, bool) {
	name := e.Session.Backend()
	if name == "" {
		name = kernel.DefaultBackend
	}
	a, err := e.Kernel.Backend(name)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%s:%s", a.Provider(), a.Model()), true
}
