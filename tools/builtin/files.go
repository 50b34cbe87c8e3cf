package builtin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/aymanbagabas/go-udiff"

	"github.com/tailored-agentic-units/terminus/core/protocol"
	"github.com/tailored-agentic-units/terminus/tools"
)

func readFile() tools.Spec {
	return tools.Spec{
		Name:        "read_file",
		Description: "Read the contents of a file.",
		Schema: tools.NewSchema().
			String("path", "Path to the file, relative to the working directory or absolute.", true).
			Build(),
		SideEffect: protocol.ReadOnly,
		Handler: func(_ context.Context, call tools.Call) (tools.Result, error) {
			path := resolve(call.Dir, call.StringArg("path"))
			data, err := os.ReadFile(path)
			switch {
			case errors.Is(err, os.ErrNotExist):
				return tools.Result{}, fmt.Errorf("file not found: %s", path)
			case errors.Is(err, os.ErrPermission):
				return tools.Result{}, fmt.Errorf("permission denied: %s", path)
			case err != nil:
				return tools.Result{}, fmt.Errorf("error reading file %s: %w", path, err)
			}
			return tools.Result{Content: string(data)}, nil
		},
	}
}

func writeFile() tools.Spec {
	return tools.Spec{
		Name:        "write_file",
		Description: "Write content to a file, creating parent directories and replacing any existing content.",
		Schema: tools.NewSchema().
			String("path", "Path to the file to write.", true).
			String("content", "The complete new file content.", true).
			Build(),
		SideEffect: protocol.Mutating,
		Preview: func(_ context.Context, call tools.Call) (string, error) {
			path := resolve(call.Dir, call.StringArg("path"))
			content := call.StringArg("content")
			if old, err := os.ReadFile(path); err == nil {
				return diffPreview(path, string(old), content), nil
			}
			return fmt.Sprintf("File: %s\n\n%s", path, content), nil
		},
		Handler: func(_ context.Context, call tools.Call) (tools.Result, error) {
			path := resolve(call.Dir, call.StringArg("path"))
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return tools.Result{}, fmt.Errorf("failed to create parent directories: %w", err)
			}
			if err := os.WriteFile(path, []byte(call.StringArg("content")), 0o644); err != nil {
				return tools.Result{}, fmt.Errorf("failed to write %s: %w", path, err)
			}
			return tools.Result{Content: "Successfully wrote to " + path}, nil
		},
	}
}

func updateFile() tools.Spec {
	return tools.Spec{
		Name: "update_file",
		Description: "Replace the first occurrence of old_content with new_content in a file. " +
			"old_content must match exactly, including whitespace.",
		Schema: tools.NewSchema().
			String("path", "Path to the file to update.", true).
			String("old_content", "Exact text to replace.", true).
			String("new_content", "Replacement text.", true).
			Build(),
		SideEffect: protocol.Mutating,
		Preview: func(_ context.Context, call tools.Call) (string, error) {
			path, before, after, err := planUpdate(call)
			if err != nil {
				return "", err
			}
			return diffPreview(path, before, after), nil
		},
		Handler: func(_ context.Context, call tools.Call) (tools.Result, error) {
			path, _, after, err := planUpdate(call)
			if err != nil {
				return tools.Result{}, err
			}
			if err := os.WriteFile(path, []byte(after), 0o644); err != nil {
				return tools.Result{}, fmt.Errorf("error writing to file %s: %w", path, err)
			}
			return tools.Result{Content: "Successfully updated " + path}, nil
		},
	}
}

// planUpdate reads the target and computes the edited content.
func planUpdate(call tools.Call) (path, before, after string, err error) {
	path = resolve(call.Dir, call.StringArg("path"))
	oldContent := call.StringArg("old_content")
	newContent := call.StringArg("new_content")

	if oldContent == "" {
		return "", "", "", errors.New("old_content is empty; provide the exact text to replace")
	}
	if oldContent == newContent {
		return "", "", "", errors.New("old_content and new_content are identical; provide different content for the replacement")
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", "", "", fmt.Errorf("file not found: %s", path)
	}
	if err != nil {
		return "", "", "", fmt.Errorf("error reading file %s: %w", path, err)
	}

	before = string(data)
	if !strings.Contains(before, oldContent) {
		return "", "", "", fmt.Errorf("content to replace not found in %s (searched for %q); re-read the file and match it exactly", path, truncate(oldContent, 100))
	}
	return path, before, strings.Replace(before, oldContent, newContent, 1), nil
}

func diffPreview(path, before, after string) string {
	return fmt.Sprintf("File: %s\n\n%s", path, udiff.Unified(path, path, before, after))
}

// truncate shortens s to n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
