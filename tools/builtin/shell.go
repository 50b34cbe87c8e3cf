package builtin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/tailored-agentic-units/terminus/core/protocol"
	"github.com/tailored-agentic-units/terminus/tools"
)

func commandsArg(call tools.Call) ([]string, error) {
	return Commands(call.StringArg("command"))
}

func runCommand(opts Options) tools.Spec {
	return tools.Spec{
		Name: "run_command",
		Description: fmt.Sprintf("Run a shell command in the working directory and return its output. "+
			"Commands are stopped after %s.", opts.timeout()),
		Schema: tools.NewSchema().
			String("command", "The shell command line to run.", true).
			Build(),
		SideEffect: protocol.Destructive,
		Commands:   commandsArg,
		Preview: func(_ context.Context, call tools.Call) (string, error) {
			return "$ " + call.StringArg("command"), nil
		},
		Handler: func(ctx context.Context, call tools.Call) (tools.Result, error) {
			out, err := runShell(ctx, opts, call.Dir, call.StringArg("command"))
			if err != nil {
				return tools.Result{}, err
			}
			return tools.Result{Content: out}, nil
		},
	}
}

func runInDirectory(opts Options) tools.Spec {
	return tools.Spec{
		Name:        "run_in_directory",
		Description: "Run a shell command in another directory without changing the working directory.",
		Schema: tools.NewSchema().
			String("path", "Directory to run the command in.", true).
			String("command", "The shell command line to run.", true).
			Build(),
		SideEffect: protocol.Destructive,
		Commands:   commandsArg,
		Preview: func(_ context.Context, call tools.Call) (string, error) {
			return fmt.Sprintf("Directory: %s\n$ %s", resolve(call.Dir, call.StringArg("path")), call.StringArg("command")), nil
		},
		Handler: func(ctx context.Context, call tools.Call) (tools.Result, error) {
			dir := resolve(call.Dir, call.StringArg("path"))
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				return tools.Result{}, fmt.Errorf("directory does not exist: %s", call.StringArg("path"))
			}
			out, err := runShell(ctx, opts, dir, call.StringArg("command"))
			if err != nil {
				return tools.Result{}, err
			}
			return tools.Result{Content: out}, nil
		},
	}
}

// runShell runs line through the configured shell in dir, bounded by the
// command timeout. A non-zero exit status is reported in the output rather
// than as an error.
func runShell(ctx context.Context, opts Options, dir, line string) (string, error) {
	timeout := opts.timeout()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, opts.shell(), "-c", line)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	switch {
	case ctx.Err() != nil:
		return "", ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return "", fmt.Errorf("command timed out after %s", timeout)
	}

	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", fmt.Errorf("failed to run command: %w", err)
		}
		code = exitErr.ExitCode()
	}
	return formatOutput(stdout.String(), stderr.String(), code), nil
}

func formatOutput(stdout, stderr string, code int) string {
	var parts []string
	if stdout != "" {
		parts = append(parts, "STDOUT:\n"+strings.TrimRight(stdout, "\n"))
	}
	if stderr != "" {
		parts = append(parts, "STDERR:\n"+strings.TrimRight(stderr, "\n"))
	}
	if code != 0 {
		parts = append(parts, fmt.Sprintf("Exit code: %d", code))
	}
	if len(parts) == 0 {
		return "(no output)"
	}
	return strings.Join(parts, "\n")
}
