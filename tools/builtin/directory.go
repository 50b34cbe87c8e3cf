package builtin

import (
	"context"
	"fmt"
	"os"

	"github.com/tailored-agentic-units/terminus/core/protocol"
	"github.com/tailored-agentic-units/terminus/tools"
)

func changeDirectory() tools.Spec {
	return tools.Spec{
		Name: "change_directory",
		Description: "Change the session's working directory. Later tool calls resolve relative " +
			"paths against it. Use this instead of running cd through run_command.",
		Schema: tools.NewSchema().
			String("path", "Target directory, relative to the working directory or absolute.", true).
			Build(),
		SideEffect: protocol.ReadOnly,
		Handler: func(_ context.Context, call tools.Call) (tools.Result, error) {
			target := resolve(call.Dir, call.StringArg("path"))
			info, err := os.Stat(target)
			if err != nil {
				return tools.Result{}, fmt.Errorf("directory does not exist: %s", target)
			}
			if !info.IsDir() {
				return tools.Result{}, fmt.Errorf("not a directory: %s", target)
			}
			return tools.Result{
				Content: "Changed directory to " + target,
				Effects: tools.Effects{Dir: target},
			}, nil
		},
	}
}

func getCurrentDirectory() tools.Spec {
	return tools.Spec{
		Name:        "get_current_directory",
		Description: "Return the session's working directory.",
		SideEffect:  protocol.ReadOnly,
		Handler: func(_ context.Context, call tools.Call) (tools.Result, error) {
			return tools.Result{Content: "Current working directory: " + call.Dir}, nil
		},
	}
}
