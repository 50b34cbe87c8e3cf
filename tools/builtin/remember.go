package builtin

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/tailored-agentic-units/terminus/core/protocol"
	"github.com/tailored-agentic-units/terminus/memory"
	"github.com/tailored-agentic-units/terminus/tools"
)

func noteKey(name string) string {
	key := strings.TrimSpace(name)
	if path.Ext(key) == "" {
		key += ".md"
	}
	return key
}

func remember(notes *memory.Cache) tools.Spec {
	return tools.Spec{
		Name: "remember",
		Description: "Save a project note that is included in your context in every later turn. " +
			"Use it for build commands, conventions, and decisions worth keeping. Saving under an existing name replaces that note.",
		Schema: tools.NewSchema().
			String("name", "Note name, for example build or decisions/storage.", true).
			String("content", "Markdown content of the note.", true).
			Build(),
		SideEffect: protocol.Mutating,
		Preview: func(_ context.Context, call tools.Call) (string, error) {
			return fmt.Sprintf("Note: %s\n\n%s", noteKey(call.StringArg("name")), call.StringArg("content")), nil
		},
		Handler: func(ctx context.Context, call tools.Call) (tools.Result, error) {
			key := noteKey(call.StringArg("name"))
			if err := notes.Put(ctx, key, []byte(call.StringArg("content"))); err != nil {
				return tools.Result{}, fmt.Errorf("failed to save note %s: %w", key, err)
			}
			return tools.Result{Content: "Saved note " + key}, nil
		},
	}
}
