package builtin

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"mvdan.cc/sh/v3/syntax"

	"github.com/tailored-agentic-units/terminus/core/protocol"
	"github.com/tailored-agentic-units/terminus/tools"
)

var extensionFuncs = template.FuncMap{
	"quote": func(v any) (string, error) {
		return syntax.Quote(fmt.Sprint(v), syntax.LangBash)
	},
}

// extension builds a command tool from configuration. The command template
// is rendered with the validated arguments and run like run_command.
func extension(ext tools.Extension, opts Options) (tools.Spec, error) {
	if ext.Name == "" {
		return tools.Spec{}, tools.ErrEmptyName
	}
	tmpl, err := template.New(ext.Name).
		Funcs(extensionFuncs).
		Parse(ext.Command)
	if err != nil {
		return tools.Spec{}, fmt.Errorf("%w: %s: command template: %v", tools.ErrInvalidSchema, ext.Name, err)
	}
	effect, err := protocol.ParseSideEffect(ext.SideEffect)
	if err != nil {
		return tools.Spec{}, fmt.Errorf("%w: %s: %v", tools.ErrInvalidSchema, ext.Name, err)
	}

	schema := tools.NewSchema()
	for _, p := range ext.Params {
		typ := p.Type
		if typ == "" {
			typ = "string"
		}
		schema.Param(p.Name, typ, p.Description, p.Required)
	}

	render := func(call tools.Call) (string, error) {
		data := make(map[string]any, len(ext.Params))
		for _, p := range ext.Params {
			data[p.Name] = ""
		}
		for k, v := range call.Args {
			data[k] = v
		}
		var b strings.Builder
		if err := tmpl.Execute(&b, data); err != nil {
			return "", fmt.Errorf("failed to render command: %w", err)
		}
		return b.String(), nil
	}

	description := ext.Description
	if description == "" {
		description = "Run: " + ext.Command
	}

	return tools.Spec{
		Name:        ext.Name,
		Description: description,
		Schema:      schema.Build(),
		SideEffect:  effect,
		Commands: func(call tools.Call) ([]string, error) {
			line, err := render(call)
			if err != nil {
				return nil, err
			}
			return Commands(line)
		},
		Preview: func(_ context.Context, call tools.Call) (string, error) {
			line, err := render(call)
			if err != nil {
				return "", err
			}
			return "$ " + line, nil
		},
		Handler: func(ctx context.Context, call tools.Call) (tools.Result, error) {
			line, err := render(call)
			if err != nil {
				return tools.Result{}, err
			}
			out, err := runShell(ctx, opts, call.Dir, line)
			if err != nil {
				return tools.Result{}, err
			}
			return tools.Result{Content: out}, nil
		},
	}, nil
}
