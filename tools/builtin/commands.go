package builtin

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// wrappers run their arguments as another command.
var wrappers = []string{
	"env", "xargs", "nohup", "sudo", "doas", "su", "runuser", "nice", "ionice",
	"timeout", "stdbuf", "setsid", "chroot", "strace", "watch", "time",
	"command", "builtin", "exec", "eval", "source", ".",
	"sh", "bash", "zsh", "dash", "ksh", "fish",
}

// writeFlags are arguments that make an otherwise inspecting command
// write, delete, or run something else.
var writeFlags = map[string][]string{
	"find":     {"-exec", "-execdir", "-ok", "-okdir", "-delete", "-fprint", "-fprint0", "-fprintf", "-fls"},
	"sort":     {"-o", "--output"},
	"tree":     {"-o"},
	"rg":       {"--pre"},
	"date":     {"-s", "--set"},
	"hostname": {"-F", "--file"},
}

// harmlessTargets may be written by a redirection without confirmation.
var harmlessTargets = []string{"/dev/null", "/dev/stdout", "/dev/stderr"}

// Commands returns the names of the commands a shell line would run, in
// order of appearance, including those in pipelines, lists, and
// substitutions.
//
// It fails when the names alone do not describe what the line does, so
// that such lines are always confirmed: the line does not parse, a command
// name is not a literal, output is redirected to a file, a wrapper such as
// env or xargs runs another command, or an inspecting command is given a
// flag that writes or executes.
func Commands(line string) ([]string, error) {
	file, err := syntax.NewParser().Parse(strings.NewReader(line), "")
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}

	var (
		names []string
		errs  []error
	)
	syntax.Walk(file, func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.Stmt:
			for _, r := range n.Redirs {
				if err := checkRedirect(r); err != nil {
					errs = append(errs, err)
				}
			}
		case *syntax.CallExpr:
			if len(n.Args) == 0 {
				return true
			}
			name, ok := staticWord(n.Args[0])
			if !ok {
				errs = append(errs, errors.New("command name is not a literal"))
				return true
			}
			if err := checkArgs(name, n.Args[1:]); err != nil {
				errs = append(errs, err)
			}
			names = append(names, name)
		}
		return true
	})

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return names, nil
}

func checkRedirect(r *syntax.Redirect) error {
	switch r.Op {
	case syntax.RdrOut, syntax.AppOut, syntax.ClbOut, syntax.RdrAll, syntax.AppAll, syntax.RdrInOut:
	case syntax.DplOut:
		// 2>&1 and >&- duplicate or close descriptors; anything else names a file.
		if target, ok := staticWord(r.Word); ok && (target == "-" || digits(target)) {
			return nil
		}
	default:
		return nil
	}

	target, ok := staticWord(r.Word)
	if ok && slices.Contains(harmlessTargets, target) {
		return nil
	}
	return fmt.Errorf("output is redirected with %s", r.Op)
}

func checkArgs(name string, args []*syntax.Word) error {
	flags, checked := writeFlags[name]
	wrapper := slices.Contains(wrappers, name)
	if !checked && !wrapper && name != "uniq" {
		return nil
	}

	values := make([]string, 0, len(args))
	for _, w := range args {
		v, ok := staticWord(w)
		if !ok {
			return fmt.Errorf("%s has arguments that are not literals", name)
		}
		values = append(values, v)
	}

	switch {
	case name == "env":
		for _, v := range values {
			if !envOption(v) {
				return fmt.Errorf("env runs another command or unsets variables: %s", v)
			}
		}
	case wrapper:
		if len(values) > 0 {
			return fmt.Errorf("%s runs another command", name)
		}
	case name == "uniq":
		// uniq INPUT OUTPUT writes OUTPUT.
		if len(operands(values)) > 1 {
			return errors.New("uniq writes an output file")
		}
	default:
		for _, v := range values {
			for _, f := range flags {
				if v == f || strings.HasPrefix(v, f+"=") || bundled(v, f) {
					return fmt.Errorf("%s %s writes or runs commands", name, f)
				}
			}
		}
	}
	return nil
}

// envOption reports whether v is an env argument that only shapes the
// printed environment.
func envOption(v string) bool {
	switch v {
	case "-", "-i", "-0", "--null", "--ignore-environment":
		return true
	}
	return !strings.HasPrefix(v, "-") && strings.Contains(v, "=")
}

// bundled matches a short flag inside a group such as -ro or with an
// attached value such as -ofile.
func bundled(v, flag string) bool {
	if len(flag) != 2 || len(v) < 3 || v[0] != '-' || v[1] == '-' {
		return false
	}
	return strings.ContainsRune(v[1:], rune(flag[1]))
}

func operands(values []string) []string {
	var out []string
	for _, v := range values {
		if !strings.HasPrefix(v, "-") || v == "-" {
			out = append(out, v)
		}
	}
	return out
}

func digits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// staticWord returns the value of w when it contains no expansions.
func staticWord(w *syntax.Word) (string, bool) {
	if w == nil {
		return "", false
	}
	var sb strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, dp := range p.Parts {
				lit, ok := dp.(*syntax.Lit)
				if !ok {
					return "", false
				}
				sb.WriteString(lit.Value)
			}
		default:
			return "", false
		}
	}
	return sb.String(), true
}
