package builtin

import (
	"bufio"
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/dustin/go-humanize"

	"github.com/tailored-agentic-units/terminus/core/protocol"
	"github.com/tailored-agentic-units/terminus/tools"
)

const noResults = "No results found."

type node struct {
	rel  string
	dir  bool
	size int64
}

// walk visits every entry under root except hidden and excluded
// directories. A maxDepth of zero or less is unlimited. fn is serialized.
func walk(ctx context.Context, root string, maxDepth int, fn func(node)) error {
	info, err := os.Stat(root)
	if err != nil {
		return notFound(root)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", root)
	}

	var mu sync.Mutex
	return fastwalk.Walk(nil, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}

		name := d.Name()
		if d.IsDir() && (strings.HasPrefix(name, ".") || excluded(name)) {
			return filepath.SkipDir
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if maxDepth > 0 && strings.Count(rel, "/")+1 > maxDepth {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		n := node{rel: rel, dir: d.IsDir()}
		if !n.dir {
			if fi, err := d.Info(); err == nil {
				n.size = fi.Size()
			}
		}

		mu.Lock()
		fn(n)
		mu.Unlock()
		return nil
	})
}

func listDirectory() tools.Spec {
	return tools.Spec{
		Name:        "list_directory",
		Description: "List directory contents as a tree, skipping version control, dependency, and build directories.",
		Schema: tools.NewSchema().
			String("path", "Directory to list (default: the working directory).", false).
			Integer("max_depth", "Maximum depth to traverse (default: 3).", false).
			Default("path", ".").
			Default("max_depth", 3).
			Build(),
		SideEffect: protocol.ReadOnly,
		Handler: func(ctx context.Context, call tools.Call) (tools.Result, error) {
			root := resolve(call.Dir, call.StringArg("path"))
			info, err := os.Stat(root)
			if err != nil {
				return tools.Result{}, notFound(root)
			}
			if !info.IsDir() {
				return tools.Result{}, fmt.Errorf("path is not a directory: %s", root)
			}

			t := &tree{maxDepth: max(call.IntArg("max_depth", 3), 1)}
			t.lines = append(t.lines, root)
			if err := t.render(ctx, root, "", 0); err != nil {
				return tools.Result{}, err
			}
			t.lines = append(t.lines, "", fmt.Sprintf("Total: %d files, %d directories", t.files, t.dirs))
			return tools.Result{Content: strings.Join(t.lines, "\n")}, nil
		},
	}
}

type tree struct {
	maxDepth int
	lines    []string
	files    int
	dirs     int
}

type treeEntry struct {
	name  string
	dir   bool
	count int
	size  int64
}

// render lists dir in order, directories first, recursing into each
// subdirectory beneath its own line.
func (t *tree) render(ctx context.Context, dir, prefix string, depth int) error {
	if depth >= t.maxDepth {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.lines = append(t.lines, prefix+"(unreadable: "+err.Error()+")")
		return nil
	}

	var items []treeEntry
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") && name != ".gitignore" && name != ".env.example" {
			continue
		}
		if excluded(name) {
			continue
		}
		item := treeEntry{name: name, dir: e.IsDir()}
		if item.dir {
			item.count = countFiles(filepath.Join(dir, name))
			t.dirs++
		} else {
			if fi, err := e.Info(); err == nil {
				item.size = fi.Size()
			}
			t.files++
		}
		items = append(items, item)
	}

	slices.SortFunc(items, func(a, b treeEntry) int {
		if a.dir != b.dir {
			if a.dir {
				return -1
			}
			return 1
		}
		return cmp.Compare(strings.ToLower(a.name), strings.ToLower(b.name))
	})

	for i, item := range items {
		last := i == len(items)-1
		branch, indent := "├── ", "│   "
		if last {
			branch, indent = "└── ", "    "
		}

		switch {
		case item.dir && item.count > 0:
			t.lines = append(t.lines, fmt.Sprintf("%s%s%s/ (%d files)", prefix, branch, item.name, item.count))
		case item.dir:
			t.lines = append(t.lines, prefix+branch+item.name+"/")
		default:
			t.lines = append(t.lines, fmt.Sprintf("%s%s%s (%s)", prefix, branch, item.name, humanize.Bytes(uint64(item.size))))
		}

		if item.dir {
			if err := t.render(ctx, filepath.Join(dir, item.name), prefix+indent, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func countFiles(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			n++
		}
	}
	return n
}

func find() tools.Spec {
	return tools.Spec{
		Name: "find",
		Description: "Find files or directories by name pattern. Patterns are shell-style globs matched " +
			"against the base name (\"*.go\", \"*test*\"); patterns containing / match the relative path and support **.",
		Schema: tools.NewSchema().
			String("directory", "Directory to search in (default: the working directory).", false).
			String("pattern", "Glob pattern (default: *).", false).
			Boolean("dirs", "Search for directories instead of files.", false).
			Integer("max_depth", "Maximum depth to search (default: unlimited).", false).
			Default("directory", ".").
			Default("pattern", "*").
			Build(),
		SideEffect: protocol.ReadOnly,
		Handler: func(ctx context.Context, call tools.Call) (tools.Result, error) {
			root := resolve(call.Dir, call.StringArg("directory"))
			pattern := call.StringArg("pattern")
			if !doublestar.ValidatePattern(pattern) {
				return tools.Result{}, fmt.Errorf("invalid pattern %q", pattern)
			}
			wantDirs := call.BoolArg("dirs", false)

			var matches []string
			err := walk(ctx, root, call.IntArg("max_depth", 0), func(n node) {
				if n.dir != wantDirs {
					return
				}
				subject := baseName(n.rel)
				if strings.Contains(pattern, "/") {
					subject = n.rel
				}
				if ok, _ := doublestar.Match(pattern, subject); ok {
					matches = append(matches, n.rel)
				}
			})
			if err != nil {
				return tools.Result{}, err
			}

			if len(matches) == 0 {
				return tools.Result{Content: noResults}, nil
			}
			slices.Sort(matches)
			return tools.Result{Content: strings.Join(matches, "\n")}, nil
		},
	}
}

// baseName returns the last element of a /-separated relative path.
func baseName(rel string) string {
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		return rel[i+1:]
	}
	return rel
}

func grep() tools.Spec {
	return tools.Spec{
		Name: "grep",
		Description: "Search file contents for a regular expression. Results are " +
			"\"path:line:text\". Binary files and dependency directories are skipped.",
		Schema: tools.NewSchema().
			String("pattern", "Text or regular expression to search for.", true).
			String("directory", "Directory to search in (default: the working directory).", false).
			Boolean("case_sensitive", "Whether the search is case-sensitive (default: true).", false).
			Integer("max_results", "Maximum number of matching lines to return.", false).
			String("include_pattern", "Only search files whose name matches this glob, e.g. *.go or *.{js,ts}.", false).
			Default("directory", ".").
			Default("case_sensitive", true).
			Build(),
		SideEffect: protocol.ReadOnly,
		Handler: func(ctx context.Context, call tools.Call) (tools.Result, error) {
			pattern := call.StringArg("pattern")
			if pattern == "" {
				return tools.Result{}, fmt.Errorf("pattern cannot be empty")
			}
			if !call.BoolArg("case_sensitive", true) {
				pattern = "(?i)" + pattern
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return tools.Result{}, fmt.Errorf("invalid regex pattern: %w", err)
			}

			include := call.StringArg("include_pattern")
			root := resolve(call.Dir, call.StringArg("directory"))

			var files []string
			err = walk(ctx, root, 0, func(n node) {
				if n.dir || binary(n.rel) || strings.HasPrefix(baseName(n.rel), ".") {
					return
				}
				if include != "" {
					if ok, _ := doublestar.Match(include, baseName(n.rel)); !ok {
						return
					}
				}
				files = append(files, n.rel)
			})
			if err != nil {
				return tools.Result{}, err
			}
			slices.Sort(files)

			limit := call.IntArg("max_results", 0)
			var results []string
			for _, rel := range files {
				if err := ctx.Err(); err != nil {
					return tools.Result{}, err
				}
				results = grepFile(filepath.Join(root, filepath.FromSlash(rel)), rel, re, results, limit)
				if limit > 0 && len(results) > limit {
					results = append(results[:limit], fmt.Sprintf("... (showing first %d results)", limit))
					break
				}
			}

			if len(results) == 0 {
				return tools.Result{Content: noResults}, nil
			}
			return tools.Result{Content: strings.Join(results, "\n")}, nil
		},
	}
}

// grepFile appends matching lines of one file to results. Files that look
// binary are skipped.
func grepFile(file, rel string, re *regexp.Regexp, results []string, limit int) []string {
	f, err := os.Open(file)
	if err != nil {
		return results
	}
	defer f.Close()

	r := bufio.NewReader(f)
	head, _ := r.Peek(512)
	if bytes.IndexByte(head, 0) >= 0 {
		return results
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for line := 1; scanner.Scan(); line++ {
		text := scanner.Text()
		if re.MatchString(text) {
			results = append(results, fmt.Sprintf("%s:%d:%s", rel, line, strings.TrimRight(text, " \t\r")))
			if limit > 0 && len(results) > limit {
				break
			}
		}
	}
	return results
}

func findLargeFiles() tools.Spec {
	return tools.Spec{
		Name:        "find_large_files",
		Description: "Find files at or above a size threshold, largest first.",
		Schema: tools.NewSchema().
			String("path", "Directory to search (default: the working directory).", false).
			Param("min_size_mb", "number", "Minimum size in megabytes (default: 10).", false).
			Default("path", ".").
			Default("min_size_mb", 10).
			Build(),
		SideEffect: protocol.ReadOnly,
		Handler: func(ctx context.Context, call tools.Call) (tools.Result, error) {
			root := resolve(call.Dir, call.StringArg("path"))
			minMB := 10.0
			if v, ok := call.Args["min_size_mb"].(float64); ok && v >= 0 {
				minMB = v
			}
			threshold := int64(minMB * 1024 * 1024)

			var large []node
			err := walk(ctx, root, 0, func(n node) {
				if !n.dir && n.size >= threshold {
					large = append(large, n)
				}
			})
			if err != nil {
				return tools.Result{}, err
			}

			if len(large) == 0 {
				return tools.Result{Content: fmt.Sprintf("No files of %g MB or more found in %s", minMB, root)}, nil
			}

			slices.SortFunc(large, func(a, b node) int {
				if c := cmp.Compare(b.size, a.size); c != 0 {
					return c
				}
				return cmp.Compare(a.rel, b.rel)
			})

			var b strings.Builder
			fmt.Fprintf(&b, "Files of %g MB or more in %s:\n\n", minMB, root)
			var total int64
			for _, n := range large {
				total += n.size
				fmt.Fprintf(&b, "  %s: %s\n", n.rel, humanize.Bytes(uint64(n.size)))
			}
			fmt.Fprintf(&b, "\nTotal: %s files, %s", humanize.Comma(int64(len(large))), humanize.Bytes(uint64(total)))
			return tools.Result{Content: b.String()}, nil
		},
	}
}
