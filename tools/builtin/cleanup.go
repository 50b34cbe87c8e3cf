package builtin

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/dustin/go-humanize"

	"github.com/tailored-agentic-units/terminus/core/protocol"
	"github.com/tailored-agentic-units/terminus/tools"
)

var tempFilePatterns = []string{
	"*.tmp", "*.temp", "*~", "*.bak", "*.swp", "*.swo", "*.log", "*.cache",
	".DS_Store", "Thumbs.db", "desktop.ini", ".coverage",
}

var tempDirs = []string{
	"__pycache__", ".pytest_cache", ".mypy_cache", ".ruff_cache", "htmlcov",
}

const (
	cleanupFileLimit = 10
	cleanupDirLimit  = 5
)

func tempFile(name string) bool {
	for _, p := range tempFilePatterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

type cleanup struct {
	root  string
	files []node
	dirs  []node
}

func (c cleanup) empty() bool {
	return len(c.files) == 0 && len(c.dirs) == 0
}

func (c cleanup) total() int64 {
	var n int64
	for _, f := range c.files {
		n += f.size
	}
	for _, d := range c.dirs {
		n += d.size
	}
	return n
}

// planCleanup finds temporary files and cache directories under root.
// Cache directories are reported whole and not descended into. Version
// control metadata and dependency trees are never visited.
func planCleanup(ctx context.Context, root string) (cleanup, error) {
	info, err := os.Stat(root)
	if err != nil {
		return cleanup{}, notFound(root)
	}
	if !info.IsDir() {
		return cleanup{}, fmt.Errorf("not a directory: %s", root)
	}

	plan := cleanup{root: root}
	var mu sync.Mutex
	err = fastwalk.Walk(nil, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == root {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		name := d.Name()

		if d.IsDir() {
			if slices.Contains(tempDirs, name) {
				n := node{rel: rel, dir: true, size: dirSize(path)}
				mu.Lock()
				plan.dirs = append(plan.dirs, n)
				mu.Unlock()
				return filepath.SkipDir
			}
			if name == ".git" || excluded(name) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !tempFile(name) {
			return nil
		}
		n := node{rel: rel}
		if fi, err := d.Info(); err == nil {
			n.size = fi.Size()
		}
		mu.Lock()
		plan.files = append(plan.files, n)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return cleanup{}, err
	}

	bySize := func(a, b node) int {
		if c := cmp.Compare(b.size, a.size); c != 0 {
			return c
		}
		return cmp.Compare(a.rel, b.rel)
	}
	slices.SortFunc(plan.files, bySize)
	slices.SortFunc(plan.dirs, bySize)
	return plan, nil
}

func dirSize(dir string) int64 {
	var total atomic.Int64
	_ = fastwalk.Walk(nil, dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total.Add(fi.Size())
		}
		return nil
	})
	return total.Load()
}

func (c cleanup) describe() string {
	var b strings.Builder
	if len(c.files) > 0 {
		fmt.Fprintf(&b, "Temporary files (%d):\n", len(c.files))
		for _, f := range c.files[:min(len(c.files), cleanupFileLimit)] {
			fmt.Fprintf(&b, "  %s (%s)\n", f.rel, humanize.Bytes(uint64(f.size)))
		}
		if len(c.files) > cleanupFileLimit {
			fmt.Fprintf(&b, "  ... and %d more\n", len(c.files)-cleanupFileLimit)
		}
	}
	if len(c.dirs) > 0 {
		fmt.Fprintf(&b, "Cache directories (%d):\n", len(c.dirs))
		for _, d := range c.dirs[:min(len(c.dirs), cleanupDirLimit)] {
			fmt.Fprintf(&b, "  %s/ (%s)\n", d.rel, humanize.Bytes(uint64(d.size)))
		}
		if len(c.dirs) > cleanupDirLimit {
			fmt.Fprintf(&b, "  ... and %d more\n", len(c.dirs)-cleanupDirLimit)
		}
	}
	fmt.Fprintf(&b, "Space to free: %s", humanize.Bytes(uint64(c.total())))
	return b.String()
}

// remove deletes every planned entry and returns how many were removed.
func (c cleanup) remove() (int, error) {
	var errs []error
	removed := 0
	for _, f := range c.files {
		if err := os.Remove(filepath.Join(c.root, filepath.FromSlash(f.rel))); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	for _, d := range c.dirs {
		if err := os.RemoveAll(filepath.Join(c.root, filepath.FromSlash(d.rel))); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func cleanTempFiles() tools.Spec {
	return tools.Spec{
		Name:        "clean_temp_files",
		Description: "Find temporary files (*.tmp, *.bak, *.swp, *.log, editor backups) and cache directories (__pycache__, .pytest_cache, ...) and delete them. Only lists them unless dry_run is false.",
		Schema: tools.NewSchema().
			String("path", "Directory to clean (default: the working directory).", false).
			Boolean("dry_run", "List what would be deleted without deleting (default: true).", false).
			Default("path", ".").
			Default("dry_run", true).
			Build(),
		SideEffect: protocol.Destructive,
		Preview: func(ctx context.Context, call tools.Call) (string, error) {
			plan, err := planCleanup(ctx, resolve(call.Dir, call.StringArg("path")))
			if err != nil {
				return "", err
			}
			if plan.empty() {
				return "No temporary files found", nil
			}
			if call.BoolArg("dry_run", true) {
				return "Dry run, nothing will be deleted.\n\n" + plan.describe(), nil
			}
			return "Will delete:\n\n" + plan.describe(), nil
		},
		Handler: func(ctx context.Context, call tools.Call) (tools.Result, error) {
			plan, err := planCleanup(ctx, resolve(call.Dir, call.StringArg("path")))
			if err != nil {
				return tools.Result{}, err
			}
			if plan.empty() {
				return tools.Result{Content: "No temporary files found in " + plan.root}, nil
			}
			if call.BoolArg("dry_run", true) {
				return tools.Result{Content: plan.describe() +
					"\n\nDry run: nothing was deleted. Call again with dry_run=false to delete these."}, nil
			}

			removed, err := plan.remove()
			content := fmt.Sprintf("%s\n\nDeleted %d of %d entries.", plan.describe(), removed, len(plan.files)+len(plan.dirs))
			if err != nil {
				content += "\nSome entries could not be deleted:\n" + err.Error()
			}
			return tools.Result{Content: content}, nil
		},
	}
}
