// Package builtin provides the tools terminus offers the model out of the
// box: file reading and editing, directory navigation, search, shell
// execution, git, and a handful of informational helpers.
//
// Every handler resolves relative paths against the working directory
// carried on the call and never touches the session. Navigation is
// requested through tools.Effects.
package builtin

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/tailored-agentic-units/terminus/memory"
	"github.com/tailored-agentic-units/terminus/tools"
)

const defaultCommandTimeout = 30 * time.Second

// Options configures the built-in tool set.
type Options struct {
	// CommandTimeout bounds every shell command. Zero selects 30s.
	CommandTimeout time.Duration
	// Shell is the interpreter used for command strings. Empty selects sh.
	Shell string
	// Notes backs the remember tool. When nil the tool is not registered.
	Notes *memory.Cache
	// Extensions are command tools declared in configuration.
	Extensions []tools.Extension
}

func (o Options) timeout() time.Duration {
	if o.CommandTimeout > 0 {
		return o.CommandTimeout
	}
	return defaultCommandTimeout
}

func (o Options) shell() string {
	if o.Shell != "" {
		return o.Shell
	}
	return "sh"
}

// Register adds every built-in tool to reg, followed by the configured
// extension tools. It stops at the first registration error.
func Register(reg *tools.Registry, opts Options) error {
	specs := []tools.Spec{
		readFile(),
		writeFile(),
		updateFile(),
		listDirectory(),
		find(),
		grep(),
		runCommand(opts),
		runInDirectory(opts),
		changeDirectory(),
		getCurrentDirectory(),
		gitStatus(),
		gitAdd(),
		gitCommit(),
		quickCommit(),
		systemInfo(),
		findLargeFiles(),
		quickStats(),
		findByExtension(),
		searchTodos(),
		cleanTempFiles(),
		packageInfo(),
		analyzeProjectStructure(),
		createProjectTemplate(),
	}
	if opts.Notes != nil {
		specs = append(specs, remember(opts.Notes))
	}

	for _, spec := range specs {
		if err := reg.Register(spec); err != nil {
			return err
		}
	}

	for _, ext := range opts.Extensions {
		spec, err := extension(ext, opts)
		if err != nil {
			return err
		}
		if err := reg.Register(spec); err != nil {
			return err
		}
	}
	return nil
}

// resolve makes path absolute against dir.
func resolve(dir, path string) string {
	if path == "" {
		path = "."
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(dir, path)
}

// excludedDirs are skipped by every tree walk.
var excludedDirs = []string{
	".git", ".svn", ".hg", ".bzr",
	"node_modules", "bower_components", "vendor",
	"__pycache__", ".pytest_cache", ".mypy_cache", ".ruff_cache",
	"venv", ".venv", "virtualenv", ".eggs", ".tox",
	"dist", "target", "_build", "_site",
	".idea", ".vscode", ".vs",
	"htmlcov", ".nyc_output",
	".next", ".nuxt", ".cache", ".parcel-cache", ".turbo",
	".sass-cache", ".terraform", ".serverless",
}

func excluded(name string) bool {
	return slices.Contains(excludedDirs, name) || strings.HasSuffix(name, ".egg-info")
}

var binaryExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".bmp", ".ico", ".webp",
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".zip", ".tar", ".gz", ".bz2", ".7z", ".rar", ".jar", ".war",
	".mp3", ".mp4", ".avi", ".mov", ".wav", ".flac", ".mkv",
	".exe", ".dll", ".so", ".dylib",
	".db", ".sqlite", ".sqlite3", ".dat", ".bin",
	".pyc", ".pyo", ".class", ".o", ".a", ".lib",
}

func binary(name string) bool {
	return slices.Contains(binaryExtensions, strings.ToLower(filepath.Ext(name)))
}

func notFound(path string) error {
	return fmt.Errorf("path does not exist: %s", path)
}
