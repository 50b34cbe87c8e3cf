package builtin

import (
	"bufio"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/tailored-agentic-units/terminus/core/protocol"
	"github.com/tailored-agentic-units/terminus/tools"
)

const noExtension = "(none)"

// extensionOf returns the lower-cased extension of rel, or noExtension.
func extensionOf(rel string) string {
	if ext := strings.ToLower(filepath.Ext(baseName(rel))); ext != "" {
		return ext
	}
	return noExtension
}

type count struct {
	key string
	n   int
}

// ranked orders counts by frequency, then key.
func ranked(m map[string]int) []count {
	out := make([]count, 0, len(m))
	for k, n := range m {
		out = append(out, count{k, n})
	}
	slices.SortFunc(out, func(a, b count) int {
		if c := cmp.Compare(b.n, a.n); c != 0 {
			return c
		}
		return cmp.Compare(a.key, b.key)
	})
	return out
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return humanize.Comma(int64(n)) + " " + many
}

var todoKeywords = []string{"TODO", "FIXME", "HACK", "BUG", "NOTE"}

var todoPattern = regexp.MustCompile(`\b(TODO|FIXME|HACK|BUG|NOTE)\b`)

var codeExtensions = []string{
	".go", ".py", ".js", ".ts", ".jsx", ".tsx", ".java", ".kt", ".swift", ".dart",
	".c", ".h", ".cpp", ".hpp", ".cs", ".php", ".rb", ".rs", ".scala", ".clj",
	".html", ".css", ".scss", ".sass", ".less", ".vue", ".sh", ".sql", ".lua",
}

const todosPerKeyword = 5

type todo struct {
	rel  string
	line int
	text string
}

func searchTodos() tools.Spec {
	return tools.Spec{
		Name:        "search_todos",
		Description: "Find TODO, FIXME, HACK, BUG, and NOTE markers in source files, grouped by marker.",
		Schema: tools.NewSchema().
			String("path", "File or directory to search (default: the working directory).", false).
			Default("path", ".").
			Build(),
		SideEffect: protocol.ReadOnly,
		Handler: func(ctx context.Context, call tools.Call) (tools.Result, error) {
			root := resolve(call.Dir, call.StringArg("path"))
			info, err := os.Stat(root)
			if err != nil {
				return tools.Result{}, notFound(root)
			}

			base, files := filepath.Dir(root), []string{filepath.Base(root)}
			if info.IsDir() {
				base, files = root, nil
				err = walk(ctx, root, 0, func(n node) {
					if !n.dir && slices.Contains(codeExtensions, extensionOf(n.rel)) {
						files = append(files, n.rel)
					}
				})
				if err != nil {
					return tools.Result{}, err
				}
				slices.Sort(files)
			}

			found := make(map[string][]todo)
			total := 0
			for _, rel := range files {
				if err := ctx.Err(); err != nil {
					return tools.Result{}, err
				}
				for _, t := range scanTodos(filepath.Join(base, filepath.FromSlash(rel)), rel) {
					keyword := todoPattern.FindString(t.text)
					found[keyword] = append(found[keyword], t)
					total++
				}
			}

			if total == 0 {
				return tools.Result{Content: "No TODOs found in " + root}, nil
			}

			var b strings.Builder
			for _, keyword := range todoKeywords {
				items := found[keyword]
				if len(items) == 0 {
					continue
				}
				fmt.Fprintf(&b, "%s (%d):\n", keyword, len(items))
				for _, t := range items[:min(len(items), todosPerKeyword)] {
					fmt.Fprintf(&b, "  %s:%d - %s\n", t.rel, t.line, truncate(t.text, 80))
				}
				if len(items) > todosPerKeyword {
					fmt.Fprintf(&b, "  ... and %d more\n", len(items)-todosPerKeyword)
				}
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "Total: %s", plural(total, "item", "items"))
			return tools.Result{Content: b.String()}, nil
		},
	}
}

// commentMarks are stripped from the text that follows a marker.
var commentMarks = strings.NewReplacer("*/", "", "-->", "", `"""`, "", "'''", "")

// scanTodos returns the marked lines of one file, starting each text at
// the first marker.
func scanTodos(file, rel string) []todo {
	f, err := os.Open(file)
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []todo
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for line := 1; scanner.Scan(); line++ {
		text := scanner.Text()
		loc := todoPattern.FindStringIndex(text)
		if loc == nil {
			continue
		}
		out = append(out, todo{
			rel:  rel,
			line: line,
			text: strings.TrimSpace(commentMarks.Replace(text[loc[0]:])),
		})
	}
	return out
}

func quickStats() tools.Spec {
	return tools.Spec{
		Name:        "quick_stats",
		Description: "Summarize a file (size, lines, words) or a directory (counts, total size, file types, largest files).",
		Schema: tools.NewSchema().
			String("path", "File or directory to summarize (default: the working directory).", false).
			Default("path", ".").
			Build(),
		SideEffect: protocol.ReadOnly,
		Handler: func(ctx context.Context, call tools.Call) (tools.Result, error) {
			target := resolve(call.Dir, call.StringArg("path"))
			info, err := os.Stat(target)
			if err != nil {
				return tools.Result{}, notFound(target)
			}
			if !info.IsDir() {
				return fileStats(target, info.Size())
			}
			return dirStats(ctx, target)
		},
	}
}

func fileStats(path string, size int64) (tools.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tools.Result{}, fmt.Errorf("error reading file %s: %w", path, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", filepath.Base(path))
	fmt.Fprintf(&b, "Size: %s bytes (%s)\n", humanize.Comma(size), humanize.Bytes(uint64(size)))
	if !utf8.Valid(data) || slices.Contains(data, 0) {
		b.WriteString("(binary file)")
		return tools.Result{Content: b.String()}, nil
	}
	text := string(data)
	fmt.Fprintf(&b, "Lines: %s\n", humanize.Comma(int64(strings.Count(text, "\n")+1)))
	fmt.Fprintf(&b, "Words: %s\n", humanize.Comma(int64(len(strings.Fields(text)))))
	fmt.Fprintf(&b, "Characters: %s", humanize.Comma(int64(utf8.RuneCountInString(text))))
	return tools.Result{Content: b.String()}, nil
}

func dirStats(ctx context.Context, root string) (tools.Result, error) {
	var (
		files, dirs int
		total       int64
		types       = make(map[string]int)
		largest     []node
	)
	err := walk(ctx, root, 0, func(n node) {
		if n.dir {
			dirs++
			return
		}
		files++
		total += n.size
		types[extensionOf(n.rel)]++
		largest = append(largest, n)
	})
	if err != nil {
		return tools.Result{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Directory: %s\n", root)
	fmt.Fprintf(&b, "Files: %s\n", humanize.Comma(int64(files)))
	fmt.Fprintf(&b, "Directories: %s\n", humanize.Comma(int64(dirs)))
	fmt.Fprintf(&b, "Total size: %s", humanize.Bytes(uint64(total)))

	if len(types) > 0 {
		b.WriteString("\n\nFile types:")
		for _, c := range ranked(types)[:min(len(types), 10)] {
			fmt.Fprintf(&b, "\n  %s: %s", c.key, plural(c.n, "file", "files"))
		}
	}

	if len(largest) > 0 {
		slices.SortFunc(largest, func(a, b node) int {
			if c := cmp.Compare(b.size, a.size); c != 0 {
				return c
			}
			return cmp.Compare(a.rel, b.rel)
		})
		b.WriteString("\n\nLargest files:")
		for _, n := range largest[:min(len(largest), 5)] {
			fmt.Fprintf(&b, "\n  %s: %s", n.rel, humanize.Bytes(uint64(n.size)))
		}
	}
	return tools.Result{Content: b.String()}, nil
}

// ignoreMatcher reads the .gitignore at root. It returns nil when there is
// none.
func ignoreMatcher(root string) gitignore.Matcher {
	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return gitignore.NewMatcher(patterns)
}

func findByExtension() tools.Spec {
	return tools.Spec{
		Name:        "find_by_extension",
		Description: "Recursively list files with an extension, honoring the directory's .gitignore by default.",
		Schema: tools.NewSchema().
			String("extension", "File extension, with or without the leading dot, e.g. .go.", true).
			String("path", "Directory to search (default: the working directory).", false).
			Boolean("respect_gitignore", "Skip files matched by .gitignore (default: true).", false).
			Default("path", ".").
			Default("respect_gitignore", true).
			Build(),
		SideEffect: protocol.ReadOnly,
		Handler: func(ctx context.Context, call tools.Call) (tools.Result, error) {
			ext := strings.ToLower(strings.TrimSpace(call.StringArg("extension")))
			if ext == "" || ext == "." {
				return tools.Result{}, errors.New("extension cannot be empty")
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}

			root := resolve(call.Dir, call.StringArg("path"))
			var ignore gitignore.Matcher
			if call.BoolArg("respect_gitignore", true) {
				ignore = ignoreMatcher(root)
			}

			var found []string
			err := walk(ctx, root, 0, func(n node) {
				if n.dir || extensionOf(n.rel) != ext {
					return
				}
				if ignore != nil && ignore.Match(strings.Split(n.rel, "/"), false) {
					return
				}
				found = append(found, displayPath(call.Dir, filepath.Join(root, filepath.FromSlash(n.rel))))
			})
			if err != nil {
				return tools.Result{}, err
			}

			if len(found) == 0 {
				return tools.Result{Content: fmt.Sprintf("No files with extension %q found in %s", ext, root)}, nil
			}
			slices.Sort(found)
			return tools.Result{Content: fmt.Sprintf("Found %s with extension %q:\n  %s",
				plural(len(found), "file", "files"), ext, strings.Join(found, "\n  "))}, nil
		},
	}
}

// displayPath shows path relative to the working directory when it lies
// beneath it.
func displayPath(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.ToSlash(rel)
}

var projectFiles = []string{
	"README.md", "README.txt", "LICENSE", "Makefile", "Dockerfile",
	"docker-compose.yml", ".gitignore",
}

func existing(dir string, names []string) []string {
	var out []string
	for _, name := range names {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			out = append(out, name)
		}
	}
	return out
}

func packageInfo() tools.Spec {
	return tools.Spec{
		Name:        "package_info",
		Description: "Describe the project from its manifests: package.json, go.mod, Cargo.toml, pyproject.toml, requirements.txt, composer.json, setup.py, and Gemfile.",
		Schema: tools.NewSchema().
			String("path", "Project directory (default: the working directory).", false).
			Default("path", ".").
			Build(),
		SideEffect: protocol.ReadOnly,
		Handler: func(_ context.Context, call tools.Call) (tools.Result, error) {
			dir := resolve(call.Dir, call.StringArg("path"))
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				return tools.Result{}, fmt.Errorf("invalid directory: %s", dir)
			}

			var sections []string
			for _, m := range manifests {
				data, err := os.ReadFile(filepath.Join(dir, m.file))
				if err != nil {
					continue
				}
				lines, err := m.describe(data)
				if err != nil {
					lines = []string{fmt.Sprintf("could not parse %s: %v", m.file, err)}
				}
				sections = append(sections, fmt.Sprintf("%s (%s):\n  %s", m.kind, m.file, strings.Join(lines, "\n  ")))
			}
			if found := existing(dir, projectFiles); len(found) > 0 {
				sections = append(sections, "Project files: "+strings.Join(found, ", "))
			}

			if len(sections) == 0 {
				return tools.Result{Content: "No package manifest files found in " + dir}, nil
			}
			return tools.Result{Content: strings.Join(sections, "\n\n")}, nil
		},
	}
}

type manifest struct {
	file     string
	kind     string
	describe func(data []byte) ([]string, error)
}

var manifests = []manifest{
	{file: "package.json", kind: "Node.js project", describe: describePackageJSON},
	{file: "go.mod", kind: "Go module", describe: describeGoMod},
	{file: "Cargo.toml", kind: "Rust crate", describe: describeCargo},
	{file: "pyproject.toml", kind: "Python project", describe: describePyproject},
	{file: "setup.py", kind: "Python package", describe: func([]byte) ([]string, error) {
		return []string{"legacy setuptools package"}, nil
	}},
	{file: "requirements.txt", kind: "Python requirements", describe: describeRequirements},
	{file: "composer.json", kind: "PHP project", describe: describeComposer},
	{file: "Gemfile", kind: "Ruby application", describe: describeGemfile},
}

func field(name, value string) string {
	if value == "" {
		value = "unknown"
	}
	return name + ": " + value
}

func describePackageJSON(data []byte) ([]string, error) {
	var pkg struct {
		Name            string            `json:"name"`
		Version         string            `json:"version"`
		Description     string            `json:"description"`
		Scripts         map[string]string `json:"scripts"`
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	lines := []string{field("Name", pkg.Name), field("Version", pkg.Version)}
	if pkg.Description != "" {
		lines = append(lines, field("Description", pkg.Description))
	}
	if len(pkg.Scripts) > 0 {
		lines = append(lines, field("Scripts", strings.Join(slices.Sorted(maps.Keys(pkg.Scripts)), ", ")))
	}
	lines = append(lines, fmt.Sprintf("Dependencies: %d (%d dev)", len(pkg.Dependencies), len(pkg.DevDependencies)))
	return lines, nil
}

func describeComposer(data []byte) ([]string, error) {
	var pkg struct {
		Name        string            `json:"name"`
		Description string            `json:"description"`
		Require     map[string]string `json:"require"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	return []string{field("Name", pkg.Name), fmt.Sprintf("Dependencies: %d", len(pkg.Require))}, nil
}

func describeCargo(data []byte) ([]string, error) {
	var crate struct {
		Package struct {
			Name    string `toml:"name"`
			Version string `toml:"version"`
			Edition string `toml:"edition"`
		} `toml:"package"`
		Dependencies map[string]any `toml:"dependencies"`
	}
	if err := toml.Unmarshal(data, &crate); err != nil {
		return nil, err
	}
	lines := []string{field("Name", crate.Package.Name), field("Version", crate.Package.Version)}
	if crate.Package.Edition != "" {
		lines = append(lines, field("Edition", crate.Package.Edition))
	}
	return append(lines, fmt.Sprintf("Dependencies: %d", len(crate.Dependencies))), nil
}

func describePyproject(data []byte) ([]string, error) {
	var py struct {
		Project struct {
			Name         string   `toml:"name"`
			Version      string   `toml:"version"`
			Description  string   `toml:"description"`
			Dependencies []string `toml:"dependencies"`
		} `toml:"project"`
		Tool struct {
			Poetry *struct {
				Name    string `toml:"name"`
				Version string `toml:"version"`
			} `toml:"poetry"`
		} `toml:"tool"`
		BuildSystem struct {
			Backend string `toml:"build-backend"`
		} `toml:"build-system"`
	}
	if err := toml.Unmarshal(data, &py); err != nil {
		return nil, err
	}

	name, version := py.Project.Name, py.Project.Version
	if p := py.Tool.Poetry; p != nil && name == "" {
		name, version = p.Name, p.Version
	}
	lines := []string{field("Name", name), field("Version", version)}
	if py.Project.Description != "" {
		lines = append(lines, field("Description", py.Project.Description))
	}
	switch {
	case py.Tool.Poetry != nil:
		lines = append(lines, "Build system: Poetry")
	case py.BuildSystem.Backend != "":
		lines = append(lines, field("Build system", py.BuildSystem.Backend))
	}
	if n := len(py.Project.Dependencies); n > 0 {
		lines = append(lines, fmt.Sprintf("Dependencies: %d", n))
	}
	return lines, nil
}

func describeGoMod(data []byte) ([]string, error) {
	var module, version string
	requires := 0
	inRequire := false
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if i := strings.Index(line, "//"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		switch {
		case inRequire && line == ")":
			inRequire = false
		case inRequire && line != "":
			requires++
		case strings.HasPrefix(line, "module "):
			module = strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, "module ")), `"`)
		case strings.HasPrefix(line, "go "):
			version = strings.TrimSpace(strings.TrimPrefix(line, "go "))
		case line == "require (":
			inRequire = true
		case strings.HasPrefix(line, "require "):
			requires++
		}
	}
	if module == "" {
		return nil, errors.New("no module directive")
	}
	return []string{field("Module", module), field("Go", version), fmt.Sprintf("Requirements: %d", requires)}, nil
}

func describeRequirements(data []byte) ([]string, error) {
	n := 0
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") && !strings.HasPrefix(line, "-") {
			n++
		}
	}
	return []string{fmt.Sprintf("Packages: %d", n)}, nil
}

func describeGemfile(data []byte) ([]string, error) {
	n := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "gem ") {
			n++
		}
	}
	return []string{fmt.Sprintf("Gems: %d", n)}, nil
}

func analyzeProjectStructure() tools.Spec {
	return tools.Spec{
		Name:        "analyze_project_structure",
		Description: "Give an overview of a project: directory and file counts, the most common file types, and well-known project files.",
		Schema: tools.NewSchema().
			String("path", "Project directory (default: the working directory).", false).
			Default("path", ".").
			Build(),
		SideEffect: protocol.ReadOnly,
		Handler: func(ctx context.Context, call tools.Call) (tools.Result, error) {
			root := resolve(call.Dir, call.StringArg("path"))

			var files, dirs int
			types := make(map[string]int)
			err := walk(ctx, root, 0, func(n node) {
				if n.dir {
					dirs++
					return
				}
				files++
				types[extensionOf(n.rel)]++
			})
			if err != nil {
				return tools.Result{}, err
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Project: %s\n", filepath.Base(root))
			fmt.Fprintf(&b, "Overview: %s, %s", plural(dirs, "directory", "directories"), plural(files, "file", "files"))

			if len(types) > 0 {
				b.WriteString("\n\nFile types:")
				all := ranked(types)
				for _, c := range all[:min(len(all), 15)] {
					fmt.Fprintf(&b, "\n  %s: %s", c.key, plural(c.n, "file", "files"))
				}
				if len(all) > 15 {
					fmt.Fprintf(&b, "\n  ... and %d more types", len(all)-15)
				}
			}

			var known []string
			for _, m := range manifests {
				known = append(known, m.file)
			}
			if found := existing(root, append(known, projectFiles...)); len(found) > 0 {
				b.WriteString("\n\nProject files: " + strings.Join(found, ", "))
			}
			return tools.Result{Content: b.String()}, nil
		},
	}
}
