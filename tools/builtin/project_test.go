package builtin_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/terminus/tools/builtin"
)

func TestSearchTodos(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.go", "package a\n// TODO: fix parser\n/* FIXME broken */\n// DEBUGGING only\n")
	write(t, dir, "b.py", "x = 1  # NOTE keep\n")
	write(t, dir, "notes.md", "TODO not code\n")
	write(t, dir, "vendor/v.go", "// TODO vendored\n")
	write(t, dir, "many/c.go", strings.Repeat("// HACK again\n", 7))
	write(t, dir, "empty/readme.md", "nothing\n")
	reg := registry(t, builtin.Options{})

	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "directory",
			path: ".",
			want: "TODO (1):\n  a.go:2 - TODO: fix parser\n\n" +
				"FIXME (1):\n  a.go:3 - FIXME broken\n\n" +
				"HACK (7):\n" +
				"  many/c.go:1 - HACK again\n  many/c.go:2 - HACK again\n  many/c.go:3 - HACK again\n" +
				"  many/c.go:4 - HACK again\n  many/c.go:5 - HACK again\n  ... and 2 more\n\n" +
				"NOTE (1):\n  b.py:1 - NOTE keep\n\n" +
				"Total: 10 items",
		},
		{
			name: "single file",
			path: "a.go",
			want: "TODO (1):\n  a.go:2 - TODO: fix parser\n\nFIXME (1):\n  a.go:3 - FIXME broken\n\nTotal: 2 items",
		},
		{
			name: "none",
			path: "empty",
			want: "No TODOs found in " + filepath.Join(dir, "empty"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := run(t, reg, "search_todos", dir, map[string]any{"path": tt.path})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Content)
		})
	}

	_, err := run(t, reg, "search_todos", dir, map[string]any{"path": "missing"})
	assert.ErrorContains(t, err, "path does not exist")
}

func TestQuickStats_File(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "notes.txt", "hello world\nsecond line")
	write(t, dir, "blob.bin", "a\x00b")
	reg := registry(t, builtin.Options{})

	res, err := run(t, reg, "quick_stats", dir, map[string]any{"path": "notes.txt"})
	require.NoError(t, err)
	assert.Equal(t, "File: notes.txt\nSize: 23 bytes (23 B)\nLines: 2\nWords: 4\nCharacters: 23", res.Content)

	res, err = run(t, reg, "quick_stats", dir, map[string]any{"path": "blob.bin"})
	require.NoError(t, err)
	assert.Equal(t, "File: blob.bin\nSize: 3 bytes (3 B)\n(binary file)", res.Content)
}

func TestQuickStats_Directory(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.go", "0123456789")
	write(t, dir, "b.go", "01234")
	write(t, dir, "c.txt", "x")
	write(t, dir, "sub/Makefile", "")
	write(t, dir, ".git/HEAD", "ref: refs/heads/main")
	reg := registry(t, builtin.Options{})

	res, err := run(t, reg, "quick_stats", dir, map[string]any{})
	require.NoError(t, err)
	want := "Directory: " + dir + "\nFiles: 4\nDirectories: 1\nTotal size: 16 B\n\n" +
		"File types:\n  .go: 2 files\n  (none): 1 file\n  .txt: 1 file\n\n" +
		"Largest files:\n  a.go: 10 B\n  b.go: 5 B\n  c.txt: 1 B\n  sub/Makefile: 0 B"
	assert.Equal(t, want, res.Content)
}

func TestFindByExtension(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, ".gitignore", "# generated\nbuild/\n*.gen.go\n")
	write(t, dir, "main.go", "")
	write(t, dir, "pkg/x.go", "")
	write(t, dir, "build/out.go", "")
	write(t, dir, "y.gen.go", "")
	write(t, dir, "readme.md", "")
	reg := registry(t, builtin.Options{})

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{
			name: "honors gitignore",
			args: map[string]any{"extension": "go"},
			want: "Found 2 files with extension \".go\":\n  main.go\n  pkg/x.go",
		},
		{
			name: "ignores gitignore",
			args: map[string]any{"extension": ".GO", "respect_gitignore": false},
			want: "Found 4 files with extension \".go\":\n  build/out.go\n  main.go\n  pkg/x.go\n  y.gen.go",
		},
		{
			name: "subdirectory relative to working directory",
			args: map[string]any{"extension": ".go", "path": "pkg"},
			want: "Found 1 file with extension \".go\":\n  pkg/x.go",
		},
		{
			name: "none",
			args: map[string]any{"extension": "rs"},
			want: "No files with extension \".rs\" found in " + dir,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := run(t, reg, "find_by_extension", dir, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Content)
		})
	}

	_, err := run(t, reg, "find_by_extension", dir, map[string]any{"extension": "."})
	assert.ErrorContains(t, err, "extension cannot be empty")
}

func TestPackageInfo(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "package.json", `{"name":"web","version":"1.0.0","scripts":{"test":"jest","build":"tsc"},`+
		`"dependencies":{"react":"18"},"devDependencies":{"jest":"29"}}`)
	write(t, dir, "go.mod", "module example.com/demo\n\ngo 1.22\n\nrequire (\n\tgithub.com/a/b v1.0.0\n\tgithub.com/c/d v1.2.0 // indirect\n)\n")
	write(t, dir, "Cargo.toml", "[package]\nname = \"tool\"\nversion = \"0.1.0\"\nedition = \"2021\"\n\n"+
		"[dependencies]\nserde = \"1\"\ntokio = { version = \"1\", features = [\"full\"] }\n")
	write(t, dir, "README.md", "# demo")
	reg := registry(t, builtin.Options{})

	res, err := run(t, reg, "package_info", dir, map[string]any{})
	require.NoError(t, err)
	want := "Node.js project (package.json):\n  Name: web\n  Version: 1.0.0\n  Scripts: build, test\n  Dependencies: 1 (1 dev)\n\n" +
		"Go module (go.mod):\n  Module: example.com/demo\n  Go: 1.22\n  Requirements: 2\n\n" +
		"Rust crate (Cargo.toml):\n  Name: tool\n  Version: 0.1.0\n  Edition: 2021\n  Dependencies: 2\n\n" +
		"Project files: README.md"
	assert.Equal(t, want, res.Content)
}

func TestPackageInfo_Python(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "pyproject.toml", "[tool.poetry]\nname = \"app\"\nversion = \"0.2.0\"\n\n"+
		"[build-system]\nbuild-backend = \"poetry.core.masonry.api\"\n")
	write(t, dir, "requirements.txt", "# pinned\nrequests==2.31\n-r dev.txt\nflask\n")
	reg := registry(t, builtin.Options{})

	res, err := run(t, reg, "package_info", dir, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "Python project (pyproject.toml):\n  Name: app\n  Version: 0.2.0\n  Build system: Poetry\n\n"+
		"Python requirements (requirements.txt):\n  Packages: 2", res.Content)
}

func TestPackageInfo_Errors(t *testing.T) {
	dir := t.TempDir()
	reg := registry(t, builtin.Options{})

	res, err := run(t, reg, "package_info", dir, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "No package manifest files found in "+dir, res.Content)

	write(t, dir, "package.json", "{not json")
	res, err = run(t, reg, "package_info", dir, map[string]any{})
	require.NoError(t, err)
	assert.Contains(t, res.Content, "could not parse package.json")

	_, err = run(t, reg, "package_info", dir, map[string]any{"path": "missing"})
	assert.ErrorContains(t, err, "invalid directory")
}

func TestAnalyzeProjectStructure(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "main.go", "package main")
	write(t, dir, "go.mod", "module demo")
	write(t, dir, "pkg/a.go", "package pkg")
	write(t, dir, "README.md", "# demo")
	write(t, dir, "node_modules/x/index.js", "")
	reg := registry(t, builtin.Options{})

	res, err := run(t, reg, "analyze_project_structure", dir, map[string]any{})
	require.NoError(t, err)
	want := "Project: " + filepath.Base(dir) + "\nOverview: 1 directory, 4 files\n\n" +
		"File types:\n  .go: 2 files\n  .md: 1 file\n  .mod: 1 file\n\n" +
		"Project files: go.mod, README.md"
	assert.Equal(t, want, res.Content)
}

func TestCleanTempFiles(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.tmp", "abc")
	write(t, dir, "notes.txt", "keep")
	write(t, dir, "src/x.bak", "x")
	write(t, dir, "__pycache__/m.pyc", "0123")
	write(t, dir, ".git/x.tmp", "repo")
	write(t, dir, "node_modules/y.log", "dep")
	reg := registry(t, builtin.Options{})

	listing := "Temporary files (2):\n  a.tmp (3 B)\n  src/x.bak (1 B)\n" +
		"Cache directories (1):\n  __pycache__/ (4 B)\nSpace to free: 8 B"

	assert.Equal(t, "Dry run, nothing will be deleted.\n\n"+listing,
		preview(t, reg, "clean_temp_files", dir, map[string]any{}))

	res, err := run(t, reg, "clean_temp_files", dir, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, listing+"\n\nDry run: nothing was deleted. Call again with dry_run=false to delete these.", res.Content)
	assert.FileExists(t, filepath.Join(dir, "a.tmp"))

	assert.Equal(t, "Will delete:\n\n"+listing,
		preview(t, reg, "clean_temp_files", dir, map[string]any{"dry_run": false}))

	res, err = run(t, reg, "clean_temp_files", dir, map[string]any{"dry_run": false})
	require.NoError(t, err)
	assert.Equal(t, listing+"\n\nDeleted 3 of 3 entries.", res.Content)

	for _, gone := range []string{"a.tmp", "src/x.bak", "__pycache__"} {
		_, err := os.Stat(filepath.Join(dir, gone))
		assert.True(t, os.IsNotExist(err), "%s should be deleted", gone)
	}
	for _, kept := range []string{"notes.txt", "src", ".git/x.tmp", "node_modules/y.log"} {
		_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(kept)))
		assert.NoError(t, err, "%s should be kept", kept)
	}

	res, err = run(t, reg, "clean_temp_files", dir, map[string]any{"dry_run": false})
	require.NoError(t, err)
	assert.Equal(t, "No temporary files found in "+dir, res.Content)
}
