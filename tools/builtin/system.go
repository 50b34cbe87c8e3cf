package builtin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"syscall"
	"text/template"

	"github.com/dustin/go-humanize"

	"github.com/tailored-agentic-units/terminus/core/protocol"
	"github.com/tailored-agentic-units/terminus/tools"
)

func systemInfo() tools.Spec {
	return tools.Spec{
		Name:        "system_info",
		Description: "Describe the host: operating system, architecture, working directory, disk usage, and key environment variables.",
		SideEffect:  protocol.ReadOnly,
		Handler: func(_ context.Context, call tools.Call) (tools.Result, error) {
			var b strings.Builder
			b.WriteString("System Information\n\n")
			fmt.Fprintf(&b, "Operating System: %s\n", runtime.GOOS)
			fmt.Fprintf(&b, "Architecture: %s\n", runtime.GOARCH)
			fmt.Fprintf(&b, "CPUs: %d\n", runtime.NumCPU())
			if host, err := os.Hostname(); err == nil {
				fmt.Fprintf(&b, "Hostname: %s\n", host)
			}
			fmt.Fprintf(&b, "\nCurrent Directory: %s\n", call.Dir)

			var fs syscall.Statfs_t
			if err := syscall.Statfs(call.Dir, &fs); err == nil {
				total := fs.Blocks * uint64(fs.Bsize)
				free := fs.Bavail * uint64(fs.Bsize)
				used := total - free
				b.WriteString("\nDisk Usage:\n")
				fmt.Fprintf(&b, "   Total: %s\n", humanize.Bytes(total))
				if total > 0 {
					fmt.Fprintf(&b, "   Used: %s (%.1f%%)\n", humanize.Bytes(used), float64(used)/float64(total)*100)
					fmt.Fprintf(&b, "   Free: %s (%.1f%%)\n", humanize.Bytes(free), float64(free)/float64(total)*100)
				}
			}

			var env []string
			for _, name := range []string{"PATH", "HOME", "USER", "SHELL", "TERM"} {
				value := os.Getenv(name)
				if value == "" {
					continue
				}
				if name == "PATH" {
					value = fmt.Sprintf("%d paths", len(filepath.SplitList(value)))
				}
				env = append(env, fmt.Sprintf("   %s: %s", name, value))
			}
			if len(env) > 0 {
				b.WriteString("\nEnvironment Variables:\n")
				b.WriteString(strings.Join(env, "\n"))
			}
			return tools.Result{Content: strings.TrimRight(b.String(), "\n")}, nil
		},
	}
}

type projectTemplate struct {
	files map[string]string
	dirs  []string
	next  []string
}

var projectTemplates = map[string]projectTemplate{
	"python": {
		files: map[string]string{
			"main.py":          "\"\"\"Main module for {{.Name}}.\"\"\"\n\n\ndef main():\n    \"\"\"Entry point.\"\"\"\n    print(\"Hello, {{.Name}}!\")\n\n\nif __name__ == \"__main__\":\n    main()\n",
			"requirements.txt": "# Add your dependencies here\n",
			"README.md":        "# {{.Name}}\n\nA Python project.\n\n## Installation\n\n```bash\npip install -r requirements.txt\n```\n\n## Usage\n\n```bash\npython main.py\n```\n",
			".gitignore":       "__pycache__/\n*.py[cod]\nbuild/\ndist/\n*.egg-info/\n.pytest_cache/\n.coverage\nhtmlcov/\n.env\n.venv\nvenv/\n.vscode/\n.idea/\n",
		},
		dirs: []string{"src", "tests", "docs"},
		next: []string{"python main.py"},
	},
	"web": {
		files: map[string]string{
			"index.html": "<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n    <meta charset=\"UTF-8\">\n    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n    <title>{{.Name}}</title>\n    <link rel=\"stylesheet\" href=\"style.css\">\n</head>\n<body>\n    <h1>Welcome to {{.Name}}</h1>\n    <script src=\"script.js\"></script>\n</body>\n</html>\n",
			"style.css":  "/* Styles for {{.Name}} */\n\nbody {\n    font-family: Arial, sans-serif;\n    margin: 0;\n    padding: 20px;\n}\n\nh1 {\n    color: #333;\n    text-align: center;\n}\n",
			"script.js":  "// JavaScript for {{.Name}}\n\nconsole.log(\"Welcome to {{.Name}}!\");\n",
			"README.md":  "# {{.Name}}\n\nA web project.\n\n## Getting Started\n\nOpen `index.html` in your browser.\n",
		},
		dirs: []string{"assets", "css", "js", "images"},
		next: []string{"open index.html in a browser"},
	},
	"node": {
		files: map[string]string{
			"package.json": "{\n  \"name\": \"{{.Name}}\",\n  \"version\": \"1.0.0\",\n  \"description\": \"A Node.js project\",\n  \"main\": \"index.js\",\n  \"scripts\": {\n    \"start\": \"node index.js\"\n  },\n  \"license\": \"ISC\"\n}\n",
			"index.js":     "// Main entry point for {{.Name}}\n\nconsole.log(\"Hello from {{.Name}}!\");\n",
			"README.md":    "# {{.Name}}\n\nA Node.js project.\n\n## Installation\n\n```bash\nnpm install\n```\n\n## Usage\n\n```bash\nnpm start\n```\n",
			".gitignore":   "node_modules/\nnpm-debug.log*\ncoverage/\n.env\n.env.local\n",
		},
		dirs: []string{"src", "test", "docs"},
		next: []string{"npm install", "npm start"},
	},
}

func templateNames() []string {
	names := make([]string, 0, len(projectTemplates))
	for name := range projectTemplates {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func createProjectTemplate() tools.Spec {
	return tools.Spec{
		Name:        "create_project_template",
		Description: "Create a new project directory from a starter template.",
		Schema: tools.NewSchema().
			String("name", "Project directory name.", true).
			Enum("template_type", "Template to use (default: python).", templateNames(), false).
			Default("template_type", "python").
			Build(),
		SideEffect: protocol.Mutating,
		Preview: func(_ context.Context, call tools.Call) (string, error) {
			tmpl, ok := projectTemplates[call.StringArg("template_type")]
			if !ok {
				return "", fmt.Errorf("unknown template type %q", call.StringArg("template_type"))
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Create %s project in %s\n", call.StringArg("template_type"), resolve(call.Dir, call.StringArg("name")))
			for _, f := range sortedKeys(tmpl.files) {
				fmt.Fprintf(&b, "\n  %s", f)
			}
			for _, d := range tmpl.dirs {
				fmt.Fprintf(&b, "\n  %s/", d)
			}
			return b.String(), nil
		},
		Handler: func(_ context.Context, call tools.Call) (tools.Result, error) {
			name := call.StringArg("name")
			kind := call.StringArg("template_type")
			tmpl, ok := projectTemplates[kind]
			if !ok {
				return tools.Result{}, fmt.Errorf("unknown template type %q (available: %s)", kind, strings.Join(templateNames(), ", "))
			}

			root := resolve(call.Dir, name)
			if _, err := os.Stat(root); err == nil {
				return tools.Result{}, fmt.Errorf("directory already exists: %s", name)
			} else if !errors.Is(err, os.ErrNotExist) {
				return tools.Result{}, err
			}
			if err := os.MkdirAll(root, 0o755); err != nil {
				return tools.Result{}, fmt.Errorf("failed to create project directory: %w", err)
			}

			for _, d := range tmpl.dirs {
				if err := os.Mkdir(filepath.Join(root, d), 0o755); err != nil {
					return tools.Result{}, fmt.Errorf("failed to create %s: %w", d, err)
				}
			}

			data := struct{ Name string }{Name: filepath.Base(root)}
			files := sortedKeys(tmpl.files)
			for _, f := range files {
				t, err := template.New(f).Parse(tmpl.files[f])
				if err != nil {
					return tools.Result{}, err
				}
				out, err := os.Create(filepath.Join(root, f))
				if err != nil {
					return tools.Result{}, fmt.Errorf("failed to create %s: %w", f, err)
				}
				err = t.Execute(out, data)
				if cerr := out.Close(); err == nil {
					err = cerr
				}
				if err != nil {
					return tools.Result{}, fmt.Errorf("failed to write %s: %w", f, err)
				}
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Created %s project: %s\n\nCreated Files:\n", kind, root)
			for _, f := range files {
				fmt.Fprintf(&b, "   %s\n", f)
			}
			b.WriteString("\nCreated Directories:\n")
			for _, d := range tmpl.dirs {
				fmt.Fprintf(&b, "   %s/\n", d)
			}
			fmt.Fprintf(&b, "\nNext steps:\n   cd %s", name)
			for _, step := range tmpl.next {
				fmt.Fprintf(&b, "\n   %s", step)
			}
			return tools.Result{Content: b.String()}, nil
		},
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
