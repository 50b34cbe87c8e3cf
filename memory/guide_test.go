package memory_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tailored-agentic-units/terminus/memory"
)

func TestGuide_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, memory.DefaultGuide)
	writeTestFile(t, dir, memory.DefaultGuide, "# Project\nUse make.")

	g := memory.NewGuide(path)
	if g.Content() != "" {
		t.Errorf("Content() before Load = %q, want empty", g.Content())
	}
	if err := g.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if g.Content() != "# Project\nUse make." {
		t.Errorf("Content() = %q", g.Content())
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := g.Load(); err != nil {
		t.Fatalf("Load() after removal error = %v", err)
	}
	if g.Content() != "" {
		t.Errorf("Content() after removal = %q, want empty", g.Content())
	}
}

func TestGuide_EmptyPath(t *testing.T) {
	g := memory.NewGuide("")
	if err := g.Load(); err != nil {
		t.Errorf("Load() error = %v, want nil", err)
	}
}
