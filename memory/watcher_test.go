package memory_test

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/terminus/memory"
	"github.com/tailored-agentic-units/terminus/observability"
)

func newWatcher(t *testing.T, root string, obs observability.Observer, reloads *atomic.Int32) (*memory.Watcher, *memory.Cache, *memory.Guide) {
	t.Helper()
	notesDir := filepath.Join(root, filepath.FromSlash(memory.DefaultNotesDir))
	cache := memory.NewCache(memory.NewFileStore(notesDir))
	guide := memory.NewGuide(filepath.Join(root, memory.DefaultGuide))

	w, err := memory.NewWatcher(cache, notesDir, guide,
		memory.WithDebounce(20*time.Millisecond),
		memory.WithWatchObserver(obs),
		memory.WithReloadHook(func() { reloads.Add(1) }),
	)
	require.NoError(t, err)
	return w, cache, guide
}

func TestWatcher_ReloadsGuide(t *testing.T) {
	root := t.TempDir()
	var reloads atomic.Int32
	w, _, guide := newWatcher(t, root, observability.NoOpObserver{}, &reloads)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	writeTestFile(t, root, memory.DefaultGuide, "always run gofmt")

	require.Eventually(t, func() bool {
		return guide.Content() == "always run gofmt"
	}, 5*time.Second, 20*time.Millisecond)
	assert.Positive(t, reloads.Load())
}

func TestWatcher_RefreshesNotes(t *testing.T) {
	root := t.TempDir()
	obs := &observability.CaptureObserver{}
	var reloads atomic.Int32
	w, cache, _ := newWatcher(t, root, obs, &reloads)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	notes := filepath.Join(root, filepath.FromSlash(memory.DefaultNotesDir))
	writeTestFile(t, notes, "build.md", "use make")

	require.Eventually(t, func() bool {
		val, ok := cache.Get("build.md")
		return ok && string(val) == "use make"
	}, 5*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(obs.OfType(memory.EventReload)) > 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	var reloads atomic.Int32
	w, _, _ := newWatcher(t, t.TempDir(), observability.NoOpObserver{}, &reloads)
	w.Stop()
	assert.Zero(t, reloads.Load())
}

func TestWatcher_StartIsIdempotent(t *testing.T) {
	var reloads atomic.Int32
	w, _, _ := newWatcher(t, t.TempDir(), observability.NoOpObserver{}, &reloads)

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
}
