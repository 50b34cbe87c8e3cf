package memory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tailored-agentic-units/terminus/observability"
)

// EventReload is emitted after the watcher refreshes the guide or notes.
const EventReload observability.EventType = "memory.reload"

const defaultDebounce = 100 * time.Millisecond

// Watcher keeps a Cache and Guide in sync with the filesystem. Bursts of
// events are coalesced into one reload per debounce interval.
type Watcher struct {
	watcher  *fsnotify.Watcher
	cache    *Cache
	guide    *Guide
	notesDir string
	observer observability.Observer
	debounce time.Duration

	mu           sync.Mutex
	running      bool
	notesDirty   bool
	guideDirty   bool
	stopCh       chan struct{}
	doneCh       chan struct{}
	onReloadHook func()
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatchObserver sets the observer notified on reload.
func WithWatchObserver(o observability.Observer) WatcherOption {
	return func(w *Watcher) { w.observer = o }
}

// WithDebounce sets the coalescing interval.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithReloadHook registers a function called after every reload.
func WithReloadHook(fn func()) WatcherOption {
	return func(w *Watcher) { w.onReloadHook = fn }
}

// NewWatcher creates a Watcher for the notes directory backing cache and
// for guide. Either may be nil.
func NewWatcher(cache *Cache, notesDir string, guide *Guide, opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fw,
		cache:    cache,
		guide:    guide,
		notesDir: filepath.Clean(notesDir),
		observer: observability.NoOpObserver{},
		debounce: defaultDebounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start begins watching. It is non-blocking and idempotent. The notes
// directory is created if missing so that notes added later are seen.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if w.cache != nil && w.notesDir != "." {
		if err := os.MkdirAll(w.notesDir, 0o755); err == nil {
			if err := w.watcher.Add(w.notesDir); err != nil {
				w.report(ctx, "watch notes", err)
			}
		}
	}
	if w.guide != nil && w.guide.Path() != "" {
		// Editors replace files on save, so watch the directory.
		if err := w.watcher.Add(filepath.Dir(w.guide.Path())); err != nil {
			w.report(ctx, "watch guide", err)
		}
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.report(ctx, "watch", err)
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	name := filepath.Clean(event.Name)
	if strings.HasPrefix(filepath.Base(name), ".") {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case w.guide != nil && name == filepath.Clean(w.guide.Path()):
		w.guideDirty = true
	case w.cache != nil && strings.HasPrefix(name, w.notesDir+string(filepath.Separator)):
		w.notesDirty = true
	}
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	notes, guide := w.notesDirty, w.guideDirty
	w.notesDirty, w.guideDirty = false, false
	w.mu.Unlock()

	if !notes && !guide {
		return
	}

	data := map[string]any{"notes": notes, "guide": guide}
	if guide {
		if err := w.guide.Load(); err != nil {
			w.report(ctx, "reload guide", err)
		}
	}
	if notes {
		if err := w.cache.Load(ctx); err != nil {
			w.report(ctx, "reload notes", err)
		}
		data["keys"] = w.cache.Len()
	}

	observability.Emit(ctx, w.observer, observability.Event{
		Type:   EventReload,
		Level:  observability.LevelVerbose,
		Source: "memory.Watcher",
		Data:   data,
	})
	if w.onReloadHook != nil {
		w.onReloadHook()
	}
}

func (w *Watcher) report(ctx context.Context, op string, err error) {
	observability.Emit(ctx, w.observer, observability.Event{
		Type:   EventReload,
		Level:  observability.LevelWarning,
		Source: "memory.Watcher",
		Data:   map[string]any{"op": op, "error": err.Error()},
	})
}
