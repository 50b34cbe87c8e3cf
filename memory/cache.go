package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
)

// Cache holds every note in memory so the kernel can build the system
// content without I/O. Writes go through to the store first. Load replaces
// the contents wholesale and is what the Watcher calls after files change.
// All methods are safe for concurrent use.
type Cache struct {
	store Store

	mu    sync.RWMutex
	notes map[string][]byte
}

// NewCache creates an empty Cache backed by store.
func NewCache(store Store) *Cache {
	return &Cache{
		store: store,
		notes: make(map[string][]byte),
	}
}

// Load reads every note from the store and replaces the cached set. Keys
// that vanish between listing and loading are skipped.
func (c *Cache) Load(ctx context.Context) error {
	keys, err := c.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list notes: %w", err)
	}

	notes := make(map[string][]byte, len(keys))
	for _, key := range keys {
		entries, err := c.store.Load(ctx, key)
		if errors.Is(err, ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load note %s: %w", key, err)
		}
		notes[key] = entries[0].Value
	}

	c.mu.Lock()
	c.notes = notes
	c.mu.Unlock()
	return nil
}

// Put saves a note. The cache reflects it only once the store accepted it.
func (c *Cache) Put(ctx context.Context, key string, value []byte) error {
	if err := c.store.Save(ctx, Entry{Key: key, Value: value}); err != nil {
		return err
	}

	c.mu.Lock()
	c.notes[key] = slices.Clone(value)
	c.mu.Unlock()
	return nil
}

// Get returns a copy of a note.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	val, ok := c.notes[key]
	if !ok {
		return nil, false
	}
	return slices.Clone(val), true
}

func (c *Cache) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.notes[key]
	return ok
}

// Keys returns all note keys in sorted order.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.notes))
	for key := range c.notes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Entries returns copies of the notes under prefix in key order.
func (c *Cache) Entries(prefix string) []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var entries []Entry
	for key, val := range c.notes {
		if strings.HasPrefix(key, prefix) {
			entries = append(entries, Entry{Key: key, Value: slices.Clone(val)})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})
	return entries
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.notes)
}
