// Package memory holds the project knowledge terminus folds into the system
// content on every round: the project guide file and a directory of notes
// the model can add to with the remember tool.
//
// Notes live behind a Store keyed by /-separated relative paths. A Cache
// gives the kernel I/O-free reads and is refreshed by a Watcher when files
// change on disk.
package memory

import "context"

// Entry is one note. Keys are /-separated relative paths such as
// "build.md" or "decisions/2024-storage.md".
type Entry struct {
	Key   string
	Value []byte
}

// Store translates between external storage and the note namespace.
// Implementations are stateless; they perform I/O on each call.
type Store interface {
	// List returns all available keys in sorted order.
	List(ctx context.Context) ([]string, error)
	// Load retrieves entries for the specified keys.
	Load(ctx context.Context, keys ...string) ([]Entry, error)
	// Save persists entries, creating or overwriting as needed.
	Save(ctx context.Context, entries ...Entry) error
	// Delete removes entries. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}
