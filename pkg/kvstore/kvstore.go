// Package kvstore provides the key-value document storage used to persist
// client state across restarts.
//
// Each namespace holds one opaque document. Backends:
//   - FileStore: one file per namespace, replaced atomically on save
//   - RedisStore: one key per namespace
//   - PostgresStore: one row per namespace
//   - MemoryStore: process-local, for tests and ephemeral sessions
package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when the namespace holds no document.
var ErrNotFound = errors.New("kvstore: not found")

// Store loads and saves whole documents by namespace.
// Implementations must be safe for concurrent use.
type Store interface {
	// Load returns the document stored under namespace, or ErrNotFound.
	Load(ctx context.Context, namespace string) ([]byte, error)

	// Save replaces the document stored under namespace. A failed Save
	// leaves the previous document intact.
	Save(ctx context.Context, namespace string, data []byte) error

	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, namespace string) error

	// Close releases backend resources.
	Close() error
}

// Compile-time interface satisfaction checks.
var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
