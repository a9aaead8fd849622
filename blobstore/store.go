// Package blobstore abstracts the storage backing for user memory
// snapshots. A blob is written and read as a whole; snapshot durability is
// handled by the implementations (atomic rename locally, single PUT on
// object stores).
package blobstore

import (
	"context"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Info describes a stored blob.
type Info struct {
	Name string
	Size int64
}

// BlobStore is an abstraction for storing memory snapshots.
type BlobStore interface {
	// Put stores a blob under the given name, replacing any existing blob.
	// The write must be atomic: readers never observe a partial blob.
	Put(ctx context.Context, name string, data []byte) error

	// Get returns the full content of a blob.
	Get(ctx context.Context, name string) ([]byte, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns all blobs whose name starts with prefix, sorted by name.
	List(ctx context.Context, prefix string) ([]Info, error)
}
