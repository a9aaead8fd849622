// Package index provides interfaces and types for vector search indexes.
//
// Indexes store raw vectors addressed by position (0..Len()-1) and answer
// k-nearest-neighbor queries over squared L2 distance. The memory store
// normalizes all vectors before they reach an index, so squared L2 ordering
// is equivalent to cosine ordering.
package index

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
)

// Type identifies an index backend.
type Type string

const (
	// TypeFlat is exact brute-force search.
	TypeFlat Type = "flat"
	// TypeIVF is inverted-file search with k-means clustering.
	TypeIVF Type = "ivf"
	// TypeHNSW is graph-based approximate search.
	TypeHNSW Type = "hnsw"
)

var (
	// ErrInvalidK is returned when the requested neighbor count is not positive.
	ErrInvalidK = errors.New("k must be greater than zero")
	// ErrEmptyVector is returned when an empty vector is inserted or queried.
	ErrEmptyVector = errors.New("empty vector")
	// ErrInvalidDimension is returned when an index is created with a
	// non-positive dimension.
	ErrInvalidDimension = errors.New("dimension must be greater than zero")
)

// ErrDimensionMismatch is a named error type for dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

// Error returns the error message for dimension mismatch.
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// SearchResult represents a single nearest-neighbor match.
type SearchResult struct {
	// Position is the insertion position of the matched vector.
	Position uint32

	// Distance is the squared L2 distance between query and match.
	Distance float32
}

// Index represents a positional vector index.
//
// Implementations are safe for concurrent reads; writes are serialized by
// the caller (the memory store holds its own write lock).
type Index interface {
	gob.GobEncoder
	gob.GobDecoder

	// Insert appends a vector and returns its position.
	Insert(ctx context.Context, v []float32) (uint32, error)

	// KNNSearch returns up to k nearest neighbors ordered by ascending
	// distance. Fewer than k results are returned when the index holds
	// fewer vectors.
	KNNSearch(ctx context.Context, q []float32, k int) ([]SearchResult, error)

	// Rebuild returns a fresh index of the same type and configuration
	// containing exactly the given vectors, positioned 0..len(vectors)-1.
	Rebuild(ctx context.Context, vectors [][]float32) (Index, error)

	// Train prepares internal structures from a sample of vectors.
	// Backends without a training phase treat this as a no-op.
	Train(ctx context.Context, vectors [][]float32) error

	// Trained reports whether the index is past its training phase.
	// Always true for backends without one.
	Trained() bool

	// Vectors returns the stored vectors in position order. The outer
	// slice is a fresh copy so callers can reorder or splice it; the
	// vectors themselves alias internal memory and must not be modified.
	Vectors() [][]float32

	// Len returns the number of stored vectors.
	Len() int

	// Dimension returns the vector dimensionality of the index.
	Dimension() int

	// Type returns the backend type.
	Type() Type
}

// ValidateVector checks a vector against the index dimension.
func ValidateVector(v []float32, dimension int) error {
	if len(v) == 0 {
		return ErrEmptyVector
	}
	if len(v) != dimension {
		return &ErrDimensionMismatch{Expected: dimension, Actual: len(v)}
	}
	return nil
}
