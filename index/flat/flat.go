// Package flat provides an exact brute-force vector index.
//
// Every query scans all stored vectors. Recall is perfect and there is no
// training phase, which makes flat the right default for per-user memory
// collections that rarely exceed a few thousand documents.
package flat

import (
	"container/heap"
	"context"
	"slices"
	"sync"

	"github.com/hupe1980/memgo/distance"
	"github.com/hupe1980/memgo/index"
	"github.com/hupe1980/memgo/queue"
)

// Compile-time check to ensure Flat satisfies the index interface.
var _ index.Index = (*Flat)(nil)

// Flat is an exact brute-force index.
type Flat struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float32
}

// New creates a new flat index for vectors of the given dimension.
func New(dimension int) (*Flat, error) {
	if dimension <= 0 {
		return nil, index.ErrInvalidDimension
	}

	return &Flat{dimension: dimension}, nil
}

// Insert appends a vector and returns its position.
func (f *Flat) Insert(ctx context.Context, v []float32) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := index.ValidateVector(v, f.dimension); err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Copy so later caller-side mutation cannot corrupt the index.
	f.vectors = append(f.vectors, slices.Clone(v))

	return uint32(len(f.vectors) - 1), nil
}

// KNNSearch scans all vectors and returns the k nearest by squared L2
// distance, ordered ascending.
func (f *Flat) KNNSearch(ctx context.Context, q []float32, k int) ([]index.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if err := index.ValidateVector(q, f.dimension); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.vectors) == 0 {
		return nil, nil
	}

	actualK := min(k, len(f.vectors))

	// Max-heap of the current best k: the root is the worst candidate and
	// gets evicted when a closer vector shows up.
	topCandidates := queue.NewMax(actualK)

	for pos, vec := range f.vectors {
		dist := distance.SquaredL2(q, vec)

		if topCandidates.Len() < actualK {
			heap.Push(topCandidates, &queue.PriorityQueueItem{Position: uint32(pos), Distance: dist})
			continue
		}

		if largest := topCandidates.Top(); dist < largest.Distance {
			heap.Pop(topCandidates)
			heap.Push(topCandidates, &queue.PriorityQueueItem{Position: uint32(pos), Distance: dist})
		}
	}

	results := make([]index.SearchResult, topCandidates.Len())
	for i := topCandidates.Len() - 1; i >= 0; i-- {
		item := heap.Pop(topCandidates).(*queue.PriorityQueueItem)
		results[i] = index.SearchResult{Position: item.Position, Distance: item.Distance}
	}

	return results, nil
}

// Rebuild returns a fresh flat index containing exactly the given vectors.
func (f *Flat) Rebuild(ctx context.Context, vectors [][]float32) (index.Index, error) {
	next, err := New(f.dimension)
	if err != nil {
		return nil, err
	}

	for _, v := range vectors {
		if _, err := next.Insert(ctx, v); err != nil {
			return nil, err
		}
	}

	return next, nil
}

// Train is a no-op: flat indexes have no training phase.
func (f *Flat) Train(ctx context.Context, vectors [][]float32) error {
	return ctx.Err()
}

// Trained always reports true.
func (f *Flat) Trained() bool { return true }

// Vectors returns the stored vectors in position order.
func (f *Flat) Vectors() [][]float32 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	vectors := make([][]float32, len(f.vectors))
	copy(vectors, f.vectors)
	return vectors
}

// Len returns the number of stored vectors.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return len(f.vectors)
}

// Dimension returns the vector dimensionality of the index.
func (f *Flat) Dimension() int { return f.dimension }

// Type returns the backend type.
func (f *Flat) Type() index.Type { return index.TypeFlat }
