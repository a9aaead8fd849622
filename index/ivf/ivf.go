// Package ivf provides an inverted-file vector index.
//
// Vectors are clustered with k-means; a query only scans the posting lists
// of the closest clusters. Until enough vectors have accumulated to train
// the clustering, searches transparently fall back to an exhaustive scan,
// so results stay exact for small collections.
package ivf

import (
	"container/heap"
	"context"
	"math/rand"
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/memgo/distance"
	"github.com/hupe1980/memgo/index"
	"github.com/hupe1980/memgo/queue"
)

// Compile-time check to ensure IVF satisfies the index interface.
var _ index.Index = (*IVF)(nil)

// Options contains configuration options for the IVF index.
type Options struct {
	// NumClusters is the number of k-means cells.
	NumClusters int

	// NumProbes is the number of cells scanned per query. Higher values
	// trade speed for recall.
	NumProbes int

	// TrainThreshold is the vector count at which clustering is trained.
	// Below it the index answers queries by exhaustive scan.
	TrainThreshold int

	// MaxIterations bounds the k-means refinement loop.
	MaxIterations int

	// Seed makes centroid initialization deterministic.
	Seed int64
}

// DefaultOptions contains the default configuration options for the IVF
// index.
var DefaultOptions = Options{
	NumClusters:    16,
	NumProbes:      4,
	TrainThreshold: 100,
	MaxIterations:  25,
	Seed:           1,
}

// IVF is an inverted-file index with k-means clustering.
type IVF struct {
	mu        sync.RWMutex
	dimension int
	opts      Options

	vectors   [][]float32
	centroids [][]float32
	postings  []*roaring.Bitmap // positions per centroid
	trained   bool

	rng *rand.Rand
}

// New creates a new IVF index for vectors of the given dimension.
func New(dimension int, optFns ...func(o *Options)) (*IVF, error) {
	if dimension <= 0 {
		return nil, index.ErrInvalidDimension
	}

	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.NumClusters <= 0 {
		opts.NumClusters = DefaultOptions.NumClusters
	}
	if opts.NumProbes <= 0 {
		opts.NumProbes = DefaultOptions.NumProbes
	}
	if opts.TrainThreshold < opts.NumClusters {
		opts.TrainThreshold = opts.NumClusters
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultOptions.MaxIterations
	}

	return &IVF{
		dimension: dimension,
		opts:      opts,
		rng:       rand.New(rand.NewSource(opts.Seed)),
	}, nil
}

// Insert appends a vector and returns its position. Crossing the train
// threshold triggers clustering transparently.
func (ix *IVF) Insert(ctx context.Context, v []float32) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := index.ValidateVector(v, ix.dimension); err != nil {
		return 0, err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	pos := uint32(len(ix.vectors))
	ix.vectors = append(ix.vectors, slices.Clone(v))

	if ix.trained {
		cluster := nearestCentroid(v, ix.centroids)
		ix.postings[cluster].Add(pos)
	} else if len(ix.vectors) >= ix.opts.TrainThreshold {
		ix.train()
	}

	return pos, nil
}

// train clusters the stored vectors and rebuilds all posting lists.
// Caller must hold the write lock.
func (ix *IVF) train() {
	centroids := trainKMeans(ix.rng, ix.vectors, ix.opts.NumClusters, ix.opts.MaxIterations)
	if centroids == nil {
		return
	}

	postings := make([]*roaring.Bitmap, len(centroids))
	for i := range postings {
		postings[i] = roaring.New()
	}
	for pos, vec := range ix.vectors {
		postings[nearestCentroid(vec, centroids)].Add(uint32(pos))
	}

	ix.centroids = centroids
	ix.postings = postings
	ix.trained = true
}

// Train clusters the index using the given sample. Stored vectors are
// reassigned to the new cells. Training with fewer samples than clusters is
// a no-op.
func (ix *IVF) Train(ctx context.Context, vectors [][]float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, v := range vectors {
		if err := index.ValidateVector(v, ix.dimension); err != nil {
			return err
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	centroids := trainKMeans(ix.rng, vectors, ix.opts.NumClusters, ix.opts.MaxIterations)
	if centroids == nil {
		return nil
	}

	postings := make([]*roaring.Bitmap, len(centroids))
	for i := range postings {
		postings[i] = roaring.New()
	}
	for pos, vec := range ix.vectors {
		postings[nearestCentroid(vec, centroids)].Add(uint32(pos))
	}

	ix.centroids = centroids
	ix.postings = postings
	ix.trained = true

	return nil
}

// Trained reports whether clustering has been trained.
func (ix *IVF) Trained() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	return ix.trained
}

// KNNSearch returns up to k nearest neighbors. Untrained indexes scan
// exhaustively; trained indexes scan the NumProbes closest cells.
func (ix *IVF) KNNSearch(ctx context.Context, q []float32, k int) ([]index.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if err := index.ValidateVector(q, ix.dimension); err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.vectors) == 0 {
		return nil, nil
	}

	actualK := min(k, len(ix.vectors))
	topCandidates := queue.NewMax(actualK)

	scan := func(pos uint32) {
		dist := distance.SquaredL2(q, ix.vectors[pos])

		if topCandidates.Len() < actualK {
			heap.Push(topCandidates, &queue.PriorityQueueItem{Position: pos, Distance: dist})
			return
		}

		if largest := topCandidates.Top(); dist < largest.Distance {
			heap.Pop(topCandidates)
			heap.Push(topCandidates, &queue.PriorityQueueItem{Position: pos, Distance: dist})
		}
	}

	if !ix.trained {
		for pos := range ix.vectors {
			scan(uint32(pos))
		}
	} else {
		for _, cell := range closestCentroids(q, ix.centroids, ix.opts.NumProbes) {
			it := ix.postings[cell].Iterator()
			for it.HasNext() {
				scan(it.Next())
			}
		}
	}

	results := make([]index.SearchResult, topCandidates.Len())
	for i := topCandidates.Len() - 1; i >= 0; i-- {
		item := heap.Pop(topCandidates).(*queue.PriorityQueueItem)
		results[i] = index.SearchResult{Position: item.Position, Distance: item.Distance}
	}

	return results, nil
}

// Rebuild returns a fresh IVF index with the same configuration containing
// exactly the given vectors. Clustering is retrained when the new
// collection is large enough.
func (ix *IVF) Rebuild(ctx context.Context, vectors [][]float32) (index.Index, error) {
	ix.mu.RLock()
	opts := ix.opts
	ix.mu.RUnlock()

	next, err := New(ix.dimension, func(o *Options) { *o = opts })
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

// Vectors returns the stored vectors in position order.
func (ix *IVF) Vectors() [][]float32 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	vectors := make([][]float32, len(ix.vectors))
	copy(vectors, ix.vectors)
	return vectors
}

// Len returns the number of stored vectors.
func (ix *IVF) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	return len(ix.vectors)
}

// Dimension returns the vector dimensionality of the index.
func (ix *IVF) Dimension() int { return ix.dimension }

// Type returns the backend type.
func (ix *IVF) Type() index.Type { return index.TypeIVF }
