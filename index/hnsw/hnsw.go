// Package hnsw provides a Hierarchical Navigable Small World graph index.
//
// HNSW is approximate: recall depends on the construction and search
// parameters. It has no training phase, which makes it a drop-in for flat
// when collections grow past what a linear scan handles comfortably.
package hnsw

import (
	"container/heap"
	"context"
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/memgo/distance"
	"github.com/hupe1980/memgo/index"
	"github.com/hupe1980/memgo/queue"
)

// Compile-time check to ensure HNSW satisfies the index interface.
var _ index.Index = (*HNSW)(nil)

// Node represents a node in the HNSW graph.
type Node struct {
	Connections [][]uint32 // Links to other nodes, indexed by level
	Vector      []float32
	Layer       int // Top layer the node exists in
}

// Options represents the options for configuring HNSW.
type Options struct {
	// M specifies the number of established connections for every new
	// element during construction. The range 8-48 covers most use cases;
	// higher M suits high-dimensional data and high recall targets.
	M int

	// EF specifies the size of the dynamic candidate list during
	// construction. Larger values improve graph quality at build cost.
	EF int

	// EFSearch is the candidate list size during queries. It is raised to
	// k when a query asks for more results than EFSearch.
	EFSearch int

	// Heuristic selects the neighbour-selection heuristic from the HNSW
	// paper instead of naive closest-first linking.
	Heuristic bool

	// Seed makes layer assignment deterministic.
	Seed int64
}

// DefaultOptions contains the default configuration options for HNSW.
var DefaultOptions = Options{
	M:         8,
	EF:        200,
	EFSearch:  100,
	Heuristic: true,
	Seed:      1,
}

// HNSW represents the Hierarchical Navigable Small World graph.
type HNSW struct {
	mu        sync.RWMutex
	dimension int
	mmax      int     // Max number of connections per element/per layer
	mmax0     int     // Max for the 0 layer
	ml        float64 // Normalization factor for level generation
	ep        uint32  // Entry point into the top layer
	maxLevel  int     // Current max level in use

	nodes []*Node

	opts Options
	rng  *rand.Rand
}

// New creates a new HNSW index for vectors of the given dimension.
func New(dimension int, optFns ...func(o *Options)) (*HNSW, error) {
	if dimension <= 0 {
		return nil, index.ErrInvalidDimension
	}

	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.M <= 1 {
		// M == 1 would make the level normalization factor divide by zero.
		opts.M = 2
	}
	if opts.EF <= 0 {
		opts.EF = DefaultOptions.EF
	}
	if opts.EFSearch <= 0 {
		opts.EFSearch = DefaultOptions.EFSearch
	}

	return &HNSW{
		dimension: dimension,
		mmax:      opts.M,
		mmax0:     2 * opts.M,
		ml:        1 / math.Log(1.0*float64(opts.M)),
		opts:      opts,
		rng:       rand.New(rand.NewSource(opts.Seed)),
	}, nil
}

// randomLayer draws a node layer from the exponential level distribution.
func (h *HNSW) randomLayer() int {
	u := h.rng.Float64()
	for u == 0 {
		u = h.rng.Float64()
	}
	return int(math.Floor(-math.Log(u) * h.ml))
}

// Insert inserts a new vector into the graph and returns its position.
func (h *HNSW) Insert(ctx context.Context, v []float32) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := index.ValidateVector(v, h.dimension); err != nil {
		return 0, err
	}

	vectorCopy := slices.Clone(v)

	h.mu.Lock()
	defer h.mu.Unlock()

	pos := uint32(len(h.nodes))
	layer := h.randomLayer()

	node := &Node{
		Vector:      vectorCopy,
		Layer:       layer,
		Connections: make([][]uint32, layer+1),
	}

	// First node becomes the entry point, no linking needed.
	if len(h.nodes) == 0 {
		h.nodes = append(h.nodes, node)
		h.ep = pos
		h.maxLevel = layer
		return pos, nil
	}

	// Greedy descent through the layers above the new node's top layer.
	currPos, currDist := h.descend(vectorCopy, layer)

	topCandidates := queue.NewMin(h.opts.EF)

	// For every level the new node participates in, collect the closest
	// candidates and link both directions.
	for level := min(layer, h.maxLevel); level >= 0; level-- {
		h.searchLayer(vectorCopy, &queue.PriorityQueueItem{Position: currPos, Distance: currDist}, topCandidates, h.opts.EF, level)

		if h.opts.Heuristic {
			h.selectNeighboursHeuristic(topCandidates, h.opts.M, false)
		} else {
			h.selectNeighboursSimple(topCandidates, h.opts.M)
		}

		node.Connections[level] = make([]uint32, topCandidates.Len())

		for i := topCandidates.Len() - 1; i >= 0; i-- {
			candidate, _ := heap.Pop(topCandidates).(*queue.PriorityQueueItem)
			node.Connections[level][i] = candidate.Position
		}
	}

	h.nodes = append(h.nodes, node)

	// Back-link the neighbours to the new node, making it reachable.
	for level := min(layer, h.maxLevel); level >= 0; level-- {
		for _, neighbour := range node.Connections[level] {
			h.link(neighbour, pos, level)
		}
	}

	if layer > h.maxLevel {
		h.ep = pos
		h.maxLevel = layer
	}

	return pos, nil
}

// descend walks from the entry point down to targetLayer+1, always moving
// to the closest connected node. Caller must hold the lock.
func (h *HNSW) descend(v []float32, targetLayer int) (uint32, float32) {
	currPos := h.ep
	currDist := distance.SquaredL2(h.nodes[currPos].Vector, v)

	for level := h.nodes[currPos].Layer; level > targetLayer; level-- {
		changed := true
		for changed {
			changed = false

			node := h.nodes[currPos]
			if level >= len(node.Connections) {
				continue
			}

			for _, neighbour := range node.Connections[level] {
				if d := distance.SquaredL2(h.nodes[neighbour].Vector, v); d < currDist {
					currPos = neighbour
					currDist = d
					changed = true
				}
			}
		}
	}

	return currPos, currDist
}

// KNNSearch performs a k-nearest neighbor search in the graph.
func (h *HNSW) KNNSearch(ctx context.Context, q []float32, k int) ([]index.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if err := index.ValidateVector(q, h.dimension); err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.nodes) == 0 {
		return nil, nil
	}

	ef := max(h.opts.EFSearch, k)

	// Greedy descent to layer 1, then a full search on the bottom layer.
	currPos, currDist := h.descend(q, 0)

	topCandidates := queue.NewMax(ef)
	h.searchLayer(q, &queue.PriorityQueueItem{Position: currPos, Distance: currDist}, topCandidates, ef, 0)

	for topCandidates.Len() > k {
		_ = heap.Pop(topCandidates)
	}

	results := make([]index.SearchResult, topCandidates.Len())
	for i := topCandidates.Len() - 1; i >= 0; i-- {
		item := heap.Pop(topCandidates).(*queue.PriorityQueueItem)
		results[i] = index.SearchResult{Position: item.Position, Distance: item.Distance}
	}

	return results, nil
}

// searchLayer performs a best-first search in one layer of the graph.
// topCandidates is turned into a max-heap holding at most ef results.
func (h *HNSW) searchLayer(q []float32, ep *queue.PriorityQueueItem, topCandidates *queue.PriorityQueue, ef int, level int) {
	visited := roaring.New()
	visited.Add(ep.Position)

	candidates := queue.NewMin(ef)
	heap.Init(candidates)
	heap.Push(candidates, ep)

	topCandidates.Order = true // max-heap
	heap.Init(topCandidates)
	heap.Push(topCandidates, ep)

	for candidates.Len() > 0 {
		lowerBound := topCandidates.Top().Distance

		candidate, _ := heap.Pop(candidates).(*queue.PriorityQueueItem)
		if candidate.Distance > lowerBound {
			break
		}

		node := h.nodes[candidate.Position]
		if level >= len(node.Connections) {
			continue
		}

		for _, neighbour := range node.Connections[level] {
			if visited.Contains(neighbour) {
				continue
			}
			visited.Add(neighbour)

			dist := distance.SquaredL2(q, h.nodes[neighbour].Vector)
			item := &queue.PriorityQueueItem{Position: neighbour, Distance: dist}

			if topCandidates.Len() < ef {
				heap.Push(topCandidates, item)
				heap.Push(candidates, item)
			} else if topCandidates.Top().Distance > dist {
				heap.Pop(topCandidates)
				heap.Push(topCandidates, item)
				heap.Push(candidates, item)
			}
		}
	}
}

// link connects first -> second at the given level, pruning the neighbour
// list when it exceeds the per-level connection budget.
func (h *HNSW) link(first uint32, second uint32, level int) {
	maxConnections := h.mmax
	// HNSW allows double the connections on the bottom level.
	if level == 0 {
		maxConnections = h.mmax0
	}

	node := h.nodes[first]
	if level >= len(node.Connections) {
		return
	}

	node.Connections[level] = append(node.Connections[level], second)

	if len(node.Connections[level]) <= maxConnections {
		return
	}

	topCandidates := queue.NewMin(len(node.Connections[level]))
	heap.Init(topCandidates)

	for _, p := range node.Connections[level] {
		heap.Push(topCandidates, &queue.PriorityQueueItem{
			Position: p,
			Distance: distance.SquaredL2(node.Vector, h.nodes[p].Vector),
		})
	}

	if h.opts.Heuristic {
		h.selectNeighboursHeuristic(topCandidates, maxConnections, true)
	} else {
		h.selectNeighboursSimple(topCandidates, maxConnections)
	}

	node.Connections[level] = make([]uint32, maxConnections)

	// Order by best match (index 0) .. worst
	for i := maxConnections - 1; i >= 0; i-- {
		item, _ := heap.Pop(topCandidates).(*queue.PriorityQueueItem)
		node.Connections[level][i] = item.Position
	}
}

// selectNeighboursSimple keeps the M nearest candidates.
func (h *HNSW) selectNeighboursSimple(topCandidates *queue.PriorityQueue, m int) {
	for topCandidates.Len() > m {
		_ = heap.Pop(topCandidates)
	}
}

// selectNeighboursHeuristic implements the neighbour-selection heuristic
// from the HNSW paper: a candidate is kept only if it is closer to the base
// node than to any already-kept neighbour, preserving graph diversity.
func (h *HNSW) selectNeighboursHeuristic(topCandidates *queue.PriorityQueue, m int, order bool) {
	if topCandidates.Len() < m {
		return
	}

	newCandidates := &queue.PriorityQueue{}

	tmpCandidates := &queue.PriorityQueue{Order: order}
	heap.Init(tmpCandidates)

	items := make([]*queue.PriorityQueueItem, 0, m)

	if !order {
		newCandidates.Order = order
		heap.Init(newCandidates)

		for topCandidates.Len() > 0 {
			item, _ := heap.Pop(topCandidates).(*queue.PriorityQueueItem)
			heap.Push(newCandidates, item)
		}
	} else {
		newCandidates = topCandidates
	}

	for newCandidates.Len() > 0 {
		if len(items) >= m {
			break
		}

		item, _ := heap.Pop(newCandidates).(*queue.PriorityQueueItem)
		hit := true

		for _, kept := range items {
			if distance.SquaredL2(h.nodes[kept.Position].Vector, h.nodes[item.Position].Vector) < item.Distance {
				hit = false
				break
			}
		}

		if hit {
			items = append(items, item)
		} else {
			heap.Push(tmpCandidates, item)
		}
	}

	// Backfill from the rejected candidates if the diverse set is short.
	for len(items) < m && tmpCandidates.Len() > 0 {
		item, _ := heap.Pop(tmpCandidates).(*queue.PriorityQueueItem)
		items = append(items, item)
	}

	for _, item := range items {
		heap.Push(topCandidates, item)
	}
}

// Rebuild returns a fresh HNSW index with the same configuration
// containing exactly the given vectors.
func (h *HNSW) Rebuild(ctx context.Context, vectors [][]float32) (index.Index, error) {
	h.mu.RLock()
	opts := h.opts
	h.mu.RUnlock()

	next, err := New(h.dimension, func(o *Options) { *o = opts })
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

// Train is a no-op: HNSW has no training phase.
func (h *HNSW) Train(ctx context.Context, vectors [][]float32) error {
	return ctx.Err()
}

// Trained always reports true.
func (h *HNSW) Trained() bool { return true }

// Vectors returns the stored vectors in position order.
func (h *HNSW) Vectors() [][]float32 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	vectors := make([][]float32, len(h.nodes))
	for i, node := range h.nodes {
		vectors[i] = node.Vector
	}
	return vectors
}

// Len returns the number of stored vectors.
func (h *HNSW) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.nodes)
}

// Dimension returns the vector dimensionality of the index.
func (h *HNSW) Dimension() int { return h.dimension }

// Type returns the backend type.
func (h *HNSW) Type() index.Type { return index.TypeHNSW }
