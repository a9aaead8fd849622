// Package store implements a single user's semantic memory: documents are
// embedded on write, L2-normalized, and kept alongside a nearest-neighbor
// index so that squared-L2 ranking matches cosine ranking.
//
// The store owns the pairing invariant between the two halves: the vector
// at index position i always belongs to the i-th document in insertion
// order. Mutations that cannot touch the index in place (update, delete)
// rebuild a fresh index off to the side and swap it in atomically.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/memgo/codec"
	"github.com/hupe1980/memgo/distance"
	"github.com/hupe1980/memgo/docstore"
	"github.com/hupe1980/memgo/embedding"
	"github.com/hupe1980/memgo/index"
	"github.com/hupe1980/memgo/index/flat"
	"github.com/hupe1980/memgo/index/hnsw"
	"github.com/hupe1980/memgo/index/ivf"
	"github.com/hupe1980/memgo/persistence"
)

var (
	// ErrNotFound is returned when a document ID does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrEmptyText is returned when the text to store is empty after
	// trimming whitespace.
	ErrEmptyText = errors.New("text must not be empty")

	// ErrEmptyQuery is returned when a search query is empty after
	// trimming whitespace.
	ErrEmptyQuery = errors.New("query must not be empty")

	// ErrInvalidTopK is returned when topK is negative.
	ErrInvalidTopK = errors.New("topK must not be negative")
)

// IndexFactory creates an empty index of the given type and dimension.
// Overriding it allows callers to tune index parameters.
type IndexFactory func(t index.Type, dimension int) (index.Index, error)

// DefaultIndexFactory creates indexes with their package defaults.
func DefaultIndexFactory(t index.Type, dimension int) (index.Index, error) {
	switch t {
	case index.TypeFlat:
		return flat.New(dimension)
	case index.TypeIVF:
		return ivf.New(dimension)
	case index.TypeHNSW:
		return hnsw.New(dimension)
	default:
		return nil, fmt.Errorf("unknown index type %q", t)
	}
}

// Options configures a Store.
type Options struct {
	// IndexType selects the nearest-neighbor index backend.
	IndexType index.Type

	// Factory creates the index. Defaults to DefaultIndexFactory.
	Factory IndexFactory

	// Codec serializes the snapshot payload.
	Codec codec.Codec

	// Compression is applied to snapshot payloads.
	Compression persistence.Compression

	// Logger receives structured operation logs.
	Logger *slog.Logger
}

// DefaultOptions are the options used by New.
var DefaultOptions = Options{
	IndexType:   index.TypeIVF,
	Factory:     DefaultIndexFactory,
	Codec:       codec.Default,
	Compression: persistence.CompressionZSTD,
	Logger:      slog.New(slog.DiscardHandler),
}

// Result is a single search hit.
type Result struct {
	// ID is the document identifier.
	ID string `json:"id"`

	// Text is the stored document text.
	Text string `json:"text"`

	// Score is the similarity score in (0, 1], computed as
	// 1 / (1 + squaredL2Distance). Higher is more similar.
	Score float32 `json:"score"`

	// Metadata holds the document's metadata, if any.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Stats describes the current state of a store.
type Stats struct {
	Count     int        `json:"count"`
	Dimension int        `json:"dimension"`
	IndexType index.Type `json:"index_type"`
	Trained   bool       `json:"trained"`
}

// UpdateOption mutates a pending document update.
type UpdateOption func(u *update)

type update struct {
	text          *string
	metadata      map[string]any
	mergeMetadata bool
}

// WithText replaces the document text. The document is re-embedded.
func WithText(text string) UpdateOption {
	return func(u *update) {
		u.text = &text
	}
}

// WithMetadata replaces the document metadata wholesale.
func WithMetadata(metadata map[string]any) UpdateOption {
	return func(u *update) {
		u.metadata = metadata
		u.mergeMetadata = false
	}
}

// WithMetadataMerge merges the given keys into the existing metadata,
// overwriting on conflict.
func WithMetadataMerge(metadata map[string]any) UpdateOption {
	return func(u *update) {
		u.metadata = metadata
		u.mergeMetadata = true
	}
}

// Store is a single user's memory store. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	embedder embedding.Embedder
	opts     Options
	idx      index.Index
	docs     *docstore.Store
	counter  uint64
}

// New creates an empty Store backed by the given embedder.
func New(embedder embedding.Embedder, optFns ...func(o *Options)) (*Store, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Factory == nil {
		opts.Factory = DefaultIndexFactory
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	idx, err := opts.Factory(opts.IndexType, embedder.Dimension())
	if err != nil {
		return nil, err
	}

	return &Store{
		embedder: embedder,
		opts:     opts,
		idx:      idx,
		docs:     docstore.New(),
	}, nil
}

// embed computes the L2-normalized embedding for text. A zero-magnitude
// embedding is stored as-is since it cannot be normalized.
func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	v, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	normalized, ok := distance.NormalizeL2Copy(v)
	if !ok {
		return slices.Clone(v), nil
	}

	return normalized, nil
}

// Add embeds text and stores it as a new document. IDs are assigned from a
// monotonically increasing counter and never reused, even after deletes.
func (s *Store) Add(ctx context.Context, text string, metadata map[string]any) (*docstore.Document, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	// Embedding can be slow (remote providers); keep it outside the lock.
	vector, err := s.embed(ctx, text)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.idx.Insert(ctx, vector); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := &docstore.Document{
		ID:        fmt.Sprintf("doc_%d", s.counter),
		Text:      text,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.counter++
	s.docs.Append(doc)

	s.opts.Logger.DebugContext(ctx, "document added",
		"id", doc.ID,
		"count", s.docs.Len(),
	)

	return doc, nil
}

// Search embeds the query and returns up to topK documents ordered by
// descending similarity. Ties are broken by insertion order.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK < 0 {
		return nil, ErrInvalidTopK
	}
	if topK == 0 {
		return []Result{}, nil
	}

	vector, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.docs.Len() == 0 {
		return []Result{}, nil
	}

	hits, err := s.idx.KNNSearch(ctx, vector, topK)
	if err != nil {
		return nil, err
	}

	// Positions ascend with insertion order, so sorting ties by position
	// is the same as sorting ties by ascending ID.
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Position < hits[j].Position
	})

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		doc := s.docs.At(int(hit.Position))
		results = append(results, Result{
			ID:       doc.ID,
			Text:     doc.Text,
			Score:    1.0 / (1.0 + hit.Distance),
			Metadata: doc.Metadata,
		})
	}

	s.opts.Logger.DebugContext(ctx, "search completed",
		"k", topK,
		"results", len(results),
	)

	return results, nil
}

// Get returns the document with the given ID.
func (s *Store) Get(id string) (*docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return doc, nil
}

// Update modifies a document. A text change re-embeds the document and
// rebuilds the index with the replacement vector; the document keeps its
// ID and position. Readers never observe a half-updated index: the rebuilt
// index is swapped in under the write lock.
func (s *Store) Update(ctx context.Context, id string, optFns ...UpdateOption) (*docstore.Document, error) {
	var u update
	for _, fn := range optFns {
		fn(&u)
	}

	var newText string
	var newVector []float32

	if u.text != nil {
		newText = strings.TrimSpace(*u.text)
		if newText == "" {
			return nil, ErrEmptyText
		}

		var err error
		if newVector, err = s.embed(ctx, newText); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	position, ok := s.docs.IndexOf(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	doc := s.docs.At(position)

	if newVector != nil {
		vectors := s.idx.Vectors()
		vectors[position] = newVector

		rebuilt, err := s.idx.Rebuild(ctx, vectors)
		if err != nil {
			return nil, err
		}

		s.idx = rebuilt
		doc.Text = newText
	}

	if u.metadata != nil {
		if u.mergeMetadata && doc.Metadata != nil {
			for k, v := range u.metadata {
				doc.Metadata[k] = v
			}
		} else {
			doc.Metadata = u.metadata
		}
	}

	doc.UpdatedAt = time.Now().UTC()

	s.opts.Logger.DebugContext(ctx, "document updated",
		"id", id,
		"reembedded", newVector != nil,
	)

	return doc, nil
}

// Delete removes a document and its vector. The index is rebuilt without
// the deleted vector and swapped in under the write lock; remaining
// documents shift down one position to stay paired with their vectors.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	position, ok := s.docs.IndexOf(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	vectors := s.idx.Vectors()
	vectors = append(vectors[:position], vectors[position+1:]...)

	rebuilt, err := s.idx.Rebuild(ctx, vectors)
	if err != nil {
		return err
	}

	s.idx = rebuilt
	s.docs.Remove(id)

	s.opts.Logger.DebugContext(ctx, "document deleted",
		"id", id,
		"count", s.docs.Len(),
	)

	return nil
}

// Documents returns all documents in insertion order.
func (s *Store) Documents() []*docstore.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.docs.All()
}

// IDs returns all document IDs in insertion order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.docs.IDs()
}

// Len returns the number of documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.docs.Len()
}

// Stats returns the current store statistics.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Count:     s.docs.Len(),
		Dimension: s.idx.Dimension(),
		IndexType: s.idx.Type(),
		Trained:   s.idx.Trained(),
	}
}
