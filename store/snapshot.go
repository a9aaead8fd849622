package store

import (
	"fmt"

	"github.com/hupe1980/memgo/codec"
	"github.com/hupe1980/memgo/docstore"
	"github.com/hupe1980/memgo/embedding"
	"github.com/hupe1980/memgo/index"
	"github.com/hupe1980/memgo/persistence"
)

// snapshot is the serialized form of a store. The index is carried as an
// opaque gob blob so each backend controls its own layout.
type snapshot struct {
	IndexType  index.Type           `json:"index_type"`
	Dimension  int                  `json:"dimension"`
	DocCounter uint64               `json:"doc_counter"`
	Documents  []*docstore.Document `json:"documents"`
	Index      []byte               `json:"index"`
}

// Snapshot serializes the store into a self-describing binary blob that
// Load can restore without re-embedding any document.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	indexBlob, err := s.idx.GobEncode()
	if err != nil {
		return nil, fmt.Errorf("encode index: %w", err)
	}

	snap := snapshot{
		IndexType:  s.idx.Type(),
		Dimension:  s.idx.Dimension(),
		DocCounter: s.counter,
		Documents:  s.docs.All(),
		Index:      indexBlob,
	}

	payload, err := s.opts.Codec.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	return persistence.Encode(s.opts.Codec.Name(), s.opts.Compression, payload)
}

// Load restores a store from a Snapshot blob. The embedder must produce
// vectors of the snapshot's dimension; options control how the restored
// store behaves going forward, except that the snapshot's index type wins
// over any configured one.
func Load(data []byte, embedder embedding.Embedder, optFns ...func(o *Options)) (*Store, error) {
	header, payload, err := persistence.Decode(data)
	if err != nil {
		return nil, err
	}

	c, ok := codec.ByName(header.CodecName)
	if !ok {
		return nil, fmt.Errorf("unknown codec %q", header.CodecName)
	}

	var snap snapshot
	if err := c.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	if got := embedder.Dimension(); got != snap.Dimension {
		return nil, &index.ErrDimensionMismatch{Expected: snap.Dimension, Actual: got}
	}

	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.IndexType = snap.IndexType
	opts.Codec = c

	if opts.Factory == nil {
		opts.Factory = DefaultIndexFactory
	}
	if opts.Logger == nil {
		opts.Logger = DefaultOptions.Logger
	}

	idx, err := opts.Factory(snap.IndexType, snap.Dimension)
	if err != nil {
		return nil, err
	}
	if err := idx.GobDecode(snap.Index); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}

	if idx.Len() != len(snap.Documents) {
		return nil, fmt.Errorf("snapshot corrupt: %d vectors for %d documents", idx.Len(), len(snap.Documents))
	}

	docs := docstore.New()
	for _, doc := range snap.Documents {
		docs.Append(doc)
	}

	return &Store{
		embedder: embedder,
		opts:     opts,
		idx:      idx,
		docs:     docs,
		counter:  snap.DocCounter,
	}, nil
}
