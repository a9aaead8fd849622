// Package memgo provides a per-user semantic memory store for Go.
//
// Memgo stores short texts ("memories") per user: each text is embedded,
// L2-normalized, and indexed for nearest-neighbor search, so memories can
// be recalled by meaning rather than by keyword. Every user gets an
// isolated store that is lazily loaded from a blob store and persisted
// after each mutation.
//
// # Quick Start
//
//	ctx := context.Background()
//
//	m, _ := memgo.New(embedder)                       // local files under ./user_memory
//	m, _ := memgo.New(embedder, memgo.WithRoot(dir))  // custom directory
//
//	id, _ := m.AddDocument(ctx, "alice", "I like to play badminton", nil)
//	results, _ := m.Search(ctx, "alice", "what sports do I enjoy?", 0) // 0 = default top-k
//	_ = m.UpdateDocument(ctx, "alice", id, memgo.WithText("I love tennis now"))
//	_ = m.DeleteDocument(ctx, "alice", id)
//
// Cloud mode:
//
//	client, _ := s3.NewClient(ctx)
//	m, _ := memgo.New(embedder, memgo.WithBlobStore(s3.NewStore(client, "my-bucket", "memgo")))
//
// # Index Backends
//
// Three nearest-neighbor backends are available per store:
//
//	// FLAT — exact brute-force search, best for small stores.
//	m, _ := memgo.New(embedder, memgo.WithIndexType(index.TypeFlat))
//
//	// IVF — inverted-file clustering (default). Scans exhaustively until
//	// enough vectors accumulate to train cluster centroids.
//	m, _ := memgo.New(embedder, memgo.WithIndexType(index.TypeIVF))
//
//	// HNSW — graph-based approximate search for larger stores.
//	m, _ := memgo.New(embedder, memgo.WithIndexType(index.TypeHNSW))
//
// # Consistency Model
//
// Document IDs are monotonic and never reused, even after deletes.
// Updates and deletes rebuild the index off to the side and swap it in
// atomically, so a search never observes a half-mutated index and a
// deleted document never appears in results.
//
// # Durability Model
//
// With auto-persist (the default) every successful mutation snapshots the
// user's store to its blob namespace before the call returns:
//
//	m.AddDocument(ctx, "alice", "note", nil) // durable after this
//
// For write-heavy loads, disable it and flush explicitly:
//
//	m, _ := memgo.New(embedder, memgo.WithAutoPersist(false))
//	// ... many mutations ...
//	m.Flush(ctx) // durable after this
package memgo
