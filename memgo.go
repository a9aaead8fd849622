package memgo

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/memgo/blobstore"
	"github.com/hupe1980/memgo/docstore"
	"github.com/hupe1980/memgo/embedding"
	"github.com/hupe1980/memgo/store"
)

// DefaultTopK is the number of search results returned when topK is zero.
const DefaultTopK = 5

// snapshotBlob is the blob name of a user's serialized store, relative to
// the user's namespace.
const snapshotBlob = "memory.db"

// usersPrefix namespaces all per-user blobs.
const usersPrefix = "users/"

// Aliases so callers only need the root package for everyday use.
type (
	// Document is a stored memory entry.
	Document = docstore.Document

	// Result is a single search hit.
	Result = store.Result

	// Stats describes a user's store.
	Stats = store.Stats

	// UpdateOption mutates a pending document update.
	UpdateOption = store.UpdateOption
)

var (
	// WithText replaces a document's text during an update.
	WithText = store.WithText

	// WithMetadata replaces a document's metadata wholesale.
	WithMetadata = store.WithMetadata

	// WithMetadataMerge merges keys into a document's metadata.
	WithMetadataMerge = store.WithMetadataMerge
)

// Manager maps user IDs to isolated memory stores. Each user gets their
// own blob namespace; no operation ever reads across users. At most one
// in-memory store exists per user per process; there is no cross-process
// coordination.
//
// Manager is safe for concurrent use. Mutations on the same user's store
// are serialized by the store's own lock.
type Manager struct {
	opts     options
	embedder embedding.Embedder
	blobs    blobstore.BlobStore

	mu     sync.RWMutex
	stores map[string]*store.Store
	group  singleflight.Group
}

// New creates a Manager backed by the given embedder.
func New(embedder embedding.Embedder, optFns ...Option) (*Manager, error) {
	if embedder == nil {
		return nil, &ErrValidation{Field: "embedder", Reason: "must not be nil"}
	}

	opts := applyOptions(optFns)

	blobs := opts.blobStore
	if blobs == nil {
		blobs = blobstore.NewLocalStore(opts.root)
	}

	return &Manager{
		opts:     opts,
		embedder: embedder,
		blobs:    blobs,
		stores:   make(map[string]*store.Store),
	}, nil
}

func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return &ErrValidation{Field: "userID", Reason: "must not be empty"}
	}
	if strings.ContainsAny(userID, `/\`) || strings.Contains(userID, "..") {
		return &ErrValidation{Field: "userID", Reason: "must not contain path separators"}
	}
	return nil
}

// blobName returns the snapshot blob name for a user.
func blobName(userID string) string {
	return path.Join(usersPrefix+userID, snapshotBlob)
}

// storeOptions projects manager options onto a single store.
func (m *Manager) storeOptions() []func(o *store.Options) {
	return []func(o *store.Options){
		func(o *store.Options) {
			o.IndexType = m.opts.indexType
			o.Factory = m.opts.indexFactory
			o.Codec = m.opts.codec
			o.Compression = m.opts.compression
			o.Logger = m.opts.logger.Logger
		},
	}
}

// getStore returns the user's in-memory store, loading the persisted blob
// on first access or creating an empty store when none exists. Concurrent
// first accesses for the same user collapse into a single load.
func (m *Manager) getStore(ctx context.Context, userID string) (*store.Store, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	m.mu.RLock()
	s, ok := m.stores[userID]
	m.mu.RUnlock()

	if ok {
		return s, nil
	}

	v, err, _ := m.group.Do(userID, func() (any, error) {
		m.mu.RLock()
		s, ok := m.stores[userID]
		m.mu.RUnlock()

		if ok {
			return s, nil
		}

		s, err := m.loadOrCreate(ctx, userID)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.stores[userID] = s
		m.mu.Unlock()

		return s, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*store.Store), nil
}

func (m *Manager) loadOrCreate(ctx context.Context, userID string) (*store.Store, error) {
	data, err := m.blobs.Get(ctx, blobName(userID))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			s, err := store.New(m.embedder, m.storeOptions()...)
			if err != nil {
				return nil, err
			}

			m.opts.logger.DebugContext(ctx, "store created", "user", userID)

			return s, nil
		}

		err = &ErrPersistence{Op: "load", User: userID, cause: err}
		m.opts.logger.LogLoad(ctx, userID, 0, err)

		return nil, err
	}

	s, err := store.Load(data, m.embedder, m.storeOptions()...)
	if err != nil {
		err = translateError(err)
		m.opts.logger.LogLoad(ctx, userID, 0, err)

		return nil, err
	}

	m.opts.logger.LogLoad(ctx, userID, s.Len(), nil)

	return s, nil
}

// persist snapshots a store and writes it to the user's blob namespace.
func (m *Manager) persist(ctx context.Context, userID string, s *store.Store) error {
	name := blobName(userID)

	data, err := s.Snapshot()
	if err != nil {
		err = &ErrPersistence{Op: "save", User: userID, cause: err}
		m.opts.logger.LogPersist(ctx, userID, name, err)

		return err
	}

	if err := m.blobs.Put(ctx, name, data); err != nil {
		err = &ErrPersistence{Op: "save", User: userID, cause: err}
		m.opts.logger.LogPersist(ctx, userID, name, err)

		return err
	}

	m.opts.logger.LogPersist(ctx, userID, name, nil)

	return nil
}

// AddDocument embeds text and stores it as a new document for the user,
// returning the assigned document ID. With auto-persist enabled the
// store is saved before returning; a failed save returns both the ID and
// an ErrPersistence, since the document is already live in memory.
func (m *Manager) AddDocument(ctx context.Context, userID, text string, metadata map[string]any) (string, error) {
	s, err := m.getStore(ctx, userID)
	if err != nil {
		return "", err
	}

	doc, err := s.Add(ctx, text, metadata)
	if err != nil {
		err = translateError(err)
		m.opts.logger.LogAdd(ctx, userID, "", err)

		return "", err
	}

	m.opts.logger.LogAdd(ctx, userID, doc.ID, nil)

	if m.opts.autoPersist {
		if err := m.persist(ctx, userID, s); err != nil {
			return doc.ID, err
		}
	}

	return doc.ID, nil
}

// Search returns up to topK documents for the user ordered by descending
// similarity. A topK of zero means DefaultTopK. Searching a user with no
// persisted store creates an empty one and returns no results.
func (m *Manager) Search(ctx context.Context, userID, query string, topK int) ([]Result, error) {
	if topK == 0 {
		topK = DefaultTopK
	}

	s, err := m.getStore(ctx, userID)
	if err != nil {
		return nil, err
	}

	results, err := s.Search(ctx, query, topK)
	if err != nil {
		err = translateError(err)
		m.opts.logger.LogSearch(ctx, userID, topK, 0, err)

		return nil, err
	}

	m.opts.logger.LogSearch(ctx, userID, topK, len(results), nil)

	return results, nil
}

// GetDocument returns a user's document by ID.
func (m *Manager) GetDocument(ctx context.Context, userID, id string) (*Document, error) {
	s, err := m.getStore(ctx, userID)
	if err != nil {
		return nil, err
	}

	doc, err := s.Get(id)
	if err != nil {
		return nil, translateError(err)
	}

	return doc, nil
}

// UpdateDocument modifies a user's document. A text change re-embeds the
// document and rebuilds the index; the document keeps its ID.
func (m *Manager) UpdateDocument(ctx context.Context, userID, id string, optFns ...UpdateOption) error {
	s, err := m.getStore(ctx, userID)
	if err != nil {
		return err
	}

	if _, err := s.Update(ctx, id, optFns...); err != nil {
		err = translateError(err)
		m.opts.logger.LogUpdate(ctx, userID, id, err)

		return err
	}

	m.opts.logger.LogUpdate(ctx, userID, id, nil)

	if m.opts.autoPersist {
		return m.persist(ctx, userID, s)
	}

	return nil
}

// DeleteDocument removes a user's document. The index is rebuilt without
// the deleted vector, so no later search can return the deleted ID.
func (m *Manager) DeleteDocument(ctx context.Context, userID, id string) error {
	s, err := m.getStore(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.Delete(ctx, id); err != nil {
		err = translateError(err)
		m.opts.logger.LogDelete(ctx, userID, id, err)

		return err
	}

	m.opts.logger.LogDelete(ctx, userID, id, nil)

	if m.opts.autoPersist {
		return m.persist(ctx, userID, s)
	}

	return nil
}

// Stats returns the current statistics of a user's store.
func (m *Manager) Stats(ctx context.Context, userID string) (Stats, error) {
	s, err := m.getStore(ctx, userID)
	if err != nil {
		return Stats{}, err
	}

	return s.Stats(), nil
}

// ListUsers enumerates users with a persisted store, sorted.
func (m *Manager) ListUsers(ctx context.Context) ([]string, error) {
	infos, err := m.blobs.List(ctx, usersPrefix)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	seen := make(map[string]struct{})

	var users []string

	for _, info := range infos {
		rest, ok := strings.CutPrefix(info.Name, usersPrefix)
		if !ok {
			continue
		}

		userID, blob, ok := strings.Cut(rest, "/")
		if !ok || blob != snapshotBlob {
			continue
		}

		if _, dup := seen[userID]; !dup {
			seen[userID] = struct{}{}
			users = append(users, userID)
		}
	}

	sort.Strings(users)

	return users, nil
}

// DirectoryInfo lists the blobs stored under a user's namespace with
// their sizes. Read-only introspection; never loads the store.
func (m *Manager) DirectoryInfo(ctx context.Context, userID string) ([]blobstore.Info, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	return m.blobs.List(ctx, usersPrefix+userID+"/")
}

// Persist saves the user's in-memory store. It is a no-op for users that
// have not been loaded in this process.
func (m *Manager) Persist(ctx context.Context, userID string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}

	m.mu.RLock()
	s, ok := m.stores[userID]
	m.mu.RUnlock()

	if !ok {
		return nil
	}

	return m.persist(ctx, userID, s)
}

// Flush persists every loaded store concurrently and returns the first
// error encountered.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.RLock()
	stores := make(map[string]*store.Store, len(m.stores))
	for userID, s := range m.stores {
		stores[userID] = s
	}
	m.mu.RUnlock()

	g, ctx := errgroup.WithContext(ctx)

	for userID, s := range stores {
		g.Go(func() error {
			return m.persist(ctx, userID, s)
		})
	}

	return g.Wait()
}

// Close flushes all loaded stores and releases them. The Manager can be
// reused afterwards; stores reload on next access.
func (m *Manager) Close(ctx context.Context) error {
	if err := m.Flush(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	m.stores = make(map[string]*store.Store)
	m.mu.Unlock()

	return nil
}
