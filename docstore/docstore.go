// Package docstore holds the document side of a memory store: original
// text, metadata and timestamps, keyed by document ID and kept in
// insertion order.
//
// Insertion order matters because the vector index addresses vectors by
// position; position i always corresponds to the i-th document here.
package docstore

import (
	"time"
)

// Document is a stored memory entry.
type Document struct {
	// ID is the stable document identifier ("doc_0", "doc_1", ...).
	ID string `json:"id"`

	// Text is the original text the embedding was computed from.
	Text string `json:"text"`

	// Metadata holds arbitrary user-supplied key/value pairs.
	Metadata map[string]any `json:"metadata,omitempty"`

	// CreatedAt is when the document was first added (UTC).
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the document was last modified (UTC).
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is an insertion-ordered document collection.
//
// Store is not safe for concurrent use; the memory store serializes access
// under its own lock.
type Store struct {
	docs     []*Document
	position map[string]int
}

// New creates an empty document store.
func New() *Store {
	return &Store{position: make(map[string]int)}
}

// Append adds a document at the end of the order. Appending an existing ID
// replaces the document in place instead.
func (s *Store) Append(doc *Document) {
	if i, ok := s.position[doc.ID]; ok {
		s.docs[i] = doc
		return
	}

	s.position[doc.ID] = len(s.docs)
	s.docs = append(s.docs, doc)
}

// Get returns the document with the given ID.
func (s *Store) Get(id string) (*Document, bool) {
	i, ok := s.position[id]
	if !ok {
		return nil, false
	}
	return s.docs[i], true
}

// Remove deletes the document with the given ID, shifting later documents
// one position down. Reports whether the ID existed.
func (s *Store) Remove(id string) bool {
	i, ok := s.position[id]
	if !ok {
		return false
	}

	s.docs = append(s.docs[:i], s.docs[i+1:]...)
	delete(s.position, id)

	for j := i; j < len(s.docs); j++ {
		s.position[s.docs[j].ID] = j
	}

	return true
}

// IndexOf returns the position of the document with the given ID.
func (s *Store) IndexOf(id string) (int, bool) {
	i, ok := s.position[id]
	return i, ok
}

// At returns the document at the given position.
func (s *Store) At(i int) *Document {
	return s.docs[i]
}

// Len returns the number of documents.
func (s *Store) Len() int {
	return len(s.docs)
}

// IDs returns all document IDs in insertion order.
func (s *Store) IDs() []string {
	ids := make([]string, len(s.docs))
	for i, doc := range s.docs {
		ids[i] = doc.ID
	}
	return ids
}

// All returns the documents in insertion order. The returned slice is a
// copy; the documents are shared.
func (s *Store) All() []*Document {
	docs := make([]*Document, len(s.docs))
	copy(docs, s.docs)
	return docs
}
