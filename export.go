package memgo

import (
	"context"
	"fmt"
	"path"
	"sort"
)

// documentsBlob is the blob name of a user's documents-only export,
// relative to the user's namespace.
const documentsBlob = "documents.json"

// ExportDocuments writes a documents-only blob (document ID to text) to
// the user's namespace and returns the encoded bytes. The export is meant
// for inspection and re-import; it carries no vectors, so importing it
// re-embeds every document.
func (m *Manager) ExportDocuments(ctx context.Context, userID string) ([]byte, error) {
	s, err := m.getStore(ctx, userID)
	if err != nil {
		return nil, err
	}

	texts := make(map[string]string)
	for _, doc := range s.Documents() {
		texts[doc.ID] = doc.Text
	}

	data, err := m.opts.codec.Marshal(texts)
	if err != nil {
		return nil, fmt.Errorf("marshal documents: %w", err)
	}

	name := path.Join(usersPrefix+userID, documentsBlob)
	if err := m.blobs.Put(ctx, name, data); err != nil {
		return nil, &ErrPersistence{Op: "export", User: userID, cause: err}
	}

	return data, nil
}

// ImportDocuments adds every document from an ExportDocuments blob to the
// user's store, re-embedding each text. Documents are added in ascending
// ID order of the export, but receive fresh IDs from the user's counter.
// Returns the newly assigned IDs.
func (m *Manager) ImportDocuments(ctx context.Context, userID string, data []byte) ([]string, error) {
	s, err := m.getStore(ctx, userID)
	if err != nil {
		return nil, err
	}

	var texts map[string]string
	if err := m.opts.codec.Unmarshal(data, &texts); err != nil {
		return nil, fmt.Errorf("unmarshal documents: %w", err)
	}

	exportIDs := make([]string, 0, len(texts))
	for id := range texts {
		exportIDs = append(exportIDs, id)
	}
	sort.Strings(exportIDs)

	ids := make([]string, 0, len(exportIDs))

	for _, exportID := range exportIDs {
		doc, err := s.Add(ctx, texts[exportID], nil)
		if err != nil {
			return ids, translateError(err)
		}
		ids = append(ids, doc.ID)
	}

	if m.opts.autoPersist {
		if err := m.persist(ctx, userID, s); err != nil {
			return ids, err
		}
	}

	return ids, nil
}
