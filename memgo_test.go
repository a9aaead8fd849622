package memgo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/memgo"
	"github.com/hupe1980/memgo/index"
	"github.com/hupe1980/memgo/testutil"
)

func newTestManager(t *testing.T, root string) *memgo.Manager {
	t.Helper()

	m, err := memgo.New(&testutil.HashEmbedder{Dim: 256},
		memgo.WithRoot(root),
		memgo.WithIndexType(index.TypeFlat),
	)
	require.NoError(t, err)

	return m
}

func TestAddSearchUpdateDelete(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, t.TempDir())

	id, err := m.AddDocument(ctx, "alice", "i like to play badminton", nil)
	require.NoError(t, err)
	assert.Equal(t, "doc_0", id)

	_, err = m.AddDocument(ctx, "alice", "meeting with the team tomorrow", nil)
	require.NoError(t, err)
	_, err = m.AddDocument(ctx, "alice", "my favorite food is sushi", nil)
	require.NoError(t, err)

	results, err := m.Search(ctx, "alice", "play badminton sports", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "doc_0", results[0].ID)
	assert.Equal(t, "i like to play badminton", results[0].Text)

	// Update keeps the ID but changes what the document matches.
	err = m.UpdateDocument(ctx, "alice", "doc_0", memgo.WithText("i love tennis now"))
	require.NoError(t, err)

	results, err = m.Search(ctx, "alice", "i love tennis now", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc_0", results[0].ID)
	assert.Equal(t, "i love tennis now", results[0].Text)

	// After delete the ID never shows up again.
	require.NoError(t, m.DeleteDocument(ctx, "alice", "doc_0"))

	results, err = m.Search(ctx, "alice", "i love tennis now", 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "doc_0", r.ID)
	}
}

func TestUserIsolation(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, t.TempDir())

	_, err := m.AddDocument(ctx, "alice", "alice plays badminton", nil)
	require.NoError(t, err)
	_, err = m.AddDocument(ctx, "bob", "bob collects stamps", nil)
	require.NoError(t, err)

	results, err := m.Search(ctx, "bob", "alice plays badminton", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "bob collects stamps", results[0].Text)

	users, err := m.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, users)
}

func TestUserIDValidation(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, t.TempDir())

	for _, userID := range []string{"", "  ", "a/b", `a\b`, "..", "a..b"} {
		_, err := m.AddDocument(ctx, userID, "some text", nil)

		var verr *memgo.ErrValidation
		assert.ErrorAs(t, err, &verr, "userID %q", userID)
	}
}

func TestInputValidation(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, t.TempDir())

	var verr *memgo.ErrValidation

	_, err := m.AddDocument(ctx, "alice", "   ", nil)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "text", verr.Field)

	_, err = m.Search(ctx, "alice", "", 5)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "query", verr.Field)

	_, err = m.Search(ctx, "alice", "anything", -1)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "topK", verr.Field)
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, t.TempDir())

	_, err := m.AddDocument(ctx, "alice", "some note", nil)
	require.NoError(t, err)

	err = m.UpdateDocument(ctx, "alice", "doc_9", memgo.WithText("new"))
	assert.ErrorIs(t, err, memgo.ErrNotFound)

	err = m.DeleteDocument(ctx, "alice", "doc_9")
	assert.ErrorIs(t, err, memgo.ErrNotFound)

	_, err = m.GetDocument(ctx, "alice", "doc_9")
	assert.ErrorIs(t, err, memgo.ErrNotFound)
}

func TestPersistenceAcrossManagers(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	m1 := newTestManager(t, root)
	_, err := m1.AddDocument(ctx, "alice", "i like to play badminton", map[string]any{"topic": "sports"})
	require.NoError(t, err)

	// A fresh manager on the same root lazily loads the persisted store.
	m2 := newTestManager(t, root)

	results, err := m2.Search(ctx, "alice", "i like to play badminton", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc_0", results[0].ID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
	assert.Equal(t, "sports", results[0].Metadata["topic"])

	// The counter survives too.
	id, err := m2.AddDocument(ctx, "alice", "another note", nil)
	require.NoError(t, err)
	assert.Equal(t, "doc_1", id)
}

func TestAutoPersistDisabled(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	m1, err := memgo.New(&testutil.HashEmbedder{Dim: 256},
		memgo.WithRoot(root),
		memgo.WithIndexType(index.TypeFlat),
		memgo.WithAutoPersist(false),
	)
	require.NoError(t, err)

	_, err = m1.AddDocument(ctx, "alice", "unsaved note", nil)
	require.NoError(t, err)

	users, err := m1.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users, "nothing persisted before Flush")

	require.NoError(t, m1.Flush(ctx))

	users, err = m1.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, users)

	m2 := newTestManager(t, root)
	results, err := m2.Search(ctx, "alice", "unsaved note", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearchDefaultTopK(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, t.TempDir())

	for i := 0; i < 8; i++ {
		_, err := m.AddDocument(ctx, "alice", "note about badminton number "+string(rune('a'+i)), nil)
		require.NoError(t, err)
	}

	results, err := m.Search(ctx, "alice", "note about badminton", 0)
	require.NoError(t, err)
	assert.Len(t, results, memgo.DefaultTopK)
}

func TestDimensionMismatchOnLoad(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	m1 := newTestManager(t, root)
	_, err := m1.AddDocument(ctx, "alice", "some note", nil)
	require.NoError(t, err)

	m2, err := memgo.New(&testutil.HashEmbedder{Dim: 32}, memgo.WithRoot(root))
	require.NoError(t, err)

	_, err = m2.Search(ctx, "alice", "some note", 1)

	var mismatch *memgo.ErrDimensionMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 256, mismatch.Expected)
	assert.Equal(t, 32, mismatch.Actual)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, t.TempDir())

	_, err := m.AddDocument(ctx, "alice", "some note", nil)
	require.NoError(t, err)

	stats, err := m.Stats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, 256, stats.Dimension)
	assert.Equal(t, index.TypeFlat, stats.IndexType)
	assert.True(t, stats.Trained)
}

func TestDirectoryInfo(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, t.TempDir())

	_, err := m.AddDocument(ctx, "alice", "some note", nil)
	require.NoError(t, err)

	infos, err := m.DirectoryInfo(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "users/alice/memory.db", infos[0].Name)
	assert.Greater(t, infos[0].Size, int64(0))
}

func TestExportImportDocuments(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, t.TempDir())

	_, err := m.AddDocument(ctx, "alice", "i like to play badminton", nil)
	require.NoError(t, err)
	_, err = m.AddDocument(ctx, "alice", "my favorite food is sushi", nil)
	require.NoError(t, err)

	data, err := m.ExportDocuments(ctx, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, data)

	ids, err := m.ImportDocuments(ctx, "bob", data)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc_0", "doc_1"}, ids)

	results, err := m.Search(ctx, "bob", "i like to play badminton", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "i like to play badminton", results[0].Text)
}

func TestListUsersEmpty(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, t.TempDir())

	users, err := m.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	m, err := memgo.New(&testutil.HashEmbedder{Dim: 256},
		memgo.WithRoot(root),
		memgo.WithIndexType(index.TypeFlat),
		memgo.WithAutoPersist(false),
	)
	require.NoError(t, err)

	_, err = m.AddDocument(ctx, "alice", "some note", nil)
	require.NoError(t, err)

	require.NoError(t, m.Close(ctx))

	// Close flushed the store; the manager reloads it on next access.
	results, err := m.Search(ctx, "alice", "some note", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
