package minio

import (
	"context"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := "localhost:9000"
	accessKey := "minioadmin"
	secretKey := "minioadmin"
	bucket := "test-memgo"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	// Check if MinIO is reachable
	_, err = client.ListBuckets(ctx)
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	// Ensure bucket exists
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "test-prefix/")

	data := []byte("memory snapshot")
	require.NoError(t, store.Put(ctx, "users/alice/memory.db", data))

	got, err := store.Get(ctx, "users/alice/memory.db")
	require.NoError(t, err)
	require.Equal(t, data, got)

	infos, err := store.List(ctx, "users/")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "users/alice/memory.db", infos[0].Name)
	assert.Equal(t, int64(len(data)), infos[0].Size)

	require.NoError(t, store.Delete(ctx, "users/alice/memory.db"))

	_, err = store.Get(ctx, "users/alice/memory.db")
	assert.Error(t, err)
}
