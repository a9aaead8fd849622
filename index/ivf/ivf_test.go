package ivf

import (
	"context"
	"math/rand"
	"testing"

	"github.com/hupe1980/memgo/distance"
	"github.com/hupe1980/memgo/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomUnitVectors(t *testing.T, n, dim int, seed int64) [][]float32 {
	t.Helper()

	rng := rand.New(rand.NewSource(seed))
	vectors := make([][]float32, n)
	for i := range vectors {
		v := make([]float32, dim)
		for d := range v {
			v[d] = float32(rng.NormFloat64())
		}
		require.True(t, distance.NormalizeL2InPlace(v))
		vectors[i] = v
	}
	return vectors
}

func TestIVFUntrainedFallback(t *testing.T) {
	ctx := context.Background()

	ix, err := New(4, func(o *Options) {
		o.TrainThreshold = 100
	})
	require.NoError(t, err)

	vectors := randomUnitVectors(t, 20, 4, 1)
	for _, v := range vectors {
		_, err := ix.Insert(ctx, v)
		require.NoError(t, err)
	}

	assert.False(t, ix.Trained())

	// Below the threshold the scan is exhaustive, so the exact nearest
	// vector must come back first.
	results, err := ix.KNNSearch(ctx, vectors[7], 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, uint32(7), results[0].Position)
	assert.InDelta(t, 0, results[0].Distance, 1e-5)
}

func TestIVFTransparentTraining(t *testing.T) {
	ctx := context.Background()

	ix, err := New(4, func(o *Options) {
		o.NumClusters = 4
		o.NumProbes = 4 // probe everything: recall stays exact
		o.TrainThreshold = 32
	})
	require.NoError(t, err)

	vectors := randomUnitVectors(t, 64, 4, 2)
	for _, v := range vectors {
		_, err := ix.Insert(ctx, v)
		require.NoError(t, err)
	}

	assert.True(t, ix.Trained())
	assert.Equal(t, 64, ix.Len())

	// With all cells probed the result is still exact.
	results, err := ix.KNNSearch(ctx, vectors[42], 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint32(42), results[0].Position)
}

func TestIVFValidation(t *testing.T) {
	ctx := context.Background()

	_, err := New(0)
	assert.ErrorIs(t, err, index.ErrInvalidDimension)

	ix, err := New(4)
	require.NoError(t, err)

	_, err = ix.Insert(ctx, []float32{1, 2})
	var mismatch *index.ErrDimensionMismatch
	assert.ErrorAs(t, err, &mismatch)

	_, err = ix.KNNSearch(ctx, []float32{1, 0, 0, 0}, 0)
	assert.ErrorIs(t, err, index.ErrInvalidK)

	results, err := ix.KNNSearch(ctx, []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIVFRebuild(t *testing.T) {
	ctx := context.Background()

	ix, err := New(4, func(o *Options) {
		o.NumClusters = 4
		o.NumProbes = 4
		o.TrainThreshold = 16
	})
	require.NoError(t, err)

	vectors := randomUnitVectors(t, 32, 4, 3)
	for _, v := range vectors {
		_, err := ix.Insert(ctx, v)
		require.NoError(t, err)
	}
	require.True(t, ix.Trained())

	// Drop the first vector, as after a delete.
	rebuilt, err := ix.Rebuild(ctx, vectors[1:])
	require.NoError(t, err)
	assert.Equal(t, 31, rebuilt.Len())
	assert.True(t, rebuilt.Trained())

	results, err := rebuilt.KNNSearch(ctx, vectors[1], 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint32(0), results[0].Position)
}

func TestIVFExplicitTrain(t *testing.T) {
	ctx := context.Background()

	ix, err := New(4, func(o *Options) {
		o.NumClusters = 4
		o.NumProbes = 4
		o.TrainThreshold = 1000 // never reached implicitly
	})
	require.NoError(t, err)

	vectors := randomUnitVectors(t, 48, 4, 4)
	for _, v := range vectors {
		_, err := ix.Insert(ctx, v)
		require.NoError(t, err)
	}
	require.False(t, ix.Trained())

	require.NoError(t, ix.Train(ctx, vectors))
	assert.True(t, ix.Trained())

	results, err := ix.KNNSearch(ctx, vectors[10], 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint32(10), results[0].Position)
}

func TestIVFTrainTooFewSamples(t *testing.T) {
	ctx := context.Background()

	ix, err := New(4, func(o *Options) {
		o.NumClusters = 16
	})
	require.NoError(t, err)

	require.NoError(t, ix.Train(ctx, randomUnitVectors(t, 4, 4, 5)))
	assert.False(t, ix.Trained())
}

func TestIVFGobRoundTrip(t *testing.T) {
	ctx := context.Background()

	ix, err := New(4, func(o *Options) {
		o.NumClusters = 4
		o.NumProbes = 4
		o.TrainThreshold = 16
	})
	require.NoError(t, err)

	vectors := randomUnitVectors(t, 32, 4, 6)
	for _, v := range vectors {
		_, err := ix.Insert(ctx, v)
		require.NoError(t, err)
	}
	require.True(t, ix.Trained())

	data, err := ix.GobEncode()
	require.NoError(t, err)

	restored := &IVF{}
	require.NoError(t, restored.GobDecode(data))
	assert.Equal(t, 32, restored.Len())
	assert.True(t, restored.Trained())

	results, err := restored.KNNSearch(ctx, vectors[5], 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint32(5), results[0].Position)
}
