// Package testutil provides deterministic embedders and vector helpers
// for tests. Nothing in here calls a real embedding provider.
package testutil

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"

	"github.com/hupe1980/memgo/distance"
)

// StaticEmbedder returns canned vectors keyed by exact text. Unknown text
// is an error, which makes tests fail loudly instead of silently embedding
// garbage.
type StaticEmbedder struct {
	Dim     int
	Vectors map[string][]float32
}

// Embed returns the canned vector for text.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v, ok := e.Vectors[text]
	if !ok {
		return nil, fmt.Errorf("no canned vector for %q", text)
	}
	return v, nil
}

// Dimension returns the configured dimensionality.
func (e *StaticEmbedder) Dimension() int {
	return e.Dim
}

// HashEmbedder embeds text as a normalized bag-of-words vector: each
// lowercase token is hashed into a bucket and counted. Texts sharing
// tokens land near each other, which is enough to exercise ranking.
type HashEmbedder struct {
	Dim int
}

// Embed computes the token-hash embedding for text.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, e.Dim)

	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		v[h.Sum32()%uint32(e.Dim)] += 1.0
	}

	distance.NormalizeL2InPlace(v)

	return v, nil
}

// Dimension returns the configured dimensionality.
func (e *HashEmbedder) Dimension() int {
	return e.Dim
}

// RandomUnitVectors returns n deterministic unit vectors of the given
// dimension.
func RandomUnitVectors(seed int64, n, dim int) [][]float32 {
	rng := rand.New(rand.NewSource(seed))

	vectors := make([][]float32, n)
	for i := range vectors {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(rng.NormFloat64())
		}
		distance.NormalizeL2InPlace(v)
		vectors[i] = v
	}

	return vectors
}
