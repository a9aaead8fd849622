// Package embedding defines the embedding provider contract.
//
// An Embedder turns text into a fixed-dimensional float32 vector. The
// memory store normalizes vectors itself, so providers do not need to
// return unit-length embeddings.
package embedding

import "context"

// Embedder converts text into a dense vector representation.
//
// Implementations must be safe for concurrent use and must return vectors
// of exactly Dimension() entries for every input.
type Embedder interface {
	// Embed returns the embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the dimensionality of the produced vectors.
	Dimension() int
}
