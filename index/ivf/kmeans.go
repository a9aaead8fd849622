package ivf

import (
	"math"
	"math/rand"
	"sort"

	"github.com/hupe1980/memgo/distance"
)

// trainKMeans runs Lloyd's algorithm and returns k centroids. The rng makes
// centroid seeding deterministic for a fixed seed.
func trainKMeans(rng *rand.Rand, vectors [][]float32, k, maxIter int) [][]float32 {
	n := len(vectors)
	if n < k {
		return nil // Not enough vectors to cluster
	}

	dim := len(vectors[0])

	// Initialize centroids from random distinct data points.
	centroids := make([][]float32, k)
	perm := rng.Perm(n)
	for i := 0; i < k; i++ {
		centroids[i] = make([]float32, dim)
		copy(centroids[i], vectors[perm[i]])
	}

	assignments := make([]int, n)
	counts := make([]int, k)
	sums := make([][]float32, k)
	for i := range sums {
		sums[i] = make([]float32, dim)
	}

	for iter := 0; iter < maxIter; iter++ {
		changed := false

		// Assignment step
		for i, vec := range vectors {
			best := nearestCentroid(vec, centroids)
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		if !changed {
			break
		}

		// Update step
		for i := range sums {
			for d := range sums[i] {
				sums[i][d] = 0
			}
			counts[i] = 0
		}

		for i, vec := range vectors {
			cluster := assignments[i]
			for d, x := range vec {
				sums[cluster][d] += x
			}
			counts[cluster]++
		}

		for j := 0; j < k; j++ {
			if counts[j] > 0 {
				scale := 1.0 / float32(counts[j])
				for d := 0; d < dim; d++ {
					centroids[j][d] = sums[j][d] * scale
				}
			} else {
				// Re-initialize empty cluster with a random point
				copy(centroids[j], vectors[rng.Intn(n)])
			}
		}
	}

	return centroids
}

// nearestCentroid finds the closest centroid for a vector.
func nearestCentroid(vec []float32, centroids [][]float32) int {
	best := -1
	minDist := float32(math.MaxFloat32)

	for j, center := range centroids {
		if d := distance.SquaredL2(vec, center); d < minDist {
			minDist = d
			best = j
		}
	}

	return best
}

// closestCentroids returns the indices of the n closest centroids to the
// query vector, nearest first.
func closestCentroids(query []float32, centroids [][]float32, n int) []int {
	if n > len(centroids) {
		n = len(centroids)
	}

	type centroidDist struct {
		id   int
		dist float32
	}

	dists := make([]centroidDist, len(centroids))
	for i, center := range centroids {
		dists[i] = centroidDist{id: i, dist: distance.SquaredL2(query, center)}
	}

	sort.Slice(dists, func(i, j int) bool { return dists[i].dist < dists[j].dist })

	result := make([]int, n)
	for i := 0; i < n; i++ {
		result[i] = dists[i].id
	}

	return result
}
