package hnsw

import (
	"math"

	"gonum.org/v1/gonum/blas/blas32"
)

// Magnitude computes the L2 norm of v.
func Magnitude(v []float32) float64 {
	vec := blas32.Vector{N: len(v), Inc: 1, Data: v}
	return math.Sqrt(float64(blas32.Dot(vec, vec)))
}

// CosineSimilarity computes cosine similarity between a and b using
// precomputed magnitudes. Returns 0 if either magnitude is zero.
func CosineSimilarity(a, b []float32, magA, magB float64) float64 {
	if magA == 0 || magB == 0 {
		return 0
	}
	av := blas32.Vector{N: len(a), Inc: 1, Data: a}
	bv := blas32.Vector{N: len(b), Inc: 1, Data: b}
	dot := float64(blas32.Dot(av, bv))
	return dot / (magA * magB)
}

// CosineDistance is 1 - CosineSimilarity, in [0, 2]. Returns 2 (maximum
// distance) when either magnitude is zero.
func CosineDistance(a, b []float32, magA, magB float64) float64 {
	if magA == 0 || magB == 0 {
		return 2
	}
	return 1.0 - CosineSimilarity(a, b, magA, magB)
}
