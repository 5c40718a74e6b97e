package facematch

import "math"

// MaxCosineDistance is returned for vectors that cannot be compared.
const MaxCosineDistance = 2.0

// CosineDistance computes the cosine distance between two vectors.
// Returns a value between 0 (identical) and 2 (opposite); mismatched
// lengths, empty vectors and zero vectors are maximally distant.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return MaxCosineDistance
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return MaxCosineDistance
	}

	// Clamp to [-1, 1] to absorb floating point error.
	similarity := max(-1, min(1, dot/(math.Sqrt(normA)*math.Sqrt(normB))))
	return 1 - similarity
}

// MeanVector averages vectors of equal length. Vectors whose length differs
// from the first one are skipped. Returns nil for no input.
func MeanVector(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	sum := make([]float64, dim)
	n := 0
	for _, v := range vectors {
		if len(v) != dim {
			continue
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
		n++
	}
	mean := make([]float32, dim)
	for i, s := range sum {
		mean[i] = float32(s / float64(n))
	}
	return mean
}
