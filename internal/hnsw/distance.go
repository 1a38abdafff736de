package hnsw

import "math"

// Normalize returns a unit-length copy of v. A zero vector is returned
// unchanged; its distance to everything is then exactly 1.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	inv := 1.0 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

// dot computes the inner product of two equal-length vectors.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// cosineDistance computes 1 - dot(a, b) on pre-normalized vectors.
// The result is clamped to [0, 2] against float drift.
func cosineDistance(a, b []float32) float64 {
	d := 1.0 - dot(a, b)
	if d < 0 {
		return 0
	}
	if d > 2 {
		return 2
	}
	return d
}

// CosineDistance computes the cosine distance between two raw vectors,
// normalizing both. Exported for tests and brute-force comparisons.
func CosineDistance(a, b []float32) float64 {
	return cosineDistance(Normalize(a), Normalize(b))
}
