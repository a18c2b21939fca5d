package cluster

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// CosineSimilarity returns the cosine of the angle between a and b.
// A zero vector has similarity 0 with everything.
func CosineSimilarity(a, b []float64) float64 {
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

// CosineDistance returns 1 - CosineSimilarity, clamped to [0, 2].
func CosineDistance(a, b []float64) float64 {
	d := 1 - CosineSimilarity(a, b)
	return math.Max(0, math.Min(2, d))
}

// cosineMatrix returns the full pairwise cosine distance matrix.
func cosineMatrix(rows [][]float64) [][]float64 {
	n := len(rows)
	norms := make([]float64, n)
	for i, r := range rows {
		norms[i] = floats.Norm(r, 2)
	}
	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sim := 0.0
			if norms[i] > 0 && norms[j] > 0 {
				sim = floats.Dot(rows[i], rows[j]) / (norms[i] * norms[j])
			}
			v := math.Max(0, math.Min(2, 1-sim))
			d[i][j] = v
			d[j][i] = v
		}
	}
	return d
}
