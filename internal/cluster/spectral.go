package cluster

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Spectral clusters the rows of a cosine-affinity graph. The k leading
// eigenvectors of the normalized affinity D^-1/2 A D^-1/2 form an embedding
// whose unit-length rows are then grouped with k-means.
type Spectral struct {
	Restarts      int
	MaxIterations int
	Seed          int64
}

// Name implements Partitioner.
func (s *Spectral) Name() string { return string(SpectralAlgorithm) }

// Partition implements Partitioner.
func (s *Spectral) Partition(X mat.Matrix, k int) ([]int, error) {
	rows := rowsOf(X)
	if err := checkFeasible(rows, k); err != nil {
		return nil, err
	}
	n := len(rows)
	if k == 1 {
		return make([]int, n), nil
	}

	affinity := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sim := math.Max(0, CosineSimilarity(rows[i], rows[j]))
			affinity.SetSym(i, j, sim)
		}
	}

	invSqrtDeg := make([]float64, n)
	for i := 0; i < n; i++ {
		var deg float64
		for j := 0; j < n; j++ {
			deg += affinity.At(i, j)
		}
		if deg > 0 {
			invSqrtDeg[i] = 1 / math.Sqrt(deg)
		}
	}
	norm := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			norm.SetSym(i, j, affinity.At(i, j)*invSqrtDeg[i]*invSqrtDeg[j])
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(norm, true); !ok {
		return nil, fmt.Errorf("%w: eigendecomposition did not converge", ErrInfeasible)
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Eigenvalues are ascending, so the leading vectors are the last k columns.
	embedding := make([][]float64, n)
	for i := 0; i < n; i++ {
		embedding[i] = make([]float64, k)
		for c := 0; c < k; c++ {
			embedding[i][c] = vecs.At(i, n-1-c)
		}
		if l := floats.Norm(embedding[i], 2); l > 0 {
			floats.Scale(1/l, embedding[i])
		}
	}

	km := &KMeans{Restarts: s.Restarts, MaxIterations: s.MaxIterations, Seed: s.Seed}
	if d := distinctRows(embedding); d < k {
		return nil, fmt.Errorf("%w: spectral embedding has %d distinct points for %d clusters", ErrInfeasible, d, k)
	}
	labels, _ := km.fit(embedding, k)
	return relabel(labels), nil
}
