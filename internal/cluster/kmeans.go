package cluster

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// KMeans is Lloyd's algorithm with k-means++ seeding. It runs Restarts
// independent initializations and keeps the one with the lowest inertia.
type KMeans struct {
	Restarts      int
	MaxIterations int
	Seed          int64
}

// Name implements Partitioner.
func (km *KMeans) Name() string { return string(KMeansAlgorithm) }

// Partition implements Partitioner.
func (km *KMeans) Partition(X mat.Matrix, k int) ([]int, error) {
	rows := rowsOf(X)
	if err := checkFeasible(rows, k); err != nil {
		return nil, err
	}
	labels, _ := km.fit(rows, k)
	return relabel(labels), nil
}

func (km *KMeans) fit(rows [][]float64, k int) ([]int, float64) {
	restarts := km.Restarts
	if restarts <= 0 {
		restarts = DefaultRestarts
	}
	maxIter := km.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	rng := rand.New(rand.NewSource(km.Seed))
	var best []int
	bestInertia := math.Inf(1)
	for r := 0; r < restarts; r++ {
		centroids := seedPlusPlus(rows, k, rng)
		labels, inertia := lloyd(rows, centroids, maxIter)
		if inertia < bestInertia {
			bestInertia = inertia
			best = labels
		}
	}
	return best, bestInertia
}

// seedPlusPlus picks k initial centroids, each new one sampled with
// probability proportional to its squared distance from the nearest chosen one.
func seedPlusPlus(rows [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(rows)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), rows[rng.Intn(n)]...))

	d2 := make([]float64, n)
	for i, r := range rows {
		d2[i] = sqDist(r, centroids[0])
	}
	for len(centroids) < k {
		total := floats.Sum(d2)
		next := 0
		if total > 0 {
			target := rng.Float64() * total
			acc := 0.0
			for i, d := range d2 {
				acc += d
				if acc >= target && d > 0 {
					next = i
					break
				}
			}
		} else {
			next = rng.Intn(n)
		}
		c := append([]float64(nil), rows[next]...)
		centroids = append(centroids, c)
		for i, r := range rows {
			if d := sqDist(r, c); d < d2[i] {
				d2[i] = d
			}
		}
	}
	return centroids
}

func lloyd(rows [][]float64, centroids [][]float64, maxIter int) ([]int, float64) {
	n := len(rows)
	k := len(centroids)
	dim := len(rows[0])
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}

	var inertia float64
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		inertia = 0
		for i, r := range rows {
			best, bestD := 0, math.Inf(1)
			for c, cen := range centroids {
				if d := sqDist(r, cen); d < bestD {
					best, bestD = c, d
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
			inertia += bestD
		}
		if !changed {
			break
		}

		counts := make([]int, k)
		for c := range centroids {
			for j := range centroids[c] {
				centroids[c][j] = 0
			}
		}
		for i, r := range rows {
			floats.Add(centroids[labels[i]], r)
			counts[labels[i]]++
		}
		for c := range centroids {
			if counts[c] > 0 {
				floats.Scale(1/float64(counts[c]), centroids[c])
				continue
			}
			// Empty cluster: move it onto the point farthest from its centroid.
			far, farD := 0, -1.0
			for i, r := range rows {
				if d := sqDist(r, centroids[labels[i]]); d > farD {
					far, farD = i, d
				}
			}
			centroids[c] = append(make([]float64, 0, dim), rows[far]...)
		}
	}
	return labels, inertia
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
