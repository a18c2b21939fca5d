package cluster

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// OPTICS orders points by cosine reachability and extracts clusters with a
// fixed reachability cut (DBSCAN-style extraction at MaxEps). The k passed to
// Partition is used as the minimum neighbourhood size, so the number of
// clusters found is data-driven and may include Noise.
type OPTICS struct {
	MaxEps float64
}

// Name implements Partitioner.
func (o *OPTICS) Name() string { return string(OPTICSAlgorithm) }

// Partition implements Partitioner.
func (o *OPTICS) Partition(X mat.Matrix, k int) ([]int, error) {
	rows := rowsOf(X)
	n := len(rows)
	if n == 0 {
		return nil, fmt.Errorf("%w: matrix has no rows", ErrInfeasible)
	}
	minSamples := k
	if minSamples < 2 {
		minSamples = 2
	}
	if minSamples > n {
		return nil, fmt.Errorf("%w: min samples %d exceeds %d points", ErrInfeasible, minSamples, n)
	}

	eps := o.MaxEps
	if eps <= 0 {
		eps = DefaultOPTICSMaxEps
	}

	order, reach, core := opticsOrdering(cosineMatrix(rows), minSamples)
	return relabel(extractDBSCAN(order, reach, core, eps)), nil
}

// opticsOrdering computes the cluster ordering with an unbounded radius.
// Core distance counts the point itself as a neighbour.
func opticsOrdering(d [][]float64, minSamples int) ([]int, []float64, []float64) {
	n := len(d)
	core := make([]float64, n)
	buf := make([]float64, n)
	for i := 0; i < n; i++ {
		copy(buf, d[i])
		sort.Float64s(buf)
		core[i] = buf[minSamples-1]
	}

	reach := make([]float64, n)
	for i := range reach {
		reach[i] = math.Inf(1)
	}
	processed := make([]bool, n)
	order := make([]int, 0, n)
	for len(order) < n {
		point, best := -1, math.Inf(1)
		for i := 0; i < n; i++ {
			if processed[i] {
				continue
			}
			if point < 0 || reach[i] < best {
				point, best = i, reach[i]
			}
		}
		processed[point] = true
		order = append(order, point)

		for j := 0; j < n; j++ {
			if processed[j] {
				continue
			}
			r := math.Max(d[point][j], core[point])
			if r < reach[j] {
				reach[j] = r
			}
		}
	}
	return order, reach, core
}

// extractDBSCAN walks the ordering: a jump above eps starts a new cluster at
// a core point, or marks a non-core point as noise.
func extractDBSCAN(order []int, reach, core []float64, eps float64) []int {
	labels := make([]int, len(order))
	current := Noise
	for _, p := range order {
		if reach[p] > eps {
			if core[p] <= eps {
				current++
				labels[p] = current
			} else {
				labels[p] = Noise
			}
			continue
		}
		labels[p] = current
	}
	return labels
}
