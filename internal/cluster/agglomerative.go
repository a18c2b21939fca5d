package cluster

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Agglomerative is bottom-up average-linkage clustering over cosine distance.
// The merge tree is built with the nearest-neighbour chain algorithm, then cut
// once k clusters remain.
type Agglomerative struct{}

// Name implements Partitioner.
func (a *Agglomerative) Name() string { return string(AgglomerativeAlgorithm) }

type merge struct {
	a, b   int
	height float64
	order  int
}

// Partition implements Partitioner.
func (a *Agglomerative) Partition(X mat.Matrix, k int) ([]int, error) {
	rows := rowsOf(X)
	if err := checkFeasible(rows, k); err != nil {
		return nil, err
	}
	n := len(rows)

	merges := nnChain(cosineMatrix(rows))
	sort.SliceStable(merges, func(i, j int) bool {
		if merges[i].height != merges[j].height {
			return merges[i].height < merges[j].height
		}
		return merges[i].order < merges[j].order
	})

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	for _, m := range merges[:n-k] {
		ra, rb := find(m.a), find(m.b)
		if ra < rb {
			parent[rb] = ra
		} else {
			parent[ra] = rb
		}
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = find(i)
	}
	return relabel(labels), nil
}

// nnChain returns the n-1 merges of average linkage over the distance matrix d.
// Merge endpoints are representative point indices of the merged clusters.
// d is consumed.
func nnChain(d [][]float64) []merge {
	n := len(d)
	size := make([]int, n)
	active := make([]bool, n)
	for i := range size {
		size[i] = 1
		active[i] = true
	}

	merges := make([]merge, 0, n-1)
	chain := make([]int, 0, n)
	remaining := n
	for remaining > 1 {
		if len(chain) == 0 {
			for i := 0; i < n; i++ {
				if active[i] {
					chain = append(chain, i)
					break
				}
			}
		}
		for {
			x := chain[len(chain)-1]
			var prev = -1
			if len(chain) > 1 {
				prev = chain[len(chain)-2]
			}
			y, best := -1, math.Inf(1)
			if prev >= 0 {
				y, best = prev, d[x][prev]
			}
			for j := 0; j < n; j++ {
				if j == x || !active[j] {
					continue
				}
				if d[x][j] < best {
					y, best = j, d[x][j]
				}
			}
			if y == prev {
				chain = chain[:len(chain)-2]
				// Merge y into x; x keeps representing the union.
				merges = append(merges, merge{a: x, b: y, height: best, order: len(merges)})
				for j := 0; j < n; j++ {
					if !active[j] || j == x || j == y {
						continue
					}
					v := (float64(size[x])*d[x][j] + float64(size[y])*d[y][j]) / float64(size[x]+size[y])
					d[x][j] = v
					d[j][x] = v
				}
				size[x] += size[y]
				active[y] = false
				remaining--
				break
			}
			chain = append(chain, y)
		}
	}
	return merges
}
