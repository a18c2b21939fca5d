// Package cluster assigns tag vectors to clusters with one of several
// interchangeable algorithms.
package cluster

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/bagtoad/tagcluster/internal/tags"
	"gonum.org/v1/gonum/mat"
)

// Noise is the label density-based partitioners give to unclustered rows.
const Noise = -1

// Algorithm names a clustering strategy.
type Algorithm string

const (
	KMeansAlgorithm        Algorithm = "kmeans"
	SpectralAlgorithm      Algorithm = "spectral"
	AgglomerativeAlgorithm Algorithm = "agglomerative"
	OPTICSAlgorithm        Algorithm = "optics"
)

// DefaultAlgorithm is used when none is configured.
const DefaultAlgorithm = AgglomerativeAlgorithm

var (
	// ErrUnknownAlgorithm is returned for unsupported algorithm names.
	ErrUnknownAlgorithm = errors.New("unknown clustering algorithm")
	// ErrInfeasible is returned when the requested partition cannot be built.
	ErrInfeasible = errors.New("infeasible partition")
)

// ParseAlgorithm normalizes an algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kmeans", "k-means":
		return KMeansAlgorithm, nil
	case "spectral":
		return SpectralAlgorithm, nil
	case "agglomerative", "hierarchical", "":
		return AgglomerativeAlgorithm, nil
	case "optics":
		return OPTICSAlgorithm, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// Partitioner assigns one label per matrix row.
type Partitioner interface {
	Name() string
	// Partition returns a label per row of X. Labels are contiguous from 0 in
	// order of first appearance; density-based partitioners may also return Noise.
	Partition(X mat.Matrix, k int) ([]int, error)
}

// Options tunes the partitioners. Zero values select defaults.
type Options struct {
	Seed          int64
	Restarts      int
	MaxIterations int
	// OPTICSMaxEps is the reachability cut used to extract OPTICS clusters.
	OPTICSMaxEps float64
}

const (
	DefaultRestarts      = 8
	DefaultMaxIterations = 300
	DefaultOPTICSMaxEps  = 0.5
)

func (o Options) withDefaults() Options {
	if o.Restarts <= 0 {
		o.Restarts = DefaultRestarts
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.OPTICSMaxEps <= 0 {
		o.OPTICSMaxEps = DefaultOPTICSMaxEps
	}
	return o
}

// New returns the partitioner for alg.
func New(alg Algorithm, opts Options) (Partitioner, error) {
	opts = opts.withDefaults()
	switch alg {
	case KMeansAlgorithm:
		return &KMeans{Restarts: opts.Restarts, MaxIterations: opts.MaxIterations, Seed: opts.Seed}, nil
	case SpectralAlgorithm:
		return &Spectral{Restarts: opts.Restarts, MaxIterations: opts.MaxIterations, Seed: opts.Seed}, nil
	case AgglomerativeAlgorithm:
		return &Agglomerative{}, nil
	case OPTICSAlgorithm:
		return &OPTICS{MaxEps: opts.OPTICSMaxEps}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, alg)
}

const maxClusters = 300

// ClusterCount derives the requested cluster count from the number of
// eligible records: ceil(n/5)+1 for subject axes and ceil(n/10)+1 for scene,
// capped at 300.
func ClusterCount(n int, axis tags.Axis) int {
	div := 5.0
	if axis == tags.Scene {
		div = 10
	}
	k := int(math.Ceil(float64(n)/div)) + 1
	if k > maxClusters {
		k = maxClusters
	}
	return k
}

func rowsOf(X mat.Matrix) [][]float64 {
	r, c := X.Dims()
	rows := make([][]float64, r)
	for i := 0; i < r; i++ {
		rows[i] = make([]float64, c)
		mat.Row(rows[i], i, X)
	}
	return rows
}

// checkFeasible fails when rows cannot be split into k non-empty groups.
func checkFeasible(rows [][]float64, k int) error {
	if len(rows) == 0 {
		return fmt.Errorf("%w: matrix has no rows", ErrInfeasible)
	}
	if k <= 0 {
		return fmt.Errorf("%w: cluster count %d must be positive", ErrInfeasible, k)
	}
	if k == 1 {
		return nil
	}
	if d := distinctRows(rows); d < k {
		return fmt.Errorf("%w: %d clusters requested but only %d distinct points", ErrInfeasible, k, d)
	}
	return nil
}

// Distinct returns the number of distinct rows of X. Callers use it to keep
// the requested cluster count feasible.
func Distinct(X mat.Matrix) int {
	return distinctRows(rowsOf(X))
}

func distinctRows(rows [][]float64) int {
	seen := make(map[string]struct{}, len(rows))
	var sb strings.Builder
	for _, r := range rows {
		sb.Reset()
		for _, v := range r {
			fmt.Fprintf(&sb, "%x,", math.Float64bits(v))
		}
		seen[sb.String()] = struct{}{}
	}
	return len(seen)
}

// relabel maps labels to 0..m-1 in order of first appearance, keeping Noise.
func relabel(labels []int) []int {
	next := 0
	mapping := make(map[int]int)
	out := make([]int, len(labels))
	for i, l := range labels {
		if l == Noise {
			out[i] = Noise
			continue
		}
		m, ok := mapping[l]
		if !ok {
			m = next
			mapping[l] = m
			next++
		}
		out[i] = m
	}
	return out
}
