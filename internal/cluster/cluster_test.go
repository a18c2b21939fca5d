package cluster

import (
	"errors"
	"testing"

	"github.com/bagtoad/tagcluster/internal/tags"
	"gonum.org/v1/gonum/mat"
)

// twoGroups returns six rows forming two well separated direction groups.
func twoGroups() *mat.Dense {
	return mat.NewDense(6, 3, []float64{
		1, 0.05, 0,
		1, 0, 0.05,
		0.95, 0.05, 0,
		0, 1, 0.05,
		0.05, 1, 0,
		0, 0.95, 0.05,
	})
}

func allAlgorithms(t *testing.T) []Partitioner {
	t.Helper()
	var out []Partitioner
	for _, alg := range []Algorithm{KMeansAlgorithm, SpectralAlgorithm, AgglomerativeAlgorithm} {
		p, err := New(alg, Options{Seed: 42})
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, p)
	}
	return out
}

func TestPartitionSeparatesGroups(t *testing.T) {
	X := twoGroups()
	for _, p := range allAlgorithms(t) {
		t.Run(p.Name(), func(t *testing.T) {
			labels, err := p.Partition(X, 2)
			if err != nil {
				t.Fatalf("Partition failed: %v", err)
			}
			if len(labels) != 6 {
				t.Fatalf("expected 6 labels, got %d", len(labels))
			}
			want := []int{0, 0, 0, 1, 1, 1}
			for i := range want {
				if labels[i] != want[i] {
					t.Fatalf("labels = %v, want %v", labels, want)
				}
			}
		})
	}
}

func TestPartitionSingleCluster(t *testing.T) {
	// Identical rows: k=1 is always feasible.
	X := mat.NewDense(4, 2, []float64{1, 0, 1, 0, 1, 0, 1, 0})
	for _, p := range allAlgorithms(t) {
		labels, err := p.Partition(X, 1)
		if err != nil {
			t.Fatalf("%s: Partition failed: %v", p.Name(), err)
		}
		for _, l := range labels {
			if l != 0 {
				t.Errorf("%s: expected all zero labels, got %v", p.Name(), labels)
				break
			}
		}
	}
}

func TestPartitionInfeasible(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{1, 0, 1, 0, 0, 1, 0, 1})
	for _, p := range allAlgorithms(t) {
		if _, err := p.Partition(X, 3); !errors.Is(err, ErrInfeasible) {
			t.Errorf("%s: expected ErrInfeasible for k > distinct points, got %v", p.Name(), err)
		}
		if _, err := p.Partition(X, 0); !errors.Is(err, ErrInfeasible) {
			t.Errorf("%s: expected ErrInfeasible for k = 0, got %v", p.Name(), err)
		}
	}
}

func TestDistinct(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{1, 0, 1, 0, 0, 1, 1, 0})
	if got := Distinct(X); got != 2 {
		t.Errorf("Distinct = %d, want 2", got)
	}
}

func TestKMeansSeeded(t *testing.T) {
	X := twoGroups()
	a := &KMeans{Seed: 7}
	b := &KMeans{Seed: 7}
	la, err := a.Partition(X, 3)
	if err != nil {
		t.Fatal(err)
	}
	lb, err := b.Partition(X, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i := range la {
		if la[i] != lb[i] {
			t.Fatalf("same seed gave different labels: %v vs %v", la, lb)
		}
	}
}

func TestOPTICS(t *testing.T) {
	X := mat.NewDense(7, 3, []float64{
		1, 0.05, 0,
		1, 0, 0.05,
		0.95, 0.05, 0,
		0, 1, 0.05,
		0.05, 1, 0,
		0, 0.95, 0.05,
		0, 0, 1,
	})
	p, err := New(OPTICSAlgorithm, Options{OPTICSMaxEps: 0.2})
	if err != nil {
		t.Fatal(err)
	}
	labels, err := p.Partition(X, 3)
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}
	want := []int{0, 0, 0, 1, 1, 1, Noise}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("labels = %v, want %v", labels, want)
		}
	}

	if _, err := p.Partition(X, 8); !errors.Is(err, ErrInfeasible) {
		t.Errorf("expected ErrInfeasible when min samples exceeds points, got %v", err)
	}
}

func TestClusterCount(t *testing.T) {
	cases := []struct {
		n    int
		axis tags.Axis
		want int
	}{
		{4, tags.Costume, 2},
		{5, tags.Costume, 2},
		{6, tags.Appearance, 3},
		{4, tags.Scene, 2},
		{11, tags.Scene, 3},
		{0, tags.Costume, 1},
		{5000, tags.Costume, 300},
		{5000, tags.Scene, 300},
	}
	for _, tc := range cases {
		if got := ClusterCount(tc.n, tc.axis); got != tc.want {
			t.Errorf("ClusterCount(%d, %s) = %d, want %d", tc.n, tc.axis, got, tc.want)
		}
	}
}

func TestParseAlgorithm(t *testing.T) {
	if a, err := ParseAlgorithm(""); err != nil || a != DefaultAlgorithm {
		t.Errorf("empty name should select default, got %q, %v", a, err)
	}
	if a, err := ParseAlgorithm("K-Means"); err != nil || a != KMeansAlgorithm {
		t.Errorf("expected kmeans, got %q, %v", a, err)
	}
	if _, err := ParseAlgorithm("dbscan"); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("expected ErrUnknownAlgorithm, got %v", err)
	}
	if _, err := New("dbscan", Options{}); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("expected ErrUnknownAlgorithm from New, got %v", err)
	}
}

func TestRelabel(t *testing.T) {
	got := relabel([]int{5, 5, Noise, 2, 5, 2})
	want := []int{0, 0, Noise, 1, 0, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("relabel = %v, want %v", got, want)
		}
	}
}
