// Package characterize summarizes each cluster by its most distinctive tags.
//
// For every cluster the rows are split one-vs-rest and each term is scored
// with a chi-square statistic over the column-shifted (non-negative) matrix.
// The best scoring terms are then ranked by their mean weight inside the
// cluster to form the cluster's prompt.
package characterize

import (
	"fmt"
	"math"
	"sort"

	"github.com/bagtoad/tagcluster/internal/vectorize"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// MaxPromptTags bounds both the selected terms and the prompt length.
const MaxPromptTags = 10

// Term is one selected tag with its statistics.
type Term struct {
	Tag    string
	Score  float64
	PValue float64
	Mean   float64
}

// Cluster is a group of rows sharing a label.
type Cluster struct {
	ID      int
	Members []int
	// Prompt holds up to MaxPromptTags tags ordered by mean weight in the cluster.
	Prompt []string
	Terms  []Term
}

// Size returns the number of members.
func (c Cluster) Size() int { return len(c.Members) }

// Characterize returns one Cluster per distinct label, ordered by label.
// progressFn, when non-nil, is called once per cluster.
func Characterize(fs *vectorize.FeatureSpace, labels []int, progressFn func(current, total int)) ([]Cluster, error) {
	if fs == nil || fs.Matrix == nil {
		return nil, fmt.Errorf("empty feature space")
	}
	n, cols := fs.Matrix.Dims()
	if len(labels) != n {
		return nil, fmt.Errorf("got %d labels for %d rows", len(labels), n)
	}

	shifted := shift(fs.Matrix)
	colTotals := make([]float64, cols)
	for j := 0; j < cols; j++ {
		colTotals[j] = mat.Sum(shifted.ColView(j))
	}

	members := make(map[int][]int)
	for i, l := range labels {
		members[l] = append(members[l], i)
	}
	ids := make([]int, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	k := MaxPromptTags
	if cols < k {
		k = cols
	}
	chi := distuv.ChiSquared{K: 1}

	clusters := make([]Cluster, 0, len(ids))
	for idx, id := range ids {
		if progressFn != nil {
			progressFn(idx+1, len(ids))
		}
		rows := members[id]
		scores := chiSquare(shifted, rows, colTotals)
		selected := topK(scores, k)

		terms := make([]Term, 0, len(selected))
		present := make(map[string]bool, len(selected))
		col := make([]float64, len(rows))
		for _, j := range selected {
			for r, row := range rows {
				col[r] = shifted.At(row, j)
				if fs.Matrix.At(row, j) > 0 {
					present[fs.Vocabulary[j]] = true
				}
			}
			terms = append(terms, Term{
				Tag:    fs.Vocabulary[j],
				Score:  scores[j],
				PValue: chi.Survival(scores[j]),
				Mean:   stat.Mean(col, nil),
			})
		}
		sort.SliceStable(terms, func(a, b int) bool {
			return terms[a].Mean > terms[b].Mean
		})

		// Terms selected for their absence from the cluster do not describe it.
		var prompt []string
		for _, t := range terms {
			if present[t.Tag] && len(prompt) < MaxPromptTags {
				prompt = append(prompt, t.Tag)
			}
		}
		clusters = append(clusters, Cluster{ID: id, Members: rows, Prompt: prompt, Terms: terms})
	}
	return clusters, nil
}

// shift subtracts each column's minimum so every entry is non-negative.
func shift(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	out.Copy(m)
	for j := 0; j < c; j++ {
		low := mat.Min(m.ColView(j))
		if low == 0 {
			continue
		}
		for i := 0; i < r; i++ {
			out.Set(i, j, out.At(i, j)-low)
		}
	}
	return out
}

// chiSquare scores each column against the binary in-cluster target.
// Observed counts are the per-class column sums; expected counts are the
// column total split by class frequency. Undefined terms score 0.
func chiSquare(m *mat.Dense, rows []int, colTotals []float64) []float64 {
	n, cols := m.Dims()
	inside := make([]float64, cols)
	for _, i := range rows {
		for j := 0; j < cols; j++ {
			inside[j] += m.At(i, j)
		}
	}
	pIn := float64(len(rows)) / float64(n)
	pOut := 1 - pIn

	scores := make([]float64, cols)
	for j := 0; j < cols; j++ {
		var s float64
		obs := [2]float64{inside[j], colTotals[j] - inside[j]}
		exp := [2]float64{pIn * colTotals[j], pOut * colTotals[j]}
		for c := 0; c < 2; c++ {
			if exp[c] > 0 {
				d := obs[c] - exp[c]
				s += d * d / exp[c]
			}
		}
		if math.IsNaN(s) {
			s = 0
		}
		scores[j] = s
	}
	return scores
}

// topK returns the indices of the k highest scores in ascending column order.
// Among equal scores the later columns win.
func topK(scores []float64, k int) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] < scores[idx[b]]
	})
	sel := append([]int(nil), idx[len(idx)-k:]...)
	sort.Ints(sel)
	return sel
}
