// Package vectorize turns tag projection strings into a TF-IDF weighted
// term-document matrix.
//
// Weighting follows the common smoothed formulation: raw term count times
// ln((1+n)/(1+df))+1, with each row scaled to unit L2 norm. The vocabulary is
// the sorted set of terms seen in the batch, so identical input always yields
// an identical matrix.
package vectorize

import (
	"errors"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrEmptyCorpus is returned when there are no documents to vectorize.
var ErrEmptyCorpus = errors.New("no documents to vectorize")

const separator = ", "

// FeatureSpace is the weighted matrix (rows = documents) and its vocabulary.
type FeatureSpace struct {
	Matrix     *mat.Dense
	Vocabulary []string
}

// Rows returns the number of documents.
func (fs *FeatureSpace) Rows() int {
	if fs == nil || fs.Matrix == nil {
		return 0
	}
	r, _ := fs.Matrix.Dims()
	return r
}

// Column returns the index of term in the vocabulary, or -1.
func (fs *FeatureSpace) Column(term string) int {
	i := sort.SearchStrings(fs.Vocabulary, term)
	if i < len(fs.Vocabulary) && fs.Vocabulary[i] == term {
		return i
	}
	return -1
}

// Fit builds the feature space for docs.
func Fit(docs []string) (*FeatureSpace, error) {
	if len(docs) == 0 {
		return &FeatureSpace{}, ErrEmptyCorpus
	}

	tokenized := make([][]string, len(docs))
	df := make(map[string]int)
	for i, d := range docs {
		tokenized[i] = tokenize(d)
		seen := make(map[string]bool)
		for _, tok := range tokenized[i] {
			if !seen[tok] {
				seen[tok] = true
				df[tok]++
			}
		}
	}

	vocab := make([]string, 0, len(df))
	for term := range df {
		vocab = append(vocab, term)
	}
	sort.Strings(vocab)
	if len(vocab) == 0 {
		return &FeatureSpace{}, ErrEmptyCorpus
	}

	index := make(map[string]int, len(vocab))
	idf := make([]float64, len(vocab))
	n := float64(len(docs))
	for j, term := range vocab {
		index[term] = j
		idf[j] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	m := mat.NewDense(len(docs), len(vocab), nil)
	row := make([]float64, len(vocab))
	for i, toks := range tokenized {
		for j := range row {
			row[j] = 0
		}
		for _, tok := range toks {
			row[index[tok]]++
		}
		floats.Mul(row, idf)
		if norm := floats.Norm(row, 2); norm > 0 {
			floats.Scale(1/norm, row)
		}
		m.SetRow(i, row)
	}

	return &FeatureSpace{Matrix: m, Vocabulary: vocab}, nil
}

func tokenize(doc string) []string {
	var out []string
	for _, tok := range strings.Split(doc, separator) {
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
