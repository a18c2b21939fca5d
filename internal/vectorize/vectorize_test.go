package vectorize

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestFitVocabularyAndWeights(t *testing.T) {
	docs := []string{
		"solo, hat, hat",
		"solo, skirt",
	}
	fs, err := Fit(docs)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	wantVocab := []string{"hat", "skirt", "solo"}
	if !reflect.DeepEqual(fs.Vocabulary, wantVocab) {
		t.Fatalf("vocabulary = %v, want %v", fs.Vocabulary, wantVocab)
	}
	if fs.Rows() != 2 {
		t.Fatalf("expected 2 rows, got %d", fs.Rows())
	}

	// Row 0: hat count 2, idf ln(3/2)+1; solo count 1, idf 1.
	idfRare := math.Log(3.0/2.0) + 1
	hat := 2 * idfRare
	solo := 1.0
	norm := math.Hypot(hat, solo)
	if got := fs.Matrix.At(0, 0); math.Abs(got-hat/norm) > 1e-12 {
		t.Errorf("hat weight = %f, want %f", got, hat/norm)
	}
	if got := fs.Matrix.At(0, 2); math.Abs(got-solo/norm) > 1e-12 {
		t.Errorf("solo weight = %f, want %f", got, solo/norm)
	}
	if got := fs.Matrix.At(0, 1); got != 0 {
		t.Errorf("absent term should have zero weight, got %f", got)
	}

	for i := 0; i < fs.Rows(); i++ {
		if n := mat.Norm(fs.Matrix.RowView(i), 2); math.Abs(n-1) > 1e-12 {
			t.Errorf("row %d norm = %f, want 1", i, n)
		}
	}

	if fs.Column("skirt") != 1 || fs.Column("missing") != -1 {
		t.Error("Column lookup mismatch")
	}
}

func TestFitDeterministic(t *testing.T) {
	docs := []string{"b, a, c", "c, d", "a, a, e"}
	first, err := Fit(docs)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Fit(docs)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first.Vocabulary, second.Vocabulary) {
		t.Error("vocabulary differs between runs")
	}
	if !mat.Equal(first.Matrix, second.Matrix) {
		t.Error("matrix differs between runs")
	}
}

func TestFitEmpty(t *testing.T) {
	fs, err := Fit(nil)
	if !errors.Is(err, ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}
	if fs.Rows() != 0 {
		t.Errorf("expected zero rows, got %d", fs.Rows())
	}

	if _, err := Fit([]string{""}); !errors.Is(err, ErrEmptyCorpus) {
		t.Errorf("expected ErrEmptyCorpus for tokenless corpus, got %v", err)
	}
}
