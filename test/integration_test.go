//go:build integration

package integration_test

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/bagtoad/tagcluster/internal/config"
	"github.com/bagtoad/tagcluster/internal/contactsheet"
	"github.com/bagtoad/tagcluster/internal/model"
	"github.com/bagtoad/tagcluster/internal/naming"
	"github.com/bagtoad/tagcluster/internal/pipeline"
	"github.com/bagtoad/tagcluster/internal/tags"
	"github.com/bagtoad/tagcluster/internal/vocab"
)

var modelsDir string

func TestMain(m *testing.M) {
	dir, err := model.ModelsDir("")
	if err != nil {
		panic(err)
	}
	modelsDir = dir
	// Ensure models are downloaded before tests run
	err = model.EnsureModels(modelsDir, func(filename string, downloaded, total int64) {
		// silent during tests
	})
	if err != nil {
		panic("failed to download models: " + err.Error())
	}
	os.Exit(m.Run())
}

func newRating(t *testing.T) *model.RatingSession {
	t.Helper()
	rating, err := model.NewRatingSession("", modelsDir)
	if err != nil {
		t.Fatalf("cannot create rating session: %v", err)
	}
	t.Cleanup(func() { rating.Destroy() })
	return rating
}

type namedService struct {
	calls int
}

func (s *namedService) NameOutfit(_ context.Context, jpeg []byte, existing []string) (string, error) {
	s.calls++
	if len(jpeg) == 0 {
		return "", fmt.Errorf("empty contact sheet")
	}
	return fmt.Sprintf(`This looks like a "test outfit %d".`, s.calls), nil
}

func TestRatingScores(t *testing.T) {
	rating := newRating(t)
	paths := writeFigures(t, t.TempDir(), "fig", 3, color.RGBA{30, 30, 120, 255})

	sheet, err := (&contactsheet.Builder{}).Build(paths)
	if err != nil {
		t.Fatal(err)
	}
	scores, err := rating.Scores(sheet.Image())
	if err != nil {
		t.Fatalf("Scores failed: %v", err)
	}
	if len(scores) != len(model.Labels) {
		t.Fatalf("expected %d scores, got %d", len(model.Labels), len(scores))
	}
	sum := float32(0)
	for _, s := range scores {
		if s < 0 || s > 1 {
			t.Errorf("score out of range [0,1]: %f", s)
		}
		sum += s
	}
	if sum < 0.99 || sum > 1.01 {
		t.Errorf("scores should sum to ~1.0, got %f", sum)
	}

	label, err := rating.Rate(sheet.Image())
	if err != nil {
		t.Fatal(err)
	}
	if label != model.Top(scores) {
		t.Errorf("Rate = %q, Top = %q", label, model.Top(scores))
	}
	t.Logf("Contact sheet rated %s: %v", label, scores)
}

func TestModelModePipeline(t *testing.T) {
	rating := newRating(t)
	v, err := vocab.Default()
	if err != nil {
		t.Fatal(err)
	}

	parent := t.TempDir()
	dir := filepath.Join(parent, "5_sample")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	writeAnnotated(t, dir, "maid", 4, color.RGBA{20, 20, 20, 255}, "sample, solo, maid, apron, maid headdress, indoors")
	writeAnnotated(t, dir, "uniform", 4, color.RGBA{30, 40, 120, 255}, "sample, solo, school uniform, pleated skirt, serafuku, outdoors")

	cfg := config.Default()
	cfg.Naming.Mode = string(naming.ModeModel)
	cfg.Naming.SheetDir = filepath.Join(parent, "sheets")
	cfg.LLM.APIKey = "unused"
	service := &namedService{}

	var out bytes.Buffer
	runner := &pipeline.Runner{
		Config:   &cfg,
		Vocab:    v,
		Reviewer: naming.AcceptReviewer{},
		Service:  service,
		Safety:   rating,
		Out:      &out,
	}
	res, err := runner.Run(context.Background(), parent)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Subfolders) != 1 || res.Subfolders[0].Err != nil {
		t.Fatalf("unexpected subfolder results: %+v", res.Subfolders)
	}

	for _, r := range res.Subfolders[0].Named[tags.Costume] {
		switch o := r.Outcome.(type) {
		case naming.ServiceDecision:
			t.Logf("  cluster %d (%d images) named by service: %s", r.Cluster.ID, r.Cluster.Size(), o.Name)
		case naming.HumanDecision, naming.Rejection, naming.Unnamed:
			t.Logf("  cluster %d (%d images) %s: %q", r.Cluster.ID, r.Cluster.Size(), o.Source(), o.FinalName())
		default:
			t.Errorf("unexpected outcome in model mode: %#v", o)
		}
	}
	t.Logf("Service called %d times", service.calls)
	t.Log(out.String())
}

func writeAnnotated(t *testing.T, dir, prefix string, n int, c color.RGBA, line string) {
	t.Helper()
	for _, p := range writeFigures(t, dir, prefix, n, c) {
		if err := os.WriteFile(tags.AnnotationPath(p), []byte(line+"\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

// writeFigures writes n simple PNG figures whose clothing is drawn in c.
func writeFigures(t *testing.T, dir, prefix string, n int, c color.RGBA) []string {
	t.Helper()
	var paths []string
	for i := 0; i < n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 256, 384))
		for y := 0; y < 384; y++ {
			for x := 0; x < 256; x++ {
				switch {
				case x >= 104 && x < 152 && y >= 40 && y < 96:
					img.Set(x, y, color.RGBA{250, 220, 190, 255})
				case x >= 80 && x < 176 && y >= 96 && y < 340:
					img.Set(x, y, c)
				default:
					v := uint8(160 + i*10)
					img.Set(x, y, color.RGBA{v, v, 210, 255})
				}
			}
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%d.png", prefix, i))
		f, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			t.Fatal(err)
		}
		f.Close()
		paths = append(paths, path)
	}
	return paths
}
