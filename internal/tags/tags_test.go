package tags

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/bagtoad/tagcluster/internal/vocab"
	"golang.org/x/text/encoding/traditionalchinese"
)

func testVocab() *vocab.Vocabulary {
	return vocab.New(
		[]string{"long hair", "blue eyes", "hat"},
		[]string{"school uniform", "red dress", "hat", "skirt"},
		[]string{"red", "blue"},
	)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestParseTagLine(t *testing.T) {
	cases := []struct {
		line string
		text string
		want []string
	}{
		{"1girl, solo, long hair", "solo, long hair", []string{"solo", "long hair"}},
		{"a caption|||solo, hat|||more", "solo, hat", []string{"solo", "hat"}},
		{"solo", "solo", []string{"solo"}},
	}
	for _, tc := range cases {
		text, got, err := ParseTagLine(tc.line)
		if err != nil {
			t.Errorf("ParseTagLine(%q) failed: %v", tc.line, err)
			continue
		}
		if text != tc.text {
			t.Errorf("ParseTagLine(%q) text = %q, want %q", tc.line, text, tc.text)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("ParseTagLine(%q) = %v, want %v", tc.line, got, tc.want)
		}
	}

	if _, _, err := ParseTagLine("caption|||"); !errors.Is(err, ErrNotAnnotated) {
		t.Errorf("expected ErrNotAnnotated for empty pipe segment, got %v", err)
	}
	if _, _, err := ParseTagLine("   "); !errors.Is(err, ErrNotAnnotated) {
		t.Errorf("expected ErrNotAnnotated for blank line, got %v", err)
	}
}

func TestViews(t *testing.T) {
	v := testVocab()
	r := NewRecord("/x/a.png", "", []string{"solo", "hat", "long hair", "sky"}, v)

	wantCostume := "solo, hat, long hair, sky, hat, long hair, hat, long hair"
	if got := r.View(Costume); got != wantCostume {
		t.Errorf("costume view = %q, want %q", got, wantCostume)
	}
	wantAppearance := "solo, hat, long hair, sky, hat, long hair, hat, long hair, hat, long hair"
	if got := r.View(Appearance); got != wantAppearance {
		t.Errorf("appearance view = %q, want %q", got, wantAppearance)
	}
	if got := r.View(Scene); got != "solo, long hair, sky" {
		t.Errorf("scene view = %q", got)
	}

	again := NewRecord("/x/a.png", "", []string{"solo", "hat", "long hair", "sky"}, v)
	for _, axis := range Axes {
		if r.View(axis) != again.View(axis) {
			t.Errorf("%s view is not deterministic", axis)
		}
	}
}

func TestAssignOnce(t *testing.T) {
	r := NewRecord("/x/a.png", "", []string{"solo"}, testVocab())
	name := "costume_0"
	if err := r.Assign(Costume, &name, []string{"solo"}); err != nil {
		t.Fatal(err)
	}
	name = "changed"
	a, ok := r.Assignment(Costume)
	if !ok || a.NameOr("") != "costume_0" {
		t.Errorf("assignment should be copied, got %+v", a)
	}
	if err := r.Assign(Costume, nil, nil); !errors.Is(err, ErrAlreadyAssigned) {
		t.Errorf("expected ErrAlreadyAssigned, got %v", err)
	}
	if _, ok := r.Assignment(Scene); ok {
		t.Error("scene slot should be empty")
	}
}

func TestEligible(t *testing.T) {
	v := testVocab()
	records := []*Record{
		NewRecord("a", "", []string{"solo", "hat"}, v),
		NewRecord("b", "", []string{"2girls", "hat"}, v),
		NewRecord("c", "", []string{"solo", "completely nude"}, v),
	}
	if got := Eligible(records, Costume); len(got) != 1 || got[0].Path != "a" {
		t.Errorf("expected only solo clothed record for costume, got %d", len(got))
	}
	if got := Eligible(records, Scene); len(got) != 3 {
		t.Errorf("expected all records for scene, got %d", len(got))
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.png"), "img")
	writeFile(t, filepath.Join(dir, "b.txt"), "1girl, solo, hat\nsecond line")
	writeFile(t, filepath.Join(dir, "a.jpg"), "img")
	writeFile(t, filepath.Join(dir, "a.txt"), "desc|||solo, skirt|||")
	writeFile(t, filepath.Join(dir, "noann.jpg"), "img")
	writeFile(t, filepath.Join(dir, "empty.jpg"), "img")
	writeFile(t, filepath.Join(dir, "empty.txt"), "")

	records, err := Load(dir, testVocab(), nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if filepath.Base(records[0].Path) != "a.jpg" || filepath.Base(records[1].Path) != "b.png" {
		t.Errorf("records not ordered by name: %s, %s", records[0].Path, records[1].Path)
	}
	if !reflect.DeepEqual(records[1].AllTags, []string{"solo", "hat"}) {
		t.Errorf("unexpected tags: %v", records[1].AllTags)
	}
	if records[0].AnnotationPath != filepath.Join(dir, "a.txt") {
		t.Errorf("unexpected annotation path: %s", records[0].AnnotationPath)
	}
}

func TestLoadEmptyDir(t *testing.T) {
	records, err := Load(t.TempDir(), testVocab(), nil)
	if err != nil {
		t.Fatalf("expected no error for empty dir, got %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestReadBooruTag(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "pic.jpg")
	writeFile(t, img, "img")

	if bt, err := ReadBooruTag(img); err != nil || bt != nil {
		t.Fatalf("expected nil sidecar, got %v, %v", bt, err)
	}

	lines := make([]string, 19)
	lines[0] = `hatsune_miku (vocaloid), 初音\_未來`
	lines[6] = "some artist"
	lines[18] = "twintails, skirt"
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	encoded, err := traditionalchinese.Big5.NewEncoder().String(content)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "pic.jpg.boorutag"), encoded)

	bt, err := ReadBooruTag(img)
	if err != nil {
		t.Fatalf("ReadBooruTag failed: %v", err)
	}
	want := []string{"hatsune miku", "初音 未來"}
	if !reflect.DeepEqual(bt.Characters, want) {
		t.Errorf("characters = %v, want %v", bt.Characters, want)
	}
	if bt.Artist != "some artist" {
		t.Errorf("artist = %q", bt.Artist)
	}
	if !reflect.DeepEqual(bt.Tags, []string{"twintails", "skirt"}) {
		t.Errorf("tags = %v", bt.Tags)
	}
}

func TestFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	writeFile(t, path, "x")
	now := time.Now()

	if !Fresh(path, 7, now) {
		t.Error("just-written file should be fresh")
	}
	if Fresh(path, 0, now) {
		t.Error("disabled window should never be fresh")
	}
	if Fresh(path, 1, now.Add(48*time.Hour)) {
		t.Error("file older than window should not be fresh")
	}
	if Fresh(path+".missing", 7, now) {
		t.Error("missing file should not be fresh")
	}
}
