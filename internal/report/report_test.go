package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bagtoad/tagcluster/internal/materialize"
	"github.com/bagtoad/tagcluster/internal/tags"
	"github.com/bagtoad/tagcluster/internal/vocab"
)

func named(axis tags.Axis, name string, prompt ...string) func(*tags.Record) {
	return func(r *tags.Record) {
		var n *string
		if name != "" {
			n = &name
		}
		r.Assign(axis, n, prompt)
	}
}

func record(path string, assign ...func(*tags.Record)) *tags.Record {
	r := tags.NewRecord(path, "solo", []string{"solo"}, vocab.New(nil, nil, nil))
	for _, a := range assign {
		a(r)
	}
	return r
}

func sample() Summary {
	recs := []*tags.Record{
		record("a.png", named(tags.Costume, "costume_10", "maid", "apron"), named(tags.Scene, "scene_0", "sky")),
		record("b.png", named(tags.Costume, "costume_2", "kimono"), named(tags.Scene, "scene_0", "sky")),
		record("c.png", named(tags.Costume, "costume_2", "kimono"), named(tags.Scene, "", "room")),
		record("d.png", named(tags.Costume, "", "skirt")),
	}
	return Summarize("5_alice", recs, []tags.Axis{tags.Costume, tags.Scene})
}

func TestSummarize(t *testing.T) {
	s := sample()
	if s.Total != 4 {
		t.Errorf("total = %d", s.Total)
	}
	var names []string
	for _, c := range s.Clusters {
		names = append(names, c.Name)
	}
	if got := strings.Join(names, ","); got != "costume_2,costume_10,scene_0" {
		t.Errorf("names = %s, want natural order", got)
	}
	if s.Clusters[0].Count != 2 || s.Clusters[2].Count != 2 {
		t.Errorf("counts = %+v", s.Clusters)
	}
	if got := s.DynamicPrompt(tags.Costume); got != "{kimono|maid, apron}" {
		t.Errorf("dynamic prompt = %q", got)
	}
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMarkdown(&buf, sample()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	checks := []string{
		"# Cluster results - 5_alice\n",
		"Total images: 4\n",
		"## costume_2\nkimono\nImages in cluster: 2\n",
		"## costume_10\nmaid, apron\nImages in cluster: 1\n",
		"costume_dynamic_prompt : {kimono|maid, apron}  \n",
		"scene_dynamic_prompt : {sky}  \n",
	}
	for _, c := range checks {
		if !strings.Contains(out, c) {
			t.Errorf("markdown missing %q\nFull output:\n%s", c, out)
		}
	}
	if strings.Index(out, "## costume_2") > strings.Index(out, "## costume_10") {
		t.Error("clusters not natural-sorted")
	}
}

func TestResetAndAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	os.WriteFile(path, []byte("stale"), 0644)

	if err := Reset(path); err != nil {
		t.Fatal(err)
	}
	if err := Append(path, sample()); err != nil {
		t.Fatal(err)
	}
	if err := Append(path, Summary{Subfolder: "3_bob", Total: 3}); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	out := string(data)
	if strings.Contains(out, "stale") || !strings.HasPrefix(out, "# Cluster results\n\n") {
		t.Errorf("report not reset:\n%s", out)
	}
	if strings.Count(out, "# Cluster results - ") != 2 {
		t.Errorf("expected two sections:\n%s", out)
	}
}

func TestPrint(t *testing.T) {
	actions := []materialize.Action{
		{Op: materialize.OpLink},
		{Op: materialize.OpLink},
		{Op: materialize.OpMove},
		{Op: materialize.OpMove, Err: errors.New("exists")},
	}
	var buf bytes.Buffer
	Print(&buf, sample(), actions, false)
	out := buf.String()
	for _, c := range []string{"Summary: 5_alice", "Named clusters:      3", "costume_10", "link: 2", "move: 1", "skipped: 1"} {
		if !strings.Contains(out, c) {
			t.Errorf("summary missing %q\nFull output:\n%s", c, out)
		}
	}

	buf.Reset()
	Print(&buf, Summary{Subfolder: "x"}, nil, true)
	if !strings.Contains(buf.String(), "Dry Run Summary") || !strings.Contains(buf.String(), "No files to materialize") {
		t.Errorf("unexpected dry run output:\n%s", buf.String())
	}
}

func TestRenderTable(t *testing.T) {
	out := RenderTable([]string{"A", "B"}, [][]string{{"1"}, {"2", "3"}}, []Align{AlignLeft, AlignRight})
	for _, c := range []string{"A", "B", "1", "3"} {
		if !strings.Contains(out, c) {
			t.Errorf("table missing %q:\n%s", c, out)
		}
	}
	if RenderTable(nil, nil, nil) != "" {
		t.Error("expected empty table without headers")
	}
}
