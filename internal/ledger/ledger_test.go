package ledger

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestRecordAndRecent(t *testing.T) {
	path := DefaultPath(t.TempDir())
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	if store.Path() != path {
		t.Errorf("path = %q", store.Path())
	}

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err = store.RecordClusters(ctx, []Entry{
		{RunID: "r1", Subfolder: "5_alice", Axis: "costume", Name: "costume_0", Prompt: []string{"maid", "apron"}, Members: 4, Source: "reviewer", Sheet: "/tmp/sheets/costume_0.jpg", CreatedAt: base},
		{RunID: "r2", Subfolder: "5_alice", Axis: "scene", Name: "scene_0", Members: 2, Source: "placeholder", CreatedAt: base.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("RecordClusters: %v", err)
	}

	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].RunID != "r2" {
		t.Fatalf("expected newest first, got %+v", got)
	}
	if !reflect.DeepEqual(got[1].Prompt, []string{"maid", "apron"}) || got[1].Members != 4 {
		t.Errorf("round trip lost data: %+v", got[1])
	}
	if got[1].Sheet != "/tmp/sheets/costume_0.jpg" || got[0].Sheet != "" {
		t.Errorf("sheet = %q / %q", got[1].Sheet, got[0].Sheet)
	}
	if got[0].Prompt != nil {
		t.Errorf("empty prompt should stay nil, got %v", got[0].Prompt)
	}
	if !got[1].CreatedAt.Equal(base) {
		t.Errorf("created at = %v", got[1].CreatedAt)
	}

	one, _ := store.Recent(ctx, 1)
	if len(one) != 1 {
		t.Errorf("limit ignored: %d rows", len(one))
	}
	if _, err := store.Recent(ctx, 0); err == nil {
		t.Error("expected error for zero limit")
	}
}

func TestReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.RecordClusters(context.Background(), []Entry{{RunID: "r", Subfolder: "s", Axis: "costume", Name: "n", Source: "reviewer"}}); err != nil {
		t.Fatal(err)
	}
	store.Close()

	store, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	rows, err := store.Recent(context.Background(), 5)
	if err != nil || len(rows) != 1 {
		t.Errorf("rows = %v, err = %v", rows, err)
	}
	if err := store.RecordClusters(context.Background(), nil); err != nil {
		t.Errorf("empty insert should be a no-op: %v", err)
	}
}
