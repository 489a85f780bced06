package store

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/clubroster/roster/internal/schema"
)

// setupTestStore opens a store in a temporary directory.
func setupTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "roster.db")

	st, err := Open(path, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return st, path
}

// writeRaw stores an arbitrary blob under DatasetKey to simulate corrupted
// storage.
func writeRaw(t *testing.T, st *Store, raw string) {
	t.Helper()

	_, err := st.conn.Exec(
		`INSERT INTO kv (key, value, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		DatasetKey, raw, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		t.Fatalf("failed to write raw value: %v", err)
	}
}

func sampleDataset() *schema.Dataset {
	ds := schema.Empty()
	ds.Teachers = []schema.Teacher{{ID: "t1", Name: "Pak Joko", Role: "Advisor"}}
	ds.Students = []schema.Student{
		{ID: "s1", Name: "Ayu", Class: "X-1"},
		{ID: "s2", Name: "Budi", Class: "X-2"},
	}
	ds.Committee = []schema.CommitteeMember{{ID: "c1", StudentID: "s1", Position: "Chair"}}
	ds.Attendance = []schema.Attendance{{ID: "a1", Date: "2026-01-10", Presents: []string{"s1", "s2"}}}
	ds.Activities = []schema.Activity{{ID: "v1", Date: "2026-01-12", Title: "Workshop"}}
	ds.Plans = []schema.AnnualPlan{{ID: "p1", Month: 7, Program: "Orientation"}}
	ds.Settings = &schema.Settings{EndpointURL: "https://script.example.com/exec", AutoSync: true, ClubName: "Robotics"}
	ds.LastUpdated = 1768032989000
	return ds
}

func TestLoad_Empty(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := context.Background()

	first := st.Load(ctx)
	second := st.Load(ctx)

	if diff := cmp.Diff(schema.Empty(), first); diff != "" {
		t.Errorf("expected empty dataset (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("two loads of an empty store differ:\n%s", diff)
	}
	if first == second {
		t.Error("loads must return independently constructed datasets")
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := context.Background()

	_ = st.Load(ctx)
	want := sampleDataset()
	if err := st.Save(ctx, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got := st.Load(ctx)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSave_Overwrites(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := context.Background()

	first := sampleDataset()
	if err := st.Save(ctx, first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	second := schema.Empty()
	second.LastUpdated = first.LastUpdated + 1
	if err := st.Save(ctx, second); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got := st.Load(ctx)
	if len(got.Students) != 0 || got.LastUpdated != second.LastUpdated {
		t.Errorf("expected second save to replace the first, got %+v", got.Stats())
	}

	var rows int
	if err := st.conn.QueryRow("SELECT COUNT(*) FROM kv").Scan(&rows); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if rows != 1 {
		t.Errorf("expected a single row, got %d", rows)
	}
}

func TestLoad_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "garbage", raw: "{{not json"},
		{name: "wrong shape", raw: `{"hello":"world"}`},
		{name: "empty", raw: ""},
		{name: "wrong types", raw: `{"students":42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, _ := setupTestStore(t)
			writeRaw(t, st, tt.raw)

			got := st.Load(context.Background())
			if diff := cmp.Diff(schema.Empty(), got); diff != "" {
				t.Errorf("expected fallback to empty (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSave_Persists(t *testing.T) {
	st, path := setupTestStore(t)
	ctx := context.Background()

	want := sampleDataset()
	if err := st.Save(ctx, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(path, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	if diff := cmp.Diff(want, reopened.Load(ctx)); diff != "" {
		t.Errorf("dataset lost across reopen (-want +got):\n%s", diff)
	}
}

func TestExistsAndSavedAt(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := context.Background()

	ok, err := st.Exists(ctx)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if ok {
		t.Error("expected no dataset in a new store")
	}

	before := time.Now().Add(-time.Second)
	if err := st.Save(ctx, schema.Empty()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	ok, err = st.Exists(ctx)
	if err != nil || !ok {
		t.Fatalf("expected dataset to exist, got ok=%v err=%v", ok, err)
	}

	savedAt, err := st.SavedAt(ctx)
	if err != nil {
		t.Fatalf("SavedAt failed: %v", err)
	}
	if savedAt.Before(before) {
		t.Errorf("saved_at %v is before %v", savedAt, before)
	}
}

func TestSave_Nil(t *testing.T) {
	st, _ := setupTestStore(t)
	if err := st.Save(context.Background(), nil); err == nil {
		t.Error("expected error saving nil dataset")
	}
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exports", "club.json")
	ds := sampleDataset()

	result, err := Export(path, ds, ExportOptions{})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if result.Stats.Students != 2 || result.Bytes == 0 {
		t.Errorf("unexpected result: %+v", result)
	}

	got, err := ReadExport(path)
	if err != nil {
		t.Fatalf("ReadExport failed: %v", err)
	}
	if diff := cmp.Diff(ds, got); diff != "" {
		t.Errorf("export round trip mismatch (-want +got):\n%s", diff)
	}

	// Second export with backup keeps the first file.
	ds.LastUpdated++
	result, err = Export(path, ds, ExportOptions{Backup: true})
	if err != nil {
		t.Fatalf("Export with backup failed: %v", err)
	}
	if result.BackupCreated == "" {
		t.Fatal("expected backup to be created")
	}
	if _, err := os.Stat(result.BackupCreated); err != nil {
		t.Errorf("backup file missing: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestExport_DryRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "club.json")

	result, err := Export(path, sampleDataset(), ExportOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if result.Bytes == 0 {
		t.Error("dry run should still report size")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("dry run must not write")
	}
}

func TestReadExport_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"unrelated":true}`), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := ReadExport(path)
	if err == nil || !strings.Contains(err.Error(), "invalid export") {
		t.Errorf("expected invalid export error, got %v", err)
	}
}

func TestSnapshotName(t *testing.T) {
	now := time.Date(2026, 1, 10, 7, 36, 29, 0, time.UTC)
	if got := SnapshotName(now); got != "roster-20260110-073629.json" {
		t.Errorf("unexpected snapshot name %q", got)
	}
}
