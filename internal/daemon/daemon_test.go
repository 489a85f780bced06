package daemon

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"github.com/clubroster/roster/internal/app"
	"github.com/clubroster/roster/internal/schema"
	"github.com/clubroster/roster/internal/store"
	"github.com/clubroster/roster/internal/sync"
)

// fakeController applies patches to an in-memory Dataset.
type fakeController struct {
	mu      gosync.Mutex
	ds      *schema.Dataset
	started bool
	closed  bool
	pulls   int
}

func newFakeController() *fakeController {
	return &fakeController{ds: schema.Empty()}
}

func (f *fakeController) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}

func (f *fakeController) MutateContext(ctx context.Context, fn func(ds *schema.Dataset) (app.Patch, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started {
		return app.ErrInitializing
	}
	p, err := fn(f.ds.Clone())
	if err != nil {
		return err
	}
	p.Apply(f.ds)
	f.ds.Normalize()
	f.ds.LastUpdated++
	return nil
}

func (f *fakeController) Pull(ctx context.Context) (sync.PullResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls++
	return sync.PullResult{}, nil
}

func (f *fakeController) Snapshot() *schema.Dataset {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ds.Clone()
}

func (f *fakeController) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeController) studentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ds.Students)
}

func testConfig() *Config {
	return &Config{
		DebounceInterval: 20 * time.Millisecond,
		ShutdownTimeout:  time.Second,
		Logger:           log.New(io.Discard, "", 0),
	}
}

// runDaemon starts d in the background and returns a function that stops
// it and waits for Start to return.
func runDaemon(t *testing.T, d *Daemon) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()
	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("daemon did not stop")
			return nil
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	return len(entries)
}

func TestDecodePatch(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "students", input: `{"students":[{"id":"s1","name":"Ayu"}]}`},
		{name: "settings", input: `{"settings":{"clubName":"Scouts"}}`},
		{name: "empty collection clears", input: `{"committee":[]}`},
		{name: "empty object", input: `{}`, wantErr: true},
		{name: "unknown key", input: `{"pupils":[]}`, wantErr: true},
		{name: "version not patchable", input: `{"lastUpdated":5}`, wantErr: true},
		{name: "not json", input: `hello`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePatch([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodePatch(%s) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}

	if _, err := DecodePatch([]byte(`{}`)); !errors.Is(err, ErrEmptyPatch) {
		t.Errorf("expected ErrEmptyPatch, got %v", err)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, t.TempDir(), nil); err == nil {
		t.Error("expected error for nil controller")
	}
	if _, err := New(newFakeController(), "", nil); err == nil {
		t.Error("expected error for empty inbox")
	}
	cfg := testConfig()
	cfg.BackupSchedule = "@daily"
	if _, err := New(newFakeController(), t.TempDir(), cfg); err == nil {
		t.Error("expected error for schedule without backup dir")
	}
}

func TestDaemonAppliesInboxFiles(t *testing.T) {
	inbox := t.TempDir()
	ctrl := newFakeController()

	// Waiting before the daemon starts.
	early := filepath.Join(inbox, "001-early.json")
	if err := os.WriteFile(early, []byte(`{"students":[{"id":"s1","name":"Ayu"}]}`), 0644); err != nil {
		t.Fatalf("Failed to write inbox file: %v", err)
	}

	d, err := New(ctrl, inbox, testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	stop := runDaemon(t, d)

	waitFor(t, "early file", func() bool { return ctrl.studentCount() == 1 })

	late := filepath.Join(inbox, "002-late.json")
	if err := os.WriteFile(late, []byte(`{"students":[{"id":"s1","name":"Ayu"},{"id":"s2","name":"Budi"}]}`), 0644); err != nil {
		t.Fatalf("Failed to write inbox file: %v", err)
	}

	waitFor(t, "late file", func() bool { return ctrl.studentCount() == 2 })
	waitFor(t, "files moved", func() bool { return countFiles(t, filepath.Join(inbox, "processed")) == 2 })

	if err := stop(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if !ctrl.closed {
		t.Error("controller not closed on shutdown")
	}
	if _, err := os.Stat(early); !os.IsNotExist(err) {
		t.Error("applied file still in inbox")
	}
}

func TestDaemonRejectsBadFiles(t *testing.T) {
	inbox := t.TempDir()
	ctrl := newFakeController()

	files := map[string]string{
		"garbage.json":   `not json`,
		"invalid.json":   `{"students":[{"id":"s1","name":""}]}`,
		"duplicate.json": `{"students":[{"id":"s1","name":"A"},{"id":"s1","name":"B"}]}`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(inbox, name), []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	// Not a patch file; left alone.
	if err := os.WriteFile(filepath.Join(inbox, "notes.txt"), []byte("hi"), 0644); err != nil {
		t.Fatalf("Failed to write notes: %v", err)
	}

	d, err := New(ctrl, inbox, testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	stop := runDaemon(t, d)

	waitFor(t, "files failed", func() bool { return countFiles(t, filepath.Join(inbox, "failed")) == len(files) })
	if err := stop(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	if got := ctrl.studentCount(); got != 0 {
		t.Errorf("bad files changed the dataset: %d students", got)
	}
	if _, err := os.Stat(filepath.Join(inbox, "notes.txt")); err != nil {
		t.Errorf("non-json file was touched: %v", err)
	}
}

func TestDaemonStartTwice(t *testing.T) {
	d, err := New(newFakeController(), t.TempDir(), testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	stop := runDaemon(t, d)
	defer stop()

	waitFor(t, "daemon running", func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.running
	})
	if err := d.Start(context.Background()); err == nil {
		t.Error("second Start should fail while running")
	}
}

func TestDaemonRefreshPulls(t *testing.T) {
	ctrl := newFakeController()
	cfg := testConfig()
	cfg.RefreshInterval = 10 * time.Millisecond

	d, err := New(ctrl, t.TempDir(), cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	stop := runDaemon(t, d)

	waitFor(t, "background pulls", func() bool {
		ctrl.mu.Lock()
		defer ctrl.mu.Unlock()
		return ctrl.pulls >= 2
	})
	if err := stop(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
}

func TestBackup(t *testing.T) {
	ctrl := newFakeController()
	ctrl.started = true
	if err := ctrl.MutateContext(context.Background(), func(ds *schema.Dataset) (app.Patch, error) {
		students := []schema.Student{{ID: "s1", Name: "Ayu"}}
		return app.Patch{Students: &students}, nil
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	cfg := testConfig()
	cfg.BackupDir = filepath.Join(t.TempDir(), "backups")

	d, err := New(ctrl, t.TempDir(), cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	res, err := d.Backup()
	if err != nil {
		t.Fatalf("Backup failed: %v", err)
	}

	ds, err := store.ReadExport(res.Path)
	if err != nil {
		t.Fatalf("ReadExport failed: %v", err)
	}
	if len(ds.Students) != 1 || ds.Students[0].Name != "Ayu" {
		t.Errorf("backup content = %+v", ds.Students)
	}
}
