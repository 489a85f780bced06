package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clubroster/roster/internal/app"
	"github.com/clubroster/roster/internal/config"
	"github.com/clubroster/roster/internal/logging"
	"github.com/clubroster/roster/internal/schema"
	"github.com/clubroster/roster/internal/store"
)

// useTempConfig points the command globals at a scratch data directory.
func useTempConfig(t *testing.T) {
	t.Helper()

	prevCfg, prevLogs := cfg, logs
	cfg = &config.Config{
		DataDir:      t.TempDir(),
		HTTPTimeout:  2 * time.Second,
		StatusRevert: time.Hour,
	}
	logs = logging.New(logging.Options{})
	t.Cleanup(func() {
		cfg, logs = prevCfg, prevLogs
		current = nil
	})
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// loadStored reopens the Local Store and returns what it holds.
func loadStored(t *testing.T) *schema.Dataset {
	t.Helper()
	st, err := store.Open(cfg.StorePath(), quietLogger())
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer st.Close()
	return st.Load(context.Background())
}

func TestExitClosesOpenSession(t *testing.T) {
	useTempConfig(t)

	code := -1
	osExit = func(c int) { code = c }
	t.Cleanup(func() { osExit = os.Exit })

	s := openSession(context.Background())
	students := []schema.Student{{ID: "s1", Name: "Ayu", Class: "X"}}
	if err := s.ctrl.Update(app.Patch{Students: &students}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	exitOn(errors.New("boom"), "testing")

	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !s.closed || current != nil {
		t.Error("session still open after exit")
	}
	if got := loadStored(t).Students; len(got) != 1 || got[0].ID != "s1" {
		t.Errorf("stored students = %+v, want [s1]", got)
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	useTempConfig(t)

	s := openSession(context.Background())
	s.close()
	s.close()

	if current != nil {
		t.Error("closed session still registered")
	}
}

func TestPullReportsStartupPull(t *testing.T) {
	useTempConfig(t)

	var fetches atomic.Int32
	remoteDS := schema.Empty()
	remoteDS.Students = []schema.Student{{ID: "r1", Name: "Remote", Class: "X"}}
	remoteDS.LastUpdated = 2000
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fetches.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(remoteDS)
	}))
	defer srv.Close()

	st, err := store.Open(cfg.StorePath(), quietLogger())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	local := schema.Empty()
	local.Settings = &schema.Settings{EndpointURL: srv.URL}
	local.Students = []schema.Student{{ID: "l1", Name: "Local", Class: "X"}}
	local.LastUpdated = 1000
	if err := st.Save(context.Background(), local); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	_ = st.Close()

	pullCmd.SetContext(context.Background())
	pullCmd.Run(pullCmd, nil)

	if got := fetches.Load(); got != 1 {
		t.Errorf("pull fetched %d times, want 1", got)
	}
	if got := loadStored(t); got.LastUpdated != 2000 || got.Students[0].ID != "r1" {
		t.Errorf("stored dataset = version %d %+v, want the remote copy", got.LastUpdated, got.Students)
	}
}
