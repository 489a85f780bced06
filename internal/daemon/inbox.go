package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/clubroster/roster/internal/app"
	"github.com/clubroster/roster/internal/schema"
)

// ErrEmptyPatch is returned for inbox files that change nothing.
var ErrEmptyPatch = errors.New("patch contains no dataset keys")

// DecodePatch parses an inbox file. Unknown keys are rejected so typos
// don't silently apply nothing.
func DecodePatch(data []byte) (app.Patch, error) {
	var p app.Patch
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return app.Patch{}, fmt.Errorf("failed to decode patch: %w", err)
	}
	if p.IsEmpty() {
		return app.Patch{}, ErrEmptyPatch
	}
	return p, nil
}

func (d *Daemon) processedDir() string {
	return filepath.Join(d.inboxDir, "processed")
}

func (d *Daemon) failedDir() string {
	return filepath.Join(d.inboxDir, "failed")
}

// scanInbox applies files that arrived while the daemon was not running,
// oldest name first.
func (d *Daemon) scanInbox(ctx context.Context) error {
	entries, err := os.ReadDir(d.inboxDir)
	if err != nil {
		return fmt.Errorf("failed to read inbox: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	if len(names) > 0 {
		d.config.Logger.Printf("Applying %d waiting inbox files", len(names))
	}
	for _, name := range names {
		path := filepath.Join(d.inboxDir, name)
		if err := d.applyInboxFile(ctx, path); err != nil {
			d.config.Logger.Printf("Error applying %s: %v", path, err)
		}
	}
	return nil
}

// applyInboxFile applies one patch file and files it under processed/ or
// failed/. A file the controller refuses for now stays in the inbox and
// is queued again.
func (d *Daemon) applyInboxFile(ctx context.Context, path string) error {
	// #nosec G304 - path is inside the inbox directory
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read inbox file: %w", err)
	}

	p, err := DecodePatch(data)
	if err != nil {
		d.file(path, d.failedDir())
		return err
	}

	err = d.ctrl.MutateContext(ctx, func(ds *schema.Dataset) (app.Patch, error) {
		candidate := ds.Clone()
		p.Apply(candidate)
		candidate.Normalize()
		if err := candidate.Validate(); err != nil {
			return app.Patch{}, fmt.Errorf("patch would leave dataset invalid: %w", err)
		}
		return p, nil
	})
	if errors.Is(err, app.ErrInitializing) {
		d.queueChange(path)
		return err
	}
	if err != nil {
		d.file(path, d.failedDir())
		return err
	}

	d.file(path, d.processedDir())
	d.config.Logger.Printf("Applied %s", filepath.Base(path))
	return nil
}

// file moves path into dir under a timestamped name.
func (d *Daemon) file(path, dir string) {
	dest := filepath.Join(dir, time.Now().Format("20060102-150405.000")+"-"+filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		d.config.Logger.Printf("WARNING: failed to move %s to %s: %v", path, dir, err)
	}
}
