package daemon

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/clubroster/roster/internal/store"
)

// Backup exports the current Dataset into BackupDir.
func (d *Daemon) Backup() (*store.ExportResult, error) {
	if d.config.BackupDir == "" {
		return nil, fmt.Errorf("no backup directory configured")
	}

	path := filepath.Join(d.config.BackupDir, store.SnapshotName(time.Now()))
	res, err := store.Export(path, d.ctrl.Snapshot(), store.ExportOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to export backup: %w", err)
	}

	d.config.Logger.Printf("Backup written: %s (%d bytes, %d students)", res.Path, res.Bytes, res.Stats.Students)
	return res, nil
}
