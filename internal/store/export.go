package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/clubroster/roster/internal/schema"
)

// ExportOptions controls how a Dataset snapshot is written to disk.
type ExportOptions struct {
	Backup bool // keep a timestamped copy of an existing file at Path
	DryRun bool // report what would be written without touching disk
}

// ExportResult describes a finished export.
type ExportResult struct {
	Path          string
	Bytes         int
	BackupCreated string
	Stats         schema.Stats
}

// Export writes ds to path as indented JSON. The file is written to a
// temp file first and renamed into place.
func Export(path string, ds *schema.Dataset, opts ExportOptions) (*ExportResult, error) {
	if ds == nil {
		return nil, fmt.Errorf("cannot export nil dataset")
	}

	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dataset: %w", err)
	}

	result := &ExportResult{
		Path:  path,
		Bytes: len(data),
		Stats: ds.Stats(),
	}
	if opts.DryRun {
		return result, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	if opts.Backup {
		if prev, err := os.ReadFile(path); err == nil {
			backupPath := path + ".backup." + time.Now().Format("20060102-150405")
			if err := os.WriteFile(backupPath, prev, 0600); err != nil {
				return nil, fmt.Errorf("failed to create backup: %w", err)
			}
			result.BackupCreated = backupPath
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read existing export for backup: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to rename temp file: %w", err)
	}

	return result, nil
}

// ReadExport reads a file written by Export (or any serialized Dataset).
func ReadExport(path string) (*schema.Dataset, error) {
	// #nosec G304 - controlled path from CLI
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export %s: %w", path, err)
	}

	ds, err := schema.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid export %s: %w", path, err)
	}

	return ds, nil
}

// SnapshotName returns a timestamped export filename, used by scheduled
// backups.
func SnapshotName(now time.Time) string {
	return fmt.Sprintf("roster-%s.json", now.Format("20060102-150405"))
}
