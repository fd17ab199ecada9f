// Package backup writes and restores compressed, checksummed snapshots of
// the run archive.
package backup

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nvandessel/soillab/internal/store"
)

// FilePrefix starts every backup file name.
const FilePrefix = "soillab-backup-"

// FileExt ends every backup file name.
const FileExt = ".json.gz"

// Snapshot is the payload of a backup file.
type Snapshot struct {
	CreatedAt time.Time   `json:"created_at"`
	Runs      []store.Run `json:"runs"`
}

// Backup writes every run in runs to path.
func Backup(ctx context.Context, runs store.RunStore, path string) (*Header, error) {
	list, err := runs.ListRuns(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	if list == nil {
		list = []store.Run{}
	}

	snap := &Snapshot{CreatedAt: time.Now().UTC(), Runs: list}
	header, err := Write(path, snap)
	if err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}
	return header, nil
}

// RestoreMode controls how restore handles runs already archived.
type RestoreMode string

const (
	// RestoreMerge skips runs whose id is already archived (default).
	RestoreMerge RestoreMode = "merge"
	// RestoreReplace overwrites archived runs with the backed-up copy.
	RestoreReplace RestoreMode = "replace"
)

// ParseRestoreMode maps a flag value to a RestoreMode. Empty means merge.
func ParseRestoreMode(s string) (RestoreMode, error) {
	switch RestoreMode(s) {
	case "", RestoreMerge:
		return RestoreMerge, nil
	case RestoreReplace:
		return RestoreReplace, nil
	}
	return "", fmt.Errorf("invalid restore mode: %q (valid: merge, replace)", s)
}

// RestoreResult counts what a restore did.
type RestoreResult struct {
	Restored int `json:"restored"`
	Skipped  int `json:"skipped"`
}

// Restore loads the backup at path into runs.
func Restore(ctx context.Context, runs store.RunStore, path string, mode RestoreMode) (*RestoreResult, error) {
	snap, err := Read(path)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{}
	for _, r := range snap.Runs {
		if mode == RestoreMerge {
			existing, err := runs.GetRun(ctx, r.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to check run %s: %w", r.ID, err)
			}
			if existing != nil {
				result.Skipped++
				continue
			}
		}
		if _, err := runs.SaveRun(ctx, r); err != nil {
			return result, fmt.Errorf("failed to restore run %s: %w", r.ID, err)
		}
		result.Restored++
	}
	return result, nil
}

// GeneratePath returns a timestamped backup file name in dir.
func GeneratePath(dir string, now time.Time) string {
	return filepath.Join(dir, FilePrefix+now.Format("20060102-150405")+FileExt)
}
