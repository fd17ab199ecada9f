package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Info describes one backup file on disk.
type Info struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
	RunCount  int       `json:"run_count"`
}

// Retention decides which backups survive a rotation. A backup is kept
// when it is among the MaxCount newest or younger than MaxAge. Zero values
// disable a rule; with both zero everything is kept.
type Retention struct {
	MaxCount int
	MaxAge   time.Duration
}

// Keep returns the backups to keep from a newest-first list.
func (r Retention) Keep(backups []Info, now time.Time) []Info {
	if r.MaxCount <= 0 && r.MaxAge <= 0 {
		return backups
	}

	cutoff := now.Add(-r.MaxAge)
	var keep []Info
	for i, b := range backups {
		byCount := r.MaxCount > 0 && i < r.MaxCount
		byAge := r.MaxAge > 0 && b.CreatedAt.After(cutoff)
		if byCount || byAge {
			keep = append(keep, b)
		}
	}
	return keep
}

// List returns the backups in dir, newest first. A missing directory has
// no backups.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var backups []Info
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, FilePrefix) || !strings.HasSuffix(name, FileExt) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}

		info := Info{
			Path:      filepath.Join(dir, name),
			Size:      fi.Size(),
			CreatedAt: fi.ModTime(),
		}
		if h, err := ReadHeader(info.Path); err == nil {
			info.CreatedAt = h.CreatedAt
			info.RunCount = h.RunCount
		}
		backups = append(backups, info)
	}

	// The timestamp is embedded in the name.
	sort.Slice(backups, func(i, j int) bool {
		return filepath.Base(backups[i].Path) > filepath.Base(backups[j].Path)
	})
	return backups, nil
}

// Rotate deletes the backups in dir that r does not keep and returns their
// paths.
func Rotate(dir string, r Retention, now time.Time) (deleted []string, err error) {
	backups, err := List(dir)
	if err != nil {
		return nil, err
	}

	keep := make(map[string]bool)
	for _, b := range r.Keep(backups, now) {
		keep[b.Path] = true
	}

	for _, b := range backups {
		if keep[b.Path] {
			continue
		}
		if err := os.Remove(b.Path); err != nil {
			return deleted, fmt.Errorf("removing %s: %w", filepath.Base(b.Path), err)
		}
		deleted = append(deleted, b.Path)
	}
	return deleted, nil
}

// ParseDuration parses "720h" style durations plus day ("30d") and week
// ("2w") suffixes. Empty means no age limit.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	num, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || num < 0 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}
	switch s[len(s)-1] {
	case 'd':
		return time.Duration(num) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(num) * 7 * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unknown duration suffix %q in %q", s[len(s)-1:], s)
}
