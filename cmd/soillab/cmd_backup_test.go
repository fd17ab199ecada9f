package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBackupCmd_DefaultLocation(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	seedArchive(t, 2)

	out, err := execute(t, newBackupCmd(), "backup", "--json")
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}
	var result struct {
		Path     string   `json:"path"`
		RunCount int      `json:"run_count"`
		Checksum string   `json:"checksum"`
		Rotated  []string `json:"rotated"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	wantDir := filepath.Join(tmpDir, "home", ".soillab", "backups")
	if filepath.Dir(result.Path) != wantDir {
		t.Errorf("path = %s, want it in %s", result.Path, wantDir)
	}
	if result.RunCount != 2 || result.Checksum == "" {
		t.Errorf("result = %+v, want 2 runs with a checksum", result)
	}

	out, err = execute(t, newBackupCmd(), "backup", "list")
	if err != nil {
		t.Fatalf("backup list failed: %v", err)
	}
	if !strings.Contains(out, filepath.Base(result.Path)) || !strings.Contains(out, "2 runs") {
		t.Errorf("list output = %q", out)
	}

	out, err = execute(t, newBackupCmd(), "backup", "verify", result.Path)
	if err != nil {
		t.Fatalf("backup verify failed: %v", err)
	}
	if !strings.Contains(out, "OK") {
		t.Errorf("verify output = %q", out)
	}
}

func TestBackupCmd_ListEmpty(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	out, err := execute(t, newBackupCmd(), "backup", "list", "--json")
	if err != nil {
		t.Fatalf("backup list failed: %v", err)
	}
	if !strings.Contains(out, `"backups":[]`) || !strings.Contains(out, `"total_count":0`) {
		t.Errorf("json output = %q", out)
	}
}

func TestBackupCmd_RejectsOutsidePath(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	outside := filepath.Join(t.TempDir(), "stray.json.gz")
	_, err := execute(t, newBackupCmd(), "backup", "--output", outside)
	if err == nil || !strings.Contains(err.Error(), "backup path rejected") {
		t.Errorf("err = %v, want backup path rejected", err)
	}
	if _, statErr := os.Stat(outside); !os.IsNotExist(statErr) {
		t.Error("backup written outside allowed directories")
	}
}

func TestBackupVerify_Corrupt(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	seedArchive(t, 1)

	path := filepath.Join(tmpDir, "home", ".soillab", "backups", "soillab-backup-20260101-000000.json.gz")
	if _, err := execute(t, newBackupCmd(), "backup", "--output", path); err != nil {
		t.Fatalf("backup failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-1] ^= 0xff
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, newBackupCmd(), "backup", "verify", path)
	if err == nil {
		t.Fatal("verify should fail on a corrupted file")
	}
	if !strings.Contains(out, "FAILED") {
		t.Errorf("output = %q", out)
	}
}

func TestRestoreCmd_Modes(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	seedArchive(t, 2)

	path := filepath.Join(tmpDir, "home", ".soillab", "backups", "soillab-backup-20260101-000000.json.gz")
	if _, err := execute(t, newBackupCmd(), "backup", "--output", path); err != nil {
		t.Fatalf("backup failed: %v", err)
	}

	tests := []struct {
		mode         string
		wantRestored int
		wantSkipped  int
	}{
		{"merge", 0, 2},
		{"replace", 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			out, err := execute(t, newRestoreCmd(), "restore", path, "--mode", tt.mode, "--json")
			if err != nil {
				t.Fatalf("restore failed: %v", err)
			}
			var result struct {
				Restored int `json:"restored"`
				Skipped  int `json:"skipped"`
			}
			if err := json.Unmarshal([]byte(out), &result); err != nil {
				t.Fatalf("invalid JSON %q: %v", out, err)
			}
			if result.Restored != tt.wantRestored || result.Skipped != tt.wantSkipped {
				t.Errorf("restored %d skipped %d, want %d and %d",
					result.Restored, result.Skipped, tt.wantRestored, tt.wantSkipped)
			}
		})
	}
}

func TestRestoreCmd_BadMode(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	_, err := execute(t, newRestoreCmd(), "restore", "x.json.gz", "--mode", "overwrite")
	if err == nil || !strings.Contains(err.Error(), "invalid restore mode") {
		t.Errorf("err = %v, want invalid restore mode", err)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512B"},
		{2048, "2.0KB"},
		{3 * 1024 * 1024, "3.0MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
