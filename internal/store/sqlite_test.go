package store

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T) *SQLiteRunStore {
	t.Helper()
	s, err := NewSQLiteRunStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRunStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteRunStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) RunStore {
		return newTestSQLiteStore(t)
	})
}

func TestNewSQLiteRunStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "runs.db")

	s, err := NewSQLiteRunStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteRunStore() error = %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("runs.db was not created")
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %s, want %s", s.Path(), dbPath)
	}
}

func TestSQLiteRunStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()
	run := sampleRun(7, time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))

	s, err := NewSQLiteRunStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewSQLiteRunStore(dbPath)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Rounds != run.Rounds {
		t.Errorf("after reopen GetRun() = %+v, want rounds %+v", got, run.Rounds)
	}
}

func TestSQLiteRunStore_LargeSeed(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	run := sampleRun(math.MaxUint64, time.Now().UTC())
	if _, err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	got, err := s.GetRun(ctx, run.ID)
	if err != nil || got == nil {
		t.Fatalf("GetRun() = %v, %v", got, err)
	}
	if got.Seed != math.MaxUint64 {
		t.Errorf("Seed = %d, want %d", got.Seed, uint64(math.MaxUint64))
	}
}

func TestSQLiteRunStore_DeleteCascadesRounds(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	run := sampleRun(3, time.Now().UTC())
	if _, err := s.SaveRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteRun(ctx, run.ID); err != nil {
		t.Fatal(err)
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM run_rounds WHERE run_id = ?`, run.ID).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("run_rounds rows after delete = %d, want 0", n)
	}
}
