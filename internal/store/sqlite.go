package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nvandessel/soillab/internal/ledger"
	"github.com/nvandessel/soillab/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteRunStore implements RunStore on a SQLite database file.
type SQLiteRunStore struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// NewSQLiteRunStore opens (creating if needed) the archive at dbPath.
func NewSQLiteRunStore(dbPath string) (*SQLiteRunStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRunStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file backing the store.
func (s *SQLiteRunStore) Path() string { return s.dbPath }

// SaveRun stores r and its two round records in one transaction.
func (s *SQLiteRunStore) SaveRun(ctx context.Context, r Run) (string, error) {
	if err := prepare(&r); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Seeds use the full uint64 range; SQLite integers are signed.
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, created_at, seed, language, record_text)
		VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.CreatedAt.UTC().Format(time.RFC3339Nano), int64(r.Seed), r.Language, r.RecordText)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_rounds WHERE run_id = ?`, r.ID); err != nil {
		return "", fmt.Errorf("failed to clear rounds: %w", err)
	}
	for i, rec := range r.Rounds {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO run_rounds (run_id, round, container_id, soil_type,
				empty_weight, wet_weight, dry_weight, moisture_content, complete)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, i+1, nullString(rec.ContainerID), string(soilOrNone(rec.SoilType)),
			rec.EmptyWeight, rec.WetWeight, rec.DryWeight, rec.MoistureContent, boolToInt(rec.Complete))
		if err != nil {
			return "", fmt.Errorf("failed to insert round %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return r.ID, nil
}

// GetRun retrieves a run by id. Returns nil if not found.
func (s *SQLiteRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, seed, language, record_text FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	if err := s.loadRounds(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ListRuns returns runs newest first.
func (s *SQLiteRunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, created_at, seed, language, record_text FROM runs ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Single connection: rounds are loaded after the runs cursor is closed.
	for i := range runs {
		if err := s.loadRounds(ctx, &runs[i]); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// DeleteRun removes a run and, by cascade, its rounds.
func (s *SQLiteRunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteRunStore) loadRounds(ctx context.Context, r *Run) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT round, container_id, soil_type, empty_weight, wet_weight, dry_weight, moisture_content, complete
		FROM run_rounds WHERE run_id = ? ORDER BY round`, r.ID)
	if err != nil {
		return fmt.Errorf("failed to query rounds of %s: %w", r.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			round     int
			container sql.NullString
			soil      string
			complete  int
			rec       ledger.RoundRecord
		)
		if err := rows.Scan(&round, &container, &soil, &rec.EmptyWeight, &rec.WetWeight,
			&rec.DryWeight, &rec.MoistureContent, &complete); err != nil {
			return fmt.Errorf("failed to scan round: %w", err)
		}
		if round < 1 || round > ledger.Rounds {
			continue
		}
		rec.ContainerID = container.String
		rec.SoilType = models.SoilType(soil)
		rec.Complete = complete != 0
		r.Rounds[round-1] = rec
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		r       Run
		created string
		seed    int64
	)
	if err := row.Scan(&r.ID, &created, &seed, &r.Language, &r.RecordText); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("run %s: bad created_at %q: %w", r.ID, created, err)
	}
	r.CreatedAt = t
	r.Seed = uint64(seed)
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func soilOrNone(s models.SoilType) models.SoilType {
	if s == "" {
		return models.SoilNone
	}
	return s
}
