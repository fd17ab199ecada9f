// Package store defines the RunStore interface for archiving finished
// experiment sessions.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/soillab/internal/ledger"
)

// ErrInvalidRun is returned when a run cannot be archived as given.
var ErrInvalidRun = errors.New("invalid run")

// Run is one archived session: both round records and the record board as
// it was shown when the session ended.
type Run struct {
	ID         string                            `json:"id"`
	CreatedAt  time.Time                         `json:"created_at"`
	Seed       uint64                            `json:"seed"`
	Language   string                            `json:"language"`
	Rounds     [ledger.Rounds]ledger.RoundRecord `json:"rounds"`
	RecordText string                            `json:"record_text"`
}

// Complete reports whether both rounds produced a moisture content.
func (r Run) Complete() bool {
	for _, rec := range r.Rounds {
		if !rec.Complete {
			return false
		}
	}
	return true
}

// NewRun builds an unsaved run with a fresh id.
func NewRun(seed uint64, language string, round1, round2 ledger.RoundRecord, recordText string) Run {
	return Run{
		ID:         uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
		Seed:       seed,
		Language:   language,
		Rounds:     [ledger.Rounds]ledger.RoundRecord{round1, round2},
		RecordText: recordText,
	}
}

// RunStore archives finished runs.
type RunStore interface {
	// SaveRun stores r, assigning an id and timestamp when missing, and
	// returns the id. Saving an existing id replaces it.
	SaveRun(ctx context.Context, r Run) (string, error)
	// GetRun returns the run with the given id, or nil if there is none.
	GetRun(ctx context.Context, id string) (*Run, error)
	// ListRuns returns runs newest first. limit <= 0 returns all of them.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	// DeleteRun removes a run. Deleting an unknown id is not an error.
	DeleteRun(ctx context.Context, id string) error

	Close() error
}

// prepare fills in the id and timestamp of a run about to be saved.
func prepare(r *Run) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	} else if _, err := uuid.Parse(r.ID); err != nil {
		return fmt.Errorf("%w: id %q: %v", ErrInvalidRun, r.ID, err)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return nil
}
