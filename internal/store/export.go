package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// ExportJSONL writes every run in s to w, one JSON object per line, newest
// first. It returns the number of runs written.
func ExportJSONL(ctx context.Context, s RunStore, w io.Writer) (int, error) {
	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		return 0, err
	}

	enc := json.NewEncoder(w)
	for i, r := range runs {
		if err := enc.Encode(r); err != nil {
			return i, fmt.Errorf("failed to encode run %s: %w", r.ID, err)
		}
	}
	return len(runs), nil
}

// ImportJSONL reads runs written by ExportJSONL into s. Lines that do not
// parse are skipped and counted; runs already present are replaced.
func ImportJSONL(ctx context.Context, s RunStore, r io.Reader) (imported, skipped int, err error) {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var run Run
		if err := json.Unmarshal(line, &run); err != nil {
			skipped++
			continue
		}
		if _, err := s.SaveRun(ctx, run); err != nil {
			return imported, skipped, fmt.Errorf("failed to import run %s: %w", run.ID, err)
		}
		imported++
	}

	if err := scanner.Err(); err != nil {
		return imported, skipped, fmt.Errorf("scanner error: %w", err)
	}
	return imported, skipped, nil
}
