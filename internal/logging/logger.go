// Package logging provides leveled logging and action tracing for soillab.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - An ActionTrace for structured JSONL interaction traces (~/.soillab/actions.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug. At this level every
// emitted experiment event is logged, not just step changes and rejections.
const LevelTrace = slog.LevelDebug - 4

// TraceFile is the name of the action trace inside the data directory.
const TraceFile = "actions.jsonl"

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether s names a supported level.
func ValidLevel(s string) bool {
	switch strings.ToLower(s) {
	case "info", "debug", "trace":
		return true
	}
	return false
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ActionEntry is one line of the action trace.
type ActionEntry struct {
	Event     string `json:"event"`
	Round     int    `json:"round,omitempty"`
	Step      string `json:"step,omitempty"`
	Tag       string `json:"tag,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Container string `json:"container,omitempty"`
	Effect    uint64 `json:"effect,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Time      string `json:"time"`
}

// ActionTrace appends every reported interaction, issued effect and
// acknowledgment to a JSONL stream. It is safe for concurrent use. A nil
// ActionTrace is safe to use; all methods are no-ops on nil receiver.
type ActionTrace struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

// NewActionTrace opens dir/actions.jsonl for append. At "info" level (the
// default) it returns nil and no file is created. It also returns nil if the
// file cannot be opened.
func NewActionTrace(dir string, level string) *ActionTrace {
	if ParseLevel(level) == slog.LevelInfo {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, TraceFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	return &ActionTrace{w: f, closer: f}
}

// NewActionTraceWriter traces to w. Close does not close w.
func NewActionTraceWriter(w io.Writer) *ActionTrace {
	return &ActionTrace{w: w}
}

// Log writes e as a single JSONL line, stamping the time when unset.
// Safe to call on nil receiver.
func (t *ActionTrace) Log(e ActionEntry) {
	if t == nil {
		return
	}
	if e.Time == "" {
		e.Time = time.Now().UTC().Format(time.RFC3339Nano)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	data = append(data, '\n')

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w == nil {
		return
	}
	_, _ = t.w.Write(data)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (t *ActionTrace) Close() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closer != nil {
		t.closer.Close()
	}
	t.w = nil
	t.closer = nil
}
