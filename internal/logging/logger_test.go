package logging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"mixed case Trace", "Trace", LevelTrace},
		{"unknown defaults to info", "verbose", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidLevel(t *testing.T) {
	for _, s := range []string{"info", "DEBUG", "trace"} {
		if !ValidLevel(s) {
			t.Errorf("ValidLevel(%q) = false", s)
		}
	}
	for _, s := range []string{"", "warn", "verbose"} {
		if ValidLevel(s) {
			t.Errorf("ValidLevel(%q) = true", s)
		}
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAtDebug bool
		logAtTrace bool
	}{
		{"info filters debug", "info", false, false},
		{"debug passes debug", "debug", true, false},
		{"trace passes everything", "trace", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("debug message")
			if got := strings.Contains(buf.String(), "debug message"); got != tt.logAtDebug {
				t.Errorf("debug message visible = %v, want %v (buf: %q)", got, tt.logAtDebug, buf.String())
			}

			buf.Reset()
			logger.Log(context.Background(), LevelTrace, "trace message")
			if got := strings.Contains(buf.String(), "trace message"); got != tt.logAtTrace {
				t.Errorf("trace message visible = %v, want %v (buf: %q)", got, tt.logAtTrace, buf.String())
			}
			if tt.logAtTrace && !strings.Contains(buf.String(), "level=TRACE") {
				t.Errorf("trace level not labelled: %q", buf.String())
			}
		})
	}
}

func TestNewActionTrace_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	tr := NewActionTrace(dir, "info")
	if tr != nil {
		t.Error("expected nil ActionTrace at info level")
	}

	tr.Log(ActionEntry{Event: "action"})
	tr.Close()

	if _, err := os.Stat(filepath.Join(dir, TraceFile)); err == nil {
		t.Errorf("%s should not exist at info level", TraceFile)
	}
}

func TestNewActionTrace_DebugLevel(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	tr := NewActionTrace(dir, "debug")
	if tr == nil {
		t.Fatal("expected non-nil ActionTrace at debug level")
	}

	tr.Log(ActionEntry{Event: "action", Round: 1, Step: "OpenBoxCap", Tag: "ContainerCap", Kind: "click"})
	tr.Log(ActionEntry{Event: "ack", Round: 1, Effect: 3})
	tr.Close()
	tr.Log(ActionEntry{Event: "after_close"})

	path := filepath.Join(dir, TraceFile)
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", TraceFile, err)
	}
	defer f.Close()

	var entries []ActionEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e ActionEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("failed to parse line %q: %v", sc.Text(), err)
		}
		entries = append(entries, e)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Step != "OpenBoxCap" || entries[0].Time == "" {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[1].Effect != 3 {
		t.Errorf("entries[1].Effect = %d, want 3", entries[1].Effect)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permissions = %o, want 0600", perm)
	}
}

func TestActionTraceWriter_OmitsEmptyFields(t *testing.T) {
	var buf bytes.Buffer
	tr := NewActionTraceWriter(&buf)
	tr.Log(ActionEntry{Event: "rejected", Reason: "invalid action", Time: "t0"})

	got := strings.TrimSpace(buf.String())
	want := `{"event":"rejected","reason":"invalid action","time":"t0"}`
	if got != want {
		t.Errorf("line = %s, want %s", got, want)
	}
}

func TestActionTrace_NilSafe(t *testing.T) {
	var tr *ActionTrace
	tr.Log(ActionEntry{Event: "should_not_panic"})
	tr.Close()
}
