package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerWritesToBuffer(t *testing.T) {
	buffer := NewLogBuffer(10)
	logger := NewLoggerWithOutput(buffer, LevelInfo, nil)

	logger.Info("watch added", map[string]string{"pattern": "/tmp/a.txt"})

	entries := buffer.List()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != LevelInfo {
		t.Fatalf("expected info level, got %q", entry.Level)
	}
	if entry.Fields["pattern"] != "/tmp/a.txt" {
		t.Fatalf("expected pattern field, got %v", entry.Fields)
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	buffer := NewLogBuffer(10)
	logger := NewLoggerWithOutput(buffer, LevelWarning, nil)

	logger.Debug("debug", nil)
	logger.Info("info", nil)
	logger.Warn("warn", nil)

	entries := buffer.List()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Level != LevelWarning {
		t.Fatalf("expected warning level, got %q", entries[0].Level)
	}
}

func TestLoggerWithMergesFields(t *testing.T) {
	buffer := NewLogBuffer(10)
	logger := NewLoggerWithOutput(buffer, LevelDebug, nil).With(map[string]string{"category": "watcher"})

	logger.Debug("shared watcher created", map[string]string{"folder": "/data/"})

	entries := buffer.Find("shared watcher created")
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Fields["category"] != "watcher" || entries[0].Fields["folder"] != "/data/" {
		t.Fatalf("unexpected fields: %v", entries[0].Fields)
	}
}

func TestLoggerFormatsSortedFields(t *testing.T) {
	var out bytes.Buffer
	logger := NewLoggerWithOutput(nil, LevelInfo, &out)

	logger.Error("watch failed", map[string]string{"path": "/x", "error": "denied"})

	line := out.String()
	if !strings.Contains(line, `level=error msg="watch failed" error="denied" path="/x"`) {
		t.Fatalf("unexpected output %q", line)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Info("ignored", nil)
	if logger.Enabled(LevelError) {
		t.Fatalf("expected nil logger to be disabled")
	}
	if logger.With(map[string]string{"a": "b"}) != nil {
		t.Fatalf("expected nil logger from With")
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		input  string
		want   Level
		wantOK bool
	}{
		{input: "debug", want: LevelDebug, wantOK: true},
		{input: " WARN ", want: LevelWarning, wantOK: true},
		{input: "", want: LevelInfo, wantOK: true},
		{input: "loud", want: "", wantOK: false},
	}
	for _, tc := range cases {
		got, ok := ParseLevel(tc.input)
		if got != tc.want || ok != tc.wantOK {
			t.Fatalf("ParseLevel(%q): expected (%q, %v), got (%q, %v)", tc.input, tc.want, tc.wantOK, got, ok)
		}
	}
}

func FuzzParseLevel(f *testing.F) {
	for _, seed := range []string{"info", "warn", "error", "debug", "", "TRACE"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, raw string) {
		level, ok := ParseLevel(raw)
		if ok && normalizeLevel(level) != level {
			t.Fatalf("parsed level %q is not canonical", level)
		}
	})
}
