package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
)

func TestRead(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}
	if err := os.WriteFile(logPath, []byte(content.String()), 0o644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{name: "zero reads nothing", maxLines: 0, expected: nil},
		{name: "negative reads nothing", maxLines: -1, expected: nil},
		{name: "read partial (5)", maxLines: 5, expected: expectedAll[5:]},
		{name: "read exactly all (10)", maxLines: 10, expected: expectedAll},
		{name: "read more than exists (20)", maxLines: 20, expected: expectedAll},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(logPath, tt.maxLines)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Read() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	got, err := Read(filepath.Join(t.TempDir(), "absent.log"), 10)
	if err != nil || got != nil {
		t.Fatalf("Read(missing) = %v, %v; want nil, nil", got, err)
	}
}

func TestParse_ZapLine(t *testing.T) {
	line := `{"level":"warn","ts":"2026-03-01T10:15:30.250Z","logger":"pagestate","msg":"persist failed","error":"disk full","bytes":42}`
	e := Parse(line)

	if e.Level != zapcore.WarnLevel {
		t.Fatalf("Level = %v, want warn", e.Level)
	}
	if e.Message != "persist failed" || e.Logger != "pagestate" {
		t.Fatalf("Message/Logger = %q/%q", e.Message, e.Logger)
	}
	want := time.Date(2026, 3, 1, 10, 15, 30, 250_000_000, time.UTC)
	if !e.Time.Equal(want) {
		t.Fatalf("Time = %v, want %v", e.Time, want)
	}
	if got := e.FieldString(); got != "bytes=42 error=disk full" {
		t.Fatalf("FieldString() = %q", got)
	}
	if e.Raw != line {
		t.Fatalf("Raw not preserved")
	}
}

func TestParse_PlainLine(t *testing.T) {
	for _, line := range []string{"panic: something broke", "{not json"} {
		e := Parse(line)
		if e.Message != line || e.Level != zapcore.InfoLevel || len(e.Fields) != 0 {
			t.Fatalf("Parse(%q) = %+v", line, e)
		}
	}
}

func TestFilter(t *testing.T) {
	entries := ParseAll([]string{
		`{"level":"debug","msg":"tick"}`,
		`{"level":"info","msg":"page switched","page":"/mops"}`,
		`{"level":"error","msg":"backend poll failed","error":"connection refused"}`,
	})

	if got := Filter(entries, zapcore.InfoLevel, ""); len(got) != 2 {
		t.Fatalf("Filter(info) kept %d entries, want 2", len(got))
	}
	got := Filter(entries, zapcore.DebugLevel, "MOPS")
	if len(got) != 1 || got[0].Message != "page switched" {
		t.Fatalf("Filter(text in field) = %+v", got)
	}
	if got := Filter(entries, zapcore.ErrorLevel, "refused"); len(got) != 1 {
		t.Fatalf("Filter(error, refused) kept %d entries, want 1", len(got))
	}
}

func TestRead_SpansChunks(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "big.log")
	long := strings.Repeat("x", 1000)
	var content strings.Builder
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&content, "%03d %s\r\n", i, long)
	}
	content.WriteString("tail without newline")
	if err := os.WriteFile(logPath, []byte(content.String()), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	got, err := Read(logPath, 3)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	want := []string{"298 " + long, "299 " + long, "tail without newline"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Read() returned %d lines, first %q", len(got), truncateForTest(got))
	}

	got, err = Read(logPath, 500)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got) != 301 || got[0] != "000 "+long {
		t.Fatalf("Read(500) returned %d lines", len(got))
	}
}

func truncateForTest(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	if len(lines[0]) > 20 {
		return lines[0][:20]
	}
	return lines[0]
}
