package reward

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogWriterWithEmptyDirIsNilAndSafe(t *testing.T) {
	w, err := NewLogWriter("")
	if err != nil {
		t.Fatalf("NewLogWriter(\"\") error = %v", err)
	}
	if w != nil {
		t.Fatal("NewLogWriter(\"\") should return a nil writer")
	}
	if err := w.Write(LogEntry{}); err != nil {
		t.Errorf("Write on a nil writer should be a no-op, got error %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close on a nil writer should be a no-op, got error %v", err)
	}
}

func TestLogWriterWritesHeaderOnceThenAppends(t *testing.T) {
	dir := t.TempDir()
	w, err := NewLogWriter(dir)
	if err != nil {
		t.Fatalf("NewLogWriter error = %v", err)
	}
	defer w.Close()

	if err := w.Write(LogEntry{EpisodeStep: 10, WinnerIdx: 0}); err != nil {
		t.Fatalf("first Write error = %v", err)
	}
	if err := w.Write(LogEntry{EpisodeStep: 20, WinnerIdx: 1}); err != nil {
		t.Fatalf("second Write error = %v", err)
	}
	w.Close()

	data, err := os.ReadFile(filepath.Join(dir, "episodes.csv"))
	if err != nil {
		t.Fatalf("reading episodes.csv: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 1 header line + 2 data rows, got %d lines: %q", len(lines), data)
	}
	if !strings.Contains(lines[0], "episode_step") {
		t.Errorf("first line should be the CSV header, got %q", lines[0])
	}
}
