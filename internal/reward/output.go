package reward

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
)

// LogWriter streams LogEntry records to a CSV file, writing the header once
// on first use (teacher: telemetry/output.go's OutputManager.WriteTelemetry).
type LogWriter struct {
	file          *os.File
	headerWritten bool
}

// NewLogWriter creates episodes.csv under dir. A nil *LogWriter (from an
// empty dir) makes every method a no-op, matching the teacher's
// "nil OutputManager disables output" convention.
func NewLogWriter(dir string) (*LogWriter, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, "episodes.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating episodes.csv: %w", err)
	}
	return &LogWriter{file: f}, nil
}

// Write appends one LogEntry row.
func (w *LogWriter) Write(e LogEntry) error {
	if w == nil {
		return nil
	}
	records := []LogEntry{e}
	if !w.headerWritten {
		if err := gocsv.Marshal(records, w.file); err != nil {
			return fmt.Errorf("writing episode log: %w", err)
		}
		w.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, w.file); err != nil {
		return fmt.Errorf("writing episode log: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *LogWriter) Close() error {
	if w == nil || w.file == nil {
		return nil
	}
	return w.file.Close()
}
