// Package csvwriter writes CSV files with an optional fixed header.
package csvwriter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Writer is a simple CSV writer. Records go to a temporary file next to the
// target and are renamed into place on Close, so readers never see a partial file.
type Writer struct {
	path   string
	file   *os.File
	writer *csv.Writer
	logger *zap.Logger
	rows   int
	mu     sync.Mutex
}

// NewWriter creates a new CSV writer for filePath and writes header if non-empty.
func NewWriter(filePath string, header []string, logger *zap.Logger) (*Writer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for CSV file: %w", err)
		}
	}
	file, err := os.CreateTemp(filepath.Dir(filePath), filepath.Base(filePath)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV file: %w", err)
	}

	w := &Writer{
		path:   filePath,
		file:   file,
		writer: csv.NewWriter(file),
		logger: logger,
	}
	if len(header) > 0 {
		if err := w.writer.Write(header); err != nil {
			w.abort()
			return nil, fmt.Errorf("failed to write CSV header: %w", err)
		}
	}
	return w, nil
}

// Write writes a record to the CSV file.
func (w *Writer) Write(record []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record to CSV: %w", err)
	}
	w.rows++
	return nil
}

// Flush flushes any buffered data to the underlying file.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writer.Flush()
	return w.writer.Error()
}

// Close flushes, closes and moves the file into place.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		w.abort()
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.file.Name())
		return fmt.Errorf("failed to close CSV file: %w", err)
	}
	if err := os.Rename(w.file.Name(), w.path); err != nil {
		os.Remove(w.file.Name())
		return fmt.Errorf("failed to move CSV file into place: %w", err)
	}
	w.logger.Info("CSV file written", zap.String("path", w.path), zap.Int("rows", w.rows))
	return nil
}

// Abort discards everything written so far.
func (w *Writer) Abort() {
	w.abort()
}

func (w *Writer) abort() {
	w.file.Close()
	os.Remove(w.file.Name())
}
