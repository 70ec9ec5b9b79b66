package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"adoinventory/internal/data"
)

// CSVSink writes records of one schema to a CSV file. The header row is written
// on creation, so even a run that commits nothing leaves a valid file.
type CSVSink struct {
	path   string
	schema data.Schema
	file   *os.File
	w      *csv.Writer
	mu     sync.Mutex
}

func NewCSVSink(path string, schema data.Schema) (*CSVSink, error) {
	if path == "" {
		return nil, fmt.Errorf("output path required")
	}
	header := data.Header(schema)
	if len(header) == 0 {
		return nil, fmt.Errorf("unknown output schema: %s", schema)
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	return &CSVSink{path: path, schema: schema, file: f, w: w}, nil
}

func (s *CSVSink) Path() string {
	return s.path
}

func (s *CSVSink) Write(v any) error {
	r, ok := v.(data.Record)
	if !ok {
		return nil
	}
	if r.Schema() != s.schema {
		return fmt.Errorf("record schema %s does not match file schema %s", r.Schema(), s.schema)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(r.Fields())
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.w.Flush()
	err := s.w.Error()
	if closeErr := s.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
