package output

import (
	"errors"
	"fmt"

	"adoinventory/internal/data"
)

// Sink defines a destination for committed records and lifecycle events.
type Sink interface {
	Write(v any) error
	Close() error
}

// Manager fans committed output out to multiple sinks.
type Manager struct {
	sinks   []Sink
	written int
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) AddSink(s Sink) error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	if s == nil {
		return fmt.Errorf("sink must not be nil")
	}
	m.sinks = append(m.sinks, s)
	return nil
}

func (m *Manager) Write(v any) error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(v); err != nil {
			errs = append(errs, fmt.Errorf("write %T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors writing to sinks: %w", errors.Join(errs...))
	}
	return nil
}

// Commit writes every record to every sink. It keeps going after a failed
// record and returns the joined errors.
func (m *Manager) Commit(records []data.Record) error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	var errs []error
	for _, r := range records {
		if err := m.Write(r); err != nil {
			errs = append(errs, err)
			continue
		}
		m.written++
	}
	return errors.Join(errs...)
}

// Written reports how many records every sink accepted.
func (m *Manager) Written() int {
	if m == nil {
		return 0
	}
	return m.written
}

func (m *Manager) Close() error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing sinks: %w", errors.Join(errs...))
	}
	return nil
}
