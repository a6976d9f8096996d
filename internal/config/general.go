package config

import "strings"

// Batch modes.
const (
	ModeSerial   = "serial"
	ModeParallel = "parallel"
)

const (
	DefaultDelimiter     = ";"
	DefaultListDelimiter = ","
	DefaultBatchSize     = 100
)

// ListDelimiter separates items of list-valued keys.
func (s *Store) ListDelimiter() string {
	if v, ok := s.Get("list_delimiter"); ok && v != "" {
		return v
	}
	return DefaultListDelimiter
}

// ReaderName is the name (and key prefix) of the run's reader.
func (s *Store) ReaderName() (string, error) {
	return s.General().Require("", "reader")
}

// WriterNames lists the writers in declaration order.
func (s *Store) WriterNames() ([]string, error) {
	names := s.General().List("", "writers")
	if len(names) == 0 {
		return nil, Errorf("writers", "at least one writer is required")
	}
	return names, nil
}

// SourceEntities lists the entities in declaration order.
func (s *Store) SourceEntities() ([]string, error) {
	names := s.General().List("", "source_entities")
	if len(names) == 0 {
		return nil, Errorf("source_entities", "at least one source entity is required")
	}
	return names, nil
}

// BatchMode returns ModeSerial or ModeParallel.
func (s *Store) BatchMode() (string, error) {
	mode := strings.ToLower(s.General().String("", "batch_mode", ModeSerial))
	switch mode {
	case ModeSerial, ModeParallel:
		return mode, nil
	default:
		return "", Errorf("batch_mode", "unknown mode %q", mode)
	}
}

func (s *Store) BatchSize() int {
	n := s.General().Number("", "batch_size", DefaultBatchSize)
	if n <= 0 {
		return DefaultBatchSize
	}
	return n
}

// Delimiter is the value delimiter of delimited text output.
func (s *Store) Delimiter() string {
	return s.General().String("", "value_delimiter", DefaultDelimiter)
}

// Enclosure is the optional quoting character of delimited text output.
func (s *Store) Enclosure() string {
	v, _ := s.Get("value_enclosure")
	return v
}

func (s *Store) WriteHeader() bool {
	return s.General().IsYes("", "write_header", true)
}

func (s *Store) CheckpointFile() string {
	v, _ := s.Get("checkpoint_file")
	return v
}
