// Package models holds the types shared by readers, writers and mappings.
package models

import (
	"errors"
	"strings"
	"sync"
)

// ErrFieldsFrozen is returned when a reader tries to replace the source
// fields of an entity after the first batch was produced or a second time.
var ErrFieldsFrozen = errors.New("source fields can no longer be replaced")

// SourceEntity is a named source record type with an ordered field list.
// The position of a field name is the index of its value in every record
// produced for the entity.
type SourceEntity struct {
	name string

	mu          sync.RWMutex
	fields      []string
	index       map[string]int
	overwritten bool
	frozen      bool

	first bool
	last  bool
}

// NewSourceEntity creates an entity with the given field order.
func NewSourceEntity(name string, fields []string) *SourceEntity {
	e := &SourceEntity{name: name}
	e.setFields(fields)
	return e
}

func (e *SourceEntity) setFields(fields []string) {
	e.fields = append([]string(nil), fields...)
	e.index = make(map[string]int, len(fields))
	for i, f := range e.fields {
		if _, dup := e.index[f]; !dup {
			e.index[f] = i
		}
	}
}

func (e *SourceEntity) Name() string { return e.name }

func (e *SourceEntity) String() string { return e.name }

// FileName is the entity name usable as a file name.
func (e *SourceEntity) FileName() string {
	return fileNameReplacer.Replace(e.name)
}

var fileNameReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_")

// Fields returns a copy of the ordered source field names.
func (e *SourceEntity) Fields() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.fields...)
}

// Width is the number of source fields, i.e. the width of every record.
func (e *SourceEntity) Width() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.fields)
}

// IndexOf returns the position of field or -1.
func (e *SourceEntity) IndexOf(field string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if i, ok := e.index[field]; ok {
		return i
	}
	return -1
}

func (e *SourceEntity) Contains(field string) bool {
	return e.IndexOf(field) >= 0
}

// OverwriteFields replaces the field order. A reader may do this once,
// before it produces the first batch of the entity.
func (e *SourceEntity) OverwriteFields(fields []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.frozen || e.overwritten {
		return ErrFieldsFrozen
	}
	e.setFields(fields)
	e.overwritten = true
	return nil
}

// Freeze locks the field order. Called when the first batch is created.
func (e *SourceEntity) Freeze() {
	e.mu.Lock()
	e.frozen = true
	e.mu.Unlock()
}

func (e *SourceEntity) IsFirst() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.first
}

func (e *SourceEntity) IsLast() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// MarkFirst and MarkLast are reserved for the pipeline orchestrator.
func (e *SourceEntity) MarkFirst() {
	e.mu.Lock()
	e.first = true
	e.mu.Unlock()
}

func (e *SourceEntity) MarkLast() {
	e.mu.Lock()
	e.last = true
	e.mu.Unlock()
}
