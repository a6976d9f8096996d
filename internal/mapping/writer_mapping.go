package mapping

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BartekS5/mapflow/pkg/models"
)

// WriterMapping is the output mapping of one source entity for one writer.
// It is not safe for concurrent use; each writer owns its mappings.
type WriterMapping struct {
	writer     string
	entity     *models.SourceEntity
	fields     []FieldMapping
	hook       Hook
	destEntity string
	uniqueID   string
	filter     []string
	connective string
	extended   bool
	delimiter  string
	enclosure  string
	absent     Absent
}

func (m *WriterMapping) Writer() string               { return m.writer }
func (m *WriterMapping) Entity() *models.SourceEntity { return m.entity }

// Fields returns the mappings in output order.
func (m *WriterMapping) Fields() []FieldMapping {
	return append([]FieldMapping(nil), m.fields...)
}

// HasMapping reports whether any field mapping was declared.
func (m *WriterMapping) HasMapping() bool { return len(m.fields) > 0 }

func (m *WriterMapping) UniqueIDField() string { return m.uniqueID }

// FilterFields are the destination fields of dest_filter_fields.
func (m *WriterMapping) FilterFields() []string {
	return append([]string(nil), m.filter...)
}

func (m *WriterMapping) Extended() bool { return m.extended }

// DestEntity is the configured destination entity or, without one, the
// conformed source entity name.
func (m *WriterMapping) DestEntity() string {
	if m.destEntity != "" {
		return m.destEntity
	}
	return ConformEntityName(m.entity.Name())
}

// ConformEntityName replaces path separators in entity names that come
// from URL-like sources.
func ConformEntityName(name string) string {
	return strings.ReplaceAll(name, "/", ":")
}

// Row is a record resolved through a WriterMapping. Values are aligned
// with the mapping's fields.
type Row struct {
	m      *WriterMapping
	record []string
	values []string
}

// Resolve evaluates every field mapping against record. The custom mapper,
// if any, is asked first; it decides per mapping whether its value stands.
func (m *WriterMapping) Resolve(record []string) (Row, error) {
	values := make([]string, len(m.fields))
	for i, f := range m.fields {
		v, err := m.value(f, record)
		if err != nil {
			return Row{}, err
		}
		values[i] = v
	}
	return Row{m: m, record: record, values: values}, nil
}

func (m *WriterMapping) value(f FieldMapping, record []string) (string, error) {
	if m.hook != nil {
		v, d, err := m.hook.Parse(f, record, m.entity)
		if err != nil {
			return "", fmt.Errorf("custom mapper, mapping %s: %w", f.Dest, err)
		}
		if d == Handled {
			return v, nil
		}
	}
	v, err := f.formula.Eval(m.entity, record, m.absent)
	var re *ResolutionError
	if errors.As(err, &re) {
		re.Dest = f.Dest
	}
	return v, err
}

// Values returns the resolved values in output order.
func (r Row) Values() []string { return append([]string(nil), r.values...) }

// Value returns the value of destination field dest.
func (r Row) Value(dest string) (string, bool) {
	for i, f := range r.m.fields {
		if f.Dest == dest {
			return r.values[i], true
		}
	}
	return "", false
}

// lookup resolves a filter field: a destination field first, then a
// source field of the same name.
func (r Row) lookup(field string) (string, bool) {
	if v, ok := r.Value(field); ok {
		return v, true
	}
	if i := r.m.entity.IndexOf(field); i >= 0 && i < len(r.record) {
		return r.record[i], true
	}
	return "", false
}

type pair struct {
	key, value string
	literal    bool
}

// pairs returns every mapping for InsertOnly and the update mappings for
// Update.
func (r Row) pairs(kind Kind) []pair {
	out := make([]pair, 0, len(r.values))
	for i, f := range r.m.fields {
		if kind == Update && f.Kind != Update {
			continue
		}
		out = append(out, pair{key: f.Dest, value: r.values[i], literal: f.formula.IsLiteral()})
	}
	return out
}

func (r Row) filterPairs(fields []string) ([]pair, error) {
	if len(fields) == 0 {
		fields = r.m.filter
	}
	if len(fields) == 0 && r.m.uniqueID != "" {
		fields = []string{r.m.uniqueID}
	}
	if len(fields) == 0 {
		return nil, errNoFilter(r.m)
	}
	out := make([]pair, 0, len(fields))
	for _, f := range fields {
		v, ok := r.lookup(f)
		if !ok {
			return nil, &ResolutionError{Entity: r.m.entity.Name(), Field: f}
		}
		out = append(out, pair{key: f, value: v})
	}
	return out, nil
}

// UniqueValue returns the value of the unique id field.
func (r Row) UniqueValue() (string, bool) {
	if r.m.uniqueID == "" {
		return "", false
	}
	return r.lookup(r.m.uniqueID)
}

func sourcePairs(entity *models.SourceEntity, record []string) []pair {
	names := entity.Fields()
	out := make([]pair, 0, len(names))
	for i, n := range names {
		v := ""
		if i < len(record) {
			v = record[i]
		}
		out = append(out, pair{key: n, value: v})
	}
	return out
}

// sourceFilterPairs picks raw source values for fields, defaulting like
// filterPairs does.
func (m *WriterMapping) sourceFilterPairs(record []string, fields []string) ([]pair, error) {
	if len(fields) == 0 {
		fields = m.filter
	}
	if len(fields) == 0 && m.uniqueID != "" {
		fields = []string{m.uniqueID}
	}
	if len(fields) == 0 {
		return nil, errNoFilter(m)
	}
	out := make([]pair, 0, len(fields))
	for _, f := range fields {
		i := m.entity.IndexOf(f)
		if i < 0 || i >= len(record) {
			return nil, &ResolutionError{Entity: m.entity.Name(), Field: f}
		}
		out = append(out, pair{key: f, value: record[i]})
	}
	return out, nil
}
