package mapping

import (
	"fmt"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/pkg/logger"
)

// validate checks the references a mapping makes once at load time, so
// that per-record rendering only fails on data.
func (m *WriterMapping) validate(rw config.Resolver) error {
	name := m.entity.Name()
	if m.uniqueID != "" && !m.knows(m.uniqueID) {
		return config.Errorf(rw.Key(name, "dest_unique_id_field"),
			"%q is neither a mapped nor a source field", m.uniqueID)
	}
	for _, f := range m.filter {
		if !m.knows(f) {
			return config.Errorf(rw.Key(name, "dest_filter_fields"),
				"%q is neither a mapped nor a source field", f)
		}
	}
	switch m.connective {
	case "AND", "OR":
	default:
		return config.Errorf(rw.Key(name, "filter_connective"), "unknown connective %q", m.connective)
	}
	if m.absent.Allow || m.hook != nil {
		return nil
	}
	for _, f := range m.fields {
		for _, src := range f.formula.Fields() {
			if !m.entity.Contains(src) {
				logger.Warnf("writer %s, entity %s: mapping %s references unknown field %q", m.writer, name, f.Dest, src)
			}
		}
	}
	return nil
}

func (m *WriterMapping) knows(field string) bool {
	for _, f := range m.fields {
		if f.Dest == field {
			return true
		}
	}
	return m.entity.Contains(field)
}

func errNoUniqueID(m *WriterMapping) error {
	return fmt.Errorf("entity %s: writer %s has no dest_unique_id_field", m.entity.Name(), m.writer)
}

func errNoFilter(m *WriterMapping) error {
	return fmt.Errorf("entity %s: no filter fields for writer %s", m.entity.Name(), m.writer)
}
