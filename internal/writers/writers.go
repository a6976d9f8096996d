// Package writers holds the built-in writer implementations. Each
// registers itself with etl under its type name.
package writers

import (
	"fmt"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/internal/etl"
	"github.com/BartekS5/mapflow/internal/mapping"
	"github.com/BartekS5/mapflow/pkg/models"
)

func init() {
	etl.RegisterWriter("console", func() etl.Writer { return NewConsole(nil) })
	etl.RegisterWriter("csv", func() etl.Writer { return &CSV{} })
	etl.RegisterWriter("sql", func() etl.Writer { return &SQL{} })
	etl.RegisterWriter("mongo", func() etl.Writer { return &Mongo{} })
	etl.RegisterWriter("http", func() etl.Writer { return &HTTP{} })
	etl.RegisterWriter("mail", func() etl.Writer { return &Mail{} })
	etl.RegisterWriter("code", func() etl.Writer { return &CodeWriter{} })
}

// mapped keeps the writer mapping of every entity a writer has seen.
type mapped struct {
	rc       config.Resolver
	mappings map[string]*mapping.WriterMapping
}

func (m *mapped) init(rc config.Resolver) {
	m.rc = rc
	m.mappings = map[string]*mapping.WriterMapping{}
}

func (m *mapped) load(e *models.SourceEntity) (*mapping.WriterMapping, error) {
	wm, err := mapping.Load(m.rc, e)
	if err != nil {
		return nil, err
	}
	m.mappings[e.Name()] = wm
	return wm, nil
}

func (m *mapped) mapping(e *models.SourceEntity) (*mapping.WriterMapping, error) {
	wm, ok := m.mappings[e.Name()]
	if !ok {
		return nil, fmt.Errorf("entity %s was not initialized", e.Name())
	}
	return wm, nil
}

// lines renders every record of b as a delimited line, through the
// mapping when one is declared.
func lines(wm *mapping.WriterMapping, b *etl.BatchData) ([]string, error) {
	records := b.Records()
	out := make([]string, 0, len(records))
	for _, rec := range records {
		if !wm.HasMapping() {
			out = append(out, wm.CSVWithoutMapping(rec))
			continue
		}
		row, err := wm.Resolve(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, row.CSV())
	}
	return out, nil
}

func header(wm *mapping.WriterMapping) string {
	if wm.HasMapping() {
		return wm.Header()
	}
	return wm.HeaderWithoutMapping()
}
