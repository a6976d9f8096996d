package etl

import (
	"context"
	"fmt"

	"github.com/BartekS5/mapflow/pkg/models"
)

// Session is what a reader sees of the run while reading one entity. It
// builds batches, normalizes and filters values and hands full batches to
// the dispatcher.
type Session struct {
	reader     string
	entity     *models.SourceEntity
	normalizer *Normalizer
	filter     Filter
	processor  BatchProcessor
	delimiter  string
	batchSize  int
	ended      bool
	batches    int
	records    int
}

// NewSession binds a reader to one entity. filter may be nil.
func NewSession(reader string, entity *models.SourceEntity, n *Normalizer, filter Filter, p BatchProcessor, delimiter string, batchSize int) *Session {
	return &Session{
		reader:     reader,
		entity:     entity,
		normalizer: n,
		filter:     filter,
		processor:  p,
		delimiter:  delimiter,
		batchSize:  batchSize,
	}
}

func (s *Session) Entity() *models.SourceEntity { return s.entity }

// BatchSize is the configured number of records per batch.
func (s *Session) BatchSize() int { return s.batchSize }

// HasMoreEntities reports whether entities follow the current one.
func (s *Session) HasMoreEntities() bool { return !s.entity.IsLast() }

// NewBatch starts a batch. From here on the entity's fields are fixed.
func (s *Session) NewBatch() *BatchData {
	s.entity.Freeze()
	return NewBatch(s.entity, s.delimiter)
}

// Add normalizes values, applies the exclusion filter and appends the
// record. It reports whether the record was kept.
func (s *Session) Add(b *BatchData, values []string) (bool, error) {
	ptrs := make([]*string, len(values))
	for i := range values {
		ptrs[i] = &values[i]
	}
	return s.AddNullable(b, ptrs)
}

// AddNullable is Add for sources with absent values.
func (s *Session) AddNullable(b *BatchData, values []*string) (bool, error) {
	fields := s.entity.Fields()
	if len(values) != len(fields) {
		return false, NewReaderError(s.reader, fmt.Errorf("entity %s: got %d values for %d fields", s.entity.Name(), len(values), len(fields)))
	}
	record := make([]string, len(values))
	for i, v := range values {
		record[i] = s.normalizer.Normalize(v, fields[i])
	}
	if s.filter != nil {
		keep, err := s.filter.Keep(s.entity, record)
		if err != nil {
			return false, NewReaderError(s.reader, fmt.Errorf("exclusion filter: %w", err))
		}
		if !keep {
			return false, nil
		}
	}
	if err := b.Add(record); err != nil {
		return false, NewReaderError(s.reader, err)
	}
	s.records++
	return true, nil
}

// Emit hands b to the dispatcher. moreData is false for the last batch of
// the entity; no batch may follow it.
func (s *Session) Emit(ctx context.Context, b *BatchData, moreData bool) error {
	if s.ended {
		return fmt.Errorf("%w: entity %s already ended", ErrDispatcherState, s.entity.Name())
	}
	if !moreData {
		s.ended = true
	}
	s.batches++
	return s.processor.ProcessBatch(ctx, b, s.entity, moreData || s.HasMoreEntities())
}

// finish emits an empty closing batch if the reader returned without
// ending the entity.
func (s *Session) finish(ctx context.Context) error {
	if s.ended {
		return nil
	}
	return s.Emit(ctx, s.NewBatch(), false)
}
