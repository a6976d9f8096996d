package etl

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/BartekS5/mapflow/pkg/models"
)

// ErrBatchProcessed is returned when a record is added to a batch that was
// already handed to the dispatcher.
var ErrBatchProcessed = errors.New("batch already processed")

// BatchData is an ordered, append-only list of records of one entity.
// Every record has the width of the entity's source fields.
type BatchData struct {
	entity    *models.SourceEntity
	delimiter string

	mu        sync.Mutex
	records   [][]string
	text      string
	cached    bool
	first     bool
	last      bool
	processed bool
}

// NewBatch creates an empty batch for entity.
func NewBatch(entity *models.SourceEntity, delimiter string) *BatchData {
	return &BatchData{entity: entity, delimiter: delimiter}
}

// Entity is nil for copies.
func (b *BatchData) Entity() *models.SourceEntity { return b.entity }

// Add appends a copy of record.
func (b *BatchData) Add(record []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.processed {
		return ErrBatchProcessed
	}
	if b.entity != nil && len(record) != b.entity.Width() {
		return fmt.Errorf("entity %s: record has %d values, expected %d", b.entity.Name(), len(record), b.entity.Width())
	}
	b.records = append(b.records, append([]string(nil), record...))
	b.cached = false
	return nil
}

func (b *BatchData) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// Records returns the records of the batch. The returned records must not
// be modified; use Copy for a private view.
func (b *BatchData) Records() [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]string(nil), b.records...)
}

// Render returns the records as delimiter-joined lines. The text is cached
// until the next Add.
func (b *BatchData) Render() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.cached {
		lines := make([]string, len(b.records))
		for i, r := range b.records {
			lines[i] = strings.Join(r, b.delimiter)
		}
		b.text = strings.Join(lines, "\n")
		b.cached = true
	}
	return b.text
}

func (b *BatchData) String() string { return b.Render() }

// IsFirst reports whether this is the first batch of the run.
func (b *BatchData) IsFirst() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.first
}

// IsLast reports whether this is the last batch of the run.
func (b *BatchData) IsLast() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

func (b *BatchData) IsProcessed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.processed
}

func (b *BatchData) markFirst() {
	b.mu.Lock()
	b.first = true
	b.mu.Unlock()
}

func (b *BatchData) markLast() {
	b.mu.Lock()
	b.last = true
	b.mu.Unlock()
}

func (b *BatchData) markProcessed() {
	b.mu.Lock()
	b.processed = true
	b.mu.Unlock()
}

// Copy returns a detached, mutable copy. Only the delimiter, the cached
// text and the records are carried over; the copy has no entity and no
// flags set.
func (b *BatchData) Copy() *BatchData {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := &BatchData{
		delimiter: b.delimiter,
		text:      b.text,
		cached:    b.cached,
		records:   make([][]string, len(b.records)),
	}
	for i, r := range b.records {
		c.records[i] = append([]string(nil), r...)
	}
	return c
}
