package etl

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/pkg/models"
)

// Generic is the lifecycle shared by readers and writers. rc is bound to
// the reader or writer name, so rc.Name() is its key prefix.
type Generic interface {
	Initialize(ctx context.Context, rc config.Resolver) error
	InitializeEntity(ctx context.Context, entity *models.SourceEntity) error
	Close(ctx context.Context) error
}

// Reader produces the batches of one entity per Read call.
type Reader interface {
	Generic
	Read(ctx context.Context, s *Session) error
}

// Writer consumes batches. WriteBatch must not modify the batch.
type Writer interface {
	Generic
	WriteHeader(ctx context.Context, entity *models.SourceEntity) error
	WriteBatch(ctx context.Context, batch *BatchData, entity *models.SourceEntity) error
}

// Exclusive is implemented by writers that must not run concurrently with
// other writers. A single exclusive writer forces the run into serial mode.
type Exclusive interface {
	Exclusive() bool
}

func isExclusive(w Writer) bool {
	x, ok := w.(Exclusive)
	return ok && x.Exclusive()
}

// NamedWriter is a configured writer instance.
type NamedWriter struct {
	Name   string
	Writer Writer
}

// BatchProcessor accepts the batches a reader produces.
type BatchProcessor interface {
	Parallel() bool
	ProcessBatch(ctx context.Context, batch *BatchData, entity *models.SourceEntity, moreData bool) error
	NoDataIsComing(ctx context.Context) error
}

type registry[T any] struct {
	kind string
	mu   sync.RWMutex
	m    map[string]T
}

func newRegistry[T any](kind string) *registry[T] {
	return &registry[T]{kind: kind, m: map[string]T{}}
}

func (r *registry[T]) register(name string, v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[name] = v
}

func (r *registry[T]) get(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.m[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("unknown %s type %q", r.kind, name)
	}
	return v, nil
}

func (r *registry[T]) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.m))
	for n := range r.m {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

var (
	readers = newRegistry[func() Reader]("reader")
	writers = newRegistry[func() Writer]("writer")
	filters = newRegistry[FilterFactory]("exclusion filter")
)

// RegisterReader makes a reader implementation available as <name>_type.
func RegisterReader(typ string, factory func() Reader) { readers.register(typ, factory) }

// RegisterWriter makes a writer implementation available as <name>_type.
func RegisterWriter(typ string, factory func() Writer) { writers.register(typ, factory) }

func NewReader(typ string) (Reader, error) {
	f, err := readers.get(typ)
	if err != nil {
		return nil, err
	}
	return f(), nil
}

func NewWriter(typ string) (Writer, error) {
	f, err := writers.get(typ)
	if err != nil {
		return nil, err
	}
	return f(), nil
}

func ReaderTypes() []string { return readers.names() }
func WriterTypes() []string { return writers.names() }
