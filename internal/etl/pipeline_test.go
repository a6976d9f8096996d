package etl

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/internal/mapping"
	"github.com/BartekS5/mapflow/pkg/logger"
	"github.com/BartekS5/mapflow/pkg/models"
)

// memoryReader serves records from a map keyed by entity. The first row
// of every entity holds the field names.
type memoryReader struct {
	data map[string][][]string
	rows [][]string
}

func (r *memoryReader) Initialize(context.Context, config.Resolver) error { return nil }
func (r *memoryReader) Close(context.Context) error                       { return nil }

func (r *memoryReader) InitializeEntity(_ context.Context, e *models.SourceEntity) error {
	rows := r.data[e.Name()]
	if len(rows) == 0 {
		return errors.New("no data")
	}
	r.rows = rows[1:]
	return e.OverwriteFields(rows[0])
}

func (r *memoryReader) Read(ctx context.Context, s *Session) error {
	b := s.NewBatch()
	for _, row := range r.rows {
		if _, err := s.Add(b, row); err != nil {
			return err
		}
		if b.Len() == s.BatchSize() {
			if err := s.Emit(ctx, b, true); err != nil {
				return err
			}
			b = s.NewBatch()
		}
	}
	return s.Emit(ctx, b, false)
}

// mappingWriter renders every record through its writer mapping.
type mappingWriter struct {
	mu       sync.Mutex
	rc       config.Resolver
	mappings map[string]*mapping.WriterMapping
	lines    []string
	headers  []string
	last     int
}

func (w *mappingWriter) Initialize(_ context.Context, rc config.Resolver) error {
	w.rc = rc
	w.mappings = map[string]*mapping.WriterMapping{}
	return nil
}

func (w *mappingWriter) InitializeEntity(_ context.Context, e *models.SourceEntity) error {
	m, err := mapping.Load(w.rc, e)
	if err != nil {
		return err
	}
	w.mappings[e.Name()] = m
	return nil
}

func (w *mappingWriter) WriteHeader(_ context.Context, e *models.SourceEntity) error {
	w.headers = append(w.headers, w.mappings[e.Name()].Header())
	return nil
}

func (w *mappingWriter) WriteBatch(_ context.Context, b *BatchData, e *models.SourceEntity) error {
	m := w.mappings[e.Name()]
	for _, rec := range b.Records() {
		row, err := m.Resolve(rec)
		if err != nil {
			return err
		}
		w.mu.Lock()
		w.lines = append(w.lines, row.CSV())
		w.mu.Unlock()
	}
	if b.IsLast() {
		w.last++
	}
	return nil
}

func (w *mappingWriter) Close(context.Context) error { return nil }

func runPipeline(t *testing.T, values map[string]string, data map[string][][]string) (*mappingWriter, error) {
	t.Helper()
	w := &mappingWriter{}
	RegisterReader("memory", func() Reader { return &memoryReader{data: data} })
	RegisterWriter("recorder", func() Writer { return w })

	base := map[string]string{
		"reader":       "mem",
		"mem_type":     "memory",
		"writers":      "out",
		"out_type":     "recorder",
		"batch_size":   "2",
		"write_header": "yes",
	}
	for k, v := range values {
		base[k] = v
	}
	p, err := NewPipeline(config.NewStore(base, nil), false)
	require.NoError(t, err)
	return w, p.Run(context.Background())
}

func TestPipeline_PersonCountryScenario(t *testing.T) {
	w, err := runPipeline(t, map[string]string{
		"source_entities":              "person",
		"mem_map_iso_codes":            "yes",
		"mem_source_country_fields":    "country",
		"out_person_mapping_field_001": "label:{name} ({country})",
		"out_person_mapping_field_002": "id:*",
	}, map[string][][]string{
		"person": {
			{"id", "name", "country"},
			{"1", "Ann", "Switzerland"},
			{"2", " Bob ", ""},
			{"3", "Cem", "Türkei"},
			{"4", "Dee", " NULL "},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"label;id"}, w.headers)
	assert.Equal(t, []string{"Ann (CH);1", "Bob (XX);2", "Cem (TR);3", "Dee ();4"}, w.lines)
	assert.Equal(t, 1, w.last)
}

func TestPipeline_EntitiesInOrderWithFilter(t *testing.T) {
	w, err := runPipeline(t, map[string]string{
		"source_entities":         "a,b",
		"batch_mode":              "parallel",
		"mem_b_exclusion_filter":  "exclude_values",
		"mem_b_exclude":           "v:skip",
		"out_*_mapping_field_001": "v:*",
	}, map[string][][]string{
		"a": {{"v"}, {"a1"}, {"a2"}, {"a3"}},
		"b": {{"v"}, {"b1"}, {"skip"}, {"b2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "a3", "b1", "b2"}, w.lines)
	assert.Equal(t, 1, w.last)
}

func TestPipeline_MappingErrorAbortsRun(t *testing.T) {
	_, err := runPipeline(t, map[string]string{
		"source_entities":         "a",
		"out_a_mapping_field_001": "x:{missing}",
	}, map[string][][]string{"a": {{"v"}, {"1"}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, mapping.ErrMappingResolution)
	var we *WriterError
	assert.ErrorAs(t, err, &we)
}

func TestPipeline_Checkpoint(t *testing.T) {
	cp := filepath.Join(t.TempDir(), "checkpoint")
	require.NoError(t, os.WriteFile(cp, []byte("a\n"), 0644))

	w, err := runPipeline(t, map[string]string{
		"source_entities":         "a,b",
		"checkpoint_file":         cp,
		"out_*_mapping_field_001": "v:*",
	}, map[string][][]string{
		"a": {{"v"}, {"a1"}},
		"b": {{"v"}, {"b1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, w.lines)
	_, statErr := os.Stat(cp)
	assert.True(t, os.IsNotExist(statErr))
}

func TestNewPipeline_UnknownType(t *testing.T) {
	_, err := NewPipeline(config.NewStore(map[string]string{
		"reader":  "x",
		"writers": "console",
	}, nil), false)
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

// slowWriter takes its time per batch and counts entity setup calls that
// arrive while a batch is still being written.
type slowWriter struct {
	busy     atomic.Bool
	overlaps atomic.Int32
	batches  atomic.Int32
}

func (w *slowWriter) Initialize(context.Context, config.Resolver) error { return nil }
func (w *slowWriter) Close(context.Context) error                       { return nil }

func (w *slowWriter) InitializeEntity(context.Context, *models.SourceEntity) error {
	w.check()
	return nil
}

func (w *slowWriter) WriteHeader(context.Context, *models.SourceEntity) error {
	w.check()
	return nil
}

func (w *slowWriter) check() {
	if w.busy.Load() {
		w.overlaps.Add(1)
	}
}

func (w *slowWriter) WriteBatch(context.Context, *BatchData, *models.SourceEntity) error {
	w.busy.Store(true)
	time.Sleep(50 * time.Millisecond)
	w.busy.Store(false)
	w.batches.Add(1)
	return nil
}

func TestPipeline_ParallelEntitySetupWaitsForWriters(t *testing.T) {
	slow := &slowWriter{}
	RegisterWriter("slow", func() Writer { return slow })

	w, err := runPipeline(t, map[string]string{
		"source_entities":         "a,b,c",
		"batch_mode":              "parallel",
		"writers":                 "out,slow",
		"slow_type":               "slow",
		"out_*_mapping_field_001": "v:*",
	}, map[string][][]string{
		"a": {{"v"}, {"a1"}},
		"b": {{"v"}, {"b1"}},
		"c": {{"v"}, {"c1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(0), slow.overlaps.Load())
	assert.Equal(t, int32(3), slow.batches.Load())
	assert.Equal(t, []string{"a1", "b1", "c1"}, w.lines)
}

func TestPipeline_CheckpointRemovalFailureIsLogged(t *testing.T) {
	var out bytes.Buffer
	logger.SetOutput(&out, logger.INFO)
	removeFile = func(string) error { return os.ErrPermission }
	t.Cleanup(func() {
		removeFile = os.Remove
		logger.SetOutput(os.Stderr, logger.INFO)
	})

	cp := filepath.Join(t.TempDir(), "checkpoint")
	_, err := runPipeline(t, map[string]string{
		"source_entities":         "a",
		"checkpoint_file":         cp,
		"out_*_mapping_field_001": "v:*",
	}, map[string][][]string{"a": {{"v"}, {"a1"}}})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "could not remove checkpoint file")
	assert.FileExists(t, cp)
}
