package etl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/pkg/models"
)

// journal records writer calls across writers.
type journal struct {
	mu    sync.Mutex
	calls []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	j.calls = append(j.calls, s)
	j.mu.Unlock()
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.calls...)
}

type recordingWriter struct {
	name      string
	journal   *journal
	delay     time.Duration
	failOn    string
	exclusive bool
	seen      []string
	mu        sync.Mutex
}

func (w *recordingWriter) Initialize(context.Context, config.Resolver) error            { return nil }
func (w *recordingWriter) InitializeEntity(context.Context, *models.SourceEntity) error { return nil }
func (w *recordingWriter) WriteHeader(context.Context, *models.SourceEntity) error      { return nil }
func (w *recordingWriter) Close(context.Context) error                                  { return nil }
func (w *recordingWriter) Exclusive() bool                                              { return w.exclusive }

func (w *recordingWriter) WriteBatch(_ context.Context, b *BatchData, _ *models.SourceEntity) error {
	if w.delay > 0 {
		time.Sleep(w.delay)
	}
	label := b.Render()
	w.mu.Lock()
	w.seen = append(w.seen, label)
	w.mu.Unlock()
	if w.journal != nil {
		w.journal.add(fmt.Sprintf("%s(%s)", w.name, label))
	}
	if label == w.failOn {
		return errors.New("boom")
	}
	return nil
}

func (w *recordingWriter) batches() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.seen...)
}

func batchOf(t *testing.T, e *models.SourceEntity, label string) *BatchData {
	t.Helper()
	b := NewBatch(e, ";")
	require.NoError(t, b.Add([]string{label}))
	return b
}

func TestDispatcher_SerialOrder(t *testing.T) {
	ctx := context.Background()
	j := &journal{}
	a := &recordingWriter{name: "A", journal: j}
	b := &recordingWriter{name: "B", journal: j}
	d := NewDispatcher(config.ModeSerial, []NamedWriter{{"A", a}, {"B", b}}, []string{"e"}, false)
	e := models.NewSourceEntity("e", []string{"v"})

	assert.Equal(t, Idle, d.State())
	require.NoError(t, d.ProcessBatch(ctx, batchOf(t, e, "b1"), e, true))
	assert.Equal(t, Dispatching, d.State())
	require.NoError(t, d.ProcessBatch(ctx, batchOf(t, e, "b2"), e, false))
	require.NoError(t, d.NoDataIsComing(ctx))
	assert.Equal(t, Done, d.State())

	assert.Equal(t, []string{"A(b1)", "B(b1)", "A(b2)", "B(b2)"}, j.all())
}

func TestDispatcher_ParallelKeepsPerWriterOrder(t *testing.T) {
	ctx := context.Background()
	slow := &recordingWriter{name: "slow", delay: 5 * time.Millisecond}
	fast := &recordingWriter{name: "fast"}
	d := NewDispatcher(config.ModeParallel, []NamedWriter{{"slow", slow}, {"fast", fast}}, []string{"e"}, false)
	require.True(t, d.Parallel())
	e := models.NewSourceEntity("e", []string{"v"})

	var want []string
	for i := 1; i <= 6; i++ {
		label := fmt.Sprintf("b%d", i)
		want = append(want, label)
		require.NoError(t, d.ProcessBatch(ctx, batchOf(t, e, label), e, i < 6))
	}
	require.NoError(t, d.NoDataIsComing(ctx))

	assert.Equal(t, want, slow.batches())
	assert.Equal(t, want, fast.batches())
	assert.Equal(t, Stats{Batches: 6, Records: 6}, d.Stats())
}

func TestDispatcher_ParallelErrorAfterSiblingsFinish(t *testing.T) {
	ctx := context.Background()
	failing := &recordingWriter{name: "bad", failOn: "b1"}
	sibling := &recordingWriter{name: "good", delay: 10 * time.Millisecond}
	d := NewDispatcher(config.ModeParallel, []NamedWriter{{"bad", failing}, {"good", sibling}}, []string{"e"}, false)
	e := models.NewSourceEntity("e", []string{"v"})

	require.NoError(t, d.ProcessBatch(ctx, batchOf(t, e, "b1"), e, false))
	err := d.NoDataIsComing(ctx)
	require.Error(t, err)

	var we *WriterError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, "bad", we.Writer)
	assert.Equal(t, []string{"b1"}, sibling.batches())
	assert.Equal(t, Done, d.State())
}

func TestDispatcher_ExclusiveForcesSerial(t *testing.T) {
	mail := &recordingWriter{name: "mail", exclusive: true}
	d := NewDispatcher(config.ModeParallel, []NamedWriter{{"db", &recordingWriter{}}, {"mail", mail}}, []string{"e"}, false)
	assert.False(t, d.Parallel())
}

func TestDispatcher_FirstAndLastMarks(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(config.ModeSerial, []NamedWriter{{"A", &recordingWriter{}}}, []string{"e", "f"}, false)
	e := models.NewSourceEntity("e", []string{"v"})
	f := models.NewSourceEntity("f", []string{"v"})

	b1, b2, b3 := batchOf(t, e, "1"), batchOf(t, f, "2"), batchOf(t, f, "3")
	require.NoError(t, d.ProcessBatch(ctx, b1, e, true))
	require.NoError(t, d.ProcessBatch(ctx, b2, f, true))
	require.NoError(t, d.ProcessBatch(ctx, b3, f, false))

	assert.True(t, b1.IsFirst())
	assert.False(t, b2.IsFirst())
	assert.False(t, b2.IsLast())
	assert.True(t, b3.IsLast())
	for _, b := range []*BatchData{b1, b2, b3} {
		assert.True(t, b.IsProcessed())
	}

	err := d.ProcessBatch(ctx, batchOf(t, f, "4"), f, false)
	assert.ErrorIs(t, err, ErrDispatcherState)
}

func TestDispatcher_RejectsBadSequences(t *testing.T) {
	ctx := context.Background()
	e := models.NewSourceEntity("e", []string{"v"})
	f := models.NewSourceEntity("f", []string{"v"})

	t.Run("entity order", func(t *testing.T) {
		d := NewDispatcher(config.ModeSerial, nil, []string{"e", "f"}, false)
		require.NoError(t, d.ProcessBatch(ctx, batchOf(t, f, "1"), f, true))
		assert.ErrorIs(t, d.ProcessBatch(ctx, batchOf(t, e, "2"), e, true), ErrDispatcherState)
	})
	t.Run("undeclared entity", func(t *testing.T) {
		d := NewDispatcher(config.ModeSerial, nil, []string{"e"}, false)
		assert.ErrorIs(t, d.ProcessBatch(ctx, batchOf(t, f, "1"), f, true), ErrDispatcherState)
	})
	t.Run("redispatch", func(t *testing.T) {
		d := NewDispatcher(config.ModeSerial, nil, []string{"e"}, false)
		b := batchOf(t, e, "1")
		require.NoError(t, d.ProcessBatch(ctx, b, e, true))
		assert.ErrorIs(t, d.ProcessBatch(ctx, b, e, true), ErrDispatcherState)
	})
	t.Run("after drain", func(t *testing.T) {
		d := NewDispatcher(config.ModeSerial, nil, []string{"e"}, false)
		require.NoError(t, d.NoDataIsComing(ctx))
		assert.ErrorIs(t, d.ProcessBatch(ctx, batchOf(t, e, "1"), e, false), ErrDispatcherState)
		assert.ErrorIs(t, d.NoDataIsComing(ctx), ErrDispatcherState)
	})
}

func TestDispatcher_DryRunSkipsWriters(t *testing.T) {
	ctx := context.Background()
	w := &recordingWriter{}
	d := NewDispatcher(config.ModeParallel, []NamedWriter{{"A", w}}, []string{"e"}, true)
	e := models.NewSourceEntity("e", []string{"v"})
	require.NoError(t, d.ProcessBatch(ctx, batchOf(t, e, "1"), e, false))
	require.NoError(t, d.NoDataIsComing(ctx))
	assert.Empty(t, w.batches())
	assert.Equal(t, 1, d.Stats().Batches)
}
