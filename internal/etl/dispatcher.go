package etl

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/pkg/logger"
	"github.com/BartekS5/mapflow/pkg/models"
)

// State of a Dispatcher.
type State int

const (
	Idle State = iota
	Dispatching
	Draining
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dispatching:
		return "dispatching"
	case Draining:
		return "draining"
	case Done:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Stats counts what a dispatcher delivered.
type Stats struct {
	Batches int
	Records int
}

// Dispatcher delivers batches to the writers of a run. In serial mode the
// writers run one after the other in declaration order. In parallel mode
// every writer gets the batch concurrently, and a batch is only launched
// after all writers finished the previous one.
type Dispatcher struct {
	writers  []NamedWriter
	parallel bool
	dryRun   bool
	order    map[string]int

	mu       sync.Mutex
	state    State
	current  *models.SourceEntity
	pos      int
	first    bool
	last     bool
	inflight *errgroup.Group
	stats    Stats
}

// NewDispatcher creates a dispatcher for entities in declaration order.
// An exclusive writer forces serial mode.
func NewDispatcher(mode string, ws []NamedWriter, entities []string, dryRun bool) *Dispatcher {
	d := &Dispatcher{
		writers:  ws,
		parallel: mode == config.ModeParallel,
		dryRun:   dryRun,
		order:    make(map[string]int, len(entities)),
		pos:      -1,
	}
	for i, e := range entities {
		if _, dup := d.order[e]; !dup {
			d.order[e] = i
		}
	}
	if d.parallel {
		for _, w := range ws {
			if isExclusive(w.Writer) {
				logger.Warnf("writer %s requires exclusive delivery, switching to serial mode", w.Name)
				d.parallel = false
				break
			}
		}
	}
	return d
}

func (d *Dispatcher) Parallel() bool { return d.parallel }

func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// ProcessBatch delivers batch. moreData is false only for the last batch
// of the run, which is then marked last.
func (d *Dispatcher) ProcessBatch(ctx context.Context, batch *BatchData, entity *models.SourceEntity, moreData bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case Idle:
		d.state = Dispatching
	case Dispatching:
	default:
		return fmt.Errorf("%w: batch for %s while %s", ErrDispatcherState, entity.Name(), d.state)
	}
	if batch.IsProcessed() {
		return fmt.Errorf("%w: batch for %s was already dispatched", ErrDispatcherState, entity.Name())
	}
	if batch.Entity() != entity {
		return fmt.Errorf("%w: batch does not belong to entity %s", ErrDispatcherState, entity.Name())
	}
	if err := d.enter(entity); err != nil {
		return err
	}
	if !moreData {
		if d.last {
			return fmt.Errorf("%w: last batch was already dispatched", ErrDispatcherState)
		}
		d.last = true
		batch.markLast()
	}
	if !d.first {
		d.first = true
		batch.markFirst()
	}

	// Batches are immutable once handed over.
	batch.markProcessed()
	d.stats.Batches++
	d.stats.Records += batch.Len()

	if d.dryRun {
		logger.Infof("[DRY RUN] entity %s: would deliver %d records to %d writers", entity.Name(), batch.Len(), len(d.writers))
		return nil
	}
	if !d.parallel {
		return d.serial(ctx, batch, entity)
	}
	if err := d.wait(); err != nil {
		return err
	}
	g := new(errgroup.Group)
	for _, w := range d.writers {
		g.Go(func() error {
			return NewWriterError(w.Name, w.Writer.WriteBatch(ctx, batch, entity))
		})
	}
	d.inflight = g
	return nil
}

// enter checks that entity is the current one or follows it.
func (d *Dispatcher) enter(entity *models.SourceEntity) error {
	if entity == d.current {
		return nil
	}
	pos, ok := d.order[entity.Name()]
	if !ok {
		return fmt.Errorf("%w: entity %s is not declared", ErrDispatcherState, entity.Name())
	}
	if pos <= d.pos {
		return fmt.Errorf("%w: entity %s arrives after its successors", ErrDispatcherState, entity.Name())
	}
	// Entity barrier: the previous entity is fully delivered first.
	if err := d.wait(); err != nil {
		return err
	}
	d.current, d.pos = entity, pos
	return nil
}

func (d *Dispatcher) serial(ctx context.Context, batch *BatchData, entity *models.SourceEntity) error {
	for _, w := range d.writers {
		if err := w.Writer.WriteBatch(ctx, batch, entity); err != nil {
			return NewWriterError(w.Name, err)
		}
	}
	return nil
}

// wait blocks until the in-flight batch is delivered to every writer.
func (d *Dispatcher) wait() error {
	if d.inflight == nil {
		return nil
	}
	g := d.inflight
	d.inflight = nil
	return g.Wait()
}

// Flush waits for the batch in flight, if any.
func (d *Dispatcher) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wait()
}

// NoDataIsComing drains the dispatcher. It returns the first error of the
// batch still in flight.
func (d *Dispatcher) NoDataIsComing(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Draining || d.state == Done {
		return fmt.Errorf("%w: already %s", ErrDispatcherState, d.state)
	}
	d.state = Draining
	err := d.wait()
	d.state = Done
	logger.Debugf("dispatcher done: %d batches, %d records", d.stats.Batches, d.stats.Records)
	return err
}
