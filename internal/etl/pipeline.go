package etl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/internal/geodata"
	"github.com/BartekS5/mapflow/pkg/logger"
	"github.com/BartekS5/mapflow/pkg/models"
)

// Pipeline runs one configured reader against its writers, entity by
// entity.
type Pipeline struct {
	Store   *config.Store
	Reader  Reader
	Name    string
	Writers []NamedWriter
	Geo     geodata.Lookup
	DryRun  bool
}

// NewPipeline builds the reader and writers named in store. The
// implementation of each is selected by <name>_type and defaults to the
// name itself.
func NewPipeline(store *config.Store, dryRun bool) (*Pipeline, error) {
	rname, err := store.ReaderName()
	if err != nil {
		return nil, err
	}
	r, err := NewReader(implType(store, rname))
	if err != nil {
		return nil, config.Errorf(rname+"_type", "%v", err)
	}
	wnames, err := store.WriterNames()
	if err != nil {
		return nil, err
	}
	p := &Pipeline{Store: store, Reader: r, Name: rname, DryRun: dryRun, Geo: geodata.Default()}
	for _, n := range wnames {
		w, err := NewWriter(implType(store, n))
		if err != nil {
			return nil, config.Errorf(n+"_type", "%v", err)
		}
		p.Writers = append(p.Writers, NamedWriter{Name: n, Writer: w})
	}
	return p, nil
}

func implType(store *config.Store, name string) string {
	return store.Resolver(name).String("", "type", name)
}

// Run reads every declared entity and delivers its batches. Entities
// recorded in the checkpoint file are skipped; the file is removed after
// a successful run.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	runID := uuid.NewString()
	log := logger.With("run_id", runID)

	mode, err := p.Store.BatchMode()
	if err != nil {
		return err
	}
	names, err := p.Store.SourceEntities()
	if err != nil {
		return err
	}
	checkpoint := p.Store.CheckpointFile()
	done := loadCheckpoint(checkpoint)

	var todo []string
	for _, n := range names {
		if done[n] {
			log.Info("skipping entity from checkpoint", "entity", n)
			continue
		}
		todo = append(todo, n)
	}

	rr := p.Store.Resolver(p.Name)
	if err := p.Reader.Initialize(ctx, rr); err != nil {
		return NewReaderError(p.Name, err)
	}
	defer func() {
		if cerr := p.Reader.Close(ctx); cerr != nil && err == nil {
			err = NewReaderError(p.Name, cerr)
		}
	}()
	for _, w := range p.Writers {
		if err := w.Writer.Initialize(ctx, p.Store.Resolver(w.Name)); err != nil {
			return NewWriterError(w.Name, err)
		}
	}
	defer func() {
		for _, w := range p.Writers {
			if cerr := w.Writer.Close(ctx); cerr != nil && err == nil {
				err = NewWriterError(w.Name, cerr)
			}
		}
	}()

	d := NewDispatcher(mode, p.Writers, todo, p.DryRun)
	log.Info("starting run", "reader", p.Name, "writers", len(p.Writers), "entities", len(todo),
		"mode", modeName(d.Parallel()), "dry_run", p.DryRun)
	start := time.Now()

	for i, name := range todo {
		entity := models.NewSourceEntity(name, rr.List(name, "source_fields"))
		if i == 0 {
			entity.MarkFirst()
		}
		if i == len(todo)-1 {
			entity.MarkLast()
		}
		if err := p.runEntity(ctx, d, rr, entity); err != nil {
			log.Error("entity failed", "entity", name, "err", err)
			if derr := d.NoDataIsComing(ctx); derr != nil && !errors.Is(derr, ErrDispatcherState) {
				log.Error("draining after failure", "err", derr)
			}
			return err
		}
		log.Info("entity read", "entity", name)
	}

	if err := d.NoDataIsComing(ctx); err != nil {
		return err
	}
	stats := d.Stats()
	rate := 0.0
	if secs := time.Since(start).Seconds(); secs > 0 {
		rate = float64(stats.Records) / secs
	}
	log.Info("run finished", "batches", stats.Batches, "records", stats.Records, "rate", fmt.Sprintf("%.2f/s", rate))
	if checkpoint != "" && !p.DryRun {
		if err := removeFile(checkpoint); err != nil && !os.IsNotExist(err) {
			log.Warn("could not remove checkpoint file, its entities will be skipped next run", "file", checkpoint, "err", err)
		}
	}
	return nil
}

func (p *Pipeline) runEntity(ctx context.Context, d *Dispatcher, rr config.Resolver, entity *models.SourceEntity) error {
	// Writers may still be busy with the previous entity's last batch.
	if err := d.Flush(); err != nil {
		return err
	}
	if err := p.Reader.InitializeEntity(ctx, entity); err != nil {
		return NewReaderError(p.Name, err)
	}
	if entity.Width() == 0 {
		return NewReaderError(p.Name, config.Errorf(rr.Key(entity.Name(), "source_fields"), "no source fields for entity %s", entity.Name()))
	}
	for _, w := range p.Writers {
		if err := w.Writer.InitializeEntity(ctx, entity); err != nil {
			return NewWriterError(w.Name, err)
		}
		if p.Store.WriteHeader() && !p.DryRun {
			if err := w.Writer.WriteHeader(ctx, entity); err != nil {
				return NewWriterError(w.Name, err)
			}
		}
	}

	filter, err := NewFilter(rr, entity)
	if err != nil {
		return NewReaderError(p.Name, err)
	}
	norm := NewNormalizer(rr, entity.Name(), p.Geo)
	s := NewSession(p.Name, entity, norm, filter, d, p.Store.Delimiter(), p.Store.BatchSize())
	if err := p.Reader.Read(ctx, s); err != nil {
		return NewReaderError(p.Name, err)
	}
	if err := s.finish(ctx); err != nil {
		return err
	}
	if p.Store.CheckpointFile() != "" && !p.DryRun {
		if err := d.Flush(); err != nil {
			return err
		}
		return appendCheckpoint(p.Store.CheckpointFile(), entity.Name())
	}
	return nil
}

var removeFile = os.Remove

func modeName(parallel bool) string {
	if parallel {
		return config.ModeParallel
	}
	return config.ModeSerial
}

func loadCheckpoint(filename string) map[string]bool {
	done := map[string]bool{}
	if filename == "" {
		return done
	}
	f, err := os.Open(filename)
	if err != nil {
		return done
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if name := strings.TrimSpace(sc.Text()); name != "" {
			done[name] = true
		}
	}
	return done
}

func appendCheckpoint(filename, entity string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, entity)
	return err
}
