package writers

import (
	"context"
	"sort"
	"sync"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/internal/etl"
	"github.com/BartekS5/mapflow/pkg/logger"
	"github.com/BartekS5/mapflow/pkg/models"
)

// Code is custom logic run as a writer, selected by <w>_implementation.
type Code interface {
	Initialize(ctx context.Context, rc config.Resolver) error
	Execute(ctx context.Context, batch *etl.BatchData, entity *models.SourceEntity) error
	Finish(ctx context.Context) error
}

var (
	codesMu sync.RWMutex
	codes   = map[string]func() Code{}
)

// RegisterCode makes a code implementation available under name.
func RegisterCode(name string, factory func() Code) {
	codesMu.Lock()
	defer codesMu.Unlock()
	codes[name] = factory
}

func CodeNames() []string {
	codesMu.RLock()
	defer codesMu.RUnlock()
	out := make([]string, 0, len(codes))
	for n := range codes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// CodeWriter hands every batch to a Code implementation.
type CodeWriter struct {
	code Code
}

func (c *CodeWriter) Initialize(ctx context.Context, rc config.Resolver) error {
	name, err := rc.Require("", "implementation")
	if err != nil {
		return err
	}
	codesMu.RLock()
	factory, ok := codes[name]
	codesMu.RUnlock()
	if !ok {
		return config.Errorf(rc.Key("implementation"), "unknown code implementation %q", name)
	}
	c.code = factory()
	return c.code.Initialize(ctx, rc)
}

func (c *CodeWriter) InitializeEntity(context.Context, *models.SourceEntity) error { return nil }

func (c *CodeWriter) WriteHeader(context.Context, *models.SourceEntity) error { return nil }

func (c *CodeWriter) WriteBatch(ctx context.Context, b *etl.BatchData, e *models.SourceEntity) error {
	return c.code.Execute(ctx, b, e)
}

func (c *CodeWriter) Close(ctx context.Context) error {
	if c.code == nil {
		return nil
	}
	return c.code.Finish(ctx)
}

func init() {
	RegisterCode("log", func() Code { return &logCode{counts: map[string]int{}} })
}

// logCode logs how many records each entity delivered.
type logCode struct {
	name   string
	order  []string
	counts map[string]int
}

func (l *logCode) Initialize(_ context.Context, rc config.Resolver) error {
	l.name = rc.Name()
	return nil
}

func (l *logCode) Execute(_ context.Context, b *etl.BatchData, e *models.SourceEntity) error {
	if _, seen := l.counts[e.Name()]; !seen {
		l.order = append(l.order, e.Name())
	}
	l.counts[e.Name()] += b.Len()
	return nil
}

func (l *logCode) Finish(context.Context) error {
	total := 0
	for _, e := range l.order {
		logger.Infof("writer %s: entity %s delivered %d records", l.name, e, l.counts[e])
		total += l.counts[e]
	}
	logger.Infof("writer %s: %d records in %d entities", l.name, total, len(l.order))
	return nil
}
