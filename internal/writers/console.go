package writers

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/internal/etl"
	"github.com/BartekS5/mapflow/pkg/models"
)

// Console prints batches as delimited text.
type Console struct {
	mapped
	mu  sync.Mutex
	out io.Writer
}

// NewConsole writes to out, or stdout when out is nil.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

func (c *Console) Initialize(_ context.Context, rc config.Resolver) error {
	c.init(rc)
	return nil
}

func (c *Console) InitializeEntity(_ context.Context, e *models.SourceEntity) error {
	_, err := c.load(e)
	return err
}

func (c *Console) WriteHeader(_ context.Context, e *models.SourceEntity) error {
	wm, err := c.mapping(e)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = fmt.Fprintf(c.out, "[Entity: %s]\n%s\n", e.Name(), header(wm))
	return err
}

func (c *Console) WriteBatch(_ context.Context, b *etl.BatchData, e *models.SourceEntity) error {
	wm, err := c.mapping(e)
	if err != nil {
		return err
	}
	ls, err := lines(wm, b)
	if err != nil || len(ls) == 0 {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = io.WriteString(c.out, strings.Join(ls, "\n")+"\n")
	return err
}

func (c *Console) Close(context.Context) error { return nil }
