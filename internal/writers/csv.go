package writers

import (
	"bufio"
	"context"
	"os"
	"path/filepath"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/internal/etl"
	"github.com/BartekS5/mapflow/pkg/models"
)

// CSV writes one delimited file per entity. Keys:
//
//	<w>_<e>_file   file path, default <w>_dir/<entity>.csv
//	<w>_append     append to existing files (default no)
type CSV struct {
	mapped
	file *os.File
	buf  *bufio.Writer
}

func (c *CSV) Initialize(_ context.Context, rc config.Resolver) error {
	c.init(rc)
	return nil
}

func (c *CSV) InitializeEntity(_ context.Context, e *models.SourceEntity) error {
	if _, err := c.load(e); err != nil {
		return err
	}
	if err := c.closeFile(); err != nil {
		return err
	}
	path := c.rc.String(e.Name(), "file", "")
	if path == "" {
		path = filepath.Join(c.rc.String(e.Name(), "dir", "."), e.FileName()+".csv")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if c.rc.IsYes(e.Name(), "append", false) {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return err
	}
	c.file, c.buf = f, bufio.NewWriter(f)
	return nil
}

func (c *CSV) WriteHeader(_ context.Context, e *models.SourceEntity) error {
	wm, err := c.mapping(e)
	if err != nil {
		return err
	}
	_, err = c.buf.WriteString(header(wm) + "\n")
	return err
}

func (c *CSV) WriteBatch(_ context.Context, b *etl.BatchData, e *models.SourceEntity) error {
	wm, err := c.mapping(e)
	if err != nil {
		return err
	}
	ls, err := lines(wm, b)
	if err != nil {
		return err
	}
	for _, l := range ls {
		if _, err := c.buf.WriteString(l + "\n"); err != nil {
			return err
		}
	}
	return c.buf.Flush()
}

func (c *CSV) Close(context.Context) error { return c.closeFile() }

func (c *CSV) closeFile() error {
	if c.file == nil {
		return nil
	}
	err := c.buf.Flush()
	if cerr := c.file.Close(); err == nil {
		err = cerr
	}
	c.file, c.buf = nil, nil
	return err
}
