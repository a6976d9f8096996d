package readers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/internal/etl"
	"github.com/BartekS5/mapflow/pkg/models"
)

// CSV reads one delimited file per entity. Keys:
//
//	<r>_<e>_file      file path, default <r>_dir/<entity>.csv
//	<r>_header_size   header lines; the last one names the fields (default 1)
type CSV struct {
	rc   config.Resolver
	file *os.File
	r    *csv.Reader
}

func (c *CSV) Initialize(_ context.Context, rc config.Resolver) error {
	c.rc = rc
	return nil
}

func (c *CSV) InitializeEntity(_ context.Context, e *models.SourceEntity) error {
	c.closeFile()
	path := c.rc.String(e.Name(), "file", "")
	if path == "" {
		path = filepath.Join(c.rc.String(e.Name(), "dir", "."), e.FileName()+".csv")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	c.file = f
	c.r = csv.NewReader(f)
	c.r.LazyQuotes = true
	c.r.FieldsPerRecord = -1
	delim := c.rc.String(e.Name(), "value_delimiter", c.rc.Store().Delimiter())
	if r, _ := utf8.DecodeRuneInString(delim); r != utf8.RuneError {
		c.r.Comma = r
	}

	headers := c.rc.Number(e.Name(), "header_size", 1)
	var names []string
	for i := 0; i < headers; i++ {
		rec, err := c.r.Read()
		if err != nil {
			return fmt.Errorf("reading header of %s: %w", path, err)
		}
		names = rec
	}
	if names != nil {
		return e.OverwriteFields(names)
	}
	return nil
}

func (c *CSV) Read(ctx context.Context, s *etl.Session) error {
	width := s.Entity().Width()
	return fill(ctx, s, func() ([]*string, error) {
		rec, err := c.r.Read()
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		values := make([]*string, width)
		for i := 0; i < width && i < len(rec); i++ {
			values[i] = &rec[i]
		}
		return values, nil
	})
}

func (c *CSV) Close(context.Context) error {
	return c.closeFile()
}

func (c *CSV) closeFile() error {
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file, c.r = nil, nil
	return err
}
