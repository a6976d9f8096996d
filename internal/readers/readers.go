// Package readers holds the built-in reader implementations. Each
// registers itself with etl under its type name.
package readers

import (
	"context"

	"github.com/BartekS5/mapflow/internal/etl"
)

func init() {
	etl.RegisterReader("csv", func() etl.Reader { return &CSV{} })
	etl.RegisterReader("sql", func() etl.Reader { return &SQL{} })
	etl.RegisterReader("mongo", func() etl.Reader { return &Mongo{} })
	etl.RegisterReader("null", func() etl.Reader { return &Null{} })
}

// fill drives next until it reports io end, emitting a batch every
// BatchSize kept records. next returns nil values at the end.
func fill(ctx context.Context, s *etl.Session, next func() ([]*string, error)) error {
	b := s.NewBatch()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		values, err := next()
		if err != nil {
			return err
		}
		if values == nil {
			return s.Emit(ctx, b, false)
		}
		if _, err := s.AddNullable(b, values); err != nil {
			return err
		}
		if b.Len() >= s.BatchSize() {
			if err := s.Emit(ctx, b, true); err != nil {
				return err
			}
			b = s.NewBatch()
		}
	}
}
