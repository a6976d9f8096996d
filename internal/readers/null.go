package readers

import (
	"context"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/internal/etl"
	"github.com/BartekS5/mapflow/pkg/models"
)

// Null produces one empty batch per entity. It drives writers that
// generate their own output, such as code writers.
type Null struct{}

func (Null) Initialize(context.Context, config.Resolver) error { return nil }

func (Null) InitializeEntity(_ context.Context, e *models.SourceEntity) error {
	if e.Width() == 0 {
		return e.OverwriteFields([]string{"value"})
	}
	return nil
}

func (Null) Read(ctx context.Context, s *etl.Session) error {
	return s.Emit(ctx, s.NewBatch(), false)
}

func (Null) Close(context.Context) error { return nil }
