package mapping

import (
	"errors"
	"fmt"
)

// ErrMappingResolution is the kind of every error raised when a formula
// references a source field the entity does not have.
var ErrMappingResolution = errors.New("mapping resolution error")

// ResolutionError reports an unresolvable placeholder.
type ResolutionError struct {
	Entity string
	Field  string
	Dest   string
}

func (e *ResolutionError) Error() string {
	if e.Dest == "" {
		return fmt.Sprintf("entity %s: source field %q not found", e.Entity, e.Field)
	}
	return fmt.Sprintf("entity %s: source field %q not found (mapping %s)", e.Entity, e.Field, e.Dest)
}

func (e *ResolutionError) Unwrap() error { return ErrMappingResolution }
