package mapping

import (
	"fmt"
	"sort"
	"sync"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/pkg/models"
)

// Decision is returned by a Hook for every mapping it sees.
type Decision int

const (
	// Continue discards the hook value and evaluates the formula.
	Continue Decision = iota
	// Handled makes the hook value authoritative for this mapping.
	Handled
)

// Hook overrides formula evaluation for selected mappings. A WriterMapping
// owns its hook, so one instance is never called concurrently.
type Hook interface {
	Parse(m FieldMapping, values []string, entity *models.SourceEntity) (string, Decision, error)
}

// HookFunc adapts a function to Hook.
type HookFunc func(m FieldMapping, values []string, entity *models.SourceEntity) (string, Decision, error)

func (f HookFunc) Parse(m FieldMapping, values []string, entity *models.SourceEntity) (string, Decision, error) {
	return f(m, values, entity)
}

// HookFactory builds a hook for one writer and entity.
type HookFactory func(rw config.Resolver, entity *models.SourceEntity) (Hook, error)

var (
	hooksMu sync.RWMutex
	hooks   = map[string]HookFactory{}
)

// RegisterHook makes a hook available under name for the custom_mapper key.
func RegisterHook(name string, f HookFactory) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	hooks[name] = f
}

// NewHook builds the hook registered under name.
func NewHook(name string, rw config.Resolver, entity *models.SourceEntity) (Hook, error) {
	hooksMu.RLock()
	f, ok := hooks[name]
	hooksMu.RUnlock()
	if !ok {
		return nil, config.Errorf(rw.Key(entity.Name(), "custom_mapper"), "unknown custom mapper %q", name)
	}
	h, err := f(rw, entity)
	if err != nil {
		return nil, fmt.Errorf("custom mapper %s: %w", name, err)
	}
	return h, nil
}

// Hooks lists the registered hook names.
func Hooks() []string {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	names := make([]string, 0, len(hooks))
	for n := range hooks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
