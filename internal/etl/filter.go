package etl

import (
	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/pkg/models"
)

// Filter decides whether a normalized record is added to its batch.
type Filter interface {
	Keep(entity *models.SourceEntity, record []string) (bool, error)
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(entity *models.SourceEntity, record []string) (bool, error)

func (f FilterFunc) Keep(entity *models.SourceEntity, record []string) (bool, error) {
	return f(entity, record)
}

// FilterFactory builds a filter for one reader and entity.
type FilterFactory func(rr config.Resolver, entity *models.SourceEntity) (Filter, error)

// RegisterFilter makes a filter available for the exclusion_filter key.
func RegisterFilter(name string, f FilterFactory) { filters.register(name, f) }

func FilterNames() []string { return filters.names() }

// NewFilter returns the filter configured for entity, or nil.
func NewFilter(rr config.Resolver, entity *models.SourceEntity) (Filter, error) {
	name := rr.String(entity.Name(), "exclusion_filter", "")
	if name == "" {
		return nil, nil
	}
	f, err := filters.get(name)
	if err != nil {
		return nil, config.Errorf(rr.Key(entity.Name(), "exclusion_filter"), "%v", err)
	}
	return f(rr, entity)
}

func init() {
	RegisterFilter("exclude_values", newExcludeValues)
}

// excludeValues drops records where a field holds one of the listed
// values:
//
//	<reader>_<entity>_exclude=status:deleted|status:archived|country:XX
type excludeValues struct {
	rules map[int]map[string]bool
}

func newExcludeValues(rr config.Resolver, entity *models.SourceEntity) (Filter, error) {
	pairs, err := rr.Pairs(entity.Name(), "exclude", ":", "|")
	if err != nil {
		return nil, err
	}
	f := &excludeValues{rules: map[int]map[string]bool{}}
	for _, p := range pairs {
		i := entity.IndexOf(p[0])
		if i < 0 {
			return nil, config.Errorf(rr.Key(entity.Name(), "exclude"), "unknown source field %q", p[0])
		}
		if f.rules[i] == nil {
			f.rules[i] = map[string]bool{}
		}
		f.rules[i][p[1]] = true
	}
	return f, nil
}

func (f *excludeValues) Keep(_ *models.SourceEntity, record []string) (bool, error) {
	for i, values := range f.rules {
		if i < len(record) && values[record[i]] {
			return false, nil
		}
	}
	return true, nil
}
