package mapping

import (
	"strings"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/pkg/models"
)

func init() {
	RegisterHook("coalesce", newCoalesce)
}

// coalesce fills a destination field with the first non-empty value of a
// list of source fields:
//
//	<writer>_<entity>_coalesce=phone:mobile,landline|mail:work_mail,home_mail
type coalesce struct {
	sources map[string][]string
}

func newCoalesce(rw config.Resolver, entity *models.SourceEntity) (Hook, error) {
	pairs, err := rw.Pairs(entity.Name(), "coalesce", ":", "|")
	if err != nil {
		return nil, err
	}
	c := &coalesce{sources: map[string][]string{}}
	for _, p := range pairs {
		src := config.SplitList(p[1], ",")
		for _, f := range src {
			if !entity.Contains(f) {
				return nil, config.Errorf(rw.Key(entity.Name(), "coalesce"), "unknown source field %q", f)
			}
		}
		c.sources[p[0]] = src
	}
	return c, nil
}

func (c *coalesce) Parse(m FieldMapping, values []string, entity *models.SourceEntity) (string, Decision, error) {
	src, ok := c.sources[m.Dest]
	if !ok {
		return "", Continue, nil
	}
	for _, f := range src {
		if i := entity.IndexOf(f); i >= 0 && i < len(values) && strings.TrimSpace(values[i]) != "" {
			return values[i], Handled, nil
		}
	}
	return "", Handled, nil
}
