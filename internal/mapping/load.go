package mapping

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/pkg/models"
)

const (
	fieldInfix  = "mapping_field_"
	insertInfix = "mapping_insert_"
)

// Load reads the mapping declarations of entity for the writer behind rw
// and returns them sorted by ordinal. Declarations are taken from the
// first scope that has any: the entity itself, the wildcard, the writer.
func Load(rw config.Resolver, entity *models.SourceEntity) (*WriterMapping, error) {
	wm := &WriterMapping{
		writer:     rw.Name(),
		entity:     entity,
		destEntity: rw.String(entity.Name(), "dest_entity", ""),
		uniqueID:   rw.String(entity.Name(), "dest_unique_id_field", ""),
		filter:     rw.List(entity.Name(), "dest_filter_fields"),
		connective: strings.ToUpper(rw.String(entity.Name(), "filter_connective", "AND")),
		extended:   rw.IsYes(entity.Name(), "extended_insert_mapping", false),
		delimiter:  rw.String(entity.Name(), "value_delimiter", rw.Store().Delimiter()),
		enclosure:  rw.String(entity.Name(), "value_enclosure", rw.Store().Enclosure()),
		absent: Absent{
			Allow:       rw.IsYes(entity.Name(), "allow_absent_fields", false),
			Placeholder: rw.String(entity.Name(), "absent_field_placeholder", ""),
		},
	}

	fields, err := loadFields(rw, entity)
	if err != nil {
		return nil, err
	}
	wm.fields = fields

	if name := rw.String(entity.Name(), "custom_mapper", ""); name != "" {
		h, err := NewHook(name, rw, entity)
		if err != nil {
			return nil, err
		}
		wm.hook = h
	}

	if err := wm.validate(rw); err != nil {
		return nil, err
	}
	return wm, nil
}

func loadFields(rw config.Resolver, entity *models.SourceEntity) ([]FieldMapping, error) {
	store := rw.Store()
	var keys []string
	var prefix string
	for _, scope := range []string{entity.Name(), config.Wildcard, ""} {
		prefix = rw.Key(scope, "")
		if prefix != "" {
			prefix += "_"
		}
		keys = keys[:0]
		for _, k := range store.KeysWithPrefix(prefix) {
			rest := k[len(prefix):]
			if strings.HasPrefix(rest, fieldInfix) || strings.HasPrefix(rest, insertInfix) {
				keys = append(keys, k)
			}
		}
		if len(keys) > 0 {
			break
		}
	}

	seen := map[int]string{}
	out := make([]FieldMapping, 0, len(keys))
	for _, key := range keys {
		rest := key[len(prefix):]
		kind, digits := Update, strings.TrimPrefix(rest, fieldInfix)
		if strings.HasPrefix(rest, insertInfix) {
			kind, digits = InsertOnly, strings.TrimPrefix(rest, insertInfix)
		}
		ordinal, err := parseOrdinal(digits)
		if err != nil {
			return nil, config.Errorf(key, "%v", err)
		}
		if other, dup := seen[ordinal]; dup {
			return nil, config.Errorf(key, "ordinal %d already used by %s", ordinal, other)
		}
		seen[ordinal] = key

		value, _ := store.Get(key)
		fm, err := parseDeclaration(value, entity)
		if err != nil {
			return nil, config.Errorf(key, "%v", err)
		}
		fm.Ordinal, fm.Kind = ordinal, kind
		out = append(out, fm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}

func parseOrdinal(s string) (int, error) {
	if s == "" || strings.Trim(s, "0123456789") != "" {
		return 0, fmt.Errorf("invalid ordinal %q", s)
	}
	return strconv.Atoi(s)
}

// parseDeclaration splits "dest:expression" on the first colon.
func parseDeclaration(value string, entity *models.SourceEntity) (FieldMapping, error) {
	dest, expr, ok := strings.Cut(value, ":")
	dest = strings.TrimSpace(dest)
	if !ok || dest == "" {
		return FieldMapping{}, fmt.Errorf("malformed declaration %q, expected dest:expression", value)
	}
	fm := FieldMapping{Dest: dest, Expr: expr}
	if strings.TrimSpace(expr) == Passthrough {
		if !entity.Contains(dest) {
			return FieldMapping{}, fmt.Errorf("passthrough mapping: no source field named %q", dest)
		}
		fm.formula = fieldFormula(dest)
		return fm, nil
	}
	f, err := ParseFormula(expr)
	if err != nil {
		return FieldMapping{}, err
	}
	fm.formula = f
	return fm, nil
}
