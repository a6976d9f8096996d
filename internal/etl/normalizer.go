package etl

import (
	"strings"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/internal/geodata"
)

// DefaultISO is used for unresolvable country values when map_default_iso
// is not set.
const DefaultISO = "XX"

// Normalizer cleans a raw value before a reader adds it to a batch. The
// steps run in a fixed order: null coercion, trimming, character
// replacement, country to ISO code mapping.
type Normalizer struct {
	cleanNull bool
	trim      bool
	replace   bool
	oldChar   string
	newChar   string
	mapISO    bool
	countries map[string]bool
	defISO    string
	geo       geodata.Lookup
}

// NewNormalizer reads the normalization keys of entity from the reader
// resolver, falling back to the general keys.
func NewNormalizer(rr config.Resolver, entity string, geo geodata.Lookup) *Normalizer {
	gen := rr.Store().General()
	yes := func(suffix string, def bool) bool {
		return rr.IsYes(entity, suffix, gen.IsYes("", suffix, def))
	}
	str := func(suffix, def string) string {
		return rr.String(entity, suffix, gen.String("", suffix, def))
	}

	n := &Normalizer{
		cleanNull: yes("clean_null_values", true),
		trim:      yes("trim_values", true),
		replace:   yes("replace_char", false),
		oldChar:   str("replace_char_old", ""),
		newChar:   str("replace_char_new", ""),
		mapISO:    yes("map_iso_codes", false),
		countries: map[string]bool{},
		defISO:    strings.ToUpper(str("map_default_iso", DefaultISO)),
		geo:       geo,
	}
	fields := rr.List(entity, "source_country_fields")
	if fields == nil {
		fields = gen.List("", "source_country_fields")
	}
	for _, f := range fields {
		n.countries[f] = true
	}
	if n.geo == nil {
		n.geo = geodata.Default()
	}
	return n
}

// Normalize returns the cleaned value of field. Absent and null values
// become empty and skip the remaining steps.
func (n *Normalizer) Normalize(value *string, field string) string {
	if value == nil {
		return ""
	}
	v := *value
	if n.cleanNull && strings.EqualFold(strings.TrimSpace(v), "null") {
		return ""
	}
	if n.trim {
		v = strings.TrimSpace(v)
	}
	if n.replace && n.oldChar != "" && strings.Contains(v, n.oldChar) {
		v = strings.ReplaceAll(v, n.oldChar, n.newChar)
	}
	if n.mapISO && n.countries[field] {
		if iso, ok := n.geo.ISO(v); ok {
			v = strings.ToUpper(iso)
		} else {
			v = n.defISO
		}
	}
	return v
}

// NormalizeString is Normalize for a present value.
func (n *Normalizer) NormalizeString(value, field string) string {
	return n.Normalize(&value, field)
}
