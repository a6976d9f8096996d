package config

import (
	"strconv"
	"strings"
)

// Resolver looks up keys of one reader or writer. Lookups for an entity try
//
//	<prefix>_<entity>_<suffix>
//	<prefix>_*_<suffix>
//	<prefix>_<suffix>
//
// in that order. Plain lookups never decrypt; use Decoded for that.
type Resolver struct {
	store  *Store
	prefix string
}

// Name is the reader or writer name the resolver is bound to.
func (r Resolver) Name() string { return r.prefix }

func (r Resolver) Store() *Store { return r.store }

// Key builds a key from the prefix and parts, skipping empty parts.
func (r Resolver) Key(parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	if r.prefix != "" {
		all = append(all, r.prefix)
	}
	for _, p := range parts {
		if p != "" {
			all = append(all, p)
		}
	}
	return strings.Join(all, "_")
}

// Lookup returns the first value found along the cascade.
func (r Resolver) Lookup(entity, suffix string) (string, bool) {
	if entity != "" {
		if v, ok := r.store.Get(r.Key(entity, suffix)); ok {
			return v, true
		}
		if v, ok := r.store.Get(r.Key(Wildcard, suffix)); ok {
			return v, true
		}
	}
	return r.store.Get(r.Key(suffix))
}

// String returns the resolved value, or def when absent or empty.
func (r Resolver) String(entity, suffix, def string) string {
	v, ok := r.Lookup(entity, suffix)
	if !ok || v == "" {
		return def
	}
	return v
}

// Require returns the resolved value or a configuration error.
func (r Resolver) Require(entity, suffix string) (string, error) {
	v, ok := r.Lookup(entity, suffix)
	if !ok || v == "" {
		return "", Errorf(r.Key(entity, suffix), "required key is missing")
	}
	return v, nil
}

// Decoded resolves the value and decrypts it when it is encrypted. An
// absent key yields an empty string.
func (r Resolver) Decoded(entity, suffix string) (string, error) {
	v, ok := r.Lookup(entity, suffix)
	if !ok {
		return "", nil
	}
	return r.store.Decode(v)
}

// IsYes reports whether the value is the case-insensitive token "yes".
// def is used only when the key is absent.
func (r Resolver) IsYes(entity, suffix string, def bool) bool {
	v, ok := r.Lookup(entity, suffix)
	if !ok {
		return def
	}
	return strings.EqualFold(strings.TrimSpace(v), "yes")
}

// Number returns the value as int, or def when absent or malformed.
func (r Resolver) Number(entity, suffix string, def int) int {
	v, ok := r.Lookup(entity, suffix)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// NumberOrAbsent is Number with Absent as default.
func (r Resolver) NumberOrAbsent(entity, suffix string) int {
	return r.Number(entity, suffix, Absent)
}

// List splits the value on the list delimiter. Items are trimmed and empty
// items dropped.
func (r Resolver) List(entity, suffix string) []string {
	v, ok := r.Lookup(entity, suffix)
	if !ok {
		return nil
	}
	return SplitList(v, r.store.ListDelimiter())
}

// Pairs splits the value into key/value tuples: listSep separates the
// tuples, pairSep the two halves of a tuple.
func (r Resolver) Pairs(entity, suffix, pairSep, listSep string) ([][2]string, error) {
	v, ok := r.Lookup(entity, suffix)
	if !ok {
		return nil, nil
	}
	var out [][2]string
	for _, item := range SplitList(v, listSep) {
		k, val, found := strings.Cut(item, pairSep)
		if !found {
			return nil, Errorf(r.Key(entity, suffix), "malformed pair %q, expected key%svalue", item, pairSep)
		}
		out = append(out, [2]string{strings.TrimSpace(k), strings.TrimSpace(val)})
	}
	return out, nil
}

// SplitList splits s on sep, trimming items and dropping empty ones.
func SplitList(s, sep string) []string {
	if sep == "" {
		sep = ","
	}
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
