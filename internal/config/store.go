// Package config holds the flat key/value configuration of a run and
// resolves keys through the entity, wildcard and base cascade.
package config

import (
	"sort"
	"strings"

	"github.com/BartekS5/mapflow/internal/secret"
)

// Wildcard stands in for any entity name in a key.
const Wildcard = "*"

// Absent is returned by numeric lookups without a default when the key is
// missing or not a number.
const Absent = -1

// Store is the flat configuration map. It is read-only after construction
// and safe for concurrent use.
type Store struct {
	values    map[string]string
	decrypter secret.Decrypter
}

// NewStore copies values into a new Store. d may be nil when no encrypted
// values are used.
func NewStore(values map[string]string, d secret.Decrypter) *Store {
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[strings.TrimSpace(k)] = v
	}
	return &Store{values: cp, decrypter: d}
}

// Get returns the raw value of key.
func (s *Store) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// KeysWithPrefix returns all keys starting with prefix, sorted.
func (s *Store) KeysWithPrefix(prefix string) []string {
	var keys []string
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of keys.
func (s *Store) Len() int { return len(s.values) }

// Decode decrypts value if it carries the encryption marker.
func (s *Store) Decode(value string) (string, error) {
	return secret.Resolve(s.decrypter, value)
}

// Resolver returns a resolver for keys starting with prefix. An empty
// prefix addresses the general keys.
func (s *Store) Resolver(prefix string) Resolver {
	return Resolver{store: s, prefix: prefix}
}

// General returns the resolver for unprefixed keys.
func (s *Store) General() Resolver {
	return Resolver{store: s}
}
