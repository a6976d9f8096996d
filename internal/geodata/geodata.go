// Package geodata resolves free-text country names to ISO 3166 alpha-2
// codes.
package geodata

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

//go:embed countries.txt
var countriesTxt string

// Lookup resolves a country value to its two-letter ISO code.
type Lookup interface {
	ISO(value string) (string, bool)
}

// Table is a Lookup backed by a name table. Names, alpha-2 and alpha-3
// codes all resolve; comparison ignores case, accents and punctuation.
type Table struct {
	byKey map[string]string
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the table built from the embedded country list.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := NewTable(strings.NewReader(countriesTxt))
		if err != nil {
			panic(fmt.Sprintf("geodata: embedded table: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// NewTable parses lines of the form "iso2;iso3;name|alias|...".
func NewTable(r io.Reader) (*Table, error) {
	t := &Table{byKey: map[string]string{}}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		parts := strings.Split(text, ";")
		if len(parts) != 3 || len(parts[0]) != 2 {
			return nil, fmt.Errorf("line %d: expected iso2;iso3;names", line)
		}
		iso := strings.ToUpper(parts[0])
		t.add(parts[0], iso)
		t.add(parts[1], iso)
		for _, name := range strings.Split(parts[2], "|") {
			t.add(name, iso)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) add(name, iso string) {
	if k := Key(name); k != "" {
		if _, exists := t.byKey[k]; !exists {
			t.byKey[k] = iso
		}
	}
}

func (t *Table) ISO(value string) (string, bool) {
	iso, ok := t.byKey[Key(value)]
	return iso, ok
}

// Key normalizes a country value for comparison: accents are stripped,
// case is folded and runs of non-alphanumerics collapse to one space.
func Key(value string) string {
	strip := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(strip, value)
	if err != nil {
		s = value
	}
	s = cases.Fold().String(s)
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	return strings.Join(words, " ")
}
