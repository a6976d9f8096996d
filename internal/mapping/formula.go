package mapping

import (
	"fmt"
	"strings"

	"github.com/BartekS5/mapflow/pkg/models"
)

// Passthrough maps a destination field to the source field of the same
// name.
const Passthrough = "*"

type segment struct {
	text  string
	field bool
}

// Formula is a parsed mapping expression: literal text with {field}
// placeholders. A formula without placeholders is a literal constant.
type Formula struct {
	raw      string
	segments []segment
}

// ParseFormula parses expr. Field names are taken verbatim between the
// braces; dots are part of the name.
func ParseFormula(expr string) (*Formula, error) {
	f := &Formula{raw: expr}
	rest := expr
	for rest != "" {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			f.segments = append(f.segments, segment{text: rest})
			break
		}
		if open > 0 {
			f.segments = append(f.segments, segment{text: rest[:open]})
		}
		rest = rest[open+1:]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			return nil, fmt.Errorf("unclosed placeholder in %q", expr)
		}
		name := rest[:end]
		if name == "" || strings.ContainsRune(name, '{') {
			return nil, fmt.Errorf("invalid placeholder {%s} in %q", name, expr)
		}
		f.segments = append(f.segments, segment{text: name, field: true})
		rest = rest[end+1:]
	}
	return f, nil
}

func fieldFormula(field string) *Formula {
	return &Formula{raw: "{" + field + "}", segments: []segment{{text: field, field: true}}}
}

func (f *Formula) String() string { return f.raw }

// IsLiteral reports whether the formula has no placeholders.
func (f *Formula) IsLiteral() bool {
	for _, s := range f.segments {
		if s.field {
			return false
		}
	}
	return true
}

// Fields returns the referenced source fields in order of appearance.
func (f *Formula) Fields() []string {
	var out []string
	for _, s := range f.segments {
		if s.field {
			out = append(out, s.text)
		}
	}
	return out
}

// Absent controls what happens to placeholders naming unknown fields.
type Absent struct {
	Allow       bool
	Placeholder string
}

// Eval substitutes every placeholder with the record value at the field's
// index in entity.
func (f *Formula) Eval(entity *models.SourceEntity, values []string, absent Absent) (string, error) {
	if len(f.segments) == 1 && !f.segments[0].field {
		return f.raw, nil
	}
	var b strings.Builder
	for _, s := range f.segments {
		if !s.field {
			b.WriteString(s.text)
			continue
		}
		idx := entity.IndexOf(s.text)
		switch {
		case idx >= 0 && idx < len(values):
			b.WriteString(values[idx])
		case absent.Allow:
			b.WriteString(absent.Placeholder)
		default:
			return "", &ResolutionError{Entity: entity.Name(), Field: s.text}
		}
	}
	return b.String(), nil
}
