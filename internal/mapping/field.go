package mapping

import "fmt"

// Kind tells which renderings a field mapping takes part in.
type Kind int

const (
	// Update mappings are used for inserts and updates.
	Update Kind = iota
	// InsertOnly mappings are used for inserts only.
	InsertOnly
)

func (k Kind) String() string {
	if k == InsertOnly {
		return "insert"
	}
	return "field"
}

// FieldMapping is one "dest:expression" declaration.
type FieldMapping struct {
	Dest    string
	Expr    string
	Ordinal int
	Kind    Kind

	formula *Formula
}

func (m FieldMapping) Formula() *Formula { return m.formula }

func (m FieldMapping) String() string {
	return fmt.Sprintf("%03d %s %s:%s", m.Ordinal, m.Kind, m.Dest, m.Expr)
}
