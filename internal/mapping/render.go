package mapping

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// reserved are emitted raw by extended insert mappings.
var reserved = map[string]bool{
	"NOW()":             true,
	"NULL":              true,
	"CURRENT_TIMESTAMP": true,
	"CURRENT_DATE":      true,
	"CURRENT_TIME":      true,
	"GETDATE()":         true,
	"SYSDATE":           true,
	"NEWID()":           true,
	"UUID()":            true,
	"DEFAULT":           true,
}

// IsReservedLiteral reports whether v is a database expression that
// extended insert mappings pass through unquoted.
func IsReservedLiteral(v string) bool {
	return reserved[strings.ToUpper(strings.TrimSpace(v))]
}

// QuoteSQL renders v as a single-quoted SQL string literal.
func QuoteSQL(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

func (m *WriterMapping) enclose(v string) string {
	if m.enclosure == "" {
		return v
	}
	return m.enclosure + strings.ReplaceAll(v, m.enclosure, m.enclosure+m.enclosure) + m.enclosure
}

func (m *WriterMapping) delimited(items []string) string {
	out := make([]string, len(items))
	for i, v := range items {
		out[i] = m.enclose(v)
	}
	return strings.Join(out, m.delimiter)
}

func jsonObject(pairs []pair) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.Write(jsonString(p.key))
		b.WriteByte(':')
		b.Write(jsonString(p.value))
	}
	b.WriteByte('}')
	return b.String()
}

func jsonString(s string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}

func params(pairs []pair) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = url.QueryEscape(p.key) + "=" + url.QueryEscape(p.value)
	}
	return strings.Join(parts, "&")
}

func (m *WriterMapping) where(pairs []pair) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.key + " = " + QuoteSQL(p.value)
	}
	return strings.Join(parts, " "+m.connective+" ")
}

func document(pairs []pair) bson.D {
	d := make(bson.D, 0, len(pairs))
	for _, p := range pairs {
		d = append(d, bson.E{Key: p.key, Value: p.value})
	}
	return d
}

// Header is the delimited list of destination field names.
func (m *WriterMapping) Header() string {
	names := make([]string, len(m.fields))
	for i, f := range m.fields {
		names[i] = f.Dest
	}
	return m.delimited(names)
}

// InsertColumns lists the destination fields of an insert, e.g. "a, b, c".
func (m *WriterMapping) InsertColumns() string {
	names := make([]string, len(m.fields))
	for i, f := range m.fields {
		names[i] = f.Dest
	}
	return strings.Join(names, ", ")
}

// CSV renders the row as a delimited text line.
func (r Row) CSV() string { return r.m.delimited(r.values) }

// JSONInsert renders all mapped fields as a JSON object.
func (r Row) JSONInsert() string { return jsonObject(r.pairs(InsertOnly)) }

// JSONUpdate renders the update fields as a JSON object.
func (r Row) JSONUpdate() string { return jsonObject(r.pairs(Update)) }

// InsertValues renders the values of an insert, e.g. "'a', 'b', NOW()".
// Reserved literals stay unquoted when the mapping is extended and the
// value comes from a literal formula.
func (r Row) InsertValues() string {
	pairs := r.pairs(InsertOnly)
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		if r.m.extended && p.literal && IsReservedLiteral(p.value) {
			parts[i] = strings.TrimSpace(p.value)
			continue
		}
		parts[i] = QuoteSQL(p.value)
	}
	return strings.Join(parts, ", ")
}

// UpdateSet renders the SET list of an update, e.g. "a = 'x', b = 'y'".
func (r Row) UpdateSet() string {
	pairs := r.pairs(Update)
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.key + " = " + QuoteSQL(p.value)
	}
	return strings.Join(parts, ", ")
}

// WhereUpdate renders the where clause that selects the row by its unique
// id field.
func (r Row) WhereUpdate() (string, error) {
	if r.m.uniqueID == "" {
		return "", errNoUniqueID(r.m)
	}
	p, err := r.filterPairs([]string{r.m.uniqueID})
	if err != nil {
		return "", err
	}
	return r.m.where(p), nil
}

// WhereFilter joins field = 'value' conditions with the configured
// connective. Without explicit fields the configured filter fields are
// used, then the unique id field.
func (r Row) WhereFilter(fields ...string) (string, error) {
	p, err := r.filterPairs(fields)
	if err != nil {
		return "", err
	}
	return r.m.where(p), nil
}

// Params renders the insert or update fields as a query string.
func (r Row) Params(insert bool) string {
	kind := Update
	if insert {
		kind = InsertOnly
	}
	return params(r.pairs(kind))
}

// PostParams is Params prefixed with the destination entity when one is
// configured, e.g. "people?id=1&name=Ann".
func (r Row) PostParams(insert bool) string {
	q := r.Params(insert)
	if r.m.destEntity != "" {
		return r.m.destEntity + "?" + q
	}
	return q
}

// ParamsForFilter renders the filter fields as a query string.
func (r Row) ParamsForFilter(fields ...string) (string, error) {
	p, err := r.filterPairs(fields)
	if err != nil {
		return "", err
	}
	return params(p), nil
}

// ValueForSingleFilter is the escaped value of the first filter field,
// for URLs such as /entity/3.
func (r Row) ValueForSingleFilter(fields ...string) (string, error) {
	p, err := r.filterPairs(fields)
	if err != nil {
		return "", err
	}
	return url.PathEscape(p[0].value), nil
}

// Document maps all fields for a document store insert.
func (r Row) Document() bson.D { return document(r.pairs(InsertOnly)) }

// UpdateDocument maps the update fields.
func (r Row) UpdateDocument() bson.D { return document(r.pairs(Update)) }

// FilterMap maps the filter fields for a document store filter.
func (r Row) FilterMap(fields ...string) (bson.D, error) {
	p, err := r.filterPairs(fields)
	if err != nil {
		return nil, err
	}
	return document(p), nil
}

// The WithoutMapping variants map raw source values 1:1 to source field
// names.

func (m *WriterMapping) CSVWithoutMapping(record []string) string {
	return m.delimited(record)
}

func (m *WriterMapping) HeaderWithoutMapping() string {
	return m.delimited(m.entity.Fields())
}

func (m *WriterMapping) JSONWithoutMapping(record []string) string {
	return jsonObject(sourcePairs(m.entity, record))
}

func (m *WriterMapping) InsertColumnsWithoutMapping() string {
	return strings.Join(m.entity.Fields(), ", ")
}

func (m *WriterMapping) InsertValuesWithoutMapping(record []string) string {
	parts := make([]string, len(record))
	for i, v := range record {
		parts[i] = QuoteSQL(v)
	}
	return strings.Join(parts, ", ")
}

// UpdateSetWithoutMapping sets every source field, e.g. "id = '1', name = 'x'".
func (m *WriterMapping) UpdateSetWithoutMapping(record []string) string {
	pairs := sourcePairs(m.entity, record)
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.key + " = " + QuoteSQL(p.value)
	}
	return strings.Join(parts, ", ")
}

// The filter variants default to the filter fields, then the unique id
// field, when no fields are given.

func (m *WriterMapping) WhereWithoutMapping(record []string, fields ...string) (string, error) {
	p, err := m.sourceFilterPairs(record, fields)
	if err != nil {
		return "", err
	}
	return m.where(p), nil
}

func (m *WriterMapping) ParamsForFilterWithoutMapping(record []string, fields ...string) (string, error) {
	p, err := m.sourceFilterPairs(record, fields)
	if err != nil {
		return "", err
	}
	return params(p), nil
}

func (m *WriterMapping) PostParamsWithoutMapping(record []string) string {
	return params(sourcePairs(m.entity, record))
}

func (m *WriterMapping) DocumentWithoutMapping(record []string) bson.D {
	return document(sourcePairs(m.entity, record))
}

func (m *WriterMapping) FilterMapWithoutMapping(record []string, fields ...string) (bson.D, error) {
	p, err := m.sourceFilterPairs(record, fields)
	if err != nil {
		return nil, err
	}
	return document(p), nil
}

func (m *WriterMapping) ValueForSingleFilterWithoutMapping(record []string, fields ...string) (string, error) {
	p, err := m.sourceFilterPairs(record, fields)
	if err != nil {
		return "", err
	}
	return url.PathEscape(p[0].value), nil
}
