// Package info expands the semi-structured INFO field into typed columns.
//
// Expansion is two-phase. Discover reads every record once to build an
// immutable Schema: the set of INFO keys and the numeric/text kind of every
// column. Materialize reads the records again and emits typed rows in
// bounded chunks.
package info

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/SL-LAIDLAW/metallaxis/internal/vcf"
)

// Kind is the inferred kind of a column.
type Kind int

const (
	Text Kind = iota
	Numeric
)

func (k Kind) String() string {
	if k == Numeric {
		return "numeric"
	}
	return "text"
}

// Default values written for absent and flag INFO tags.
const (
	MissingValue = "."
	FlagValue    = "T"
)

// Column describes one output column.
type Column struct {
	Name    string // column name in the store
	Source  string // header token or INFO key it comes from
	Field   int    // record field index; -1 for INFO columns
	Kind    Kind
	Integer bool // numeric values are all digit strings that fit in int64
}

// IsInfo reports whether the column was expanded from the INFO field.
func (c Column) IsInfo() bool {
	return c.Field < 0
}

// SQLType returns the storage type for the column.
func (c Column) SQLType() string {
	switch {
	case c.Kind == Numeric && c.Integer:
		return "BIGINT"
	case c.Kind == Numeric:
		return "DOUBLE"
	default:
		return "VARCHAR"
	}
}

// Convert turns a raw cell into the column's storage value.
func (c Column) Convert(raw string) (any, error) {
	if c.Kind == Text {
		return raw, nil
	}
	if c.Integer {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: value %q is not an integer", c.Name, raw)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("column %s: value %q is not numeric", c.Name, raw)
	}
	return f, nil
}

// Schema is the column layout of one ingestion. It is built by Discover and
// not modified afterwards.
type Schema struct {
	Columns []Column
	Records int // data records seen by Discover
	// QualNumeric is false when any QUAL value was ".".
	QualNumeric bool

	infoIndex map[string]int // INFO key -> position in Columns
}

// Names returns the column names in order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// InfoKeys returns the discovered INFO keys in first-seen order.
func (s *Schema) InfoKeys() []string {
	var keys []string
	for _, c := range s.Columns {
		if c.IsInfo() {
			keys = append(keys, c.Source)
		}
	}
	return keys
}

// Lookup returns the column with the given store name.
func (s *Schema) Lookup(name string) (Column, bool) {
	for _, c := range s.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnName maps a header token to its store column name.
func ColumnName(token string) string {
	if token == "#CHROM" {
		return "CHROM"
	}
	return strings.TrimPrefix(token, "#")
}

// SplitTags splits an INFO cell into key/value tags at the first "=". Flags
// are reported with hasValue false. "." and empty cells yield nothing.
func SplitTags(cell string, fn func(key, value string, hasValue bool)) {
	if cell == "" || cell == MissingValue {
		return
	}
	for _, tag := range strings.Split(cell, ";") {
		if tag == "" {
			continue
		}
		key, value, hasValue := strings.Cut(tag, "=")
		if key == "" {
			continue
		}
		fn(key, value, hasValue)
	}
}

// kindTracker accumulates numeric-kind evidence for one column.
type kindTracker struct {
	numeric bool
	integer bool
	seen    int
}

func newKindTracker() *kindTracker {
	return &kindTracker{numeric: true, integer: true}
}

func (k *kindTracker) observe(v string) {
	k.seen++
	if !k.numeric {
		return
	}
	if vcf.IsDigits(v) {
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			k.integer = false
		}
		return
	}
	k.integer = false
	if strings.ContainsAny(v, ",;|") {
		k.numeric = false
		return
	}
	if _, err := strconv.ParseFloat(v, 64); err != nil {
		k.numeric = false
	}
}

// resolve returns the final kind given the total record count. Rows that
// never carried the value hold the "." default, which is text.
func (k *kindTracker) resolve(records int) (Kind, bool) {
	if records == 0 || !k.numeric || k.seen < records {
		return Text, false
	}
	return Numeric, k.integer
}
