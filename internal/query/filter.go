// Package query turns user filter expressions into store predicates.
//
// A filter is one of:
//
//	""        all rows
//	"A"       equality
//	"A,B,..." set membership (two or more values)
//	"LO-HI"   inclusive range, numeric columns only
//
// Whitespace is removed and the text upper-cased before parsing. Text
// comparisons are made against the upper-cased column value.
package query

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/SL-LAIDLAW/metallaxis/internal/store"
)

// InvalidFilterError reports a filter that cannot be applied.
type InvalidFilterError struct {
	Reason string
}

func (e *InvalidFilterError) Error() string {
	return "invalid filter: " + e.Reason
}

var whitespace = regexp.MustCompile(`\s+`)

// Normalize strips whitespace and upper-cases a filter expression.
func Normalize(expr string) string {
	return strings.ToUpper(whitespace.ReplaceAllString(expr, ""))
}

// Parse builds the predicate for expr against column. numeric is the
// column's kind; only numeric columns accept ranges.
func Parse(column, expr string, numeric bool) (store.Predicate, error) {
	expr = Normalize(expr)

	hasDash := strings.Contains(expr, "-")
	hasComma := strings.Contains(expr, ",")

	switch {
	case hasDash && hasComma:
		return store.Predicate{}, &InvalidFilterError{Reason: "use either comma separated values or a dash separated range, not both"}

	case hasDash:
		if !numeric {
			return store.Predicate{}, &InvalidFilterError{Reason: fmt.Sprintf("a dash separated range needs a numeric column, %s is text", column)}
		}
		parts := nonEmpty(strings.Split(expr, "-"))
		if len(parts) != 2 {
			return store.Predicate{}, &InvalidFilterError{Reason: "a range needs exactly 2 values separated by a dash"}
		}
		lo, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return store.Predicate{}, &InvalidFilterError{Reason: fmt.Sprintf("range bound %q is not a number", parts[0])}
		}
		hi, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return store.Predicate{}, &InvalidFilterError{Reason: fmt.Sprintf("range bound %q is not a number", parts[1])}
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		return store.Range(column, lo, hi), nil

	case hasComma:
		parts := nonEmpty(strings.Split(expr, ","))
		if len(parts) < 2 {
			return store.Predicate{}, &InvalidFilterError{Reason: "enter 2 or more values separated by a comma"}
		}
		vals := make([]any, len(parts))
		for i, p := range parts {
			v, err := literal(p, numeric)
			if err != nil {
				return store.Predicate{}, err
			}
			vals[i] = v
		}
		return fold(store.In(column, vals...), numeric), nil

	case expr == "":
		return store.All(), nil

	default:
		v, err := literal(expr, numeric)
		if err != nil {
			return store.Predicate{}, err
		}
		return fold(store.Eq(column, v), numeric), nil
	}
}

// Filter runs filter expressions against a store.
type Filter struct {
	Store *store.Store
	Limit int
}

// Run resolves column's kind from the df schema, parses expr and returns
// the matching rows.
func (f *Filter) Run(ctx context.Context, column, expr string) (*store.Rows, error) {
	col, err := f.Store.Column(ctx, store.Variants, column)
	if err != nil {
		return nil, &InvalidFilterError{Reason: err.Error()}
	}

	pred, err := Parse(col.Name, expr, col.Numeric())
	if err != nil {
		return nil, err
	}
	return f.Store.Select(ctx, store.Variants, store.Query{Where: []store.Predicate{pred}, Limit: f.Limit})
}

func literal(s string, numeric bool) (any, error) {
	if !numeric {
		return s, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, &InvalidFilterError{Reason: fmt.Sprintf("%q is not a number", s)}
	}
	return v, nil
}

func fold(p store.Predicate, numeric bool) store.Predicate {
	if numeric {
		return p
	}
	return p.FoldCase()
}

func nonEmpty(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
