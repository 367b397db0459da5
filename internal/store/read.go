package store

import (
	"context"
	"fmt"
	"strings"
)

// Op is a predicate operator.
type Op int

const (
	OpAll Op = iota
	OpEq
	OpIn
	OpRange
)

// Predicate restricts the rows returned by a read. Multiple predicates are
// combined with AND.
type Predicate struct {
	Op     Op
	Column string
	Values []any // OpEq: one value; OpIn: the set
	Low    float64
	High   float64
	// Fold compares upper(column) against the values.
	Fold bool
}

// All matches every row.
func All() Predicate {
	return Predicate{Op: OpAll}
}

// Eq matches rows where column equals v.
func Eq(column string, v any) Predicate {
	return Predicate{Op: OpEq, Column: column, Values: []any{v}}
}

// In matches rows where column is one of vs.
func In(column string, vs ...any) Predicate {
	return Predicate{Op: OpIn, Column: column, Values: vs}
}

// Range matches rows where low <= column <= high.
func Range(column string, low, high float64) Predicate {
	return Predicate{Op: OpRange, Column: column, Low: low, High: high}
}

// FoldCase returns a copy of p that compares the upper-cased column value.
func (p Predicate) FoldCase() Predicate {
	p.Fold = true
	return p
}

func (p Predicate) sql() (string, []any, error) {
	col := quoteIdent(p.Column)
	if p.Fold {
		col = "upper(" + col + ")"
	}

	switch p.Op {
	case OpAll:
		return "TRUE", nil, nil
	case OpEq:
		if len(p.Values) != 1 {
			return "", nil, fmt.Errorf("equality on %s needs one value", p.Column)
		}
		return col + " = ?", p.Values, nil
	case OpIn:
		if len(p.Values) == 0 {
			return "", nil, fmt.Errorf("set membership on %s needs values", p.Column)
		}
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(p.Values)), ", ")
		return col + " IN (" + marks + ")", p.Values, nil
	case OpRange:
		return col + " BETWEEN ? AND ?", []any{p.Low, p.High}, nil
	}
	return "", nil, fmt.Errorf("unknown predicate op %d", p.Op)
}

// Query describes a read.
type Query struct {
	Where []Predicate
	Limit int // 0 means no limit
}

// Rows is a materialized read result.
type Rows struct {
	Columns []string
	Values  [][]any
}

// Len returns the number of rows.
func (r *Rows) Len() int {
	return len(r.Values)
}

// ReadAll returns every row of a relation.
func (s *Store) ReadAll(ctx context.Context, relation string) (*Rows, error) {
	return s.Select(ctx, relation, Query{})
}

// ReadWhere returns the rows matching all predicates.
func (s *Store) ReadWhere(ctx context.Context, relation string, preds ...Predicate) (*Rows, error) {
	return s.Select(ctx, relation, Query{Where: preds})
}

// Select runs q against a relation and collects the result.
func (s *Store) Select(ctx context.Context, relation string, q Query) (*Rows, error) {
	res := &Rows{}
	err := s.scan(ctx, relation, q, func(cols []string) {
		res.Columns = cols
	}, func(row []any) error {
		res.Values = append(res.Values, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Each streams the rows matching preds to fn in insertion order. A non-nil
// error from fn stops the scan and is returned.
func (s *Store) Each(ctx context.Context, relation string, fn func(row []any) error, preds ...Predicate) error {
	return s.scan(ctx, relation, Query{Where: preds}, nil, fn)
}

func (s *Store) scan(ctx context.Context, relation string, q Query, header func([]string), fn func([]any) error) error {
	stmt, args, err := buildSelect(relation, q)
	if err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("query %s: %w", relation, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("query %s columns: %w", relation, err)
	}
	if header != nil {
		header(cols)
	}

	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan %s: %w", relation, err)
		}
		if err := fn(vals); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", relation, err)
	}
	return nil
}

func buildSelect(relation string, q Query) (string, []any, error) {
	var (
		conds []string
		args  []any
	)
	for _, p := range q.Where {
		if p.Op == OpAll {
			continue
		}
		cond, a, err := p.sql()
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, cond)
		args = append(args, a...)
	}

	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(quoteIdent(relation))
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	// rowid keeps appends in insertion order.
	b.WriteString(" ORDER BY rowid")
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return b.String(), args, nil
}
