package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"
)

// ErrReadOnly is returned for writes against a store opened with Open.
var ErrReadOnly = errors.New("store is read-only")

// Column is a relation column and its DuckDB type.
type Column struct {
	Name string
	Type string
}

// Numeric reports whether the column holds numbers.
func (c Column) Numeric() bool {
	t := strings.ToUpper(c.Type)
	switch t {
	case "TINYINT", "SMALLINT", "INTEGER", "BIGINT", "HUGEINT",
		"UTINYINT", "USMALLINT", "UINTEGER", "UBIGINT",
		"FLOAT", "REAL", "DOUBLE":
		return true
	}
	return strings.HasPrefix(t, "DECIMAL")
}

// CreateRelation creates an empty relation with the given columns.
func (s *Store) CreateRelation(ctx context.Context, name string, columns []Column) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if len(columns) == 0 {
		return fmt.Errorf("create relation %s: no columns", name)
	}

	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = quoteIdent(c.Name) + " " + c.Type
	}
	stmt := "CREATE TABLE " + quoteIdent(name) + " (" + strings.Join(defs, ", ") + ")"
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create relation %s: %w", name, err)
	}
	return nil
}

// Append batch-inserts rows into a relation using the Appender API. Each row
// must match the relation's column order and types.
func (s *Store) Append(ctx context.Context, name string, rows [][]any) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if len(rows) == 0 {
		return nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", name)
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, row := range rows {
		vals := make([]driver.Value, len(row))
		for i, v := range row {
			vals[i] = v
		}
		if err := appender.AppendRow(vals...); err != nil {
			return fmt.Errorf("append to %s: %w", name, err)
		}
	}

	return appender.Flush()
}

// Index creates one index per column. It is called once, after all appends
// to the relation are done.
func (s *Store) Index(ctx context.Context, name string, columns ...string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	for _, col := range columns {
		stmt := fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
			quoteIdent("idx_"+name+"_"+col), quoteIdent(name), quoteIdent(col))
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("index %s.%s: %w", name, col, err)
		}
	}
	s.logger.Debug("indexed relation",
		zap.String("relation", name),
		zap.Int("columns", len(columns)))
	return nil
}

// Columns returns the schema of a relation in column order.
func (s *Store) Columns(ctx context.Context, name string) ([]Column, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'main' AND table_name = ?
		ORDER BY ordinal_position`, name)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("relation %s not found", name)
	}
	return cols, nil
}

// Column returns a single column of a relation, matched case-insensitively.
func (s *Store) Column(ctx context.Context, relation, column string) (Column, error) {
	cols, err := s.Columns(ctx, relation)
	if err != nil {
		return Column{}, err
	}
	for _, c := range cols {
		if strings.EqualFold(c.Name, column) {
			return c, nil
		}
	}
	return Column{}, fmt.Errorf("column %s not found in %s", column, relation)
}

// Relations lists the relations in the store.
func (s *Store) Relations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'main'
		ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("query relations: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Count returns the number of rows in a relation.
func (s *Store) Count(ctx context.Context, name string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM "+quoteIdent(name)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", name, err)
	}
	return n, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}
