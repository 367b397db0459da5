package annotate

import (
	"context"

	"github.com/SL-LAIDLAW/metallaxis/internal/store"
	"github.com/SL-LAIDLAW/metallaxis/internal/vep"
)

// Service returns VEP results for a batch of identifiers.
type Service interface {
	Lookup(ctx context.Context, ids []string) ([]vep.Result, error)
}

// Source is the store holding the rows to enrich.
type Source interface {
	Columns(ctx context.Context, relation string) ([]store.Column, error)
	ReadWhere(ctx context.Context, relation string, preds ...store.Predicate) (*store.Rows, error)
	Each(ctx context.Context, relation string, fn func(row []any) error, preds ...store.Predicate) error
}

// Sink is the store receiving the enriched rows.
type Sink interface {
	CreateRelation(ctx context.Context, name string, columns []store.Column) error
	Append(ctx context.Context, name string, rows [][]any) error
	Index(ctx context.Context, name string, columns ...string) error
}
