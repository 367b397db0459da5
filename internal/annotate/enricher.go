package annotate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/SL-LAIDLAW/metallaxis/internal/store"
	"github.com/SL-LAIDLAW/metallaxis/internal/vep"
)

// ProgressFunc receives enrichment progress as a percentage and a message.
type ProgressFunc func(percent float64, message string)

// Progress ranges reported by Enrich.
const (
	progressBatchStart       = 55
	progressPlaceholderStart = 70
	progressIndex            = 80
)

// Summary reports what Enrich wrote.
type Summary struct {
	Rows         int // rows written to the annotated df
	Annotated    int // rows carrying a consequence
	Placeholders int // rows written with "." annotations
	IDs          int // distinct identifiers sent to the service
	Batches      int
}

// Enricher copies df from one store into another, attaching VEP consequences
// to rows whose (ID, ALT) matches a returned transcript consequence.
type Enricher struct {
	service   Service
	batchSize int
	chunkSize int
	logger    *zap.Logger
	progress  ProgressFunc
}

// NewEnricher creates an enricher backed by service.
func NewEnricher(service Service) *Enricher {
	return &Enricher{
		service:   service,
		batchSize: vep.DefaultBatchSize,
		chunkSize: 5000,
		logger:    zap.NewNop(),
		progress:  func(float64, string) {},
	}
}

// SetBatchSize sets the number of identifiers per request.
func (e *Enricher) SetBatchSize(n int) {
	if n > 0 {
		e.batchSize = n
	}
}

// SetChunkSize sets the number of placeholder rows appended at once.
func (e *Enricher) SetChunkSize(n int) {
	if n > 0 {
		e.chunkSize = n
	}
}

// SetLogger sets the logger for warning and info messages.
func (e *Enricher) SetLogger(l *zap.Logger) {
	e.logger = l
}

// SetProgress sets the progress callback.
func (e *Enricher) SetProgress(p ProgressFunc) {
	if p != nil {
		e.progress = p
	}
}

type matchKey struct {
	id, alt string
}

// Enrich writes the annotated copy of src's df, metadata and stats into dst.
// Any service failure aborts the run; dst is then incomplete and must be
// discarded by the caller. src is never modified.
func (e *Enricher) Enrich(ctx context.Context, src Source, dst Sink) (*Summary, error) {
	cols, err := src.Columns(ctx, store.Variants)
	if err != nil {
		return nil, err
	}
	idCol, altCol := -1, -1
	for i, c := range cols {
		switch c.Name {
		case "ID":
			idCol = i
		case "ALT":
			altCol = i
		}
	}
	if idCol < 0 || altCol < 0 {
		return nil, fmt.Errorf("enrich: df has no ID or ALT column")
	}

	outCols := append([]store.Column{}, cols...)
	for _, c := range Columns {
		outCols = append(outCols, store.Column{Name: c.Name, Type: "VARCHAR"})
	}
	if err := dst.CreateRelation(ctx, store.Variants, outCols); err != nil {
		return nil, err
	}
	if err := e.copyFixed(ctx, src, dst); err != nil {
		return nil, err
	}

	// 1. Distinct identifiers, first-seen order.
	var ids []string
	seen := make(map[string]struct{})
	total := 0
	err = src.Each(ctx, store.Variants, func(row []any) error {
		total++
		id := asString(row[idCol])
		if id == "" || id == Placeholder {
			return nil
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect identifiers: %w", err)
	}

	sum := &Summary{IDs: len(ids)}
	matched := make(map[matchKey]struct{})

	// 2-3. Sequential batches; each match copies the stored rows with the
	// chosen consequence attached.
	nBatches := (len(ids) + e.batchSize - 1) / e.batchSize
	for b := 0; b < nBatches; b++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lo := b * e.batchSize
		hi := min(lo+e.batchSize, len(ids))
		e.progress(progressBatchStart+float64(b)/float64(nBatches)*(progressPlaceholderStart-progressBatchStart),
			fmt.Sprintf("Annotating: batch %d of %d", b+1, nBatches))

		results, err := e.service.Lookup(ctx, ids[lo:hi])
		if err != nil {
			return nil, fmt.Errorf("annotate batch %d: %w", b+1, err)
		}
		sum.Batches++

		for _, r := range results {
			id := r.ID
			if id == "" {
				id = r.Input
			}
			for _, ac := range MostSevere(r.TranscriptConsequences) {
				key := matchKey{id: id, alt: ac.Allele}
				if _, done := matched[key]; done {
					continue
				}
				matched[key] = struct{}{}

				rows, err := src.ReadWhere(ctx, store.Variants,
					store.Eq("ID", id), store.Eq("ALT", ac.Allele))
				if err != nil {
					return nil, err
				}
				if rows.Len() == 0 {
					continue
				}
				out := make([][]any, 0, rows.Len())
				for _, row := range rows.Values {
					out = append(out, append(row, ac.Consequence.Values()...))
				}
				if err := dst.Append(ctx, store.Variants, out); err != nil {
					return nil, err
				}
				sum.Annotated += len(out)
			}
		}
	}

	e.logger.Info("annotated variants",
		zap.Int("ids", sum.IDs),
		zap.Int("batches", sum.Batches),
		zap.Int("annotated_rows", sum.Annotated))

	// 4. Every row not matched above goes through with placeholders.
	e.progress(progressPlaceholderStart, "Annotating: writing non-annotated rows")
	chunk := make([][]any, 0, e.chunkSize)
	scanned := 0
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		if err := dst.Append(ctx, store.Variants, chunk); err != nil {
			return err
		}
		sum.Placeholders += len(chunk)
		chunk = make([][]any, 0, e.chunkSize)
		if total > 0 {
			e.progress(progressPlaceholderStart+float64(scanned)/float64(total)*(progressIndex-progressPlaceholderStart),
				"Annotating: writing non-annotated rows")
		}
		return ctx.Err()
	}
	err = src.Each(ctx, store.Variants, func(row []any) error {
		scanned++
		key := matchKey{id: asString(row[idCol]), alt: asString(row[altCol])}
		if _, ok := matched[key]; ok {
			return nil
		}
		chunk = append(chunk, append(row, PlaceholderValues()...))
		if len(chunk) >= e.chunkSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		return nil, fmt.Errorf("write non-annotated rows: %w", err)
	}

	// 5. Index the fixed column list.
	e.progress(progressIndex, "Indexing annotated store")
	if err := dst.Index(ctx, store.Variants, indexable(outCols)...); err != nil {
		return nil, err
	}

	sum.Rows = sum.Annotated + sum.Placeholders
	if sum.Rows != total {
		return nil, fmt.Errorf("enrich: wrote %d rows for %d input rows", sum.Rows, total)
	}
	return sum, nil
}

// copyFixed carries metadata and stats over unchanged.
func (e *Enricher) copyFixed(ctx context.Context, src Source, dst Sink) error {
	for _, rel := range []string{store.Metadata, store.Stats} {
		rows, err := src.ReadWhere(ctx, rel)
		if err != nil {
			return err
		}
		if err := dst.Append(ctx, rel, rows.Values); err != nil {
			return err
		}
	}
	return nil
}

// indexable returns the IndexColumns present in cols.
func indexable(cols []store.Column) []string {
	present := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		present[strings.ToUpper(c.Name)] = struct{}{}
	}
	var out []string
	for _, name := range IndexColumns {
		if _, ok := present[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}
