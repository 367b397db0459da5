package info

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/SL-LAIDLAW/metallaxis/internal/vcf"
)

// DefaultChunkSize is the number of rows materialized per chunk.
const DefaultChunkSize = 5000

// Options configures Discover.
type Options struct {
	// FullValidation applies vcf.CheckRecord to every record.
	FullValidation bool
	Logger         *zap.Logger
}

// Discover reads every record from r and builds the column schema: the
// header columns followed by one column per distinct INFO key, each with its
// inferred kind.
func Discover(ctx context.Context, r vcf.RecordReader, opts Options) (*Schema, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	header := r.Columns()
	cols := r.Index()

	fixed := make([]*kindTracker, len(header))
	for i := range fixed {
		fixed[i] = newKindTracker()
	}

	var keys []string
	trackers := make(map[string]*kindTracker)
	rowTags := make(map[string]string)
	var rowKeys []string

	records := 0
	qualNumeric := true
	for {
		if records%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		rec, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("discover columns: %w", err)
		}
		if rec == nil {
			break
		}
		records++

		if rec.Field(cols.Qual) == vcf.MissingValue {
			qualNumeric = false
		}
		if opts.FullValidation {
			q, err := vcf.CheckRecord(rec.Fields, cols, rec.Line)
			if err != nil {
				return nil, err
			}
			if !q {
				qualNumeric = false
			}
		}

		for i := range header {
			fixed[i].observe(rec.Field(i))
		}

		// A key repeated within one cell keeps its last value.
		clear(rowTags)
		rowKeys = rowKeys[:0]
		SplitTags(rec.Field(cols.Info), func(key, value string, hasValue bool) {
			if !hasValue {
				value = FlagValue
			}
			if _, ok := rowTags[key]; !ok {
				rowKeys = append(rowKeys, key)
			}
			rowTags[key] = value
		})
		for _, key := range rowKeys {
			value := rowTags[key]
			t, ok := trackers[key]
			if !ok {
				t = newKindTracker()
				trackers[key] = t
				keys = append(keys, key)
			}
			t.observe(value)
		}
	}

	s := &Schema{
		Records:     records,
		QualNumeric: qualNumeric,
		infoIndex:   make(map[string]int, len(keys)),
	}

	taken := make(map[string]struct{}, len(header)+len(keys))
	for i, tok := range header {
		name := ColumnName(tok)
		kind, integer := fixed[i].resolve(records)
		s.Columns = append(s.Columns, Column{Name: name, Source: tok, Field: i, Kind: kind, Integer: integer})
		taken[strings.ToLower(name)] = struct{}{}
	}

	// Keys are ordered by first appearance, so the layout is stable for a
	// given input.
	for _, key := range keys {
		name := uniqueName(key, taken)
		if name != key {
			logger.Debug("renamed INFO column",
				zap.String("key", key),
				zap.String("column", name))
		}
		kind, integer := trackers[key].resolve(records)
		s.infoIndex[key] = len(s.Columns)
		s.Columns = append(s.Columns, Column{Name: name, Source: key, Field: -1, Kind: kind, Integer: integer})
	}

	logger.Info("discovered INFO columns",
		zap.Int("records", records),
		zap.Int("info_columns", len(keys)))

	return s, nil
}

// uniqueName returns key, or an INFO_-prefixed and then numbered variant
// when the name is already taken (case-insensitively), and marks it taken.
func uniqueName(key string, taken map[string]struct{}) string {
	name := key
	if _, ok := taken[strings.ToLower(name)]; ok {
		name = "INFO_" + key
	}
	base := name
	for n := 2; ; n++ {
		if _, ok := taken[strings.ToLower(name)]; !ok {
			break
		}
		name = base + "_" + strconv.Itoa(n)
	}
	taken[strings.ToLower(name)] = struct{}{}
	return name
}

// Chunk is a batch of materialized rows, one value per schema column.
type Chunk struct {
	Index int // 0-based chunk number
	Rows  [][]any
}

// EmitFunc receives each materialized chunk. Rows are not reused after the
// call returns.
type EmitFunc func(ctx context.Context, chunk Chunk) error

// Materialize reads every record from r and emits rows laid out by schema in
// chunks of chunkSize. INFO columns default to "."; flags are written as "T".
// ctx is checked between chunks.
func Materialize(ctx context.Context, r vcf.RecordReader, schema *Schema, chunkSize int, emit EmitFunc) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	infoField := r.Index().Info
	width := len(schema.Columns)
	raw := make([]string, width)

	chunk := Chunk{Rows: make([][]any, 0, chunkSize)}
	flush := func() error {
		if len(chunk.Rows) == 0 {
			return nil
		}
		if err := emit(ctx, chunk); err != nil {
			return err
		}
		chunk = Chunk{Index: chunk.Index + 1, Rows: make([][]any, 0, chunkSize)}
		return nil
	}

	for {
		if len(chunk.Rows) == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		rec, err := r.Next()
		if err != nil {
			return fmt.Errorf("materialize columns: %w", err)
		}
		if rec == nil {
			break
		}

		for i, c := range schema.Columns {
			if c.IsInfo() {
				raw[i] = MissingValue
			} else {
				raw[i] = rec.Field(c.Field)
			}
		}
		var unknown string
		SplitTags(rec.Field(infoField), func(key, value string, hasValue bool) {
			idx, ok := schema.infoIndex[key]
			if !ok {
				unknown = key
				return
			}
			if !hasValue {
				value = FlagValue
			}
			raw[idx] = value
		})
		if unknown != "" {
			return fmt.Errorf("line %d: INFO key %q was not seen during discovery", rec.Line, unknown)
		}

		row := make([]any, width)
		for i, c := range schema.Columns {
			v, err := c.Convert(raw[i])
			if err != nil {
				return fmt.Errorf("line %d: %w", rec.Line, err)
			}
			row[i] = v
		}
		chunk.Rows = append(chunk.Rows, row)

		if len(chunk.Rows) >= chunkSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	return flush()
}
