package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/SL-LAIDLAW/metallaxis/internal/decompress"
	"github.com/SL-LAIDLAW/metallaxis/internal/info"
	"github.com/SL-LAIDLAW/metallaxis/internal/stats"
	"github.com/SL-LAIDLAW/metallaxis/internal/store"
	"github.com/SL-LAIDLAW/metallaxis/internal/vcf"
)

// Progress milestones of an ingestion.
const (
	progressPreflight  = 3
	progressValidate   = 8
	progressDecompress = 9
	progressMetadata   = 10
	progressChunkStart = 35
	progressChunkEnd   = 43
	progressIndex      = 46
	progressIngestDone = 47
	progressComplete   = 100
)

// ParquetDir is the directory, next to the store, that receives Parquet
// exports when store.export_parquet is set.
const ParquetDir = "parquet"

// IngestResult describes a finished ingestion.
type IngestResult struct {
	StorePath  string
	Format     decompress.Format
	Validation *vcf.ValidationResult
	Stats      *stats.Result
	Schema     *info.Schema
	Rows       int
	Chunks     int
	// Warning is set when the file has few variants.
	Warning string
	// Reused is true when an up-to-date store was found and nothing was
	// rebuilt. Only StorePath is set in that case.
	Reused bool
	// ParquetFiles lists exported files when store.export_parquet is set.
	ParquetFiles []string
}

// Ingest validates input, decompresses it to the scratch path, extracts
// metadata and counts, expands INFO into columns and writes everything to
// a new store. The previous store at the same path is replaced only when
// the whole ingestion succeeds.
func (r *Run) Ingest(ctx context.Context, input string) (*IngestResult, error) {
	r.progress(progressPreflight, "Verifying VCF: verifying that file is valid")
	if err := decompress.Preflight(input); err != nil {
		return nil, err
	}

	source, err := store.StatFile(input)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	fp := store.Fingerprint{Source: source, Settings: r.Settings.Fingerprint()}
	if !r.force && fp.Valid(r.storePath) {
		r.logger.Info("store is up to date, skipping ingestion", zap.String("store", r.storePath))
		r.done("Store is up to date")
		return &IngestResult{StorePath: r.storePath, Reused: true}, nil
	}

	format, head, err := decompress.Head(input, r.Settings.HeadLines)
	if err != nil {
		return nil, err
	}
	r.progress(progressValidate, "Verifying VCF: verifying that VCF is valid")
	validation, err := vcf.Validate(head)
	if err != nil {
		return nil, err
	}
	res := &IngestResult{StorePath: r.storePath, Format: format, Validation: validation}
	if validation.Verdict == vcf.Warn {
		res.Warning = validation.Warning
		r.logger.Warn(validation.Warning, zap.Int("records_in_head", validation.Records))
	}
	r.logger.Info("validated input",
		zap.String("path", input),
		zap.String("format", format.String()),
		zap.Int("metadata_lines", validation.MetadataLines))

	r.progress(progressDecompress, "Decompressing VCF")
	_, n, err := decompress.Decompress(input, r.scratchPath)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("decompressed input", zap.String("scratch", r.scratchPath), zap.Int64("bytes", n))

	r.progress(progressMetadata, "Extracting VCF metadata")
	if res.Stats, err = r.extractStats(ctx); err != nil {
		return nil, err
	}

	if res.Schema, err = r.discover(ctx); err != nil {
		return nil, err
	}

	st, err := store.Create(r.storePath, r.storeOptions())
	if err != nil {
		return nil, err
	}
	// Close discards the partial store unless Commit ran.
	defer st.Close()

	if err := r.writeStore(ctx, st, res); err != nil {
		return nil, err
	}

	if r.Settings.ExportParquet {
		dir := filepath.Join(filepath.Dir(r.storePath), ParquetDir)
		if res.ParquetFiles, err = st.Export(ctx, dir); err != nil {
			return nil, err
		}
	}

	store.ClearFingerprint(r.storePath)
	if err := st.Commit(); err != nil {
		return nil, err
	}
	if err := fp.Write(r.storePath); err != nil {
		r.logger.Warn("failed to write store fingerprint", zap.Error(err))
	}

	r.logger.Info("ingested variants",
		zap.String("store", r.storePath),
		zap.Int("rows", res.Rows),
		zap.Int("columns", len(res.Schema.Columns)),
		zap.Int("chunks", res.Chunks))
	r.done("Ingestion complete")
	return res, nil
}

// done reports the end of an ingestion: 100% on its own, or the ingestion
// milestone when Enrich is still to run.
func (r *Run) done(msg string) {
	if r.enrich {
		r.progress(progressIngestDone, msg)
		return
	}
	r.progress(progressComplete, msg)
}

func (r *Run) extractStats(ctx context.Context) (*stats.Result, error) {
	p, err := vcf.NewParser(r.scratchPath)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return stats.Extract(ctx, p, p.Meta())
}

func (r *Run) discover(ctx context.Context) (*info.Schema, error) {
	p, err := vcf.NewParser(r.scratchPath)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return info.Discover(ctx, p, info.Options{
		FullValidation: r.Settings.FullValidation,
		Logger:         r.logger,
	})
}

// writeStore fills metadata, stats and df, then indexes every df column.
func (r *Run) writeStore(ctx context.Context, st *store.Store, res *IngestResult) error {
	if err := st.Append(ctx, store.Metadata, stats.MetadataRows(res.Stats.Metadata)); err != nil {
		return err
	}
	if err := st.Append(ctx, store.Stats, res.Stats.Counts.Rows()); err != nil {
		return err
	}

	cols := make([]store.Column, len(res.Schema.Columns))
	for i, c := range res.Schema.Columns {
		cols[i] = store.Column{Name: c.Name, Type: c.SQLType()}
	}
	if err := st.CreateRelation(ctx, store.Variants, cols); err != nil {
		return err
	}

	p, err := vcf.NewParser(r.scratchPath)
	if err != nil {
		return err
	}
	defer p.Close()

	chunkSize := r.Settings.ChunkSize
	total := (res.Schema.Records + chunkSize - 1) / chunkSize
	err = info.Materialize(ctx, p, res.Schema, chunkSize, func(ctx context.Context, c info.Chunk) error {
		if err := st.Append(ctx, store.Variants, c.Rows); err != nil {
			return fmt.Errorf("append chunk %d: %w", c.Index, err)
		}
		res.Rows += len(c.Rows)
		res.Chunks++
		r.logger.Debug("appended chunk", zap.Int("chunk", c.Index), zap.Int("rows", len(c.Rows)))
		if total > 0 {
			r.progress(progressChunkStart+float64(c.Index+1)/float64(total)*(progressChunkEnd-progressChunkStart),
				fmt.Sprintf("Encoding database: chunk %d of %d", c.Index+1, total))
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.progress(progressIndex, "Indexing database")
	return st.Index(ctx, store.Variants, res.Schema.Names()...)
}
