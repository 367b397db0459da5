package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/SL-LAIDLAW/metallaxis/internal/annotate"
	"github.com/SL-LAIDLAW/metallaxis/internal/store"
)

// Enrich reads the committed ingestion store and writes an annotated copy to
// the annotated store path. The ingestion store is opened read-only; on any
// failure only the annotated store is discarded.
func (r *Run) Enrich(ctx context.Context, service annotate.Service) (*annotate.Summary, error) {
	src, err := store.Open(r.storePath, r.storeOptions())
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst, err := store.Create(r.annotatedPath, r.storeOptions())
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	e := annotate.NewEnricher(service)
	e.SetBatchSize(r.Settings.BatchSize)
	e.SetChunkSize(r.Settings.ChunkSize)
	e.SetLogger(r.logger)
	e.SetProgress(func(p float64, msg string) { r.progress(p, msg) })

	sum, err := e.Enrich(ctx, src, dst)
	if err != nil {
		r.logger.Error("enrichment failed, discarding annotated store",
			zap.String("store", r.annotatedPath), zap.Error(err))
		return nil, err
	}
	if err := dst.Commit(); err != nil {
		return nil, err
	}

	r.logger.Info("wrote annotated store",
		zap.String("store", r.annotatedPath),
		zap.Int("rows", sum.Rows),
		zap.Int("annotated", sum.Annotated))
	r.progress(progressComplete, "Annotation complete")
	return sum, nil
}
