// Package pipeline runs an ingestion from input file to committed store, and
// the optional enrichment into a second store.
package pipeline

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SL-LAIDLAW/metallaxis/internal/config"
	"github.com/SL-LAIDLAW/metallaxis/internal/store"
	"github.com/SL-LAIDLAW/metallaxis/internal/vep"
)

// ProgressFunc receives progress as a percentage (0-100) and a status message.
// It is called synchronously from the run's goroutine.
type ProgressFunc func(percent float64, message string)

// Options configures a Run. Empty paths default to files in the configured
// work directory; concurrent runs must set distinct paths.
type Options struct {
	Settings           config.Settings
	StorePath          string
	AnnotatedStorePath string
	ScratchPath        string
	// Force rebuilds the store even when its fingerprint matches the input.
	Force bool
	// Enrich marks runs where Enrich follows Ingest. Ingest then stops at
	// its own milestone and leaves 100% to Enrich.
	Enrich   bool
	Logger   *zap.Logger
	Progress ProgressFunc
}

// Run holds the state of one ingestion or enrichment.
type Run struct {
	ID       string
	Settings config.Settings

	storePath     string
	annotatedPath string
	scratchPath   string
	force         bool
	enrich        bool

	logger   *zap.Logger
	progress ProgressFunc
}

// NewRun creates a run from opts.
func NewRun(opts Options) *Run {
	r := &Run{
		ID:            uuid.NewString(),
		Settings:      opts.Settings,
		storePath:     opts.StorePath,
		annotatedPath: opts.AnnotatedStorePath,
		scratchPath:   opts.ScratchPath,
		force:         opts.Force,
		enrich:        opts.Enrich,
		logger:        opts.Logger,
		progress:      opts.Progress,
	}
	if r.storePath == "" {
		r.storePath = opts.Settings.StorePath()
	}
	if r.annotatedPath == "" {
		r.annotatedPath = opts.Settings.AnnotatedStorePath()
	}
	if r.scratchPath == "" {
		r.scratchPath = opts.Settings.ScratchPath()
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	r.logger = r.logger.With(zap.String("run", r.ID))
	if r.progress == nil {
		r.progress = func(float64, string) {}
	}
	return r
}

// StorePath returns the ingestion store path.
func (r *Run) StorePath() string { return r.storePath }

// AnnotatedStorePath returns the annotated store path.
func (r *Run) AnnotatedStorePath() string { return r.annotatedPath }

// ScratchPath returns the decompressed scratch file path.
func (r *Run) ScratchPath() string { return r.scratchPath }

func (r *Run) storeOptions() store.Options {
	return store.Options{
		Compression:      r.Settings.Compression,
		CompressionLevel: r.Settings.CompressionLevel,
		Logger:           r.logger,
	}
}

// NewVEPClient builds the annotation client described by s.
func NewVEPClient(s config.Settings, logger *zap.Logger) *vep.Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return vep.NewClient(s.AnnotateURL,
		vep.WithTimeout(s.Timeout),
		vep.WithMaxRetries(s.MaxRetries),
		vep.WithLogger(logger),
	)
}
