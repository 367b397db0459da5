// Package config holds run settings loaded through viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/SL-LAIDLAW/metallaxis/internal/store"
	"github.com/SL-LAIDLAW/metallaxis/internal/vep"
)

// Config file and environment names.
const (
	FileName  = ".metallaxis"
	FileType  = "yaml"
	EnvPrefix = "METALLAXIS"
)

// Keys.
const (
	KeyChunkSize        = "ingest.chunk_size"
	KeyHeadLines        = "ingest.head_lines"
	KeyFullValidation   = "ingest.full_validation"
	KeyCompression      = "store.compression"
	KeyCompressionLevel = "store.compression_level"
	KeyExportParquet    = "store.export_parquet"
	KeyWorkDir          = "paths.workdir"
	KeyAnnotateURL      = "annotate.url"
	KeyBatchSize        = "annotate.batch_size"
	KeyTimeout          = "annotate.timeout"
	KeyMaxRetries       = "annotate.max_retries"
	KeyLogLevel         = "log.level"
)

// Keys lists every configuration key in display order.
var Keys = []string{
	KeyWorkDir,
	KeyChunkSize,
	KeyHeadLines,
	KeyFullValidation,
	KeyCompression,
	KeyCompressionLevel,
	KeyExportParquet,
	KeyAnnotateURL,
	KeyBatchSize,
	KeyTimeout,
	KeyMaxRetries,
	KeyLogLevel,
}

// IsKey reports whether key is a known configuration key.
func IsKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Settings is the resolved configuration of a run.
type Settings struct {
	ChunkSize        int
	HeadLines        int
	FullValidation   bool
	Compression      string
	CompressionLevel int
	ExportParquet    bool
	WorkDir          string
	AnnotateURL      string
	BatchSize        int
	Timeout          time.Duration
	MaxRetries       int
	LogLevel         string
}

// Files inside the work directory.
const (
	StoreFile          = "input.duckdb"
	AnnotatedStoreFile = "input_annotated.duckdb"
	ScratchFile        = "decompressed_vcf_output.vcf"
)

// StorePath returns the ingestion store path.
func (s Settings) StorePath() string { return filepath.Join(s.WorkDir, StoreFile) }

// AnnotatedStorePath returns the annotated store path.
func (s Settings) AnnotatedStorePath() string { return filepath.Join(s.WorkDir, AnnotatedStoreFile) }

// ScratchPath returns the decompressed scratch file path.
func (s Settings) ScratchPath() string { return filepath.Join(s.WorkDir, ScratchFile) }

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyChunkSize, 5000)
	v.SetDefault(KeyHeadLines, 100)
	v.SetDefault(KeyFullValidation, true)
	v.SetDefault(KeyCompression, store.DefaultCompression)
	v.SetDefault(KeyCompressionLevel, 3)
	v.SetDefault(KeyExportParquet, false)
	v.SetDefault(KeyWorkDir, DefaultWorkDir())
	v.SetDefault(KeyAnnotateURL, vep.DefaultBaseURL)
	v.SetDefault(KeyBatchSize, vep.DefaultBatchSize)
	v.SetDefault(KeyTimeout, vep.DefaultTimeout)
	v.SetDefault(KeyMaxRetries, 0)
	v.SetDefault(KeyLogLevel, "info")
}

// Load reads settings from v and validates them.
func Load(v *viper.Viper) (Settings, error) {
	var s Settings
	var err error

	if s.ChunkSize, err = positiveInt(v, KeyChunkSize); err != nil {
		return s, err
	}
	if s.HeadLines, err = positiveInt(v, KeyHeadLines); err != nil {
		return s, err
	}
	if s.CompressionLevel, err = positiveInt(v, KeyCompressionLevel); err != nil {
		return s, err
	}
	if s.BatchSize, err = positiveInt(v, KeyBatchSize); err != nil {
		return s, err
	}

	s.FullValidation = v.GetBool(KeyFullValidation)
	s.Compression = v.GetString(KeyCompression)
	s.ExportParquet = v.GetBool(KeyExportParquet)
	s.WorkDir = v.GetString(KeyWorkDir)
	s.AnnotateURL = v.GetString(KeyAnnotateURL)
	s.Timeout = v.GetDuration(KeyTimeout)
	s.MaxRetries = v.GetInt(KeyMaxRetries)
	s.LogLevel = v.GetString(KeyLogLevel)

	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// Validate checks values that Load cannot type-check.
func (s Settings) Validate() error {
	if s.ChunkSize <= 0 {
		return fmt.Errorf("%s must be a positive integer, got %d", KeyChunkSize, s.ChunkSize)
	}
	if s.CompressionLevel <= 0 {
		return fmt.Errorf("%s must be a positive integer, got %d", KeyCompressionLevel, s.CompressionLevel)
	}
	if err := store.ValidateCompression(s.Compression, s.CompressionLevel); err != nil {
		return fmt.Errorf("%s: %w", KeyCompression, err)
	}
	if s.WorkDir == "" {
		return fmt.Errorf("%s is empty", KeyWorkDir)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("%s must be positive, got %s", KeyTimeout, s.Timeout)
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("%s must not be negative, got %d", KeyMaxRetries, s.MaxRetries)
	}
	return nil
}

// Fingerprint returns the settings that change what an ingestion writes.
// The Parquet codec only matters when an export is requested, so the export
// keys are left out otherwise and a store built with an export stays valid
// for a run without one.
func (s Settings) Fingerprint() map[string]string {
	fp := map[string]string{
		"chunk_size":      strconv.Itoa(s.ChunkSize),
		"full_validation": strconv.FormatBool(s.FullValidation),
	}
	if s.ExportParquet {
		fp["export_parquet"] = "true"
		fp["compression"] = s.Compression
		fp["compression_level"] = strconv.Itoa(s.CompressionLevel)
	}
	return fp
}

// positiveInt reads key as an integer > 0. Strings are accepted as long as
// they parse, so values set through `config set` work.
func positiveInt(v *viper.Viper, key string) (int, error) {
	raw := v.Get(key)
	var n int
	switch x := raw.(type) {
	case int:
		n = x
	case int64:
		n = int(x)
	case float64:
		if x != float64(int(x)) {
			return 0, fmt.Errorf("%s must be a positive integer, got %v", key, x)
		}
		n = int(x)
	case string:
		parsed, err := strconv.Atoi(x)
		if err != nil {
			return 0, fmt.Errorf("%s must be a positive integer, got %q", key, x)
		}
		n = parsed
	default:
		n = v.GetInt(key)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %d", key, n)
	}
	return n, nil
}

// DefaultWorkDir returns the per-OS directory for stores and scratch files.
func DefaultWorkDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "Metallaxis")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Metallaxis")
		}
		return filepath.Join(home, "AppData", "Roaming", "Metallaxis")
	default:
		return filepath.Join(home, ".metallaxis")
	}
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, FileName+"."+FileType), nil
}
