package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// DefaultCompression is the Parquet codec used when none is configured.
const DefaultCompression = "zstd"

// Compressions lists the supported Parquet codecs.
var Compressions = []string{"uncompressed", "snappy", "gzip", "zstd", "brotli", "lz4"}

// ValidateCompression checks a codec name and level. Level 0 means the
// codec's default.
func ValidateCompression(codec string, level int) error {
	if !slices.Contains(Compressions, strings.ToLower(codec)) {
		return fmt.Errorf("unsupported compression %q (want one of %s)", codec, strings.Join(Compressions, ", "))
	}
	if level < 0 {
		return fmt.Errorf("compression level must be a positive integer, got %d", level)
	}
	return nil
}

// Export writes every relation to dir as <relation>.parquet using the
// store's compression settings. It returns the written paths.
func (s *Store) Export(ctx context.Context, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}

	relations, err := s.Relations(ctx)
	if err != nil {
		return nil, err
	}

	codec := strings.ToLower(s.opts.Compression)
	options := "FORMAT PARQUET, COMPRESSION " + quoteLiteral(codec)
	// DuckDB only accepts a level for zstd.
	if codec == "zstd" && s.opts.CompressionLevel > 0 {
		options += fmt.Sprintf(", COMPRESSION_LEVEL %d", s.opts.CompressionLevel)
	}

	var paths []string
	for _, rel := range relations {
		out := filepath.Join(dir, rel+".parquet")
		stmt := fmt.Sprintf("COPY %s TO %s (%s)", quoteIdent(rel), quoteLiteral(out), options)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("export %s: %w", rel, err)
		}
		paths = append(paths, out)
	}

	s.logger.Info("exported store",
		zap.String("dir", dir),
		zap.String("compression", codec),
		zap.Int("relations", len(paths)))
	return paths, nil
}
