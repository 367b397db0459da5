// Package store persists ingestion results in DuckDB.
//
// A store holds three relations: metadata and stats (Tag, Result) and df,
// whose columns are decided at ingestion time. Stores are written once by a
// single writer and read afterwards.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"
)

// Relation names.
const (
	Metadata = "metadata"
	Stats    = "stats"
	Variants = "df"
)

// PartialSuffix is appended to the store path while it is being written.
const PartialSuffix = ".partial"

// Options configures a store.
type Options struct {
	Compression      string // Parquet codec used by Export
	CompressionLevel int
	Logger           *zap.Logger
}

// Store manages a DuckDB database holding one ingestion.
type Store struct {
	db       *sql.DB
	path     string // final path; "" for in-memory
	writing  string // path being written, set until Commit or Discard
	readOnly bool
	closed   bool
	opts     Options
	logger   *zap.Logger
}

// Create starts a new store that will live at path once committed. Writes go
// to path+PartialSuffix; an existing store at path is only replaced by
// Commit. Use an empty path for an in-memory store.
func Create(path string, opts Options) (*Store, error) {
	s := &Store{path: path, opts: opts, logger: opts.Logger}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.opts.Compression == "" {
		s.opts.Compression = DefaultCompression
	}
	if err := ValidateCompression(s.opts.Compression, s.opts.CompressionLevel); err != nil {
		return nil, err
	}

	dsn := ""
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		s.writing = path + PartialSuffix
		removeDatabase(s.writing)
		dsn = s.writing
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	s.db = db

	if err := s.ensureSchema(); err != nil {
		s.Discard()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Open opens a committed store for reading.
func Open(path string, opts Options) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	db, err := sql.Open("duckdb", path+"?access_mode=read_only")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path, readOnly: true, opts: opts, logger: opts.Logger}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.opts.Compression == "" {
		s.opts.Compression = DefaultCompression
	}
	return s, nil
}

// Commit closes the database and moves it to its final path. An in-memory
// store stays open.
func (s *Store) Commit() error {
	if s.writing == "" {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}

	removeDatabase(s.path)
	if err := os.Rename(s.writing, s.path); err != nil {
		return fmt.Errorf("commit store: %w", err)
	}
	os.Remove(s.writing + ".wal")

	s.logger.Debug("committed store", zap.String("path", s.path))
	s.writing = ""
	return nil
}

// Discard closes the database and removes anything written so far. It is a
// no-op for committed or read-only stores beyond closing them.
func (s *Store) Discard() error {
	var err error
	if !s.closed {
		s.closed = true
		err = s.db.Close()
	}
	if s.writing != "" {
		removeDatabase(s.writing)
		s.logger.Debug("discarded partial store", zap.String("path", s.writing))
		s.writing = ""
	}
	return err
}

// Close closes the database connection. An uncommitted store is discarded.
func (s *Store) Close() error {
	if s.writing != "" {
		return s.Discard()
	}
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the committed path of the store.
func (s *Store) Path() string {
	return s.path
}

// ensureSchema creates the fixed relations.
func (s *Store) ensureSchema() error {
	for _, name := range []string{Metadata, Stats} {
		if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS ` + quoteIdent(name) + ` (
			"Tag" VARCHAR,
			"Result" VARCHAR
		)`); err != nil {
			return err
		}
	}
	return nil
}

// removeDatabase removes a DuckDB file and its write-ahead log.
func removeDatabase(path string) {
	os.Remove(path)
	os.Remove(path + ".wal")
}
