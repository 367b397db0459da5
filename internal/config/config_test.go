package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	s, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, 5000, s.ChunkSize)
	assert.Equal(t, 100, s.HeadLines)
	assert.True(t, s.FullValidation)
	assert.Equal(t, "zstd", s.Compression)
	assert.Equal(t, 3, s.CompressionLevel)
	assert.False(t, s.ExportParquet)
	assert.Equal(t, "https://rest.ensembl.org", s.AnnotateURL)
	assert.Equal(t, 50, s.BatchSize)
	assert.Equal(t, 60*time.Second, s.Timeout)
	assert.Equal(t, 0, s.MaxRetries)
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, DefaultWorkDir(), s.WorkDir)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value any
	}{
		{KeyChunkSize, 0},
		{KeyChunkSize, "-5"},
		{KeyChunkSize, "lots"},
		{KeyChunkSize, 2.5},
		{KeyCompressionLevel, 0},
		{KeyCompressionLevel, "x"},
		{KeyCompression, "lzo"},
		{KeyBatchSize, 0},
		{KeyTimeout, "0s"},
		{KeyMaxRetries, -1},
		{KeyWorkDir, ""},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v := newViper()
			v.Set(tt.key, tt.value)
			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}

func TestLoad_StringIntegers(t *testing.T) {
	v := newViper()
	v.Set(KeyChunkSize, "250")
	v.Set(KeyCompressionLevel, "9")

	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 250, s.ChunkSize)
	assert.Equal(t, 9, s.CompressionLevel)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ingest:
  chunk_size: 1000
store:
  compression: snappy
paths:
  workdir: /data/metallaxis
annotate:
  timeout: 5s
`), 0644))

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 1000, s.ChunkSize)
	assert.Equal(t, "snappy", s.Compression)
	assert.Equal(t, "/data/metallaxis", s.WorkDir)
	assert.Equal(t, 5*time.Second, s.Timeout)
	assert.Equal(t, filepath.Join("/data/metallaxis", StoreFile), s.StorePath())
	assert.Equal(t, filepath.Join("/data/metallaxis", AnnotatedStoreFile), s.AnnotatedStorePath())
	assert.Equal(t, filepath.Join("/data/metallaxis", ScratchFile), s.ScratchPath())
}

func TestFingerprint(t *testing.T) {
	s, err := Load(newViper())
	require.NoError(t, err)

	fp := s.Fingerprint()
	assert.Equal(t, "5000", fp["chunk_size"])
	assert.NotContains(t, fp, "compression")

	s.Compression = "gzip"
	assert.Equal(t, fp, s.Fingerprint(), "codec is ignored without an export")

	s.ChunkSize = 10
	assert.NotEqual(t, fp, s.Fingerprint())
}

func TestFingerprint_ExportParquet(t *testing.T) {
	s, err := Load(newViper())
	require.NoError(t, err)
	without := s.Fingerprint()

	s.ExportParquet = true
	fp := s.Fingerprint()
	assert.Equal(t, "true", fp["export_parquet"])
	assert.Equal(t, "zstd", fp["compression"])
	assert.Equal(t, "3", fp["compression_level"])
	for k, v := range without {
		assert.Equal(t, v, fp[k])
	}

	s.CompressionLevel = 9
	assert.NotEqual(t, fp, s.Fingerprint())
}
