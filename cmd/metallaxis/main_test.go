package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/SL-LAIDLAW/metallaxis/internal/config"
	"github.com/SL-LAIDLAW/metallaxis/internal/store"
)

func execute(t *testing.T, args ...string) (*app, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg := filepath.Join(t.TempDir(), "metallaxis.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("log:\n  level: error\n"), 0644))

	a := &app{}
	cmd := newRootCmd(a)
	cmd.SetArgs(append([]string{"--config", cfg}, args...))
	return a, cmd.Execute()
}

func TestIngestCommand(t *testing.T) {
	workdir := t.TempDir()
	a, err := execute(t, "ingest", "--workdir", workdir, "--chunk-size", "7", "--no-progress",
		filepath.Join("..", "..", "testdata", "sample.vcf.gz"))
	require.NoError(t, err)

	assert.Equal(t, workdir, a.settings.WorkDir)
	assert.Equal(t, 7, a.settings.ChunkSize)
	assert.FileExists(t, filepath.Join(workdir, config.StoreFile))
	assert.FileExists(t, store.MetaPath(filepath.Join(workdir, config.StoreFile)))

	_, err = execute(t, "query", "--workdir", workdir, "--column", "CHROM", "--filter", "x")
	assert.NoError(t, err)

	_, err = execute(t, "show", "--workdir", workdir, "--columns")
	assert.NoError(t, err)
}

func TestIngestCommand_InvalidSettings(t *testing.T) {
	_, err := execute(t, "ingest", "--workdir", t.TempDir(), "--compression", "lzo", "x.vcf")
	var ue *usageError
	assert.ErrorAs(t, err, &ue)
}

func TestQueryCommand_RequiresColumn(t *testing.T) {
	_, err := execute(t, "query", "--workdir", t.TempDir())
	var ue *usageError
	assert.ErrorAs(t, err, &ue)
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger("warn", false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(-1))

	l, err = newLogger("warn", true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(-1))

	_, err = newLogger("loud", false)
	assert.Error(t, err)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "2.0 MB", formatSize(2*1024*1024))
}

// executeConfig runs a config subcommand against cfg and returns its stdout.
func executeConfig(t *testing.T, cfg string, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	var out bytes.Buffer
	cmd := newRootCmd(&app{})
	cmd.SetOut(&out)
	cmd.SetArgs(append([]string{"--config", cfg, "config"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigCommand_SetAndGet(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "metallaxis.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("log:\n  level: error\n"), 0644))

	_, err := executeConfig(t, cfg, "set", config.KeyChunkSize, "1234")
	require.NoError(t, err)
	_, err = executeConfig(t, cfg, "set", config.KeyExportParquet, "true")
	require.NoError(t, err)

	data, err := os.ReadFile(cfg)
	require.NoError(t, err)
	var written struct {
		Ingest struct {
			ChunkSize int `yaml:"chunk_size"`
		} `yaml:"ingest"`
		Store struct {
			ExportParquet bool `yaml:"export_parquet"`
		} `yaml:"store"`
	}
	require.NoError(t, yaml.Unmarshal(data, &written))
	assert.Equal(t, 1234, written.Ingest.ChunkSize)
	assert.True(t, written.Store.ExportParquet)

	out, err := executeConfig(t, cfg, "get", config.KeyChunkSize)
	require.NoError(t, err)
	assert.Equal(t, "1234\n", out)

	out, err = executeConfig(t, cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "# source: "+cfg)
	assert.Contains(t, out, config.KeyChunkSize+": 1234")
	assert.Contains(t, out, config.KeyTimeout+": 1m0s")
}

func TestConfigCommand_Rejects(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "metallaxis.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("log:\n  level: error\n"), 0644))

	tests := []struct {
		name string
		args []string
	}{
		{"unknown key on set", []string{"set", "ingest.chunk", "10"}},
		{"unknown key on get", []string{"get", "store.codec"}},
		{"invalid value", []string{"set", config.KeyChunkSize, "-5"}},
		{"invalid codec", []string{"set", config.KeyCompression, "lzo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeConfig(t, cfg, tt.args...)
			var ue *usageError
			assert.ErrorAs(t, err, &ue)
		})
	}

	data, err := os.ReadFile(cfg)
	require.NoError(t, err)
	assert.Equal(t, "log:\n  level: error\n", string(data), "rejected values leave the file untouched")
}
