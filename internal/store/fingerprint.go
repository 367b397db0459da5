package store

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file. Path is made
// absolute so the same file reached through different relative paths
// matches.
func StatFile(path string) (FileFingerprint, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    abs,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Fingerprint identifies the input and settings a store was built from.
// It is kept next to the store as <store>.meta:
//
//	~/.metallaxis/input.duckdb       (the store)
//	~/.metallaxis/input.duckdb.meta  (source fingerprint and settings)
type Fingerprint struct {
	Source   FileFingerprint
	Settings map[string]string // ingestion settings that change the output
}

// MetaPath returns the sidecar path for a store.
func MetaPath(storePath string) string {
	return storePath + ".meta"
}

func (f Fingerprint) entries() []struct{ key, val string } {
	out := []struct{ key, val string }{
		{"source_path", f.Source.Path},
		{"source_size", strconv.FormatInt(f.Source.Size, 10)},
		{"source_modtime", f.Source.ModTime.UTC().Format(time.RFC3339Nano)},
	}
	for k, v := range f.Settings {
		out = append(out, struct{ key, val string }{"setting_" + k, v})
	}
	return out
}

// Valid checks whether the store at storePath was built from the same
// source and settings.
func (f Fingerprint) Valid(storePath string) bool {
	meta, err := readMeta(MetaPath(storePath))
	if err != nil {
		return false
	}

	for _, c := range f.entries() {
		if meta[c.key] != c.val {
			return false
		}
	}

	// Verify store file exists
	if _, err := os.Stat(storePath); err != nil {
		return false
	}
	return true
}

// Write records the fingerprint next to the store.
func (f Fingerprint) Write(storePath string) error {
	var lines []string
	for _, c := range f.entries() {
		lines = append(lines, c.key+"="+c.val)
	}
	lines = append(lines, "created_at="+time.Now().UTC().Format(time.RFC3339), "")
	return os.WriteFile(MetaPath(storePath), []byte(strings.Join(lines, "\n")), 0644)
}

// ClearFingerprint removes the sidecar of a store.
func ClearFingerprint(storePath string) {
	os.Remove(MetaPath(storePath))
}

func readMeta(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	meta := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			meta[k] = v
		}
	}
	return meta, nil
}
