// Package decompress detects the container format of a VCF file and exposes
// its decoded contents either as a bounded head or as a scratch copy.
package decompress

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/xi2/xz"
)

// Pre-flight and sniffing errors.
var (
	ErrFileNotFound      = errors.New("file not found")
	ErrEmptyFile         = errors.New("file is empty")
	ErrUnsupportedFormat = errors.New("unsupported format: file must be a VCF (plain, gzip, bzip2 or xz)")
)

// Format is the container format of an input file.
type Format int

const (
	None Format = iota
	Gzip
	Bzip2
	Xz
)

func (f Format) String() string {
	switch f {
	case None:
		return "uncompressed"
	case Gzip:
		return "gzip"
	case Bzip2:
		return "bzip2"
	case Xz:
		return "xz"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Codec opens a decoding reader for one container format.
type Codec interface {
	NewReader(r io.Reader) (io.ReadCloser, error)
}

type plainCodec struct{}

func (plainCodec) NewReader(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(r), nil }

type gzipCodec struct{}

func (gzipCodec) NewReader(r io.Reader) (io.ReadCloser, error) { return gzip.NewReader(r) }

type bzip2Codec struct{}

func (bzip2Codec) NewReader(r io.Reader) (io.ReadCloser, error) { return bzip2.NewReader(r, nil) }

type xzCodec struct{}

func (xzCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := xz.NewReader(r, 0)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(zr), nil
}

var codecs = map[Format]Codec{
	None:  plainCodec{},
	Gzip:  gzipCodec{},
	Bzip2: bzip2Codec{},
	Xz:    xzCodec{},
}

// CodecFor returns the codec registered for f.
func CodecFor(f Format) (Codec, error) {
	c, ok := codecs[f]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
	return c, nil
}

// Byte code signatures, see https://stackoverflow.com/a/19127748/199475
var signatures = []struct {
	format Format
	magic  []byte
}{
	{Gzip, []byte{0x1f, 0x8b}},
	{Bzip2, []byte{0x42, 0x5a, 0x68}},
	{Xz, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
}

// sniffLen is how many leading bytes are inspected.
const sniffLen = 512

// Sniff classifies the leading bytes of a file. Uncompressed input is only
// accepted when it looks like a VCF header.
func Sniff(head []byte) (Format, error) {
	for _, sig := range signatures {
		if bytes.HasPrefix(head, sig.magic) {
			return sig.format, nil
		}
	}
	text := string(head)
	if strings.HasPrefix(text, "##fileformat=VCF") || strings.HasPrefix(text, "#CHROM") {
		return None, nil
	}
	return None, ErrUnsupportedFormat
}

// Preflight checks that path exists, is a regular file and is not empty.
func Preflight(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("stat input: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}
	return nil
}

// Detect sniffs the container format of the file at path.
func Detect(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return None, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return None, fmt.Errorf("read input header: %w", err)
	}
	return Sniff(buf[:n])
}

// Stream is a decoded view of an input file.
type Stream struct {
	Format Format
	file   *os.File
	reader io.ReadCloser
}

// Open detects the format of path and returns a decoding stream over it.
func Open(path string) (*Stream, error) {
	format, err := Detect(path)
	if err != nil {
		return nil, err
	}
	codec, err := CodecFor(format)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	r, err := codec.NewReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("create %s reader: %w", format, err)
	}
	return &Stream{Format: format, file: file, reader: r}, nil
}

func (s *Stream) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

// Close closes the decoder and the underlying file.
func (s *Stream) Close() error {
	rerr := s.reader.Close()
	ferr := s.file.Close()
	if rerr != nil {
		return rerr
	}
	return ferr
}

// ReadHead returns at most maxLines lines from r, without line terminators.
// Nothing past the last returned line is read into memory beyond the
// bufio buffer.
func ReadHead(r io.Reader, maxLines int) ([]string, error) {
	if maxLines <= 0 {
		return nil, nil
	}
	br := bufio.NewReader(r)
	lines := make([]string, 0, maxLines)
	for len(lines) < maxLines {
		line, err := br.ReadString('\n')
		if line != "" {
			lines = append(lines, strings.TrimRight(line, "\r\n"))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read head: %w", err)
		}
	}
	return lines, nil
}

// ReadAll copies the fully decoded stream to scratchPath. The copy is written
// to a sibling temp file and renamed into place, so an artifact left by a
// previous run is replaced rather than appended to.
func ReadAll(r io.Reader, scratchPath string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(scratchPath), 0755); err != nil {
		return 0, fmt.Errorf("create scratch directory: %w", err)
	}

	tmpPath := scratchPath + ".tmp-" + uuid.NewString()
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("create scratch file: %w", err)
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("decompress to scratch: %w", err)
	}

	if err := os.Rename(tmpPath, scratchPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("rename scratch file: %w", err)
	}
	return n, nil
}

// Decompress opens path and writes its decoded contents to scratchPath.
func Decompress(path, scratchPath string) (Format, int64, error) {
	s, err := Open(path)
	if err != nil {
		return None, 0, err
	}
	defer s.Close()

	n, err := ReadAll(s, scratchPath)
	return s.Format, n, err
}

// Head opens path and returns its first maxLines decoded lines.
func Head(path string, maxLines int) (Format, []string, error) {
	s, err := Open(path)
	if err != nil {
		return None, nil, err
	}
	defer s.Close()

	lines, err := ReadHead(s, maxLines)
	return s.Format, lines, err
}
