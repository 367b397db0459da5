// Package vcf provides VCF header resolution, validation and record reading.
package vcf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// MissingValue is the VCF placeholder for an absent value.
const MissingValue = "."

// RequiredColumns are the fixed VCF 4.1 columns, in file order.
var RequiredColumns = []string{"#CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO"}

// ColumnIndex holds the resolved positions of the fixed columns.
type ColumnIndex struct {
	Chrom, Pos, ID, Ref, Alt, Qual, Filter, Info int
}

// Max returns the highest fixed-column position.
func (c ColumnIndex) Max() int {
	m := c.Chrom
	for _, i := range []int{c.Pos, c.ID, c.Ref, c.Alt, c.Qual, c.Filter, c.Info} {
		if i > m {
			m = i
		}
	}
	return m
}

// ResolveColumns locates each required column in the #CHROM header tokens.
// A token matches when it contains the column name; the first match wins.
func ResolveColumns(header []string) (ColumnIndex, error) {
	pos := make([]int, len(RequiredColumns))
	for n, name := range RequiredColumns {
		pos[n] = -1
		for i, tok := range header {
			if strings.Contains(tok, name) {
				pos[n] = i
				break
			}
		}
		if pos[n] < 0 {
			return ColumnIndex{}, &SchemaError{Column: name}
		}
	}
	return ColumnIndex{
		Chrom: pos[0], Pos: pos[1], ID: pos[2], Ref: pos[3],
		Alt: pos[4], Qual: pos[5], Filter: pos[6], Info: pos[7],
	}, nil
}

// Parser reads records from a decompressed VCF file.
type Parser struct {
	reader     *bufio.Reader
	file       *os.File
	lineNumber int
	meta       []string // "##" lines, without the leading "##"
	columns    []string // tokens of the #CHROM line
	index      ColumnIndex
}

// NewParser creates a parser for the decompressed VCF at path.
func NewParser(path string) (*Parser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vcf file: %w", err)
	}

	p := &Parser{file: file, reader: bufio.NewReaderSize(file, 1<<16)}
	if err := p.parseHeader(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader.
func NewParserFromReader(r io.Reader) (*Parser, error) {
	p := &Parser{reader: bufio.NewReader(r)}
	if err := p.parseHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

// parseHeader reads metadata lines up to and including the #CHROM line.
func (p *Parser) parseHeader() error {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("read header: %w", err)
		}
		if line == "" && err == io.EOF {
			break
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")

		switch {
		case strings.HasPrefix(line, "##"):
			p.meta = append(p.meta, line[2:])
		case strings.HasPrefix(line, "#CHROM"):
			p.columns = strings.Split(line, "\t")
			idx, rerr := ResolveColumns(p.columns)
			if rerr != nil {
				return rerr
			}
			p.index = idx
			return nil
		case line == "":
		default:
			return &MalformedError{
				Line:   p.lineNumber,
				Reason: "expected #CHROM header line",
			}
		}

		if err == io.EOF {
			break
		}
	}

	return &MalformedError{
		Line:   p.lineNumber,
		Reason: "no #CHROM header line found",
	}
}

// Next reads the next data record.
// Returns nil, nil when there are no more records.
func (p *Parser) Next() (*Record, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read variant line: %w", err)
		}
		if line == "" && err == io.EOF {
			return nil, nil
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			return nil, &MalformedError{
				Line:   p.lineNumber,
				Reason: "header line after data records",
			}
		}
		return &Record{Line: p.lineNumber, Fields: strings.Split(line, "\t")}, nil
	}
}

// Meta returns the "##" metadata lines without their prefix.
func (p *Parser) Meta() []string {
	return p.meta
}

// Columns returns the tokens of the #CHROM header line.
func (p *Parser) Columns() []string {
	return p.columns
}

// Index returns the resolved fixed-column positions.
func (p *Parser) Index() ColumnIndex {
	return p.index
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Close closes the underlying file.
func (p *Parser) Close() error {
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// MalformedError reports a VCF that breaks the structural rules.
type MalformedError struct {
	Line   int
	Reason string
}

func (e *MalformedError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("malformed vcf: %s", e.Reason)
	}
	return fmt.Sprintf("malformed vcf at line %d: %s", e.Line, e.Reason)
}

// SchemaError reports a required column missing from the #CHROM header.
type SchemaError struct {
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("vcf schema: required column %q not found in #CHROM header", e.Column)
}
