package vcf

// RecordReader is the interface for sources of tab-split VCF data lines.
// The file-backed Parser implements it; tests feed records from strings.
type RecordReader interface {
	// Next reads the next data record.
	// Returns nil, nil when there are no more records.
	Next() (*Record, error)

	// Index returns the resolved fixed-column positions.
	Index() ColumnIndex

	// Columns returns the column names from the #CHROM header line.
	Columns() []string

	// LineNumber returns the current line number being processed.
	LineNumber() int
}
