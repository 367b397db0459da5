package vcf

import "fmt"

// Record is a single data line split on tabs.
type Record struct {
	Line   int      // 1-based line number in the source
	Fields []string // raw column values
}

// Field returns the value at index i, or "" when the line is too short.
func (r *Record) Field(i int) string {
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return r.Fields[i]
}

// Variant returns a view of the fixed VCF fields of the record.
func (r *Record) Variant(cols ColumnIndex) (*Variant, error) {
	if len(r.Fields) <= cols.Max() {
		return nil, &MalformedError{
			Line:   r.Line,
			Reason: fmt.Sprintf("expected at least %d columns, found %d", cols.Max()+1, len(r.Fields)),
		}
	}
	return &Variant{
		Chrom:  r.Fields[cols.Chrom],
		Pos:    r.Fields[cols.Pos],
		ID:     r.Fields[cols.ID],
		Ref:    r.Fields[cols.Ref],
		Alt:    r.Fields[cols.Alt],
		Qual:   r.Fields[cols.Qual],
		Filter: r.Fields[cols.Filter],
		Info:   r.Fields[cols.Info],
	}, nil
}

// Variant holds the fixed columns of a VCF record as text.
type Variant struct {
	Chrom  string // Chromosome name (e.g., "12", "chr12")
	Pos    string // 1-based genomic position
	ID     string // Variant identifier, "." when unset
	Ref    string // Reference allele
	Alt    string // Alternate allele(s), not split
	Qual   string // Quality score or "."
	Filter string // Filter status
	Info   string // Raw INFO field
}

// IsSNP reports whether REF and ALT have the same length. Multi-allelic ALT
// lists are not normalized, so "A" vs "C,T" counts as an indel.
func (v *Variant) IsSNP() bool {
	return len(v.Ref) == len(v.Alt)
}

// IsIndel returns true if the variant is an insertion or deletion.
func (v *Variant) IsIndel() bool {
	return !v.IsSNP()
}

// HasID reports whether the record carries an identifier.
func (v *Variant) HasID() bool {
	return v.ID != "" && v.ID != MissingValue
}
