package vcf

import (
	"fmt"
	"strconv"
	"strings"
)

// Record-count thresholds applied after scanning the head.
const (
	MinRecords      = 5
	ComfortRecords  = 30
	DefaultHeadSize = 100
)

// Verdict is the outcome of a successful validation.
type Verdict int

const (
	Pass Verdict = iota
	Warn
)

func (v Verdict) String() string {
	if v == Warn {
		return "warn"
	}
	return "pass"
}

// ValidationResult describes the head of a VCF that passed validation.
type ValidationResult struct {
	Columns       ColumnIndex
	HeaderColumns []string
	MetadataLines int  // header lines, including #CHROM
	Records       int  // data records seen in the head
	QualNumeric   bool // false once a "." QUAL has been seen
	Verdict       Verdict
	Warning       string
}

type validatorState int

const (
	stateStart validatorState = iota
	stateHeader
	stateRecords
)

// Validate checks the head lines of a decompressed VCF. Only these lines are
// inspected; rows beyond the head are not checked here.
func Validate(lines []string) (*ValidationResult, error) {
	res := &ValidationResult{QualNumeric: true}
	state := stateStart
	headerFound := false

	for n, line := range lines {
		lineNo := n + 1
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			if state == stateRecords {
				return nil, &MalformedError{Line: lineNo, Reason: "header line after data records"}
			}
			state = stateHeader
			res.MetadataLines++

			if strings.HasPrefix(line, "#CHROM") {
				cols := strings.Split(line, "\t")
				idx, err := ResolveColumns(cols)
				if err != nil {
					return nil, err
				}
				res.Columns = idx
				res.HeaderColumns = cols
				headerFound = true
			}
			continue
		}

		if !headerFound {
			return nil, &MalformedError{Line: lineNo, Reason: "data record before #CHROM header line"}
		}
		state = stateRecords

		qualNumeric, err := CheckRecord(strings.Split(line, "\t"), res.Columns, lineNo)
		if err != nil {
			return nil, err
		}
		if !qualNumeric {
			res.QualNumeric = false
		}
		res.Records++
	}

	if !headerFound {
		return nil, &MalformedError{Reason: "no #CHROM header line found"}
	}

	switch {
	case res.Records == 0:
		return nil, &MalformedError{Reason: "vcf is empty, there are no variants at all"}
	case res.Records < MinRecords:
		return nil, &MalformedError{Reason: fmt.Sprintf("vcf contains too few variants to analyse (%d)", res.Records)}
	case res.Records < ComfortRecords:
		res.Verdict = Warn
		res.Warning = fmt.Sprintf("vcf contains very few variants (%d), only rudimentary statistics can be performed", res.Records)
	}
	return res, nil
}

// CheckRecord applies the per-field grammar to one data line. It returns
// false for qualNumeric when the QUAL value is ".".
func CheckRecord(fields []string, cols ColumnIndex, lineNo int) (qualNumeric bool, err error) {
	if len(fields) <= cols.Max() {
		return false, &MalformedError{
			Line:   lineNo,
			Reason: fmt.Sprintf("expected at least %d columns, found %d", cols.Max()+1, len(fields)),
		}
	}

	pos := strings.TrimSpace(fields[cols.Pos])
	if !IsDigits(pos) {
		return false, &MalformedError{Line: lineNo, Reason: "column 'POS' doesn't only contain digits: " + pos}
	}

	ref := strings.TrimSpace(fields[cols.Ref])
	if ref == "" || !isBases(ref) {
		return false, &MalformedError{Line: lineNo, Reason: "column 'REF' doesn't only contain A,C,G,T,N: " + ref}
	}

	alt := strings.TrimSpace(fields[cols.Alt])
	if !validAlt(alt) {
		return false, &MalformedError{Line: lineNo, Reason: "column 'ALT' doesn't only contain A,C,G,T,N or <ID>: " + alt}
	}

	qual := strings.TrimSpace(fields[cols.Qual])
	switch {
	case IsDigits(qual):
		return true, nil
	case qual == MissingValue:
		return false, nil
	case IsFloat(qual):
		return true, nil
	}
	return false, &MalformedError{Line: lineNo, Reason: "column 'QUAL' is not a number: " + qual}
}

// validAlt accepts ".", or comma-separated alleles that are each bases or
// a symbolic "<...>" allele. Only the enclosure of symbolic alleles is checked.
func validAlt(alt string) bool {
	if alt == MissingValue {
		return true
	}
	for _, allele := range strings.Split(alt, ",") {
		if len(allele) >= 2 && strings.HasPrefix(allele, "<") && strings.HasSuffix(allele, ">") {
			continue
		}
		if allele == "" || !isBases(allele) {
			return false
		}
	}
	return true
}

func isBases(s string) bool {
	for _, c := range strings.ToUpper(s) {
		switch c {
		case 'A', 'C', 'G', 'T', 'N':
		default:
			return false
		}
	}
	return true
}

// IsDigits reports whether s is a non-empty run of ASCII decimal digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// IsFloat reports whether s parses as a floating-point number.
func IsFloat(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
