package vcf

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParser_FirstRecord(t *testing.T) {
	parser, err := NewParser(findTestFile(t, "sample.vcf"))
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	defer parser.Close()

	rec, err := parser.Next()
	if err != nil {
		t.Fatalf("Failed to read record: %v", err)
	}
	if rec == nil {
		t.Fatal("Expected a record, got nil")
	}

	v, err := rec.Variant(parser.Index())
	if err != nil {
		t.Fatalf("Failed to view variant: %v", err)
	}

	if v.Chrom != "1" {
		t.Errorf("Expected chrom 1, got %s", v.Chrom)
	}
	if v.Pos != "12752" {
		t.Errorf("Expected pos 12752, got %s", v.Pos)
	}
	if v.ID != "rs1000" {
		t.Errorf("Expected ID rs1000, got %s", v.ID)
	}
	if v.Ref != "A" || v.Alt != "G" {
		t.Errorf("Expected A>G, got %s>%s", v.Ref, v.Alt)
	}
	if v.Info != "DP=10;AF=0.10;DB;GENE=BRCA1;CSQ=missense|BRCA1" {
		t.Errorf("Unexpected INFO: %s", v.Info)
	}
	if rec.Line != 18 {
		t.Errorf("Expected line 18, got %d", rec.Line)
	}
}

func TestParser_AllRecords(t *testing.T) {
	parser, err := NewParser(findTestFile(t, "sample.vcf"))
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	defer parser.Close()

	count := 0
	for {
		rec, err := parser.Next()
		if err != nil {
			t.Fatalf("Error reading record: %v", err)
		}
		if rec == nil {
			break
		}
		count++
	}

	if count != 40 {
		t.Errorf("Expected 40 records, got %d", count)
	}
}

func TestParser_Header(t *testing.T) {
	parser, err := NewParser(findTestFile(t, "sample.vcf"))
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	defer parser.Close()

	meta := parser.Meta()
	if len(meta) != 16 {
		t.Errorf("Expected 16 metadata lines, got %d", len(meta))
	}
	if meta[0] != "fileformat=VCFv4.1" {
		t.Errorf("Expected fileformat first, got %q", meta[0])
	}

	cols := parser.Columns()
	if len(cols) != 8 || cols[0] != "#CHROM" {
		t.Errorf("Unexpected columns: %v", cols)
	}

	idx := parser.Index()
	if idx.Chrom != 0 || idx.Info != 7 || idx.Max() != 7 {
		t.Errorf("Unexpected column index: %+v", idx)
	}
}

func TestParser_SkipsBlankLines(t *testing.T) {
	input := "##fileformat=VCFv4.1\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n\n1\t100\t.\tA\tC\t10\tPASS\t.\n\r\n"
	parser, err := NewParserFromReader(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}

	rec, err := parser.Next()
	if err != nil || rec == nil {
		t.Fatalf("Expected record, got %v, %v", rec, err)
	}
	if rec.Line != 4 {
		t.Errorf("Expected line 4, got %d", rec.Line)
	}

	rec, err = parser.Next()
	if err != nil || rec != nil {
		t.Errorf("Expected end of input, got %v, %v", rec, err)
	}
}

func TestParser_HeaderAfterRecords(t *testing.T) {
	input := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n1\t100\t.\tA\tC\t10\tPASS\t.\n##late=1\n"
	parser, err := NewParserFromReader(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	if _, err := parser.Next(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	_, err = parser.Next()
	var me *MalformedError
	if !errors.As(err, &me) {
		t.Fatalf("Expected MalformedError, got %v", err)
	}
	if me.Line != 3 {
		t.Errorf("Expected line 3, got %d", me.Line)
	}
}

func TestParser_MissingChromLine(t *testing.T) {
	_, err := NewParserFromReader(strings.NewReader("##fileformat=VCFv4.1\n"))
	var me *MalformedError
	if !errors.As(err, &me) {
		t.Fatalf("Expected MalformedError, got %v", err)
	}
}

func TestResolveColumns(t *testing.T) {
	idx, err := ResolveColumns([]string{"#CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO", "FORMAT", "NA12878"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if idx.Alt != 4 || idx.Filter != 6 {
		t.Errorf("Unexpected index: %+v", idx)
	}

	// Substring match, first hit wins.
	idx, err = ResolveColumns([]string{"#CHROM", "POS", "MY_ID", "REF", "ALT", "QUAL", "FILTER", "INFO"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if idx.ID != 2 {
		t.Errorf("Expected ID at 2, got %d", idx.ID)
	}

	_, err = ResolveColumns([]string{"#CHROM", "POS", "ID", "REF", "ALT", "FILTER", "INFO"})
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("Expected SchemaError, got %v", err)
	}
	if se.Column != "QUAL" {
		t.Errorf("Expected missing QUAL, got %s", se.Column)
	}
}

func TestMalformedError(t *testing.T) {
	err := &MalformedError{Line: 42, Reason: "expected at least 8 columns, found 7"}
	expected := "malformed vcf at line 42: expected at least 8 columns, found 7"
	if err.Error() != expected {
		t.Errorf("Error message mismatch: got %q, want %q", err.Error(), expected)
	}

	err = &MalformedError{Reason: "vcf is empty"}
	if err.Error() != "malformed vcf: vcf is empty" {
		t.Errorf("Unexpected message: %q", err.Error())
	}
}

// findTestFile locates a test file in the testdata directory.
func findTestFile(t *testing.T, name string) string {
	t.Helper()

	paths := []string{
		filepath.Join("testdata", name),
		filepath.Join("..", "..", "testdata", name),
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	t.Fatalf("Test file not found: %s", name)
	return ""
}
