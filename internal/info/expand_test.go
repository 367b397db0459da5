package info

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SL-LAIDLAW/metallaxis/internal/vcf"
)

const header = "##fileformat=VCFv4.1\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n"

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

func parserFor(t *testing.T, body string) *vcf.Parser {
	t.Helper()
	p, err := vcf.NewParserFromReader(strings.NewReader(header + body))
	require.NoError(t, err)
	return p
}

func discover(t *testing.T, body string, opts Options) *Schema {
	t.Helper()
	s, err := Discover(context.Background(), parserFor(t, body), opts)
	require.NoError(t, err)
	return s
}

func column(t *testing.T, s *Schema, name string) Column {
	t.Helper()
	c, ok := s.Lookup(name)
	require.True(t, ok, "column %s not found", name)
	return c
}

func TestDiscover_Sample(t *testing.T) {
	p, err := vcf.NewParser(findTestFile(t, "sample.vcf"))
	require.NoError(t, err)
	defer p.Close()

	s, err := Discover(context.Background(), p, Options{FullValidation: true})
	require.NoError(t, err)

	assert.Equal(t, 40, s.Records)
	assert.True(t, s.QualNumeric)
	assert.Equal(t, []string{"DP", "AF", "DB", "GENE", "CSQ"}, s.InfoKeys())
	assert.Equal(t,
		[]string{"CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO", "DP", "AF", "DB", "GENE", "CSQ"},
		s.Names())

	tests := []struct {
		name    string
		kind    Kind
		integer bool
	}{
		{"CHROM", Text, false},
		{"POS", Numeric, true},
		{"ID", Text, false},
		{"QUAL", Numeric, false},
		{"DP", Numeric, true},
		{"AF", Numeric, false},
		{"DB", Text, false},
		{"GENE", Text, false},
		{"CSQ", Text, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := column(t, s, tt.name)
			assert.Equal(t, tt.kind, c.Kind)
			assert.Equal(t, tt.integer, c.Integer)
		})
	}
}

func TestDiscover_KeyUnion(t *testing.T) {
	s := discover(t, ""+
		"1\t1\t.\tA\tC\t1\tPASS\tX=1;Y=2\n"+
		"1\t2\t.\tA\tC\t1\tPASS\tY=3;X=4;X=5\n"+
		"1\t3\t.\tA\tC\t1\tPASS\t.\n"+
		"1\t4\t.\tA\tC\t1\tPASS\tZ\n"+
		"1\t5\t.\tA\tC\t1\tPASS\t\n", Options{})

	assert.Equal(t, []string{"X", "Y", "Z"}, s.InfoKeys())
}

func TestDiscover_NumericInference(t *testing.T) {
	s := discover(t, ""+
		"1\t1\t.\tA\tC\t1\tPASS\tN=1;F=1.5;P=1|2;C=1,2;E=1e3;M=7\n"+
		"1\t2\t.\tA\tC\t.\tPASS\tN=2;F=3;P=3;C=3;E=2\n", Options{})

	assert.Equal(t, Numeric, column(t, s, "N").Kind)
	assert.True(t, column(t, s, "N").Integer)
	assert.Equal(t, Numeric, column(t, s, "F").Kind)
	assert.False(t, column(t, s, "F").Integer)
	assert.Equal(t, Text, column(t, s, "P").Kind)
	assert.Equal(t, Text, column(t, s, "C").Kind)
	assert.Equal(t, Numeric, column(t, s, "E").Kind)
	// Missing on row 2, so the "." default makes it text.
	assert.Equal(t, Text, column(t, s, "M").Kind)
	assert.Equal(t, Text, column(t, s, "QUAL").Kind)
	// QualNumeric is only tracked with full validation.
	assert.True(t, s.QualNumeric)
}

func TestDiscover_ColumnNaming(t *testing.T) {
	s := discover(t, "1\t1\t.\tA\tC\t1\tPASS\tpos=1;INFO_POS=2;id=x;DP=3;dp=4\n", Options{})

	assert.Equal(t,
		[]string{"CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO", "INFO_pos", "INFO_INFO_POS", "INFO_id", "DP", "INFO_dp"},
		s.Names())
	c := column(t, s, "INFO_pos")
	assert.Equal(t, "pos", c.Source)
	assert.True(t, c.IsInfo())
}

func TestDiscover_FullValidation(t *testing.T) {
	body := "1\t1\t.\tA\tC\t1\tPASS\t.\n1\t2\t.\tQ\tC\t1\tPASS\t.\n"

	// Without full validation the bad REF passes discovery.
	discover(t, body, Options{})

	_, err := Discover(context.Background(), parserFor(t, body), Options{FullValidation: true})
	var me *vcf.MalformedError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, 4, me.Line)

	s := discover(t, "1\t1\t.\tA\tC\t.\tPASS\t.\n", Options{FullValidation: true})
	assert.False(t, s.QualNumeric)
}

func TestDiscover_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Discover(ctx, parserFor(t, "1\t1\t.\tA\tC\t1\tPASS\t.\n"), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMaterialize(t *testing.T) {
	body := "" +
		"1\t10\trs1\tA\tC\t5\tPASS\tDP=3;DB;GENE=TP53\n" +
		"2\t20\t.\tAT\tA\t6.5\tPASS\tDP=4\n" +
		"X\t30\trs3\tG\tT\t7\tPASS\tDP=5;GENE=KRAS=1\n"
	s := discover(t, body, Options{})

	var chunks []Chunk
	err := Materialize(context.Background(), parserFor(t, body), s, 2, func(_ context.Context, c Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 1, chunks[1].Index)
	require.Len(t, chunks[0].Rows, 2)
	require.Len(t, chunks[1].Rows, 1)

	// CHROM POS ID REF ALT QUAL FILTER INFO DP DB GENE
	assert.Equal(t, []any{"1", int64(10), "rs1", "A", "C", 5.0, "PASS", "DP=3;DB;GENE=TP53", int64(3), "T", "TP53"}, chunks[0].Rows[0])
	assert.Equal(t, []any{"2", int64(20), ".", "AT", "A", 6.5, "PASS", "DP=4", int64(4), ".", "."}, chunks[0].Rows[1])
	assert.Equal(t, "KRAS=1", chunks[1].Rows[0][10])
}

func TestMaterialize_EmitError(t *testing.T) {
	body := "1\t10\t.\tA\tC\t5\tPASS\tDP=3\n"
	s := discover(t, body, Options{})

	boom := assert.AnError
	err := Materialize(context.Background(), parserFor(t, body), s, 10, func(context.Context, Chunk) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestMaterialize_CancelledBetweenChunks(t *testing.T) {
	body := strings.Repeat("1\t10\t.\tA\tC\t5\tPASS\tDP=3\n", 5)
	s := discover(t, body, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	emitted := 0
	err := Materialize(ctx, parserFor(t, body), s, 2, func(context.Context, Chunk) error {
		emitted++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, emitted)
}

func TestColumn_SQLType(t *testing.T) {
	assert.Equal(t, "BIGINT", Column{Kind: Numeric, Integer: true}.SQLType())
	assert.Equal(t, "DOUBLE", Column{Kind: Numeric}.SQLType())
	assert.Equal(t, "VARCHAR", Column{Kind: Text}.SQLType())
	assert.Equal(t, "numeric", Numeric.String())
}
