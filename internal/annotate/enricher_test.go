package annotate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SL-LAIDLAW/metallaxis/internal/store"
	"github.com/SL-LAIDLAW/metallaxis/internal/vep"
)

type fakeService struct {
	results map[string]vep.Result
	batches [][]string
	failOn  int // 1-based batch number that fails; 0 never
}

func (f *fakeService) Lookup(_ context.Context, ids []string) ([]vep.Result, error) {
	f.batches = append(f.batches, append([]string(nil), ids...))
	if f.failOn == len(f.batches) {
		return nil, &vep.ServiceError{Status: 503, Body: "unavailable"}
	}
	var out []vep.Result
	for _, id := range ids {
		if r, ok := f.results[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func memStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Create("", store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sourceStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	s := memStore(t)
	require.NoError(t, s.CreateRelation(ctx, store.Variants, []store.Column{
		{Name: "CHROM", Type: "VARCHAR"},
		{Name: "POS", Type: "BIGINT"},
		{Name: "ID", Type: "VARCHAR"},
		{Name: "REF", Type: "VARCHAR"},
		{Name: "ALT", Type: "VARCHAR"},
		{Name: "QUAL", Type: "DOUBLE"},
		{Name: "FILTER", Type: "VARCHAR"},
	}))
	require.NoError(t, s.Append(ctx, store.Variants, [][]any{
		{"1", int64(100), "rs1", "A", "G", 10.0, "PASS"},
		{"1", int64(200), "rs2", "C", "T", 11.0, "PASS"},
		{"1", int64(300), ".", "G", "A", 12.0, "PASS"},
		{"2", int64(400), "rs4", "T", "C,G", 13.0, "PASS"},
		{"2", int64(500), "rs1", "A", "C", 14.0, "PASS"},
	}))
	require.NoError(t, s.Append(ctx, store.Stats, [][]any{{"Total_SNP_Count", "5"}}))
	return s
}

func tc(allele, impact string, terms ...string) vep.TranscriptConsequence {
	return vep.TranscriptConsequence{
		VariantAllele:    allele,
		Impact:           impact,
		ConsequenceTerms: terms,
		GeneID:           "ENSG1",
		GeneSymbol:       "GENE1",
		Biotype:          "protein_coding",
	}
}

func TestEnrich(t *testing.T) {
	ctx := context.Background()
	src := sourceStore(t)
	dst := memStore(t)

	svc := &fakeService{results: map[string]vep.Result{
		"rs1": {ID: "rs1", TranscriptConsequences: []vep.TranscriptConsequence{
			tc("G", ImpactLow, "synonymous_variant"),
			tc("G", ImpactHigh, "stop_gained", "splice_region_variant"),
			tc("G", ImpactHigh, "frameshift_variant"),
			tc("T", ImpactModerate, "missense_variant"),
		}},
		"rs2": {ID: "rs2"},
		"rs4": {ID: "rs4", TranscriptConsequences: []vep.TranscriptConsequence{
			tc("C", ImpactModerate, "missense_variant", "a", "b", "c"),
		}},
	}}

	e := NewEnricher(svc)
	e.SetBatchSize(2)
	var percents []float64
	e.SetProgress(func(p float64, _ string) { percents = append(percents, p) })

	sum, err := e.Enrich(ctx, src, dst)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"rs1", "rs2"}, {"rs4"}}, svc.batches)
	assert.Equal(t, 3, sum.IDs)
	assert.Equal(t, 2, sum.Batches)
	assert.Equal(t, 1, sum.Annotated)
	assert.Equal(t, 4, sum.Placeholders)
	assert.Equal(t, 5, sum.Rows)

	n, err := dst.Count(ctx, store.Variants)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	rows, err := dst.ReadWhere(ctx, store.Variants, store.Eq("POS", int64(100)))
	require.NoError(t, err)
	require.Equal(t, 1, rows.Len())
	assert.Equal(t,
		[]any{"1", int64(100), "rs1", "A", "G", 10.0, "PASS",
			ImpactHigh, "GENE1", "stop_gained", "splice_region_variant", ".", "ENSG1", "protein_coding"},
		rows.Values[0])

	// Same ID, different ALT: not matched.
	rows, err = dst.ReadWhere(ctx, store.Variants, store.Eq("POS", int64(500)))
	require.NoError(t, err)
	require.Equal(t, 1, rows.Len())
	assert.Equal(t, ".", rows.Values[0][7])

	// Multi-allelic ALT never equals a single variant allele.
	rows, err = dst.ReadWhere(ctx, store.Variants, store.Eq("ID", "rs4"))
	require.NoError(t, err)
	require.Equal(t, 1, rows.Len())
	assert.Equal(t, ".", rows.Values[0][7])

	// Rows without an ID are carried through.
	rows, err = dst.ReadWhere(ctx, store.Variants, store.Eq("ID", "."))
	require.NoError(t, err)
	assert.Equal(t, 1, rows.Len())

	stats, err := dst.ReadAll(ctx, store.Stats)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"Total_SNP_Count", "5"}}, stats.Values)

	srcCount, err := src.Count(ctx, store.Variants)
	require.NoError(t, err)
	assert.Equal(t, int64(5), srcCount, "source must not change")

	require.NotEmpty(t, percents)
	assert.Equal(t, 80.0, percents[len(percents)-1])
}

func TestEnrich_ServiceFailureAborts(t *testing.T) {
	src := sourceStore(t)
	dst := memStore(t)

	svc := &fakeService{failOn: 2}
	e := NewEnricher(svc)
	e.SetBatchSize(1)

	_, err := e.Enrich(context.Background(), src, dst)
	var se *vep.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 503, se.Status)
	assert.Len(t, svc.batches, 2)
}

func TestEnrich_Cancelled(t *testing.T) {
	src := sourceStore(t)
	dst := memStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEnricher(&fakeService{}).Enrich(ctx, src, dst)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestMostSevere(t *testing.T) {
	got := MostSevere([]vep.TranscriptConsequence{
		tc("T", ImpactModifier, "intron_variant"),
		tc("G", ImpactModerate, "missense_variant"),
		tc("T", ImpactLow, "synonymous_variant"),
		tc("G", ImpactModerate, "inframe_deletion"),
	})

	require.Len(t, got, 2)
	assert.Equal(t, "T", got[0].Allele)
	assert.Equal(t, ImpactLow, got[0].Consequence.Impact)
	assert.Equal(t, "G", got[1].Allele)
	assert.Equal(t, "missense_variant", got[1].Consequence.Terms[0], "first wins on ties")
}

func TestNewConsequence_Placeholders(t *testing.T) {
	c := NewConsequence(vep.TranscriptConsequence{Impact: ImpactLow, ConsequenceTerms: []string{"synonymous_variant"}})
	assert.Equal(t, [3]string{"synonymous_variant", ".", "."}, c.Terms)
	assert.Equal(t, ".", c.GeneSymbol)
	assert.Len(t, c.Values(), len(Columns))
	assert.Equal(t, []any{".", ".", ".", ".", ".", ".", "."}, PlaceholderValues())
}

func TestImpactRank(t *testing.T) {
	assert.Greater(t, ImpactRank(ImpactHigh), ImpactRank(ImpactModerate))
	assert.Greater(t, ImpactRank(ImpactModerate), ImpactRank(ImpactLow))
	assert.Greater(t, ImpactRank(ImpactLow), ImpactRank(ImpactModifier))
	assert.Equal(t, 0, ImpactRank("unknown"))
}
