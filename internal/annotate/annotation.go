// Package annotate enriches stored variants with consequence annotations
// from the Ensembl VEP service.
package annotate

import "github.com/SL-LAIDLAW/metallaxis/internal/vep"

// Impact levels for variant consequences.
const (
	ImpactHigh     = "HIGH"
	ImpactModerate = "MODERATE"
	ImpactLow      = "LOW"
	ImpactModifier = "MODIFIER"
)

// Sequence Ontology terms with a non-modifier impact.
var termImpact = map[string]string{
	"transcript_ablation":               ImpactHigh,
	"splice_acceptor_variant":           ImpactHigh,
	"splice_donor_variant":              ImpactHigh,
	"stop_gained":                       ImpactHigh,
	"frameshift_variant":                ImpactHigh,
	"stop_lost":                         ImpactHigh,
	"start_lost":                        ImpactHigh,
	"transcript_amplification":          ImpactHigh,
	"inframe_insertion":                 ImpactModerate,
	"inframe_deletion":                  ImpactModerate,
	"inframe_variant":                   ImpactModerate,
	"missense_variant":                  ImpactModerate,
	"protein_altering_variant":          ImpactModerate,
	"splice_region_variant":             ImpactLow,
	"incomplete_terminal_codon_variant": ImpactLow,
	"start_retained_variant":            ImpactLow,
	"stop_retained_variant":             ImpactLow,
	"synonymous_variant":                ImpactLow,
	"coding_sequence_variant":           ImpactLow,
}

// Placeholder is written to every annotation column of an unmatched row.
const Placeholder = "."

// maxTerms is the number of consequence terms kept per annotation.
const maxTerms = 3

// ColumnDef describes a column added by enrichment.
type ColumnDef struct {
	Name        string
	Description string
}

// Columns are the annotation columns appended to df, in order.
var Columns = []ColumnDef{
	{Name: "IMPACT", Description: "VEP impact (HIGH, MODERATE, LOW, MODIFIER)"},
	{Name: "GENE_SYMBOL", Description: "Gene symbol"},
	{Name: "CONSEQUENCE_TERMS_1", Description: "First SO consequence term"},
	{Name: "CONSEQUENCE_TERMS_2", Description: "Second SO consequence term"},
	{Name: "CONSEQUENCE_TERMS_3", Description: "Third SO consequence term"},
	{Name: "GENE_ID", Description: "Ensembl gene ID"},
	{Name: "BIOTYPE", Description: "Transcript biotype"},
}

// IndexColumns are indexed on the annotated df.
var IndexColumns = []string{
	"CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER",
	"IMPACT", "GENE_SYMBOL",
	"CONSEQUENCE_TERMS_1", "CONSEQUENCE_TERMS_2", "CONSEQUENCE_TERMS_3",
	"GENE_ID", "BIOTYPE",
}

// Consequence is the annotation attached to one (ID, ALT) pair.
type Consequence struct {
	Impact     string
	Terms      [maxTerms]string
	GeneID     string
	GeneSymbol string
	Biotype    string
}

// TermsImpact returns the most severe impact among SO consequence terms.
// Unknown terms count as MODIFIER.
func TermsImpact(terms []string) string {
	best := ImpactModifier
	for _, term := range terms {
		if impact, ok := termImpact[term]; ok && ImpactRank(impact) > ImpactRank(best) {
			best = impact
		}
	}
	return best
}

// impactOf returns the reported impact, or derives it from the consequence
// terms when the service left it out.
func impactOf(tc vep.TranscriptConsequence) string {
	if tc.Impact != "" {
		return tc.Impact
	}
	if len(tc.ConsequenceTerms) == 0 {
		return ""
	}
	return TermsImpact(tc.ConsequenceTerms)
}

// NewConsequence converts a transcript consequence. Missing terms are ".".
func NewConsequence(tc vep.TranscriptConsequence) Consequence {
	c := Consequence{
		Impact:     orPlaceholder(impactOf(tc)),
		GeneID:     orPlaceholder(tc.GeneID),
		GeneSymbol: orPlaceholder(tc.GeneSymbol),
		Biotype:    orPlaceholder(tc.Biotype),
	}
	for i := range c.Terms {
		c.Terms[i] = Placeholder
		if i < len(tc.ConsequenceTerms) {
			c.Terms[i] = orPlaceholder(tc.ConsequenceTerms[i])
		}
	}
	return c
}

// Values returns the consequence in Columns order.
func (c Consequence) Values() []any {
	return []any{c.Impact, c.GeneSymbol, c.Terms[0], c.Terms[1], c.Terms[2], c.GeneID, c.Biotype}
}

// PlaceholderValues returns "." for every annotation column.
func PlaceholderValues() []any {
	vals := make([]any, len(Columns))
	for i := range vals {
		vals[i] = Placeholder
	}
	return vals
}

// ImpactRank returns numeric rank for impact comparison (higher = more severe).
func ImpactRank(impact string) int {
	switch impact {
	case ImpactHigh:
		return 3
	case ImpactModerate:
		return 2
	case ImpactLow:
		return 1
	default:
		return 0
	}
}

// AlleleConsequence pairs an allele with its chosen consequence.
type AlleleConsequence struct {
	Allele      string
	Consequence Consequence
}

// MostSevere picks one consequence per variant allele: the highest impact,
// first one wins on ties. Alleles keep their first-seen order.
func MostSevere(tcs []vep.TranscriptConsequence) []AlleleConsequence {
	var out []AlleleConsequence
	best := make(map[string]int) // allele -> index in out
	ranks := make(map[string]int)

	for _, tc := range tcs {
		rank := ImpactRank(impactOf(tc))
		i, ok := best[tc.VariantAllele]
		if !ok {
			best[tc.VariantAllele] = len(out)
			ranks[tc.VariantAllele] = rank
			out = append(out, AlleleConsequence{Allele: tc.VariantAllele, Consequence: NewConsequence(tc)})
			continue
		}
		if rank > ranks[tc.VariantAllele] {
			ranks[tc.VariantAllele] = rank
			out[i].Consequence = NewConsequence(tc)
		}
	}
	return out
}

func orPlaceholder(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}
