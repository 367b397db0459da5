// Package stats extracts header metadata and per-chromosome variant counts
// from a VCF in a single streaming pass.
package stats

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/SL-LAIDLAW/metallaxis/internal/vcf"
)

// ErrNoChromosomes is returned when no data records were seen, so no
// per-chromosome average can be computed.
var ErrNoChromosomes = errors.New("no chromosomes observed")

// Truncation limits for stored metadata and stats values.
const (
	maxTagLen        = 20
	maxValueLen      = 95
	maxStatKeyLen    = 40
	maxStatValueLen  = 60
	truncatedSuffix  = "..."
	truncatedLongTag = "...<truncated due to length>"
)

// BasicType marks metadata entries that are free-form header tags.
const BasicType = "basic"

// Entry is one "##TAG=VALUE" header line.
type Entry struct {
	Type  string // BasicType, or the tag itself for structured entries
	Tag   string
	Value string
}

// Result holds the output of Extract.
type Result struct {
	Metadata    []Entry  // basic entries, truncated and deduplicated
	Structured  []Entry  // INFO/FILTER/ALT/FORMAT-style definitions
	Chromosomes []string // distinct chromosomes in first-seen order
	Counts      *Counts
	Records     int
}

// ParseMeta classifies header lines (without their "##" prefix). Lines
// without "=" are skipped.
func ParseMeta(lines []string) (basic, structured []Entry) {
	seen := make(map[Entry]struct{}, len(lines))
	for _, line := range lines {
		tag, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		var e Entry
		if isUpper(tag) {
			e = Entry{Type: tag, Tag: tag, Value: value}
		} else {
			e = Entry{Type: BasicType, Tag: truncate(tag, maxTagLen, truncatedSuffix), Value: truncate(value, maxValueLen, truncatedLongTag)}
		}

		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}

		if e.Type == BasicType {
			basic = append(basic, e)
		} else {
			structured = append(structured, e)
		}
	}
	return basic, structured
}

// Extract reads every record from r, tallying SNPs and indels globally and
// per chromosome. meta are the header lines without their "##" prefix.
func Extract(ctx context.Context, r vcf.RecordReader, meta []string) (*Result, error) {
	res := &Result{Counts: NewCounts()}
	res.Metadata, res.Structured = ParseMeta(meta)

	cols := r.Index()
	seen := make(map[string]struct{})
	res.Counts.Set("Total_SNP_Count", 0)
	res.Counts.Set("Total_Indel_Count", 0)

	for {
		if res.Records%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		rec, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		if rec == nil {
			break
		}

		v, err := rec.Variant(cols)
		if err != nil {
			return nil, err
		}
		res.Records++

		if _, ok := seen[v.Chrom]; !ok {
			seen[v.Chrom] = struct{}{}
			res.Chromosomes = append(res.Chromosomes, v.Chrom)
		}

		if v.IsSNP() {
			res.Counts.Add("Total_SNP_Count", 1)
			res.Counts.Add(v.Chrom+"_Chrom_SNP_Count", 1)
		} else {
			res.Counts.Add("Total_Indel_Count", 1)
			res.Counts.Add(v.Chrom+"_Chrom_Indel_Count", 1)
		}
	}

	if len(res.Chromosomes) == 0 {
		return nil, ErrNoChromosomes
	}

	n := int64(len(res.Chromosomes))
	res.Counts.Set("Avg_SNP_per_Chrom", res.Counts.Get("Total_SNP_Count")/n)
	res.Counts.Set("Avg_Indel_per_Chrom", res.Counts.Get("Total_Indel_Count")/n)

	return res, nil
}

// Counts is an insertion-ordered metric name to count mapping.
type Counts struct {
	keys   []string
	values map[string]int64
}

// NewCounts creates an empty Counts.
func NewCounts() *Counts {
	return &Counts{values: make(map[string]int64)}
}

// Set stores value under key, keeping the key's original position.
func (c *Counts) Set(key string, value int64) {
	if _, ok := c.values[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.values[key] = value
}

// Add increments key by delta.
func (c *Counts) Add(key string, delta int64) {
	c.Set(key, c.values[key]+delta)
}

// Get returns the value for key, or 0.
func (c *Counts) Get(key string) int64 {
	return c.values[key]
}

// Keys returns metric names in insertion order.
func (c *Counts) Keys() []string {
	return c.keys
}

// Len returns the number of metrics.
func (c *Counts) Len() int {
	return len(c.keys)
}

// Rows renders the counts as (Tag, Result) string pairs for storage.
func (c *Counts) Rows() [][]any {
	rows := make([][]any, 0, len(c.keys))
	for _, k := range c.keys {
		v := strconv.FormatInt(c.values[k], 10)
		rows = append(rows, []any{
			truncate(k, maxStatKeyLen, truncatedSuffix),
			truncate(v, maxStatValueLen, truncatedSuffix),
		})
	}
	return rows
}

// MetadataRows renders basic entries as (Tag, Result) pairs for storage.
func MetadataRows(entries []Entry) [][]any {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{e.Tag, e.Value})
	}
	return rows
}

// isUpper reports whether s has at least one cased letter and no lower-case
// letters.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

func truncate(s string, n int, suffix string) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + suffix
}
