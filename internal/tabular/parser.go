// Package tabular is the shared parser for delimited tabular text.
//
// Both the contextual enricher (for column classification) and the
// ground-truth calculator (for reconstruction) parse chunk content
// through this package, so header and row-shape assumptions live in
// exactly one place.
package tabular

import (
	"strconv"
	"strings"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
)

// EnrichmentMarker separates an enrichment summary from the preserved
// original chunk content.
const EnrichmentMarker = "=== ORIGINAL DATA ==="

// maxHeaderTokenLen bounds a plausible column-name token.
const maxHeaderTokenLen = 40

// numericThreshold is the share of values that must parse as numbers
// for a column to be inferred numeric.
const numericThreshold = 0.95

// Role is the lexical role a column name suggests. It is derived purely
// from generic keyword patterns, never from specific dataset knowledge.
type Role string

// Column roles.
const (
	RoleNumeric     Role = "numeric"
	RoleTemporal    Role = "temporal"
	RoleCategorical Role = "categorical"
	RoleGeneral     Role = "general"
)

// Keyword fragments that suggest a role when found in a column name.
var (
	numericHints     = []string{"amount", "value", "price", "total", "cost", "sum", "qty", "quantity", "score", "rate", "balance"}
	temporalHints    = []string{"time", "date", "timestamp", "created", "updated", "day", "month", "year"}
	categoricalHints = []string{"class", "category", "type", "status", "group", "label", "flag", "kind"}
)

// ClassifyColumn infers the role of a column from its name alone.
func ClassifyColumn(name string) Role {
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, hint := range temporalHints {
		if strings.Contains(lower, hint) {
			return RoleTemporal
		}
	}
	for _, hint := range categoricalHints {
		if strings.Contains(lower, hint) {
			return RoleCategorical
		}
	}
	for _, hint := range numericHints {
		if strings.Contains(lower, hint) {
			return RoleNumeric
		}
	}
	return RoleGeneral
}

// LooksLikeHeader reports whether a line plausibly is a column-name
// header: comma-delimited with at least two tokens, each token short,
// non-empty and not itself a number.
func LooksLikeHeader(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || !strings.Contains(line, ",") {
		return false
	}
	tokens := SplitRecord(line)
	if len(tokens) < 2 {
		return false
	}
	for _, tok := range tokens {
		if tok == "" || len(tok) > maxHeaderTokenLen {
			return false
		}
		if IsNumeric(tok) {
			return false
		}
	}
	return true
}

// SplitRecord splits a delimited line into trimmed fields.
func SplitRecord(line string) []string {
	parts := strings.Split(line, ",")
	fields := make([]string, len(parts))
	for i, p := range parts {
		fields[i] = strings.TrimSpace(p)
	}
	return fields
}

// IsNumeric reports whether a value parses as a number. Thousands
// separators are not handled; the calculator treats such values as
// categorical.
func IsNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

// ParseNumber parses a numeric value.
func ParseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// StripEnrichment returns the original chunk content with any
// enrichment summary removed. Content without a marker is returned
// unchanged, so the function is safe on raw chunks.
func StripEnrichment(content string) string {
	idx := strings.Index(content, EnrichmentMarker)
	if idx < 0 {
		return content
	}
	rest := content[idx+len(EnrichmentMarker):]
	return strings.TrimLeft(rest, "\n")
}

// Fragment is the tabular shape recovered from one chunk's content.
type Fragment struct {
	// HeaderLine is the verbatim header line.
	HeaderLine string

	// Columns is the parsed column-name list.
	Columns []string

	// RowLines holds every line after the header, verbatim. Malformed
	// lines are included: reconstruction must eventually recover every
	// row, so nothing is dropped here.
	RowLines []string
}

// ParseFragment scans chunk content for the first header-shaped line
// and collects the remaining non-empty lines as rows. The second return
// is false when no plausible header was found.
func ParseFragment(content string) (Fragment, bool) {
	content = StripEnrichment(content)
	lines := strings.Split(content, "\n")

	headerIdx := -1
	for i, line := range lines {
		if LooksLikeHeader(line) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return Fragment{}, false
	}

	frag := Fragment{
		HeaderLine: strings.TrimSpace(lines[headerIdx]),
	}
	frag.Columns = SplitRecord(frag.HeaderLine)

	for _, line := range lines[headerIdx+1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		frag.RowLines = append(frag.RowLines, strings.TrimSpace(line))
	}

	return frag, true
}

// InferColumnType infers a column's type from its observed values:
// numeric when at least 95% of non-empty values parse as numbers,
// temporal when the numeric values additionally form a strictly
// increasing counter, categorical otherwise.
func InferColumnType(values []string) domain.ColumnType {
	var nonEmpty, numeric int
	monotonic := true
	integers := true
	var prev float64
	first := true

	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		nonEmpty++
		n, err := ParseNumber(v)
		if err != nil {
			monotonic = false
			continue
		}
		numeric++
		if n != float64(int64(n)) {
			integers = false
		}
		if !first && n <= prev {
			monotonic = false
		}
		prev = n
		first = false
	}

	if nonEmpty == 0 {
		return domain.ColumnCategorical
	}
	if float64(numeric)/float64(nonEmpty) >= numericThreshold {
		// A strictly increasing integer sequence looks like a row
		// counter or epoch; tag it temporal rather than numeric.
		if monotonic && integers && nonEmpty > 2 {
			return domain.ColumnTemporal
		}
		return domain.ColumnNumeric
	}
	return domain.ColumnCategorical
}
