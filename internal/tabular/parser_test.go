package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
)

func TestLooksLikeHeader(t *testing.T) {
	tests := []struct {
		name string
		line string
		want bool
	}{
		{"typical header", "id,amount,category", true},
		{"header with spaces", "transaction id, amount, class", true},
		{"data row", "1,42.5,Fraud", false},
		{"single token", "amount", false},
		{"empty", "", false},
		{"numeric tokens", "1,2,3", false},
		{"mixed numeric token", "id,42,category", false},
		{"empty token", "id,,category", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LooksLikeHeader(tt.line))
		})
	}
}

func TestClassifyColumn(t *testing.T) {
	tests := []struct {
		column string
		want   Role
	}{
		{"amount", RoleNumeric},
		{"total_price", RoleNumeric},
		{"created_at", RoleTemporal},
		{"Timestamp", RoleTemporal},
		{"category", RoleCategorical},
		{"Class", RoleCategorical},
		{"description", RoleGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyColumn(tt.column))
		})
	}
}

func TestStripEnrichment(t *testing.T) {
	original := "id,amount\n1,10\n2,20"
	enriched := "Some summary text.\n\n" + EnrichmentMarker + "\n" + original

	assert.Equal(t, original, StripEnrichment(enriched))
	assert.Equal(t, original, StripEnrichment(original), "content without marker passes through")
}

func TestParseFragment(t *testing.T) {
	t.Run("plain chunk", func(t *testing.T) {
		frag, ok := ParseFragment("id,amount\n1,10\n2,20\n")
		require.True(t, ok)
		assert.Equal(t, []string{"id", "amount"}, frag.Columns)
		assert.Equal(t, []string{"1,10", "2,20"}, frag.RowLines)
	})

	t.Run("enriched chunk", func(t *testing.T) {
		content := "Tabular fragment with 2 columns.\n\n" + EnrichmentMarker + "\nid,amount\n1,10"
		frag, ok := ParseFragment(content)
		require.True(t, ok)
		assert.Equal(t, "id,amount", frag.HeaderLine)
		assert.Equal(t, []string{"1,10"}, frag.RowLines)
	})

	t.Run("malformed rows are kept", func(t *testing.T) {
		frag, ok := ParseFragment("id,amount\n1,10\nnot a valid row\n2,20")
		require.True(t, ok)
		assert.Len(t, frag.RowLines, 3)
	})

	t.Run("no header", func(t *testing.T) {
		_, ok := ParseFragment("just some prose without commas")
		assert.False(t, ok)
	})
}

func TestInferColumnType(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   domain.ColumnType
	}{
		{"all numeric", []string{"1.5", "2.0", "3.25", "1.5"}, domain.ColumnNumeric},
		{"categorical", []string{"Fraud", "Normal", "Normal"}, domain.ColumnCategorical},
		{"too many stray values", []string{"1.5", "2.0", "oops"}, domain.ColumnCategorical},
		{"monotonic integer counter", []string{"1", "2", "3", "4", "5"}, domain.ColumnTemporal},
		{"monotonic floats stay numeric", []string{"1.5", "2.5", "3.5", "4.5"}, domain.ColumnNumeric},
		{"two values too short for temporal", []string{"1", "2"}, domain.ColumnNumeric},
		{"empty values", []string{"", "", ""}, domain.ColumnCategorical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferColumnType(tt.values))
		})
	}
}

func TestInferColumnTypeNumericThreshold(t *testing.T) {
	// 95 numeric out of 100 values sits exactly on the 95% threshold and
	// still counts as numeric.
	values := append(manyNumbers(95), "a", "b", "c", "d", "e")
	require.Len(t, values, 100)
	assert.Equal(t, domain.ColumnNumeric, InferColumnType(values))

	// 94 out of 100 falls below it.
	values = append(manyNumbers(94), "a", "b", "c", "d", "e", "f")
	assert.Equal(t, domain.ColumnCategorical, InferColumnType(values))
}

// manyNumbers produces n distinct non-monotonic numeric strings.
func manyNumbers(n int) []string {
	out := make([]string, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = "10.5"
		} else {
			out[i] = "3.25"
		}
	}
	return out
}
