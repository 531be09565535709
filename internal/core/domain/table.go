package domain

import "strings"

// ColumnType is the inferred role of a reconstructed table column.
type ColumnType string

// Inferred column types.
const (
	// ColumnNumeric means at least 95% of values parse as numbers.
	ColumnNumeric ColumnType = "numeric"

	// ColumnTemporal means the column looks like a timestamp or a
	// monotonically increasing counter.
	ColumnTemporal ColumnType = "temporal"

	// ColumnCategorical is the fallback for non-numeric columns.
	ColumnCategorical ColumnType = "categorical"
)

// String returns the string representation.
func (t ColumnType) String() string {
	return string(t)
}

// ColumnStats holds descriptive statistics for one column.
// Numeric fields are only meaningful when Type is ColumnNumeric.
type ColumnStats struct {
	// Name is the column name as it appears in the header.
	Name string

	// Type is the inferred column type.
	Type ColumnType

	// Count is the number of non-empty values observed.
	Count int

	// Mean is the arithmetic mean of numeric values.
	Mean float64

	// Median is the middle numeric value.
	Median float64

	// Mode is the most frequent numeric value.
	Mode float64

	// StdDev is the population standard deviation.
	StdDev float64

	// Min is the smallest numeric value.
	Min float64

	// Max is the largest numeric value.
	Max float64

	// DistinctValues maps categorical values to their frequency.
	// Nil for numeric columns.
	DistinctValues map[string]int
}

// GroundTruthTable is the per-query reconstruction of a structured
// dataset from stored chunk text. It is the correctness oracle the
// guardrail compares LLM claims against, and is never persisted.
//
// Reconstruction uses only the header and row text held in the vector
// store; the original source file is never consulted.
type GroundTruthTable struct {
	// SourceID is the dataset the table was reconstructed for, empty
	// when reconstruction spanned all stored records.
	SourceID string

	// Columns is the ordered column-name list from the header.
	Columns []string

	// RowCount is the number of distinct data rows recovered.
	RowCount int

	// Rows holds the recovered data rows, one slice of fields per row,
	// in row-number order.
	Rows [][]string

	// Stats maps column name to its descriptive statistics.
	Stats map[string]ColumnStats
}

// IsEmpty returns true when no rows could be reconstructed.
func (t GroundTruthTable) IsEmpty() bool {
	return t.RowCount == 0
}

// Column returns the statistics for the named column, matched
// case-insensitively, and whether it exists.
func (t GroundTruthTable) Column(name string) (ColumnStats, bool) {
	if s, ok := t.Stats[name]; ok {
		return s, true
	}
	for col, s := range t.Stats {
		if strings.EqualFold(col, name) {
			return s, true
		}
	}
	return ColumnStats{}, false
}
