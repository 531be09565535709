package domain

// ClaimKind categorises a numeric claim extracted from an LLM answer.
type ClaimKind string

// Recognised claim kinds.
const (
	ClaimCount      ClaimKind = "count"
	ClaimMean       ClaimKind = "mean"
	ClaimMedian     ClaimKind = "median"
	ClaimMode       ClaimKind = "mode"
	ClaimStdDev     ClaimKind = "stddev"
	ClaimMin        ClaimKind = "min"
	ClaimMax        ClaimKind = "max"
	ClaimPercentage ClaimKind = "percentage"
)

// String returns the string representation.
func (k ClaimKind) String() string {
	return string(k)
}

// NumericClaim is one numeric assertion found in a candidate answer.
type NumericClaim struct {
	// Kind is the category of the claim.
	Kind ClaimKind

	// Subject names what the claim is about: a column name for
	// statistics, empty for dataset-level counts.
	Subject string

	// Value is the number the answer asserts.
	Value float64
}

// Key returns the claim's lookup key for corrected values,
// e.g. "mean" or "mean(amount)".
func (c NumericClaim) Key() string {
	if c.Subject == "" {
		return string(c.Kind)
	}
	return string(c.Kind) + "(" + c.Subject + ")"
}

// ValidationResult is the outcome of checking one candidate answer
// against ground truth. It is consumed immediately by the orchestrator
// and never persisted.
type ValidationResult struct {
	// IsValid is true when confidence cleared the validity threshold.
	IsValid bool

	// ConfidenceScore is in [0.0, 1.0]: 1.0 when every claim checked
	// out, reduced by a fixed penalty per distinct issue class.
	ConfidenceScore float64

	// Issues lists human-readable mismatch descriptions.
	Issues []string

	// CorrectedValues maps claim keys to the ground-truth figure that
	// should have been stated.
	CorrectedValues map[string]float64
}
