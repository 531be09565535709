package services

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
	"github.com/custodia-labs/tabletalk-cli/internal/logger"
	"github.com/custodia-labs/tabletalk-cli/internal/tabular"
)

// Claim extraction patterns. They are deliberately narrow: the guardrail
// only judges claims it can ground, everything else passes through.
var (
	// "1,234 records", "100 rows", "42 transactions"
	countPattern = regexp.MustCompile(`(?i)([\d][\d,]*)\s+(?:records?|rows?|transactions?|entries|observations)\b`)

	// "number of rows is 100", "row count: 100"
	countPhrasePattern = regexp.MustCompile(`(?i)(?:number\s+of\s+(?:records?|rows?|transactions?|entries)|(?:record|row)\s+count)\s*(?:is|was|:|=)?\s*([\d][\d,]*)`)

	// "mean of amount is 50.0", "average amount: 49.5", "std deviation of price = 10"
	statPattern = regexp.MustCompile(`(?i)\b(mean|average|avg|median|mode|std(?:\.?\s*|andard\s+)dev(?:iation)?|std|minimum|min|maximum|max)\b(?:\s+(?:of|for))?(?:\s+the)?(?:\s+([A-Za-z_][A-Za-z0-9_]*))?(?:\s+column)?\s*(?:is|was|equals|:|=)?\s*(-?[\d][\d,]*(?:\.\d+)?)`)

	// "amount has a mean of 50.0", "price mean: 49.5"
	columnFirstPattern = regexp.MustCompile(`(?i)\b([A-Za-z_][A-Za-z0-9_]*)\s+(?:has\s+(?:a|an)\s+|column\s+)?(mean|average|avg|median|mode|std(?:\.?\s*|andard\s+)dev(?:iation)?|std|minimum|min|maximum|max)\s*(?:of|is|was|:|=)\s*(-?[\d][\d,]*(?:\.\d+)?)`)

	// "35.5% of ... are Fraud", "Fraud accounts for 12%"
	percentPattern = regexp.MustCompile(`(?i)(-?\d+(?:\.\d+)?)\s*%\s*(?:of\s+(?:the\s+)?\w+\s+(?:are|is|were)\s+([A-Za-z_][A-Za-z0-9_]*))?`)
)

// statKinds maps matched statistic words to claim kinds.
var statKinds = map[string]domain.ClaimKind{
	"mean":    domain.ClaimMean,
	"average": domain.ClaimMean,
	"avg":     domain.ClaimMean,
	"median":  domain.ClaimMedian,
	"mode":    domain.ClaimMode,
	"std":     domain.ClaimStdDev,
	"minimum": domain.ClaimMin,
	"min":     domain.ClaimMin,
	"maximum": domain.ClaimMax,
	"max":     domain.ClaimMax,
}

// GuardrailValidator parses numeric claims out of a candidate answer
// and checks them against ground truth. It is stateless; all tunables
// come from configuration.
type GuardrailValidator struct {
	settings domain.GuardrailSettings
}

// NewGuardrailValidator creates a validator with the given tunables.
// Zero-valued settings fall back to the documented defaults.
func NewGuardrailValidator(settings domain.GuardrailSettings) *GuardrailValidator {
	defaults := domain.DefaultConfig().Guardrail
	if settings.ConfidenceThreshold <= 0 {
		settings.ConfidenceThreshold = defaults.ConfidenceThreshold
	}
	if settings.CountTolerance <= 0 {
		settings.CountTolerance = defaults.CountTolerance
	}
	if settings.RelativeTolerance <= 0 {
		settings.RelativeTolerance = defaults.RelativeTolerance
	}
	if settings.IssuePenalty <= 0 {
		settings.IssuePenalty = defaults.IssuePenalty
	}
	if settings.MaxIssuesInPrompt <= 0 {
		settings.MaxIssuesInPrompt = defaults.MaxIssuesInPrompt
	}
	if settings.MaxRetries == 0 {
		settings.MaxRetries = defaults.MaxRetries
	}
	if settings.MaxRetries < 0 {
		settings.MaxRetries = 0
	}
	return &GuardrailValidator{settings: settings}
}

// Validate extracts numeric claims from the answer and compares each
// against the ground-truth table. An answer whose every claim matches
// within tolerance scores a confidence of 1.0.
func (g *GuardrailValidator) Validate(answer string, truth domain.GroundTruthTable) domain.ValidationResult {
	result := domain.ValidationResult{
		ConfidenceScore: 1.0,
		CorrectedValues: make(map[string]float64),
	}

	claims := g.extractClaims(answer)
	logger.Debug("Guardrail: %d claims extracted", len(claims))

	// Penalty applies once per distinct issue class, not per claim.
	penalised := make(map[domain.ClaimKind]bool)

	for _, claim := range claims {
		truthValue, ok := g.lookupTruth(claim, truth)
		if !ok {
			continue
		}

		if g.withinTolerance(claim, truthValue) {
			continue
		}

		result.Issues = append(result.Issues, fmt.Sprintf(
			"%s claims %s = %v, actual value is %v",
			claim.Kind, claimSubject(claim), claim.Value, truthValue))
		result.CorrectedValues[claim.Key()] = truthValue

		if !penalised[claim.Kind] {
			penalised[claim.Kind] = true
			result.ConfidenceScore -= g.settings.IssuePenalty
		}
	}

	if result.ConfidenceScore < 0 {
		result.ConfidenceScore = 0
	}
	result.ConfidenceScore = roundScore(result.ConfidenceScore)

	// An answer sitting exactly on the threshold with outstanding issues
	// is not trusted; a clean answer at the threshold is.
	if len(result.Issues) == 0 {
		result.IsValid = result.ConfidenceScore >= g.settings.ConfidenceThreshold
	} else {
		result.IsValid = result.ConfidenceScore > g.settings.ConfidenceThreshold
	}

	logger.Debug("Guardrail: confidence %.2f, valid=%t, issues=%d",
		result.ConfidenceScore, result.IsValid, len(result.Issues))
	return result
}

// CorrectionPrompt renders the issues into a re-generation instruction
// for the LLM gateway, listing at most the configured number of issues.
func (g *GuardrailValidator) CorrectionPrompt(result domain.ValidationResult) string {
	if len(result.Issues) == 0 {
		return ""
	}

	issues := result.Issues
	if len(issues) > g.settings.MaxIssuesInPrompt {
		issues = issues[:g.settings.MaxIssuesInPrompt]
	}

	var b strings.Builder
	b.WriteString("Your previous answer contained figures that do not match the dataset. ")
	b.WriteString("Correct the following and answer again using only the corrected values:\n")
	for _, issue := range issues {
		fmt.Fprintf(&b, "- %s\n", issue)
	}
	for key, value := range result.CorrectedValues {
		fmt.Fprintf(&b, "Use %s = %v.\n", key, value)
	}
	return b.String()
}

// extractClaims runs the claim patterns over the answer text.
func (g *GuardrailValidator) extractClaims(answer string) []domain.NumericClaim {
	var claims []domain.NumericClaim

	for _, m := range countPattern.FindAllStringSubmatch(answer, -1) {
		if v, err := parseClaimNumber(m[1]); err == nil {
			claims = append(claims, domain.NumericClaim{Kind: domain.ClaimCount, Value: v})
		}
	}
	for _, m := range countPhrasePattern.FindAllStringSubmatch(answer, -1) {
		if v, err := parseClaimNumber(m[1]); err == nil {
			claims = append(claims, domain.NumericClaim{Kind: domain.ClaimCount, Value: v})
		}
	}

	for _, m := range statPattern.FindAllStringSubmatch(answer, -1) {
		kind, ok := statKind(m[1])
		if !ok {
			continue
		}
		if v, err := parseClaimNumber(m[3]); err == nil {
			claims = append(claims, domain.NumericClaim{Kind: kind, Subject: cleanSubject(m[2]), Value: v})
		}
	}

	for _, m := range columnFirstPattern.FindAllStringSubmatch(answer, -1) {
		kind, ok := statKind(m[2])
		if !ok {
			continue
		}
		if v, err := parseClaimNumber(m[3]); err == nil {
			claims = append(claims, domain.NumericClaim{Kind: kind, Subject: m[1], Value: v})
		}
	}

	for _, m := range percentPattern.FindAllStringSubmatch(answer, -1) {
		if m[2] == "" {
			continue
		}
		if v, err := parseClaimNumber(m[1]); err == nil {
			claims = append(claims, domain.NumericClaim{Kind: domain.ClaimPercentage, Subject: m[2], Value: v})
		}
	}

	return claims
}

// lookupTruth resolves a claim to its ground-truth figure. Claims with
// no corresponding figure are not judged.
func (g *GuardrailValidator) lookupTruth(claim domain.NumericClaim, truth domain.GroundTruthTable) (float64, bool) {
	switch claim.Kind {
	case domain.ClaimCount:
		if truth.IsEmpty() {
			return 0, false
		}
		return float64(truth.RowCount), true

	case domain.ClaimPercentage:
		return categoricalShare(claim.Subject, truth)

	default:
		stats, ok := g.resolveColumn(claim.Subject, truth)
		if !ok || stats.Type != domain.ColumnNumeric {
			return 0, false
		}
		switch claim.Kind {
		case domain.ClaimMean:
			return stats.Mean, true
		case domain.ClaimMedian:
			return stats.Median, true
		case domain.ClaimMode:
			return stats.Mode, true
		case domain.ClaimStdDev:
			return stats.StdDev, true
		case domain.ClaimMin:
			return stats.Min, true
		case domain.ClaimMax:
			return stats.Max, true
		}
		return 0, false
	}
}

// resolveColumn matches the claim subject to a column. A claim without
// a subject still grounds when the table has exactly one numeric
// column; a claim naming an unknown column is not judged.
func (g *GuardrailValidator) resolveColumn(subject string, truth domain.GroundTruthTable) (domain.ColumnStats, bool) {
	if subject != "" {
		return truth.Column(subject)
	}

	var numeric []domain.ColumnStats
	for _, stats := range truth.Stats {
		if stats.Type == domain.ColumnNumeric {
			numeric = append(numeric, stats)
		}
	}
	if len(numeric) == 1 {
		return numeric[0], true
	}
	return domain.ColumnStats{}, false
}

// withinTolerance applies the absolute tolerance to counts and the
// relative tolerance to everything else.
func (g *GuardrailValidator) withinTolerance(claim domain.NumericClaim, truthValue float64) bool {
	diff := math.Abs(claim.Value - truthValue)

	if claim.Kind == domain.ClaimCount {
		return diff <= g.settings.CountTolerance
	}

	if truthValue == 0 {
		return diff <= g.settings.RelativeTolerance
	}
	return diff <= g.settings.RelativeTolerance*math.Abs(truthValue)
}

// categoricalShare resolves a percentage claim subject against the
// distinct values of categorical columns.
func categoricalShare(subject string, truth domain.GroundTruthTable) (float64, bool) {
	if subject == "" || truth.RowCount == 0 {
		return 0, false
	}
	for _, stats := range truth.Stats {
		if stats.Type != domain.ColumnCategorical {
			continue
		}
		for value, count := range stats.DistinctValues {
			if strings.EqualFold(value, subject) {
				return 100 * float64(count) / float64(truth.RowCount), true
			}
		}
	}
	return 0, false
}

func statKind(word string) (domain.ClaimKind, bool) {
	normalized := strings.ToLower(strings.TrimSpace(word))
	if strings.HasPrefix(normalized, "std") {
		return domain.ClaimStdDev, true
	}
	kind, ok := statKinds[normalized]
	return kind, ok
}

func parseClaimNumber(s string) (float64, error) {
	return tabular.ParseNumber(strings.ReplaceAll(s, ",", ""))
}

// roundScore quantises the confidence score to three decimals so that
// repeated penalty subtraction lands exactly on the threshold values
// users configure.
func roundScore(score float64) float64 {
	return math.Round(score*1000) / 1000
}

// subjectStopwords are filler words the loose subject capture can pick
// up; they never name a column.
var subjectStopwords = map[string]bool{
	"is": true, "was": true, "equals": true, "the": true,
	"value": true, "column": true, "of": true, "a": true, "an": true,
}

func cleanSubject(subject string) string {
	if subjectStopwords[strings.ToLower(subject)] {
		return ""
	}
	return subject
}

func claimSubject(claim domain.NumericClaim) string {
	if claim.Subject == "" {
		return "dataset"
	}
	return claim.Subject
}
