package services

import (
	"sort"
	"strings"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
	"github.com/custodia-labs/tabletalk-cli/internal/logger"
)

// QueryContext is the short-term context the classifier sees.
type QueryContext struct {
	// DatasetLoaded is true when a dataset is available for the session.
	DatasetLoaded bool

	// LastIntent is the previous turn's primary intent, IntentUnknown
	// for the first turn.
	LastIntent domain.Intent
}

// Classification is the classifier's output.
type Classification struct {
	// Primary is the winning intent.
	Primary domain.Intent

	// Secondary ranks the remaining scored intents, best first.
	Secondary []domain.Intent
}

// Classifier maps a raw query and short-term context to an intent.
// It is a deterministic, stateless scoring function over externalised
// keyword sets: no learning, no external call.
type Classifier struct {
	settings domain.ClassifierSettings
}

// NewClassifier creates a classifier with the given keyword sets.
// Empty keyword sets fall back to the compiled-in defaults.
func NewClassifier(settings domain.ClassifierSettings) *Classifier {
	defaults := domain.DefaultConfig().Classifier
	if len(settings.StatisticalKeywords) == 0 {
		settings.StatisticalKeywords = defaults.StatisticalKeywords
	}
	if len(settings.SearchKeywords) == 0 {
		settings.SearchKeywords = defaults.SearchKeywords
	}
	if len(settings.LoadingKeywords) == 0 {
		settings.LoadingKeywords = defaults.LoadingKeywords
	}
	if len(settings.ChatKeywords) == 0 {
		settings.ChatKeywords = defaults.ChatKeywords
	}
	if settings.LoadedBonus <= 0 {
		settings.LoadedBonus = defaults.LoadedBonus
	}
	if settings.HybridMargin <= 0 {
		settings.HybridMargin = defaults.HybridMargin
	}
	return &Classifier{settings: settings}
}

// scoredIntent pairs an intent with its keyword score.
type scoredIntent struct {
	intent domain.Intent
	score  float64
}

// Classify scores each intent by weighted keyword overlap and returns
// the primary intent plus the ranked remainder.
func (c *Classifier) Classify(query string, qctx QueryContext) Classification {
	lower := strings.ToLower(query)

	scores := []scoredIntent{
		{domain.IntentStatisticalAnalysis, keywordScore(lower, c.settings.StatisticalKeywords)},
		{domain.IntentSemanticSearch, keywordScore(lower, c.settings.SearchKeywords)},
		{domain.IntentDataLoading, keywordScore(lower, c.settings.LoadingKeywords)},
		{domain.IntentGeneralChat, keywordScore(lower, c.settings.ChatKeywords)},
	}

	// A loaded dataset makes data questions more likely.
	if qctx.DatasetLoaded {
		for i := range scores {
			if scores[i].intent.NeedsData() && scores[i].score > 0 {
				scores[i].score += c.settings.LoadedBonus
			}
		}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	best, second := scores[0], scores[1]

	logger.Debug("Classifier: best=%s (%.2f), second=%s (%.2f)",
		best.intent, best.score, second.intent, second.score)

	// Nothing scored: fall back on context.
	if best.score == 0 {
		if qctx.DatasetLoaded {
			return c.result(domain.IntentStatisticalAnalysis, scores)
		}
		return c.result(domain.IntentGeneralChat, scores)
	}

	// Two data intents within the margin of each other make the query
	// hybrid.
	if best.intent != domain.IntentGeneralChat && second.intent != domain.IntentGeneralChat &&
		best.intent.NeedsData() && second.intent.NeedsData() &&
		second.score > 0 && best.score-second.score <= c.settings.HybridMargin {
		return c.result(domain.IntentHybrid, scores)
	}

	// Exact tie between the leaders defaults by context.
	if best.score == second.score {
		if qctx.DatasetLoaded {
			return c.result(domain.IntentStatisticalAnalysis, scores)
		}
		return c.result(domain.IntentGeneralChat, scores)
	}

	return c.result(best.intent, scores)
}

// result assembles the classification, ranking every other intent that
// scored above zero as a secondary candidate.
func (c *Classifier) result(primary domain.Intent, scores []scoredIntent) Classification {
	classification := Classification{Primary: primary}
	for _, s := range scores {
		if s.intent == primary || s.score == 0 {
			continue
		}
		classification.Secondary = append(classification.Secondary, s.intent)
	}
	return classification
}

// keywordScore counts keyword hits, weighting multi-word keywords
// higher since they are stronger signals.
func keywordScore(query string, keywords []string) float64 {
	score := 0.0
	for _, keyword := range keywords {
		if !strings.Contains(query, keyword) {
			continue
		}
		if strings.Contains(keyword, " ") {
			score += 1.5
		} else {
			score += 1.0
		}
	}
	return score
}
