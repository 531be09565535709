package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(domain.ClassifierSettings{})

	tests := []struct {
		name  string
		query string
		qctx  QueryContext
		want  domain.Intent
	}{
		{
			name:  "statistical question",
			query: "What is the mean of the amount column?",
			qctx:  QueryContext{DatasetLoaded: true},
			want:  domain.IntentStatisticalAnalysis,
		},
		{
			name:  "search question",
			query: "Find transactions similar to fraud cases",
			qctx:  QueryContext{DatasetLoaded: true},
			want:  domain.IntentSemanticSearch,
		},
		{
			name:  "loading request",
			query: "load the csv file please",
			qctx:  QueryContext{},
			want:  domain.IntentDataLoading,
		},
		{
			name:  "greeting",
			query: "hello, who are you?",
			qctx:  QueryContext{},
			want:  domain.IntentGeneralChat,
		},
		{
			name:  "summary request maps to statistics",
			query: "summarize the data",
			qctx:  QueryContext{DatasetLoaded: true},
			want:  domain.IntentStatisticalAnalysis,
		},
		{
			name:  "no keywords without data",
			query: "tell me something interesting",
			qctx:  QueryContext{},
			want:  domain.IntentGeneralChat,
		},
		{
			name:  "no keywords with data loaded",
			query: "tell me something interesting",
			qctx:  QueryContext{DatasetLoaded: true},
			want:  domain.IntentStatisticalAnalysis,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.query, tt.qctx)
			assert.Equal(t, tt.want, got.Primary)
		})
	}
}

func TestClassifyHybrid(t *testing.T) {
	c := NewClassifier(domain.ClassifierSettings{})

	// Both a statistics keyword and a search keyword, scores within the
	// hybrid margin.
	got := c.Classify("show the average amount", QueryContext{DatasetLoaded: true})
	assert.Equal(t, domain.IntentHybrid, got.Primary)
}

func TestClassifySecondaryRanking(t *testing.T) {
	c := NewClassifier(domain.ClassifierSettings{})

	got := c.Classify("find the mean mean mean", QueryContext{})
	assert.NotEqual(t, domain.IntentUnknown, got.Primary)
	assert.NotEmpty(t, got.Secondary)
}

func TestClassifyDeterministic(t *testing.T) {
	c := NewClassifier(domain.ClassifierSettings{})
	qctx := QueryContext{DatasetLoaded: true}

	first := c.Classify("what is the average amount?", qctx)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Classify("what is the average amount?", qctx))
	}
}
