package service

import (
	"testing"

	"finchat/model"

	"github.com/stretchr/testify/assert"
)

func docWith(source string, keywords ...string) Document {
	return Document{Source: source, Title: "t", Content: "c", Keywords: keywords}
}

func TestGradeScoresAndSorts(t *testing.T) {
	grader := &GraderService{}

	docs := []Document{
		docWith(model.SourceGoals, "goal", "saving"),
		docWith(model.SourceTransactions, "spend", "spent", "food", "transaction"),
		docWith(model.SourceBudgets, "budget", "food", "limit"),
	}

	result := grader.Grade("how much did I spend on food", docs)
	assert.NotEmpty(t, result.Documents)

	// The transaction document matches both meaningful terms.
	assert.Equal(t, model.SourceTransactions, result.Documents[0].Source)
	assert.InDelta(t, 1.0, result.Documents[0].Score, 1e-9)
	assert.Greater(t, result.Confidence, 0.0)
}

func TestGradeDeterministic(t *testing.T) {
	grader := &GraderService{}
	docs := []Document{
		docWith(model.SourceBudgets, "budget", "food"),
		docWith(model.SourceTransactions, "spent", "food"),
	}

	first := grader.Grade("food spending this month", docs)
	second := grader.Grade("food spending this month", docs)
	assert.Equal(t, first, second)
}

func TestGradeStableTieOrder(t *testing.T) {
	grader := &GraderService{}
	// Both documents match exactly the same terms: retriever order must hold.
	docs := []Document{
		docWith(model.SourceTransactions, "food"),
		docWith(model.SourceBudgets, "food"),
	}

	result := grader.Grade("food", docs)
	assert.Equal(t, model.SourceTransactions, result.Documents[0].Source)
	assert.Equal(t, model.SourceBudgets, result.Documents[1].Source)
	assert.Equal(t, result.Documents[0].Score, result.Documents[1].Score)
}

func TestGradeKeepsTopDocsWhenNonePass(t *testing.T) {
	grader := &GraderService{}
	var docs []Document
	for i := 0; i < 6; i++ {
		docs = append(docs, docWith(model.SourceIncome, "salary"))
	}

	result := grader.Grade("completely unrelated question about weather", docs)
	assert.Len(t, result.Documents, FallbackTopDocs)
	assert.Equal(t, 0.0, result.Confidence)
}

func TestGradeEmptyDocs(t *testing.T) {
	grader := &GraderService{}
	result := grader.Grade("anything", nil)
	assert.Empty(t, result.Documents)
	assert.Equal(t, 0.0, result.Confidence)
}

func TestAggregateConfidenceTopK(t *testing.T) {
	docs := []Document{
		{Score: 0.9}, {Score: 0.6}, {Score: 0.3}, {Score: 0.0},
	}
	assert.InDelta(t, 0.6, aggregateConfidence(docs), 1e-9)
}

func TestRewriteQuery(t *testing.T) {
	grader := &GraderService{}

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"synonym expansion", "what did I buy at restaurants", "spend purchase food spending"},
		{"stopwords dropped", "how much is my budget", "budget"},
		{"plain terms kept", "tax deductions", "tax deductions"},
		{"all stopwords", "is it a", "is it a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, grader.RewriteQuery(tt.query))
		})
	}
}

func TestRewriteQueryDeterministic(t *testing.T) {
	grader := &GraderService{}
	q := "can I afford more dining out"
	assert.Equal(t, grader.RewriteQuery(q), grader.RewriteQuery(q))
}
