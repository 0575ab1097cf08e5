package service

import (
	"testing"

	"finchat/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteSources(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"spending query", "How much did I spend on food this month?", []string{model.SourceTransactions}},
		{"budget query", "Am I over budget?", []string{model.SourceBudgets}},
		{"tax query", "What tax deductions am I missing?", []string{model.SourceTaxData}},
		{"mixed query", "Will my food spending break the budget?", []string{model.SourceTransactions, model.SourceBudgets}},
		{"card query", "When is my credit card payment due?", []string{model.SourceCreditCards}},
		{"no match falls back to all", "Tell me something interesting", model.AllSources},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, routeSources(tt.query))
		})
	}
}

func TestQueryTerms(t *testing.T) {
	assert.Equal(t, []string{"how", "much", "did", "i", "spend"}, queryTerms("How much did I spend?"))
	assert.Empty(t, queryTerms("!!!"))
}

func TestRetrieveRespectsDataAccessFlags(t *testing.T) {
	setupTestDB(t)
	seedTransactions(t, 1)

	settings := model.DefaultAISettings(1)
	settings.AllowTransactions = false
	settings.AllowBudgets = false

	retriever := NewRetrieverService()
	result := retriever.Retrieve(1, "how much did I spend on food", settings)

	assert.NotContains(t, result.QueriedSources, model.SourceTransactions)
	for _, doc := range result.Documents {
		assert.NotEqual(t, model.SourceTransactions, doc.Source)
	}
}

func TestRetrieveAllSourcesDisabled(t *testing.T) {
	setupTestDB(t)

	settings := model.DefaultAISettings(1)
	settings.AllowTransactions = false
	settings.AllowBudgets = false
	settings.AllowGoals = false
	settings.AllowSubscriptions = false
	settings.AllowCreditCards = false
	settings.AllowTaxData = false
	settings.AllowIncome = false
	settings.AllowForecasts = false

	retriever := NewRetrieverService()
	result := retriever.Retrieve(1, "how much did I spend", settings)
	assert.True(t, result.Empty)
	assert.Empty(t, result.Documents)
}

func TestRetrieveBoundsTotalDocuments(t *testing.T) {
	setupTestDB(t)
	for i := 0; i < 30; i++ {
		seedTransactions(t, 1)
	}

	settings := model.DefaultAISettings(1)
	settings.MaxRetrievalDocs = 5

	retriever := NewRetrieverService()
	result := retriever.Retrieve(1, "how much did I spend on food", settings)
	require.False(t, result.Empty)
	assert.LessOrEqual(t, len(result.Documents), 5)
}

func TestRetrieveEmptyWhenNoData(t *testing.T) {
	setupTestDB(t)

	settings := model.DefaultAISettings(1)
	retriever := NewRetrieverService()
	result := retriever.Retrieve(1, "how much did I spend on food", settings)
	assert.True(t, result.Empty)
	assert.Contains(t, result.QueriedSources, model.SourceTransactions)
}
