package service

import (
	"testing"
	"time"

	"finchat/model"
	"finchat/platform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchDisabledSourceReturnsNothing(t *testing.T) {
	setupTestDB(t)
	seedTransactions(t, 1)

	settings := model.DefaultAISettings(1)
	settings.AllowTransactions = false

	accessors := &AccessorService{}
	docs := accessors.Fetch(1, model.SourceTransactions, settings, 10)
	assert.Empty(t, docs)
}

func TestFetchAnonymizesVendors(t *testing.T) {
	setupTestDB(t)
	seedTransactions(t, 1)

	settings := model.DefaultAISettings(1)
	settings.AnonymizeVendors = true

	accessors := &AccessorService{}
	docs := accessors.Fetch(1, model.SourceTransactions, settings, 10)
	require.NotEmpty(t, docs)
	for _, doc := range docs {
		assert.NotContains(t, doc.Content, "Green Grocer")
		assert.NotContains(t, doc.Content, "Corner Cafe")
	}
}

func TestFetchExcludesSensitiveCategories(t *testing.T) {
	setupTestDB(t)
	seedTransactions(t, 1)

	settings := model.DefaultAISettings(1)
	settings.ExcludedCategories = "food"

	accessors := &AccessorService{}
	docs := accessors.Fetch(1, model.SourceTransactions, settings, 10)
	for _, doc := range docs {
		assert.NotContains(t, doc.Content, "food")
	}
}

func TestFetchScopedToOwner(t *testing.T) {
	setupTestDB(t)
	seedTransactions(t, 1)

	settings := model.DefaultAISettings(2)
	accessors := &AccessorService{}
	docs := accessors.Fetch(2, model.SourceTransactions, settings, 10)
	assert.Empty(t, docs)
}

func TestBudgetDocsCarryUtilization(t *testing.T) {
	setupTestDB(t)
	require.NoError(t, platform.DB.Create(&model.Budget{
		UserId: 1, Category: "food", MonthlyLimit: 200, Spent: 150, Active: true,
	}).Error)

	settings := model.DefaultAISettings(1)
	accessors := &AccessorService{}
	docs := accessors.Fetch(1, model.SourceBudgets, settings, 10)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Content, "75% utilization")
}

func TestForecastDocsUseTrailingAverage(t *testing.T) {
	setupTestDB(t)
	now := time.Now()
	for m := 0; m < 3; m++ {
		require.NoError(t, platform.DB.Create(&model.Transaction{
			UserId: 1, Vendor: "Green Grocer", Category: "food", Amount: 90,
			OccurredAt: now.AddDate(0, 0, -10*(m+1)),
		}).Error)
	}

	settings := model.DefaultAISettings(1)
	accessors := &AccessorService{}
	docs := accessors.Fetch(1, model.SourceForecasts, settings, 10)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Content, "food: 90.00")
}

func TestTaxDocsAggregateByReliefCategory(t *testing.T) {
	setupTestDB(t)
	year := time.Now().Year()
	for _, d := range []model.TaxDeduction{
		{UserId: 1, ReliefCategory: "education", Amount: 1200, Year: year},
		{UserId: 1, ReliefCategory: "medical", Amount: 800, Year: year},
	} {
		dd := d
		require.NoError(t, platform.DB.Create(&dd).Error)
	}

	settings := model.DefaultAISettings(1)
	accessors := &AccessorService{}
	docs := accessors.Fetch(1, model.SourceTaxData, settings, 10)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Content, "education: 1200.00")
	assert.Contains(t, docs[0].Content, "Total claimed: 2000.00")
}
