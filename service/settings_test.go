package service

import (
	"encoding/json"
	"testing"

	"finchat/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestUpsertSealsAndMasksAPIKey(t *testing.T) {
	setupTestDB(t)
	svc := NewSettingsService(newTestSealer(t))

	view, err := svc.Upsert(1, &SettingsInput{
		Provider:           model.ProviderOpenAI,
		ModelEndpoint:      "https://api.example.com/v1",
		ModelName:          "gpt-4o-mini",
		Temperature:        0.7,
		MaxTokens:          2048,
		RelevanceThreshold: 0.6,
		APIKey:             strPtr("sk-super-secret-value-1234"),
	})
	require.NoError(t, err)

	assert.True(t, view.HasAPIKey)
	assert.Equal(t, "****1234", view.MaskedAPIKey)

	// The plaintext key never appears anywhere in the serialized view.
	raw, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk-super-secret-value-1234")

	// And the stored row only holds ciphertext.
	stored, err := model.GetAISettings(1)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.APIKeyCipher)
	assert.NotContains(t, stored.APIKeyCipher, "sk-super-secret-value-1234")
}

func TestUpsertOmittedKeyLeavesStoredKey(t *testing.T) {
	setupTestDB(t)
	svc := NewSettingsService(newTestSealer(t))

	_, err := svc.Upsert(1, &SettingsInput{
		Provider:      model.ProviderOpenAI,
		ModelEndpoint: "https://api.example.com/v1",
		ModelName:     "gpt-4o-mini",
		APIKey:        strPtr("sk-original-key-abcd"),
	})
	require.NoError(t, err)

	view, err := svc.Upsert(1, &SettingsInput{
		Provider:      model.ProviderAzure,
		ModelEndpoint: "https://example.azure.com",
		ModelName:     "gpt-4o",
	})
	require.NoError(t, err)

	assert.True(t, view.HasAPIKey)
	assert.Equal(t, "****abcd", view.MaskedAPIKey)

	stored, err := model.GetAISettings(1)
	require.NoError(t, err)
	cfg, err := svc.ProviderConfig(stored)
	require.NoError(t, err)
	assert.Equal(t, "sk-original-key-abcd", cfg.APIKey)
	assert.Equal(t, model.ProviderAzure, cfg.Provider)
}

func TestUpsertClampsAndSnaps(t *testing.T) {
	setupTestDB(t)
	svc := NewSettingsService(newTestSealer(t))

	view, err := svc.Upsert(1, &SettingsInput{
		Provider:           model.ProviderOpenAI,
		Temperature:        3.5,
		MaxTokens:          3000,
		RelevanceThreshold: 0.1,
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, view.Temperature)
	assert.Equal(t, 2048, view.MaxTokens)
	assert.Equal(t, 0.5, view.RelevanceThreshold)
}

func TestUpsertRejectsUnknownProvider(t *testing.T) {
	setupTestDB(t)
	svc := NewSettingsService(newTestSealer(t))

	_, err := svc.Upsert(1, &SettingsInput{Provider: "mystery"})
	assert.Error(t, err)
}

func TestUpsertDataAccessDefaultsToExisting(t *testing.T) {
	setupTestDB(t)
	svc := NewSettingsService(newTestSealer(t))

	_, err := svc.Upsert(1, &SettingsInput{
		Provider:   model.ProviderOpenAI,
		DataAccess: map[string]bool{model.SourceTaxData: false},
	})
	require.NoError(t, err)

	view, err := svc.Get(1)
	require.NoError(t, err)
	assert.False(t, view.DataAccess[model.SourceTaxData])
	assert.True(t, view.DataAccess[model.SourceTransactions])
}

func TestGetReturnsDefaultsForNewUser(t *testing.T) {
	setupTestDB(t)
	svc := NewSettingsService(newTestSealer(t))

	view, err := svc.Get(42)
	require.NoError(t, err)
	assert.False(t, view.AIEnabled)
	assert.False(t, view.HasAPIKey)
	assert.Equal(t, "", view.MaskedAPIKey)
	assert.True(t, view.DataAccess[model.SourceBudgets])
}

func TestProviderConfigWithoutKey(t *testing.T) {
	setupTestDB(t)
	svc := NewSettingsService(newTestSealer(t))

	_, err := svc.ProviderConfig(model.DefaultAISettings(1))
	assert.ErrorIs(t, err, ErrNotConfigured)
}
