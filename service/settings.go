package service

import (
	"context"
	"finchat/model"
	"finchat/platform"
	"fmt"
	"time"
)

// SettingsView is the read shape of AI settings: the key itself never leaves
// the store, only a mask and a presence flag.
type SettingsView struct {
	AIEnabled               bool     `json:"ai_enabled"`
	Provider                string   `json:"provider"`
	ModelEndpoint           string   `json:"model_endpoint"`
	ModelName               string   `json:"model_name"`
	Temperature             float64  `json:"temperature"`
	MaxTokens               int      `json:"max_tokens"`
	EnableCrag              bool     `json:"enable_crag"`
	RelevanceThreshold      float64  `json:"relevance_threshold"`
	MaxRetrievalDocs        int      `json:"max_retrieval_docs"`
	EnableWebSearchFallback bool     `json:"enable_web_search_fallback"`
	DataAccess              map[string]bool `json:"data_access"`
	AnonymizeVendors        bool     `json:"anonymize_vendors"`
	ExcludedCategories      string   `json:"excluded_categories"`
	HasAPIKey               bool     `json:"has_api_key"`
	MaskedAPIKey            string   `json:"masked_api_key"`
}

// SettingsInput is the upsert payload. A nil APIKey leaves the stored key
// untouched; a non-nil one triggers re-encryption.
type SettingsInput struct {
	AIEnabled               bool            `json:"ai_enabled"`
	Provider                string          `json:"provider" binding:"required"`
	ModelEndpoint           string          `json:"model_endpoint"`
	ModelName               string          `json:"model_name"`
	Temperature             float64         `json:"temperature"`
	MaxTokens               int             `json:"max_tokens"`
	EnableCrag              bool            `json:"enable_crag"`
	RelevanceThreshold      float64         `json:"relevance_threshold"`
	MaxRetrievalDocs        int             `json:"max_retrieval_docs"`
	EnableWebSearchFallback bool            `json:"enable_web_search_fallback"`
	DataAccess              map[string]bool `json:"data_access"`
	AnonymizeVendors        bool            `json:"anonymize_vendors"`
	ExcludedCategories      string          `json:"excluded_categories"`
	APIKey                  *string         `json:"api_key"`
}

// MaxTokensTiers are the accepted maxTokens values; anything else snaps to
// the nearest tier below (or the first tier).
var MaxTokensTiers = []int{1024, 2048, 4096, 8192}

type SettingsService struct {
	Sealer *platform.KeySealer
}

func NewSettingsService(sealer *platform.KeySealer) *SettingsService {
	return &SettingsService{Sealer: sealer}
}

func viewOf(s *model.AISettings) *SettingsView {
	access := make(map[string]bool, len(model.AllSources))
	for _, source := range model.AllSources {
		access[source] = s.SourceAllowed(source)
	}
	return &SettingsView{
		AIEnabled:               s.AIEnabled,
		Provider:                s.Provider,
		ModelEndpoint:           s.ModelEndpoint,
		ModelName:               s.ModelName,
		Temperature:             s.Temperature,
		MaxTokens:               s.MaxTokens,
		EnableCrag:              s.EnableCrag,
		RelevanceThreshold:      s.RelevanceThreshold,
		MaxRetrievalDocs:        s.MaxRetrievalDocs,
		EnableWebSearchFallback: s.EnableWebSearchFallback,
		DataAccess:              access,
		AnonymizeVendors:        s.AnonymizeVendors,
		ExcludedCategories:      s.ExcludedCategories,
		HasAPIKey:               s.APIKeyCipher != "",
		MaskedAPIKey:            s.APIKeyMask,
	}
}

func (s *SettingsService) Get(userID uint) (*SettingsView, error) {
	settings, err := model.GetAISettings(userID)
	if err != nil {
		return nil, err
	}
	return viewOf(settings), nil
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func snapMaxTokens(v int) int {
	snapped := MaxTokensTiers[0]
	for _, tier := range MaxTokensTiers {
		if v >= tier {
			snapped = tier
		}
	}
	return snapped
}

// Upsert validates, clamps and stores the settings. The API key, when
// provided, is sealed before it touches the row.
func (s *SettingsService) Upsert(userID uint, input *SettingsInput) (*SettingsView, error) {
	existing, err := model.GetAISettings(userID)
	if err != nil {
		return nil, err
	}

	switch input.Provider {
	case model.ProviderOpenAI, model.ProviderAzure, model.ProviderAnthropic:
	default:
		return nil, fmt.Errorf("unknown provider %q", input.Provider)
	}

	settings := &model.AISettings{
		UserId:                  userID,
		AIEnabled:               input.AIEnabled,
		Provider:                input.Provider,
		ModelEndpoint:           input.ModelEndpoint,
		ModelName:               input.ModelName,
		Temperature:             clampFloat(input.Temperature, 0.0, 1.0),
		MaxTokens:               snapMaxTokens(input.MaxTokens),
		EnableCrag:              input.EnableCrag,
		RelevanceThreshold:      clampFloat(input.RelevanceThreshold, 0.5, 0.95),
		MaxRetrievalDocs:        input.MaxRetrievalDocs,
		EnableWebSearchFallback: input.EnableWebSearchFallback,
		AnonymizeVendors:        input.AnonymizeVendors,
		ExcludedCategories:      input.ExcludedCategories,
		APIKeyCipher:            existing.APIKeyCipher,
		APIKeyMask:              existing.APIKeyMask,
	}
	if settings.MaxRetrievalDocs <= 0 {
		settings.MaxRetrievalDocs = 20
	}

	setAccess := func(source string, target *bool) {
		if v, ok := input.DataAccess[source]; ok {
			*target = v
		} else {
			*target = existing.SourceAllowed(source)
		}
	}
	setAccess(model.SourceTransactions, &settings.AllowTransactions)
	setAccess(model.SourceBudgets, &settings.AllowBudgets)
	setAccess(model.SourceGoals, &settings.AllowGoals)
	setAccess(model.SourceSubscriptions, &settings.AllowSubscriptions)
	setAccess(model.SourceCreditCards, &settings.AllowCreditCards)
	setAccess(model.SourceTaxData, &settings.AllowTaxData)
	setAccess(model.SourceIncome, &settings.AllowIncome)
	setAccess(model.SourceForecasts, &settings.AllowForecasts)

	if input.APIKey != nil && *input.APIKey != "" {
		cipher, err := s.Sealer.Seal(*input.APIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to seal api key: %w", err)
		}
		settings.APIKeyCipher = cipher
		settings.APIKeyMask = platform.MaskKey(*input.APIKey)
	}

	if err := model.SaveAISettings(settings); err != nil {
		return nil, err
	}
	return viewOf(settings), nil
}

// ProviderConfig decrypts the stored key and assembles the invoker config.
func (s *SettingsService) ProviderConfig(settings *model.AISettings) (*ProviderConfig, error) {
	if settings.APIKeyCipher == "" {
		return nil, ErrNotConfigured
	}
	key, err := s.Sealer.Open(settings.APIKeyCipher)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot decrypt api key", ErrNotConfigured)
	}
	return &ProviderConfig{
		Provider:    settings.Provider,
		Endpoint:    settings.ModelEndpoint,
		Model:       settings.ModelName,
		APIKey:      key,
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
	}, nil
}

// TestConnectionInput is the candidate config probed by the settings screen.
// It never mutates stored settings.
type TestConnectionInput struct {
	Provider      string  `json:"provider" binding:"required"`
	ModelEndpoint string  `json:"model_endpoint" binding:"required"`
	ModelName     string  `json:"model_name" binding:"required"`
	APIKey        *string `json:"api_key"`
}

// TestConnection performs one minimal live call and reports latency. When no
// candidate key is supplied the stored key is used.
func (s *SettingsService) TestConnection(ctx context.Context, userID uint, input *TestConnectionInput, newProvider ProviderFactory) (int64, error) {
	key := ""
	if input.APIKey != nil {
		key = *input.APIKey
	} else {
		settings, err := model.GetAISettings(userID)
		if err != nil {
			return 0, err
		}
		if settings.APIKeyCipher == "" {
			return 0, ErrNotConfigured
		}
		key, err = s.Sealer.Open(settings.APIKeyCipher)
		if err != nil {
			return 0, fmt.Errorf("%w: cannot decrypt api key", ErrNotConfigured)
		}
	}

	provider, err := newProvider(&ProviderConfig{
		Provider:    input.Provider,
		Endpoint:    input.ModelEndpoint,
		Model:       input.ModelName,
		APIKey:      key,
		Temperature: 0,
		MaxTokens:   16,
	})
	if err != nil {
		return 0, err
	}

	start := time.Now()
	_, err = provider.Invoke(ctx, []ChatMessage{{Role: model.RoleUserMsg, Content: "ping"}})
	if err != nil {
		return 0, err
	}
	return time.Since(start).Milliseconds(), nil
}
