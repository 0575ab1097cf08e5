package model

import (
	"errors"
	"finchat/platform"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Provider identifiers accepted by the settings endpoint.
const (
	ProviderOpenAI    = "openai"
	ProviderAzure     = "azure"
	ProviderAnthropic = "anthropic"
)

// Data-source tags. These are the only values that may ever appear in a
// message's data_sources column (plus the "web" fallback tag).
const (
	SourceTransactions = "transactions"
	SourceBudgets      = "budgets"
	SourceGoals        = "goals"
	SourceSubscriptions = "subscriptions"
	SourceCreditCards  = "creditCards"
	SourceTaxData      = "taxData"
	SourceIncome       = "income"
	SourceForecasts    = "forecasts"
	SourceWeb          = "web"
)

// AllSources lists the financial data-source tags in routing order.
var AllSources = []string{
	SourceTransactions, SourceBudgets, SourceGoals, SourceSubscriptions,
	SourceCreditCards, SourceTaxData, SourceIncome, SourceForecasts,
}

// AISettings holds the per-user assistant configuration. APIKeyCipher is the
// AES-sealed provider key; APIKeyMask is the only representation read paths
// may expose.
type AISettings struct {
	ID     uint `gorm:"primaryKey;autoIncrement" json:"-"`
	UserId uint `gorm:"uniqueIndex" json:"user_id"`

	AIEnabled     bool    `gorm:"default:false" json:"ai_enabled"`
	Provider      string  `gorm:"type:varchar(32)" json:"provider"`
	ModelEndpoint string  `gorm:"type:varchar(512)" json:"model_endpoint"`
	ModelName     string  `gorm:"type:varchar(255)" json:"model_name"`
	Temperature   float64 `json:"temperature"`
	MaxTokens     int     `json:"max_tokens"`

	EnableCrag              bool    `gorm:"default:true" json:"enable_crag"`
	RelevanceThreshold      float64 `json:"relevance_threshold"`
	MaxRetrievalDocs        int     `json:"max_retrieval_docs"`
	EnableWebSearchFallback bool    `gorm:"default:false" json:"enable_web_search_fallback"`

	AllowTransactions  bool `gorm:"default:true" json:"allow_transactions"`
	AllowBudgets       bool `gorm:"default:true" json:"allow_budgets"`
	AllowGoals         bool `gorm:"default:true" json:"allow_goals"`
	AllowSubscriptions bool `gorm:"default:true" json:"allow_subscriptions"`
	AllowCreditCards   bool `gorm:"default:true" json:"allow_credit_cards"`
	AllowTaxData       bool `gorm:"default:true" json:"allow_tax_data"`
	AllowIncome        bool `gorm:"default:true" json:"allow_income"`
	AllowForecasts     bool `gorm:"default:true" json:"allow_forecasts"`

	AnonymizeVendors   bool   `gorm:"default:false" json:"anonymize_vendors"`
	ExcludedCategories string `gorm:"type:varchar(512)" json:"excluded_categories"`

	APIKeyCipher string `gorm:"type:text" json:"-"`
	APIKeyMask   string `gorm:"type:varchar(16)" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultAISettings returns the row written on first read for a user.
func DefaultAISettings(userID uint) *AISettings {
	return &AISettings{
		UserId:             userID,
		AIEnabled:          false,
		Provider:           ProviderOpenAI,
		Temperature:        0.7,
		MaxTokens:          2048,
		EnableCrag:         true,
		RelevanceThreshold: 0.6,
		MaxRetrievalDocs:   20,
		AllowTransactions:  true,
		AllowBudgets:       true,
		AllowGoals:         true,
		AllowSubscriptions: true,
		AllowCreditCards:   true,
		AllowTaxData:       true,
		AllowIncome:        true,
		AllowForecasts:     true,
	}
}

// SourceAllowed reports whether the dataAccess flag for a source tag is set.
func (s *AISettings) SourceAllowed(source string) bool {
	switch source {
	case SourceTransactions:
		return s.AllowTransactions
	case SourceBudgets:
		return s.AllowBudgets
	case SourceGoals:
		return s.AllowGoals
	case SourceSubscriptions:
		return s.AllowSubscriptions
	case SourceCreditCards:
		return s.AllowCreditCards
	case SourceTaxData:
		return s.AllowTaxData
	case SourceIncome:
		return s.AllowIncome
	case SourceForecasts:
		return s.AllowForecasts
	}
	return false
}

// ExcludedCategorySet parses the comma-separated excluded category list.
func (s *AISettings) ExcludedCategorySet() map[string]bool {
	set := map[string]bool{}
	for _, c := range strings.Split(s.ExcludedCategories, ",") {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			set[c] = true
		}
	}
	return set
}

// GetAISettings loads the user's settings, falling back to defaults when no
// row exists yet. The defaults are not persisted on read.
func GetAISettings(userID uint) (*AISettings, error) {
	var settings AISettings
	err := platform.DB.Where("user_id = ?", userID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultAISettings(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return &settings, nil
}

// SaveAISettings upserts the settings row keyed by user id.
func SaveAISettings(settings *AISettings) error {
	var existing AISettings
	err := platform.DB.Where("user_id = ?", settings.UserId).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := platform.DB.Create(settings).Error; err != nil {
			return fmt.Errorf("failed to create settings: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("database query failed: %w", err)
	}
	settings.ID = existing.ID
	settings.CreatedAt = existing.CreatedAt
	if err := platform.DB.Save(settings).Error; err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
