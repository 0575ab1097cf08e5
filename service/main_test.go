package service

import (
	"context"
	"finchat/model"
	"finchat/platform"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testEncKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func setupTestDB(t *testing.T) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Conversation{},
		&model.Message{},
		&model.AISettings{},
		&model.Transaction{},
		&model.Budget{},
		&model.Goal{},
		&model.Subscription{},
		&model.CreditCard{},
		&model.TaxDeduction{},
		&model.Income{},
	))
	platform.DB = db
}

func newTestSealer(t *testing.T) *platform.KeySealer {
	t.Helper()
	sealer, err := platform.NewKeySealer(testEncKey)
	require.NoError(t, err)
	return sealer
}

// seedSettings writes a fully configured, enabled settings row.
func seedSettings(t *testing.T, sealer *platform.KeySealer, userID uint, mutate func(*model.AISettings)) *model.AISettings {
	t.Helper()
	settings := model.DefaultAISettings(userID)
	settings.AIEnabled = true
	settings.Provider = model.ProviderOpenAI
	settings.ModelEndpoint = "https://api.example.com/v1"
	settings.ModelName = "gpt-4o-mini"
	cipher, err := sealer.Seal("sk-test-key")
	require.NoError(t, err)
	settings.APIKeyCipher = cipher
	settings.APIKeyMask = platform.MaskKey("sk-test-key")
	if mutate != nil {
		mutate(settings)
	}
	require.NoError(t, model.SaveAISettings(settings))
	return settings
}

func seedTransactions(t *testing.T, userID uint) {
	t.Helper()
	now := time.Now()
	txns := []model.Transaction{
		{UserId: userID, Vendor: "Green Grocer", Category: "food", Amount: 52.10, OccurredAt: now.AddDate(0, 0, -2)},
		{UserId: userID, Vendor: "Corner Cafe", Category: "food", Amount: 18.40, OccurredAt: now.AddDate(0, 0, -5)},
		{UserId: userID, Vendor: "City Transit", Category: "transport", Amount: 60.00, OccurredAt: now.AddDate(0, 0, -9)},
	}
	for i := range txns {
		require.NoError(t, platform.DB.Create(&txns[i]).Error)
	}
}

// fakeProvider satisfies Provider for orchestrator tests.
type fakeProvider struct {
	reply     string
	tokens    int
	chunks    []string
	invokeErr error
	streamErr error
	calls     int
}

func (f *fakeProvider) Invoke(ctx context.Context, messages []ChatMessage) (*Invocation, error) {
	f.calls++
	if f.invokeErr != nil {
		return nil, f.invokeErr
	}
	return &Invocation{Content: f.reply, TokensUsed: f.tokens}, nil
}

func (f *fakeProvider) Stream(ctx context.Context, messages []ChatMessage, onChunk func(string)) (*Invocation, error) {
	f.calls++
	for _, chunk := range f.chunks {
		onChunk(chunk)
	}
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return &Invocation{Content: f.reply, TokensUsed: f.tokens}, nil
}

func newTestChatService(t *testing.T, provider Provider) *ChatService {
	t.Helper()
	sealer := newTestSealer(t)
	svc := NewChatService(NewSettingsService(sealer))
	svc.NewProvider = func(cfg *ProviderConfig) (Provider, error) {
		return provider, nil
	}
	svc.TurnTimeout = 5 * time.Second
	return svc
}
