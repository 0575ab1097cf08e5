package model

import (
	"fmt"
	"testing"

	"finchat/platform"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&User{},
		&Conversation{},
		&Message{},
		&AISettings{},
		&Transaction{},
		&Budget{},
		&Goal{},
		&Subscription{},
		&CreditCard{},
		&TaxDeduction{},
		&Income{},
	))
	platform.DB = db
}

func intPtr(v int) *int { return &v }
