package model

import "finchat/platform"

func InstallDB() {
	db := platform.DB
	if err := db.AutoMigrate(
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
		&Income{}); err != nil {
		panic(err)
	}
}
