package model

import (
	"finchat/platform"
	"fmt"
	"time"
)

// Financial read models. The CRUD screens maintaining these tables live in a
// separate web layer; the assistant only reads them.

type Transaction struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserId     uint      `gorm:"index:idx_txn_user_occurred" json:"user_id"`
	Vendor     string    `gorm:"type:varchar(255)" json:"vendor"`
	Category   string    `gorm:"type:varchar(128)" json:"category"`
	Amount     float64   `json:"amount"`
	OccurredAt time.Time `gorm:"index:idx_txn_user_occurred" json:"occurred_at"`
	Notes      string    `gorm:"type:text" json:"notes"`
}

type Budget struct {
	ID           uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserId       uint    `gorm:"index" json:"user_id"`
	Category     string  `gorm:"type:varchar(128)" json:"category"`
	MonthlyLimit float64 `json:"monthly_limit"`
	Spent        float64 `json:"spent"`
	Active       bool    `gorm:"default:true" json:"active"`
}

type Goal struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserId       uint      `gorm:"index" json:"user_id"`
	Name         string    `gorm:"type:varchar(255)" json:"name"`
	TargetAmount float64   `json:"target_amount"`
	SavedAmount  float64   `json:"saved_amount"`
	TargetDate   time.Time `json:"target_date"`
}

type Subscription struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserId      uint      `gorm:"index" json:"user_id"`
	Vendor      string    `gorm:"type:varchar(255)" json:"vendor"`
	Category    string    `gorm:"type:varchar(128)" json:"category"`
	MonthlyCost float64   `json:"monthly_cost"`
	NextDueDate time.Time `json:"next_due_date"`
	Active      bool      `gorm:"default:true" json:"active"`
}

type CreditCard struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserId      uint      `gorm:"index" json:"user_id"`
	Name        string    `gorm:"type:varchar(255)" json:"name"`
	CreditLimit float64   `json:"credit_limit"`
	Balance     float64   `json:"balance"`
	DueDate     time.Time `json:"due_date"`
}

type TaxDeduction struct {
	ID             uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserId         uint    `gorm:"index" json:"user_id"`
	ReliefCategory string  `gorm:"type:varchar(128)" json:"relief_category"`
	Amount         float64 `json:"amount"`
	Year           int     `json:"year"`
}

type Income struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserId     uint      `gorm:"index" json:"user_id"`
	Source     string    `gorm:"type:varchar(255)" json:"source"`
	Amount     float64   `json:"amount"`
	ReceivedAt time.Time `json:"received_at"`
}

// CategoryTotal is an aggregate row used by the forecast accessor.
type CategoryTotal struct {
	Category string
	Total    float64
}

func RecentTransactions(userID uint, since time.Time, limit int) ([]Transaction, error) {
	var txns []Transaction
	err := platform.DB.Where("user_id = ? AND occurred_at >= ?", userID, since).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	return txns, nil
}

func SpendingByCategory(userID uint, since time.Time) ([]CategoryTotal, error) {
	var totals []CategoryTotal
	err := platform.DB.Model(&Transaction{}).
		Select("category, SUM(amount) AS total").
		Where("user_id = ? AND occurred_at >= ?", userID, since).
		Group("category").
		Order("total DESC").
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate spending: %w", err)
	}
	return totals, nil
}

func ActiveBudgets(userID uint) ([]Budget, error) {
	var budgets []Budget
	err := platform.DB.Where("user_id = ? AND active = ?", userID, true).
		Order("category ASC").
		Find(&budgets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch budgets: %w", err)
	}
	return budgets, nil
}

func OpenGoals(userID uint) ([]Goal, error) {
	var goals []Goal
	err := platform.DB.Where("user_id = ?", userID).
		Order("target_date ASC").
		Find(&goals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch goals: %w", err)
	}
	return goals, nil
}

func ActiveSubscriptions(userID uint) ([]Subscription, error) {
	var subs []Subscription
	err := platform.DB.Where("user_id = ? AND active = ?", userID, true).
		Order("next_due_date ASC").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions: %w", err)
	}
	return subs, nil
}

func UserCreditCards(userID uint) ([]CreditCard, error) {
	var cards []CreditCard
	err := platform.DB.Where("user_id = ?", userID).
		Order("due_date ASC").
		Find(&cards).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch credit cards: %w", err)
	}
	return cards, nil
}

func TaxDeductionsForYear(userID uint, year int) ([]TaxDeduction, error) {
	var deductions []TaxDeduction
	err := platform.DB.Where("user_id = ? AND year = ?", userID, year).
		Order("relief_category ASC").
		Find(&deductions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tax deductions: %w", err)
	}
	return deductions, nil
}

func RecentIncome(userID uint, since time.Time) ([]Income, error) {
	var entries []Income
	err := platform.DB.Where("user_id = ? AND received_at >= ?", userID, since).
		Order("received_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch income: %w", err)
	}
	return entries, nil
}
