package service

import (
	"finchat/model"
	"fmt"
	"strings"
	"time"
)

// Document is one retrieved slice of the user's financial records. Documents
// live for a single turn; only the resulting source tags and confidence are
// persisted on the assistant message.
type Document struct {
	Source   string
	Title    string
	Content  string
	Keywords []string
	Score    float64
}

const anonymizedVendor = "a vendor"

// AccessorService turns financial tables into normalized documents. Every
// accessor degrades to an empty result on a data-layer error so a single
// failed source never fails the whole turn.
type AccessorService struct{}

// Fetch returns up to limit documents for one data-source tag. Sources the
// settings disallow return nothing regardless of the query.
func (a *AccessorService) Fetch(userID uint, source string, settings *model.AISettings, limit int) []Document {
	if !settings.SourceAllowed(source) {
		return nil
	}
	if limit <= 0 {
		limit = 5
	}

	var docs []Document
	var err error
	switch source {
	case model.SourceTransactions:
		docs, err = a.transactionDocs(userID, settings, limit)
	case model.SourceBudgets:
		docs, err = a.budgetDocs(userID, settings, limit)
	case model.SourceGoals:
		docs, err = a.goalDocs(userID, limit)
	case model.SourceSubscriptions:
		docs, err = a.subscriptionDocs(userID, settings, limit)
	case model.SourceCreditCards:
		docs, err = a.creditCardDocs(userID, limit)
	case model.SourceTaxData:
		docs, err = a.taxDocs(userID, limit)
	case model.SourceIncome:
		docs, err = a.incomeDocs(userID, limit)
	case model.SourceForecasts:
		docs, err = a.forecastDocs(userID, settings, limit)
	}
	if err != nil {
		logger.Warnf("accessor %s degraded to empty for user %d: %s", source, userID, err)
		return nil
	}
	return docs
}

func (a *AccessorService) vendorLabel(settings *model.AISettings, vendor string) string {
	if settings.AnonymizeVendors {
		return anonymizedVendor
	}
	return vendor
}

func (a *AccessorService) transactionDocs(userID uint, settings *model.AISettings, limit int) ([]Document, error) {
	since := time.Now().AddDate(0, -3, 0)
	excluded := settings.ExcludedCategorySet()

	totals, err := model.SpendingByCategory(userID, time.Now().AddDate(0, -1, 0))
	if err != nil {
		return nil, err
	}
	var docs []Document
	if len(totals) > 0 {
		var b strings.Builder
		b.WriteString("Spending over the last 30 days by category:\n")
		keywords := []string{"spending", "spent", "transactions", "month"}
		for _, t := range totals {
			if excluded[strings.ToLower(t.Category)] {
				continue
			}
			fmt.Fprintf(&b, "- %s: %.2f\n", t.Category, t.Total)
			keywords = append(keywords, strings.ToLower(t.Category))
		}
		docs = append(docs, Document{
			Source:   model.SourceTransactions,
			Title:    "Monthly spending by category",
			Content:  b.String(),
			Keywords: keywords,
		})
	}

	txns, err := model.RecentTransactions(userID, since, limit*4)
	if err != nil {
		return nil, err
	}
	for _, t := range txns {
		if excluded[strings.ToLower(t.Category)] {
			continue
		}
		if len(docs) >= limit {
			break
		}
		docs = append(docs, Document{
			Source: model.SourceTransactions,
			Title:  fmt.Sprintf("Transaction on %s", t.OccurredAt.Format("2006-01-02")),
			Content: fmt.Sprintf("%s: paid %.2f to %s (%s)",
				t.OccurredAt.Format("2006-01-02"), t.Amount, a.vendorLabel(settings, t.Vendor), t.Category),
			Keywords: []string{"transaction", "spent", "paid", "purchase", strings.ToLower(t.Category)},
		})
	}
	return docs, nil
}

func (a *AccessorService) budgetDocs(userID uint, settings *model.AISettings, limit int) ([]Document, error) {
	budgets, err := model.ActiveBudgets(userID)
	if err != nil {
		return nil, err
	}
	excluded := settings.ExcludedCategorySet()
	var docs []Document
	for _, b := range budgets {
		if excluded[strings.ToLower(b.Category)] {
			continue
		}
		if len(docs) >= limit {
			break
		}
		utilization := 0.0
		if b.MonthlyLimit > 0 {
			utilization = b.Spent / b.MonthlyLimit * 100
		}
		docs = append(docs, Document{
			Source: model.SourceBudgets,
			Title:  fmt.Sprintf("Budget: %s", b.Category),
			Content: fmt.Sprintf("Budget for %s: %.2f of %.2f used (%.0f%% utilization)",
				b.Category, b.Spent, b.MonthlyLimit, utilization),
			Keywords: []string{"budget", "limit", "utilization", "overspend", strings.ToLower(b.Category)},
		})
	}
	return docs, nil
}

func (a *AccessorService) goalDocs(userID uint, limit int) ([]Document, error) {
	goals, err := model.OpenGoals(userID)
	if err != nil {
		return nil, err
	}
	var docs []Document
	for _, g := range goals {
		if len(docs) >= limit {
			break
		}
		progress := 0.0
		if g.TargetAmount > 0 {
			progress = g.SavedAmount / g.TargetAmount * 100
		}
		docs = append(docs, Document{
			Source: model.SourceGoals,
			Title:  fmt.Sprintf("Goal: %s", g.Name),
			Content: fmt.Sprintf("Goal %q: saved %.2f of %.2f (%.0f%%), target date %s",
				g.Name, g.SavedAmount, g.TargetAmount, progress, g.TargetDate.Format("2006-01-02")),
			Keywords: []string{"goal", "saving", "savings", "progress", "target", strings.ToLower(g.Name)},
		})
	}
	return docs, nil
}

func (a *AccessorService) subscriptionDocs(userID uint, settings *model.AISettings, limit int) ([]Document, error) {
	subs, err := model.ActiveSubscriptions(userID)
	if err != nil {
		return nil, err
	}
	excluded := settings.ExcludedCategorySet()
	var docs []Document
	for _, s := range subs {
		if excluded[strings.ToLower(s.Category)] {
			continue
		}
		if len(docs) >= limit {
			break
		}
		docs = append(docs, Document{
			Source: model.SourceSubscriptions,
			Title:  fmt.Sprintf("Subscription: %s", a.vendorLabel(settings, s.Vendor)),
			Content: fmt.Sprintf("Subscription to %s (%s): %.2f per month, next due %s",
				a.vendorLabel(settings, s.Vendor), s.Category, s.MonthlyCost, s.NextDueDate.Format("2006-01-02")),
			Keywords: []string{"subscription", "recurring", "due", "monthly", strings.ToLower(s.Category)},
		})
	}
	return docs, nil
}

func (a *AccessorService) creditCardDocs(userID uint, limit int) ([]Document, error) {
	cards, err := model.UserCreditCards(userID)
	if err != nil {
		return nil, err
	}
	var docs []Document
	for _, card := range cards {
		if len(docs) >= limit {
			break
		}
		utilization := 0.0
		if card.CreditLimit > 0 {
			utilization = card.Balance / card.CreditLimit * 100
		}
		docs = append(docs, Document{
			Source: model.SourceCreditCards,
			Title:  fmt.Sprintf("Credit card: %s", card.Name),
			Content: fmt.Sprintf("Card %s: balance %.2f of %.2f limit (%.0f%%), payment due %s",
				card.Name, card.Balance, card.CreditLimit, utilization, card.DueDate.Format("2006-01-02")),
			Keywords: []string{"credit", "card", "balance", "debt", "due", "payment"},
		})
	}
	return docs, nil
}

func (a *AccessorService) taxDocs(userID uint, limit int) ([]Document, error) {
	deductions, err := model.TaxDeductionsForYear(userID, time.Now().Year())
	if err != nil {
		return nil, err
	}
	if len(deductions) == 0 {
		return nil, nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Tax deductions claimed for %d by relief category:\n", time.Now().Year())
	keywords := []string{"tax", "deduction", "relief", "deductions"}
	total := 0.0
	for _, d := range deductions {
		fmt.Fprintf(&b, "- %s: %.2f\n", d.ReliefCategory, d.Amount)
		keywords = append(keywords, strings.ToLower(d.ReliefCategory))
		total += d.Amount
	}
	fmt.Fprintf(&b, "Total claimed: %.2f\n", total)
	return []Document{{
		Source:   model.SourceTaxData,
		Title:    "Tax deductions this year",
		Content:  b.String(),
		Keywords: keywords,
	}}, nil
}

func (a *AccessorService) incomeDocs(userID uint, limit int) ([]Document, error) {
	entries, err := model.RecentIncome(userID, time.Now().AddDate(0, -6, 0))
	if err != nil {
		return nil, err
	}
	var docs []Document
	for _, e := range entries {
		if len(docs) >= limit {
			break
		}
		docs = append(docs, Document{
			Source: model.SourceIncome,
			Title:  fmt.Sprintf("Income from %s", e.Source),
			Content: fmt.Sprintf("Income of %.2f from %s on %s",
				e.Amount, e.Source, e.ReceivedAt.Format("2006-01-02")),
			Keywords: []string{"income", "salary", "earned", "earnings", strings.ToLower(e.Source)},
		})
	}
	return docs, nil
}

// forecastDocs projects next month's spend per category from the trailing
// three-month average.
func (a *AccessorService) forecastDocs(userID uint, settings *model.AISettings, limit int) ([]Document, error) {
	totals, err := model.SpendingByCategory(userID, time.Now().AddDate(0, -3, 0))
	if err != nil {
		return nil, err
	}
	if len(totals) == 0 {
		return nil, nil
	}
	excluded := settings.ExcludedCategorySet()
	var b strings.Builder
	b.WriteString("Projected spending next month (trailing 3-month average):\n")
	keywords := []string{"forecast", "projected", "predict", "next", "trend"}
	for _, t := range totals {
		if excluded[strings.ToLower(t.Category)] {
			continue
		}
		fmt.Fprintf(&b, "- %s: %.2f\n", t.Category, t.Total/3)
		keywords = append(keywords, strings.ToLower(t.Category))
	}
	return []Document{{
		Source:   model.SourceForecasts,
		Title:    "Spending forecast",
		Content:  b.String(),
		Keywords: keywords,
	}}, nil
}
