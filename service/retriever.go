package service

import (
	"finchat/model"
	"finchat/platform"
	"strings"
)

var logger = platform.Logger

// RetrievalResult carries the unscored candidate set for one turn plus the
// sources that were actually queried.
type RetrievalResult struct {
	Documents      []Document
	QueriedSources []string
	Empty          bool
}

// sourceTriggers routes query keywords to data sources so irrelevant
// accessors are skipped. A query matching no trigger fans out to every
// enabled source.
var sourceTriggers = map[string][]string{
	model.SourceTransactions: {
		"spend", "spent", "spending", "transaction", "transactions", "paid",
		"pay", "bought", "purchase", "purchases", "expense", "expenses",
		"food", "groceries", "dining", "shopping",
	},
	model.SourceBudgets: {
		"budget", "budgets", "limit", "overspend", "overspent", "utilization",
	},
	model.SourceGoals: {
		"goal", "goals", "save", "saving", "savings", "target",
	},
	model.SourceSubscriptions: {
		"subscription", "subscriptions", "recurring", "renew", "renewal",
		"streaming", "membership",
	},
	model.SourceCreditCards: {
		"card", "cards", "credit", "balance", "debt", "interest", "apr",
	},
	model.SourceTaxData: {
		"tax", "taxes", "deduction", "deductions", "relief", "deductible",
	},
	model.SourceIncome: {
		"income", "salary", "earn", "earned", "earnings", "wage", "paycheck",
	},
	model.SourceForecasts: {
		"forecast", "forecasts", "predict", "projection", "projected",
		"trend", "upcoming", "afford",
	},
}

type RetrieverService struct {
	Accessors *AccessorService
}

func NewRetrieverService() *RetrieverService {
	return &RetrieverService{Accessors: &AccessorService{}}
}

// Retrieve fans out to the routed, enabled accessors and bounds the combined
// result at the settings' maxRetrievalDocs.
func (r *RetrieverService) Retrieve(userID uint, query string, settings *model.AISettings) *RetrievalResult {
	sources := routeSources(query)
	maxDocs := settings.MaxRetrievalDocs
	if maxDocs <= 0 {
		maxDocs = 20
	}

	enabled := make([]string, 0, len(sources))
	for _, source := range sources {
		if settings.SourceAllowed(source) {
			enabled = append(enabled, source)
		}
	}
	if len(enabled) == 0 {
		return &RetrievalResult{Empty: true}
	}

	perSource := maxDocs / len(enabled)
	if perSource < 1 {
		perSource = 1
	}

	result := &RetrievalResult{QueriedSources: enabled}
	for _, source := range enabled {
		docs := r.Accessors.Fetch(userID, source, settings, perSource)
		for _, doc := range docs {
			if len(result.Documents) >= maxDocs {
				break
			}
			result.Documents = append(result.Documents, doc)
		}
	}
	result.Empty = len(result.Documents) == 0
	return result
}

// routeSources picks the data sources whose trigger keywords appear in the
// query, in the canonical source order. No match means all sources.
func routeSources(query string) []string {
	terms := queryTerms(query)
	termSet := make(map[string]bool, len(terms))
	for _, t := range terms {
		termSet[t] = true
	}

	var routed []string
	for _, source := range model.AllSources {
		for _, trigger := range sourceTriggers[source] {
			if termSet[trigger] {
				routed = append(routed, source)
				break
			}
		}
	}
	if len(routed) == 0 {
		return model.AllSources
	}
	return routed
}

// queryTerms lower-cases and splits a query into alphanumeric terms.
func queryTerms(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= '0' && r <= '9':
			return false
		}
		return true
	})
}
