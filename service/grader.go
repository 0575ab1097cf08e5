package service

import (
	"sort"
	"strings"
)

// Score thresholds for the grading step.
const (
	// MinDocumentScore is the per-document floor; when no document reaches
	// it, the top scored documents are kept instead of an empty context.
	MinDocumentScore = 0.2
	// FallbackTopDocs is how many documents survive when none pass the floor.
	FallbackTopDocs = 3
	// confidenceTopK documents feed the aggregate confidence.
	confidenceTopK = 3
)

// GradeResult is the grader's output for one scoring pass.
type GradeResult struct {
	Documents  []Document
	Confidence float64
}

// GraderService assigns deterministic relevance scores to retrieved
// documents. Scoring is a normalized keyword-overlap: the fraction of query
// terms present in the document's keyword and title sets. Monotonic in term
// overlap and free of model calls, per the grading contract.
type GraderService struct{}

// Grade scores every document against the query, filters by the per-document
// floor (or keeps the top few when nothing passes), sorts stably by score
// descending and computes aggregate confidence as the mean of the top-k
// scores.
func (g *GraderService) Grade(query string, docs []Document) *GradeResult {
	if len(docs) == 0 {
		return &GradeResult{}
	}

	terms := queryTerms(query)
	scored := make([]Document, len(docs))
	copy(scored, docs)
	for i := range scored {
		scored[i].Score = scoreDocument(terms, &scored[i])
	}

	// Stable: equal scores preserve the retriever's source order.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	kept := scored[:0:len(scored)]
	for _, doc := range scored {
		if doc.Score >= MinDocumentScore {
			kept = append(kept, doc)
		}
	}
	if len(kept) == 0 {
		n := FallbackTopDocs
		if n > len(scored) {
			n = len(scored)
		}
		kept = scored[:n]
	}

	return &GradeResult{Documents: kept, Confidence: aggregateConfidence(kept)}
}

func scoreDocument(queryTerms []string, doc *Document) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	docTerms := make(map[string]bool, len(doc.Keywords))
	for _, k := range doc.Keywords {
		docTerms[strings.ToLower(k)] = true
	}
	for _, t := range queryTerms {
		// Title terms count too; content is deliberately excluded so the
		// score stays stable under formatting changes.
		if strings.Contains(strings.ToLower(doc.Title), t) {
			docTerms[t] = true
		}
	}

	matched := 0
	for _, t := range queryTerms {
		if stopwords[t] {
			continue
		}
		if docTerms[t] {
			matched++
		}
	}
	meaningful := 0
	for _, t := range queryTerms {
		if !stopwords[t] {
			meaningful++
		}
	}
	if meaningful == 0 {
		return 0
	}
	score := float64(matched) / float64(meaningful)
	if score > 1 {
		score = 1
	}
	return score
}

func aggregateConfidence(docs []Document) float64 {
	if len(docs) == 0 {
		return 0
	}
	k := confidenceTopK
	if k > len(docs) {
		k = len(docs)
	}
	sum := 0.0
	for _, doc := range docs[:k] {
		sum += doc.Score
	}
	return sum / float64(k)
}

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "i": true, "my": true, "me": true,
	"do": true, "did": true, "how": true, "what": true, "which": true,
	"much": true, "many": true, "is": true, "are": true, "was": true,
	"on": true, "in": true, "of": true, "for": true, "to": true, "at": true, "this": true,
	"that": true, "am": true, "have": true, "has": true, "and": true,
	"or": true, "it": true, "be": true, "can": true, "should": true,
}

// rewriteSynonyms canonicalizes colloquial finance vocabulary so a corrected
// retrieval reaches the right accessors.
var rewriteSynonyms = map[string]string{
	"bought":      "spent purchase",
	"buy":         "spend purchase",
	"cash":        "spending transactions",
	"money":       "spending income",
	"bill":        "subscription payment due",
	"bills":       "subscriptions payments due",
	"owe":         "debt balance credit",
	"dining":      "food spending",
	"restaurant":  "food spending",
	"restaurants": "food spending",
	"groceries":   "food spending",
	"retirement":  "goal savings",
	"nest":        "goal savings",
	"write-off":   "tax deduction",
	"writeoff":    "tax deduction",
	"refund":      "tax deductions",
	"paycheck":    "income salary",
	"afford":      "forecast budget spending",
}

// RewriteQuery broadens a low-confidence query: stopwords are dropped and
// colloquial terms are expanded into the canonical retrieval vocabulary.
// Deterministic, so the single correction cycle is reproducible.
func (g *GraderService) RewriteQuery(query string) string {
	var out []string
	seen := map[string]bool{}
	for _, term := range queryTerms(query) {
		if stopwords[term] {
			continue
		}
		expansion, ok := rewriteSynonyms[term]
		if !ok {
			expansion = term
		}
		for _, t := range strings.Fields(expansion) {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	if len(out) == 0 {
		return query
	}
	return strings.Join(out, " ")
}
