package service

import (
	"fmt"
	"strings"
)

// NoDataMarker is inserted when every source failed or returned nothing, so
// the model answers honestly instead of receiving an empty prompt.
const NoDataMarker = "No financial data is available for this question. Say so, and do not invent numbers."

// webFallbackNotice flags that retrieval confidence stayed low and external
// sources may be needed.
const webFallbackNotice = "The user's own records may not fully answer this; note when information could be incomplete."

// AssembledContext is the bounded prompt context for one turn. DataSources
// lists the distinct tags actually included, not merely queried.
type AssembledContext struct {
	Prompt      string
	DataSources []string
	Truncated   bool
}

// AssemblerService merges graded documents into one bounded context block.
// Pure: identical documents and budget always produce identical output.
type AssemblerService struct{}

// contextTokenShare is the fraction of maxTokens granted to retrieved
// context; the rest is left for history and the reply.
const contextTokenShare = 0.5

// estimateTokens approximates tokens as len/4, the usual plain-text ratio.
func estimateTokens(s string) int {
	return len(s) / 4
}

// Assemble walks documents in their graded order and appends each until the
// token budget implied by maxTokens is exhausted.
func (s *AssemblerService) Assemble(docs []Document, maxTokens int, withFallbackNotice bool) *AssembledContext {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	budget := int(float64(maxTokens) * contextTokenShare)

	ctx := &AssembledContext{}
	if len(docs) == 0 {
		ctx.Prompt = NoDataMarker
		return ctx
	}

	var b strings.Builder
	b.WriteString("The user's financial records relevant to this question:\n\n")
	used := estimateTokens(b.String())
	seen := map[string]bool{}
	for _, doc := range docs {
		block := fmt.Sprintf("[%s] %s\n%s\n\n", doc.Source, doc.Title, doc.Content)
		cost := estimateTokens(block)
		if used+cost > budget {
			ctx.Truncated = true
			break
		}
		b.WriteString(block)
		used += cost
		if !seen[doc.Source] {
			seen[doc.Source] = true
			ctx.DataSources = append(ctx.DataSources, doc.Source)
		}
	}

	if len(ctx.DataSources) == 0 {
		// Budget too small for even one document.
		ctx.Prompt = NoDataMarker
		ctx.Truncated = true
		return ctx
	}

	if withFallbackNotice {
		b.WriteString(webFallbackNotice)
		b.WriteString("\n")
	}
	ctx.Prompt = b.String()
	return ctx
}
