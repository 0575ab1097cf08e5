package service

import (
	"context"
	"finchat/model"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// WebSearchService is the external-fallback extension point: when the
// correction cycle still leaves confidence below threshold and the fallback
// flag is on, one page is fetched from the configured lookup endpoint and
// converted to markdown. Any failure is swallowed; the turn proceeds without
// the extra document.
type WebSearchService struct {
	Endpoint string
	Client   *http.Client
}

func NewWebSearchService() *WebSearchService {
	return &WebSearchService{
		Endpoint: os.Getenv("WEB_FALLBACK_URL"),
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

const webDocMaxChars = 4000

// Lookup fetches the fallback page for the query. A nil document with nil
// error means the fallback is unconfigured.
func (w *WebSearchService) Lookup(ctx context.Context, query string) (*Document, error) {
	if w.Endpoint == "" {
		return nil, nil
	}

	lookupURL := fmt.Sprintf("%s?q=%s", w.Endpoint, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build fallback request: %w", err)
	}
	res, err := w.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch fallback page: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fallback page returned status %d", res.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read fallback page: %w", err)
	}
	content, err := htmltomarkdown.ConvertString(string(data))
	if err != nil {
		return nil, fmt.Errorf("convert fallback page: %w", err)
	}
	if len(content) > webDocMaxChars {
		content = content[:webDocMaxChars]
	}

	return &Document{
		Source:   model.SourceWeb,
		Title:    "External reference",
		Content:  content,
		Keywords: queryTerms(query),
		// Always below every graded financial document.
		Score: MinDocumentScore,
	}, nil
}
