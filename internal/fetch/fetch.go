package fetch

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"

	"github.com/TobiSchelling/AINewsletter/internal/collect"
)

const (
	maxBodyBytes   = 2 << 20
	maxExcerptLen  = 300
	minExtractText = 100
)

// Enricher wraps a Fetcher and fills empty article descriptions with a short
// readability extract of the article page.
type Enricher struct {
	next   collect.Fetcher
	client *http.Client
}

// NewEnricher creates a description-filling fetcher around next.
func NewEnricher(next collect.Fetcher, timeout time.Duration) *Enricher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Enricher{
		next: next,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Fetch delegates to the wrapped fetcher, then fills missing descriptions.
// Errors from the wrapped fetcher are returned unchanged; page download
// failures only leave the description empty.
func (e *Enricher) Fetch(ctx context.Context, topic string) ([]collect.Article, error) {
	articles, err := e.next.Fetch(ctx, topic)
	if err != nil {
		return nil, err
	}

	failedDomains := make(map[string]struct{})
	for i := range articles {
		if articles[i].Description != "" {
			continue
		}

		domain := ""
		if u, err := url.Parse(articles[i].URL); err == nil {
			domain = strings.ToLower(u.Host)
		}
		if _, failed := failedDomains[domain]; failed {
			continue
		}

		text, httpErr := e.fetchExtract(ctx, articles[i].URL)
		if httpErr != nil {
			if domain != "" {
				failedDomains[domain] = struct{}{}
			}
			log.Printf("HTTP error for %s, skipping remaining from %s", articles[i].URL, domain)
			continue
		}
		if text != "" {
			articles[i].Description = text
			log.Printf("Filled description for: %s", articles[i].Title)
		}
	}

	return articles, nil
}

func (e *Enricher) fetchExtract(ctx context.Context, articleURL string) (string, error) {
	parsedURL, err := url.Parse(articleURL)
	if err != nil || parsedURL.Host == "" {
		return "", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", nil
	}
	req.Header.Set("User-Agent", "AINewsletter/1.0 (newsletter generator)")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", nil // connection error, not HTTP error
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxBodyBytes), parsedURL)
	if err != nil {
		return "", nil
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	if len(text) <= minExtractText {
		return "", nil
	}
	return excerpt(text, maxExcerptLen), nil
}

// excerpt cuts text to at most n runes, preferring a word boundary.
func excerpt(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:n])
	if i := strings.LastIndex(cut, " "); i > n/2 {
		cut = cut[:i]
	}
	return cut + "..."
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
