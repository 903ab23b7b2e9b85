package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	newsAPIBaseURL  = "https://newsapi.org"
	defaultPageSize = 5
)

// APIError is an error payload returned by NewsAPI.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("NewsAPI HTTP error: %d", e.Status)
	}
	return fmt.Sprintf("NewsAPI error %s: %s", e.Code, e.Message)
}

// NewsAPIOptions configures a NewsAPIClient.
type NewsAPIOptions struct {
	BaseURL  string
	Language string
	PageSize int
	Timeout  time.Duration
}

// NewsAPIClient fetches articles from NewsAPI's /v2/everything search.
type NewsAPIClient struct {
	apiKey   string
	baseURL  string
	language string
	pageSize int
	client   *http.Client
}

// NewNewsAPIClient creates a new NewsAPI client.
func NewNewsAPIClient(apiKey string, opts NewsAPIOptions) *NewsAPIClient {
	c := &NewsAPIClient{
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		language: opts.Language,
		pageSize: opts.PageSize,
		client:   &http.Client{Timeout: opts.Timeout},
	}
	if c.baseURL == "" {
		c.baseURL = newsAPIBaseURL
	}
	if c.language == "" {
		c.language = "en"
	}
	if c.pageSize <= 0 || c.pageSize > 100 {
		c.pageSize = defaultPageSize
	}
	if c.client.Timeout == 0 {
		c.client.Timeout = 30 * time.Second
	}
	return c
}

// Fetch searches for articles matching a topic.
func (c *NewsAPIClient) Fetch(ctx context.Context, topic string) ([]Article, error) {
	params := url.Values{
		"q":        {topic},
		"language": {c.language},
		"pageSize": {strconv.Itoa(c.pageSize)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/everything?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating NewsAPI request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("NewsAPI request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading NewsAPI response: %w", err)
	}

	var result struct {
		Status   string `json:"status"`
		Code     string `json:"code"`
		Message  string `json:"message"`
		Articles []struct {
			URL         string `json:"url"`
			Title       string `json:"title"`
			Description string `json:"description"`
			PublishedAt string `json:"publishedAt"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}

	if err := json.Unmarshal(body, &result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &APIError{Status: resp.StatusCode}
		}
		return nil, fmt.Errorf("decoding NewsAPI response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || result.Status != "ok" {
		return nil, &APIError{Status: resp.StatusCode, Code: result.Code, Message: result.Message}
	}

	articles := make([]Article, 0, len(result.Articles))
	for _, a := range result.Articles {
		if len(articles) >= c.pageSize {
			break
		}
		if a.Title == "[Removed]" || a.URL == "https://removed.com" {
			continue
		}

		var pubDate string
		if a.PublishedAt != "" {
			if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
				pubDate = t.Format("2006-01-02")
			}
		}

		articles = append(articles, Article{
			Title:       strings.TrimSpace(a.Title),
			URL:         a.URL,
			Description: strings.TrimSpace(a.Description),
			Source:      a.Source.Name,
			PublishedAt: pubDate,
		})
	}

	log.Printf("Fetched %d articles from NewsAPI for topic: %s", len(articles), topic)
	return articles, nil
}
