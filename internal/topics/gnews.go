package topics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const gnewsBaseURL = "https://gnews.io"

// ErrNoArticles is returned when a trending response has no "articles" field.
var ErrNoArticles = errors.New("trending response has no articles")

// GNewsOptions configures a GNews trending source.
type GNewsOptions struct {
	BaseURL  string
	Language string
	Country  string
	Max      int
	Timeout  time.Duration
}

// GNews reads current top headlines from the GNews API and uses their titles as topics.
type GNews struct {
	apiKey   string
	baseURL  string
	language string
	country  string
	max      int
	client   *http.Client
}

// NewGNews creates a new GNews trending source.
func NewGNews(apiKey string, opts GNewsOptions) *GNews {
	g := &GNews{
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		language: opts.Language,
		country:  opts.Country,
		max:      opts.Max,
		client:   &http.Client{Timeout: opts.Timeout},
	}
	if g.baseURL == "" {
		g.baseURL = gnewsBaseURL
	}
	if g.language == "" {
		g.language = "en"
	}
	if g.country == "" {
		g.country = "us"
	}
	if g.max <= 0 {
		g.max = 5
	}
	if g.client.Timeout == 0 {
		g.client.Timeout = 30 * time.Second
	}
	return g
}

func (g *GNews) Name() string { return "trending" }

// Topics returns up to max headline titles.
func (g *GNews) Topics(ctx context.Context) ([]string, error) {
	params := url.Values{
		"lang":    {g.language},
		"country": {g.country},
		"max":     {strconv.Itoa(g.max)},
		"apikey":  {g.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/api/v4/top-headlines?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating GNews request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GNews request: %w", err)
	}
	defer resp.Body.Close()

	var data struct {
		Errors   json.RawMessage `json:"errors"`
		Articles *[]struct {
			Title string `json:"title"`
		} `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse GNews response: %w", err)
	}

	if len(data.Errors) > 0 {
		return nil, fmt.Errorf("GNews error response (HTTP %d): %s", resp.StatusCode, string(data.Errors))
	}
	if data.Articles == nil {
		return nil, ErrNoArticles
	}

	var titles []string
	for _, a := range *data.Articles {
		if len(titles) >= g.max {
			break
		}
		if t := strings.TrimSpace(a.Title); t != "" {
			titles = append(titles, t)
		}
	}
	return titles, nil
}
