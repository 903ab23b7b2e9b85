package topics

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// Feed uses the newest item titles of an RSS/Atom feed as trending topics.
type Feed struct {
	url    string
	max    int
	parser *gofeed.Parser
}

// NewFeed creates a feed-backed trending source.
func NewFeed(feedURL string, max int, timeout time.Duration) *Feed {
	if max <= 0 {
		max = 5
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	return &Feed{url: feedURL, max: max, parser: parser}
}

func (f *Feed) Name() string { return "trending" }

// Topics returns up to max item titles in feed order.
func (f *Feed) Topics(ctx context.Context) ([]string, error) {
	feed, err := f.parser.ParseURLWithContext(f.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", f.url, err)
	}

	var titles []string
	for _, item := range feed.Items {
		if len(titles) >= f.max {
			break
		}
		if t := strings.TrimSpace(item.Title); t != "" {
			titles = append(titles, t)
		}
	}
	return titles, nil
}
