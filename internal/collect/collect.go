package collect

import "context"

// Article is a single search result for a topic.
type Article struct {
	Title       string
	URL         string
	Description string
	Source      string
	PublishedAt string // YYYY-MM-DD or empty
}

// Fetcher returns the articles for one topic. A failed lookup is reported as
// an error, never as an empty result.
type Fetcher interface {
	Fetch(ctx context.Context, topic string) ([]Article, error)
}
