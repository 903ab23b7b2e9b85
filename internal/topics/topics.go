// Package topics supplies the ordered topic list that drives one newsletter run.
package topics

import (
	"context"
	"log"
	"strings"

	"github.com/TobiSchelling/AINewsletter/internal/config"
)

// Source produces an ordered list of topics.
type Source interface {
	Topics(ctx context.Context) ([]string, error)
	Name() string
}

// Parse splits comma-separated user input into trimmed, non-empty topics.
// Order is kept and duplicates are not removed.
func Parse(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Static is a fixed topic list.
type Static []string

func (s Static) Topics(_ context.Context) ([]string, error) {
	return clean(s), nil
}

func (s Static) Name() string { return "custom" }

// NewTrending builds the configured trending-headlines source. The GNews
// provider fails here when its API key is not set.
func NewTrending(cfg config.Trending) (Source, error) {
	if strings.ToLower(cfg.Provider) == "feed" {
		return NewFeed(cfg.FeedURL, cfg.Max, cfg.Timeout), nil
	}
	key, err := config.RequireEnv(cfg.APIKeyEnv, "trending news API key")
	if err != nil {
		return nil, err
	}
	return NewGNews(key, GNewsOptions{
		BaseURL:  cfg.BaseURL,
		Language: cfg.Language,
		Country:  cfg.Country,
		Max:      cfg.Max,
		Timeout:  cfg.Timeout,
	}), nil
}

// Resolve returns the topics from src. A failing source yields an empty list,
// which callers treat as "no topics".
func Resolve(ctx context.Context, src Source) []string {
	list, err := src.Topics(ctx)
	if err != nil {
		log.Printf("Could not fetch %s topics: %v", src.Name(), err)
		return []string{}
	}
	return clean(list)
}

func clean(list []string) []string {
	out := make([]string, 0, len(list))
	for _, t := range list {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
