// Package agent compiles a newsletter from an ordered list of topics. It drives
// the article fetcher and the summarizer once per topic and keeps a failure in
// one topic from affecting the others.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/TobiSchelling/AINewsletter/internal/collect"
)

var (
	ErrNoTopics   = errors.New("no topics given")
	ErrBlankTopic = errors.New("blank topic")
)

// Status tags the result of one topic.
type Status string

const (
	StatusPending       Status = "pending"
	StatusOK            Status = "ok"
	StatusFetchFailed   Status = "fetch_failed"
	StatusNoArticles    Status = "no_articles"
	StatusSummaryFailed Status = "summary_failed"
)

// Summarizer turns a topic and its articles into an HTML fragment.
type Summarizer interface {
	Summarize(ctx context.Context, topic string, articles []collect.Article) (string, error)
}

// Sanitizer cleans untrusted HTML before it is embedded in the newsletter.
// *bluemonday.Policy satisfies it.
type Sanitizer interface {
	Sanitize(s string) string
}

// Outcome is the tagged per-topic result of a run.
type Outcome struct {
	Topic    string
	Articles []collect.Article
	Summary  string
	Status   Status
	Err      error
}

// Option configures an Agent.
type Option func(*Agent)

// WithSanitizer replaces the default bluemonday UGC policy.
func WithSanitizer(s Sanitizer) Option {
	return func(a *Agent) { a.sanitizer = s }
}

// Agent holds the state of a single newsletter run. It is not safe for
// concurrent use.
type Agent struct {
	topics     []string
	fetcher    collect.Fetcher
	summarizer Summarizer
	sanitizer  Sanitizer

	articles    map[string][]collect.Article
	fetchErrs   map[string]error
	summaries   map[string]string
	summaryErrs map[string]error
	// generated marks summaries that came from the summarizer rather than a
	// placeholder.
	generated map[string]bool
}

// New creates an agent for topics, which must be non-empty and contain no
// blank entries.
func New(topics []string, fetcher collect.Fetcher, summarizer Summarizer, opts ...Option) (*Agent, error) {
	if len(topics) == 0 {
		return nil, ErrNoTopics
	}
	for i, t := range topics {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("%w at position %d", ErrBlankTopic, i+1)
		}
	}

	a := &Agent{
		topics:      append([]string(nil), topics...),
		fetcher:     fetcher,
		summarizer:  summarizer,
		sanitizer:   bluemonday.UGCPolicy(),
		articles:    make(map[string][]collect.Article),
		fetchErrs:   make(map[string]error),
		summaries:   make(map[string]string),
		summaryErrs: make(map[string]error),
		generated:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Topics returns the topics in input order.
func (a *Agent) Topics() []string {
	return append([]string(nil), a.topics...)
}

// FetchArticles fetches articles for every topic in input order. A failed
// fetch is recorded against its topic and does not stop the others.
func (a *Agent) FetchArticles(ctx context.Context) {
	for _, topic := range a.topics {
		if a.fetched(topic) {
			continue
		}
		log.Printf("Fetching articles for %s...", topic)
		articles, err := a.fetcher.Fetch(ctx, topic)
		if err != nil {
			log.Printf("Fetch failed for %s: %v", topic, err)
			a.fetchErrs[topic] = err
			continue
		}
		if articles == nil {
			articles = []collect.Article{}
		}
		a.articles[topic] = articles
	}
}

// SummarizeArticles issues one summarization call per fetched topic. Every
// fetched topic ends up with a summary entry, either the generated text or a
// placeholder.
func (a *Agent) SummarizeArticles(ctx context.Context) {
	for _, topic := range a.topics {
		if _, done := a.summaries[topic]; done {
			continue
		}
		if err, failed := a.fetchErrs[topic]; failed && err != nil {
			a.summaries[topic] = fmt.Sprintf("Summary unavailable due to article fetch error for %s.", topic)
			continue
		}
		articles, ok := a.articles[topic]
		if !ok {
			continue
		}
		if len(articles) == 0 {
			a.summaries[topic] = fmt.Sprintf("No recent articles found for %s.", topic)
			continue
		}

		log.Printf("Summarizing %d articles for %s...", len(articles), topic)
		summary, err := a.summarizer.Summarize(ctx, topic, articles)
		if err != nil {
			log.Printf("Summary failed for %s: %v", topic, err)
			a.summaryErrs[topic] = err
			a.summaries[topic] = fmt.Sprintf("Summary unavailable due to API error for %s.", topic)
			continue
		}
		a.summaries[topic] = summary
		a.generated[topic] = true
	}
}

// textEscaper escapes text for HTML element content. Quotes are left alone so
// placeholders read the same in the newsletter as in the outcome.
var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// CompileNewsletter joins one section per topic in input order. Generated
// summaries go through the sanitizer; topics and placeholders are escaped as
// plain text. It only reads agent state, so repeated calls return the same
// document.
func (a *Agent) CompileNewsletter() string {
	var sb strings.Builder
	for _, topic := range a.topics {
		sb.WriteString("<h2>")
		sb.WriteString(textEscaper.Replace(topic))
		sb.WriteString("</h2><br>")
		if a.generated[topic] {
			sb.WriteString(a.sanitizer.Sanitize(a.summaries[topic]))
		} else {
			sb.WriteString(textEscaper.Replace(a.summaries[topic]))
		}
		sb.WriteString("<br><br>")
	}
	return sb.String()
}

// Outcomes returns one tagged result per topic in input order.
func (a *Agent) Outcomes() []Outcome {
	out := make([]Outcome, 0, len(a.topics))
	for _, topic := range a.topics {
		o := Outcome{
			Topic:    topic,
			Articles: a.articles[topic],
			Summary:  a.summaries[topic],
			Status:   StatusPending,
		}
		switch {
		case a.fetchErrs[topic] != nil:
			o.Status = StatusFetchFailed
			o.Err = a.fetchErrs[topic]
		case a.summaryErrs[topic] != nil:
			o.Status = StatusSummaryFailed
			o.Err = a.summaryErrs[topic]
		case a.fetched(topic) && len(o.Articles) == 0:
			o.Status = StatusNoArticles
		case o.Summary != "":
			o.Status = StatusOK
		}
		out = append(out, o)
	}
	return out
}

// Run fetches, summarizes and compiles in sequence.
func (a *Agent) Run(ctx context.Context) string {
	a.FetchArticles(ctx)
	a.SummarizeArticles(ctx)
	return a.CompileNewsletter()
}

func (a *Agent) fetched(topic string) bool {
	if _, ok := a.articles[topic]; ok {
		return true
	}
	_, ok := a.fetchErrs[topic]
	return ok
}
