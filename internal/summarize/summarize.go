package summarize

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/TobiSchelling/AINewsletter/internal/collect"
	"github.com/TobiSchelling/AINewsletter/internal/llm"
)

const systemPrompt = "You are a helpful newsletter summarizer agent."

const promptHeader = "Create a short, newsletter-style summary for these articles on %s with key highlights:\n\n"

// Summarizer produces one newsletter section per topic through an LLM provider.
type Summarizer struct {
	provider llm.Provider
	markdown goldmark.Markdown
}

// New creates a summarizer. With renderMarkdown set, completions are treated
// as markdown and converted to HTML.
func New(provider llm.Provider, renderMarkdown bool) *Summarizer {
	s := &Summarizer{provider: provider}
	if renderMarkdown {
		s.markdown = goldmark.New(goldmark.WithRendererOptions(html.WithUnsafe()))
	}
	return s
}

// Summarize issues one completion request for the topic and its articles.
func (s *Summarizer) Summarize(ctx context.Context, topic string, articles []collect.Article) (string, error) {
	if s.provider == nil {
		return "", fmt.Errorf("no LLM provider configured")
	}

	text, err := s.provider.Generate(ctx, systemPrompt, BuildPrompt(topic, articles))
	if err != nil {
		return "", err
	}

	if s.markdown == nil {
		return text, nil
	}
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(text), &buf); err != nil {
		log.Printf("Markdown conversion failed for %s, using raw text: %v", topic, err)
		return text, nil
	}
	return buf.String(), nil
}

// BuildPrompt embeds every article's title, description and link.
func BuildPrompt(topic string, articles []collect.Article) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, promptHeader, topic)
	for _, a := range articles {
		fmt.Fprintf(&sb, "Title: %s\nDescription: %s\nLink: %s\n\n", a.Title, a.Description, a.URL)
	}
	return sb.String()
}
