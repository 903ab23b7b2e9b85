package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/AINewsletter/internal/collect"
)

type stubFetcher struct {
	articles []collect.Article
	err      error
}

func (s *stubFetcher) Fetch(_ context.Context, _ string) ([]collect.Article, error) {
	out := make([]collect.Article, len(s.articles))
	copy(out, s.articles)
	return out, s.err
}

const articlePage = `<!DOCTYPE html>
<html><head><title>Quantum chips</title></head>
<body>
<nav><a href="/">Home</a></nav>
<article>
<h1>Quantum chips reach a new milestone</h1>
<p>Researchers announced on Tuesday that a new generation of quantum processors has crossed an important error-correction threshold, a result that many in the field had expected to take several more years to achieve.</p>
<p>The team, which worked with partners in industry and academia, said the chips kept logical qubits stable for longer than the physical qubits underneath them, which is the property engineers need before they can build larger machines.</p>
<p>Independent experts cautioned that practical applications are still some way off, but they agreed that the measurements, if they hold up, mark a genuine step forward for the technology and for the companies betting on it.</p>
</article>
</body></html>`

func TestEnricherFillsEmptyDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(articlePage))
	}))
	defer srv.Close()

	inner := &stubFetcher{articles: []collect.Article{
		{Title: "Quantum", URL: srv.URL + "/quantum"},
	}}
	e := NewEnricher(inner, 5*time.Second)

	articles, err := e.Fetch(context.Background(), "quantum")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if articles[0].Description == "" {
		t.Fatal("expected description to be filled")
	}
	if !strings.Contains(articles[0].Description, "quantum processors") {
		t.Errorf("expected extract from article body, got %q", articles[0].Description)
	}
}

func TestEnricherKeepsExistingDescription(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	inner := &stubFetcher{articles: []collect.Article{
		{Title: "A", URL: srv.URL + "/a", Description: "Already here"},
	}}
	articles, err := NewEnricher(inner, time.Second).Fetch(context.Background(), "AI")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if articles[0].Description != "Already here" {
		t.Errorf("expected description untouched, got %q", articles[0].Description)
	}
	if requests != 0 {
		t.Errorf("expected no page requests, got %d", requests)
	}
}

func TestEnricherSkipsFailedDomain(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	inner := &stubFetcher{articles: []collect.Article{
		{Title: "A", URL: srv.URL + "/a"},
		{Title: "B", URL: srv.URL + "/b"},
	}}
	articles, err := NewEnricher(inner, time.Second).Fetch(context.Background(), "AI")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requests != 1 {
		t.Errorf("expected 1 request before domain was skipped, got %d", requests)
	}
	for _, a := range articles {
		if a.Description != "" {
			t.Errorf("expected empty description for %s, got %q", a.Title, a.Description)
		}
	}
}

func TestEnricherPropagatesFetchError(t *testing.T) {
	want := errors.New("provider down")
	_, err := NewEnricher(&stubFetcher{err: want}, time.Second).Fetch(context.Background(), "AI")
	if !errors.Is(err, want) {
		t.Errorf("expected wrapped fetcher error, got %v", err)
	}
}

func TestExcerpt(t *testing.T) {
	short := "short text"
	if got := excerpt(short, 300); got != short {
		t.Errorf("expected unchanged short text, got %q", got)
	}

	long := strings.Repeat("word ", 100)
	got := excerpt(long, 50)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis, got %q", got)
	}
	if len(got) > 53 {
		t.Errorf("expected at most 53 bytes, got %d", len(got))
	}
}
