package topics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/TobiSchelling/AINewsletter/internal/config"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "trims and drops empty", input: " AI, ,Climate ", want: []string{"AI", "Climate"}},
		{name: "keeps order and duplicates", input: "B,A,B", want: []string{"B", "A", "B"}},
		{name: "single", input: "Startups", want: []string{"Startups"}},
		{name: "blank", input: "  , ,", want: nil},
		{name: "empty", input: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func TestStaticTopics(t *testing.T) {
	got, err := Static{"AI", "  ", " Design "}.Topics(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, []string{"AI", "Design"}, got)
}

func gnewsServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/top-headlines" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGNewsTopics(t *testing.T) {
	var query map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Write([]byte(`{"totalArticles":3,"articles":[{"title":"Markets rally"},{"title":" Storm hits coast "},{"title":"Election results"}]}`))
	}))
	defer srv.Close()

	g := NewGNews("key", GNewsOptions{BaseURL: srv.URL, Max: 2})
	got, err := g.Topics(context.Background())

	assert.Equal(t, nil, err)
	assert.Equal(t, []string{"Markets rally", "Storm hits coast"}, got)
	assert.Equal(t, []string{"en"}, query["lang"])
	assert.Equal(t, []string{"us"}, query["country"])
	assert.Equal(t, []string{"2"}, query["max"])
	assert.Equal(t, []string{"key"}, query["apikey"])
}

func TestGNewsMissingArticlesField(t *testing.T) {
	srv := gnewsServer(t, `{"information":"nothing here"}`)

	g := NewGNews("key", GNewsOptions{BaseURL: srv.URL})
	_, err := g.Topics(context.Background())
	assert.Equal(t, true, errors.Is(err, ErrNoArticles))

	// Resolve turns the failure into an empty topic list.
	assert.Equal(t, 0, len(Resolve(context.Background(), g)))
}

func TestGNewsErrorPayload(t *testing.T) {
	srv := gnewsServer(t, `{"errors":["You did not provide an API key."]}`)

	_, err := NewGNews("", GNewsOptions{BaseURL: srv.URL}).Topics(context.Background())
	assert.NotEqual(t, nil, err)
}

func TestGNewsMalformedJSON(t *testing.T) {
	srv := gnewsServer(t, `not json`)

	g := NewGNews("key", GNewsOptions{BaseURL: srv.URL})
	_, err := g.Topics(context.Background())
	assert.NotEqual(t, nil, err)
	assert.Equal(t, []string{}, Resolve(context.Background(), g))
}

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Top stories</title>
<link>https://example.com</link>
<description>Top</description>
<item><title>First headline</title><link>https://example.com/1</link></item>
<item><title>Second headline</title><link>https://example.com/2</link></item>
<item><title>Third headline</title><link>https://example.com/3</link></item>
</channel></rss>`

func TestFeedTopics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssFeed))
	}))
	defer srv.Close()

	f := NewFeed(srv.URL, 2, 5*time.Second)
	got, err := f.Topics(context.Background())

	assert.Equal(t, nil, err)
	assert.Equal(t, []string{"First headline", "Second headline"}, got)
}

func TestNewTrendingRequiresGNewsKey(t *testing.T) {
	t.Setenv("GNEWS_API_KEY", "")
	_, err := NewTrending(config.Trending{Provider: "gnews", APIKeyEnv: "GNEWS_API_KEY"})

	var missing *config.MissingKeyError
	assert.Equal(t, true, errors.As(err, &missing))
}

func TestNewTrendingFeedNeedsNoKey(t *testing.T) {
	src, err := NewTrending(config.Trending{Provider: "feed", FeedURL: "https://example.com/rss"})
	assert.Equal(t, nil, err)
	assert.Equal(t, "trending", src.Name())
}
