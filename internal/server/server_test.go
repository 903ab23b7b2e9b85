package server

import (
	"context"
	"errors"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TobiSchelling/AINewsletter/internal/agent"
	"github.com/TobiSchelling/AINewsletter/internal/database"
	"github.com/TobiSchelling/AINewsletter/internal/pipeline"
	"github.com/TobiSchelling/AINewsletter/internal/topics"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type mockRunner struct {
	result *pipeline.Result
	topics []string
	opts   pipeline.Options
	calls  int
}

func (m *mockRunner) Run(_ context.Context, list []string, opts pipeline.Options) *pipeline.Result {
	m.calls++
	m.topics = list
	m.opts = opts
	if m.result != nil {
		return m.result
	}
	return &pipeline.Result{
		Topics: list,
		Sent:   true,
		Steps:  []pipeline.StepResult{{Name: "Send", Summary: "Newsletter emailed"}},
	}
}

type failingSource struct{}

func (failingSource) Topics(context.Context) ([]string, error) {
	return nil, errors.New("no articles field")
}

func (failingSource) Name() string { return "trending" }

func newTestServer(t *testing.T, db *database.DB, runner Runner, trending topics.Source) *Server {
	t.Helper()
	srv, err := New(db, runner, trending)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func postForm(srv *Server, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/generate", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndexRoute(t *testing.T) {
	db := openTestDB(t)
	db.InsertRun(&database.Run{
		ID: "run-1", RunDate: "2026-02-06", TopicSource: "custom",
		Topics: []string{"AI", "Climate"}, Status: database.RunCompleted, Sent: true,
	}, nil)
	srv := newTestServer(t, db, &mockRunner{}, nil)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`name="topics"`, `name="use_trending"`, "Use trending topics", "AI, Climate", "/runs/run-1", "Feb 06, 2026"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in response body", want)
		}
	}
}

func TestIndexWithoutArchive(t *testing.T) {
	srv := newTestServer(t, nil, &mockRunner{}, nil)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No newsletters generated yet.") {
		t.Error("expected empty history message")
	}
}

func TestUnknownPath(t *testing.T) {
	srv := newTestServer(t, nil, &mockRunner{}, nil)

	req := httptest.NewRequest("GET", "/nope", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGenerateEmptySubmission(t *testing.T) {
	runner := &mockRunner{}
	srv := newTestServer(t, nil, runner, nil)

	rec := postForm(srv, url.Values{"topics": {" , "}})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	body := html.UnescapeString(rec.Body.String())
	if !strings.Contains(body, "Please enter at least one topic or enable 'Use trending topics'.") {
		t.Error("expected no-topics message")
	}
	if !strings.Contains(body, `action="/generate"`) {
		t.Error("expected the form to be re-rendered")
	}
	if runner.calls != 0 {
		t.Errorf("expected pipeline not to run, got %d calls", runner.calls)
	}
}

func TestGenerateCustomTopics(t *testing.T) {
	runner := &mockRunner{}
	srv := newTestServer(t, nil, runner, nil)

	rec := postForm(srv, url.Values{"topics": {" AI, ,Climate "}})

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if strings.Join(runner.topics, "|") != "AI|Climate" {
		t.Errorf("expected parsed topics, got %v", runner.topics)
	}
	if runner.opts.TopicSource != "custom" {
		t.Errorf("expected custom source, got %q", runner.opts.TopicSource)
	}
	if !strings.Contains(rec.Body.String(), "Newsletter sent successfully!") {
		t.Error("expected success message")
	}
}

func TestGenerateTrendingTopics(t *testing.T) {
	runner := &mockRunner{}
	srv := newTestServer(t, nil, runner, topics.Static{"Markets rally", "Storm hits coast"})

	rec := postForm(srv, url.Values{"topics": {"ignored"}, "use_trending": {"1"}})

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if strings.Join(runner.topics, "|") != "Markets rally|Storm hits coast" {
		t.Errorf("expected trending topics, got %v", runner.topics)
	}
	if runner.opts.TopicSource != "trending" {
		t.Errorf("expected trending source, got %q", runner.opts.TopicSource)
	}
}

func TestGenerateTrendingFailure(t *testing.T) {
	runner := &mockRunner{}
	srv := newTestServer(t, nil, runner, failingSource{})

	rec := postForm(srv, url.Values{"use_trending": {"1"}})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if runner.calls != 0 {
		t.Error("expected pipeline not to run without topics")
	}
}

func TestGenerateFailure(t *testing.T) {
	runner := &mockRunner{result: &pipeline.Result{
		Steps: []pipeline.StepResult{
			{Name: "Save", Summary: "Saved to newsletter.html"},
			{Name: "Send", Err: errors.New("535 authentication failed")},
		},
		Outcomes: []agent.Outcome{
			{Topic: "AI", Status: agent.StatusOK},
			{Topic: "Climate", Status: agent.StatusSummaryFailed},
		},
	}}
	srv := newTestServer(t, nil, runner, nil)

	rec := postForm(srv, url.Values{"topics": {"AI, Climate"}})

	body := rec.Body.String()
	for _, want := range []string{"Something went wrong while generating the newsletter.", "535 authentication failed", "summary failed"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in response", want)
		}
	}
	if strings.Contains(body, "Newsletter sent successfully!") {
		t.Error("did not expect success message")
	}
}

func TestRunRoute(t *testing.T) {
	db := openTestDB(t)
	db.InsertRun(&database.Run{
		ID: "run-1", RunDate: "2026-02-06", TopicSource: "custom", Topics: []string{"AI"},
		HTML: "<h2>AI</h2><br><p>AI summary</p><br><br>", Status: database.RunCompleted,
	}, []database.RunSection{{
		Position: 0, Topic: "AI", ArticleCount: 1, Status: "ok",
		Articles: []database.SectionArticle{{Title: "Model launch", URL: "https://a.com/1", Source: "A"}},
	}})
	srv := newTestServer(t, db, &mockRunner{}, nil)

	req := httptest.NewRequest("GET", "/runs/run-1", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"<h2>AI</h2><br><p>AI summary</p>", "Model launch", "https://a.com/1"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in response", want)
		}
	}
}

func TestRunRouteNotFound(t *testing.T) {
	srv := newTestServer(t, openTestDB(t), &mockRunner{}, nil)

	req := httptest.NewRequest("GET", "/runs/missing", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStaticRoute(t *testing.T) {
	srv := newTestServer(t, nil, &mockRunner{}, nil)

	req := httptest.NewRequest("GET", "/static/style.css", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "font-sans") {
		t.Error("expected CSS content")
	}
}
