// Package server is the interactive form for generating a newsletter from the
// browser, plus a read-only view of archived runs.
package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/TobiSchelling/AINewsletter/internal/agent"
	"github.com/TobiSchelling/AINewsletter/internal/database"
	"github.com/TobiSchelling/AINewsletter/internal/pipeline"
	"github.com/TobiSchelling/AINewsletter/internal/topics"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

const (
	msgNoTopics = "Please enter at least one topic or enable 'Use trending topics'."
	msgSent     = "Newsletter sent successfully!"
	msgFailed   = "Something went wrong while generating the newsletter."
)

// Runner executes one newsletter run. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, topics []string, opts pipeline.Options) *pipeline.Result
}

// Server serves the newsletter form.
type Server struct {
	db       *database.DB
	runner   Runner
	trending topics.Source
	pages    map[string]*template.Template
	mux      *http.ServeMux
}

// New creates a server. db and trending may be nil; without db no run
// history is shown, without trending the checkbox yields no topics.
func New(db *database.DB, runner Runner, trending topics.Source) (*Server, error) {
	funcMap := template.FuncMap{
		"formatDate":  database.FormatDateDisplay,
		"join":        strings.Join,
		"statusLabel": statusLabel,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	pageNames := []string{"index.html", "result.html", "run.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, runner: runner, trending: trending, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /generate", s.handleGenerate)
	s.mux.HandleFunc("GET /runs/{id}", s.handleRun)
}

type formData struct {
	Topics      string
	UseTrending bool
	Error       string
	Runs        []database.Run
}

func (s *Server) recentRuns() []database.Run {
	if s.db == nil {
		return nil
	}
	runs, err := s.db.GetRecentRuns(10)
	if err != nil {
		log.Printf("Loading recent runs: %v", err)
		return nil
	}
	return runs
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "index.html", formData{Runs: s.recentRuns()})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	form := formData{
		Topics:      strings.TrimSpace(r.FormValue("topics")),
		UseTrending: r.FormValue("use_trending") != "",
	}

	var (
		list   []string
		source = "custom"
	)
	if form.UseTrending {
		source = "trending"
		if s.trending != nil {
			list = topics.Resolve(r.Context(), s.trending)
		}
	} else {
		list = topics.Parse(form.Topics)
	}

	if len(list) == 0 {
		form.Error = msgNoTopics
		form.Runs = s.recentRuns()
		s.render(w, http.StatusBadRequest, "index.html", form)
		return
	}

	log.Printf("Generating newsletter for %d %s topics", len(list), source)
	result := s.runner.Run(r.Context(), list, pipeline.Options{TopicSource: source})

	data := map[string]any{
		"Topics":   list,
		"Outcomes": result.Outcomes,
		"Steps":    result.Steps,
		"RunID":    result.RunID,
		"Success":  !result.Failed(),
		"Message":  resultMessage(result),
	}
	if err := result.Err(); err != nil {
		data["Error"] = err.Error()
	}
	s.render(w, http.StatusOK, "result.html", data)
}

func resultMessage(r *pipeline.Result) string {
	switch {
	case r.Failed():
		return msgFailed
	case r.Sent:
		return msgSent
	default:
		return "Newsletter saved to " + r.OutputPath + "."
	}
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		http.NotFound(w, r)
		return
	}
	id := r.PathValue("id")

	run, err := s.db.GetRun(id)
	if err != nil {
		log.Printf("Loading run %s: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.NotFound(w, r)
		return
	}
	sections, err := s.db.GetRunSections(id)
	if err != nil {
		log.Printf("Loading sections of run %s: %v", id, err)
	}

	s.render(w, http.StatusOK, "run.html", map[string]any{
		"Run":        run,
		"Sections":   sections,
		"Newsletter": template.HTML(run.HTML), //nolint: gosec // sanitized at compile time
	})
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

// statusLabel accepts both agent.Status and archived status strings.
func statusLabel(s any) string {
	switch st := agent.Status(fmt.Sprint(s)); st {
	case agent.StatusOK:
		return "summarized"
	case agent.StatusFetchFailed:
		return "article fetch failed"
	case agent.StatusNoArticles:
		return "no articles"
	case agent.StatusSummaryFailed:
		return "summary failed"
	default:
		return string(st)
	}
}

// ListenAndServe serves on 127.0.0.1:port until the server fails.
func (s *Server) ListenAndServe(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("Server listening on http://%s", addr)
	return srv.ListenAndServe()
}
