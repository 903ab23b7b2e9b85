package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/TobiSchelling/AINewsletter/internal/agent"
	"github.com/TobiSchelling/AINewsletter/internal/collect"
	"github.com/TobiSchelling/AINewsletter/internal/config"
	"github.com/TobiSchelling/AINewsletter/internal/database"
	"github.com/TobiSchelling/AINewsletter/internal/fetch"
	"github.com/TobiSchelling/AINewsletter/internal/llm"
	"github.com/TobiSchelling/AINewsletter/internal/publish"
	"github.com/TobiSchelling/AINewsletter/internal/summarize"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	RunID      string
	Topics     []string
	Steps      []StepResult
	Outcomes   []agent.Outcome
	HTML       string
	OutputPath string
	Sent       bool
}

// Failed reports whether the newsletter could not be delivered: the agent
// could not start, or saving or sending failed.
func (r *Result) Failed() bool {
	for _, s := range r.Steps {
		switch s.Name {
		case "Fetch", "Save", "Send":
			if s.Err != nil {
				return true
			}
		}
	}
	return false
}

// Err returns the first step error.
func (r *Result) Err() error {
	for _, s := range r.Steps {
		if s.Err != nil {
			return s.Err
		}
	}
	return nil
}

// Options controls a single run.
type Options struct {
	SkipSend    bool
	TopicSource string // recorded in the archive
	OutputPath  string // overrides output.newsletter_file
}

// Sender delivers a saved newsletter.
type Sender interface {
	Send(ctx context.Context, subject, path string) error
}

// Pipeline runs Fetch, Summarize, Compile, Save, Send and Archive.
type Pipeline struct {
	cfg        *config.Config
	db         *database.DB
	fetcher    collect.Fetcher
	summarizer agent.Summarizer
	sender     Sender
}

// New builds every collaborator from cfg. Missing credentials are reported as
// *config.MissingKeyError before any network call. db may be nil, in which
// case runs are not archived.
func New(cfg *config.Config, db *database.DB) (*Pipeline, error) {
	key, err := config.RequireEnv(cfg.Articles.APIKeyEnv, "article search API key")
	if err != nil {
		return nil, err
	}
	var fetcher collect.Fetcher = collect.NewNewsAPIClient(key, collect.NewsAPIOptions{
		BaseURL:  cfg.Articles.BaseURL,
		Language: cfg.Articles.Language,
		PageSize: cfg.Articles.PageSize,
		Timeout:  cfg.Articles.Timeout,
	})
	if cfg.Articles.FillDescriptions {
		fetcher = fetch.NewEnricher(fetcher, 0)
	}

	provider, err := llm.CreateProvider(cfg.Summarization)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:        cfg,
		db:         db,
		fetcher:    fetcher,
		summarizer: summarize.New(provider, cfg.Summarization.RenderMarkdown),
	}
	if cfg.Email.Enabled {
		mailer, err := publish.NewMailer(cfg.Email)
		if err != nil {
			return nil, err
		}
		p.sender = mailer
	}
	return p, nil
}

func (p *Pipeline) outputPath(opts Options) string {
	if opts.OutputPath != "" {
		return opts.OutputPath
	}
	if p.cfg.Output.NewsletterFile != "" {
		return p.cfg.Output.NewsletterFile
	}
	return "newsletter.html"
}

// Run executes the full pipeline for topics.
func (p *Pipeline) Run(ctx context.Context, topics []string, opts Options) *Result {
	r := &Result{Topics: topics, OutputPath: p.outputPath(opts)}

	// Step 1: Fetch
	log.Println("Step 1/6: Fetching articles...")
	a, err := agent.New(topics, p.fetcher, p.summarizer)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Fetch", Err: err})
		return r
	}
	a.FetchArticles(ctx)
	r.Steps = append(r.Steps, fetchStep(a.Outcomes()))

	// Step 2: Summarize
	log.Println("Step 2/6: Summarizing topics...")
	a.SummarizeArticles(ctx)
	r.Outcomes = a.Outcomes()
	r.Steps = append(r.Steps, summarizeStep(r.Outcomes))

	// Step 3: Compile
	log.Println("Step 3/6: Compiling newsletter...")
	r.HTML = a.CompileNewsletter()
	r.Steps = append(r.Steps, StepResult{
		Name:    "Compile",
		Summary: fmt.Sprintf("Compiled %d sections (%d bytes)", len(topics), len(r.HTML)),
	})

	// Step 4: Save
	log.Println("Step 4/6: Saving newsletter...")
	saveErr := publish.Save(r.HTML, r.OutputPath)
	step := StepResult{Name: "Save", Summary: "Saved to " + r.OutputPath, Err: saveErr}
	if saveErr != nil {
		step.Summary = ""
	}
	r.Steps = append(r.Steps, step)

	// Step 5: Send
	log.Println("Step 5/6: Sending email...")
	r.Steps = append(r.Steps, p.runSend(ctx, saveErr, r, opts))

	// Step 6: Archive
	log.Println("Step 6/6: Archiving run...")
	r.Steps = append(r.Steps, p.runArchive(r, opts))

	return r
}

func fetchStep(outcomes []agent.Outcome) StepResult {
	articles, failed := 0, 0
	for _, o := range outcomes {
		if o.Status == agent.StatusFetchFailed {
			failed++
			continue
		}
		articles += len(o.Articles)
	}
	return StepResult{
		Name:    "Fetch",
		Summary: fmt.Sprintf("Fetched %d articles for %d topics, %d failed", articles, len(outcomes), failed),
	}
}

func summarizeStep(outcomes []agent.Outcome) StepResult {
	counts := make(map[agent.Status]int)
	for _, o := range outcomes {
		counts[o.Status]++
	}
	return StepResult{
		Name: "Summarize",
		Summary: fmt.Sprintf("Summarized %d topics: %d failed, %d without articles",
			counts[agent.StatusOK], counts[agent.StatusSummaryFailed], counts[agent.StatusNoArticles]),
	}
}

func (p *Pipeline) runSend(ctx context.Context, saveErr error, r *Result, opts Options) StepResult {
	switch {
	case saveErr != nil:
		return StepResult{Name: "Send", Summary: "Skipped, newsletter was not saved"}
	case opts.SkipSend:
		return StepResult{Name: "Send", Summary: "Skipped (--no-send)"}
	case p.sender == nil:
		return StepResult{Name: "Send", Summary: "Skipped, email disabled"}
	}

	if err := p.sender.Send(ctx, p.cfg.Email.Subject, r.OutputPath); err != nil {
		return StepResult{Name: "Send", Err: err}
	}
	r.Sent = true
	return StepResult{Name: "Send", Summary: "Newsletter emailed"}
}

func (p *Pipeline) runArchive(r *Result, opts Options) StepResult {
	if p.db == nil {
		return StepResult{Name: "Archive", Summary: "Skipped, archive disabled"}
	}

	source := opts.TopicSource
	if source == "" {
		source = "custom"
	}
	run := &database.Run{
		TopicSource: source,
		Topics:      r.Topics,
		OutputPath:  r.OutputPath,
		HTML:        r.HTML,
		Sent:        r.Sent,
		Status:      runStatus(r),
	}
	if err := r.Err(); err != nil {
		run.Error = err.Error()
	}

	id, err := p.db.InsertRun(run, sections(r.Outcomes))
	if err != nil {
		return StepResult{Name: "Archive", Err: fmt.Errorf("archiving run: %w", err)}
	}
	r.RunID = id
	return StepResult{Name: "Archive", Summary: "Archived run " + id}
}

func runStatus(r *Result) string {
	if r.Failed() {
		return database.RunFailed
	}
	for _, o := range r.Outcomes {
		if o.Status == agent.StatusFetchFailed || o.Status == agent.StatusSummaryFailed {
			return database.RunPartial
		}
	}
	return database.RunCompleted
}

func sections(outcomes []agent.Outcome) []database.RunSection {
	out := make([]database.RunSection, 0, len(outcomes))
	for i, o := range outcomes {
		s := database.RunSection{
			Position:     i,
			Topic:        o.Topic,
			ArticleCount: len(o.Articles),
			Summary:      o.Summary,
			Status:       string(o.Status),
		}
		if o.Err != nil {
			s.Error = o.Err.Error()
		}
		for _, a := range o.Articles {
			s.Articles = append(s.Articles, database.SectionArticle{
				Title:       a.Title,
				URL:         a.URL,
				Source:      a.Source,
				PublishedAt: a.PublishedAt,
			})
		}
		out = append(out, s)
	}
	return out
}

// DryRun shows what would be done without executing.
func (p *Pipeline) DryRun(topics []string, opts Options) *Result {
	r := &Result{Topics: topics, OutputPath: p.outputPath(opts)}

	r.Steps = append(r.Steps, StepResult{
		Name:    "Fetch",
		Summary: fmt.Sprintf("[dry-run] Would fetch articles for %d topics: %s", len(topics), strings.Join(topics, ", ")),
	})
	r.Steps = append(r.Steps, StepResult{
		Name: "Summarize",
		Summary: fmt.Sprintf("[dry-run] Would summarize with %s (%s)",
			p.cfg.Summarization.Provider, llm.ModelFor(p.cfg.Summarization)),
	})
	r.Steps = append(r.Steps, StepResult{
		Name:    "Compile",
		Summary: fmt.Sprintf("[dry-run] Would compile %d sections", len(topics)),
	})
	r.Steps = append(r.Steps, StepResult{
		Name:    "Save",
		Summary: "[dry-run] Would save to " + r.OutputPath,
	})

	send := "[dry-run] Would email newsletter"
	if opts.SkipSend || p.sender == nil {
		send = "[dry-run] Would not send email"
	}
	r.Steps = append(r.Steps, StepResult{Name: "Send", Summary: send})

	archive := "[dry-run] Would not archive"
	if p.db != nil {
		archive = "[dry-run] Would archive to " + p.db.Path()
	}
	r.Steps = append(r.Steps, StepResult{Name: "Archive", Summary: archive})

	return r
}
