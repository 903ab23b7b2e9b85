package database

// Run statuses.
const (
	RunCompleted = "completed"
	RunPartial   = "partial"
	RunFailed    = "failed"
)

// Run is one archived newsletter run.
type Run struct {
	ID          string
	RunDate     string // YYYY-MM-DD
	TopicSource string // "custom", "trending" or "config"
	Topics      []string
	OutputPath  string
	HTML        string
	Sent        bool
	Status      string
	Error       string
	CreatedAt   *string
}

// RunSection is the archived result for one topic of a run.
type RunSection struct {
	RunID        string
	Position     int
	Topic        string
	ArticleCount int
	Summary      string
	Status       string
	Error        string
	Articles     []SectionArticle
}

// SectionArticle is an article link that fed a section.
type SectionArticle struct {
	Title       string
	URL         string
	Source      string
	PublishedAt string
}

// Stats contains aggregate archive statistics.
type Stats struct {
	Runs           int
	SentRuns       int
	FailedRuns     int
	Sections       int
	FailedSections int
	LastRunDate    string
}
