package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GetToday returns today's date as YYYY-MM-DD.
func GetToday() string {
	return time.Now().Format("2006-01-02")
}

// FormatDateDisplay turns YYYY-MM-DD into "Feb 06, 2026". Unparseable input
// is returned unchanged.
func FormatDateDisplay(date string) string {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return d.Format("Jan 02, 2006")
}

// InsertRun stores a run with its sections in one transaction and returns the
// run ID. An empty ID or run date is filled in.
func (db *DB) InsertRun(run *Run, sections []RunSection) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.RunDate == "" {
		run.RunDate = GetToday()
	}
	topics, err := json.Marshal(run.Topics)
	if err != nil {
		return "", fmt.Errorf("encoding topics: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, run_date, topic_source, topics, output_path, html, sent, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.RunDate, run.TopicSource, string(topics), nullable(run.OutputPath),
		run.HTML, run.Sent, run.Status, nullable(run.Error),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	for _, s := range sections {
		_, err := tx.Exec(
			`INSERT INTO run_sections (run_id, position, topic, article_count, summary, status, error)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, s.Position, s.Topic, s.ArticleCount, s.Summary, s.Status, nullable(s.Error),
		)
		if err != nil {
			return "", fmt.Errorf("inserting section %d: %w", s.Position, err)
		}
		for rank, a := range s.Articles {
			_, err := tx.Exec(
				`INSERT INTO section_articles (run_id, position, rank, title, url, source, published_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				run.ID, s.Position, rank, a.Title, a.URL, nullable(a.Source), nullable(a.PublishedAt),
			)
			if err != nil {
				return "", fmt.Errorf("inserting article for section %d: %w", s.Position, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return run.ID, nil
}

const runColumns = `id, run_date, topic_source, topics, output_path, html, sent, status, error, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r                   Run
		topics              string
		outputPath, errText sql.NullString
	)
	if err := row.Scan(&r.ID, &r.RunDate, &r.TopicSource, &topics, &outputPath,
		&r.HTML, &r.Sent, &r.Status, &errText, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(topics), &r.Topics); err != nil {
		return nil, fmt.Errorf("decoding topics of run %s: %w", r.ID, err)
	}
	r.OutputPath = outputPath.String
	r.Error = errText.String
	return &r, nil
}

// GetRun returns the run with the given ID, or nil if there is none.
func (db *DB) GetRun(id string) (*Run, error) {
	r, err := scanRun(db.conn.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// GetRecentRuns returns up to limit runs, newest first.
func (db *DB) GetRecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.conn.Query(
		"SELECT "+runColumns+" FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetRunSections returns the sections of a run in newsletter order, each with
// its article links.
func (db *DB) GetRunSections(runID string) ([]RunSection, error) {
	rows, err := db.conn.Query(
		`SELECT run_id, position, topic, article_count, summary, status, error
		FROM run_sections WHERE run_id = ? ORDER BY position`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []RunSection
	for rows.Next() {
		var (
			s       RunSection
			errText sql.NullString
		)
		if err := rows.Scan(&s.RunID, &s.Position, &s.Topic, &s.ArticleCount,
			&s.Summary, &s.Status, &errText); err != nil {
			return nil, err
		}
		s.Error = errText.String
		sections = append(sections, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range sections {
		articles, err := db.sectionArticles(runID, sections[i].Position)
		if err != nil {
			return nil, err
		}
		sections[i].Articles = articles
	}
	return sections, nil
}

func (db *DB) sectionArticles(runID string, position int) ([]SectionArticle, error) {
	rows, err := db.conn.Query(
		`SELECT title, url, source, published_at FROM section_articles
		WHERE run_id = ? AND position = ? ORDER BY rank`, runID, position,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []SectionArticle
	for rows.Next() {
		var (
			a                   SectionArticle
			source, publishedAt sql.NullString
		)
		if err := rows.Scan(&a.Title, &a.URL, &source, &publishedAt); err != nil {
			return nil, err
		}
		a.Source = source.String
		a.PublishedAt = publishedAt.String
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// GetStats returns aggregate archive statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM runs", &s.Runs},
		{"SELECT COUNT(*) FROM runs WHERE sent = 1", &s.SentRuns},
		{"SELECT COUNT(*) FROM runs WHERE status = 'failed'", &s.FailedRuns},
		{"SELECT COUNT(*) FROM run_sections", &s.Sections},
		{"SELECT COUNT(*) FROM run_sections WHERE status IN ('fetch_failed', 'summary_failed')", &s.FailedSections},
	}
	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	var last sql.NullString
	if err := db.conn.QueryRow("SELECT MAX(run_date) FROM runs").Scan(&last); err != nil {
		return nil, err
	}
	s.LastRunDate = last.String
	return s, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
