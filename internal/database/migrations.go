package database

import "database/sql"

// Migration is one schema step. DDL must be idempotent.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// Append new migrations with incrementing versions.
var migrations = []Migration{
	{
		Version:     1,
		Description: "runs and sections",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    run_date TEXT NOT NULL,
    topic_source TEXT NOT NULL,
    topics TEXT NOT NULL,
    output_path TEXT,
    html TEXT NOT NULL DEFAULT '',
    sent INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    error TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_sections (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    topic TEXT NOT NULL,
    article_count INTEGER NOT NULL DEFAULT 0,
    summary TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    error TEXT,
    PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_date ON runs(run_date);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "section article links",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS section_articles (
    run_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    rank INTEGER NOT NULL,
    title TEXT NOT NULL,
    url TEXT NOT NULL,
    source TEXT,
    published_at TEXT,
    PRIMARY KEY (run_id, position, rank),
    FOREIGN KEY (run_id, position) REFERENCES run_sections(run_id, position) ON DELETE CASCADE
);
`)
			return err
		},
	},
}

func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
