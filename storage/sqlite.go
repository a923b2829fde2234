// Package storage persists run history locally and, optionally,
// archives mapped entries to Postgres. Stage artifacts on disk are
// handled here too.
package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ys-23412/sbcontest2/models"
)

// SQLiteStore is the local run ledger: one row per site run plus a log
// stream. Nothing in the pipeline reads it back; it exists for
// operators.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scrape_runs (
		id INTEGER PRIMARY KEY,
		site_id TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		records_found INTEGER,
		records_filtered INTEGER,
		records_mapped INTEGER,
		entries_inserted INTEGER,
		entries_failed INTEGER,
		errors_count INTEGER
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		site_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_logs_run ON scrape_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON scrape_runs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_site ON scrape_runs(site_id, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.ScrapeRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO scrape_runs (site_id, started_at, status)
		VALUES (?, ?, ?)
	`, run.SiteID, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.ScrapeRun) error {
	_, err := s.db.Exec(`
		UPDATE scrape_runs
		SET finished_at = ?, status = ?, records_found = ?, records_filtered = ?,
		    records_mapped = ?, entries_inserted = ?, entries_failed = ?, errors_count = ?
		WHERE id = ?
	`, run.FinishedAt, run.Status, run.RecordsFound, run.RecordsFiltered,
		run.RecordsMapped, run.EntriesInserted, run.EntriesFailed, run.ErrorsCount, run.ID)
	return err
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, siteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO scrape_logs (run_id, timestamp, level, message, site_id)
		VALUES (?, ?, ?, ?, ?)
	`, runID, time.Now(), level, message, siteID)
	return err
}

// GetLastRunTime returns when the site last started a completed run.
// No prior run yields a zero time.
func (s *SQLiteStore) GetLastRunTime(siteID string) (time.Time, error) {
	var startedAt sql.NullTime
	err := s.db.QueryRow(`
		SELECT started_at FROM scrape_runs
		WHERE site_id = ? AND status = ?
		ORDER BY started_at DESC LIMIT 1
	`, siteID, models.RunStatusCompleted).Scan(&startedAt)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return startedAt.Time, nil
}

// RecentRuns lists the latest runs across all sites, newest first.
func (s *SQLiteStore) RecentRuns(limit int) ([]models.ScrapeRun, error) {
	rows, err := s.db.Query(`
		SELECT id, site_id, started_at, finished_at, status,
		       COALESCE(records_found, 0), COALESCE(records_filtered, 0),
		       COALESCE(records_mapped, 0), COALESCE(entries_inserted, 0),
		       COALESCE(entries_failed, 0), COALESCE(errors_count, 0)
		FROM scrape_runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ScrapeRun
	for rows.Next() {
		var run models.ScrapeRun
		var finished sql.NullTime
		if err := rows.Scan(&run.ID, &run.SiteID, &run.StartedAt, &finished, &run.Status,
			&run.RecordsFound, &run.RecordsFiltered, &run.RecordsMapped,
			&run.EntriesInserted, &run.EntriesFailed, &run.ErrorsCount); err != nil {
			return nil, err
		}
		if finished.Valid {
			run.FinishedAt = &finished.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
