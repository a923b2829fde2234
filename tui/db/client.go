package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"
)

// Client reads the run ledger from SQLite and, when a Postgres URL is
// configured, the entry archive from Postgres. The daemon owns both;
// the TUI only reads.
type Client struct {
	pg     *pgxpool.Pool // nil when the archive is disabled
	sqlite *sql.DB
	ctx    context.Context
}

type SiteStats struct {
	SiteID         string
	LastRunAt      *time.Time
	LastRunStatus  *string
	TotalEntries   int
	SuccessRate    float64
	AvgRunDuration int
}

type ScrapeRun struct {
	ID              int64
	SiteID          string
	StartedAt       time.Time
	FinishedAt      *time.Time
	Status          string
	RecordsFound    int
	RecordsFiltered int
	RecordsMapped   int
	EntriesInserted int
	EntriesFailed   int
	ErrorsCount     int
}

type ScrapeLog struct {
	ID        int64
	RunID     *int64
	Timestamp time.Time
	Level     string
	Message   string
	SiteID    *string
}

type ArchivedEntry struct {
	ID        int64
	BatchID   string
	SiteID    string
	PermitNo  string
	Region    string
	Entry     string // raw JSON
	Uploaded  bool
	CreatedAt time.Time
}

type RegionStats struct {
	Region     string
	EntryCount int
	Uploaded   int
	LastEntry  *time.Time
}

func New(postgresURL, sqlitePath string) (*Client, error) {
	ctx := context.Background()

	sqliteDB, err := sql.Open("sqlite", sqlitePath)
	if err != nil {
		return nil, err
	}

	c := &Client{sqlite: sqliteDB, ctx: ctx}

	if postgresURL != "" {
		pgPool, err := pgxpool.New(ctx, postgresURL)
		if err != nil {
			sqliteDB.Close()
			return nil, err
		}
		c.pg = pgPool
	}
	return c, nil
}

func (c *Client) HasArchive() bool { return c.pg != nil }

func (c *Client) Close() error {
	if c.pg != nil {
		c.pg.Close()
	}
	return c.sqlite.Close()
}

func (c *Client) GetSiteStats() ([]SiteStats, error) {
	rows, err := c.sqlite.Query(`
		WITH latest_runs AS (
			SELECT site_id, started_at, status,
				ROW_NUMBER() OVER (PARTITION BY site_id ORDER BY started_at DESC) AS rn
			FROM scrape_runs
		),
		run_stats AS (
			SELECT
				site_id,
				COUNT(*) AS total_runs,
				SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) AS successful_runs,
				CAST(AVG(strftime('%s', finished_at) - strftime('%s', started_at)) AS INTEGER) AS avg_duration,
				SUM(COALESCE(entries_inserted, 0)) AS total_entries
			FROM scrape_runs
			WHERE finished_at IS NOT NULL
			GROUP BY site_id
		)
		SELECT
			lr.site_id,
			lr.started_at,
			lr.status,
			COALESCE(rs.total_entries, 0),
			COALESCE(CAST(rs.successful_runs AS REAL) / NULLIF(rs.total_runs, 0), 0),
			COALESCE(rs.avg_duration, 0)
		FROM latest_runs lr
		LEFT JOIN run_stats rs ON lr.site_id = rs.site_id
		WHERE lr.rn = 1
		ORDER BY lr.site_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []SiteStats
	for rows.Next() {
		var s SiteStats
		var lastRunAt, status *string
		err := rows.Scan(&s.SiteID, &lastRunAt, &status,
			&s.TotalEntries, &s.SuccessRate, &s.AvgRunDuration)
		if err != nil {
			return nil, err
		}
		if lastRunAt != nil {
			if t, err := parseSQLiteTime(*lastRunAt); err == nil {
				s.LastRunAt = &t
			}
		}
		s.LastRunStatus = status
		stats = append(stats, s)
	}
	return stats, nil
}

func (c *Client) GetRecentRuns(limit int) ([]ScrapeRun, error) {
	rows, err := c.sqlite.Query(`
		SELECT id, site_id, started_at, finished_at, status,
			COALESCE(records_found, 0), COALESCE(records_filtered, 0),
			COALESCE(records_mapped, 0), COALESCE(entries_inserted, 0),
			COALESCE(entries_failed, 0), COALESCE(errors_count, 0)
		FROM scrape_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ScrapeRun
	for rows.Next() {
		var r ScrapeRun
		var started string
		var finished *string
		err := rows.Scan(&r.ID, &r.SiteID, &started, &finished, &r.Status,
			&r.RecordsFound, &r.RecordsFiltered, &r.RecordsMapped,
			&r.EntriesInserted, &r.EntriesFailed, &r.ErrorsCount)
		if err != nil {
			return nil, err
		}
		r.StartedAt, _ = parseSQLiteTime(started)
		if finished != nil {
			if t, err := parseSQLiteTime(*finished); err == nil {
				r.FinishedAt = &t
			}
		}
		runs = append(runs, r)
	}
	return runs, nil
}

func (c *Client) GetRecentLogs(limit int, level *string) ([]ScrapeLog, error) {
	var rows *sql.Rows
	var err error

	if level != nil && *level != "ALL" {
		rows, err = c.sqlite.Query(`
			SELECT id, run_id, timestamp, level, message, site_id
			FROM scrape_logs
			WHERE UPPER(level) = UPPER(?)
			ORDER BY timestamp DESC
			LIMIT ?
		`, *level, limit)
	} else {
		rows, err = c.sqlite.Query(`
			SELECT id, run_id, timestamp, level, message, site_id
			FROM scrape_logs
			ORDER BY timestamp DESC
			LIMIT ?
		`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []ScrapeLog
	for rows.Next() {
		var l ScrapeLog
		var ts string
		err := rows.Scan(&l.ID, &l.RunID, &ts, &l.Level, &l.Message, &l.SiteID)
		if err != nil {
			return nil, err
		}
		l.Timestamp, _ = parseSQLiteTime(ts)
		logs = append(logs, l)
	}
	return logs, nil
}

func (c *Client) GetEntries(limit, offset int, pendingOnly bool) ([]ArchivedEntry, error) {
	if c.pg == nil {
		return nil, nil
	}

	query := `
		SELECT id, batch_id::text, site_id, permit_no,
			COALESCE(region, ''), entry::text, uploaded, created_at
		FROM archived_entries
	`
	if pendingOnly {
		query += ` WHERE NOT uploaded`
	}
	query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := c.pg.Query(c.ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ArchivedEntry
	for rows.Next() {
		var e ArchivedEntry
		err := rows.Scan(&e.ID, &e.BatchID, &e.SiteID, &e.PermitNo,
			&e.Region, &e.Entry, &e.Uploaded, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (c *Client) GetEntryCount() (int, error) {
	if c.pg == nil {
		return 0, nil
	}
	var count int
	err := c.pg.QueryRow(c.ctx, "SELECT COUNT(*) FROM archived_entries").Scan(&count)
	return count, err
}

func (c *Client) GetPendingCount() (int, error) {
	if c.pg == nil {
		return 0, nil
	}
	var count int
	err := c.pg.QueryRow(c.ctx, "SELECT COUNT(*) FROM archived_entries WHERE NOT uploaded").Scan(&count)
	return count, err
}

func (c *Client) GetRegionStats() ([]RegionStats, error) {
	if c.pg == nil {
		return nil, nil
	}
	rows, err := c.pg.Query(c.ctx, `
		SELECT
			COALESCE(region, 'Unknown'),
			COUNT(*)::int,
			COUNT(*) FILTER (WHERE uploaded)::int,
			MAX(created_at)
		FROM archived_entries
		GROUP BY region
		ORDER BY COUNT(*) DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []RegionStats
	for rows.Next() {
		var s RegionStats
		err := rows.Scan(&s.Region, &s.EntryCount, &s.Uploaded, &s.LastEntry)
		if err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, nil
}

// parseSQLiteTime handles both the RFC 3339 strings the daemon writes
// and the space-separated form sqlite's datetime() produces.
func parseSQLiteTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", s)
}
