package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// ScrapeRun is the ledger row for one site's pass through the pipeline.
type ScrapeRun struct {
	ID              int64      `json:"id" db:"id"`
	SiteID          string     `json:"site_id" db:"site_id"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	FinishedAt      *time.Time `json:"finished_at" db:"finished_at"`
	Status          RunStatus  `json:"status" db:"status"`
	RecordsFound    int        `json:"records_found" db:"records_found"`
	RecordsFiltered int        `json:"records_filtered" db:"records_filtered"`
	RecordsMapped   int        `json:"records_mapped" db:"records_mapped"`
	EntriesInserted int        `json:"entries_inserted" db:"entries_inserted"`
	EntriesFailed   int        `json:"entries_failed" db:"entries_failed"`
	ErrorsCount     int        `json:"errors_count" db:"errors_count"`
}

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

type ScrapeLog struct {
	ID        int64     `json:"id" db:"id"`
	RunID     *int64    `json:"run_id" db:"run_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Level     LogLevel  `json:"level" db:"level"`
	Message   string    `json:"message" db:"message"`
	SiteID    string    `json:"site_id" db:"site_id"`
}
