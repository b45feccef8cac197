package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// ScrapeRun records one pipeline invocation across all sources.
type ScrapeRun struct {
	ID            int64      `json:"id" db:"id"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at" db:"finished_at"`
	Status        RunStatus  `json:"status" db:"status"`
	ListingsFound int        `json:"listings_found" db:"listings_found"`
	SourcesOK     int        `json:"sources_ok" db:"sources_ok"`
	SourcesFailed int        `json:"sources_failed" db:"sources_failed"`
	UsedFallback  bool       `json:"used_fallback" db:"used_fallback"`
	ErrorMessage  string     `json:"error_message" db:"error_message"`
}
