package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ImportRun is one execution of the import pipeline, recorded in the
// operational store so runs are auditable after the fact.
type ImportRun struct {
	ID           int64      `json:"id" db:"id"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at" db:"finished_at"`
	Status       RunStatus  `json:"status" db:"status"`
	Trigger      string     `json:"trigger" db:"triggered_by"`
	Imported     int        `json:"imported" db:"imported"`
	Skipped      int        `json:"skipped" db:"skipped"`
	Errored      int        `json:"errored" db:"errored"`
	Batches      int        `json:"batches" db:"batches"`
	ErrorMessage string     `json:"error_message" db:"error_message"`
}

type ImportLog struct {
	ID        int64     `json:"id" db:"id"`
	RunID     *int64    `json:"run_id" db:"run_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Level     LogLevel  `json:"level" db:"level"`
	Message   string    `json:"message" db:"message"`
}
