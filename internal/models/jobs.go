package models

import "time"

// JobStatus is the scan job lifecycle state.
type JobStatus string

// Job status constants. Transitions are monotonic:
// pending -> running -> {completed, failed, cancelled}. Terminal states are frozen.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal returns true for completed, failed, and cancelled.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// ScanProgress tracks a running job's counters. Mutated only by the job's
// own workers; read-only to everyone else.
type ScanProgress struct {
	Processed    int      `json:"processed"`
	Total        int      `json:"total"`
	APICallsMade int      `json:"api_calls_made"`
	Errors       []string `json:"errors,omitempty"`
}

// ScanJob tracks one batch scan request. Exclusively owned and mutated by
// the scanner manager.
type ScanJob struct {
	ID          string       `json:"id"`
	Indices     []string     `json:"indices"`
	Filters     *FilterSpec  `json:"filters,omitempty"`
	Status      JobStatus    `json:"status"`
	Progress    ScanProgress `json:"progress"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   time.Time    `json:"started_at,omitzero"`
	CompletedAt time.Time    `json:"completed_at,omitzero"`
	Error       string       `json:"error,omitempty"`

	// Queue holds the deduplicated, index-interleaved symbol order.
	Queue []string `json:"queue"`

	// PartialResults is append-only while running and frozen at a
	// terminal transition.
	PartialResults []ScreenResult `json:"partial_results"`
}

// JobStatusView is the read-only snapshot returned by GetStatus.
type JobStatusView struct {
	ID          string       `json:"id"`
	Indices     []string     `json:"indices"`
	Status      JobStatus    `json:"status"`
	Progress    ScanProgress `json:"progress"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   time.Time    `json:"started_at,omitzero"`
	CompletedAt time.Time    `json:"completed_at,omitzero"`
	Error       string       `json:"error,omitempty"`
	Matched     int          `json:"matched"`
}

// JobEvent is published to progress subscribers when job state changes.
type JobEvent struct {
	Type      string       `json:"type"` // "job_created", "job_started", "job_progress", "job_completed", "job_failed", "job_cancelled"
	JobID     string       `json:"job_id"`
	Status    JobStatus    `json:"status"`
	Progress  ScanProgress `json:"progress"`
	Matched   int          `json:"matched"`
	Timestamp time.Time    `json:"timestamp"`
}
