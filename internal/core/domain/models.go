package domain

import (
	"strings"
	"time"
)

// RawPost is a single post record as returned by the provider dataset.
// Field names vary between actor versions, so it stays an open mapping.
type RawPost map[string]any

// Row is the canonical, normalized record for one post.
type Row struct {
	PostedAt     time.Time `json:"posted_at"`
	CapturedTime string    `json:"captured_time"` // HH:MM:SS, the date lives in Date
	Date         string    `json:"date"`
	Weekday      string    `json:"weekday"`
	Month        string    `json:"month"`
	Category     string    `json:"category"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Caption      string    `json:"caption"`
	PostURL      string    `json:"post_url"`
}

// RunStatus is the provider-side status of a scrape run.
type RunStatus string

const (
	StatusReady     RunStatus = "READY"
	StatusRunning   RunStatus = "RUNNING"
	StatusSucceeded RunStatus = "SUCCEEDED"
	StatusFailed    RunStatus = "FAILED"
	StatusAborting  RunStatus = "ABORTING"
	StatusAborted   RunStatus = "ABORTED"
	StatusTimingOut RunStatus = "TIMING-OUT"
	StatusTimedOut  RunStatus = "TIMED-OUT"
)

// Failed reports whether the run ended without producing a dataset.
// The check is case-insensitive because status checks report failures lower-cased.
func (s RunStatus) Failed() bool {
	switch RunStatus(strings.ToUpper(string(s))) {
	case StatusFailed, StatusAborted, StatusTimedOut:
		return true
	}
	return false
}

// Succeeded reports whether the run finished with a dataset.
func (s RunStatus) Succeeded() bool {
	return s == StatusSucceeded
}

// Terminal reports whether the provider will no longer change the status.
func (s RunStatus) Terminal() bool {
	return s.Succeeded() || s.Failed()
}

// Run identifies one asynchronous scrape execution.
type Run struct {
	ID         string    `json:"run_id"`
	Status     RunStatus `json:"status"`
	ConsoleURL string    `json:"console_url"`
}

// StatusResult is the outcome of a single status check.
type StatusResult struct {
	Status      RunStatus
	Posts       []RawPost // only set when Status is SUCCEEDED
	ErrorDetail string    // only set when the run failed
	FinishedAt  time.Time
}

// PersistResult describes what the merge pipeline wrote.
type PersistResult struct {
	Processed     int
	Inserted      int
	Skipped       int
	ArtifactURL   string
	UsedFallback  bool
	SheetsUpdated bool
	SheetsMessage string
}

// WorkflowResult holds the outcome of one orchestrator invocation.
type WorkflowResult struct {
	InvocationID string
	RunID        string
	State        string
	Status       RunStatus
	Attempts     int
	Success      bool
	ErrorDetail  string
	Message      string
	Persist      PersistResult
	CompletedAt  time.Time
}
