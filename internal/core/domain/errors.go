package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a missing or invalid credential or setting.
	ErrConfiguration = errors.New("configuration error")
	// ErrProviderUnavailable marks a transport-level failure talking to the scrape provider.
	ErrProviderUnavailable = errors.New("scrape provider unavailable")
	// ErrJobFailed marks a run the provider finished as FAILED or ABORTED.
	ErrJobFailed = errors.New("scrape job failed")
	// ErrJobTimedOut marks a polling budget exhausted while the run was still pending.
	ErrJobTimedOut = errors.New("scrape job still running")
	// ErrSinkWrite marks a rejected write to a persistence sink.
	ErrSinkWrite = errors.New("sink write failed")
	// ErrFormat marks row data that cannot be encoded or decoded.
	ErrFormat = errors.New("format error")
	// ErrNotFound marks an artifact that does not exist yet.
	ErrNotFound = errors.New("not found")
)

// JobFailedError carries the provider's error detail for a failed run.
type JobFailedError struct {
	RunID  string
	Status RunStatus
	Detail string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("run %s %s: %s", e.RunID, e.Status, e.Detail)
}

func (e *JobFailedError) Unwrap() error { return ErrJobFailed }

// JobTimedOutError is returned when polling stops before the run finished.
// The remote run keeps going; RunID can be used to resume.
type JobTimedOutError struct {
	RunID    string
	Status   RunStatus
	Attempts int
}

func (e *JobTimedOutError) Error() string {
	return fmt.Sprintf("run %s still %s after %d attempts", e.RunID, e.Status, e.Attempts)
}

func (e *JobTimedOutError) Unwrap() error { return ErrJobTimedOut }
