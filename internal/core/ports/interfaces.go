package ports

import (
	"context"

	"postsync/internal/core/domain"
)

// Scraper defines the contract for the asynchronous scrape provider.
type Scraper interface {
	// Start launches a scrape run for the account and returns without waiting.
	Start(ctx context.Context, account string) (domain.Run, error)

	// CheckStatus reports the run's current status.
	// When the run has succeeded, the result also carries the dataset posts.
	CheckStatus(ctx context.Context, runID string) (domain.StatusResult, error)
}

// ObjectStore is the primary sink holding the canonical CSV blob.
type ObjectStore interface {
	// Upload writes body under key, overwriting any existing object.
	Upload(ctx context.Context, key string, body []byte, contentType string) error

	// Download returns the object stored under key.
	// Returns domain.ErrNotFound when the object does not exist.
	Download(ctx context.Context, key string) ([]byte, error)

	// PublicURL returns a stable fetchable URL for key.
	PublicURL(key string) string
}

// FileStore is the local filesystem fallback sink.
type FileStore interface {
	// Write replaces the stored CSV, creating parent directories as needed.
	Write(ctx context.Context, data []byte) error

	// Read returns the stored CSV. Returns domain.ErrNotFound if nothing was written yet.
	Read(ctx context.Context) ([]byte, error)

	// URL returns where the stored CSV is served from.
	URL() string
}

// SpreadsheetStore is the optional secondary sink.
type SpreadsheetStore interface {
	// ReadRange returns all rows of the configured range, header first.
	ReadRange(ctx context.Context) ([][]string, error)

	// WriteRange replaces the range contents with rows, header first.
	WriteRange(ctx context.Context, rows [][]string) error
}

// RunStore remembers a run that was still pending when polling stopped,
// so the next scheduled trigger resumes it instead of starting a new one.
type RunStore interface {
	Pending(ctx context.Context) (string, error)
	// SavePending stores runID and resets its failure count.
	SavePending(ctx context.Context, runID string) error
	// ClearPending forgets the pending run and its failure count.
	ClearPending(ctx context.Context) error
	// RecordFailure counts a resume of the pending run that could not reach
	// it and returns the count so far.
	RecordFailure(ctx context.Context) (int, error)
}
