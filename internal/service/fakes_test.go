package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"postsync/internal/core/domain"
)

// fakeScraper replays a scripted sequence of status checks.
type fakeScraper struct {
	mu       sync.Mutex
	runID    string
	statuses []domain.StatusResult
	checkErr error
	// unreachable fails checks of specific runs.
	unreachable map[string]error
	startErr    error
	starts   int
	checks   int
	checked  []string
	accounts []string
}

func (f *fakeScraper) Start(_ context.Context, account string) (domain.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts = append(f.accounts, account)
	if f.startErr != nil {
		return domain.Run{}, f.startErr
	}
	f.starts++
	return domain.Run{ID: f.runID, Status: domain.StatusReady, ConsoleURL: "https://console/" + f.runID}, nil
}

func (f *fakeScraper) CheckStatus(ctx context.Context, runID string) (domain.StatusResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, runID)
	if f.checkErr != nil {
		return domain.StatusResult{}, f.checkErr
	}
	if err, ok := f.unreachable[runID]; ok {
		return domain.StatusResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.StatusResult{}, fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}
	i := f.checks
	f.checks++
	if i >= len(f.statuses) {
		return f.statuses[len(f.statuses)-1], nil
	}
	return f.statuses[i], nil
}

type fakeObjectStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	readErr   error
	uploads   int
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}}
}

func (f *fakeObjectStore) Upload(_ context.Context, key string, body []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.objects[key] = append([]byte(nil), body...)
	return nil
}

func (f *fakeObjectStore) Download(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (f *fakeObjectStore) PublicURL(key string) string {
	return "https://storage.example/public/csv-files/" + key
}

type fakeFileStore struct {
	mu       sync.Mutex
	data     []byte
	written  bool
	writeErr error
}

func (f *fakeFileStore) Write(_ context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.data = append([]byte(nil), data...)
	f.written = true
	return nil
}

func (f *fakeFileStore) Read(_ context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.written {
		return nil, domain.ErrNotFound
	}
	return f.data, nil
}

func (f *fakeFileStore) URL() string { return "http://localhost:3000/data/instagram.csv" }

type fakeSheet struct {
	mu       sync.Mutex
	rows     [][]string
	writeErr error
	writes   int
}

func (f *fakeSheet) ReadRange(_ context.Context) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows, nil
}

func (f *fakeSheet) WriteRange(_ context.Context, rows [][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.writeErr != nil {
		return f.writeErr
	}
	f.rows = rows
	return nil
}

// recordingSleeper counts waits without blocking.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
	err    error
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return s.err
}

var errBoom = errors.New("boom")
