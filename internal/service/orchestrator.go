package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"postsync/internal/core/domain"
	"postsync/internal/core/ports"
	"postsync/internal/csvcodec"
	"postsync/internal/logger"
	"postsync/internal/metrics"
	"postsync/internal/normalize"
)

const (
	DefaultMaxRetries = 2
	DefaultRetryDelay = 3 * time.Second
	DefaultObjectKey  = "instagram-output.csv"
	// DefaultMaxResumeFailures is how many scheduled resumes of a pending run
	// may fail to reach it before the run is abandoned.
	DefaultMaxResumeFailures = 3
)

// Config holds the orchestrator settings resolved at startup.
type Config struct {
	Account    string
	MaxRetries int
	RetryDelay time.Duration
	ObjectKey  string
	// Schema is used when no artifact exists yet.
	Schema            csvcodec.Schema
	MaxResumeFailures int
}

// WorkflowRequest parameterizes one RunWorkflow call. Zero values fall back to Config.
type WorkflowRequest struct {
	RunID      string
	MaxRetries int
	RetryDelay time.Duration
}

// Orchestrator coordinates the scrape job lifecycle and the persistence pipeline.
type Orchestrator struct {
	scraper    ports.Scraper
	files      ports.FileStore
	objects    ports.ObjectStore
	sheet      ports.SpreadsheetStore
	runs       ports.RunStore
	normalizer *normalize.Normalizer
	metrics    *metrics.Metrics
	logger     logger.Logger
	cfg        Config

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
	newID func() string
}

// Option configures optional collaborators of an Orchestrator.
type Option func(*Orchestrator)

// WithObjectStore enables the primary object-storage sink.
func WithObjectStore(s ports.ObjectStore) Option {
	return func(o *Orchestrator) { o.objects = s }
}

// WithSpreadsheet enables the secondary spreadsheet sink.
func WithSpreadsheet(s ports.SpreadsheetStore) Option {
	return func(o *Orchestrator) { o.sheet = s }
}

// WithRunStore lets ResumeOrStart remember runs that were still pending.
func WithRunStore(s ports.RunStore) Option {
	return func(o *Orchestrator) { o.runs = s }
}

// WithMetrics records workflow metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithSleeper replaces the wait between status checks.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// WithClock replaces the clock used for completion times.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates a new Orchestrator. The local file store is always
// required since it is the fallback for the primary sink.
func NewOrchestrator(
	scraper ports.Scraper,
	files ports.FileStore,
	normalizer *normalize.Normalizer,
	cfg Config,
	log logger.Logger,
	opts ...Option,
) *Orchestrator {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.ObjectKey == "" {
		cfg.ObjectKey = DefaultObjectKey
	}
	if cfg.MaxResumeFailures <= 0 {
		cfg.MaxResumeFailures = DefaultMaxResumeFailures
	}
	if cfg.Schema.IsZero() {
		cfg.Schema = csvcodec.Compact
	}
	if log == nil {
		log = logger.NewNop()
	}

	o := &Orchestrator{
		scraper:    scraper,
		files:      files,
		normalizer: normalizer,
		logger:     log,
		cfg:        cfg,
		sleep:      sleepContext,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// StartRun launches a scrape run for the configured account.
func (o *Orchestrator) StartRun(ctx context.Context) (domain.Run, error) {
	run, err := o.scraper.Start(ctx, o.cfg.Account)
	if err != nil {
		o.logger.Error("Failed to start scrape run", logger.String("account", o.cfg.Account), logger.Error(err))
		return domain.Run{}, fmt.Errorf("failed to start scrape: %w", err)
	}
	o.logger.Info("Scrape run started",
		logger.String("run_id", run.ID),
		logger.String("status", string(run.Status)),
		logger.String("console_url", run.ConsoleURL),
	)
	return run, nil
}

// CheckRun performs a single status check. A succeeded run is persisted;
// a failed run returns *domain.JobFailedError; a pending run returns a
// result in StatePolling with no error.
func (o *Orchestrator) CheckRun(ctx context.Context, runID string) (*domain.WorkflowResult, error) {
	result := &domain.WorkflowResult{InvocationID: o.newID(), RunID: runID, State: string(StateStarted), Attempts: 1}
	log := o.logger.With(logger.String("invocation_id", result.InvocationID), logger.String("run_id", runID))

	status, err := o.scraper.CheckStatus(ctx, runID)
	if err != nil {
		log.Error("Status check failed", logger.Error(err))
		return result, fmt.Errorf("failed to check run %s: %w", runID, err)
	}
	o.metrics.StatusChecked(string(status.Status))
	result.Status = status.Status

	state, err := Transition(StateStarted, Observe(status.Status), 1, 2)
	if err != nil {
		return result, err
	}
	return o.settle(ctx, log, result, state, status)
}

// RunWorkflow starts a run (or resumes req.RunID) and polls it for at most
// MaxRetries checks, sleeping RetryDelay between checks. The remote run is
// never cancelled; on time-out the returned *domain.JobTimedOutError carries
// the run ID to resume with.
func (o *Orchestrator) RunWorkflow(ctx context.Context, req WorkflowRequest) (*domain.WorkflowResult, error) {
	maxAttempts := req.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = o.cfg.MaxRetries
	}
	delay := req.RetryDelay
	if delay <= 0 {
		delay = o.cfg.RetryDelay
	}

	started := o.now()
	result := &domain.WorkflowResult{InvocationID: o.newID(), RunID: req.RunID, State: string(StateNotStarted)}
	log := o.logger.With(logger.String("invocation_id", result.InvocationID))

	defer func() {
		o.metrics.WorkflowFinished(result.State, o.now().Sub(started))
	}()

	if result.RunID == "" {
		run, err := o.StartRun(ctx)
		if err != nil {
			return result, err
		}
		result.RunID = run.ID
		result.Status = run.Status
	} else {
		log.Info("Resuming scrape run", logger.String("run_id", result.RunID))
	}
	log = log.With(logger.String("run_id", result.RunID))

	state, err := Transition(StateNotStarted, ObservedStarted, 0, maxAttempts)
	if err != nil {
		return result, err
	}
	result.State = string(state)

	var status domain.StatusResult
	for attempt := 1; !state.Terminal(); attempt++ {
		if attempt > 1 {
			if err := o.sleep(ctx, delay); err != nil {
				state, _ = Transition(state, ObservedCancelled, attempt, maxAttempts)
				break
			}
		}

		result.Attempts = attempt
		log.Debug("Checking run status", logger.Int("attempt", attempt), logger.Int("max_attempts", maxAttempts))

		status, err = o.scraper.CheckStatus(ctx, result.RunID)
		if err != nil {
			if ctx.Err() != nil {
				state, _ = Transition(state, ObservedCancelled, attempt, maxAttempts)
				break
			}
			log.Error("Status check failed", logger.Int("attempt", attempt), logger.Error(err))
			return result, fmt.Errorf("failed to check run %s: %w", result.RunID, err)
		}
		o.metrics.StatusChecked(string(status.Status))
		result.Status = status.Status

		state, err = Transition(state, Observe(status.Status), attempt, maxAttempts)
		if err != nil {
			return result, err
		}
		if state == StatePolling {
			log.Info("Run still in progress",
				logger.String("status", string(status.Status)),
				logger.Int("attempt", attempt),
				logger.Duration("retry_delay", delay),
			)
		}
	}

	return o.settle(ctx, log, result, state, status)
}

// ResumeOrStart runs the workflow for the remembered pending run, or a new
// one. A run still pending afterwards is remembered for the next call;
// any terminal outcome forgets it. A pending run the provider no longer
// knows, or one that could not be reached MaxResumeFailures times in a row,
// is abandoned and a new run is started in the same call.
func (o *Orchestrator) ResumeOrStart(ctx context.Context) (*domain.WorkflowResult, error) {
	if o.runs == nil {
		return o.RunWorkflow(ctx, WorkflowRequest{})
	}

	pending, err := o.runs.Pending(ctx)
	if err != nil {
		o.logger.Warn("Failed to read pending run, starting a new one", logger.Error(err))
		pending = ""
	}

	result, runErr := o.RunWorkflow(ctx, WorkflowRequest{RunID: pending})
	if pending != "" && o.abandonPending(ctx, pending, result, runErr) {
		result, runErr = o.RunWorkflow(ctx, WorkflowRequest{})
	}

	// ctx may be done when polling was cut short; the bookkeeping must still happen.
	storeCtx := context.WithoutCancel(ctx)
	switch {
	case errors.Is(runErr, domain.ErrJobTimedOut):
		if err := o.runs.SavePending(storeCtx, result.RunID); err != nil {
			o.logger.Warn("Failed to remember pending run", logger.String("run_id", result.RunID), logger.Error(err))
		}
	case State(result.State).Terminal():
		if err := o.runs.ClearPending(storeCtx); err != nil {
			o.logger.Warn("Failed to clear pending run", logger.String("run_id", result.RunID), logger.Error(err))
		}
	}
	return result, runErr
}

// abandonPending reports whether the pending run should be replaced after
// its resume ended with runErr, and forgets it if so. Only failures to reach
// the run count; a timed-out or terminal resume is handled by the caller.
func (o *Orchestrator) abandonPending(
	ctx context.Context,
	runID string,
	result *domain.WorkflowResult,
	runErr error,
) bool {
	if runErr == nil || ctx.Err() != nil || State(result.State).Terminal() ||
		errors.Is(runErr, domain.ErrJobTimedOut) || !errors.Is(runErr, domain.ErrProviderUnavailable) {
		return false
	}

	storeCtx := context.WithoutCancel(ctx)
	log := o.logger.With(logger.String("run_id", runID))

	if !errors.Is(runErr, domain.ErrNotFound) {
		failures, err := o.runs.RecordFailure(storeCtx)
		if err != nil {
			log.Warn("Failed to record pending run failure", logger.Error(err))
			return false
		}
		if failures < o.cfg.MaxResumeFailures {
			log.Warn("Pending run unreachable, will retry on next call",
				logger.Int("failures", failures),
				logger.Int("max_failures", o.cfg.MaxResumeFailures),
			)
			return false
		}
	}

	log.Warn("Abandoning pending run, starting a new one", logger.Error(runErr))
	if err := o.runs.ClearPending(storeCtx); err != nil {
		log.Warn("Failed to clear pending run", logger.Error(err))
	}
	return true
}

// settle turns the final state into the invocation result.
func (o *Orchestrator) settle(
	ctx context.Context,
	log logger.Logger,
	result *domain.WorkflowResult,
	state State,
	status domain.StatusResult,
) (*domain.WorkflowResult, error) {
	result.State = string(state)

	switch state {
	case StateSucceeded:
		return o.finishSucceeded(ctx, log, result, status)

	case StateFailed:
		result.ErrorDetail = status.ErrorDetail
		result.Message = fmt.Sprintf("Run %s: %s", status.Status, status.ErrorDetail)
		result.CompletedAt = o.now().UTC()
		log.Error("Scrape run failed",
			logger.String("status", string(status.Status)),
			logger.String("detail", status.ErrorDetail),
		)
		return result, &domain.JobFailedError{RunID: result.RunID, Status: status.Status, Detail: status.ErrorDetail}

	case StateTimedOut:
		result.Message = fmt.Sprintf("Run still in progress after %d attempts. Run ID: %s", result.Attempts, result.RunID)
		log.Warn("Polling budget exhausted, run continues remotely",
			logger.String("status", string(result.Status)),
			logger.Int("attempts", result.Attempts),
		)
		return result, &domain.JobTimedOutError{RunID: result.RunID, Status: result.Status, Attempts: result.Attempts}

	default:
		result.Message = fmt.Sprintf("Run is %s", result.Status)
		return result, nil
	}
}

func (o *Orchestrator) finishSucceeded(
	ctx context.Context,
	log logger.Logger,
	result *domain.WorkflowResult,
	status domain.StatusResult,
) (*domain.WorkflowResult, error) {
	if len(status.Posts) == 0 {
		result.Success = true
		result.Message = "No posts found"
		result.CompletedAt = o.now().UTC()
		log.Info("Run succeeded without posts")
		return result, nil
	}

	log.Info("Run succeeded, persisting posts", logger.Int("posts", len(status.Posts)))
	persisted, err := o.persist(ctx, log, status.Posts)
	result.Persist = persisted
	if err != nil {
		result.Message = err.Error()
		return result, err
	}

	result.Success = true
	result.Message = fmt.Sprintf("Successfully scraped %d posts", len(status.Posts))
	result.CompletedAt = o.now().UTC()
	log.Info("Workflow completed",
		logger.Int("processed", persisted.Processed),
		logger.Int("inserted", persisted.Inserted),
		logger.Int("skipped", persisted.Skipped),
		logger.String("artifact_url", persisted.ArtifactURL),
		logger.Bool("used_fallback", persisted.UsedFallback),
	)
	return result, nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
