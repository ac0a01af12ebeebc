// Package scheduler triggers the sync workflow on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"postsync/internal/core/domain"
	"postsync/internal/logger"
)

// Runner runs one scheduled workflow, resuming a pending run if there is one.
type Runner interface {
	ResumeOrStart(ctx context.Context) (*domain.WorkflowResult, error)
}

// Scheduler wraps robfig/cron. Ticks that arrive while a run is still in
// progress are skipped.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	spec    string
	timeout time.Duration
	logger  logger.Logger
}

// New creates a Scheduler firing runner on spec (standard five-field cron or
// descriptors like "@every 15m") evaluated in loc. A positive timeout bounds
// each run.
func New(runner Runner, spec string, loc *time.Location, timeout time.Duration, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner:  runner,
		spec:    spec,
		timeout: timeout,
		logger:  log,
	}
}

// Start registers the job and starts the cron loop. ctx is handed to every run.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("%w: invalid schedule %q: %w", domain.ErrConfiguration, s.spec, err)
	}
	s.cron.Start()
	s.logger.Info("Scheduler started", logger.String("spec", s.spec))
	return nil
}

// Stop stops scheduling and waits for a running job to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out while a run was in progress")
	}
}

// RunOnce runs the workflow a single time and logs the outcome.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := s.runner.ResumeOrStart(ctx)
	switch {
	case err == nil:
		s.logger.Info("Scheduled run finished",
			logger.String("run_id", res.RunID),
			logger.String("message", res.Message),
			logger.Int("inserted", res.Persist.Inserted),
		)
	case errors.Is(err, domain.ErrJobTimedOut):
		s.logger.Info("Scheduled run still pending, will resume on next tick", logger.Error(err))
	default:
		s.logger.Error("Scheduled run failed", logger.Error(err))
	}
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, fields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(fields(keysAndValues), logger.Error(err))...)
}

func fields(keysAndValues []any) []logger.Field {
	out := make([]logger.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out = append(out, logger.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return out
}
