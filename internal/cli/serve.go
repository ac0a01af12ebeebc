package cli

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"postsync/internal/api"
	"postsync/internal/core/domain"
	"postsync/internal/logger"
	"postsync/internal/scheduler"
)

// runMargin covers starting the run and persisting its posts.
const runMargin = 2 * time.Minute

// responseMargin is kept free of polling within the server write timeout.
const responseMargin = 30 * time.Second

func newServeCommand(opts *options) *cobra.Command {
	var withSchedule bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scrape HTTP API",
		Long: `Serve POST|GET /api/scrape, /api/scrape/status and /api/scrape/workflow,
plus /health and /metrics. With --schedule the cron trigger runs in the
same process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts, withSchedule)
		},
	}
	cmd.Flags().BoolVar(&withSchedule, "schedule", false, "also run the cron trigger")
	return cmd
}

func serve(ctx context.Context, opts *options, withSchedule bool) error {
	cfg, log, err := opts.load()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if !cfg.Logger.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	var (
		svc      api.Workflows
		gatherer prometheus.Gatherer
		sched    *scheduler.Scheduler
	)
	a, err := newApp(ctx, cfg, log)
	switch {
	case err == nil:
		defer func() { _ = a.Close() }()
		svc, gatherer = a.orchestrator, a.registry
		if withSchedule {
			sched = a.newScheduler(cfg.Schedule.Spec)
		}
	case errors.Is(err, domain.ErrConfiguration):
		// Keep answering so callers see the configuration error per request.
		log.Error("Configuration incomplete, API calls will fail", logger.Error(err))
		svc = api.Unavailable(err)
	default:
		return err
	}

	handler := api.NewHandler(svc, api.WithWorkflowBudget(workflowBudget(cfg.Server.WriteTimeout)))
	router := api.NewRouter(handler, log, gatherer)
	srv := api.NewServer(api.ServerConfig{
		Address:         cfg.Server.Address,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router, log)

	if sched != nil {
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer stopScheduler(ctx, sched, cfg.Server.ShutdownTimeout)
	}

	errCh := srv.StartAsync()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return srv.Shutdown(context.WithoutCancel(ctx))
}

// workflowBudget leaves responseMargin of writeTimeout for persisting and
// answering, and at least half of it for polling.
func workflowBudget(writeTimeout time.Duration) time.Duration {
	if writeTimeout <= 0 {
		return 0
	}
	return max(writeTimeout-responseMargin, writeTimeout/2)
}

func newScheduleCommand(opts *options) *cobra.Command {
	var (
		spec   string
		runNow bool
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the workflow on a cron schedule",
		Long: `Run the workflow on a cron schedule until interrupted. A run still pending
when its polling budget is exhausted is resumed on the next tick.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd.Context(), func(ctx context.Context, a *app) error {
				if spec == "" {
					spec = a.cfg.Schedule.Spec
				}
				sched := a.newScheduler(spec)
				if err := sched.Start(ctx); err != nil {
					return err
				}
				if runNow {
					go sched.RunOnce(ctx)
				}
				<-ctx.Done()
				stopScheduler(ctx, sched, a.cfg.Server.ShutdownTimeout)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&spec, "spec", "", "cron spec, e.g. \"*/15 * * * *\" or \"@every 15m\" (default from config)")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "run once immediately before the first tick")
	return cmd
}

// newScheduler builds a cron scheduler in the configured time zone. Each run
// is bounded by the polling budget plus a margin for persistence.
func (a *app) newScheduler(spec string) *scheduler.Scheduler {
	loc, _ := a.cfg.Location()
	budget := time.Duration(a.cfg.Workflow.MaxRetries)*(a.cfg.Workflow.RetryDelay+a.cfg.Apify.Timeout) + runMargin
	return scheduler.New(a.orchestrator, spec, loc, budget, a.logger)
}

// stopScheduler waits up to timeout for a running job after ctx is done.
func stopScheduler(ctx context.Context, sched *scheduler.Scheduler, timeout time.Duration) {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	sched.Stop(stopCtx)
}
