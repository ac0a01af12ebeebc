package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"postsync/internal/adapters/apify"
	"postsync/internal/adapters/localstorage"
	"postsync/internal/adapters/objectstore"
	"postsync/internal/adapters/runstore"
	"postsync/internal/adapters/sheets"
	"postsync/internal/config"
	"postsync/internal/core/ports"
	"postsync/internal/logger"
	"postsync/internal/metrics"
	"postsync/internal/normalize"
	"postsync/internal/service"
)

// app holds the wired dependencies of one command invocation.
type app struct {
	cfg          *config.Config
	logger       logger.Logger
	registry     *prometheus.Registry
	orchestrator *service.Orchestrator
	closers      []io.Closer
}

// newApp validates cfg and wires every adapter the configuration enables.
func newApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	schema, err := cfg.Schema()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: log, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	scraper, err := apify.NewClient(apify.Config{
		Token:        cfg.Apify.Token,
		BaseURL:      cfg.Apify.BaseURL,
		ActorID:      cfg.Apify.ActorID,
		ResultsLimit: cfg.Apify.ResultsLimit,
		SkipPinned:   cfg.Apify.SkipPinned,
		Timeout:      cfg.Apify.Timeout,
	})
	if err != nil {
		return nil, err
	}

	opts := []service.Option{service.WithMetrics(metrics.New(a.registry))}

	if cfg.Storage.Enabled {
		store, err := objectstore.New(ctx, objectstore.Config{
			Endpoint:        cfg.Storage.Endpoint,
			Region:          cfg.Storage.Region,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			Bucket:          cfg.Storage.Bucket,
			PublicBaseURL:   cfg.Storage.PublicBaseURL,
			Timeout:         cfg.Storage.Timeout,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, service.WithObjectStore(store))
		log.Info("Object storage enabled", logger.String("bucket", cfg.Storage.Bucket))
	} else {
		log.Warn("Object storage not configured, writing to the local file only")
	}

	if cfg.Sheets.Enabled {
		sheet, err := newSpreadsheet(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, service.WithSpreadsheet(sheet))
	}

	runs, err := a.newRunStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	opts = append(opts, service.WithRunStore(runs))

	a.orchestrator = service.NewOrchestrator(
		scraper,
		localstorage.NewLocalStorage(cfg.Local.BaseDir, cfg.Local.PublicBaseURL),
		normalize.New(loc, normalize.WithCategory(cfg.Category)),
		service.Config{
			Account:    cfg.Account,
			MaxRetries: cfg.Workflow.MaxRetries,
			RetryDelay: cfg.Workflow.RetryDelay,
			ObjectKey:  cfg.Storage.ObjectKey,
			Schema:     schema,

			MaxResumeFailures: cfg.Workflow.MaxResumeFailures,
		},
		log,
		opts...,
	)
	return a, nil
}

func newSpreadsheet(ctx context.Context, cfg *config.Config) (ports.SpreadsheetStore, error) {
	if cfg.GoogleSheetsEnabled() {
		return sheets.NewGoogleSheet(ctx, sheets.GoogleConfig{
			SpreadsheetID:   cfg.Sheets.SpreadsheetID,
			Range:           cfg.Sheets.Range,
			CredentialsJSON: []byte(cfg.Sheets.CredentialsJSON),
			Timeout:         cfg.Sheets.Timeout,
		})
	}
	return sheets.NewWorkbook(cfg.Sheets.WorkbookPath, sheets.SheetName(cfg.Sheets.Range)), nil
}

// newRunStore uses Redis when an address is configured so pending runs
// survive restarts; otherwise pending runs live in memory.
func (a *app) newRunStore(ctx context.Context) (ports.RunStore, error) {
	if a.cfg.Redis.Address == "" {
		return runstore.NewMemoryStore(), nil
	}
	client, err := runstore.NewRedisClient(ctx, runstore.RedisConfig{
		Address:  a.cfg.Redis.Address,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect run store: %w", err)
	}
	a.closers = append(a.closers, client)
	return runstore.NewRedisStore(client, a.cfg.Account, a.cfg.Redis.PendingTTL), nil
}

// Close releases connections opened by newApp.
func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
