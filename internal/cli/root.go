// Package cli implements the postsync command-line interface.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"postsync/internal/config"
	"postsync/internal/logger"
)

// options are the flags shared by every command.
type options struct {
	configFile string
	debug      bool
}

// NewRootCommand builds the postsync command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "postsync",
		Short: "Sync Instagram posts into a CSV artifact",
		Long: `postsync starts Apify scrape runs for an Instagram account, waits for them
to finish and merges the posts into a CSV file kept in object storage (or on
local disk), optionally mirrored to a spreadsheet.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default is ./config.yml or ./config/config.yml)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newStartCommand(opts),
		newStatusCommand(opts),
		newWorkflowCommand(opts),
		newServeCommand(opts),
		newScheduleCommand(opts),
	)
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// load reads the configuration and builds the logger.
func (o *options) load() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, nil, err
	}
	if o.debug {
		cfg.Logger.Level = "debug"
		cfg.Logger.Development = true
	}
	log, err := logger.New(logger.Config{
		Level:       cfg.Logger.Level,
		Development: cfg.Logger.Development,
		OutputPaths: cfg.Logger.OutputPaths,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, log, nil
}

// run loads config, wires the app and hands it to fn.
func (o *options) run(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	cfg, log, err := o.load()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("Failed to close resources", logger.Error(err))
		}
	}()
	return fn(ctx, a)
}
