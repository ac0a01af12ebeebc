package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"postsync/internal/service"
)

func newStartCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start a scrape run and print its ID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd.Context(), func(ctx context.Context, a *app) error {
				run, err := a.orchestrator.StartRun(ctx)
				if err != nil {
					return err
				}
				printRun(cmd.OutOrStdout(), run)
				return nil
			})
		},
	}
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status <run-id>",
		Short: "Check a run once and persist its posts if it succeeded",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd.Context(), func(ctx context.Context, a *app) error {
				res, err := a.orchestrator.CheckRun(ctx, args[0])
				printResult(cmd.OutOrStdout(), res, err)
				return err
			})
		},
	}
}

func newWorkflowCommand(opts *options) *cobra.Command {
	var (
		runID      string
		maxRetries int
		retryDelay time.Duration
	)
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Start (or resume) a run and poll it until it finishes",
		Long: `Start a scrape run, or resume --run-id, and check its status up to
--max-retries times with --retry-delay between checks. A run that is still
pending afterwards keeps going remotely; resume it with --run-id.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd.Context(), func(ctx context.Context, a *app) error {
				res, err := a.orchestrator.RunWorkflow(ctx, service.WorkflowRequest{
					RunID:      runID,
					MaxRetries: maxRetries,
					RetryDelay: retryDelay,
				})
				printResult(cmd.OutOrStdout(), res, err)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "resume an existing run instead of starting one")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "status checks before giving up (default from config)")
	cmd.Flags().DurationVar(&retryDelay, "retry-delay", 0, "wait between status checks (default from config)")
	return cmd
}
