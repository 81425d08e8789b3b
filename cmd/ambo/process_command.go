package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ambo/internal/config"
	"ambo/internal/daemon"
	"ambo/internal/ingest"
	"ambo/internal/notifications"
	"ambo/internal/queue"
	"ambo/internal/workflow"
)

// newProcessCommand runs one synchronous pipeline pass: scan the incoming
// directory, drain actionable recordings, and flush pending deviation
// notifications. Useful for cron-style setups without the daemon.
func newProcessCommand(ctx *commandContext) *cobra.Command {
	var skipScan bool

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Scan for recordings and drain the queue once",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.serviceLogger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				runCtx := cmd.Context()

				if !skipScan {
					watcher, err := ingest.NewWatcher(cfg, store, logger)
					if err != nil {
						return fmt.Errorf("open incoming watcher: %w", err)
					}
					scanErr := watcher.Rescan(runCtx)
					_ = watcher.Close()
					if scanErr != nil {
						return fmt.Errorf("scan incoming directory: %w", scanErr)
					}
				}

				notifier := notifications.NewService(cfg)
				mgr := workflow.NewManagerWithNotifier(cfg, store, logger, notifier)
				stages, err := daemon.NewStageSet(cfg, store, logger)
				if err != nil {
					return err
				}
				mgr.ConfigureStages(stages)

				processed, err := mgr.RunOnce(runCtx)
				if err != nil {
					return err
				}

				dispatcher := notifications.NewDispatcher(cfg, store, notifier, logger)
				if err := dispatcher.DispatchPending(runCtx); err != nil {
					return fmt.Errorf("dispatch notifications: %w", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Processed %d stage executions\n", processed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&skipScan, "no-scan", false, "Skip the incoming directory scan")
	return cmd
}
