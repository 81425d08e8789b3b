package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ambo/internal/config"
	"ambo/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the recording queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueResetStuckCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatusFilter(statusFilter)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				recordings, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(recordings) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(recordings))
				for _, rec := range recordings {
					detail := rec.ProgressMessage
					if rec.ErrorMessage != "" {
						detail = rec.ErrorMessage
					} else if rec.ReviewReason != "" {
						detail = rec.ReviewReason
					}
					rows = append(rows, []string{
						strconv.FormatInt(rec.ID, 10),
						rec.Title,
						rec.WeekendKey,
						string(rec.Status),
						detail,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Title", "Weekend", "Status", "Detail"},
					rows,
					0,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Comma-separated status filter (e.g. review,failed)")
	return cmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show aggregate queue health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Total:           %d\n", health.Total)
				fmt.Fprintf(out, "Waiting:         %d\n", health.Waiting)
				fmt.Fprintf(out, "Processing:      %d\n", health.Processing)
				fmt.Fprintf(out, "Boundary failed: %d\n", health.BoundaryFailed)
				fmt.Fprintf(out, "Review:          %d\n", health.Review)
				fmt.Fprintf(out, "Failed:          %d\n", health.Failed)
				fmt.Fprintf(out, "Finalized:       %d\n", health.Finalized)

				rows := make([][]string, 0, len(stats))
				for _, status := range queue.AllStatuses() {
					count := stats[status]
					if count == 0 {
						continue
					}
					rows = append(rows, []string{string(status), strconv.Itoa(count)})
				}
				if len(rows) > 0 {
					fmt.Fprintln(out, renderTable(
						[]string{"Status", "Count"},
						rows,
						1,
					))
				}
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Reset failed recordings for another run",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				updated, err := store.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d recording(s) for retry\n", updated)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var all bool
	var finalized bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove recordings from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == finalized {
				return errors.New("specify exactly one of --all or --finalized")
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				var (
					removed int64
					err     error
					label   string
				)
				if finalized {
					removed, err = store.ClearFinalized(cmd.Context())
					label = "finalized recording(s)"
				} else {
					removed, err = store.Clear(cmd.Context())
					label = "recording(s)"
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s\n", removed, label)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Remove every recording")
	cmd.Flags().BoolVar(&finalized, "finalized", false, "Remove only finalized recordings")
	return cmd
}

func newQueueResetStuckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stuck",
		Short: "Roll in-flight recordings back to their stage start",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				reset, err := store.ResetStuckProcessing(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d stuck recording(s)\n", reset)
				return nil
			})
		},
	}
}

func parseStatusFilter(filter string) ([]queue.Status, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return nil, nil
	}
	parts := strings.Split(filter, ",")
	statuses := make([]queue.Status, 0, len(parts))
	for _, part := range parts {
		status, ok := queue.ParseStatus(part)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", strings.TrimSpace(part))
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid recording id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
