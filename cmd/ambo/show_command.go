package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ambo/internal/config"
	"ambo/internal/queue"
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
)

// newShowCommand renders one weekend group: its recordings and every pairwise
// comparison result recorded for it.
func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <weekend-key>",
		Short: "Show recordings and comparisons for a weekend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			weekendKey := strings.TrimSpace(args[0])
			if weekendKey == "" {
				return fmt.Errorf("weekend key is required")
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				recordings, err := store.ListByWeekend(cmd.Context(), weekendKey)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(recordings) == 0 {
					fmt.Fprintf(out, "No recordings for weekend %s\n", weekendKey)
					return nil
				}

				titles := make(map[int64]string, len(recordings))
				recordingRows := make([][]string, 0, len(recordings))
				for _, rec := range recordings {
					titles[rec.ID] = rec.Title
					window := ""
					if rec.BoundaryEnd > rec.BoundaryStart {
						window = fmt.Sprintf("%.0fs-%.0fs", rec.BoundaryStart, rec.BoundaryEnd)
					}
					recordingRows = append(recordingRows, []string{
						strconv.FormatInt(rec.ID, 10),
						rec.Title,
						string(rec.Status),
						window,
					})
				}
				fmt.Fprintf(out, "Weekend %s\n", weekendKey)
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Title", "Status", "Homily Window"},
					recordingRows,
					0,
				))

				comparisons, err := store.ComparisonsForWeekend(cmd.Context(), weekendKey)
				if err != nil {
					return err
				}
				if len(comparisons) == 0 {
					fmt.Fprintln(out, "No comparisons recorded yet")
					return nil
				}

				colorize := shouldColorize(out)
				comparisonRows := make([][]string, 0, len(comparisons))
				for _, result := range comparisons {
					flagged := "no"
					if result.DeviationFlagged {
						flagged = "yes"
						if colorize {
							flagged = ansiRed + flagged + ansiReset
						}
					}
					comparisonRows = append(comparisonRows, []string{
						recordingLabel(titles, result.RecordingA),
						recordingLabel(titles, result.RecordingB),
						fmt.Sprintf("%.3f", result.Score),
						flagged,
						yesNo(result.Notified),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Recording A", "Recording B", "Score", "Flagged", "Notified"},
					comparisonRows,
					2,
				))
				return nil
			})
		},
	}
}

func recordingLabel(titles map[int64]string, id int64) string {
	if title := titles[id]; title != "" {
		return title
	}
	return fmt.Sprintf("#%d", id)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
