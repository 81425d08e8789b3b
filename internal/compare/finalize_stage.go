package compare

import (
	"context"
	"fmt"
	"log/slog"

	"ambo/internal/config"
	"ambo/internal/logging"
	"ambo/internal/queue"
	"ambo/internal/services"
	"ambo/internal/workflow"
)

// FinalizeStage closes out a scored recording. Finalized recordings remain
// comparison-eligible: a sibling arriving later scores against them through
// its own pipeline run.
type FinalizeStage struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
}

// NewFinalizeStage constructs the finalization stage handler.
func NewFinalizeStage(cfg *config.Config, store *queue.Store, logger *slog.Logger) *FinalizeStage {
	return &FinalizeStage{
		store:  store,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "finalize"),
	}
}

func (s *FinalizeStage) Prepare(ctx context.Context, rec *queue.Recording) error {
	rec.InitProgress("Finalizing", "Recording pipeline completion")
	return nil
}

func (s *FinalizeStage) Execute(ctx context.Context, rec *queue.Recording) error {
	logger := logging.WithContext(ctx, s.logger)

	comparisons, err := s.store.ComparisonsForRecording(ctx, rec.WeekendKey, rec.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "finalizing", "load comparisons", "Could not summarize comparisons", err)
	}

	var flagged int
	for _, comparison := range comparisons {
		if comparison.DeviationFlagged {
			flagged++
		}
	}

	rec.Status = queue.StatusFinalized
	rec.ProgressMessage = fmt.Sprintf("Finalized with %d comparisons (%d flagged)", len(comparisons), flagged)
	logger.Info(
		"recording finalized",
		logging.String("weekend", rec.WeekendKey),
		logging.Int("comparisons", len(comparisons)),
		logging.Int("flagged", flagged),
	)
	return nil
}

func (s *FinalizeStage) HealthCheck(ctx context.Context) workflow.Health {
	return workflow.Healthy("finalize")
}
