package segment

import (
	"context"
	"fmt"
	"log/slog"

	"ambo/internal/config"
	"ambo/internal/logging"
	"ambo/internal/queue"
	"ambo/internal/services"
	"ambo/internal/textkit"
	"ambo/internal/workflow"
)

// NormalizeStage canonicalizes the extracted raw text so deviation scoring
// compares content rather than punctuation, casing, or filler habits.
type NormalizeStage struct {
	store      *queue.Store
	cfg        *config.Config
	logger     *slog.Logger
	normalizer *textkit.Normalizer
}

// NewNormalizeStage constructs the normalization stage handler.
func NewNormalizeStage(cfg *config.Config, store *queue.Store, logger *slog.Logger) *NormalizeStage {
	return &NormalizeStage{
		store:      store,
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "normalize"),
		normalizer: textkit.NewNormalizer(cfg.Comparison.Stopwords),
	}
}

func (s *NormalizeStage) Prepare(ctx context.Context, rec *queue.Recording) error {
	rec.InitProgress("Normalizing", "Canonicalizing homily text")
	return nil
}

func (s *NormalizeStage) Execute(ctx context.Context, rec *queue.Recording) error {
	logger := logging.WithContext(ctx, s.logger)

	seg, err := s.store.GetSegment(ctx, rec.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "normalizing", "load segment", "Could not load the extracted segment", err)
	}
	if seg == nil {
		return services.Wrap(
			services.ErrValidation,
			"normalizing",
			"validate inputs",
			"No extracted segment found; extraction must run before normalization",
			nil,
		)
	}

	seg.NormalizedText = s.normalizer.Normalize(seg.RawText)
	if seg.NormalizedText == "" {
		rec.SetReview("Homily window contains no comparable text")
		logger.Warn("normalized text empty", logging.Float64("start", seg.StartSeconds))
		return nil
	}

	if err := s.store.UpsertSegment(ctx, seg); err != nil {
		return services.Wrap(services.ErrTransient, "normalizing", "persist segment", "Could not store normalized text", err)
	}

	rec.Status = queue.StatusNormalized
	rec.ProgressMessage = fmt.Sprintf("Normalized %d characters", len(seg.NormalizedText))
	logger.Info("normalization complete", logging.Int("characters", len(seg.NormalizedText)))
	return nil
}

func (s *NormalizeStage) HealthCheck(ctx context.Context) workflow.Health {
	return workflow.Healthy("normalize")
}
