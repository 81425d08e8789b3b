package compare

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

// Stage scores a newly normalized recording against every comparable sibling
// in its weekend group.
type Stage struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	scorer *Scorer
}

// NewStage constructs the scoring stage handler.
func NewStage(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Stage, error) {
	metric, err := NewMetric(cfg.Comparison.Metric)
	if err != nil {
		return nil, err
	}
	return &Stage{
		store:  store,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "compare"),
		scorer: NewScorer(metric, textkit.NewNormalizer(cfg.Comparison.Stopwords), cfg.Comparison.DeviationThreshold),
	}, nil
}

func (s *Stage) Prepare(ctx context.Context, rec *queue.Recording) error {
	rec.InitProgress("Scoring", "Comparing against weekend siblings")
	return nil
}

// Execute scores the recording against each normalized sibling. Pairs already
// scored are left untouched; the pair table's conflict-ignore insert makes
// re-runs and concurrent runs converge on one result per pair. A weekend
// group with no siblings yet produces no comparisons; the recording still
// advances and is revisited through its siblings when they arrive.
func (s *Stage) Execute(ctx context.Context, rec *queue.Recording) error {
	logger := logging.WithContext(ctx, s.logger)

	seg, err := s.store.GetSegment(ctx, rec.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "scoring", "load segment", "Could not load normalized segment", err)
	}
	if seg == nil || seg.NormalizedText == "" {
		return services.Wrap(
			services.ErrValidation,
			"scoring",
			"validate inputs",
			"No normalized text available; normalization must run before scoring",
			nil,
		)
	}

	subject := Subject{RecordingID: rec.ID, WeekendKey: rec.WeekendKey, NormalizedText: seg.NormalizedText}

	siblings, err := s.store.NormalizedSiblings(ctx, rec.WeekendKey, rec.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "scoring", "list siblings", "Could not enumerate weekend siblings", err)
	}

	var scored, flagged int
	for _, sibling := range siblings {
		siblingSeg, err := s.store.GetSegment(ctx, sibling.ID)
		if err != nil {
			return services.Wrap(services.ErrTransient, "scoring", "load sibling segment", "Could not load sibling text", err)
		}
		if siblingSeg == nil || siblingSeg.NormalizedText == "" {
			continue
		}

		outcome, err := s.scorer.Score(subject, Subject{
			RecordingID:    sibling.ID,
			WeekendKey:     sibling.WeekendKey,
			NormalizedText: siblingSeg.NormalizedText,
		})
		if err != nil {
			return services.Wrap(services.ErrValidation, "scoring", "score pair", "Comparison scope violation", err)
		}

		result, inserted, err := s.store.EnsureComparison(ctx, queue.ComparisonResult{
			WeekendKey:       rec.WeekendKey,
			RecordingA:       rec.ID,
			RecordingB:       sibling.ID,
			Score:            outcome.Score,
			DeviationFlagged: outcome.DeviationFlagged,
		})
		if err != nil {
			return services.Wrap(services.ErrTransient, "scoring", "persist comparison", "Could not record comparison result", err)
		}
		if !inserted {
			continue
		}
		scored++
		if result.DeviationFlagged {
			flagged++
			logger.Warn(
				"homily deviation flagged",
				logging.Int64("sibling_id", sibling.ID),
				logging.Float64("score", result.Score),
				logging.Float64("threshold", s.cfg.Comparison.DeviationThreshold),
			)
		}
	}

	rec.Status = queue.StatusScored
	rec.ProgressMessage = fmt.Sprintf("Scored %d new pairs (%d flagged) with %s", scored, flagged, s.scorer.MetricName())
	logger.Info(
		"scoring complete",
		logging.Int("siblings", len(siblings)),
		logging.Int("new_pairs", scored),
		logging.Int("flagged", flagged),
	)
	return nil
}

func (s *Stage) HealthCheck(ctx context.Context) workflow.Health {
	return workflow.Healthy("compare")
}
