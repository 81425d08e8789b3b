package segment

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"ambo/internal/config"
	"ambo/internal/logging"
	"ambo/internal/media/ffmpeg"
	"ambo/internal/queue"
	"ambo/internal/services"
	"ambo/internal/transcript"
	"ambo/internal/workflow"
)

// Stage slices the detected homily window into a standalone audio artifact
// and stores the raw transcript text alongside it.
type Stage struct {
	store     *queue.Store
	cfg       *config.Config
	logger    *slog.Logger
	extractor *Extractor
}

// NewStage constructs the extraction stage with the real ffmpeg tool.
func NewStage(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Stage {
	tool := ffmpeg.New(cfg.FFmpegBinary(), cfg.FFprobeBinary())
	return NewStageWithSlicer(cfg, store, logger, tool)
}

// NewStageWithSlicer allows injecting the audio slicer (used in tests).
func NewStageWithSlicer(cfg *config.Config, store *queue.Store, logger *slog.Logger, slicer AudioSlicer) *Stage {
	return &Stage{
		store:     store,
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "segment"),
		extractor: NewExtractor(slicer, cfg.Paths.ArtifactsDir, cfg.Ingest.FilePrefix),
	}
}

func (s *Stage) Prepare(ctx context.Context, rec *queue.Recording) error {
	logger := logging.WithContext(ctx, s.logger)
	rec.InitProgress("Extracting", "Slicing homily audio")
	logger.Info("starting extraction", logging.String("source", rec.SourcePath))
	return nil
}

func (s *Stage) Execute(ctx context.Context, rec *queue.Recording) error {
	logger := logging.WithContext(ctx, s.logger)

	if rec.BoundaryEnd <= rec.BoundaryStart {
		return services.Wrap(
			services.ErrValidation,
			"extracting",
			"validate inputs",
			"No usable boundary window recorded; detection must succeed before extraction",
			nil,
		)
	}

	result, err := transcript.ParseFile(rec.TranscriptPath)
	if err != nil {
		return services.Wrap(services.ErrTransient, "extracting", "parse transcript", "Transcript unreadable during extraction", err)
	}

	start := time.Duration(rec.BoundaryStart * float64(time.Second))
	end := time.Duration(rec.BoundaryEnd * float64(time.Second))

	extraction, err := s.extractor.Extract(ctx, rec.SourcePath, result.Cues, start, end)
	if err != nil {
		return services.Wrap(
			services.ErrTransient,
			"extracting",
			"slice audio",
			"ffmpeg could not produce the homily artifact",
			err,
		)
	}

	if err := s.store.UpsertSegment(ctx, &queue.HomilySegment{
		RecordingID:  rec.ID,
		StartSeconds: rec.BoundaryStart,
		EndSeconds:   rec.BoundaryEnd,
		AudioPath:    extraction.AudioPath,
		RawText:      extraction.RawText,
	}); err != nil {
		return services.Wrap(services.ErrTransient, "extracting", "persist segment", "Could not record the extracted segment", err)
	}

	s.flagSuspiciousDuration(rec, end-start, logger)

	rec.Status = queue.StatusExtracted
	rec.ProgressMessage = fmt.Sprintf("Homily artifact written: %s", extraction.AudioPath)
	logger.Info(
		"extraction complete",
		logging.String("artifact", extraction.AudioPath),
		logging.Duration("duration", end-start),
	)
	return nil
}

// flagSuspiciousDuration marks windows outside the expected homily length for
// human review without interrupting the pipeline. The artifact is still
// usable; the flag keeps a silent mis-detection from sailing through.
func (s *Stage) flagSuspiciousDuration(rec *queue.Recording, duration time.Duration, logger *slog.Logger) {
	minWarn := time.Duration(s.cfg.Boundary.MinDurationWarn) * time.Second
	maxWarn := time.Duration(s.cfg.Boundary.MaxDurationWarn) * time.Second
	if duration >= minWarn && duration <= maxWarn {
		return
	}
	rec.NeedsReview = true
	rec.ReviewReason = fmt.Sprintf("Suspicious homily duration: %s", duration)
	logger.Warn("suspicious homily duration", logging.Duration("duration", duration))
}

func (s *Stage) HealthCheck(ctx context.Context) workflow.Health {
	const name = "segment"
	if tool, ok := s.extractor.slicer.(*ffmpeg.Tool); ok {
		if err := tool.Available(); err != nil {
			return workflow.Unhealthy(name, err.Error())
		}
	}
	if _, err := os.Stat(s.cfg.Paths.ArtifactsDir); err != nil {
		return workflow.Unhealthy(name, fmt.Sprintf("artifacts directory unavailable: %v", err))
	}
	return workflow.Healthy(name)
}
