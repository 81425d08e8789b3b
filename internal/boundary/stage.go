package boundary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"ambo/internal/config"
	"ambo/internal/logging"
	"ambo/internal/queue"
	"ambo/internal/services"
	"ambo/internal/textkit"
	"ambo/internal/transcript"
	"ambo/internal/workflow"
)

// Stage locates the homily window inside a transcribed recording.
type Stage struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	detector *Detector
}

// NewStage constructs the boundary detection stage handler.
func NewStage(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Stage {
	normalizer := textkit.NewNormalizer(cfg.Comparison.Stopwords)
	detector := NewDetector(
		normalizer,
		NewMarkerSet(normalizer, cfg.Boundary.IntroductionMarkers),
		NewMarkerSet(normalizer, cfg.Boundary.ClosingMarkers),
		cfg.MinElapsedFloor(),
		cfg.MaxHomilyDuration(),
	)
	return &Stage{
		store:    store,
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "boundary"),
		detector: detector,
	}
}

func (s *Stage) Prepare(ctx context.Context, rec *queue.Recording) error {
	logger := logging.WithContext(ctx, s.logger)
	rec.InitProgress("Detecting boundary", "Scanning transcript for liturgical markers")
	logger.Info("starting boundary detection", logging.String("transcript", rec.TranscriptPath))
	return nil
}

func (s *Stage) Execute(ctx context.Context, rec *queue.Recording) error {
	logger := logging.WithContext(ctx, s.logger)

	if rec.TranscriptPath == "" {
		return services.Wrap(
			services.ErrValidation,
			"detecting",
			"validate inputs",
			"No transcript recorded for this recording; ingest must complete before detection",
			nil,
		)
	}

	result, err := transcript.ParseFile(rec.TranscriptPath)
	if err != nil {
		return services.Wrap(
			services.ErrTransient,
			"detecting",
			"parse transcript",
			"Transcript could not be read; it may still be uploading",
			err,
		)
	}
	rec.CueCount = len(result.Cues)
	rec.SkippedBlocks = result.Skipped
	if result.Skipped > 0 {
		logger.Warn("transcript contains malformed blocks", logging.Int("skipped", result.Skipped))
	}

	if err := transcript.Validate(result.Cues); err != nil {
		rec.SetReview(fmt.Sprintf("Transcript failed validation: %v", err))
		logger.Warn("transcript rejected", logging.Error(err))
		return nil
	}

	window, err := s.detector.Detect(result.Cues)
	if err != nil {
		if !errors.Is(err, ErrBoundaryNotFound) {
			return services.Wrap(services.ErrTransient, "detecting", "detect boundary", "Boundary detection failed", err)
		}
		return s.applyFallback(ctx, rec, result.Cues)
	}

	s.applyWindow(rec, window)
	logger.Info(
		"boundary located",
		logging.Duration("start", window.Start),
		logging.Duration("end", window.End),
		logging.Bool("clamped", window.Clamped),
	)
	return nil
}

// applyFallback implements the configured BoundaryNotFound policy. "none"
// parks the recording in the terminal boundary_failed state so it never
// enters weekend comparisons; "window" assumes a fixed offset and duration.
func (s *Stage) applyFallback(ctx context.Context, rec *queue.Recording, cues []transcript.Cue) error {
	logger := logging.WithContext(ctx, s.logger)

	switch s.cfg.Boundary.Fallback {
	case config.FallbackWindow:
		start := time.Duration(s.cfg.Boundary.FallbackOffset) * time.Second
		end := start + time.Duration(s.cfg.Boundary.FallbackDuration)*time.Second
		if len(cues) > 0 {
			if last := cues[len(cues)-1].End; last < end {
				end = last
			}
		}
		if end <= start {
			rec.Status = queue.StatusBoundaryFailed
			rec.ProgressMessage = "Fallback window lies outside the recording"
			logger.Warn("fallback window unusable", logging.Duration("offset", start))
			return nil
		}
		s.applyWindow(rec, Boundary{Start: start, End: end, Clamped: true})
		logger.Warn(
			"no start marker found, applied fallback window",
			logging.Duration("start", start),
			logging.Duration("end", end),
		)
		return nil
	default:
		rec.Status = queue.StatusBoundaryFailed
		rec.ProgressStage = "Boundary failed"
		rec.ProgressMessage = "No introduction marker found in transcript"
		logger.Warn("no start marker found, no fallback configured")
		return nil
	}
}

func (s *Stage) applyWindow(rec *queue.Recording, window Boundary) {
	rec.BoundaryStart = window.Start.Seconds()
	rec.BoundaryEnd = window.End.Seconds()
	rec.BoundaryClamped = window.Clamped
	rec.Status = queue.StatusBoundaryDetected
	rec.ProgressMessage = fmt.Sprintf("Homily window %s to %s", window.Start, window.End)
}

func (s *Stage) HealthCheck(ctx context.Context) workflow.Health {
	const name = "boundary"
	if s.detector.intro.Len() == 0 {
		return workflow.Unhealthy(name, "no introduction markers configured")
	}
	if s.detector.closing.Len() == 0 {
		return workflow.Unhealthy(name, "no closing markers configured")
	}
	if _, err := os.Stat(s.cfg.Paths.IncomingDir); err != nil {
		return workflow.Unhealthy(name, fmt.Sprintf("incoming directory unavailable: %v", err))
	}
	return workflow.Healthy(name)
}
