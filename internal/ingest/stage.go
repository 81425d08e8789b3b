package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ambo/internal/config"
	"ambo/internal/logging"
	"ambo/internal/queue"
	"ambo/internal/services"
	"ambo/internal/workflow"
)

// Stage waits for the transcript sidecar of an ingested recording. The
// transcript is produced out of process, so this stage either advances the
// recording to transcribed or hands it back to the queue to retry on the
// next poll.
type Stage struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewStage constructs the transcript wait stage handler.
func NewStage(cfg *config.Config, logger *slog.Logger) *Stage {
	return &Stage{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "ingest"),
	}
}

func (s *Stage) Prepare(ctx context.Context, rec *queue.Recording) error {
	logger := logging.WithContext(ctx, s.logger)
	rec.InitProgress("Awaiting transcript", "Checking for transcript sidecar")
	logger.Info("checking for transcript", logging.String("source", rec.SourcePath))
	return nil
}

func (s *Stage) Execute(ctx context.Context, rec *queue.Recording) error {
	logger := logging.WithContext(ctx, s.logger)

	sidecar := s.TranscriptPath(rec.SourcePath)
	info, err := os.Stat(sidecar)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(
				services.ErrTransient,
				"transcribing",
				"stat transcript",
				"Transcript sidecar could not be checked",
				err,
			)
		}
		return s.handleMissing(ctx, rec, sidecar)
	}
	if info.IsDir() {
		rec.SetReview(fmt.Sprintf("Transcript path %s is a directory", sidecar))
		logger.Warn("transcript path is a directory", logging.String("transcript", sidecar))
		return nil
	}

	rec.TranscriptPath = sidecar
	rec.Status = queue.StatusTranscribed
	rec.ProgressMessage = "Transcript sidecar found"
	logger.Info("transcript found", logging.String("transcript", sidecar))
	return nil
}

// handleMissing hands the recording back to the ingested state while the
// transcript collaborator is still working, or parks it for review once the
// wait exceeds the configured timeout.
func (s *Stage) handleMissing(ctx context.Context, rec *queue.Recording, sidecar string) error {
	logger := logging.WithContext(ctx, s.logger)

	waited := time.Since(rec.CreatedAt)
	if timeout := s.cfg.TranscriptTimeout(); timeout > 0 && waited > timeout {
		rec.SetReview(fmt.Sprintf("No transcript after %s; expected %s", waited.Round(time.Second), sidecar))
		logger.Warn("transcript wait timed out",
			logging.String("transcript", sidecar),
			logging.Duration("waited", waited),
		)
		return nil
	}

	rec.Status = queue.StatusIngested
	rec.ProgressMessage = "Waiting for transcript sidecar"
	logger.Debug("transcript not yet available",
		logging.String("transcript", sidecar),
		logging.Duration("waited", waited),
	)
	return nil
}

// TranscriptPath derives the sidecar transcript location for a source
// recording by swapping the audio extension for the transcript extension.
func (s *Stage) TranscriptPath(sourcePath string) string {
	return strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath)) + s.cfg.Ingest.TranscriptExtension
}

func (s *Stage) HealthCheck(ctx context.Context) workflow.Health {
	const name = "ingest"
	if _, err := os.Stat(s.cfg.Paths.IncomingDir); err != nil {
		return workflow.Unhealthy(name, fmt.Sprintf("incoming directory unavailable: %v", err))
	}
	return workflow.Healthy(name)
}
