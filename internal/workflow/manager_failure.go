package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ambo/internal/logging"
	"ambo/internal/queue"
	"ambo/internal/services"
)

func (m *Manager) handleStageFailure(ctx context.Context, stageName string, rec *queue.Recording, stageErr error) {
	logger := logging.WithContext(ctx, m.logger)

	message := classifyStageFailure(stageName, stageErr)
	resolved := services.FailureStatus(stageErr)
	if resolved == queue.StatusReview {
		rec.SetReview(message)
	} else {
		rec.SetFailed(message)
	}

	logger.Error("stage failed",
		logging.String("resolved_status", string(resolved)),
		logging.String("error_message", message),
		logging.Error(stageErr),
	)

	if err := m.store.Update(ctx, rec); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not update stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	m.setLastRecording(rec)
	if m.notifier != nil {
		if resolved == queue.StatusReview {
			if err := m.notifier.NotifyReview(ctx, rec.Title, rec.ReviewReason); err != nil {
				logger.Warn("review notification failed", logging.Error(err))
			}
		} else {
			if err := m.notifier.NotifyError(ctx, stageErr, stageName); err != nil {
				logger.Warn("error notification failed", logging.Error(err))
			}
		}
	}
}

func classifyStageFailure(stageName string, stageErr error) string {
	if stageErr == nil {
		return stageFailureMessage(stageName, "failed without error detail")
	}
	message := strings.TrimSpace(stageErr.Error())
	if message == "" {
		message = stageFailureMessage(stageName, "failed")
	}
	return message
}

func stageFailureMessage(stageName, defaultMsg string) string {
	if stageName != "" {
		return fmt.Sprintf("%s %s", stageName, defaultMsg)
	}
	return fmt.Sprintf("workflow %s", defaultMsg)
}
