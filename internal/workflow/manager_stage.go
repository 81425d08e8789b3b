package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"ambo/internal/logging"
	"ambo/internal/queue"
	"ambo/internal/services"
)

func (m *Manager) processRecording(ctx context.Context, rec *queue.Recording) error {
	stg, ok := m.stageForStatus(rec.Status)
	if !ok {
		m.logger.Warn("no stage configured for status", logging.String("status", string(rec.Status)))
		m.waitForWorkOrShutdown(ctx)
		return nil
	}

	requestID := uuid.NewString()
	stageCtx := services.WithRequestID(services.WithStage(services.WithRecordingID(ctx, rec.ID), stg.name), requestID)
	stageLogger := logging.WithContext(stageCtx, m.logger)

	if err := m.transitionToProcessing(stageCtx, stg, rec); err != nil {
		stageLogger.Error("failed to transition recording to processing", logging.Error(err))
		m.setLastError(err)
		return err
	}

	return m.executeStage(stageCtx, stageLogger, stg, rec)
}

func (m *Manager) executeStage(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, rec *queue.Recording) error {
	stageStart := time.Now()
	stageLogger.Info(
		"stage started",
		logging.String("processing_status", string(stg.processingStatus)),
		logging.String("title", rec.Title),
		logging.String(logging.FieldWeekendKey, rec.WeekendKey),
	)

	handler := stg.handler
	if handler == nil {
		stageLogger.Warn("missing stage handler", logging.String("stage", stg.name))
		rec.SetFailed(fmt.Sprintf("stage %s missing handler", stg.name))
		if err := m.store.Update(ctx, rec); err != nil {
			stageLogger.Error("failed to persist missing handler failure", logging.Error(err))
		}
		err := errors.New("stage handler unavailable")
		m.setLastError(err)
		return err
	}

	if err := handler.Prepare(ctx, rec); err != nil {
		m.handleStageFailure(ctx, stg.name, rec, err)
		m.setLastError(err)
		return err
	}
	if err := m.store.Update(ctx, rec); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		stageLogger.Error("failed to persist stage preparation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	execErr := m.executeWithHeartbeat(ctx, handler, rec)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return execErr
		}
		m.handleStageFailure(ctx, stg.name, rec, execErr)
		m.setLastError(execErr)
		return execErr
	}

	// Handlers that resolved the recording themselves (review, fallback,
	// rollback to an earlier status) keep whatever they set.
	if rec.Status == stg.processingStatus || rec.Status == "" {
		rec.Status = stg.doneStatus
	}
	rec.LastHeartbeat = nil
	if err := m.store.Update(ctx, rec); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	stageLogger.Info(
		"stage completed",
		logging.String("next_status", string(rec.Status)),
		logging.String("progress_message", rec.ProgressMessage),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastRecording(rec)
	m.notifyResolution(ctx, rec)
	return nil
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler StageHandler, rec *queue.Recording) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, rec.ID)

	execErr := handler.Execute(ctx, rec)
	hbCancel()
	hbWG.Wait()
	return execErr
}

func (m *Manager) transitionToProcessing(ctx context.Context, stg pipelineStage, rec *queue.Recording) error {
	if stg.processingStatus == "" {
		return errors.New("processing status must not be empty")
	}

	now := time.Now().UTC()
	rec.Status = stg.processingStatus
	rec.ErrorMessage = ""
	rec.LastHeartbeat = &now
	if err := m.store.Update(ctx, rec); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}
	m.setLastRecording(rec)
	return nil
}

// notifyResolution pushes a review notice when a stage parked the recording
// for manual attention. Deviation notices flow through the dispatcher
// instead, keyed off persisted comparison results.
func (m *Manager) notifyResolution(ctx context.Context, rec *queue.Recording) {
	if m.notifier == nil || rec.Status != queue.StatusReview {
		return
	}
	if err := m.notifier.NotifyReview(ctx, rec.Title, rec.ReviewReason); err != nil {
		m.logger.Warn("review notification failed", logging.Error(err))
	}
}
