package notifications

import (
	"context"
	"log/slog"
	"time"

	"ambo/internal/config"
	"ambo/internal/logging"
	"ambo/internal/queue"
)

// Dispatcher delivers flagged comparison results that have not yet been
// pushed. Results are marked notified only after a successful send, so a
// delivery failure retries on the next cycle.
type Dispatcher struct {
	cfg     *config.Config
	store   *queue.Store
	service Service
	logger  *slog.Logger
}

// NewDispatcher wires the deviation dispatcher.
func NewDispatcher(cfg *config.Config, store *queue.Store, service Service, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:     cfg,
		store:   store,
		service: service,
		logger:  logging.NewComponentLogger(logger, "notifications"),
	}
}

// Run blocks until the context is cancelled, flushing pending deviation
// notifications on each dispatch interval.
func (d *Dispatcher) Run(ctx context.Context) error {
	interval := time.Duration(d.cfg.Notifications.DispatchInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.DispatchPending(ctx); err != nil {
				d.logger.Warn("deviation dispatch failed", logging.Error(err))
			}
		}
	}
}

// DispatchPending sends one notification per flagged, unnotified comparison.
func (d *Dispatcher) DispatchPending(ctx context.Context) error {
	pending, err := d.store.FlaggedUnnotified(ctx)
	if err != nil {
		return err
	}

	for _, result := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := d.dispatch(ctx, result); err != nil {
			d.logger.Warn("deviation notification failed",
				logging.String("weekend_key", result.WeekendKey),
				logging.Int64("recording_a", result.RecordingA),
				logging.Int64("recording_b", result.RecordingB),
				logging.Error(err),
			)
		}
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, result *queue.ComparisonResult) error {
	titleA, err := d.recordingTitle(ctx, result.RecordingA)
	if err != nil {
		return err
	}
	titleB, err := d.recordingTitle(ctx, result.RecordingB)
	if err != nil {
		return err
	}

	if err := d.service.NotifyDeviation(ctx, result.WeekendKey, titleA, titleB, result.Score); err != nil {
		return err
	}
	if err := d.store.MarkNotified(ctx, result.WeekendKey, result.RecordingA, result.RecordingB); err != nil {
		return err
	}

	d.logger.Info("deviation notified",
		logging.String("weekend_key", result.WeekendKey),
		logging.String("recording_a", titleA),
		logging.String("recording_b", titleB),
		logging.Float64("score", result.Score),
	)
	return nil
}

func (d *Dispatcher) recordingTitle(ctx context.Context, id int64) (string, error) {
	rec, err := d.store.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "unknown recording", nil
	}
	if rec.Title != "" {
		return rec.Title, nil
	}
	return rec.SourcePath, nil
}
