package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"ambo/internal/boundary"
	"ambo/internal/compare"
	"ambo/internal/config"
	"ambo/internal/ingest"
	"ambo/internal/logging"
	"ambo/internal/notifications"
	"ambo/internal/queue"
	"ambo/internal/segment"
	"ambo/internal/workflow"
)

// Daemon coordinates the background services and enforces single-instance
// execution: the incoming watcher, the workflow manager, and the deviation
// notification dispatcher.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *queue.Store
	workflow   *workflow.Manager
	watcher    *ingest.Watcher
	dispatcher *notifications.Dispatcher
	notifier   notifications.Service
	logPath    string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	LockFilePath string
}

// NewStageSet wires the concrete pipeline handlers in lifecycle order. The
// daemon and the one-shot process command share this wiring.
func NewStageSet(cfg *config.Config, store *queue.Store, logger *slog.Logger) (workflow.StageSet, error) {
	scoreStage, err := compare.NewStage(cfg, store, logger)
	if err != nil {
		return workflow.StageSet{}, fmt.Errorf("configure score stage: %w", err)
	}
	return workflow.StageSet{
		Ingest:    ingest.NewStage(cfg, logger),
		Boundary:  boundary.NewStage(cfg, store, logger),
		Extract:   segment.NewStage(cfg, store, logger),
		Normalize: segment.NewNormalizeStage(cfg, store, logger),
		Score:     scoreStage,
		Finalize:  compare.NewFinalizeStage(cfg, store, logger),
	}, nil
}

// New constructs a daemon with fully wired pipeline stages.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, and logger")
	}

	notifier := notifications.NewService(cfg)
	wf := workflow.NewManagerWithNotifier(cfg, store, logger, notifier)

	stages, err := NewStageSet(cfg, store, logger)
	if err != nil {
		return nil, err
	}
	wf.ConfigureStages(stages)

	lockPath := filepath.Join(cfg.Paths.LogDir, "ambod.lock")
	return &Daemon{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		workflow:   wf,
		dispatcher: notifications.NewDispatcher(cfg, store, notifier, logger),
		notifier:   notifier,
		logPath:    filepath.Join(cfg.Paths.LogDir, "ambo.log"),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the watcher, workflow manager,
// and notification dispatcher. Recordings stranded in a processing status by
// a previous run are rolled back to their stage start first.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another ambo daemon instance is already running")
	}

	if reset, err := d.store.ResetStuckProcessing(ctx); err != nil {
		d.logger.Warn("reset stuck recordings failed", logging.Error(err))
	} else if reset > 0 {
		d.logger.Info("reset stuck recordings from previous run", logging.Int64("count", reset))
	}

	runCtx, cancel := context.WithCancel(ctx)

	watcher, err := ingest.NewWatcher(d.cfg, d.store, d.logger)
	if err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start incoming watcher: %w", err)
	}
	d.watcher = watcher

	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = watcher.Close()
		d.watcher = nil
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}

	d.cancel = cancel
	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		if err := watcher.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("incoming watcher stopped", logging.Error(err))
		}
	}()
	go func() {
		defer d.wg.Done()
		if err := d.dispatcher.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("notification dispatcher stopped", logging.Error(err))
		}
	}()

	d.running.Store(true)
	d.logger.Info("ambo daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	d.wg.Wait()
	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			d.logger.Warn("failed to close incoming watcher", logging.Error(err))
		}
		d.watcher = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("ambo daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// ListQueue returns recordings filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Recording, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}
	return d.store.List(ctx, statuses...)
}

// ClearQueue removes all recordings.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.Clear(ctx)
}

// ClearFinalized removes only finalized recordings.
func (d *Daemon) ClearFinalized(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.ClearFinalized(ctx)
}

// ResetStuck transitions in-flight recordings back to their stage start.
func (d *Daemon) ResetStuck(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.ResetStuckProcessing(ctx)
}

// RetryFailed resets failed recordings (optionally a subset) for another run.
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.RetryFailed(ctx, ids...)
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	if d.store == nil {
		return queue.HealthSummary{}, errors.New("queue store unavailable")
	}
	return d.store.Health(ctx)
}

// Rescan walks the incoming directory once, outside the watcher's timer.
func (d *Daemon) Rescan(ctx context.Context) error {
	if d.watcher == nil {
		return errors.New("incoming watcher not running")
	}
	return d.watcher.Rescan(ctx)
}

// DispatchNotifications flushes pending deviation notices immediately.
func (d *Daemon) DispatchNotifications(ctx context.Context) error {
	return d.dispatcher.DispatchPending(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	summary := d.workflow.Status(ctx)
	return Status{
		Running:      d.running.Load(),
		Workflow:     summary,
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
	}
}
