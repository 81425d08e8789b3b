package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"ambo/internal/config"
	"ambo/internal/logging"
	"ambo/internal/queue"
)

// settleDelay gives the uploader a moment to finish writing a newly created
// file before we enqueue it.
const settleDelay = 500 * time.Millisecond

// pendingBuffer bounds how many settled paths can queue up behind the event
// loop before their timers block.
const pendingBuffer = 64

// Watcher discovers recordings in the incoming directory and enqueues them.
// It combines filesystem notifications with a periodic rescan so recordings
// that arrived while the daemon was down are still picked up.
type Watcher struct {
	cfg     *config.Config
	store   *queue.Store
	logger  *slog.Logger
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher over the configured incoming directory.
func NewWatcher(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create filesystem watcher: %w", err)
	}
	if err := fsWatcher.Add(cfg.Paths.IncomingDir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watch incoming directory %q: %w", cfg.Paths.IncomingDir, err)
	}
	return &Watcher{
		cfg:     cfg,
		store:   store,
		logger:  logging.NewComponentLogger(logger, "ingest"),
		watcher: fsWatcher,
	}, nil
}

// Run blocks until the context is cancelled, enqueueing candidate recordings
// as they appear. An initial scan runs before the event loop starts.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Rescan(ctx); err != nil {
		w.logger.Warn("initial incoming scan failed", logging.Error(err))
	}

	ticker := time.NewTicker(w.cfg.RescanInterval())
	defer ticker.Stop()

	// Settled paths come back through this channel so the loop keeps
	// consuming filesystem events while new arrivals finish writing.
	pending := make(chan string, pendingBuffer)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			if !w.isCandidate(event.Name) {
				continue
			}
			w.scheduleEnqueue(ctx, event.Name, pending)
		case path := <-pending:
			if err := w.enqueue(ctx, path); err != nil {
				w.logger.Error("enqueue recording failed",
					logging.String("path", path),
					logging.Error(err),
				)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("filesystem watcher error", logging.Error(err))
		case <-ticker.C:
			if err := w.Rescan(ctx); err != nil {
				w.logger.Warn("incoming rescan failed", logging.Error(err))
			}
		}
	}
}

// scheduleEnqueue hands the path back to the event loop once the settle delay
// has passed, giving up on cancellation.
func (w *Watcher) scheduleEnqueue(ctx context.Context, path string, pending chan<- string) {
	time.AfterFunc(settleDelay, func() {
		select {
		case pending <- path:
		case <-ctx.Done():
		}
	})
}

// Close releases the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Rescan walks the incoming directory once and enqueues any recording not
// already known to the queue.
func (w *Watcher) Rescan(ctx context.Context) error {
	entries, err := os.ReadDir(w.cfg.Paths.IncomingDir)
	if err != nil {
		return fmt.Errorf("read incoming directory: %w", err)
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.cfg.Paths.IncomingDir, entry.Name())
		if !w.isCandidate(path) {
			continue
		}
		if err := w.enqueue(ctx, path); err != nil {
			w.logger.Error("enqueue recording failed",
				logging.String("path", path),
				logging.Error(err),
			)
		}
	}
	return nil
}

// isCandidate reports whether a path looks like a service recording by the
// configured prefix and audio extension.
func (w *Watcher) isCandidate(path string) bool {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, w.cfg.Ingest.FilePrefix) {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), w.cfg.Ingest.AudioExtension)
}

func (w *Watcher) enqueue(ctx context.Context, path string) error {
	existing, err := w.store.FindBySourcePath(ctx, path)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat recording: %w", err)
	}

	serviceAt := info.ModTime()
	weekendKey := WeekendKey(serviceAt, w.cfg.Ingest.VigilCutoffHour)

	rec, err := w.store.NewRecording(ctx, path, TitleFromSource(path), weekendKey, serviceAt)
	if err != nil {
		return err
	}

	w.logger.Info("recording enqueued",
		logging.Int64("recording_id", rec.ID),
		logging.String("title", rec.Title),
		logging.String("weekend_key", weekendKey),
	)
	return nil
}
