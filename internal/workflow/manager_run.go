package workflow

import (
	"context"
	"errors"
	"time"

	"ambo/internal/logging"
	"ambo/internal/queue"
)

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.heartbeat.ReclaimStale(ctx, m.logger); err != nil {
			m.logger.Warn("reclaim stale processing failed; stuck recordings may remain", logging.Error(err))
		}

		rec, err := m.store.NextForStatuses(ctx, m.statusOrder...)
		if err != nil {
			m.handleNextError(ctx, err)
			continue
		}
		if rec == nil {
			m.waitForWorkOrShutdown(ctx)
			continue
		}

		if err := m.processRecording(ctx, rec); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (m *Manager) handleNextError(ctx context.Context, err error) {
	m.setLastError(err)
	m.logger.Error("failed to fetch next recording", logging.Error(err))
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(m.cfg.Workflow.ErrorRetryInterval) * time.Second):
	}
}

func (m *Manager) waitForWorkOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}

// RunOnce drains the queue synchronously and returns the number of stage
// executions performed. A recording whose stage leaves its status unchanged
// (for example one still waiting on its transcript sidecar) is set aside for
// the rest of the drain so its siblings still run to completion.
func (m *Manager) RunOnce(ctx context.Context) (int, error) {
	m.mu.RLock()
	configured := len(m.statusOrder) > 0
	m.mu.RUnlock()
	if !configured {
		return 0, errors.New("workflow stages not configured")
	}

	processed := 0
	stalled := make(map[int64]struct{})
	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		exclude := make([]int64, 0, len(stalled))
		for id := range stalled {
			exclude = append(exclude, id)
		}
		rec, err := m.store.NextForStatusesExcluding(ctx, exclude, m.statusOrder...)
		if err != nil {
			return processed, err
		}
		if rec == nil {
			return processed, nil
		}

		pickStatus := rec.Status
		if err := m.processRecording(ctx, rec); err != nil {
			if errors.Is(err, context.Canceled) {
				return processed, err
			}
		}
		processed++
		if rec.Status == pickStatus {
			stalled[rec.ID] = struct{}{}
		}
	}
}

// stageForStatus resolves the pipeline stage whose start status matches.
func (m *Manager) stageForStatus(status queue.Status) (pipelineStage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stg, ok := m.stageByStart[status]
	return stg, ok
}
