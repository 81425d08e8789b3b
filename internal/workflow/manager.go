package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"ambo/internal/config"
	"ambo/internal/logging"
	"ambo/internal/notifications"
	"ambo/internal/queue"
)

// Manager advances recordings through the pipeline using registered stage
// handlers. A single loop polls the queue for the least recently touched
// actionable recording, so recordings parked waiting for a transcript never
// starve the rest of the weekend group.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	notifier     notifications.Service
	pollInterval time.Duration

	heartbeat *HeartbeatMonitor

	stages       []pipelineStage
	stageByStart map[queue.Status]pipelineStage
	statusOrder  []queue.Status

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastRec *queue.Recording
}

// StageSet bundles the concrete pipeline handlers the manager orchestrates.
type StageSet struct {
	Ingest    StageHandler
	Boundary  StageHandler
	Extract   StageHandler
	Normalize StageHandler
	Score     StageHandler
	Finalize  StageHandler
}

type pipelineStage struct {
	name             string
	handler          StageHandler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Manager {
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "workflow-manager"),
		notifier:     notifier,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
	}
}

// ConfigureStages registers the pipeline handlers in lifecycle order.
func (m *Manager) ConfigureStages(set StageSet) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stages = []pipelineStage{
		{name: "ingest", handler: set.Ingest, startStatus: queue.StatusIngested, processingStatus: queue.StatusTranscribing, doneStatus: queue.StatusTranscribed},
		{name: "boundary", handler: set.Boundary, startStatus: queue.StatusTranscribed, processingStatus: queue.StatusDetecting, doneStatus: queue.StatusBoundaryDetected},
		{name: "extract", handler: set.Extract, startStatus: queue.StatusBoundaryDetected, processingStatus: queue.StatusExtracting, doneStatus: queue.StatusExtracted},
		{name: "normalize", handler: set.Normalize, startStatus: queue.StatusExtracted, processingStatus: queue.StatusNormalizing, doneStatus: queue.StatusNormalized},
		{name: "score", handler: set.Score, startStatus: queue.StatusNormalized, processingStatus: queue.StatusScoring, doneStatus: queue.StatusScored},
		{name: "finalize", handler: set.Finalize, startStatus: queue.StatusScored, processingStatus: queue.StatusFinalizing, doneStatus: queue.StatusFinalized},
	}

	m.stageByStart = make(map[queue.Status]pipelineStage, len(m.stages))
	m.statusOrder = m.statusOrder[:0]
	for _, stg := range m.stages {
		m.stageByStart[stg.startStatus] = stg
		m.statusOrder = append(m.statusOrder, stg.startStatus)
	}
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.statusOrder) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastRecording(rec *queue.Recording) {
	m.mu.Lock()
	if rec != nil {
		cp := *rec
		m.lastRec = &cp
	} else {
		m.lastRec = nil
	}
	m.mu.Unlock()
}
