package workflow_test

import (
	"context"
	"testing"
	"time"

	"ambo/internal/logging"
	"ambo/internal/queue"
	"ambo/internal/services"
	"ambo/internal/testsupport"
	"ambo/internal/workflow"
)

type stubStage struct {
	name        string
	prepareHook func(*queue.Recording)
	executeHook func(*queue.Recording)
	prepareErr  error
	executeErr  error
	health      workflow.Health
}

func newStubStage(name string) *stubStage {
	return &stubStage{name: name, health: workflow.Healthy(name)}
}

func (s *stubStage) Prepare(_ context.Context, rec *queue.Recording) error {
	if s.prepareHook != nil {
		s.prepareHook(rec)
	}
	return s.prepareErr
}

func (s *stubStage) Execute(_ context.Context, rec *queue.Recording) error {
	if s.executeHook != nil {
		s.executeHook(rec)
	}
	return s.executeErr
}

func (s *stubStage) HealthCheck(context.Context) workflow.Health {
	return s.health
}

type stubNotifier struct {
	reviews []string
	errors  []string
}

func (n *stubNotifier) NotifyDeviation(context.Context, string, string, string, float64) error {
	return nil
}

func (n *stubNotifier) NotifyReview(_ context.Context, title, _ string) error {
	n.reviews = append(n.reviews, title)
	return nil
}

func (n *stubNotifier) NotifyError(_ context.Context, _ error, contextLabel string) error {
	n.errors = append(n.errors, contextLabel)
	return nil
}

func (n *stubNotifier) TestNotification(context.Context) error { return nil }

func fullStageSet() workflow.StageSet {
	return workflow.StageSet{
		Ingest:    newStubStage("ingest"),
		Boundary:  newStubStage("boundary"),
		Extract:   newStubStage("extract"),
		Normalize: newStubStage("normalize"),
		Score:     newStubStage("score"),
		Finalize:  newStubStage("finalize"),
	}
}

func startManager(t *testing.T, mgr *workflow.Manager) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(mgr.Stop)
}

func waitForStatus(t *testing.T, store *queue.Store, id int64, want queue.Status) *queue.Recording {
	t.Helper()
	deadline := time.After(30 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for status %s", want)
		default:
		}
		rec, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if rec != nil && rec.Status == want {
			return rec
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func TestManagerRunsRecordingToFinalized(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 0
	store := testsupport.MustOpenStore(t, cfg)

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &stubNotifier{})
	mgr.ConfigureStages(fullStageSet())
	startManager(t, mgr)

	rec := testsupport.NewRecording(t, store, "/in/Mass-a.mp3", "2026-03-08", time.Now())
	final := waitForStatus(t, store, rec.ID, queue.StatusFinalized)
	if final.ErrorMessage != "" {
		t.Errorf("unexpected error message %q", final.ErrorMessage)
	}
	if final.LastHeartbeat != nil {
		t.Error("heartbeat not cleared after completion")
	}
}

func TestManagerRoutesValidationFailureToReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 0
	store := testsupport.MustOpenStore(t, cfg)

	set := fullStageSet()
	boundary := newStubStage("boundary")
	boundary.executeErr = services.Wrap(services.ErrValidation, "detecting", "validate inputs", "transcript missing", nil)
	set.Boundary = boundary

	notifier := &stubNotifier{}
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier)
	mgr.ConfigureStages(set)
	startManager(t, mgr)

	rec := testsupport.NewRecording(t, store, "/in/Mass-b.mp3", "2026-03-08", time.Now())
	parked := waitForStatus(t, store, rec.ID, queue.StatusReview)
	if !parked.NeedsReview {
		t.Error("review flag not set")
	}
	if parked.ReviewReason == "" {
		t.Error("review reason not set")
	}
	if len(notifier.reviews) == 0 {
		t.Error("no review notification sent")
	}
}

func TestManagerRoutesTransientFailureToFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 0
	store := testsupport.MustOpenStore(t, cfg)

	set := fullStageSet()
	extract := newStubStage("extract")
	extract.executeErr = services.Wrap(services.ErrTransient, "extracting", "slice audio", "source unreadable", nil)
	set.Extract = extract

	notifier := &stubNotifier{}
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier)
	mgr.ConfigureStages(set)
	startManager(t, mgr)

	rec := testsupport.NewRecording(t, store, "/in/Mass-c.mp3", "2026-03-08", time.Now())
	failed := waitForStatus(t, store, rec.ID, queue.StatusFailed)
	if failed.ErrorMessage == "" {
		t.Error("error message not persisted")
	}
	if len(notifier.errors) == 0 {
		t.Error("no error notification sent")
	}
}

func TestManagerKeepsHandlerChosenStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 0
	store := testsupport.MustOpenStore(t, cfg)

	// The ingest stage reports "still waiting" by rolling the recording
	// back to ingested; the manager must not override that with the done
	// status. Count executions to prove the recording is re-polled.
	executions := make(chan struct{}, 16)
	set := fullStageSet()
	ingest := newStubStage("ingest")
	ingest.executeHook = func(rec *queue.Recording) {
		select {
		case executions <- struct{}{}:
			rec.Status = queue.StatusIngested
		default:
			// Let the recording advance once the channel is full.
		}
	}
	set.Ingest = ingest

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &stubNotifier{})
	mgr.ConfigureStages(set)
	startManager(t, mgr)

	rec := testsupport.NewRecording(t, store, "/in/Mass-d.mp3", "2026-03-08", time.Now())
	waitForStatus(t, store, rec.ID, queue.StatusFinalized)
	if len(executions) < 2 {
		t.Errorf("expected the waiting recording to be re-polled, got %d executions", len(executions))
	}
}

func TestRunOnceDrainsPastWaitingSibling(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	// One recording keeps rolling back to ingested (no transcript sidecar
	// yet). Processing bumps its updated_at, so without setting it aside it
	// would be the oldest actionable recording again after every pick and
	// the drain would stop with the sibling mid-pipeline.
	set := fullStageSet()
	ingest := newStubStage("ingest")
	ingest.executeHook = func(rec *queue.Recording) {
		if rec.SourcePath == "/in/Mass-stalled.mp3" {
			rec.Status = queue.StatusIngested
		}
	}
	set.Ingest = ingest

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &stubNotifier{})
	mgr.ConfigureStages(set)

	waiting := testsupport.NewRecording(t, store, "/in/Mass-stalled.mp3", "2026-03-08", time.Now())
	healthy := testsupport.NewRecording(t, store, "/in/Mass-healthy.mp3", "2026-03-08", time.Now())

	processed, err := mgr.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	rec, err := store.GetByID(context.Background(), healthy.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if rec.Status != queue.StatusFinalized {
		t.Errorf("healthy recording left at %s; waiting sibling halted the drain", rec.Status)
	}

	rec, err = store.GetByID(context.Background(), waiting.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if rec.Status != queue.StatusIngested {
		t.Errorf("waiting recording moved to %s", rec.Status)
	}

	// One execution for the waiting recording, six for the full pipeline.
	if processed != 7 {
		t.Errorf("processed = %d, want 7", processed)
	}
}

func TestManagerStartRequiresStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &stubNotifier{})
	if err := mgr.Start(context.Background()); err == nil {
		mgr.Stop()
		t.Fatal("expected Start to fail without configured stages")
	}
}

func TestManagerStatusReportsStageHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	set := fullStageSet()
	boundary := newStubStage("boundary")
	boundary.health = workflow.Unhealthy("boundary", "no markers configured")
	set.Boundary = boundary

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &stubNotifier{})
	mgr.ConfigureStages(set)

	summary := mgr.Status(context.Background())
	if summary.Running {
		t.Error("manager reported running before Start")
	}
	health, ok := summary.StageHealth["boundary"]
	if !ok {
		t.Fatal("boundary health missing")
	}
	if health.Ready || health.Detail != "no markers configured" {
		t.Errorf("unexpected health %+v", health)
	}
}
