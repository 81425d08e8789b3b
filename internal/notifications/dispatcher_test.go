package notifications_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ambo/internal/logging"
	"ambo/internal/notifications"
	"ambo/internal/queue"
	"ambo/internal/testsupport"
)

type recordedDeviation struct {
	weekendKey string
	titleA     string
	titleB     string
	score      float64
}

type fakeService struct {
	deviations []recordedDeviation
	fail       bool
}

func (f *fakeService) NotifyDeviation(_ context.Context, weekendKey, titleA, titleB string, score float64) error {
	if f.fail {
		return errors.New("push rejected")
	}
	f.deviations = append(f.deviations, recordedDeviation{weekendKey, titleA, titleB, score})
	return nil
}

func (f *fakeService) NotifyReview(context.Context, string, string) error { return nil }
func (f *fakeService) NotifyError(context.Context, error, string) error   { return nil }
func (f *fakeService) TestNotification(context.Context) error             { return nil }

func seedFlaggedComparison(t *testing.T, store *queue.Store) *queue.ComparisonResult {
	t.Helper()
	ctx := context.Background()

	serviceAt := time.Date(2026, 3, 8, 9, 30, 0, 0, time.UTC)
	recA, err := store.NewRecording(ctx, "/in/Mass-a.mp3", "Mass-0930", "2026-03-08", serviceAt)
	if err != nil {
		t.Fatalf("NewRecording: %v", err)
	}
	recB, err := store.NewRecording(ctx, "/in/Mass-b.mp3", "Mass-1100", "2026-03-08", serviceAt.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("NewRecording: %v", err)
	}

	result, _, err := store.EnsureComparison(ctx, queue.ComparisonResult{
		WeekendKey:       "2026-03-08",
		RecordingA:       recA.ID,
		RecordingB:       recB.ID,
		Score:            0.31,
		DeviationFlagged: true,
	})
	if err != nil {
		t.Fatalf("EnsureComparison: %v", err)
	}
	return result
}

func TestDispatchPendingNotifiesAndMarks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	seedFlaggedComparison(t, store)

	svc := &fakeService{}
	dispatcher := notifications.NewDispatcher(cfg, store, svc, logging.NewNop())

	ctx := context.Background()
	if err := dispatcher.DispatchPending(ctx); err != nil {
		t.Fatalf("DispatchPending: %v", err)
	}

	if len(svc.deviations) != 1 {
		t.Fatalf("expected 1 deviation push, got %d", len(svc.deviations))
	}
	got := svc.deviations[0]
	if got.weekendKey != "2026-03-08" || got.titleA != "Mass-0930" || got.titleB != "Mass-1100" {
		t.Errorf("unexpected push %+v", got)
	}
	if got.score != 0.31 {
		t.Errorf("score = %v, want 0.31", got.score)
	}

	pending, err := store.FlaggedUnnotified(ctx)
	if err != nil {
		t.Fatalf("FlaggedUnnotified: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending results after dispatch, got %d", len(pending))
	}

	// A second cycle must not re-send.
	if err := dispatcher.DispatchPending(ctx); err != nil {
		t.Fatalf("second DispatchPending: %v", err)
	}
	if len(svc.deviations) != 1 {
		t.Fatalf("expected no duplicate push, got %d", len(svc.deviations))
	}
}

func TestDispatchPendingRetainsOnFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	seedFlaggedComparison(t, store)

	svc := &fakeService{fail: true}
	dispatcher := notifications.NewDispatcher(cfg, store, svc, logging.NewNop())

	ctx := context.Background()
	if err := dispatcher.DispatchPending(ctx); err != nil {
		t.Fatalf("DispatchPending: %v", err)
	}

	pending, err := store.FlaggedUnnotified(ctx)
	if err != nil {
		t.Fatalf("FlaggedUnnotified: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected result to stay pending after failed push, got %d", len(pending))
	}
}
