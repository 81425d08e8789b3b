package compare_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ambo/internal/compare"
	"ambo/internal/config"
	"ambo/internal/logging"
	"ambo/internal/queue"
	"ambo/internal/testsupport"
)

func addNormalizedRecording(t *testing.T, store *queue.Store, cfg *config.Config, name, weekend, normalized string) *queue.Recording {
	t.Helper()
	ctx := context.Background()
	rec := testsupport.NewRecording(t, store, filepath.Join(cfg.Paths.IncomingDir, name), weekend, time.Now().UTC())
	rec.Status = queue.StatusNormalized
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := store.UpsertSegment(ctx, &queue.HomilySegment{
		RecordingID:    rec.ID,
		StartSeconds:   600,
		EndSeconds:     1200,
		AudioPath:      filepath.Join(cfg.Paths.ArtifactsDir, "Homily-"+name),
		RawText:        normalized,
		NormalizedText: normalized,
	}); err != nil {
		t.Fatalf("UpsertSegment failed: %v", err)
	}
	return rec
}

func TestStageScoresSiblings(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	shared := "mercy is a daily practice not an abstraction we carry it into the week"
	subject := addNormalizedRecording(t, store, cfg, "Mass-0730.mp3", "2026-03-08", shared)
	twin := addNormalizedRecording(t, store, cfg, "Mass-0930.mp3", "2026-03-08", shared)
	divergent := addNormalizedRecording(t, store, cfg, "Mass-1130.mp3", "2026-03-08",
		"engine throttle gearbox piston exhaust manifold crankshaft torque")
	addNormalizedRecording(t, store, cfg, "Mass-other.mp3", "2026-03-15", shared)

	subject.Status = queue.StatusScoring

	stage, err := compare.NewStage(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("NewStage failed: %v", err)
	}
	if err := stage.Execute(ctx, subject); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if subject.Status != queue.StatusScored {
		t.Fatalf("expected scored, got %s", subject.Status)
	}

	comparisons, err := store.ComparisonsForRecording(ctx, "2026-03-08", subject.ID)
	if err != nil {
		t.Fatalf("ComparisonsForRecording failed: %v", err)
	}
	if len(comparisons) != 2 {
		t.Fatalf("expected 2 same-weekend comparisons, got %d", len(comparisons))
	}

	twinResult, err := store.GetComparison(ctx, "2026-03-08", subject.ID, twin.ID)
	if err != nil {
		t.Fatalf("GetComparison failed: %v", err)
	}
	if twinResult == nil || twinResult.Score != 1.0 || twinResult.DeviationFlagged {
		t.Fatalf("identical sibling should score 1.0 unflagged, got %#v", twinResult)
	}

	divergentResult, err := store.GetComparison(ctx, "2026-03-08", subject.ID, divergent.ID)
	if err != nil {
		t.Fatalf("GetComparison failed: %v", err)
	}
	if divergentResult == nil || !divergentResult.DeviationFlagged {
		t.Fatalf("divergent sibling should be flagged, got %#v", divergentResult)
	}
}

func TestStageRerunDoesNotRewritePairs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	text := "the same homily content delivered at both services this weekend"
	subject := addNormalizedRecording(t, store, cfg, "Mass-a.mp3", "2026-03-08", text)
	addNormalizedRecording(t, store, cfg, "Mass-b.mp3", "2026-03-08", text)

	subject.Status = queue.StatusScoring

	stage, err := compare.NewStage(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("NewStage failed: %v", err)
	}
	if err := stage.Execute(ctx, subject); err != nil {
		t.Fatalf("first Execute failed: %v", err)
	}

	before, err := store.ComparisonsForWeekend(ctx, "2026-03-08")
	if err != nil {
		t.Fatalf("ComparisonsForWeekend failed: %v", err)
	}

	subject.Status = queue.StatusScoring
	if err := stage.Execute(ctx, subject); err != nil {
		t.Fatalf("second Execute failed: %v", err)
	}

	after, err := store.ComparisonsForWeekend(ctx, "2026-03-08")
	if err != nil {
		t.Fatalf("ComparisonsForWeekend failed: %v", err)
	}
	if len(before) != 1 || len(after) != 1 {
		t.Fatalf("expected exactly one stable pair, got %d then %d", len(before), len(after))
	}
	if before[0].CreatedAt != after[0].CreatedAt {
		t.Fatal("re-run must not rewrite the existing comparison")
	}
}

func TestStageLonelyWeekendStillAdvances(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	subject := addNormalizedRecording(t, store, cfg, "Mass-solo.mp3", "2026-03-08",
		"a single service this weekend has nothing to compare against yet")
	subject.Status = queue.StatusScoring

	stage, err := compare.NewStage(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("NewStage failed: %v", err)
	}
	if err := stage.Execute(ctx, subject); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if subject.Status != queue.StatusScored {
		t.Fatalf("lonely recording should still advance, got %s", subject.Status)
	}

	comparisons, err := store.ComparisonsForWeekend(ctx, "2026-03-08")
	if err != nil {
		t.Fatalf("ComparisonsForWeekend failed: %v", err)
	}
	if len(comparisons) != 0 {
		t.Fatalf("expected no comparisons for a lonely weekend, got %d", len(comparisons))
	}
}

func TestStageRequiresNormalizedText(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	rec := testsupport.NewRecording(t, store, filepath.Join(cfg.Paths.IncomingDir, "Mass-a.mp3"), "2026-03-08", time.Now().UTC())
	rec.Status = queue.StatusScoring

	stage, err := compare.NewStage(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("NewStage failed: %v", err)
	}
	if err := stage.Execute(ctx, rec); err == nil {
		t.Fatal("expected error without normalized segment")
	}
}

func TestFinalizeStageSummarizes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	rec := addNormalizedRecording(t, store, cfg, "Mass-a.mp3", "2026-03-08", "words to finalize")
	other := addNormalizedRecording(t, store, cfg, "Mass-b.mp3", "2026-03-08", "completely different content entirely")
	if _, _, err := store.EnsureComparison(ctx, queue.ComparisonResult{
		WeekendKey:       "2026-03-08",
		RecordingA:       rec.ID,
		RecordingB:       other.ID,
		Score:            0.1,
		DeviationFlagged: true,
	}); err != nil {
		t.Fatalf("EnsureComparison failed: %v", err)
	}

	rec.Status = queue.StatusFinalizing
	stage := compare.NewFinalizeStage(cfg, store, logging.NewNop())
	if err := stage.Execute(ctx, rec); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if rec.Status != queue.StatusFinalized {
		t.Fatalf("expected finalized, got %s", rec.Status)
	}
}
