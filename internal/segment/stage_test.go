package segment_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ambo/internal/logging"
	"ambo/internal/queue"
	"ambo/internal/segment"
	"ambo/internal/testsupport"
)

type passingSlicer struct{}

func (passingSlicer) Probe(ctx context.Context, path string) (time.Duration, error) {
	return time.Hour, nil
}

func (passingSlicer) Slice(ctx context.Context, sourcePath, outputPath string, start, end time.Duration) error {
	return os.WriteFile(outputPath, []byte("audio"), 0o644)
}

func TestStageExtractsSegment(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	rec := testsupport.NewRecording(t, store, filepath.Join(cfg.Paths.IncomingDir, "Mass-a.mp3"), "2026-03-08", time.Now().UTC())
	rec.TranscriptPath = filepath.Join(cfg.Paths.IncomingDir, "Mass-a.vtt")
	rec.Status = queue.StatusExtracting
	rec.BoundaryStart = (10 * time.Minute).Seconds()
	rec.BoundaryEnd = (20 * time.Minute).Seconds()

	testsupport.WriteVTT(t, rec.TranscriptPath,
		testsupport.TimedText{Start: 12 * time.Minute, Text: "Sisters and brothers, today's Gospel asks something of us."},
		testsupport.TimedText{Start: 15 * time.Minute, Text: "Mercy is not an abstraction."},
	)

	stage := segment.NewStageWithSlicer(cfg, store, logging.NewNop(), passingSlicer{})
	if err := stage.Prepare(ctx, rec); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if err := stage.Execute(ctx, rec); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if rec.Status != queue.StatusExtracted {
		t.Fatalf("expected extracted, got %s", rec.Status)
	}

	seg, err := store.GetSegment(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetSegment failed: %v", err)
	}
	if seg == nil {
		t.Fatal("expected stored segment")
	}
	if seg.RawText == "" {
		t.Fatal("expected raw text captured from the window")
	}
	if filepath.Base(seg.AudioPath) != "Homily-a.mp3" {
		t.Fatalf("unexpected artifact name: %s", seg.AudioPath)
	}
	if _, err := os.Stat(seg.AudioPath); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
}

func TestStageFlagsSuspiciousDuration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	rec := testsupport.NewRecording(t, store, filepath.Join(cfg.Paths.IncomingDir, "Mass-a.mp3"), "2026-03-08", time.Now().UTC())
	rec.TranscriptPath = filepath.Join(cfg.Paths.IncomingDir, "Mass-a.vtt")
	rec.Status = queue.StatusExtracting
	rec.BoundaryStart = 600
	rec.BoundaryEnd = 630 // 30 seconds, below the warning floor

	testsupport.WriteVTT(t, rec.TranscriptPath,
		testsupport.TimedText{Start: 10 * time.Minute, Text: "a very short reflection"},
	)

	stage := segment.NewStageWithSlicer(cfg, store, logging.NewNop(), passingSlicer{})
	if err := stage.Execute(ctx, rec); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if rec.Status != queue.StatusExtracted {
		t.Fatalf("suspicious duration should not block extraction, got %s", rec.Status)
	}
	if !rec.NeedsReview {
		t.Fatal("expected needs_review flag for a 30s homily")
	}
}

func TestStageRequiresBoundary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	rec := testsupport.NewRecording(t, store, filepath.Join(cfg.Paths.IncomingDir, "Mass-a.mp3"), "2026-03-08", time.Now().UTC())
	rec.Status = queue.StatusExtracting

	stage := segment.NewStageWithSlicer(cfg, store, logging.NewNop(), passingSlicer{})
	if err := stage.Execute(ctx, rec); err == nil {
		t.Fatal("expected error without boundary window")
	}
}

func TestNormalizeStageWritesNormalizedText(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	rec := testsupport.NewRecording(t, store, filepath.Join(cfg.Paths.IncomingDir, "Mass-a.mp3"), "2026-03-08", time.Now().UTC())
	rec.Status = queue.StatusNormalizing

	if err := store.UpsertSegment(ctx, &queue.HomilySegment{
		RecordingID:  rec.ID,
		StartSeconds: 600,
		EndSeconds:   1200,
		AudioPath:    "/artifacts/Homily-a.mp3",
		RawText:      "Um, Mercy is NOT, uh... an abstraction!",
	}); err != nil {
		t.Fatalf("UpsertSegment failed: %v", err)
	}

	stage := segment.NewNormalizeStage(cfg, store, logging.NewNop())
	if err := stage.Execute(ctx, rec); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if rec.Status != queue.StatusNormalized {
		t.Fatalf("expected normalized, got %s", rec.Status)
	}
	seg, err := store.GetSegment(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetSegment failed: %v", err)
	}
	if seg.NormalizedText != "mercy is not an abstraction" {
		t.Fatalf("unexpected normalized text: %q", seg.NormalizedText)
	}
}

func TestNormalizeStageEmptyTextGoesToReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	rec := testsupport.NewRecording(t, store, filepath.Join(cfg.Paths.IncomingDir, "Mass-a.mp3"), "2026-03-08", time.Now().UTC())
	rec.Status = queue.StatusNormalizing

	if err := store.UpsertSegment(ctx, &queue.HomilySegment{
		RecordingID:  rec.ID,
		StartSeconds: 600,
		EndSeconds:   1200,
		AudioPath:    "/artifacts/Homily-a.mp3",
		RawText:      "um uh ...",
	}); err != nil {
		t.Fatalf("UpsertSegment failed: %v", err)
	}

	stage := segment.NewNormalizeStage(cfg, store, logging.NewNop())
	if err := stage.Execute(ctx, rec); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if rec.Status != queue.StatusReview {
		t.Fatalf("expected review for empty normalized text, got %s", rec.Status)
	}
}

func TestNormalizeStageRequiresSegment(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	rec := testsupport.NewRecording(t, store, filepath.Join(cfg.Paths.IncomingDir, "Mass-a.mp3"), "2026-03-08", time.Now().UTC())
	rec.Status = queue.StatusNormalizing

	stage := segment.NewNormalizeStage(cfg, store, logging.NewNop())
	if err := stage.Execute(ctx, rec); err == nil {
		t.Fatal("expected error without extracted segment")
	}
}
