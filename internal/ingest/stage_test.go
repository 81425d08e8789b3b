package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ambo/internal/logging"
	"ambo/internal/queue"
	"ambo/internal/testsupport"
)

func TestExecuteAdvancesWhenTranscriptExists(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stage := NewStage(cfg, logging.NewNop())

	source := filepath.Join(cfg.Paths.IncomingDir, "Mass-2026-03-08-0930.mp3")
	transcript := filepath.Join(cfg.Paths.IncomingDir, "Mass-2026-03-08-0930.vtt")
	testsupport.WriteFile(t, source, 64)
	testsupport.WriteVTT(t, transcript,
		testsupport.TimedText{Start: 10 * time.Second, Text: "In the beginning"},
	)

	rec := &queue.Recording{
		SourcePath: source,
		Status:     queue.StatusTranscribing,
		CreatedAt:  time.Now(),
	}
	if err := stage.Execute(context.Background(), rec); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if rec.Status != queue.StatusTranscribed {
		t.Errorf("status = %s, want %s", rec.Status, queue.StatusTranscribed)
	}
	if rec.TranscriptPath != transcript {
		t.Errorf("transcript path = %q, want %q", rec.TranscriptPath, transcript)
	}
}

func TestExecuteWaitsWhileTranscriptMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stage := NewStage(cfg, logging.NewNop())

	source := filepath.Join(cfg.Paths.IncomingDir, "Mass-2026-03-08-1100.mp3")
	testsupport.WriteFile(t, source, 64)

	rec := &queue.Recording{
		SourcePath: source,
		Status:     queue.StatusTranscribing,
		CreatedAt:  time.Now(),
	}
	if err := stage.Execute(context.Background(), rec); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if rec.Status != queue.StatusIngested {
		t.Errorf("status = %s, want %s", rec.Status, queue.StatusIngested)
	}
	if rec.TranscriptPath != "" {
		t.Errorf("transcript path unexpectedly set to %q", rec.TranscriptPath)
	}
}

func TestExecuteParksForReviewAfterTimeout(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Ingest.TranscriptTimeout = 1800
	stage := NewStage(cfg, logging.NewNop())

	source := filepath.Join(cfg.Paths.IncomingDir, "Mass-2026-03-08-1700.mp3")
	testsupport.WriteFile(t, source, 64)

	rec := &queue.Recording{
		SourcePath: source,
		Status:     queue.StatusTranscribing,
		CreatedAt:  time.Now().Add(-2 * time.Hour),
	}
	if err := stage.Execute(context.Background(), rec); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if rec.Status != queue.StatusReview {
		t.Errorf("status = %s, want %s", rec.Status, queue.StatusReview)
	}
	if !rec.NeedsReview || rec.ReviewReason == "" {
		t.Error("review flag or reason not set")
	}
}

func TestTranscriptPathSwapsExtension(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stage := NewStage(cfg, logging.NewNop())

	got := stage.TranscriptPath("/data/incoming/Mass-2026-03-08-0930.mp3")
	want := "/data/incoming/Mass-2026-03-08-0930.vtt"
	if got != want {
		t.Errorf("TranscriptPath = %q, want %q", got, want)
	}
}
