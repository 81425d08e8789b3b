package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"ambo/internal/logging"
	"ambo/internal/queue"
	"ambo/internal/testsupport"
)

func TestRescanEnqueuesMatchingRecordings(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	testsupport.WriteFile(t, filepath.Join(cfg.Paths.IncomingDir, "Mass-2026-03-08-0930.mp3"), 64)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.IncomingDir, "Mass-2026-03-08-0930.vtt"), 64)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.IncomingDir, "Mass-notes.txt"), 16)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.IncomingDir, "choir-practice.mp3"), 64)

	watcher, err := NewWatcher(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer watcher.Close()

	ctx := context.Background()
	if err := watcher.Rescan(ctx); err != nil {
		t.Fatalf("Rescan: %v", err)
	}

	recordings, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recordings) != 1 {
		t.Fatalf("expected 1 recording, got %d", len(recordings))
	}
	rec := recordings[0]
	if rec.Title != "Mass-2026-03-08-0930" {
		t.Errorf("title = %q", rec.Title)
	}
	if rec.Status != queue.StatusIngested {
		t.Errorf("status = %s, want %s", rec.Status, queue.StatusIngested)
	}
	if rec.WeekendKey == "" {
		t.Error("weekend key not set")
	}

	// A second pass must not duplicate the recording.
	if err := watcher.Rescan(ctx); err != nil {
		t.Fatalf("second Rescan: %v", err)
	}
	recordings, err = store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recordings) != 1 {
		t.Fatalf("expected 1 recording after rescan, got %d", len(recordings))
	}
}

func TestRunPicksUpCreatedFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Ingest.RescanInterval = 3600
	store := testsupport.MustOpenStore(t, cfg)

	watcher, err := NewWatcher(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer watcher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		watcher.Run(ctx)
	}()

	testsupport.WriteFile(t, filepath.Join(cfg.Paths.IncomingDir, "Mass-2026-03-14-1700.mp3"), 64)

	deadline := time.Now().Add(5 * time.Second)
	for {
		recordings, err := store.List(context.Background())
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(recordings) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("recording never enqueued, have %d", len(recordings))
		}
		time.Sleep(50 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}

func TestRunHandlesBurstOfArrivals(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Ingest.RescanInterval = 3600
	store := testsupport.MustOpenStore(t, cfg)

	watcher, err := NewWatcher(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer watcher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		watcher.Run(ctx)
	}()

	// Settle waits must overlap: eight serialized waits would exceed the
	// deadline and back up the event channel.
	const arrivals = 8
	for i := 0; i < arrivals; i++ {
		name := filepath.Join(cfg.Paths.IncomingDir, fmt.Sprintf("Mass-2026-03-14-%02d00.mp3", i+8))
		testsupport.WriteFile(t, name, 64)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		recordings, err := store.List(context.Background())
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(recordings) == arrivals {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d recordings, have %d", arrivals, len(recordings))
		}
		time.Sleep(50 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}
