package testsupport

import (
	"context"
	"testing"
	"time"

	"ambo/internal/config"
	"ambo/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRecording creates a recording for tests using the provided store.
func NewRecording(t testing.TB, store *queue.Store, sourcePath, weekendKey string, serviceAt time.Time) *queue.Recording {
	t.Helper()

	rec, err := store.NewRecording(context.Background(), sourcePath, "", weekendKey, serviceAt)
	if err != nil {
		t.Fatalf("store.NewRecording: %v", err)
	}
	return rec
}
