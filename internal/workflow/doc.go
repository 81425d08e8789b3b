// Package workflow advances recordings through the configured pipeline
// stages.
//
// The Manager polls the queue, reclaims stale work via heartbeats, and feeds
// recordings into registered stage handlers (ingest, boundary, extract,
// normalize, score, finalize) while capturing progress and failure metadata.
// It also aggregates queue stats and calls stage health checks.
//
// Add new lifecycle stages by extending StageSet, updating the queue status
// enums, and teaching the manager how to transition recordings; this package
// is the authoritative home for that coordination logic.
package workflow
