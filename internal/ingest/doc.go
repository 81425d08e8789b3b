// Package ingest discovers new service recordings in the incoming directory,
// groups them into liturgical weekends, and waits for the transcript sidecar
// produced by the external speech-to-text collaborator.
package ingest
