// Package services provides shared error classification and context
// annotation for workflow stages.
//
// Stage failures are wrapped with sentinel markers (validation,
// configuration, not found, external tool, transient) so the workflow
// manager can decide whether a recording should be retried or parked for
// review. Context helpers attach recording, stage, and request identifiers
// that the logging package surfaces as structured fields.
package services
