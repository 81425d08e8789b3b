// Package daemon coordinates the long-running ambo process.
//
// It wires configuration, queue storage, the incoming recording watcher, the
// workflow manager, and the deviation notification dispatcher into a single
// lifecycle with flock-based locking to prevent multiple instances. The
// daemon exposes queue maintenance helpers and rolls recordings stranded
// mid-stage by a crash back to their stage start before processing resumes.
//
// Keep orchestration logic here: individual pipeline stages should live in
// their respective packages while the daemon focuses on startup, shutdown,
// and high level coordination.
package daemon
