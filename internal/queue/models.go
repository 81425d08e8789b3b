package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a recording.
type Status string

const (
	StatusIngested         Status = "ingested"
	StatusTranscribing     Status = "transcribing"
	StatusTranscribed      Status = "transcribed"
	StatusDetecting        Status = "detecting"
	StatusBoundaryDetected Status = "boundary_detected"
	StatusExtracting       Status = "extracting"
	StatusExtracted        Status = "extracted"
	StatusNormalizing      Status = "normalizing"
	StatusNormalized       Status = "normalized"
	StatusScoring          Status = "scoring"
	StatusScored           Status = "scored"
	StatusFinalizing       Status = "finalizing"
	StatusFinalized        Status = "finalized"
	StatusBoundaryFailed   Status = "boundary_failed"
	StatusReview           Status = "review"
	StatusFailed           Status = "failed"
)

var allStatuses = []Status{
	StatusIngested,
	StatusTranscribing,
	StatusTranscribed,
	StatusDetecting,
	StatusBoundaryDetected,
	StatusExtracting,
	StatusExtracted,
	StatusNormalizing,
	StatusNormalized,
	StatusScoring,
	StatusScored,
	StatusFinalizing,
	StatusFinalized,
	StatusBoundaryFailed,
	StatusReview,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusTranscribing: {},
	StatusDetecting:    {},
	StatusExtracting:   {},
	StatusNormalizing:  {},
	StatusScoring:      {},
	StatusFinalizing:   {},
}

type statusTransition struct {
	from Status
	to   Status
}

// stageRollbackTransitions map each processing status back to the stable
// status its stage started from, used when reclaiming stuck recordings.
var stageRollbackTransitions = []statusTransition{
	{from: StatusTranscribing, to: StatusIngested},
	{from: StatusDetecting, to: StatusTranscribed},
	{from: StatusExtracting, to: StatusBoundaryDetected},
	{from: StatusNormalizing, to: StatusExtracted},
	{from: StatusScoring, to: StatusNormalized},
	{from: StatusFinalizing, to: StatusScored},
}

// HealthSummary describes aggregated recording counts per key lifecycle states.
type HealthSummary struct {
	Total          int
	Waiting        int
	Processing     int
	BoundaryFailed int
	Review         int
	Failed         int
	Finalized      int
}

// Recording represents one captured service persisted in SQLite.
type Recording struct {
	ID              int64
	SourcePath      string
	Title           string
	WeekendKey      string
	ServiceAt       time.Time
	TranscriptPath  string
	Status          Status
	CueCount        int
	SkippedBlocks   int
	BoundaryStart   float64 // seconds from recording start
	BoundaryEnd     float64
	BoundaryClamped bool
	ErrorMessage    string
	NeedsReview     bool
	ReviewReason    string
	ProgressStage   string
	ProgressMessage string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastHeartbeat   *time.Time
}

// HomilySegment is the derived artifact for one recording: the sliced audio
// range plus the raw and normalized transcript text inside the boundary.
// Exactly one segment exists per recording; re-runs overwrite it.
type HomilySegment struct {
	RecordingID    int64
	StartSeconds   float64
	EndSeconds     float64
	AudioPath      string
	RawText        string
	NormalizedText string
	CreatedAt      time.Time
}

// ComparisonResult records the similarity outcome for an unordered pair of
// recordings within a weekend group. RecordingA is always the lower ID.
type ComparisonResult struct {
	WeekendKey       string
	RecordingA       int64
	RecordingB       int64
	Score            float64
	DeviationFlagged bool
	Notified         bool
	CreatedAt        time.Time
}

// PairKey orders two recording identifiers into the canonical unordered pair.
func PairKey(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (r Recording) IsProcessing() bool {
	_, ok := processingStatuses[r.Status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether a status ends the pipeline for a recording.
// Failed recordings are terminal for the current run but retryable.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFinalized, StatusBoundaryFailed, StatusReview, StatusFailed:
		return true
	default:
		return false
	}
}

// ComparisonEligible reports whether a recording in this status has a
// normalized segment that siblings may score against. Recordings that never
// produced a boundary are excluded from comparison entirely.
func (s Status) ComparisonEligible() bool {
	switch s {
	case StatusNormalized, StatusScoring, StatusScored, StatusFinalizing, StatusFinalized:
		return true
	default:
		return false
	}
}

// SetFailed marks the recording as failed with the given error message.
func (r *Recording) SetFailed(message string) {
	r.Status = StatusFailed
	r.ErrorMessage = message
	r.ProgressStage = "Failed"
	r.ProgressMessage = message
	r.LastHeartbeat = nil
}

// SetReview parks the recording for manual review with a reason.
func (r *Recording) SetReview(reason string) {
	r.Status = StatusReview
	r.NeedsReview = true
	r.ReviewReason = reason
	r.ProgressStage = "Review"
	r.ProgressMessage = reason
	r.LastHeartbeat = nil
}

// InitProgress primes progress fields at the start of a stage.
func (r *Recording) InitProgress(stage, message string) {
	r.ProgressStage = stage
	r.ProgressMessage = message
	r.ErrorMessage = ""
}
