package boundary

import (
	"errors"
	"time"

	"ambo/internal/textkit"
	"ambo/internal/transcript"
)

// ErrBoundaryNotFound reports that no usable homily window exists in the
// transcript. The caller decides whether a fallback policy applies; the
// detector never guesses.
var ErrBoundaryNotFound = errors.New("homily boundary not found")

// Boundary is the located homily window within a recording.
type Boundary struct {
	Start   time.Duration
	End     time.Duration
	Clamped bool
}

// Detector scans transcript cues for liturgical transition phrases.
type Detector struct {
	normalizer  *textkit.Normalizer
	intro       *MarkerSet
	closing     *MarkerSet
	minElapsed  time.Duration
	maxDuration time.Duration
}

// NewDetector builds a detector from pre-normalized marker sets. minElapsed
// rejects false positives from the service's opening segment; maxDuration
// caps the window when no closing marker appears.
func NewDetector(normalizer *textkit.Normalizer, intro, closing *MarkerSet, minElapsed, maxDuration time.Duration) *Detector {
	return &Detector{
		normalizer:  normalizer,
		intro:       intro,
		closing:     closing,
		minElapsed:  minElapsed,
		maxDuration: maxDuration,
	}
}

// Detect locates the homily window. The start is the timestamp of the first
// cue at or past the elapsed floor whose text matches an introduction marker;
// ties go to the earliest cue because cues arrive sorted. The end is the
// timestamp of the first later cue matching a closing marker, clamped to
// start+maxDuration when no closing marker appears inside that ceiling.
// Detection is deterministic: identical cues and config yield an identical
// window.
func (d *Detector) Detect(cues []transcript.Cue) (Boundary, error) {
	startIdx := -1
	var start time.Duration
	for i, cue := range cues {
		if cue.Start < d.minElapsed {
			continue
		}
		if d.intro.Matches(d.normalizer.Normalize(cue.Text)) {
			startIdx = i
			start = cue.Start
			break
		}
	}
	if startIdx < 0 {
		return Boundary{}, ErrBoundaryNotFound
	}

	ceiling := start + d.maxDuration
	end := ceiling
	clamped := true
	for _, cue := range cues[startIdx+1:] {
		if cue.Start > ceiling {
			break
		}
		if d.closing.Matches(d.normalizer.Normalize(cue.Text)) {
			end = cue.Start
			clamped = false
			break
		}
	}

	// The transcript may end before the clamp ceiling.
	if clamped && len(cues) > 0 {
		if last := cues[len(cues)-1].End; last < end {
			end = last
		}
	}

	if end <= start {
		return Boundary{}, ErrBoundaryNotFound
	}
	return Boundary{Start: start, End: end, Clamped: clamped}, nil
}
