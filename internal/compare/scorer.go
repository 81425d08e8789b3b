package compare

import (
	"errors"
	"fmt"

	"ambo/internal/textkit"
)

// ErrInvalidComparisonScope reports an attempt to compare recordings that do
// not belong to the same weekend group. This is a caller error and is never
// silently corrected.
var ErrInvalidComparisonScope = errors.New("comparison outside weekend scope")

// Subject is one side of a deviation comparison.
type Subject struct {
	RecordingID    int64
	WeekendKey     string
	NormalizedText string
}

// Outcome is a scored pair.
type Outcome struct {
	Score            float64
	DeviationFlagged bool
}

// Scorer applies a similarity metric and flags scores below the deviation
// threshold.
type Scorer struct {
	metric     Metric
	normalizer *textkit.Normalizer
	threshold  float64
}

// NewScorer builds a scorer. The normalizer retokenizes stored normalized
// text; threshold is the similarity floor below which a pair is flagged.
func NewScorer(metric Metric, normalizer *textkit.Normalizer, threshold float64) *Scorer {
	return &Scorer{metric: metric, normalizer: normalizer, threshold: threshold}
}

// Score compares two subjects from the same weekend group. Identical
// normalized text scores exactly 1.0 without consulting the metric, so the
// self-similarity invariant holds regardless of metric arithmetic.
func (s *Scorer) Score(a, b Subject) (Outcome, error) {
	if a.WeekendKey == "" || a.WeekendKey != b.WeekendKey {
		return Outcome{}, fmt.Errorf("%w: %q vs %q", ErrInvalidComparisonScope, a.WeekendKey, b.WeekendKey)
	}

	var score float64
	if a.NormalizedText == b.NormalizedText && a.NormalizedText != "" {
		score = 1.0
	} else {
		score = s.metric.Score(s.normalizer.Tokens(a.NormalizedText), s.normalizer.Tokens(b.NormalizedText))
	}

	return Outcome{
		Score:            score,
		DeviationFlagged: score < s.threshold,
	}, nil
}

// MetricName reports the active metric for logging and CLI output.
func (s *Scorer) MetricName() string {
	return s.metric.Name()
}
