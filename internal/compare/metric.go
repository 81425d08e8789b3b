package compare

import (
	"fmt"

	"ambo/internal/textkit"
)

// Metric scores the similarity of two normalized token streams on [0, 1].
type Metric interface {
	Name() string
	Score(a, b []string) float64
}

// NewMetric resolves a configured metric name.
func NewMetric(name string) (Metric, error) {
	switch name {
	case "cosine", "":
		return cosineMetric{}, nil
	case "lcs":
		return lcsMetric{}, nil
	default:
		return nil, fmt.Errorf("unknown comparison metric %q", name)
	}
}

// cosineMetric scores term-frequency fingerprints. Word order is ignored, so
// a reordered delivery of the same content still scores high.
type cosineMetric struct{}

func (cosineMetric) Name() string { return "cosine" }

func (cosineMetric) Score(a, b []string) float64 {
	return clamp(textkit.CosineSimilarity(textkit.NewFingerprint(a), textkit.NewFingerprint(b)))
}

// lcsMetric scores the longest common token subsequence relative to the mean
// length of the two streams. Order-sensitive, so heavier edits score lower
// than under cosine.
type lcsMetric struct{}

func (lcsMetric) Name() string { return "lcs" }

func (lcsMetric) Score(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	// Two-row dynamic program keeps memory linear in the shorter stream.
	if len(b) > len(a) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}

	lcs := float64(prev[len(b)])
	mean := float64(len(a)+len(b)) / 2
	return clamp(lcs / mean)
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
