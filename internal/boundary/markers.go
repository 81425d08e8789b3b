package boundary

import (
	"ambo/internal/textkit"
	"strings"
)

// MarkerSet holds normalized liturgical transition phrases and answers
// substring containment queries against normalized cue text.
type MarkerSet struct {
	phrases []string
}

// NewMarkerSet normalizes the configured phrases so matching is insensitive
// to case, punctuation, and spacing differences between the config file and
// the transcription output.
func NewMarkerSet(normalizer *textkit.Normalizer, phrases []string) *MarkerSet {
	set := &MarkerSet{phrases: make([]string, 0, len(phrases))}
	for _, phrase := range phrases {
		normalized := normalizer.Normalize(phrase)
		if normalized == "" {
			continue
		}
		set.phrases = append(set.phrases, normalized)
	}
	return set
}

// Matches reports whether any marker phrase occurs in the normalized text.
func (m *MarkerSet) Matches(normalizedText string) bool {
	if m == nil || normalizedText == "" {
		return false
	}
	for _, phrase := range m.phrases {
		if strings.Contains(normalizedText, phrase) {
			return true
		}
	}
	return false
}

// Len returns the number of usable phrases in the set.
func (m *MarkerSet) Len() int {
	if m == nil {
		return 0
	}
	return len(m.phrases)
}
