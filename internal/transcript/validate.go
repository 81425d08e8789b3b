package transcript

import (
	"errors"
	"fmt"
	"strings"
)

// ErrGarbage marks transcripts whose content cannot be meaningful speech.
var ErrGarbage = errors.New("transcript content unusable")

// Validate applies sanity checks to the full transcript text before any
// boundary work happens. A transcription service failure commonly produces an
// empty file or one caption repeated for the whole recording; both waste a
// detection pass and poison cross-recording comparisons.
func Validate(cues []Cue) error {
	var b strings.Builder
	for _, cue := range cues {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(cue.Text)
	}
	content := strings.TrimSpace(b.String())

	if len(content) < 10 {
		return fmt.Errorf("%w: blank or too short", ErrGarbage)
	}

	words := strings.Fields(strings.ToLower(content))
	if len(words) <= 50 {
		return nil
	}

	unique := make(map[string]int, len(words))
	for _, word := range words {
		unique[word]++
	}
	if len(unique) < 10 {
		return fmt.Errorf("%w: highly repetitive", ErrGarbage)
	}

	var dominant int
	for _, count := range unique {
		if count > dominant {
			dominant = count
		}
	}
	if float64(dominant)/float64(len(words)) > 0.5 {
		return fmt.Errorf("%w: dominant repetition", ErrGarbage)
	}

	return nil
}
