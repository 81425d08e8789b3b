package segment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ambo/internal/fileutil"
	"ambo/internal/transcript"
)

// ErrExtractionFailed marks slice failures for the current run. The source
// audio is immutable, so the next poll cycle may retry.
var ErrExtractionFailed = errors.New("segment extraction failed")

// AudioSlicer abstracts the ffmpeg dependency for tests.
type AudioSlicer interface {
	Probe(ctx context.Context, path string) (time.Duration, error)
	Slice(ctx context.Context, sourcePath, outputPath string, start, end time.Duration) error
}

// Extraction is the materialized homily artifact for one recording.
type Extraction struct {
	AudioPath string
	RawText   string
	Start     time.Duration
	End       time.Duration
}

// Extractor slices the homily window out of a recording and collects the raw
// transcript text inside the window.
type Extractor struct {
	slicer       AudioSlicer
	artifactsDir string
	filePrefix   string
}

// NewExtractor builds an extractor writing artifacts under artifactsDir.
// Output files reuse the source basename with filePrefix (normally "Mass-")
// swapped for "Homily-".
func NewExtractor(slicer AudioSlicer, artifactsDir, filePrefix string) *Extractor {
	return &Extractor{slicer: slicer, artifactsDir: artifactsDir, filePrefix: filePrefix}
}

// Extract probes the source, slices the audio window, and gathers cue text
// overlapping the window. The artifact is written through a partial file and
// renamed only after ffmpeg succeeds, so an aborted run never leaves a
// half-written file that looks finished. Re-running for the same recording
// overwrites the previous artifact.
func (e *Extractor) Extract(ctx context.Context, sourcePath string, cues []transcript.Cue, start, end time.Duration) (*Extraction, error) {
	if end <= start {
		return nil, fmt.Errorf("%w: window end %s not after start %s", ErrExtractionFailed, end, start)
	}

	if _, err := e.slicer.Probe(ctx, sourcePath); err != nil {
		return nil, fmt.Errorf("%w: source unreadable: %w", ErrExtractionFailed, err)
	}

	outputPath := e.ArtifactPath(sourcePath)
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("%w: ensure artifacts dir: %w", ErrExtractionFailed, err)
	}

	partial := fileutil.PartialPath(outputPath)
	if err := e.slicer.Slice(ctx, sourcePath, partial, start, end); err != nil {
		fileutil.Discard(partial)
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	if err := fileutil.Commit(partial, outputPath); err != nil {
		fileutil.Discard(partial)
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	return &Extraction{
		AudioPath: outputPath,
		RawText:   textInWindow(cues, start, end),
		Start:     start,
		End:       end,
	}, nil
}

// ArtifactPath returns the output path the extractor will write for a source.
func (e *Extractor) ArtifactPath(sourcePath string) string {
	base := filepath.Base(sourcePath)
	if e.filePrefix != "" && strings.HasPrefix(base, e.filePrefix) {
		base = "Homily-" + strings.TrimPrefix(base, e.filePrefix)
	} else {
		base = "Homily-" + base
	}
	return filepath.Join(e.artifactsDir, base)
}

// textInWindow joins the text of every cue overlapping [start, end).
func textInWindow(cues []transcript.Cue, start, end time.Duration) string {
	var b strings.Builder
	for _, cue := range cues {
		if cue.End <= start || cue.Start >= end {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(cue.Text)
	}
	return b.String()
}
