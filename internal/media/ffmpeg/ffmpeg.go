// Package ffmpeg wraps the ffmpeg and ffprobe binaries for audio inspection
// and stream-copy slicing.
package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Tool invokes the system ffmpeg/ffprobe binaries.
type Tool struct {
	ffmpegBinary  string
	ffprobeBinary string
}

// New constructs a tool around the configured binary names. Empty names fall
// back to PATH lookup of the conventional binaries.
func New(ffmpegBinary, ffprobeBinary string) *Tool {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(ffprobeBinary) == "" {
		ffprobeBinary = "ffprobe"
	}
	return &Tool{ffmpegBinary: ffmpegBinary, ffprobeBinary: ffprobeBinary}
}

// Available reports whether both binaries resolve on PATH.
func (t *Tool) Available() error {
	if _, err := exec.LookPath(t.ffmpegBinary); err != nil {
		return fmt.Errorf("ffmpeg binary %q not found", t.ffmpegBinary)
	}
	if _, err := exec.LookPath(t.ffprobeBinary); err != nil {
		return fmt.Errorf("ffprobe binary %q not found", t.ffprobeBinary)
	}
	return nil
}

type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe executes ffprobe against the provided path and returns the container
// duration. A zero duration with nil error means ffprobe could not report one.
func (t *Tool) Probe(ctx context.Context, path string) (time.Duration, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, t.ffprobeBinary, "-v", "error", "-hide_banner", "-show_format", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}

	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return 0, fmt.Errorf("ffprobe parse: %w", err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(result.Format.Duration), 64)
	if err != nil || seconds < 0 {
		return 0, nil
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// Slice copies the [start, end) window of the source audio into outputPath
// without re-encoding.
func (t *Tool) Slice(ctx context.Context, sourcePath, outputPath string, start, end time.Duration) error {
	if strings.TrimSpace(sourcePath) == "" {
		return errors.New("ffmpeg slice: empty source path")
	}
	if strings.TrimSpace(outputPath) == "" {
		return errors.New("ffmpeg slice: empty output path")
	}
	if end <= start {
		return fmt.Errorf("ffmpeg slice: window end %s not after start %s", end, start)
	}

	cmd := exec.CommandContext(
		ctx,
		t.ffmpegBinary,
		"-y",
		"-i", sourcePath,
		"-ss", formatSeconds(start),
		"-to", formatSeconds(end),
		"-c", "copy",
		outputPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg slice: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
