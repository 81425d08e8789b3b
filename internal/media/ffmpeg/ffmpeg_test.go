package ffmpeg

import (
	"context"
	"testing"
	"time"
)

func TestNewDefaultsToPathBinaries(t *testing.T) {
	tool := New("", "  ")
	if tool.ffmpegBinary != "ffmpeg" {
		t.Fatalf("ffmpeg binary = %q, want %q", tool.ffmpegBinary, "ffmpeg")
	}
	if tool.ffprobeBinary != "ffprobe" {
		t.Fatalf("ffprobe binary = %q, want %q", tool.ffprobeBinary, "ffprobe")
	}

	tool = New("/opt/ffmpeg/bin/ffmpeg", "/opt/ffmpeg/bin/ffprobe")
	if tool.ffmpegBinary != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("ffmpeg binary = %q", tool.ffmpegBinary)
	}
}

func TestSliceRejectsInvalidArguments(t *testing.T) {
	tool := New("", "")
	ctx := context.Background()

	if err := tool.Slice(ctx, "", "out.mp3", 0, time.Minute); err == nil {
		t.Fatal("expected error for empty source path")
	}
	if err := tool.Slice(ctx, "in.mp3", "", 0, time.Minute); err == nil {
		t.Fatal("expected error for empty output path")
	}
	if err := tool.Slice(ctx, "in.mp3", "out.mp3", time.Minute, time.Minute); err == nil {
		t.Fatal("expected error for empty window")
	}
	if err := tool.Slice(ctx, "in.mp3", "out.mp3", 2*time.Minute, time.Minute); err == nil {
		t.Fatal("expected error for inverted window")
	}
}

func TestFormatSeconds(t *testing.T) {
	cases := map[time.Duration]string{
		0:                              "0.000",
		1500 * time.Millisecond:        "1.500",
		12*time.Minute + 3*time.Second: "723.000",
	}
	for d, want := range cases {
		if got := formatSeconds(d); got != want {
			t.Errorf("formatSeconds(%s) = %q, want %q", d, got, want)
		}
	}
}

func TestProbeRejectsEmptyPath(t *testing.T) {
	if _, err := New("", "").Probe(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
