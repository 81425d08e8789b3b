// Package segment materializes the detected homily window: it slices the
// audio artifact out of the source recording with ffmpeg and canonicalizes
// the transcript text inside the window for comparison.
package segment
