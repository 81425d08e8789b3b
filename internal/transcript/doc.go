// Package transcript parses WebVTT and SRT caption files into timed cues and
// screens them for transcription failures before boundary detection runs.
package transcript
