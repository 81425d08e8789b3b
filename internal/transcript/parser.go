package transcript

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Cue is a single timed caption block.
type Cue struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// ParseResult carries the usable cues plus a count of blocks that were
// dropped because their timing line could not be understood.
type ParseResult struct {
	Cues    []Cue
	Skipped int
}

var timingLinePattern = regexp.MustCompile(`^(\d+:\d{2}(?::\d{2})?\.\d{3})\s+-->\s+(\d+:\d{2}(?::\d{2})?\.\d{3})`)

// ParseFile reads and parses the transcript at path.
func ParseFile(path string) (*ParseResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse consumes a WebVTT (or SRT-shaped) transcript stream. Malformed blocks
// are skipped and counted rather than failing the whole document; transcripts
// arrive from an external transcription service and partial damage is routine.
func Parse(r io.Reader) (*ParseResult, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	result := &ParseResult{}
	var (
		current        *Cue
		textBuf        strings.Builder
		haveText       bool
		pendingNumeric string
	)

	flush := func() {
		if current == nil {
			return
		}
		text := strings.TrimSpace(textBuf.String())
		if text != "" {
			result.Cues = append(result.Cues, Cue{Start: current.Start, End: current.End, Text: text})
		}
		current = nil
		textBuf.Reset()
		haveText = false
	}

	appendText := func(line string) {
		if current == nil {
			return
		}
		if textBuf.Len() > 0 {
			textBuf.WriteByte(' ')
		}
		textBuf.WriteString(line)
		haveText = true
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "WEBVTT") || strings.HasPrefix(line, "NOTE") {
			continue
		}

		isTiming := strings.Contains(line, "-->")

		// A held digit-only line settles here: a timing line means it was
		// an SRT sequence number and gets dropped, anything else means it
		// was caption text after all.
		if pendingNumeric != "" {
			if !isTiming {
				appendText(pendingNumeric)
			}
			pendingNumeric = ""
		}

		if isTiming {
			flush()
			match := timingLinePattern.FindStringSubmatch(line)
			if match == nil {
				result.Skipped++
				continue
			}
			start, err := ParseTimestamp(match[1])
			if err != nil {
				result.Skipped++
				continue
			}
			end, err := ParseTimestamp(match[2])
			if err != nil {
				result.Skipped++
				continue
			}
			current = &Cue{Start: start, End: end}
			continue
		}

		// A digit-only line following completed text is ambiguous: the
		// next block's sequence number in SRT, or legitimate numeric
		// caption text ("40"). Hold it until the next line decides.
		if isSequenceLine(line) && (current == nil || haveText) {
			pendingNumeric = line
			continue
		}

		appendText(line)
	}
	if pendingNumeric != "" {
		appendText(pendingNumeric)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	sort.SliceStable(result.Cues, func(i, j int) bool {
		return result.Cues[i].Start < result.Cues[j].Start
	})
	return result, nil
}

// ParseTimestamp converts a VTT/SRT timestamp (H:MM:SS.mmm or MM:SS.mmm) to a
// duration from the start of the recording.
func ParseTimestamp(value string) (time.Duration, error) {
	timePart := value
	var millis int
	if dot := strings.LastIndexByte(value, '.'); dot >= 0 {
		timePart = value[:dot]
		parsed, err := strconv.Atoi(value[dot+1:])
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		millis = parsed
	}

	parts := strings.Split(timePart, ":")
	var hours, minutes, seconds int
	switch len(parts) {
	case 3:
		values, err := atoiAll(parts)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		hours, minutes, seconds = values[0], values[1], values[2]
	case 2:
		values, err := atoiAll(parts)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		minutes, seconds = values[0], values[1]
	default:
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}

	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond, nil
}

func isSequenceLine(line string) bool {
	_, err := strconv.Atoi(line)
	return err == nil
}

func atoiAll(parts []string) ([]int, error) {
	values := make([]int, len(parts))
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}
