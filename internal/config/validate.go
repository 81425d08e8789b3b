package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// FallbackNone parks recordings without a detectable boundary.
	FallbackNone = "none"
	// FallbackWindow extracts a fixed window instead of failing.
	FallbackWindow = "window"
)

var validMetrics = map[string]struct{}{
	"cosine": {},
	"lcs":    {},
}

// Validate checks for configuration values that cannot drive the pipeline.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.IncomingDir) == "" {
		problems = append(problems, "paths.incoming_dir must be set")
	}
	if strings.TrimSpace(c.Paths.ArtifactsDir) == "" {
		problems = append(problems, "paths.artifacts_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir must be set")
	}

	if len(c.Boundary.IntroductionMarkers) == 0 {
		problems = append(problems, "boundary.introduction_markers must not be empty")
	}
	if len(c.Boundary.ClosingMarkers) == 0 {
		problems = append(problems, "boundary.closing_markers must not be empty")
	}
	if c.Boundary.MaxHomilyDuration <= 0 {
		problems = append(problems, "boundary.max_homily_duration must be positive")
	}
	switch c.Boundary.Fallback {
	case FallbackNone:
	case FallbackWindow:
		if c.Boundary.FallbackDuration <= 0 {
			problems = append(problems, "boundary.fallback_duration must be positive when fallback is \"window\"")
		}
		if c.Boundary.FallbackOffset < 0 {
			problems = append(problems, "boundary.fallback_offset must not be negative")
		}
	default:
		problems = append(problems, fmt.Sprintf("boundary.fallback: unsupported value %q (expected \"none\" or \"window\")", c.Boundary.Fallback))
	}

	if _, ok := validMetrics[c.Comparison.Metric]; !ok {
		problems = append(problems, fmt.Sprintf("comparison.metric: unsupported value %q (expected \"cosine\" or \"lcs\")", c.Comparison.Metric))
	}
	if c.Comparison.DeviationThreshold < 0 || c.Comparison.DeviationThreshold > 1 {
		problems = append(problems, "comparison.deviation_threshold must be between 0.0 and 1.0")
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format: unsupported value %q", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
