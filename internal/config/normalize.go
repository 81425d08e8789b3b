package config

import "strings"

// normalize expands paths and fills empty fields with defaults so validation
// runs on complete values.
func (c *Config) normalize() error {
	defaults := Default()

	var err error
	if c.Paths.IncomingDir, err = expandOrDefault(c.Paths.IncomingDir, defaults.Paths.IncomingDir); err != nil {
		return err
	}
	if c.Paths.ArtifactsDir, err = expandOrDefault(c.Paths.ArtifactsDir, defaults.Paths.ArtifactsDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandOrDefault(c.Paths.LogDir, defaults.Paths.LogDir); err != nil {
		return err
	}

	c.Ingest.FilePrefix = strings.TrimSpace(c.Ingest.FilePrefix)
	if c.Ingest.FilePrefix == "" {
		c.Ingest.FilePrefix = defaults.Ingest.FilePrefix
	}
	c.Ingest.AudioExtension = normalizeExtension(c.Ingest.AudioExtension, defaults.Ingest.AudioExtension)
	c.Ingest.TranscriptExtension = normalizeExtension(c.Ingest.TranscriptExtension, defaults.Ingest.TranscriptExtension)
	if c.Ingest.TranscriptTimeout <= 0 {
		c.Ingest.TranscriptTimeout = defaults.Ingest.TranscriptTimeout
	}
	if c.Ingest.RescanInterval <= 0 {
		c.Ingest.RescanInterval = defaults.Ingest.RescanInterval
	}

	if len(c.Boundary.IntroductionMarkers) == 0 {
		c.Boundary.IntroductionMarkers = append([]string(nil), defaults.Boundary.IntroductionMarkers...)
	}
	if len(c.Boundary.ClosingMarkers) == 0 {
		c.Boundary.ClosingMarkers = append([]string(nil), defaults.Boundary.ClosingMarkers...)
	}
	c.Boundary.Fallback = strings.ToLower(strings.TrimSpace(c.Boundary.Fallback))
	if c.Boundary.Fallback == "" {
		c.Boundary.Fallback = defaults.Boundary.Fallback
	}
	if c.Boundary.MinElapsedFloor < 0 {
		c.Boundary.MinElapsedFloor = 0
	}
	if c.Boundary.MaxHomilyDuration <= 0 {
		c.Boundary.MaxHomilyDuration = defaults.Boundary.MaxHomilyDuration
	}

	c.Comparison.Metric = strings.ToLower(strings.TrimSpace(c.Comparison.Metric))
	if c.Comparison.Metric == "" {
		c.Comparison.Metric = defaults.Comparison.Metric
	}

	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaults.Notifications.RequestTimeout
	}
	if c.Notifications.DispatchInterval <= 0 {
		c.Notifications.DispatchInterval = defaults.Notifications.DispatchInterval
	}

	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaults.Workflow.QueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaults.Workflow.ErrorRetryInterval
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaults.Workflow.HeartbeatInterval
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		c.Workflow.HeartbeatTimeout = defaults.Workflow.HeartbeatTimeout
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}

	return nil
}

func expandOrDefault(value, fallback string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	return expandPath(value)
}

func normalizeExtension(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	if !strings.HasPrefix(value, ".") {
		value = "." + value
	}
	return value
}
