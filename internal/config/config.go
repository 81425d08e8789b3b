package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	IncomingDir  string `toml:"incoming_dir"`
	ArtifactsDir string `toml:"artifacts_dir"`
	LogDir       string `toml:"log_dir"`
}

// Ingest contains configuration for discovering recordings and their transcripts.
type Ingest struct {
	FilePrefix          string `toml:"file_prefix"`
	AudioExtension      string `toml:"audio_extension"`
	TranscriptExtension string `toml:"transcript_extension"`
	TranscriptTimeout   int    `toml:"transcript_timeout"`
	RescanInterval      int    `toml:"rescan_interval"`
	VigilCutoffHour     int    `toml:"vigil_cutoff_hour"`
}

// Boundary contains configuration for homily boundary detection.
type Boundary struct {
	IntroductionMarkers []string `toml:"introduction_markers"`
	ClosingMarkers      []string `toml:"closing_markers"`
	// MinElapsedFloor rejects start-marker matches inside the service's
	// opening segment. Seconds.
	MinElapsedFloor   int `toml:"min_elapsed_floor"`
	MaxHomilyDuration int `toml:"max_homily_duration"`
	// Fallback is the caller policy applied when no start marker is found:
	// "none" parks the recording in boundary_failed, "window" extracts a
	// fixed window at FallbackOffset for FallbackDuration.
	Fallback         string `toml:"fallback"`
	FallbackOffset   int    `toml:"fallback_offset"`
	FallbackDuration int    `toml:"fallback_duration"`
	MinDurationWarn  int    `toml:"min_duration_warn"`
	MaxDurationWarn  int    `toml:"max_duration_warn"`
}

// Comparison contains configuration for deviation scoring.
type Comparison struct {
	Metric             string   `toml:"metric"`
	DeviationThreshold float64  `toml:"deviation_threshold"`
	Stopwords          []string `toml:"stopwords"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic        string `toml:"ntfy_topic"`
	RequestTimeout   int    `toml:"request_timeout"`
	DispatchInterval int    `toml:"dispatch_interval"`
	Deviations       bool   `toml:"deviations"`
	Reviews          bool   `toml:"reviews"`
	Errors           bool   `toml:"errors"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for ambo.
//
// Configuration sections by subsystem:
//   - Paths: incoming recordings, extracted artifacts, logs and state
//   - Ingest: file naming conventions and transcript sidecar handling
//   - Boundary: liturgical marker sets and detection windows
//   - Comparison: similarity metric, threshold, and filler stopwords
//   - Notifications: ntfy push notification settings
//   - Workflow: daemon polling intervals and heartbeats
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Ingest        Ingest        `toml:"ingest"`
	Boundary      Boundary      `toml:"boundary"`
	Comparison    Comparison    `toml:"comparison"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ambo/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ambo.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.IncomingDir, c.Paths.ArtifactsDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for segment slicing.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for source inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// RescanInterval returns the incoming directory rescan period as a duration.
func (c *Config) RescanInterval() time.Duration {
	return time.Duration(c.Ingest.RescanInterval) * time.Second
}

// TranscriptTimeout returns how long a recording may wait for its transcript
// sidecar before being parked for review.
func (c *Config) TranscriptTimeout() time.Duration {
	return time.Duration(c.Ingest.TranscriptTimeout) * time.Second
}

// MinElapsedFloor returns the boundary floor as a duration.
func (c *Config) MinElapsedFloor() time.Duration {
	return time.Duration(c.Boundary.MinElapsedFloor) * time.Second
}

// MaxHomilyDuration returns the boundary ceiling as a duration.
func (c *Config) MaxHomilyDuration() time.Duration {
	return time.Duration(c.Boundary.MaxHomilyDuration) * time.Second
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
