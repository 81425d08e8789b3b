package testsupport

import (
	"path/filepath"
	"testing"

	"ambo/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.IncomingDir = filepath.Join(base, "incoming")
	cfgVal.Paths.ArtifactsDir = filepath.Join(base, "artifacts")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithNtfyTopic sets the notification topic on the test config.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithFallbackWindow enables the window fallback policy for boundary detection.
func WithFallbackWindow(offset, duration int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Boundary.Fallback = config.FallbackWindow
		b.cfg.Boundary.FallbackOffset = offset
		b.cfg.Boundary.FallbackDuration = duration
	}
}

// WithDeviationThreshold overrides the comparison flagging threshold.
func WithDeviationThreshold(threshold float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Comparison.DeviationThreshold = threshold
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.IncomingDir)
}
