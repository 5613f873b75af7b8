package testsupport

import (
	"path/filepath"
	"testing"

	"podflow/internal/config"
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
	cfgVal.Paths.ProfilesDir = filepath.Join(base, "profiles")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.JournalPath = filepath.Join(base, "journal.db")
	cfgVal.Paths.SettingsPath = filepath.Join(base, "settings.toml")
	cfgVal.Browser.ProfileDataDir = filepath.Join(base, "chromedata")
	cfgVal.Browser.DriverBinary = "podflow-driver"
	cfgVal.Browser.PageTimeout = 5
	cfgVal.Retry.BaseDelaySecs = 0
	cfgVal.Retry.MaxDelaySecs = 0

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

// WithDriverBinary overrides the browser helper binary on the test config.
func WithDriverBinary(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Browser.DriverBinary = path
	}
}

// WithMaxRetries overrides the retry budget on the test config.
func WithMaxRetries(retries int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Retry.MaxRetries = retries
	}
}

// WithSequence registers a named stage sequence on the test config.
func WithSequence(name string, stages ...string) ConfigOption {
	return func(b *configBuilder) {
		if b.cfg.Generate.Sequences == nil {
			b.cfg.Generate.Sequences = map[string][]string{}
		}
		b.cfg.Generate.Sequences[name] = stages
	}
}
