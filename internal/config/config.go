package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and file location configuration.
type Paths struct {
	ProfilesDir  string `toml:"profiles_dir"`
	LogDir       string `toml:"log_dir"`
	JournalPath  string `toml:"journal_path"`
	SettingsPath string `toml:"settings_path"`
}

// Browser contains configuration for the external automation driver.
type Browser struct {
	DriverBinary   string `toml:"driver_binary"`
	ProfileDataDir string `toml:"profile_data_dir"`
	PageTimeout    int    `toml:"page_timeout"`
	Language       string `toml:"language"`
}

// Generate contains configuration for the generation pipeline.
type Generate struct {
	Count     int                 `toml:"count"`
	Sequences map[string][]string `toml:"sequences"`
}

// Upload contains configuration for the upload engine.
type Upload struct {
	TemplateMinProducts int  `toml:"template_min_products"`
	Spreadshop          bool `toml:"spreadshop"`
}

// Retry contains tuning for the transient-failure retry policy.
type Retry struct {
	MaxRetries      int `toml:"max_retries"`
	BaseDelaySecs   int `toml:"base_delay_seconds"`
	MaxDelaySecs    int `toml:"max_delay_seconds"`
	StageTimeoutMin int `toml:"stage_timeout_minutes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for podflow.
//
// Configuration sections by subsystem:
//   - Paths: profile store, journal, settings, and log locations
//   - Browser: external automation driver binary and timeouts
//   - Generate: stage sequences and per-run asset count
//   - Upload: template gating and marketplace toggles
//   - Retry: transient-failure retry bounds and backoff
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Browser  Browser  `toml:"browser"`
	Generate Generate `toml:"generate"`
	Upload   Upload   `toml:"upload"`
	Retry    Retry    `toml:"retry"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/podflow/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
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

	projectPath, err := filepath.Abs("podflow.toml")
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

// EnsureDirectories creates required directories for a run.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ProfilesDir, c.Paths.LogDir, c.Browser.ProfileDataDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, file := range []string{c.Paths.JournalPath, c.Paths.SettingsPath} {
		if strings.TrimSpace(file) == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return fmt.Errorf("create directory for %q: %w", file, err)
		}
	}
	return nil
}

// Sequence returns the stage names configured under the given sequence name.
func (c *Config) Sequence(name string) ([]string, bool) {
	seq, ok := c.Generate.Sequences[strings.ToLower(strings.TrimSpace(name))]
	if !ok || len(seq) == 0 {
		return nil, false
	}
	cp := make([]string, len(seq))
	copy(cp, seq)
	return cp, true
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
