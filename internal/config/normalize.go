package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeBrowser(); err != nil {
		return err
	}
	c.normalizeGenerate()
	c.normalizeRetry()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ProfilesDir) == "" {
		c.Paths.ProfilesDir = defaultProfilesDir
	}
	if c.Paths.ProfilesDir, err = expandPath(c.Paths.ProfilesDir); err != nil {
		return fmt.Errorf("paths.profiles_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.JournalPath) == "" {
		c.Paths.JournalPath = defaultJournalPath
	}
	if c.Paths.JournalPath, err = expandPath(c.Paths.JournalPath); err != nil {
		return fmt.Errorf("paths.journal_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.SettingsPath) == "" {
		c.Paths.SettingsPath = defaultSettingsPath
	}
	if c.Paths.SettingsPath, err = expandPath(c.Paths.SettingsPath); err != nil {
		return fmt.Errorf("paths.settings_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeBrowser() error {
	c.Browser.DriverBinary = strings.TrimSpace(c.Browser.DriverBinary)
	if c.Browser.DriverBinary == "" {
		c.Browser.DriverBinary = defaultDriverBinary
	}
	if strings.TrimSpace(c.Browser.ProfileDataDir) == "" {
		c.Browser.ProfileDataDir = defaultProfileDataDir
	}
	var err error
	if c.Browser.ProfileDataDir, err = expandPath(c.Browser.ProfileDataDir); err != nil {
		return fmt.Errorf("browser.profile_data_dir: %w", err)
	}
	if c.Browser.PageTimeout <= 0 {
		c.Browser.PageTimeout = defaultPageTimeout
	}
	if strings.TrimSpace(c.Browser.Language) == "" {
		c.Browser.Language = defaultLanguage
	}
	return nil
}

func (c *Config) normalizeGenerate() {
	if c.Generate.Count <= 0 {
		c.Generate.Count = defaultGenerateCount
	}
	if len(c.Generate.Sequences) == 0 {
		c.Generate.Sequences = Default().Generate.Sequences
		return
	}
	normalized := make(map[string][]string, len(c.Generate.Sequences))
	for name, seq := range c.Generate.Sequences {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		stages := make([]string, 0, len(seq))
		for _, s := range seq {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				stages = append(stages, s)
			}
		}
		normalized[key] = stages
	}
	c.Generate.Sequences = normalized
}

func (c *Config) normalizeRetry() {
	if c.Retry.MaxRetries < 0 {
		c.Retry.MaxRetries = defaultMaxRetries
	}
	if c.Retry.BaseDelaySecs <= 0 {
		c.Retry.BaseDelaySecs = defaultBaseDelaySecs
	}
	if c.Retry.MaxDelaySecs <= 0 {
		c.Retry.MaxDelaySecs = defaultMaxDelaySecs
	}
	if c.Retry.StageTimeoutMin <= 0 {
		c.Retry.StageTimeoutMin = defaultStageTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
