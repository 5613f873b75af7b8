package config

const (
	defaultProfilesDir    = "~/.local/share/podflow/profiles"
	defaultLogDir         = "~/.local/share/podflow/logs"
	defaultJournalPath    = "~/.local/share/podflow/journal.db"
	defaultSettingsPath   = "~/.config/podflow/settings.toml"
	defaultDriverBinary   = "podflow-driver"
	defaultProfileDataDir = "~/.local/share/podflow/chromedata"
	defaultPageTimeout    = 30
	defaultLanguage       = "de-DE"
	defaultGenerateCount  = 1
	defaultSequenceName   = "default"
	defaultTemplateMin    = 50
	defaultMaxRetries     = 3
	defaultBaseDelaySecs  = 2
	defaultMaxDelaySecs   = 60
	defaultStageTimeout   = 20
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ProfilesDir:  defaultProfilesDir,
			LogDir:       defaultLogDir,
			JournalPath:  defaultJournalPath,
			SettingsPath: defaultSettingsPath,
		},
		Browser: Browser{
			DriverBinary:   defaultDriverBinary,
			ProfileDataDir: defaultProfileDataDir,
			PageTimeout:    defaultPageTimeout,
			Language:       defaultLanguage,
		},
		Generate: Generate{
			Count: defaultGenerateCount,
			Sequences: map[string][]string{
				defaultSequenceName: {"gpt", "bgremove", "upscale", "upscale"},
			},
		},
		Upload: Upload{
			TemplateMinProducts: defaultTemplateMin,
			Spreadshop:          true,
		},
		Retry: Retry{
			MaxRetries:      defaultMaxRetries,
			BaseDelaySecs:   defaultBaseDelaySecs,
			MaxDelaySecs:    defaultMaxDelaySecs,
			StageTimeoutMin: defaultStageTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
