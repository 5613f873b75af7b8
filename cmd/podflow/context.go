package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"podflow/internal/browser"
	"podflow/internal/config"
	"podflow/internal/journal"
	"podflow/internal/logging"
	"podflow/internal/profiles"
	"podflow/internal/settings"
	"podflow/internal/shop"
	"podflow/internal/shops/redbubble"
	"podflow/internal/shops/spreadshirt"
	"podflow/internal/stage"
	"podflow/internal/stages/bgremove"
	"podflow/internal/stages/gpt"
	"podflow/internal/stages/upscale"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.New(logging.Options{
			Level:       cfg.Logging.Level,
			Format:      cfg.Logging.Format,
			OutputPaths: []string{"stderr", filepath.Join(cfg.Paths.LogDir, "podflow.log")},
		})
	})
	return c.logger, c.loggerErr
}

// runtime bundles the long-lived collaborators a run command needs. The
// journal store must be closed by the caller.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	journal  *journal.Store
	profiles *profiles.Store
	settings *settings.Store
	sessions *stage.SessionFactory
}

func (c *commandContext) newRuntime() (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	profileStore, err := profiles.NewStore(cfg.Paths.ProfilesDir)
	if err != nil {
		return nil, err
	}
	settingsStore, err := settings.NewStore(cfg.Paths.SettingsPath)
	if err != nil {
		return nil, err
	}
	store, err := journal.Open(cfg)
	if err != nil {
		return nil, err
	}
	driver := browser.NewCLIDriver(browser.WithBinary(cfg.Browser.DriverBinary))
	return &runtime{
		cfg:      cfg,
		logger:   logger,
		journal:  store,
		profiles: profileStore,
		settings: settingsStore,
		sessions: stage.NewSessionFactory(driver, profileStore, cfg),
	}, nil
}

func (rt *runtime) close() {
	if rt.journal != nil {
		rt.journal.Close()
	}
}

func (rt *runtime) stageRegistry() *stage.Registry {
	return stage.NewRegistry(
		gpt.New(rt.cfg, rt.profiles, rt.logger),
		bgremove.New(rt.cfg, rt.profiles, rt.logger),
		upscale.New(rt.cfg, rt.settings, rt.sessions, rt.logger),
	)
}

func (rt *runtime) shopRegistry() *shop.Registry {
	return shop.NewRegistry(
		spreadshirt.New(rt.cfg, rt.logger),
		redbubble.New(rt.cfg, rt.settings, rt.logger),
	)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
