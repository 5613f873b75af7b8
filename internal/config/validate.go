package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBrowser(); err != nil {
		return err
	}
	if err := c.validateGenerate(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateBrowser() error {
	if c.Browser.DriverBinary == "" {
		return errors.New("browser.driver_binary must be set")
	}
	if c.Browser.PageTimeout <= 0 {
		return errors.New("browser.page_timeout must be positive")
	}
	return nil
}

func (c *Config) validateGenerate() error {
	for name, seq := range c.Generate.Sequences {
		if len(seq) == 0 {
			return fmt.Errorf("generate.sequences.%s must name at least one stage", name)
		}
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.TemplateMinProducts <= 0 {
		return errors.New("upload.template_min_products must be positive")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxDelaySecs < c.Retry.BaseDelaySecs {
		return errors.New("retry.max_delay_seconds must be at least retry.base_delay_seconds")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
