// Package config loads, validates, and normalizes the podflow configuration
// file. Configuration is TOML with a sample embedded for `podflow config init`.
package config
