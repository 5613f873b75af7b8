// Package settings manages operator preferences that change at the CLI
// rather than in the configuration file, such as the tor binary path and
// per-product upload toggles.
package settings
