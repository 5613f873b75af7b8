// Package logging builds the slog loggers used across podflow and defines the
// standardized attribute keys (component, asset_id, stage, shop) plus context
// carriage so every pipeline log line can be correlated to an asset.
package logging
