// Package services defines shared utilities consumed by the pipeline stages
// and shop integrations.
//
// Key responsibilities:
//   - Context helpers that stamp asset IDs, stage names, shop names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that keep the
//     transient/permanent failure split intact across wrapped errors.
//
// Use these helpers when wiring new stage or shop logic so operational
// behaviour (error classification, observability, retries) stays uniform
// across the pipeline.
package services
