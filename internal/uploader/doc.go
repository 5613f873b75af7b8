// Package uploader publishes pending assets to one shop per run. The engine
// authenticates a single browser session for the batch, walks the pending
// partition in order, retries transient submit failures with an idempotency
// probe, and routes every asset to its terminal partition as soon as its
// outcome is known. The shop's daily upload limit aborts the remainder of
// the batch with the unprocessed assets left pending.
package uploader
