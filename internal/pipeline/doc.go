// Package pipeline runs the generation side of podflow: it resolves a
// configured stage sequence, produces an asset with the first stage, and
// feeds the asset through the remaining transform stages in order. Stages
// run under the retry policy; permanently failed assets are routed to the
// generation error partition and every stage invocation is journaled.
package pipeline
