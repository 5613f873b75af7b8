// Package stage defines the adapter contract the generation pipeline runs
// stages through, plus shared session plumbing for browser-backed stages.
package stage
