// Package journal persists per-asset stage and upload results in a local
// SQLite database so past runs can be inspected after the fact.
package journal
