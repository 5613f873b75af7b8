// Package browser defines the session boundary to the external browser
// automation helper and a client speaking its line-delimited JSON protocol.
package browser
