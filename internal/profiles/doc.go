// Package profiles stores per-site browser sessions so batch runs reuse
// logins captured during interactive verification instead of prompting.
package profiles
