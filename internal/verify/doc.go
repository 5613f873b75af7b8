// Package verify implements the interactive site login flow. The operator
// signs in through a visible browser window; the captured session cookies
// become the site's stored profile, which stages and shops replay on every
// later headless run.
package verify
