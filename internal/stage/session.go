package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"podflow/internal/browser"
	"podflow/internal/config"
	"podflow/internal/profiles"
)

// SessionFactory opens authenticated browser sessions for stages and shops.
// The stored session cookies are replayed into a per-site profile directory
// so a verified login survives between runs.
type SessionFactory struct {
	driver browser.Driver
	store  *profiles.Store
	cfg    *config.Config
}

// NewSessionFactory builds a factory over the given driver and profile store.
func NewSessionFactory(driver browser.Driver, store *profiles.Store, cfg *config.Config) *SessionFactory {
	return &SessionFactory{driver: driver, store: store, cfg: cfg}
}

// Options returns the base session options for a site profile directory.
func (f *SessionFactory) Options(site string, headless bool) browser.SessionOptions {
	return browser.SessionOptions{
		ProfileDir:  filepath.Join(f.cfg.Browser.ProfileDataDir, site),
		Headless:    headless,
		Language:    f.cfg.Browser.Language,
		PageTimeout: time.Duration(f.cfg.Browser.PageTimeout) * time.Second,
	}
}

// OpenInteractive starts a visible session on the site's profile directory.
// Used for operator-driven logins, so no stored profile is required.
func (f *SessionFactory) OpenInteractive(ctx context.Context, site string) (browser.Session, error) {
	return f.driver.Open(ctx, f.Options(site, false))
}

// OpenProxied starts an anonymous session routed through the given proxy.
// Anonymous stages use this with a fresh tor circuit so per-IP quotas reset
// between assets.
func (f *SessionFactory) OpenProxied(ctx context.Context, proxyURL string) (browser.Session, error) {
	opts := f.Options("anonymous", true)
	opts.ProxyURL = proxyURL
	return f.driver.Open(ctx, opts)
}

// Open starts a session for a site, replaying the stored login. A site
// without a stored profile fails fast before any browser work begins.
func (f *SessionFactory) Open(ctx context.Context, site string) (browser.Session, error) {
	if site == "" {
		return f.driver.Open(ctx, browser.SessionOptions{
			ProfileDir:  filepath.Join(f.cfg.Browser.ProfileDataDir, "anonymous"),
			Headless:    true,
			Language:    f.cfg.Browser.Language,
			PageTimeout: time.Duration(f.cfg.Browser.PageTimeout) * time.Second,
		})
	}

	profile, err := f.store.Load(site)
	if err != nil {
		return nil, err
	}

	session, err := f.driver.Open(ctx, f.Options(site, true))
	if err != nil {
		return nil, err
	}

	if len(profile.Cookies) > 0 {
		var cookies []browser.Cookie
		if err := json.Unmarshal(profile.Cookies, &cookies); err != nil {
			session.Close()
			return nil, fmt.Errorf("decode stored cookies for %s: %w", site, err)
		}
		if err := session.SetCookies(ctx, cookies); err != nil {
			session.Close()
			return nil, err
		}
	}
	return session, nil
}
