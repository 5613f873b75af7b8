package browser

import (
	"context"
	"encoding/json"
	"time"
)

// Cookie mirrors the driver's cookie representation.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
}

// SessionOptions configure a browser session before it opens.
type SessionOptions struct {
	// ProfileDir is the persistent user-data directory for this site.
	ProfileDir string
	// Headless hides the browser window. Interactive verification runs
	// with a visible window so the operator can solve logins manually.
	Headless bool
	// Language forces the browser UI and Accept-Language header.
	Language string
	// PageTimeout bounds every page interaction.
	PageTimeout time.Duration
	// ProxyURL routes traffic through a proxy, e.g. a local tor SOCKS port.
	ProxyURL string
}

// Session is one open browser page. All operations honor the context and
// report timeouts as transient errors so callers can retry.
type Session interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	SendKeys(ctx context.Context, selector, text string) error
	Text(ctx context.Context, selector string) (string, error)
	Upload(ctx context.Context, selector, filePath string) error
	Eval(ctx context.Context, expression string) (json.RawMessage, error)
	Cookies(ctx context.Context) ([]Cookie, error)
	SetCookies(ctx context.Context, cookies []Cookie) error
	Close() error
}

// Driver opens browser sessions.
type Driver interface {
	Open(ctx context.Context, opts SessionOptions) (Session, error)
}
