package testsupport

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"podflow/internal/browser"
)

// FakeSession is a scriptable browser.Session for tests. Responses are keyed
// by operation and selector; unscripted calls succeed with empty results.
type FakeSession struct {
	mu sync.Mutex

	// Texts maps selector to the value Text returns.
	Texts map[string]string
	// EvalResults maps expression substrings to JSON values Eval returns.
	EvalResults map[string]string
	// Errs maps "<op> <selector>" or a bare op name to a forced error.
	Errs map[string]error
	// CookieJar is returned by Cookies and replaced by SetCookies.
	CookieJar []browser.Cookie

	// Calls records every operation in order as "<op> <arg>".
	Calls  []string
	Closed bool
}

// NewFakeSession returns an empty scriptable session.
func NewFakeSession() *FakeSession {
	return &FakeSession{
		Texts:       map[string]string{},
		EvalResults: map[string]string{},
		Errs:        map[string]error{},
	}
}

func (f *FakeSession) record(op, arg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, strings.TrimSpace(op+" "+arg))
	if err, ok := f.Errs[op+" "+arg]; ok {
		return err
	}
	if err, ok := f.Errs[op]; ok {
		return err
	}
	return nil
}

func (f *FakeSession) Navigate(_ context.Context, url string) error {
	return f.record("navigate", url)
}

func (f *FakeSession) WaitVisible(_ context.Context, selector string) error {
	return f.record("wait_visible", selector)
}

func (f *FakeSession) Click(_ context.Context, selector string) error {
	return f.record("click", selector)
}

func (f *FakeSession) SendKeys(_ context.Context, selector, _ string) error {
	return f.record("send_keys", selector)
}

func (f *FakeSession) Text(_ context.Context, selector string) (string, error) {
	if err := f.record("text", selector); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Texts[selector], nil
}

func (f *FakeSession) Upload(_ context.Context, selector, _ string) error {
	return f.record("upload", selector)
}

func (f *FakeSession) Eval(_ context.Context, expression string) (json.RawMessage, error) {
	if err := f.record("eval", ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for needle, value := range f.EvalResults {
		if needle != "" && strings.Contains(expression, needle) {
			return json.RawMessage(value), nil
		}
	}
	return json.RawMessage(`null`), nil
}

func (f *FakeSession) Cookies(context.Context) ([]browser.Cookie, error) {
	if err := f.record("cookies", ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CookieJar, nil
}

func (f *FakeSession) SetCookies(_ context.Context, cookies []browser.Cookie) error {
	if err := f.record("set_cookies", ""); err != nil {
		return err
	}
	f.mu.Lock()
	f.CookieJar = cookies
	f.mu.Unlock()
	return nil
}

func (f *FakeSession) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// CallCount returns how many recorded calls start with prefix.
func (f *FakeSession) CallCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, call := range f.Calls {
		if strings.HasPrefix(call, prefix) {
			count++
		}
	}
	return count
}

// FakeDriver hands out a fixed session and remembers the last open options.
type FakeDriver struct {
	Session  browser.Session
	OpenErr  error
	LastOpts browser.SessionOptions
	Opens    int
}

func (d *FakeDriver) Open(_ context.Context, opts browser.SessionOptions) (browser.Session, error) {
	d.Opens++
	d.LastOpts = opts
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	return d.Session, nil
}

var (
	_ browser.Session = (*FakeSession)(nil)
	_ browser.Driver  = (*FakeDriver)(nil)
)
