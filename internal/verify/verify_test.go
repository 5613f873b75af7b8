package verify_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"podflow/internal/browser"
	"podflow/internal/logging"
	"podflow/internal/profiles"
	"podflow/internal/services"
	"podflow/internal/stage"
	"podflow/internal/testsupport"
	"podflow/internal/verify"
)

func newVerifier(t *testing.T, session *testsupport.FakeSession, input string) (*verify.Verifier, *profiles.Store, *testsupport.FakeDriver) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store, err := profiles.NewStore(cfg.Paths.ProfilesDir)
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	driver := &testsupport.FakeDriver{Session: session}
	sessions := stage.NewSessionFactory(driver, store, cfg)
	v := verify.New(cfg, sessions, store, logging.NewNop(), strings.NewReader(input), &bytes.Buffer{})
	return v, store, driver
}

func TestRunSavesCapturedCookies(t *testing.T) {
	session := testsupport.NewFakeSession()
	session.CookieJar = []browser.Cookie{{Name: "session", Value: "abc", Domain: ".spreadshirt.de"}}
	v, store, driver := newVerifier(t, session, "\n")

	if err := v.Run(context.Background(), "spreadshirt"); err != nil {
		t.Fatalf("run: %v", err)
	}

	profile, err := store.Load("spreadshirt")
	if err != nil {
		t.Fatalf("load saved profile: %v", err)
	}
	if profile.VerifiedAt.IsZero() {
		t.Fatal("expected a verification timestamp")
	}
	if !strings.Contains(string(profile.Cookies), `"session"`) {
		t.Fatalf("expected cookie blob, got %s", profile.Cookies)
	}
	if driver.LastOpts.Headless {
		t.Fatal("expected a visible browser window for the interactive login")
	}
	if !session.Closed {
		t.Fatal("expected the session to be closed")
	}
}

func TestRunRejectsUnknownSite(t *testing.T) {
	v, _, _ := newVerifier(t, testsupport.NewFakeSession(), "\n")

	err := v.Run(context.Background(), "myspace")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRunFailsWithoutCookies(t *testing.T) {
	v, store, _ := newVerifier(t, testsupport.NewFakeSession(), "\n")

	err := v.Run(context.Background(), "chatgpt")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for an empty cookie jar, got %v", err)
	}
	if _, loadErr := store.Load("chatgpt"); !errors.Is(loadErr, services.ErrNotFound) {
		t.Fatal("expected no profile saved after a failed capture")
	}
}

func TestRunHonorsCancellationWhileWaiting(t *testing.T) {
	// A pipe with no writer keeps the confirmation pending.
	blocked, blockedWriter := io.Pipe()
	t.Cleanup(func() { blockedWriter.Close() })
	session := testsupport.NewFakeSession()
	session.CookieJar = []browser.Cookie{{Name: "session", Value: "abc"}}

	cfg := testsupport.NewConfig(t)
	store, err := profiles.NewStore(cfg.Paths.ProfilesDir)
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	driver := &testsupport.FakeDriver{Session: session}
	v := verify.New(cfg, stage.NewSessionFactory(driver, store, cfg), store, logging.NewNop(), blocked, &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := v.Run(ctx, "spreadshirt"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
