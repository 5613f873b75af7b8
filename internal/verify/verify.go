package verify

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"podflow/internal/config"
	"podflow/internal/logging"
	"podflow/internal/profiles"
	"podflow/internal/services"
	"podflow/internal/stage"
)

// Verifier walks an operator through signing in to a site and persists the
// resulting session cookies as the site's profile. The browser opens with a
// visible window; the operator completes the login by hand and confirms on
// the terminal.
type Verifier struct {
	cfg      *config.Config
	sessions *stage.SessionFactory
	store    *profiles.Store
	logger   *slog.Logger
	in       io.Reader
	out      io.Writer
}

// New builds a verifier reading confirmation from in and prompting on out.
func New(
	cfg *config.Config,
	sessions *stage.SessionFactory,
	store *profiles.Store,
	logger *slog.Logger,
	in io.Reader,
	out io.Writer,
) *Verifier {
	return &Verifier{
		cfg:      cfg,
		sessions: sessions,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "verify"),
		in:       in,
		out:      out,
	}
}

// Run opens the site's login page, waits for the operator to finish signing
// in, and saves the captured cookies. An existing profile for the site is
// replaced.
func (v *Verifier) Run(ctx context.Context, siteName string) error {
	site, err := profiles.LookupSite(siteName)
	if err != nil {
		return err
	}

	session, err := v.sessions.OpenInteractive(ctx, site.Name)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Navigate(ctx, site.LoginURL); err != nil {
		return err
	}

	fmt.Fprintf(v.out, "A browser window is open at %s.\n", site.LoginURL)
	fmt.Fprintf(v.out, "Sign in to %s, then press ENTER here to save the session.\n", site.Name)
	if err := v.awaitConfirmation(ctx); err != nil {
		return err
	}

	if site.VerifyURL != "" {
		if err := session.Navigate(ctx, site.VerifyURL); err != nil {
			return services.Wrap(services.ErrValidation, "verify", "confirm",
				fmt.Sprintf("the %s login did not stick, try again", site.Name), err)
		}
	}

	cookies, err := session.Cookies(ctx)
	if err != nil {
		return err
	}
	if len(cookies) == 0 {
		return services.Wrap(services.ErrValidation, "verify", "capture",
			fmt.Sprintf("no session cookies captured for %s, the login likely failed", site.Name), nil)
	}

	blob, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}
	profile := &profiles.Profile{
		Site:       site.Name,
		Cookies:    blob,
		VerifiedAt: time.Now().UTC(),
	}
	if err := v.store.Save(profile); err != nil {
		return err
	}

	v.logger.Info("site profile saved",
		logging.String("site", site.Name),
		logging.Int("cookies", len(cookies)))
	fmt.Fprintf(v.out, "Saved a verified session for %s.\n", site.Name)
	return nil
}

// awaitConfirmation blocks until the operator presses ENTER or the context
// is cancelled.
func (v *Verifier) awaitConfirmation(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		reader := bufio.NewReader(v.in)
		_, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			done <- err
			return
		}
		done <- nil
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
