package uploader_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"podflow/internal/asset"
	"podflow/internal/browser"
	"podflow/internal/config"
	"podflow/internal/journal"
	"podflow/internal/logging"
	"podflow/internal/profiles"
	"podflow/internal/services"
	"podflow/internal/shop"
	"podflow/internal/stage"
	"podflow/internal/testsupport"
	"podflow/internal/uploader"
	"podflow/internal/workspace"
)

type fakeShop struct {
	name     string
	site     string
	template *shop.Template
	authErr  error
	auths    int

	submitErrs []error
	submits    int

	alreadyDone bool
	probeErr    error
	probes      int
}

func (f *fakeShop) Name() string { return f.name }
func (f *fakeShop) Site() string { return f.site }

func (f *fakeShop) Authenticate(context.Context, browser.Session) (*shop.Template, error) {
	f.auths++
	if f.authErr != nil {
		return nil, f.authErr
	}
	return f.template, nil
}

func (f *fakeShop) AlreadySubmitted(context.Context, browser.Session, *asset.Asset) (bool, error) {
	f.probes++
	return f.alreadyDone, f.probeErr
}

func (f *fakeShop) Submit(context.Context, browser.Session, *asset.Asset, *shop.Template) error {
	f.submits++
	if len(f.submitErrs) > 0 {
		err := f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
		return err
	}
	return nil
}

type fixture struct {
	cfg     *config.Config
	ws      *workspace.Workspace
	journal *journal.Store
	store   *profiles.Store
	driver  *testsupport.FakeDriver
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	ws, err := workspace.New(filepath.Join(t.TempDir(), "work"))
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	store, err := journal.Open(cfg)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	profileStore, err := profiles.NewStore(cfg.Paths.ProfilesDir)
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	testsupport.WriteProfile(t, profileStore, "spreadshirt")

	return &fixture{
		cfg:     cfg,
		ws:      ws,
		journal: store,
		store:   profileStore,
		driver:  &testsupport.FakeDriver{Session: &testsupport.FakeSession{}},
	}
}

func (f *fixture) engine(t *testing.T, adapter shop.Adapter) *uploader.Engine {
	t.Helper()

	sessions := stage.NewSessionFactory(f.driver, f.store, f.cfg)
	return uploader.New(f.cfg, shop.NewRegistry(adapter), sessions, f.journal, f.ws, logging.NewNop())
}

func (f *fixture) seedAssets(t *testing.T, count int) {
	t.Helper()

	if err := f.ws.EnsurePartitions(workspace.GenerateTarget); err != nil {
		t.Fatalf("partitions: %v", err)
	}
	for i := 0; i < count; i++ {
		testsupport.WriteAsset(t, f.ws.Pending(), fmt.Sprintf("Design Number %d", i))
	}
}

func countPending(t *testing.T, ws *workspace.Workspace) int {
	t.Helper()

	dirs, err := ws.ListPending()
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	return len(dirs)
}

func newShop() *fakeShop {
	return &fakeShop{
		name:     "spreadshirt",
		site:     "spreadshirt",
		template: &shop.Template{ID: "tpl-1", CreatedAt: time.Now(), ProductCount: 60},
	}
}

func TestRunUploadsAllPending(t *testing.T) {
	fx := newFixture(t)
	fx.seedAssets(t, 2)
	adapter := newShop()

	summary, err := fx.engine(t, adapter).Run(context.Background(), "spreadshirt")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Uploaded() != 2 || summary.Failed() != 0 {
		t.Fatalf("expected 2 uploaded, got %d uploaded / %d failed", summary.Uploaded(), summary.Failed())
	}
	if adapter.submits != 2 {
		t.Fatalf("expected 2 submits, got %d", adapter.submits)
	}
	if fx.driver.Opens != 1 || adapter.auths != 1 {
		t.Fatalf("expected the batch to share one authenticated session, got %d sessions / %d authentications",
			fx.driver.Opens, adapter.auths)
	}
	if got := countPending(t, fx.ws); got != 0 {
		t.Fatalf("expected empty pending partition, got %d", got)
	}

	uploads, err := fx.journal.RecentUploads(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("recent uploads: %v", err)
	}
	if len(uploads) != 2 {
		t.Fatalf("expected 2 journaled uploads, got %d", len(uploads))
	}
	for _, u := range uploads {
		if u.Outcome != journal.OutcomeSuccess || u.TemplateID != "tpl-1" || u.RunID != summary.RunID {
			t.Fatalf("unexpected journal row: %+v", u)
		}
	}
}

func TestRunRoutesPermanentFailureAndContinues(t *testing.T) {
	fx := newFixture(t)
	fx.seedAssets(t, 2)
	adapter := newShop()
	adapter.submitErrs = []error{services.Wrap(services.ErrValidation, "spreadshirt", "submit", "rejected", nil)}

	summary, err := fx.engine(t, adapter).Run(context.Background(), "spreadshirt")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Failed() != 1 || summary.Uploaded() != 1 {
		t.Fatalf("expected 1 failed and 1 uploaded, got %+v", summary.Results)
	}

	errored, err := filepath.Glob(filepath.Join(fx.ws.Errored("spreadshirt"), "*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(errored) != 1 {
		t.Fatalf("expected 1 asset in error partition, got %d", len(errored))
	}
}

func TestRunDailyLimitAbortsBatchLeavingAssetsPending(t *testing.T) {
	fx := newFixture(t)
	fx.seedAssets(t, 3)
	adapter := newShop()
	adapter.submitErrs = []error{fmt.Errorf("%w: the shop said so", shop.ErrDailyLimit)}

	summary, err := fx.engine(t, adapter).Run(context.Background(), "spreadshirt")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !summary.Aborted {
		t.Fatal("expected the batch to be marked aborted")
	}
	if adapter.submits != 1 {
		t.Fatalf("expected the batch to stop after the first submit, got %d", adapter.submits)
	}
	if got := countPending(t, fx.ws); got != 3 {
		t.Fatalf("expected all 3 assets still pending, got %d", got)
	}
}

func TestRunProbesBeforeRetryAndAcceptsExisting(t *testing.T) {
	fx := newFixture(t, testsupport.WithMaxRetries(2))
	fx.seedAssets(t, 1)
	adapter := newShop()
	adapter.submitErrs = []error{services.Wrap(services.ErrTransient, "spreadshirt", "submit", "flaky", nil)}
	adapter.alreadyDone = true

	summary, err := fx.engine(t, adapter).Run(context.Background(), "spreadshirt")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Uploaded() != 1 {
		t.Fatalf("expected probe to convert the retry into a success, got %+v", summary.Results)
	}
	if adapter.submits != 1 {
		t.Fatalf("expected no re-submit after a positive probe, got %d submits", adapter.submits)
	}
	if adapter.probes != 1 {
		t.Fatalf("expected exactly one probe, got %d", adapter.probes)
	}
	if got := countPending(t, fx.ws); got != 0 {
		t.Fatalf("expected asset routed to used partition, got %d pending", got)
	}
}

func TestRunDoesNotResubmitWhenProbeErrors(t *testing.T) {
	fx := newFixture(t, testsupport.WithMaxRetries(2))
	fx.seedAssets(t, 1)
	adapter := newShop()
	adapter.submitErrs = []error{services.Wrap(services.ErrTransient, "spreadshirt", "submit", "flaky", nil)}
	adapter.probeErr = services.Wrap(services.ErrTransient, "spreadshirt", "search", "design list unreachable", nil)

	summary, err := fx.engine(t, adapter).Run(context.Background(), "spreadshirt")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Failed() != 1 {
		t.Fatalf("expected the asset to fail, got %+v", summary.Results)
	}
	if !errors.Is(summary.Results[0].Err, services.ErrRetriesExhausted) {
		t.Fatalf("expected retries-exhausted error, got %v", summary.Results[0].Err)
	}
	if adapter.submits != 1 {
		t.Fatalf("an unconfirmed probe must not allow a re-submit, got %d submits", adapter.submits)
	}
	if adapter.probes != 1 {
		t.Fatalf("expected one probe attempt, got %d", adapter.probes)
	}
}

func TestRunFailsFastWithoutProfile(t *testing.T) {
	fx := newFixture(t)
	fx.seedAssets(t, 1)
	if err := fx.store.Delete("spreadshirt"); err != nil {
		t.Fatalf("delete profile: %v", err)
	}
	adapter := newShop()

	_, err := fx.engine(t, adapter).Run(context.Background(), "spreadshirt")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if adapter.submits != 0 {
		t.Fatal("expected no submits without a stored profile")
	}
	if got := countPending(t, fx.ws); got != 1 {
		t.Fatalf("expected asset untouched, got %d pending", got)
	}
}

func TestRunStopsWhenAuthenticationFails(t *testing.T) {
	fx := newFixture(t)
	fx.seedAssets(t, 1)
	adapter := newShop()
	adapter.authErr = services.Wrap(services.ErrNotFound, "spreadshirt", "authenticate", "session expired", nil)

	_, err := fx.engine(t, adapter).Run(context.Background(), "spreadshirt")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if got := countPending(t, fx.ws); got != 1 {
		t.Fatalf("expected asset untouched, got %d pending", got)
	}
}

func TestRunRejectsUnknownShop(t *testing.T) {
	fx := newFixture(t)
	adapter := newShop()

	_, err := fx.engine(t, adapter).Run(context.Background(), "etsy")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRunReturnsEmptySummaryWithNothingPending(t *testing.T) {
	fx := newFixture(t)
	adapter := newShop()

	summary, err := fx.engine(t, adapter).Run(context.Background(), "spreadshirt")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(summary.Results) != 0 {
		t.Fatalf("expected no results, got %d", len(summary.Results))
	}
	if fx.driver.Opens != 0 {
		t.Fatal("expected no browser session for an empty batch")
	}
}
