package spreadshirt

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"podflow/internal/asset"
	"podflow/internal/logging"
	"podflow/internal/services"
	"podflow/internal/shop"
	"podflow/internal/testsupport"
)

func newShop(t *testing.T) *Shop {
	t.Helper()
	return New(testsupport.NewConfig(t), logging.NewNop())
}

func loadAsset(t *testing.T) *asset.Asset {
	t.Helper()
	dir := testsupport.WriteAsset(t, t.TempDir(), "Funny Fox")
	a, err := asset.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestAuthenticateSelectsTemplate(t *testing.T) {
	s := newShop(t)
	session := testsupport.NewFakeSession()
	session.EvalResults["design-template-card"] = `[
		{"id": "tpl-1", "created_at": "2026-01-10T00:00:00Z", "product_count": 80},
		{"id": "tpl-2", "created_at": "2026-05-01T00:00:00Z", "product_count": 20}
	]`

	tpl, err := s.Authenticate(context.Background(), session)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if tpl.ID != "tpl-1" {
		t.Fatalf("expected the only valid template, got %q", tpl.ID)
	}
}

func TestAuthenticateRejectsThinTemplates(t *testing.T) {
	s := newShop(t)
	session := testsupport.NewFakeSession()
	session.EvalResults["design-template-card"] = `[
		{"id": "tpl-1", "created_at": "2026-01-10T00:00:00Z", "product_count": 12}
	]`

	_, err := s.Authenticate(context.Background(), session)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAuthenticateExpiredSession(t *testing.T) {
	s := newShop(t)
	session := testsupport.NewFakeSession()
	session.Errs["wait_visible "+uploadTile] = services.Wrap(
		services.ErrTimeout, "browser", "wait_visible", "deadline exceeded", nil)

	_, err := s.Authenticate(context.Background(), session)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestAlreadySubmitted(t *testing.T) {
	s := newShop(t)
	a := loadAsset(t)

	session := testsupport.NewFakeSession()
	session.Texts[searchCountSelector] = "1"
	found, err := s.AlreadySubmitted(context.Background(), session, a)
	if err != nil {
		t.Fatalf("AlreadySubmitted: %v", err)
	}
	if !found {
		t.Fatal("expected design to be reported present")
	}

	session.Texts[searchCountSelector] = "0"
	found, err = s.AlreadySubmitted(context.Background(), session, a)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected design to be reported absent")
	}
}

func TestSubmitPublishes(t *testing.T) {
	s := newShop(t)
	a := loadAsset(t)
	session := testsupport.NewFakeSession()

	err := s.Submit(context.Background(), session, a, &shop.Template{ID: "tpl-1", ProductCount: 80})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if session.CallCount("upload") != 1 {
		t.Fatalf("expected one upload, calls: %v", session.Calls)
	}
	if session.CallCount("click "+publishButton) != 1 {
		t.Fatalf("expected one publish click, calls: %v", session.Calls)
	}
}

func TestSubmitDailyLimitAbortsBatch(t *testing.T) {
	s := newShop(t)
	a := loadAsset(t)

	session := testsupport.NewFakeSession()
	session.Errs["wait_visible "+previewDone] = services.Wrap(
		services.ErrTimeout, "browser", "wait_visible", "deadline exceeded", nil)
	session.Texts[uploadDetail] = "Du hast das tägliche Limit für Uploads erreicht."

	err := s.Submit(context.Background(), session, a, &shop.Template{ID: "tpl-1"})
	if !errors.Is(err, shop.ErrDailyLimit) {
		t.Fatalf("expected daily limit error, got %v", err)
	}
}

func TestTruncateTitleKeepsRunesIntact(t *testing.T) {
	long := strings.Repeat("Ü", maxTitleLen+5)
	got := truncateTitle(long)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated title is not valid UTF-8: %q", got)
	}
	if utf8.RuneCountInString(got) != maxTitleLen {
		t.Fatalf("expected %d runes, got %d", maxTitleLen, utf8.RuneCountInString(got))
	}
	if short := truncateTitle("Kurzer Titel"); short != "Kurzer Titel" {
		t.Fatalf("short title must pass through unchanged, got %q", short)
	}
}

func TestQueryEscapeReservedCharacters(t *testing.T) {
	got := queryEscape(" Kaffee & Kuchen? 100% ")
	if got != "Kaffee+%26+Kuchen%3F+100%25" {
		t.Fatalf("unexpected escaped query %q", got)
	}
}

func TestStripForbiddenWords(t *testing.T) {
	got := stripForbiddenWords("Funny Disney Fox Sticker", "Disney, sticker")
	if got != "Funny Fox" {
		t.Fatalf("unexpected cleaned value %q", got)
	}
}

func TestFillFieldRemovesRejectedWords(t *testing.T) {
	s := newShop(t)
	session := testsupport.NewFakeSession()

	// The fake returns the same rejection every round, so the correction
	// loop must strip the word once, see no further change, and give up.
	session.Texts[titleError] = forbiddenPrefix + "Disney"

	err := s.fillField(context.Background(), session, titleInput, titleError, "Funny Disney Fox")
	if err == nil {
		t.Fatal("static error text must exhaust the correction rounds")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
