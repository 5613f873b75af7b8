package gpt_test

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"podflow/internal/asset"
	"podflow/internal/logging"
	"podflow/internal/profiles"
	"podflow/internal/services"
	"podflow/internal/stages/gpt"
	"podflow/internal/testsupport"
)

const metadataReply = `Here you go:
{"title": "Funny Fox", "description": "A cheerful fox sticker design.", "tags": ["fox", "funny", "sticker"]}`

func newStage(t *testing.T) (*gpt.Stage, *profiles.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store, err := profiles.NewStore(cfg.Paths.ProfilesDir)
	if err != nil {
		t.Fatal(err)
	}
	return gpt.New(cfg, store, logging.NewNop()), store
}

func scriptedSession() *testsupport.FakeSession {
	session := testsupport.NewFakeSession()
	session.Texts["div[data-message-author-role='assistant']:last-of-type"] = metadataReply
	session.EvalResults["dalle-image"] = `"` + base64.StdEncoding.EncodeToString([]byte("png-bytes")) + `"`
	return session
}

func TestProduceCreatesAssetWithMetadata(t *testing.T) {
	stage, _ := newStage(t)
	session := scriptedSession()
	parent := t.TempDir()

	created, err := stage.Produce(context.Background(), session, parent)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}

	if created.Meta.Title != "Funny Fox" {
		t.Fatalf("unexpected title %q", created.Meta.Title)
	}
	if len(created.Meta.Tags) != 3 {
		t.Fatalf("unexpected tags %v", created.Meta.Tags)
	}
	data, err := os.ReadFile(created.ImagePath)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("artifact content mismatch: %q", data)
	}
}

func TestProduceRemovesDirectoryWhenImageWriteFails(t *testing.T) {
	stage, _ := newStage(t)
	session := scriptedSession()
	parent := t.TempDir()

	// A directory squatting on the artifact path makes the image write fail
	// after the sidecars already exist.
	assetDir := filepath.Join(parent, asset.NewID("Funny Fox"))
	if err := os.MkdirAll(filepath.Join(assetDir, "design.png"), 0o755); err != nil {
		t.Fatalf("seed artifact obstruction: %v", err)
	}

	if _, err := stage.Produce(context.Background(), session, parent); err == nil {
		t.Fatal("expected the image write to fail")
	}
	if _, err := os.Stat(assetDir); !os.IsNotExist(err) {
		t.Fatal("a sidecar-only directory must not be left in the pending partition")
	}
}

func TestProduceDetectsUsageCap(t *testing.T) {
	stage, _ := newStage(t)
	session := scriptedSession()
	session.Errs["wait_visible div[class*='dalle-image'] img"] = services.Wrap(
		services.ErrTimeout, "browser", "wait_visible", "deadline exceeded", nil)
	session.Texts["div.text-sm.text-token-text-error span"] = "You've reached the current usage cap for GPT-4"

	_, err := stage.Produce(context.Background(), session, t.TempDir())
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if services.Classify(err) != services.ClassTransient {
		t.Fatalf("usage cap must stay transient: %v", err)
	}
}

func TestProduceMalformedReplyIsTransient(t *testing.T) {
	stage, _ := newStage(t)
	session := scriptedSession()
	session.Texts["div[data-message-author-role='assistant']:last-of-type"] = "no json here"

	_, err := stage.Produce(context.Background(), session, t.TempDir())
	if services.Classify(err) != services.ClassTransient {
		t.Fatalf("malformed reply must be retryable, got %v", err)
	}
}

func TestHealthCheckRequiresSession(t *testing.T) {
	stage, store := newStage(t)

	health := stage.HealthCheck(context.Background())
	if health.Ready {
		t.Fatal("health must fail without a stored session")
	}

	testsupport.WriteProfile(t, store, "chatgpt")
	health = stage.HealthCheck(context.Background())
	if !health.Ready {
		t.Fatalf("health must pass with a stored session: %s", health.Detail)
	}
}
