package asset_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"podflow/internal/asset"
	"podflow/internal/services"
)

func TestNewIDStableAndSafe(t *testing.T) {
	first := asset.NewID("A Fox: At Sunset?")
	second := asset.NewID("A Fox: At Sunset?")
	if first != second {
		t.Fatalf("expected stable IDs, got %q vs %q", first, second)
	}
	if strings.ContainsAny(first, `\/:*?"<>| `) {
		t.Fatalf("ID contains unsafe characters: %q", first)
	}
	if !strings.HasPrefix(first, "A-Fox-At-Sunset_") {
		t.Fatalf("unexpected ID shape: %q", first)
	}
	if asset.NewID("sunset") == asset.NewID("sunrise") {
		t.Fatal("different titles must yield different IDs")
	}
}

func TestCreateAndLoadRoundTrip(t *testing.T) {
	parent := t.TempDir()
	meta := asset.Metadata{
		Title:       "Sunset Fox",
		Description: "A fox watching the sunset.",
		Tags:        []string{"fox", "sunset", "nature"},
	}

	created, err := asset.Create(parent, meta.Title, meta)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	imagePath := filepath.Join(created.Dir, "design.png")
	if err := os.WriteFile(imagePath, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := asset.Load(created.Dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ID != created.ID {
		t.Fatalf("ID mismatch: %q vs %q", loaded.ID, created.ID)
	}
	if loaded.Meta.Title != meta.Title || loaded.Meta.Description != meta.Description {
		t.Fatalf("metadata mismatch: %+v", loaded.Meta)
	}
	if len(loaded.Meta.Tags) != 3 || loaded.Meta.Tags[1] != "sunset" {
		t.Fatalf("tags mismatch: %v", loaded.Meta.Tags)
	}
	if loaded.ImagePath != imagePath {
		t.Fatalf("expected image %q, got %q", imagePath, loaded.ImagePath)
	}
}

func TestLoadMissingImageIsPermanent(t *testing.T) {
	parent := t.TempDir()
	created, err := asset.Create(parent, "No Image", asset.Metadata{Title: "No Image"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = asset.Load(created.Dir)
	if err == nil {
		t.Fatal("expected error for missing image")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestLoadMissingSidecarIsPermanent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "orphan_12345678")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "design.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := asset.Load(dir)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker for missing sidecars, got %v", err)
	}
}

func TestRecordOutcomeAdvancesOnSuccess(t *testing.T) {
	a := &asset.Asset{ID: "x_00000000", Dir: "/tmp/x"}

	a.RecordOutcome(asset.StageOutcome{Stage: "gpt", Artifact: "/tmp/x/a.png", Attempts: 1})
	if a.StageIndex != 1 || a.ImagePath != "/tmp/x/a.png" {
		t.Fatalf("success must advance stage: %+v", a)
	}

	a.RecordOutcome(asset.StageOutcome{Stage: "bgremove", Class: services.ClassPermanent, Message: "rejected", Attempts: 1})
	if a.StageIndex != 1 {
		t.Fatalf("failure must not advance stage: %+v", a)
	}
	if len(a.History) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(a.History))
	}
}

func TestParseTags(t *testing.T) {
	tags := asset.ParseTags(" fox , sunset,,nature ")
	if len(tags) != 3 || tags[0] != "fox" || tags[2] != "nature" {
		t.Fatalf("unexpected tags: %v", tags)
	}
}
