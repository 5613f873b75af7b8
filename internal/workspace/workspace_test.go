package workspace_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"podflow/internal/services"
	"podflow/internal/workspace"
)

func TestEnsurePartitionsCreatesLayout(t *testing.T) {
	ws, err := workspace.New(t.TempDir())
	if err != nil {
		t.Fatalf("workspace.New: %v", err)
	}
	if err := ws.EnsurePartitions("redbubble"); err != nil {
		t.Fatalf("EnsurePartitions: %v", err)
	}

	for _, dir := range []string{ws.Pending(), ws.Used("redbubble"), ws.Errored("redbubble")} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected %s: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("%s is not a directory", dir)
		}
	}
}

func TestEnsurePartitionsGenerateHasNoUsed(t *testing.T) {
	ws, err := workspace.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.EnsurePartitions(workspace.GenerateTarget); err != nil {
		t.Fatalf("EnsurePartitions: %v", err)
	}
	if _, err := os.Stat(ws.Used(workspace.GenerateTarget)); !os.IsNotExist(err) {
		t.Fatal("generation has no success partition")
	}
}

func TestListPendingSkipsPartitions(t *testing.T) {
	root := t.TempDir()
	ws, err := workspace.New(root)
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.EnsurePartitions("spreadshirt"); err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"alpha_11111111", "beta_22222222"} {
		if err := os.MkdirAll(filepath.Join(ws.Pending(), id), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	// Stray file in pending must be ignored.
	if err := os.WriteFile(filepath.Join(ws.Pending(), "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	assets, err := ws.ListPending()
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("expected 2 pending assets, got %d: %v", len(assets), assets)
	}
	if filepath.Base(assets[0]) != "alpha_11111111" || filepath.Base(assets[1]) != "beta_22222222" {
		t.Fatalf("unexpected enumeration order: %v", assets)
	}
}

func TestListPendingEmptyWorkspace(t *testing.T) {
	ws, err := workspace.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	assets, err := ws.ListPending()
	if err != nil {
		t.Fatalf("ListPending on fresh workspace: %v", err)
	}
	if len(assets) != 0 {
		t.Fatalf("expected no assets, got %v", assets)
	}
}

func TestLockIsExclusive(t *testing.T) {
	root := t.TempDir()
	first, err := workspace.New(root)
	if err != nil {
		t.Fatal(err)
	}
	lock, err := first.AcquireLock()
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer lock.Release()

	second, err := workspace.New(root)
	if err != nil {
		t.Fatal(err)
	}
	other, err := second.AcquireLock()
	if err == nil {
		other.Release()
		t.Fatal("second lock acquisition must fail while held")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLockReleaseAllowsReacquire(t *testing.T) {
	root := t.TempDir()
	ws, err := workspace.New(root)
	if err != nil {
		t.Fatal(err)
	}
	lock, err := ws.AcquireLock()
	if err != nil {
		t.Fatal(err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	again, err := ws.AcquireLock()
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	again.Release()
}
