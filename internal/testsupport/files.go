package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"podflow/internal/asset"
	"podflow/internal/profiles"
)

// WriteAsset materializes a complete asset directory (image plus metadata
// sidecars) under parent and returns its path.
func WriteAsset(t testing.TB, parent, title string) string {
	t.Helper()

	created, err := asset.Create(parent, title, asset.Metadata{
		Title:       title,
		Description: "A design made for testing, long enough to pass any length gate a shop applies to it.",
		Tags:        []string{"test", "design", "sticker"},
	})
	if err != nil {
		t.Fatalf("create asset: %v", err)
	}
	imagePath := filepath.Join(created.Dir, "design.png")
	if err := os.WriteFile(imagePath, []byte("png-bytes"), 0o644); err != nil {
		t.Fatalf("write asset image: %v", err)
	}
	return created.Dir
}

// WriteProfile stores a verified session for site in the given profile store.
func WriteProfile(t testing.TB, store *profiles.Store, site string) {
	t.Helper()

	err := store.Save(&profiles.Profile{
		Site:       site,
		Cookies:    json.RawMessage(`[{"name":"session","value":"test"}]`),
		VerifiedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("save %s profile: %v", site, err)
	}
}

// StubBinary writes an executable shell script into dir and returns its path.
func StubBinary(t testing.TB, dir, name, script string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub binary %s: %v", name, err)
	}
	return path
}
