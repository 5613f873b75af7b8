package asset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"podflow/internal/services"
)

// imageExtensions lists the artifact formats recognized inside an asset
// directory, in discovery priority order.
var imageExtensions = []string{".png", ".jpg", ".jpeg"}

var unsafeChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// StageOutcome records one stage adapter invocation on an asset. Immutable
// once appended to the history.
type StageOutcome struct {
	Stage    string
	Attempts int
	Artifact string
	Class    services.Class
	Message  string
	At       time.Time
}

// Succeeded reports whether the outcome left a usable artifact.
func (o StageOutcome) Succeeded() bool {
	return o.Message == "" && o.Artifact != ""
}

// Asset is one image-plus-metadata unit moving through generation and upload.
// An asset is backed by a directory holding the current artifact and the
// metadata sidecar files; the directory name is the asset ID.
type Asset struct {
	ID         string
	Dir        string
	ImagePath  string
	Meta       Metadata
	StageIndex int
	History    []StageOutcome
}

// NewID derives a stable asset identifier from a design title: the sanitized
// title joined with a short content hash, matching the on-disk naming scheme.
func NewID(title string) string {
	sum := sha256.Sum256([]byte(title))
	short := hex.EncodeToString(sum[:])[:8]
	cleaned := CleanString(title)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	cleaned = strings.ReplaceAll(cleaned, " ", "-")
	if len(cleaned) > 60 {
		cleaned = cleaned[:60]
	}
	if cleaned == "" {
		cleaned = "design"
	}
	return cleaned + "_" + short
}

// CleanString strips characters that are unsafe in filenames and shop fields.
func CleanString(value string) string {
	return unsafeChars.ReplaceAllString(value, "")
}

// Create materializes a new asset directory under parent, writes the metadata
// sidecars, and returns the asset. The caller stores the produced artifact via
// SetArtifact afterwards.
func Create(parent, title string, meta Metadata) (*Asset, error) {
	id := NewID(title)
	dir := filepath.Join(parent, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset directory: %w", err)
	}
	if err := WriteSidecars(dir, meta); err != nil {
		return nil, err
	}
	return &Asset{ID: id, Dir: dir, Meta: meta}, nil
}

// Load reads an existing asset directory: metadata sidecars plus the current
// image artifact. Missing pieces surface as permanent validation errors so the
// upload engine routes the asset to the error partition instead of retrying.
func Load(dir string) (*Asset, error) {
	meta, err := ReadSidecars(dir)
	if err != nil {
		return nil, err
	}
	image, err := FindImage(dir)
	if err != nil {
		return nil, err
	}
	return &Asset{
		ID:        filepath.Base(dir),
		Dir:       dir,
		ImagePath: image,
		Meta:      meta,
	}, nil
}

// SetArtifact records path as the asset's current image artifact.
func (a *Asset) SetArtifact(path string) {
	a.ImagePath = path
}

// RecordOutcome appends a stage outcome and advances the stage index on
// success.
func (a *Asset) RecordOutcome(outcome StageOutcome) {
	a.History = append(a.History, outcome)
	if outcome.Succeeded() {
		a.StageIndex++
		a.ImagePath = outcome.Artifact
	}
}

// FindImage returns the first image artifact in the asset directory.
func FindImage(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read asset directory: %w", err)
	}
	for _, ext := range imageExtensions {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if strings.EqualFold(filepath.Ext(entry.Name()), ext) {
				return filepath.Join(dir, entry.Name()), nil
			}
		}
	}
	return "", services.Wrap(services.ErrValidation, "asset", "find image", fmt.Sprintf("no image file found in %s", dir), nil)
}
