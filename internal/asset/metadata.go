package asset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"podflow/internal/services"
)

const (
	titleFile       = "title.txt"
	descriptionFile = "description.txt"
	tagsFile        = "tags.txt"
)

// Metadata carries the design listing fields produced during generation and
// consumed at upload time.
type Metadata struct {
	Title       string
	Description string
	Tags        []string
}

// TagString renders the tags as the comma-separated form the shops expect.
func (m Metadata) TagString() string {
	return strings.Join(m.Tags, ",")
}

// ParseTags splits a comma-separated tag string, dropping empties.
func ParseTags(value string) []string {
	parts := strings.Split(value, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

// WriteSidecars persists the metadata sidecar files next to the artifact.
func WriteSidecars(dir string, meta Metadata) error {
	files := map[string]string{
		titleFile:       meta.Title,
		descriptionFile: meta.Description,
		tagsFile:        meta.TagString(),
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content+"\n"), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// ReadSidecars loads the metadata sidecar files from an asset directory.
// A missing or empty title is a permanent validation failure.
func ReadSidecars(dir string) (Metadata, error) {
	var meta Metadata

	title, err := readSidecar(dir, titleFile)
	if err != nil {
		return meta, err
	}
	description, err := readSidecar(dir, descriptionFile)
	if err != nil {
		return meta, err
	}
	tags, err := readSidecar(dir, tagsFile)
	if err != nil {
		return meta, err
	}

	meta.Title = title
	meta.Description = description
	meta.Tags = ParseTags(tags)
	if meta.Title == "" {
		return meta, services.Wrap(services.ErrValidation, "asset", "read metadata", fmt.Sprintf("empty title in %s", dir), nil)
	}
	return meta, nil
}

func readSidecar(dir, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", services.Wrap(services.ErrValidation, "asset", "read metadata", fmt.Sprintf("missing %s in %s", name, dir), err)
		}
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}
