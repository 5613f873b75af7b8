package stage

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"podflow/internal/services"
)

// DecodeImagePayload decodes a base64 image payload as returned by in-page
// JavaScript, accepting both bare base64 and data URLs.
func DecodeImagePayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if idx := strings.Index(payload, "base64,"); idx >= 0 {
		payload = payload[idx+len("base64,"):]
	}
	if payload == "" {
		return nil, services.Wrap(services.ErrTransient, "stage", "decode image", "empty image payload", nil)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "stage", "decode image", "malformed image payload", err)
	}
	return data, nil
}

// ReplaceImage atomically replaces the artifact at path with data, writing to
// a temp file in the same directory first so a crash never leaves a truncated
// image behind.
func ReplaceImage(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".artifact-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace artifact: %w", err)
	}
	return nil
}
