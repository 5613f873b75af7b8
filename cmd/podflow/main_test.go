package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"podflow/internal/testsupport"
)

func writeTestConfig(t *testing.T, base string) string {
	t.Helper()

	content := fmt.Sprintf(
		"[paths]\nprofiles_dir = %q\nlog_dir = %q\njournal_path = %q\nsettings_path = %q\n\n"+
			"[browser]\ndriver_binary = %q\nprofile_data_dir = %q\n",
		filepath.Join(base, "profiles"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "journal.db"),
		filepath.Join(base, "settings.toml"),
		"podflow-driver",
		filepath.Join(base, "chromedata"),
	)
	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestConfigInitWritesSampleFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	stdout, _, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(stdout, target) {
		t.Fatalf("expected output to name %s, got %q", target, stdout)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected sample config on disk: %v", err)
	}

	_, _, err = runCLI(t, "", "config", "init", "--path", target)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected refusal without --overwrite, got %v", err)
	}
}

func TestSettingTorBinaryRoundTrip(t *testing.T) {
	base := t.TempDir()
	configPath := writeTestConfig(t, base)
	torPath := testsupport.StubBinary(t, base, "tor", "#!/bin/sh\nexit 0\n")

	stdout, _, err := runCLI(t, configPath, "setting-tor-binary", "--path", torPath)
	if err != nil {
		t.Fatalf("setting-tor-binary: %v", err)
	}
	if !strings.Contains(stdout, torPath) {
		t.Fatalf("expected confirmation naming %s, got %q", torPath, stdout)
	}

	stdout, _, err = runCLI(t, configPath, "show-tor-path")
	if err != nil {
		t.Fatalf("show-tor-path: %v", err)
	}
	if strings.TrimSpace(stdout) != torPath {
		t.Fatalf("expected stored path %s, got %q", torPath, stdout)
	}
}

func TestShowTorPathWithoutSetting(t *testing.T) {
	configPath := writeTestConfig(t, t.TempDir())

	stdout, _, err := runCLI(t, configPath, "show-tor-path")
	if err != nil {
		t.Fatalf("show-tor-path: %v", err)
	}
	if !strings.Contains(stdout, "setting-tor-binary") {
		t.Fatalf("expected a hint to run setting-tor-binary, got %q", stdout)
	}
}

func TestSettingTorBinaryRejectsNonExecutable(t *testing.T) {
	base := t.TempDir()
	configPath := writeTestConfig(t, base)
	plain := filepath.Join(base, "not-executable")
	if err := os.WriteFile(plain, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := runCLI(t, configPath, "setting-tor-binary", "--path", plain)
	if err == nil {
		t.Fatal("expected an error for a non-executable path")
	}
}

func TestVerifySiteRejectsUnknownSite(t *testing.T) {
	configPath := writeTestConfig(t, t.TempDir())

	_, _, err := runCLI(t, configPath, "verifysite", "myspace")
	if err == nil || !strings.Contains(err.Error(), "unknown site") {
		t.Fatalf("expected unknown-site error, got %v", err)
	}
}

func TestGenerateRequiresOutputDirectory(t *testing.T) {
	configPath := writeTestConfig(t, t.TempDir())

	_, _, err := runCLI(t, configPath, "generate", "sticker")
	if err == nil || !strings.Contains(err.Error(), "output-directory") {
		t.Fatalf("expected missing flag error, got %v", err)
	}
}

func TestUploadRequiresUploadPath(t *testing.T) {
	configPath := writeTestConfig(t, t.TempDir())

	_, _, err := runCLI(t, configPath, "upload", "spreadshirt")
	if err == nil || !strings.Contains(err.Error(), "upload-path") {
		t.Fatalf("expected missing flag error, got %v", err)
	}
}

func TestResultsWithEmptyJournal(t *testing.T) {
	configPath := writeTestConfig(t, t.TempDir())

	stdout, _, err := runCLI(t, configPath, "results")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if !strings.Contains(stdout, "none recorded") {
		t.Fatalf("expected empty-journal notice, got %q", stdout)
	}
}
