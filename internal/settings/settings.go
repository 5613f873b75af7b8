package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"podflow/internal/services"
)

// Settings holds mutable operator preferences kept outside the main
// configuration file so CLI commands can update them in place.
type Settings struct {
	TorBinary string          `toml:"tor_binary"`
	Products  map[string]bool `toml:"products"`
}

// Store reads and writes the settings file.
type Store struct {
	path string
}

// NewStore returns a store bound to the given settings file path.
func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "settings", "open", "settings path must be set", nil)
	}
	return &Store{path: path}, nil
}

// Path returns the settings file path.
func (s *Store) Path() string { return s.path }

// Load reads the settings file. A missing file yields empty settings so
// first runs work without prior setup.
func (s *Store) Load() (*Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{Products: map[string]bool{}}, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var loaded Settings
	if err := toml.Unmarshal(data, &loaded); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "settings", "parse", fmt.Sprintf("parse %s", s.path), err)
	}
	if loaded.Products == nil {
		loaded.Products = map[string]bool{}
	}
	return &loaded, nil
}

// Save writes the settings atomically via a temp file rename.
func (s *Store) Save(settings *Settings) error {
	data, err := toml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*.toml")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp settings file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}

// SetTorBinary validates and persists the tor executable path.
func (s *Store) SetTorBinary(path string) error {
	resolved, err := validateExecutable(path)
	if err != nil {
		return err
	}
	settings, err := s.Load()
	if err != nil {
		return err
	}
	settings.TorBinary = resolved
	return s.Save(settings)
}

// TorBinary returns the stored tor path. Unset yields ErrNotFound so
// callers can tell the operator to run the setter first.
func (s *Store) TorBinary() (string, error) {
	settings, err := s.Load()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(settings.TorBinary) == "" {
		return "", services.Wrap(services.ErrNotFound, "settings", "tor-binary", "tor binary path not configured, run setting-tor-binary first", nil)
	}
	return settings.TorBinary, nil
}

// SetProduct toggles whether a product type is offered during uploads.
func (s *Store) SetProduct(name string, enabled bool) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return services.Wrap(services.ErrValidation, "settings", "set-product", "product name must not be empty", nil)
	}
	settings, err := s.Load()
	if err != nil {
		return err
	}
	settings.Products[name] = enabled
	return s.Save(settings)
}

// ProductEnabled reports whether a product type is enabled. Products
// never toggled default to enabled.
func (s *Store) ProductEnabled(name string) (bool, error) {
	settings, err := s.Load()
	if err != nil {
		return false, err
	}
	enabled, ok := settings.Products[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return true, nil
	}
	return enabled, nil
}

func validateExecutable(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", services.Wrap(services.ErrValidation, "settings", "tor-binary", "binary path must not be empty", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve binary path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", services.Wrap(services.ErrValidation, "settings", "tor-binary", fmt.Sprintf("no file at %s", abs), nil)
		}
		return "", fmt.Errorf("stat binary: %w", err)
	}
	if info.IsDir() {
		return "", services.Wrap(services.ErrValidation, "settings", "tor-binary", fmt.Sprintf("%s is a directory", abs), nil)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return "", services.Wrap(services.ErrValidation, "settings", "tor-binary", fmt.Sprintf("%s is not executable", abs), nil)
	}
	return abs, nil
}
