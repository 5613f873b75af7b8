package profiles

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"podflow/internal/services"
)

// Site describes a service the pipeline signs in to. Each site keeps its own
// browser profile so cookies and local storage never leak between services.
type Site struct {
	Name      string
	LoginURL  string
	VerifyURL string
}

// KnownSites lists every site a profile can be verified for.
var KnownSites = map[string]Site{
	"chatgpt": {
		Name:      "chatgpt",
		LoginURL:  "https://chatgpt.com/",
		VerifyURL: "https://chatgpt.com/",
	},
	"capsolver": {
		Name:      "capsolver",
		LoginURL:  "https://dashboard.capsolver.com/dashboard/overview",
		VerifyURL: "https://dashboard.capsolver.com/dashboard/overview",
	},
	"spreadshirt": {
		Name:      "spreadshirt",
		LoginURL:  "https://www.spreadshirt.de/login",
		VerifyURL: "https://partner.spreadshirt.de/",
	},
	"redbubble": {
		Name:      "redbubble",
		LoginURL:  "https://www.redbubble.com/auth/login",
		VerifyURL: "https://www.redbubble.com/portfolio/manage_works",
	},
}

// LookupSite resolves a site by name, case-insensitively.
func LookupSite(name string) (Site, error) {
	site, ok := KnownSites[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		names := SiteNames()
		return Site{}, services.Wrap(services.ErrValidation, "profiles", "lookup",
			fmt.Sprintf("unknown site %q (known: %s)", name, strings.Join(names, ", ")), nil)
	}
	return site, nil
}

// SiteNames returns the known site names in sorted order.
func SiteNames() []string {
	names := make([]string, 0, len(KnownSites))
	for name := range KnownSites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Profile is a persisted browser session for one site.
type Profile struct {
	Site       string          `json:"site"`
	Cookies    json.RawMessage `json:"cookies"`
	VerifiedAt time.Time       `json:"verified_at"`
}

// Store persists per-site profiles as JSON files under a single directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "profiles", "open", "profiles directory must be set", nil)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the profile directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) profilePath(site string) string {
	return filepath.Join(s.dir, strings.ToLower(strings.TrimSpace(site))+".json")
}

// Save persists a profile, replacing any previous session for the site.
func (s *Store) Save(profile *Profile) error {
	if _, err := LookupSite(profile.Site); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create profiles directory: %w", err)
	}

	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, ".profile-*.json")
	if err != nil {
		return fmt.Errorf("create temp profile: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp profile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp profile: %w", err)
	}
	if err := os.Rename(tmpName, s.profilePath(profile.Site)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace profile: %w", err)
	}
	return nil
}

// Load reads the stored profile for a site. A missing profile is a
// configuration gap: the operator must run verifysite before batch work.
func (s *Store) Load(site string) (*Profile, error) {
	if _, err := LookupSite(site); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.profilePath(site))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, "profiles", "load",
				fmt.Sprintf("no session for %s, run verifysite %s first", site, site), nil)
		}
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var profile Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "profiles", "load",
			fmt.Sprintf("corrupt profile for %s, re-run verifysite", site), err)
	}
	return &profile, nil
}

// Delete removes a site's stored session. Missing profiles are ignored.
func (s *Store) Delete(site string) error {
	if _, err := LookupSite(site); err != nil {
		return err
	}
	if err := os.Remove(s.profilePath(site)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove profile: %w", err)
	}
	return nil
}
