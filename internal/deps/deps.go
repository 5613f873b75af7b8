package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"podflow/internal/config"
	"podflow/internal/settings"
)

// Requirement defines an external binary the pipeline relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements assembles the dependency list for the current setup. The tor
// binary comes from the settings store and stays optional: only the upscale
// stage needs it.
func Requirements(cfg *config.Config, store *settings.Store) []Requirement {
	reqs := []Requirement{
		{
			Name:        "Browser helper",
			Command:     cfg.Browser.DriverBinary,
			Description: "Drives the browser for generation and uploads",
		},
	}

	torBinary := ""
	if store != nil {
		if path, err := store.TorBinary(); err == nil {
			torBinary = path
		}
	}
	reqs = append(reqs, Requirement{
		Name:        "Tor",
		Command:     torBinary,
		Description: "Routes the upscale stage through fresh circuits",
		Optional:    true,
	})
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}
