package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"podflow/internal/services"
)

const (
	pendingDir  = "pending"
	usedPrefix  = "used_"
	errorPrefix = "error_"

	// GenerateTarget is the partition key used for generation-side failures,
	// kept distinct from any shop's upload error partition.
	GenerateTarget = "generate"

	lockFileName = ".podflow.lock"
)

// Workspace is the directory tree holding the asset partitions for one batch
// location: pending/ plus used_<target>/ and error_<target>/ per target.
type Workspace struct {
	root string
}

// New resolves root to an absolute path and returns the workspace handle.
func New(root string) (*Workspace, error) {
	if strings.TrimSpace(root) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "workspace", "open", "workspace root must be set", nil)
	}
	abs, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	return &Workspace{root: abs}, nil
}

// Root returns the workspace root directory.
func (w *Workspace) Root() string { return w.root }

// Pending returns the shared pending partition.
func (w *Workspace) Pending() string { return filepath.Join(w.root, pendingDir) }

// Used returns the success partition for a target (shop name or GenerateTarget).
func (w *Workspace) Used(target string) string {
	return filepath.Join(w.root, usedPrefix+strings.ToLower(target))
}

// Errored returns the error partition for a target.
func (w *Workspace) Errored(target string) string {
	return filepath.Join(w.root, errorPrefix+strings.ToLower(target))
}

// EnsurePartitions creates the pending partition plus the used/error
// partitions for the given target.
func (w *Workspace) EnsurePartitions(target string) error {
	dirs := []string{w.Pending(), w.Errored(target)}
	if target != GenerateTarget {
		dirs = append(dirs, w.Used(target))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create partition %q: %w", dir, err)
		}
	}
	return nil
}

// ListPending enumerates asset directories under pending in directory order.
// The order is captured once at batch start and never re-sorted mid-run.
func (w *Workspace) ListPending() ([]string, error) {
	entries, err := os.ReadDir(w.Pending())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read pending partition: %w", err)
	}
	dirs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		// Legacy layouts kept partitions next to assets; never treat one as work.
		if strings.HasPrefix(name, usedPrefix) || strings.HasPrefix(name, errorPrefix) {
			continue
		}
		dirs = append(dirs, filepath.Join(w.Pending(), name))
	}
	return dirs, nil
}

// Lock holds the exclusive workspace run lock. The browser session is an
// exclusive resource, so at most one run may touch a workspace at a time.
type Lock struct {
	fl *flock.Flock
}

// AcquireLock takes the workspace run lock without blocking. A held lock
// means another run is active against this workspace.
func (w *Workspace) AcquireLock() (*Lock, error) {
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	fl := flock.New(filepath.Join(w.root, lockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire workspace lock: %w", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrConfiguration, "workspace", "lock", "another run is already active against this workspace", nil)
	}
	return &Lock{fl: fl}, nil
}

// Release drops the run lock.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
