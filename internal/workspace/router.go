package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"podflow/internal/fileutil"
	"podflow/internal/logging"
)

// movingMarker flags a cross-filesystem relocation in progress. A target
// directory containing the marker is incomplete and gets rolled back during
// recovery; a complete target with a leftover source gets the source removed.
const movingMarker = ".podflow-moving"

// Outcome is the terminal result that decides an asset's destination partition.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// Router relocates a finished asset's directory from pending into its
// terminal partition. Moves are atomic: rename where the filesystem allows,
// marker-guarded copy+delete otherwise.
type Router struct {
	ws     *Workspace
	logger *slog.Logger
}

// NewRouter constructs a Router for the workspace.
func NewRouter(ws *Workspace, logger *slog.Logger) *Router {
	return &Router{ws: ws, logger: logging.NewComponentLogger(logger, "outcome-router")}
}

// Route moves the asset directory into the partition for (target, outcome).
// Routing an asset that already left pending is a no-op, so the router may be
// invoked again after a crash without harm.
func (r *Router) Route(assetDir, target string, outcome Outcome) error {
	if _, err := os.Stat(assetDir); err != nil {
		if os.IsNotExist(err) {
			r.logger.Debug("asset already routed", logging.String(logging.FieldAssetID, filepath.Base(assetDir)))
			return nil
		}
		return fmt.Errorf("stat asset directory: %w", err)
	}

	destRoot := r.ws.Errored(target)
	if outcome == OutcomeSuccess {
		destRoot = r.ws.Used(target)
	}
	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return fmt.Errorf("create partition %q: %w", destRoot, err)
	}

	targetDir := filepath.Join(destRoot, filepath.Base(assetDir))
	if err := moveDir(assetDir, targetDir); err != nil {
		return err
	}

	r.logger.Info(
		"asset routed",
		logging.String(logging.FieldAssetID, filepath.Base(assetDir)),
		logging.String("outcome", string(outcome)),
		logging.String("destination", targetDir),
		logging.String(logging.FieldEventType, "routed"),
	)
	return nil
}

// Recover completes or rolls back relocations interrupted by a crash for the
// given target's partitions. Incomplete targets (marker present) are removed,
// leaving the source in pending; complete targets with a lingering pending
// source have the source removed.
func (r *Router) Recover(target string) error {
	for _, partition := range []string{r.ws.Used(target), r.ws.Errored(target)} {
		entries, err := os.ReadDir(partition)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("read partition %q: %w", partition, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			dest := filepath.Join(partition, entry.Name())
			source := filepath.Join(r.ws.Pending(), entry.Name())
			marker := filepath.Join(dest, movingMarker)

			if _, err := os.Stat(marker); err == nil {
				if err := os.RemoveAll(dest); err != nil {
					return fmt.Errorf("roll back incomplete move %q: %w", dest, err)
				}
				r.logger.Warn("rolled back incomplete relocation", logging.String(logging.FieldAssetID, entry.Name()))
				continue
			}
			if _, err := os.Stat(source); err == nil {
				if err := os.RemoveAll(source); err != nil {
					return fmt.Errorf("finish interrupted move %q: %w", source, err)
				}
				r.logger.Warn("completed interrupted relocation", logging.String(logging.FieldAssetID, entry.Name()))
			}
		}
	}
	return nil
}

func moveDir(source, target string) error {
	renameErr := os.Rename(source, target)
	if renameErr == nil {
		return nil
	}

	var linkErr *os.LinkError
	if !errors.As(renameErr, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return fmt.Errorf("relocate %q: %w", source, renameErr)
	}
	return copyThenDelete(source, target)
}

// copyThenDelete is the cross-filesystem fallback. Ordering matters: the
// marker must vanish before the source does, so a crash at any point leaves
// the asset recoverable in exactly one partition.
func copyThenDelete(source, target string) error {
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("create move target: %w", err)
	}
	marker := filepath.Join(target, movingMarker)
	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		return fmt.Errorf("write move marker: %w", err)
	}

	entries, err := os.ReadDir(source)
	if err != nil {
		return fmt.Errorf("read move source: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			// Assets are flat directories; nested content would be unexpected.
			return fmt.Errorf("relocate %q: unexpected nested directory %q", source, entry.Name())
		}
		src := filepath.Join(source, entry.Name())
		dst := filepath.Join(target, entry.Name())
		if err := fileutil.CopyFileVerified(src, dst); err != nil {
			return fmt.Errorf("copy %q: %w", src, err)
		}
	}

	if err := os.Remove(marker); err != nil {
		return fmt.Errorf("clear move marker: %w", err)
	}
	if err := os.RemoveAll(source); err != nil {
		return fmt.Errorf("remove move source: %w", err)
	}
	return nil
}
