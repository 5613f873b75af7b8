package bgremove

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"podflow/internal/asset"
	"podflow/internal/browser"
	"podflow/internal/config"
	"podflow/internal/logging"
	"podflow/internal/profiles"
	"podflow/internal/services"
	"podflow/internal/stage"
)

const (
	removeURL      = "https://www.remove.bg/upload"
	fileInput      = "input[type='file']"
	resultImage    = "img[alt='Processed image']"
	capsolverError = "#capsolver-solver-tip-button"
)

// Stage strips the background from the asset's current image through
// remove.bg, with the capsolver extension handling any captcha.
type Stage struct {
	cfg      *config.Config
	sessions *profiles.Store
	logger   *slog.Logger
}

// New builds the bgremove stage.
func New(cfg *config.Config, sessions *profiles.Store, logger *slog.Logger) *Stage {
	return &Stage{cfg: cfg, sessions: sessions, logger: logging.NewComponentLogger(logger, "stage-bgremove")}
}

func (s *Stage) Name() string { return "bgremove" }
func (s *Stage) Capability() stage.Capability { return stage.CapabilityTransform }
func (s *Stage) Site() string { return "capsolver" }

// HealthCheck verifies the capsolver session exists before the batch starts.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if _, err := s.sessions.Load(s.Site()); err != nil {
		return stage.Unhealthy(s.Name(), "no capsolver session, run verifysite capsolver")
	}
	return stage.Healthy(s.Name())
}

// Transform uploads the current image, waits for the processed result, and
// replaces the artifact in place.
func (s *Stage) Transform(ctx context.Context, session browser.Session, a *asset.Asset) (string, error) {
	if err := session.Navigate(ctx, removeURL); err != nil {
		return "", err
	}
	if err := session.WaitVisible(ctx, fileInput); err != nil {
		return "", err
	}
	if err := session.Upload(ctx, fileInput, a.ImagePath); err != nil {
		return "", err
	}
	if err := session.WaitVisible(ctx, resultImage); err != nil {
		return "", s.checkCaptchaFailure(ctx, session, err)
	}

	payload, err := fetchResult(ctx, session)
	if err != nil {
		return "", err
	}
	data, err := stage.DecodeImagePayload(payload)
	if err != nil {
		return "", err
	}
	if err := stage.ReplaceImage(a.ImagePath, data); err != nil {
		return "", err
	}
	s.logger.Info("background removed", logging.String(logging.FieldAssetID, a.ID))
	return a.ImagePath, nil
}

// checkCaptchaFailure upgrades a wait failure when the capsolver extension
// reports it could not solve the challenge. Solving works again on a fresh
// attempt most of the time, so the error stays transient.
func (s *Stage) checkCaptchaFailure(ctx context.Context, session browser.Session, cause error) error {
	text, err := session.Text(ctx, capsolverError)
	if err != nil || strings.TrimSpace(text) == "" {
		return cause
	}
	return services.Wrap(services.ErrTransient, "stage-bgremove", "captcha", text, cause)
}

func fetchResult(ctx context.Context, session browser.Session) (string, error) {
	const expression = `(async () => {
  const img = document.querySelector("img[alt='Processed image']");
  const resp = await fetch(img.src);
  const buf = await resp.arrayBuffer();
  let binary = "";
  new Uint8Array(buf).forEach((b) => { binary += String.fromCharCode(b); });
  return btoa(binary);
})()`
	value, err := session.Eval(ctx, expression)
	if err != nil {
		return "", err
	}
	var payload string
	if err := json.Unmarshal(value, &payload); err != nil {
		return "", fmt.Errorf("decode result payload: %w", err)
	}
	return payload, nil
}

var _ stage.Transformer = (*Stage)(nil)
