package upscale

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"podflow/internal/asset"
	"podflow/internal/browser"
	"podflow/internal/config"
	"podflow/internal/logging"
	"podflow/internal/services"
	"podflow/internal/settings"
	"podflow/internal/stage"
	"podflow/internal/torproc"
)

const (
	bigjpgURL  = "https://bigjpg.com/"
	fileUpload = "#fileupload"

	// Progress below these thresholds for too long means the job is stuck
	// and worth a fresh attempt on a new circuit.
	zeroStallLimit     = time.Minute
	progressStallLimit = 4 * time.Minute
	pollInterval       = time.Second
)

// Circuit is a running proxy circuit, normally a tor subprocess.
type Circuit interface {
	ProxyURL() string
	Stop()
}

// Option configures the stage.
type Option func(*Stage)

// WithCircuitStarter overrides how proxy circuits are started.
func WithCircuitStarter(start func(ctx context.Context) (Circuit, error)) Option {
	return func(s *Stage) {
		if start != nil {
			s.startCircuit = start
		}
	}
}

// Stage upscales the asset's current image through bigjpg. Each asset runs
// over its own tor circuit, so the site's per-IP limits never build up.
type Stage struct {
	cfg      *config.Config
	store    *settings.Store
	sessions *stage.SessionFactory
	logger   *slog.Logger

	startCircuit func(ctx context.Context) (Circuit, error)
}

// New builds the upscale stage.
func New(cfg *config.Config, store *settings.Store, sessions *stage.SessionFactory, logger *slog.Logger, opts ...Option) *Stage {
	s := &Stage{
		cfg:      cfg,
		store:    store,
		sessions: sessions,
		logger:   logging.NewComponentLogger(logger, "stage-upscale"),
	}
	s.startCircuit = func(ctx context.Context) (Circuit, error) {
		binary, err := store.TorBinary()
		if err != nil {
			return nil, err
		}
		return torproc.NewRunner(binary, logger).Start(ctx)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Stage) Name() string { return "upscale" }
func (s *Stage) Capability() stage.Capability { return stage.CapabilityTransform }

// Site is empty: bigjpg needs no login, so the stage manages its own
// proxied session instead of receiving one from the pipeline.
func (s *Stage) Site() string { return "" }

// HealthCheck verifies the tor binary is configured before the batch starts.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if _, err := s.store.TorBinary(); err != nil {
		return stage.Unhealthy(s.Name(), "tor binary not configured, run setting-tor-binary")
	}
	return stage.Healthy(s.Name())
}

// Transform runs one upscaling round and replaces the artifact in place.
func (s *Stage) Transform(ctx context.Context, _ browser.Session, a *asset.Asset) (string, error) {
	circuit, err := s.startCircuit(ctx)
	if err != nil {
		return "", err
	}
	defer circuit.Stop()

	session, err := s.sessions.OpenProxied(ctx, circuit.ProxyURL())
	if err != nil {
		return "", err
	}
	defer session.Close()

	if err := session.Navigate(ctx, bigjpgURL); err != nil {
		return "", err
	}
	// The upload input is hidden behind a styled button.
	if _, err := session.Eval(ctx, `document.getElementById('fileupload').style.display = 'block'`); err != nil {
		return "", err
	}
	if err := session.Upload(ctx, fileUpload, a.ImagePath); err != nil {
		return "", err
	}
	if err := s.initiate(ctx, session); err != nil {
		return "", err
	}
	if err := s.monitor(ctx, session); err != nil {
		return "", err
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
	s.logger.Info("image upscaled", logging.String(logging.FieldAssetID, a.ID))
	return a.ImagePath, nil
}

// initiate clicks through the start dialog: 2x scale, maximum denoising.
func (s *Stage) initiate(ctx context.Context, session browser.Session) error {
	const expression = `
    const checkStart = setInterval(() => {
        const startButton = document.querySelector('button.big_begin');
        if (startButton && startButton.style.display !== 'none') {
            startButton.click();
            clearInterval(checkStart);
            const waitForModal = setInterval(() => {
                const modal = document.getElementById('modal_big');
                if (modal && modal.style.display === 'block') {
                    clearInterval(waitForModal);
                    document.querySelector('input[name="x2"][value="2"]').click();
                    document.querySelector('input[name="noise"][value="3"]').click();
                    setTimeout(() => { document.getElementById('big_ok').click(); }, 2000);
                }
            }, 100);
        }
    }, 1000);`
	_, err := session.Eval(ctx, expression)
	return err
}

// monitor polls the progress bar until completion, bailing out when the job
// stalls or the site raises a warning.
func (s *Stage) monitor(ctx context.Context, session browser.Session) error {
	var zeroSince, belowSince time.Time
	started := time.Now()
	zeroSince = started
	belowSince = started

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		percent, err := readProgress(ctx, session)
		if err != nil {
			return err
		}
		if percent >= 100 {
			return nil
		}

		status, err := readModalStatus(ctx, session)
		if err != nil {
			return err
		}
		switch status {
		case "warning":
			return services.Wrap(services.ErrTransient, "stage-upscale", "monitor", "site raised a warning modal", nil)
		case "too_big":
			return services.Wrap(services.ErrValidation, "stage-upscale", "monitor", "image exceeds the site's size limit", nil)
		}

		now := time.Now()
		if percent > 0 {
			zeroSince = now
		}
		if now.Sub(zeroSince) >= zeroStallLimit {
			return services.Wrap(services.ErrTimeout, "stage-upscale", "monitor", "stuck at 0% for over a minute", nil)
		}
		if now.Sub(belowSince) >= progressStallLimit {
			return services.Wrap(services.ErrTimeout, "stage-upscale", "monitor", "no completion after four minutes", nil)
		}
	}
}

// readModalStatus reports whether the site shows a blocking modal.
func readModalStatus(ctx context.Context, session browser.Session) (string, error) {
	value, err := session.Eval(ctx, `(() => {
  const warning = document.querySelector('#modal_alert .modal-title');
  if (warning && warning.textContent.trim() !== '') return 'warning';
  const tooBig = document.querySelector('div.pic_mask.danger[style="display: block;"]');
  if (tooBig) return 'too_big';
  return '';
})()`)
	if err != nil {
		return "", err
	}
	var status string
	if err := json.Unmarshal(value, &status); err != nil {
		return "", fmt.Errorf("decode modal status: %w", err)
	}
	return status, nil
}

func readProgress(ctx context.Context, session browser.Session) (int, error) {
	value, err := session.Eval(ctx, `document.querySelector('.progress-bar-primary')?.style.width || ''`)
	if err != nil {
		return 0, err
	}
	var width string
	if err := json.Unmarshal(value, &width); err != nil {
		return 0, fmt.Errorf("decode progress width: %w", err)
	}
	width = strings.TrimSuffix(strings.TrimSpace(width), "%")
	if width == "" {
		return 0, nil
	}
	percent, err := strconv.Atoi(width)
	if err != nil {
		return 0, nil
	}
	return percent, nil
}

func fetchResult(ctx context.Context, session browser.Session) (string, error) {
	const expression = `(async () => {
  const link = document.querySelector('a.big_download');
  const resp = await fetch(link.href);
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
		return "", fmt.Errorf("decode download payload: %w", err)
	}
	return payload, nil
}

var _ stage.Transformer = (*Stage)(nil)
