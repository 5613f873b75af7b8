package uploader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"podflow/internal/asset"
	"podflow/internal/browser"
	"podflow/internal/config"
	"podflow/internal/journal"
	"podflow/internal/logging"
	"podflow/internal/retry"
	"podflow/internal/services"
	"podflow/internal/shop"
	"podflow/internal/stage"
	"podflow/internal/workspace"
)

// Result is one asset's terminal upload outcome.
type Result struct {
	AssetID string
	Outcome string
	Err     error
}

// Summary aggregates a batch upload run. Aborted is set when the shop's
// daily limit stopped the batch; the remaining assets stay pending.
type Summary struct {
	RunID   string
	Shop    string
	Aborted bool
	Results []Result
}

// Uploaded counts assets that landed in the shop, including ones a retry
// probe found already submitted.
func (s Summary) Uploaded() int {
	count := 0
	for _, r := range s.Results {
		if r.Outcome == journal.OutcomeSuccess {
			count++
		}
	}
	return count
}

// Skipped counts assets set aside by the daily limit.
func (s Summary) Skipped() int {
	count := 0
	for _, r := range s.Results {
		if r.Outcome == journal.OutcomeSkipped {
			count++
		}
	}
	return count
}

// Failed counts assets routed to the error partition.
func (s Summary) Failed() int {
	count := 0
	for _, r := range s.Results {
		if r.Outcome == journal.OutcomeFailure {
			count++
		}
	}
	return count
}

// Engine drives a batch upload: one shop, one authenticated session, the
// pending assets in enumeration order. Each asset is routed to its terminal
// partition the moment its outcome is known.
type Engine struct {
	cfg      *config.Config
	shops    *shop.Registry
	sessions *stage.SessionFactory
	journal  *journal.Store
	ws       *workspace.Workspace
	router   *workspace.Router
	policy   *retry.Policy
	logger   *slog.Logger
}

// New assembles an upload engine.
func New(
	cfg *config.Config,
	shops *shop.Registry,
	sessions *stage.SessionFactory,
	store *journal.Store,
	ws *workspace.Workspace,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		cfg:      cfg,
		shops:    shops,
		sessions: sessions,
		journal:  store,
		ws:       ws,
		router:   workspace.NewRouter(ws, logger),
		policy:   retry.FromConfig(cfg, retry.WithLogger(logger)),
		logger:   logging.NewComponentLogger(logger, "uploader"),
	}
}

// Run uploads every pending asset to the named shop. A missing profile or a
// failed authentication stops the run before any asset is touched; the daily
// upload limit aborts the remainder of the batch in place. Per-asset failures
// route the asset to the error partition and the run continues.
func (e *Engine) Run(ctx context.Context, shopName string) (*Summary, error) {
	adapter, err := e.shops.Lookup(shopName)
	if err != nil {
		return nil, err
	}
	if err := e.ws.EnsurePartitions(adapter.Name()); err != nil {
		return nil, err
	}
	if err := e.router.Recover(adapter.Name()); err != nil {
		return nil, err
	}

	pending, err := e.ws.ListPending()
	if err != nil {
		return nil, err
	}

	summary := &Summary{RunID: uuid.NewString(), Shop: adapter.Name()}
	runLogger := e.logger.With(
		logging.String(logging.FieldCorrelationID, summary.RunID),
		logging.String(logging.FieldShop, adapter.Name()),
	)
	if len(pending) == 0 {
		runLogger.Info("nothing pending to upload")
		return summary, nil
	}

	session, err := e.sessions.Open(ctx, adapter.Site())
	if err != nil {
		return nil, err
	}
	defer session.Close()

	template, err := adapter.Authenticate(ctx, session)
	if err != nil {
		return nil, err
	}
	runLogger.Info("batch upload started",
		logging.Int("pending", len(pending)),
		logging.String(logging.FieldEventType, "upload_start"))

	for _, dir := range pending {
		if ctx.Err() != nil {
			runLogger.Warn("batch interrupted, remaining assets stay pending",
				logging.Int("done", len(summary.Results)))
			return summary, ctx.Err()
		}

		result, abort := e.uploadOne(ctx, runLogger, summary.RunID, adapter, session, template, dir)
		if abort {
			summary.Aborted = true
			runLogger.Warn("daily upload limit reached, aborting batch",
				logging.Int("done", len(summary.Results)))
			break
		}
		if result.Outcome == "" {
			// Interrupted mid-submit: the asset stays pending untouched.
			return summary, result.Err
		}
		summary.Results = append(summary.Results, result)
	}

	runLogger.Info("batch upload finished",
		logging.Int("uploaded", summary.Uploaded()),
		logging.Int("failed", summary.Failed()),
		logging.String(logging.FieldEventType, "upload_finish"))
	return summary, nil
}

// uploadOne takes one pending asset to a terminal outcome and routes it. The
// abort return is set when the shop's daily limit fired; an empty Outcome
// with a non-nil Err means the submit was interrupted and nothing was routed.
func (e *Engine) uploadOne(
	ctx context.Context,
	runLogger *slog.Logger,
	runID string,
	adapter shop.Adapter,
	session browser.Session,
	template *shop.Template,
	dir string,
) (Result, bool) {
	a, err := asset.Load(dir)
	if err != nil {
		// A directory that does not load as an asset is a permanent fault
		// of the asset, not of the shop.
		assetID := filepath.Base(dir)
		runLogger.Error("unreadable asset", logging.String(logging.FieldAssetID, assetID), logging.Error(err))
		e.recordUpload(ctx, runID, adapter, assetID, template, 0, journal.OutcomeFailure, err)
		e.route(runLogger, dir, adapter.Name(), workspace.OutcomeError)
		return Result{AssetID: assetID, Outcome: journal.OutcomeFailure, Err: err}, false
	}

	assetLogger := runLogger.With(logging.String(logging.FieldAssetID, a.ID))
	attempts := 0
	err = e.policy.Do(services.WithAssetID(ctx, a.ID), func(ctx context.Context, attempt int) error {
		attempts = attempt
		if attempt > 1 {
			done, probeErr := adapter.AlreadySubmitted(ctx, session, a)
			if probeErr != nil {
				// The previous submit may have landed; repeating it without
				// a confirmed answer risks a duplicate design.
				return fmt.Errorf("idempotency probe: %w", probeErr)
			}
			if done {
				assetLogger.Info("design already in shop, skipping re-submit")
				return nil
			}
		}
		return adapter.Submit(ctx, session, a, template)
	})

	switch {
	case err == nil:
		e.recordUpload(ctx, runID, adapter, a.ID, template, attempts, journal.OutcomeSuccess, nil)
		e.route(assetLogger, dir, adapter.Name(), workspace.OutcomeSuccess)
		assetLogger.Info("asset uploaded",
			logging.Int("attempts", attempts),
			logging.String(logging.FieldEventType, "uploaded"))
		return Result{AssetID: a.ID, Outcome: journal.OutcomeSuccess}, false

	case errors.Is(err, shop.ErrDailyLimit):
		// Not the asset's fault: it stays pending for tomorrow's batch.
		e.recordUpload(ctx, runID, adapter, a.ID, template, attempts, journal.OutcomeSkipped, err)
		return Result{AssetID: a.ID, Outcome: journal.OutcomeSkipped, Err: err}, true

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Result{AssetID: a.ID, Err: err}, false

	default:
		e.recordUpload(ctx, runID, adapter, a.ID, template, attempts, journal.OutcomeFailure, err)
		e.route(assetLogger, dir, adapter.Name(), workspace.OutcomeError)
		assetLogger.Error("asset upload failed",
			logging.Int("attempts", attempts),
			logging.Error(err))
		return Result{AssetID: a.ID, Outcome: journal.OutcomeFailure, Err: err}, false
	}
}

func (e *Engine) route(logger *slog.Logger, dir, target string, outcome workspace.Outcome) {
	if err := e.router.Route(dir, target, outcome); err != nil {
		logger.Error("failed to route asset", logging.Error(err))
	}
}

func (e *Engine) recordUpload(ctx context.Context, runID string, adapter shop.Adapter, assetID string, template *shop.Template, attempts int, outcome string, err error) {
	if e.journal == nil {
		return
	}
	result := journal.UploadResult{
		RunID:      runID,
		AssetID:    assetID,
		Shop:       adapter.Name(),
		Attempts:   attempts,
		Outcome:    outcome,
		FinishedAt: time.Now(),
	}
	if template != nil {
		result.TemplateID = template.ID
	}
	if err != nil {
		if services.Classify(err) == services.ClassTransient {
			result.ErrorClass = "transient"
		} else {
			result.ErrorClass = "permanent"
		}
		msg := err.Error()
		if len(msg) > 500 {
			msg = msg[:500]
		}
		result.Message = strings.TrimSpace(msg)
	}
	if recordErr := e.journal.RecordUpload(ctx, result); recordErr != nil {
		e.logger.Error("failed to journal upload result", logging.Error(recordErr))
	}
}
