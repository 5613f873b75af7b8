package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
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
	"podflow/internal/stage"
	"podflow/internal/workspace"
)

// Result summarizes one asset's journey through the sequence.
type Result struct {
	AssetID  string
	FailedAt string
	Err      error
}

// Summary aggregates a full generation run.
type Summary struct {
	RunID    string
	Sequence string
	Results  []Result
}

// Produced counts assets that finished every stage.
func (s Summary) Produced() int {
	count := 0
	for _, r := range s.Results {
		if r.Err == nil {
			count++
		}
	}
	return count
}

// Failed counts assets that hit a permanent failure.
func (s Summary) Failed() int {
	return len(s.Results) - s.Produced()
}

// Pipeline drives the configured stage sequence: one producing stage
// followed by transforms, each wrapped in the retry policy, one asset at a
// time.
type Pipeline struct {
	cfg      *config.Config
	registry *stage.Registry
	sessions *stage.SessionFactory
	journal  *journal.Store
	ws       *workspace.Workspace
	router   *workspace.Router
	policy   *retry.Policy
	logger   *slog.Logger

	// stageTimeout bounds a single stage attempt, zero means unbounded.
	stageTimeout time.Duration
}

// New assembles a pipeline.
func New(
	cfg *config.Config,
	registry *stage.Registry,
	sessions *stage.SessionFactory,
	store *journal.Store,
	ws *workspace.Workspace,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:          cfg,
		registry:     registry,
		sessions:     sessions,
		journal:      store,
		ws:           ws,
		router:       workspace.NewRouter(ws, logger),
		policy:       retry.FromConfig(cfg, retry.WithLogger(logger)),
		logger:       logging.NewComponentLogger(logger, "pipeline"),
		stageTimeout: time.Duration(cfg.Retry.StageTimeoutMin) * time.Minute,
	}
}

// Run executes the named sequence count times. Per-asset permanent failures
// route the asset to the error partition and the run continues; only a
// misconfigured start or context cancellation stops the batch.
func (p *Pipeline) Run(ctx context.Context, sequenceName string, count int) (*Summary, error) {
	names, ok := p.cfg.Sequence(sequenceName)
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "run",
			fmt.Sprintf("sequence %q is not configured", sequenceName), nil)
	}
	adapters, err := p.registry.ResolveSequence(names)
	if err != nil {
		return nil, err
	}
	if err := p.checkHealth(ctx, adapters); err != nil {
		return nil, err
	}
	if err := p.ws.EnsurePartitions(workspace.GenerateTarget); err != nil {
		return nil, err
	}
	if err := p.router.Recover(workspace.GenerateTarget); err != nil {
		return nil, err
	}
	if count <= 0 {
		count = 1
	}

	summary := &Summary{RunID: uuid.NewString(), Sequence: sequenceName}
	runLogger := p.logger.With(logging.String(logging.FieldCorrelationID, summary.RunID))
	runLogger.Info("generation run started",
		logging.String("sequence", sequenceName),
		logging.Int("count", count),
		logging.String(logging.FieldEventType, "run_start"))

	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			runLogger.Warn("generation run interrupted", logging.Int("completed", i))
			return summary, err
		}
		result := p.runOnce(ctx, runLogger, summary.RunID, adapters)
		if result.Err != nil && ctx.Err() != nil {
			// Interrupted in flight: the asset was not routed and is not
			// part of the tally.
			runLogger.Warn("generation run interrupted", logging.Int("completed", i))
			return summary, ctx.Err()
		}
		summary.Results = append(summary.Results, result)
	}

	runLogger.Info("generation run finished",
		logging.Int("produced", summary.Produced()),
		logging.Int("failed", summary.Failed()),
		logging.String(logging.FieldEventType, "run_finish"))
	return summary, nil
}

func (p *Pipeline) checkHealth(ctx context.Context, adapters []stage.Adapter) error {
	for _, adapter := range adapters {
		health := adapter.HealthCheck(ctx)
		if !health.Ready {
			return services.Wrap(services.ErrConfiguration, "pipeline", "health",
				fmt.Sprintf("stage %s is not ready: %s", health.Name, health.Detail), nil)
		}
	}
	return nil
}

// runOnce produces one asset and walks it through the transforms.
func (p *Pipeline) runOnce(ctx context.Context, runLogger *slog.Logger, runID string, adapters []stage.Adapter) Result {
	producer, ok := adapters[0].(stage.Producer)
	if !ok {
		return Result{FailedAt: adapters[0].Name(), Err: services.Wrap(services.ErrConfiguration, "pipeline", "run",
			fmt.Sprintf("stage %s declares produce but cannot produce", adapters[0].Name()), nil)}
	}

	produced, err := p.produce(ctx, runLogger, runID, producer)
	if err != nil {
		return Result{FailedAt: producer.Name(), Err: err}
	}

	assetLogger := runLogger.With(logging.String(logging.FieldAssetID, produced.ID))
	for _, adapter := range adapters[1:] {
		transformer, ok := adapter.(stage.Transformer)
		if !ok {
			return Result{AssetID: produced.ID, FailedAt: adapter.Name(), Err: services.Wrap(services.ErrConfiguration, "pipeline", "run",
				fmt.Sprintf("stage %s declares transform but cannot transform", adapter.Name()), nil)}
		}
		if err := p.transform(ctxWithAsset(ctx, produced), assetLogger, runID, transformer, produced); err != nil {
			if ctx.Err() != nil {
				// Interrupted mid-transform: the asset stays pending untouched.
				return Result{AssetID: produced.ID, FailedAt: adapter.Name(), Err: err}
			}
			if routeErr := p.router.Route(produced.Dir, workspace.GenerateTarget, workspace.OutcomeError); routeErr != nil {
				assetLogger.Error("failed to route failed asset", logging.Error(routeErr))
			}
			return Result{AssetID: produced.ID, FailedAt: adapter.Name(), Err: err}
		}
	}
	return Result{AssetID: produced.ID}
}

func ctxWithAsset(ctx context.Context, a *asset.Asset) context.Context {
	return services.WithAssetID(ctx, a.ID)
}

// produce runs the producing stage under the retry policy. Each attempt gets
// a fresh browser session.
func (p *Pipeline) produce(ctx context.Context, runLogger *slog.Logger, runID string, producer stage.Producer) (*asset.Asset, error) {
	var (
		produced *asset.Asset
		attempts int
	)
	started := time.Now()
	stageCtx := services.WithStage(ctx, producer.Name())

	err := p.policy.Do(stageCtx, func(ctx context.Context, attempt int) error {
		attempts = attempt
		ctx, cancel := p.boundAttempt(ctx)
		defer cancel()

		session, err := p.openSession(ctx, producer)
		if err != nil {
			return err
		}
		defer closeSession(session)

		created, err := producer.Produce(ctx, session, p.ws.Pending())
		if err != nil {
			return attemptError(stageCtx, err)
		}
		produced = created
		return nil
	})

	artifact := ""
	if produced != nil {
		artifact = produced.ImagePath
	}
	p.recordStage(ctx, journal.StageResult{
		RunID:        runID,
		AssetID:      assetID(produced),
		Stage:        producer.Name(),
		Attempts:     attempts,
		Outcome:      stageOutcome(err),
		ErrorClass:   errorClass(err),
		Message:      errorMessage(err),
		ArtifactPath: artifact,
		StartedAt:    started,
		FinishedAt:   time.Now(),
	})

	if err != nil {
		runLogger.Error("producing stage failed",
			logging.String(logging.FieldStage, producer.Name()),
			logging.Int("attempts", attempts),
			logging.Error(err))
		return nil, err
	}
	runLogger.Info("stage finished",
		logging.String(logging.FieldStage, producer.Name()),
		logging.String(logging.FieldAssetID, produced.ID),
		logging.Int("attempts", attempts),
		logging.String(logging.FieldEventType, "stage_finish"))
	return produced, nil
}

// transform runs one transforming stage under the retry policy.
func (p *Pipeline) transform(ctx context.Context, assetLogger *slog.Logger, runID string, transformer stage.Transformer, a *asset.Asset) error {
	var (
		artifact string
		attempts int
	)
	started := time.Now()
	stageCtx := services.WithStage(ctx, transformer.Name())

	err := p.policy.Do(stageCtx, func(ctx context.Context, attempt int) error {
		attempts = attempt
		ctx, cancel := p.boundAttempt(ctx)
		defer cancel()

		session, err := p.openSession(ctx, transformer)
		if err != nil {
			return err
		}
		defer closeSession(session)

		path, err := transformer.Transform(ctx, session, a)
		if err != nil {
			return attemptError(stageCtx, err)
		}
		artifact = path
		return nil
	})

	outcome := asset.StageOutcome{
		Stage:    transformer.Name(),
		Attempts: attempts,
		Artifact: artifact,
		At:       time.Now(),
	}
	if err != nil {
		outcome.Class = services.Classify(err)
		outcome.Message = errorMessage(err)
	}
	a.RecordOutcome(outcome)
	p.recordStage(ctx, journal.StageResult{
		RunID:        runID,
		AssetID:      a.ID,
		Stage:        transformer.Name(),
		Attempts:     attempts,
		Outcome:      stageOutcome(err),
		ErrorClass:   errorClass(err),
		Message:      errorMessage(err),
		ArtifactPath: artifact,
		StartedAt:    started,
		FinishedAt:   time.Now(),
	})

	if err != nil {
		assetLogger.Error("stage failed",
			logging.String(logging.FieldStage, transformer.Name()),
			logging.Int("attempts", attempts),
			logging.Error(err))
		return err
	}
	assetLogger.Info("stage finished",
		logging.String(logging.FieldStage, transformer.Name()),
		logging.Int("attempts", attempts),
		logging.String(logging.FieldEventType, "stage_finish"))
	return nil
}

// attemptError promotes an expired per-attempt deadline to the retryable
// timeout marker. A cancellation of the whole run passes through untouched.
func attemptError(runCtx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && runCtx.Err() == nil {
		return services.Wrap(services.ErrTimeout, "pipeline", "stage", "stage attempt timed out", err)
	}
	return err
}

// boundAttempt applies the per-attempt stage timeout when one is configured.
func (p *Pipeline) boundAttempt(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.stageTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.stageTimeout)
}

// openSession opens the adapter's site session, or returns nil for stages
// that manage their own browsing.
func (p *Pipeline) openSession(ctx context.Context, adapter stage.Adapter) (browser.Session, error) {
	if adapter.Site() == "" {
		return nil, nil
	}
	return p.sessions.Open(ctx, adapter.Site())
}

func closeSession(session browser.Session) {
	if session != nil {
		_ = session.Close()
	}
}

func (p *Pipeline) recordStage(ctx context.Context, result journal.StageResult) {
	if p.journal == nil {
		return
	}
	if err := p.journal.RecordStage(ctx, result); err != nil {
		p.logger.Error("failed to journal stage result", logging.Error(err))
	}
}

func assetID(a *asset.Asset) string {
	if a == nil {
		return ""
	}
	return a.ID
}

func stageOutcome(err error) string {
	if err == nil {
		return journal.OutcomeSuccess
	}
	return journal.OutcomeFailure
}

func errorClass(err error) string {
	if err == nil {
		return ""
	}
	if services.Classify(err) == services.ClassTransient {
		return "transient"
	}
	return "permanent"
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return strings.TrimSpace(msg)
}
