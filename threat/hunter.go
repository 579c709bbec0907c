package threat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"iochunt/core"
	"iochunt/metrics"
	"iochunt/util/goroutine"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// Threat Hunt Engine
// =============================================================================

// ErrTooManyHunts is returned by StartHunt when every hunt slot is busy
var ErrTooManyHunts = errors.New("maximum concurrent hunts reached")

// HuntConfig configures the threat hunt engine
type HuntConfig struct {
	MaxConcurrentHunts   int           // Maximum concurrent async hunt jobs (default: 3)
	MaxConcurrentQueries int           // Indicator/source searches in flight per hunt (default: 4)
	MaxHuntDuration      time.Duration // Maximum execution time per hunt (default: 1h)
}

// DefaultHuntConfig returns default configuration
func DefaultHuntConfig() *HuntConfig {
	return &HuntConfig{
		MaxConcurrentHunts:   3,
		MaxConcurrentQueries: 4,
		MaxHuntDuration:      1 * time.Hour,
	}
}

// HuntEngineOption customizes a HuntEngine
type HuntEngineOption func(*HuntEngine)

// WithRunLock sets the cross-process run lock
func WithRunLock(lock RunLock) HuntEngineOption {
	return func(e *HuntEngine) { e.lock = lock }
}

// WithEventPublisher sets where lifecycle events go
func WithEventPublisher(pub EventPublisher) HuntEngineOption {
	return func(e *HuntEngine) { e.events = pub }
}

// WithContextValidator checks every hit context before it is persisted
func WithContextValidator(v *ContextValidator) HuntEngineOption {
	return func(e *HuntEngine) { e.validator = v }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) HuntEngineOption {
	return func(e *HuntEngine) { e.now = now }
}

// HuntEngine runs hunt jobs: it resolves indicators, fans searches out over the
// match sources, persists every hit and drives the job state machine.
type HuntEngine struct {
	indicators core.IndicatorStorage
	jobs       core.HuntJobStorage
	matches    core.MatchStorage
	sources    *SourceRegistry
	validator  *ContextValidator
	lock       RunLock
	events     EventPublisher
	config     *HuntConfig
	logger     *zap.SugaredLogger
	now        func() time.Time

	mu            sync.RWMutex
	activeHunts   map[string]time.Time // Hunt ID -> start time
	huntSemaphore chan struct{}

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHuntEngine creates a new threat hunt engine
func NewHuntEngine(indicators core.IndicatorStorage, jobs core.HuntJobStorage, matches core.MatchStorage,
	sources *SourceRegistry, config *HuntConfig, logger *zap.SugaredLogger, opts ...HuntEngineOption) *HuntEngine {
	if config == nil {
		config = DefaultHuntConfig()
	}
	if config.MaxConcurrentHunts <= 0 {
		config.MaxConcurrentHunts = 3
	}
	if config.MaxConcurrentQueries <= 0 {
		config.MaxConcurrentQueries = 4
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &HuntEngine{
		indicators:    indicators,
		jobs:          jobs,
		matches:       matches,
		sources:       sources,
		lock:          NopRunLock{},
		events:        NopPublisher{},
		config:        config,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
		activeHunts:   make(map[string]time.Time),
		huntSemaphore: make(chan struct{}, config.MaxConcurrentHunts),
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateHuntRequest describes a new hunt job
type CreateHuntRequest struct {
	Name         string   `json:"name" validate:"required,max=200"`
	Description  string   `json:"description,omitempty" validate:"max=2000"`
	IndicatorIDs []string `json:"indicator_ids,omitempty" validate:"max=10000,dive,required"`
	CreatedBy    string   `json:"created_by,omitempty"`
}

// CreateHunt persists a pending hunt job. Without explicit indicator ids the
// job covers every active indicator of the organization.
func (e *HuntEngine) CreateHunt(ctx context.Context, orgID string, req *CreateHuntRequest) (*core.HuntJob, error) {
	ids := req.IndicatorIDs
	if len(ids) == 0 {
		active, _, err := e.indicators.ListIndicators(ctx, orgID, &core.IndicatorFilters{
			ActiveOnly: true,
			Limit:      core.MaxHuntIndicators,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to select active indicators: %w", err)
		}
		ids = make([]string, 0, len(active))
		for _, ind := range active {
			ids = append(ids, ind.ID)
		}
	}
	if len(ids) == 0 {
		return nil, core.NewValidationError("indicator_ids", "no indicators to hunt for")
	}

	job, err := core.NewHuntJob(orgID, req.Name, req.Description, ids, req.CreatedBy)
	if err != nil {
		return nil, err
	}
	if err := e.jobs.CreateHuntJob(ctx, job); err != nil {
		return nil, err
	}

	e.logger.Infow("Hunt created", "hunt_id", job.ID, "org_id", orgID, "indicator_count", len(ids))
	return job, nil
}

// StartHunt runs a pending hunt job in the background
func (e *HuntEngine) StartHunt(orgID, jobID string) error {
	job, err := e.jobs.GetHuntJob(e.ctx, orgID, jobID)
	if err != nil {
		return err
	}
	if job.Status != core.HuntStatusPending {
		return core.NewConflictError("hunt job", jobID, "hunt is not pending: "+string(job.Status))
	}

	select {
	case e.huntSemaphore <- struct{}{}:
	default:
		return ErrTooManyHunts
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() { <-e.huntSemaphore }()
		defer goroutine.Recover("hunt", e.logger, "hunt_id", jobID, "org_id", orgID)

		if _, err := e.ExecuteHunt(e.ctx, orgID, jobID, nil); err != nil {
			e.logger.Errorw("Hunt failed", "hunt_id", jobID, "org_id", orgID, "error", err)
		}
	}()

	e.logger.Infow("Hunt started", "hunt_id", jobID, "org_id", orgID)
	return nil
}

// huntAggregate accumulates the totals of one run. The lock is only held for
// in-memory updates.
type huntAggregate struct {
	mu        sync.Mutex
	endpoints map[string]struct{}
	matches   int
}

func (a *huntAggregate) add(recorded []*core.Match) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, m := range recorded {
		a.endpoints[m.EndpointID] = struct{}{}
	}
	a.matches += len(recorded)
}

func (a *huntAggregate) totals() (endpoints, matches int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.endpoints), a.matches
}

// ExecuteHunt runs a pending job to completion and returns its totals.
// indicatorIDs overrides the job's stored list when non-empty. Any error leaves
// the job failed with the matches persisted so far.
func (e *HuntEngine) ExecuteHunt(ctx context.Context, orgID, jobID string, indicatorIDs []string) (*core.HuntResult, error) {
	ctx, span := startSpan(ctx, "hunt.execute",
		attribute.String("org_id", orgID),
		attribute.String("hunt_id", jobID),
	)
	defer span.End()

	job, err := e.jobs.GetHuntJob(ctx, orgID, jobID)
	if err != nil {
		return nil, err
	}

	release, err := e.lock.Acquire(ctx, orgID, jobID)
	if errors.Is(err, ErrLockHeld) {
		return nil, core.NewConflictError("hunt job", jobID, "hunt is already running")
	}
	if err != nil {
		return nil, err
	}
	defer release()

	if !e.trackActive(jobID) {
		return nil, core.NewConflictError("hunt job", jobID, "hunt is already running")
	}
	defer e.untrackActive(jobID)

	startedAt := e.now()
	if err := job.Start(startedAt); err != nil {
		return nil, err
	}
	if err := e.jobs.UpdateHuntStatus(ctx, job, core.HuntStatusPending); err != nil {
		return nil, err
	}
	metrics.ActiveHunts.Inc()
	defer metrics.ActiveHunts.Dec()
	publishEvent(ctx, e.events, e.logger, HuntEventStarted, job)

	if len(indicatorIDs) == 0 {
		indicatorIDs = job.IndicatorIDs
	}

	huntCtx, cancel := context.WithTimeout(ctx, e.config.MaxHuntDuration)
	defer cancel()

	agg := &huntAggregate{endpoints: make(map[string]struct{})}
	runErr := e.run(huntCtx, job, indicatorIDs, agg)
	endpoints, matches := agg.totals()
	span.SetAttributes(attribute.Int("matches", matches), attribute.Int("endpoints", endpoints))

	// The terminal state is written even if the caller's context is gone
	finalCtx, finalCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer finalCancel()

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "hunt failed")
		e.finish(finalCtx, job, startedAt, func(now time.Time) error {
			return job.Fail(now, endpoints, matches, runErr)
		}, HuntEventFailed)
		e.logger.Warnw("Hunt failed",
			"hunt_id", jobID, "org_id", orgID, "matches", matches, "endpoints", endpoints, "error", runErr)
		return nil, runErr
	}

	if err := e.finish(finalCtx, job, startedAt, func(now time.Time) error {
		return job.Complete(now, endpoints, matches)
	}, HuntEventCompleted); err != nil {
		return nil, err
	}

	e.logger.Infow("Hunt completed",
		"hunt_id", jobID,
		"org_id", orgID,
		"duration", e.now().Sub(startedAt),
		"matches", matches,
		"endpoints", endpoints,
	)
	return &core.HuntResult{TotalMatches: matches, TotalEndpoints: endpoints}, nil
}

// finish applies a terminal transition and persists it
func (e *HuntEngine) finish(ctx context.Context, job *core.HuntJob, startedAt time.Time, transition func(time.Time) error, event HuntEventType) error {
	now := e.now()
	if err := transition(now); err != nil {
		return err
	}
	if err := e.jobs.UpdateHuntStatus(ctx, job, core.HuntStatusRunning); err != nil {
		e.logger.Errorw("Failed to record hunt outcome", "hunt_id", job.ID, "status", job.Status, "error", err)
		return fmt.Errorf("failed to record hunt outcome: %w", err)
	}

	metrics.HuntsFinished.WithLabelValues(string(job.Status)).Inc()
	metrics.HuntDuration.Observe(now.Sub(startedAt).Seconds())
	publishEvent(ctx, e.events, e.logger, event, job)
	return nil
}

type searchTask struct {
	indicator *core.Indicator
	source    MatchSource
}

// run searches every (indicator, applicable source) pair on a bounded pool.
// The first error cancels the remaining searches.
func (e *HuntEngine) run(ctx context.Context, job *core.HuntJob, indicatorIDs []string, agg *huntAggregate) error {
	indicators, err := e.indicators.GetIndicators(ctx, job.OrgID, indicatorIDs)
	if err != nil {
		return fmt.Errorf("failed to load indicators: %w", err)
	}
	if missing := len(indicatorIDs) - len(indicators); missing > 0 {
		e.logger.Infow("Ignoring unresolvable indicators", "hunt_id", job.ID, "missing", missing)
	}

	tasks := make([]searchTask, 0, len(indicators)*2)
	for _, ind := range indicators {
		if !ind.IsActive {
			e.logger.Debugw("Skipping inactive indicator", "hunt_id", job.ID, "indicator_id", ind.ID)
			continue
		}
		for _, src := range e.sources.Resolve(ind.EffectiveKind()) {
			tasks = append(tasks, searchTask{indicator: ind, source: src})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.MaxConcurrentQueries)
	for _, task := range tasks {
		g.Go(func() error {
			return e.searchAndRecord(gctx, job, task, agg)
		})
	}
	return g.Wait()
}

// searchAndRecord persists one source's hits for one indicator in source order
func (e *HuntEngine) searchAndRecord(ctx context.Context, job *core.HuntJob, task searchTask, agg *huntAggregate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	result, err := task.source.Search(ctx, job.OrgID, task.indicator)
	if err != nil {
		return err
	}
	if len(result.Hits) == 0 {
		return nil
	}

	batch := make([]*core.Match, 0, len(result.Hits))
	for _, hit := range result.Hits {
		if e.validator != nil {
			if err := e.validator.Validate(result.Source, hit.Context); err != nil {
				return err
			}
		}
		batch = append(batch, core.NewMatch(job.OrgID, job.ID, task.indicator.ID, result.Source, hit))
	}

	n, err := e.matches.InsertMatches(ctx, batch)
	if err != nil {
		return fmt.Errorf("failed to record matches: %w", err)
	}
	agg.add(batch[:n])
	metrics.MatchesRecorded.WithLabelValues(string(result.Source)).Add(float64(n))
	return nil
}

func (e *HuntEngine) trackActive(jobID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.activeHunts[jobID]; exists {
		return false
	}
	e.activeHunts[jobID] = e.now()
	return true
}

func (e *HuntEngine) untrackActive(jobID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.activeHunts, jobID)
}

// GetActiveHunts returns IDs of hunts currently running in this process
func (e *HuntEngine) GetActiveHunts() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := make([]string, 0, len(e.activeHunts))
	for id := range e.activeHunts {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown waits for background hunts. Hunts still running at the deadline are
// cancelled and recorded as failed.
func (e *HuntEngine) Shutdown(timeout time.Duration) error {
	e.logger.Info("Shutting down hunt engine...")

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.cancel()
		e.logger.Info("Hunt engine shutdown complete")
		return nil
	case <-time.After(timeout):
		e.cancel()
		<-done
		e.logger.Warn("Hunt engine shutdown timed out; running hunts were cancelled")
		return errors.New("shutdown timed out")
	}
}
