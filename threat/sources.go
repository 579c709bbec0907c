package threat

import (
	"context"
	"fmt"
	"time"

	"iochunt/core"
	"iochunt/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "iochunt/threat"

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// SourceResult is what one match source returned for one indicator.
// Hits keep the order the backend produced them in.
type SourceResult struct {
	Source    core.MatchSourceKind `json:"source"`
	Hits      []core.RawHit        `json:"hits"`
	Truncated bool                 `json:"truncated"`
}

// MatchSource is a read-only searchable provider of endpoint records
type MatchSource interface {
	Kind() core.MatchSourceKind
	Search(ctx context.Context, orgID string, ind *core.Indicator) (*SourceResult, error)
}

// InventoryBackend stores the file catalogue searched by the inventory source
type InventoryBackend interface {
	FindByHash(ctx context.Context, orgID, hash string, limit int) ([]core.RawHit, error)
	FindByPathSubstring(ctx context.Context, orgID, needle string, limit int) ([]core.RawHit, error)
	FindByNameSubstring(ctx context.Context, orgID, needle string, limit int) ([]core.RawHit, error)
}

// LogBackend stores the free-text event records searched by the log source
type LogBackend interface {
	FindByMessageSubstring(ctx context.Context, orgID, needle string, limit int) ([]core.RawHit, error)
}

// SourceOptions tunes an adapter
type SourceOptions struct {
	ResultCap int
	Timeout   time.Duration
	Breaker   BreakerConfig
}

// DispatchTable maps an indicator kind to the sources that can search for it
type DispatchTable map[core.IndicatorKind][]core.MatchSourceKind

// DefaultDispatchTable returns the kind-to-source routing used by hunts and quick search
func DefaultDispatchTable() DispatchTable {
	return DispatchTable{
		core.IndicatorKindFileHash:    {core.MatchSourceInventory},
		core.IndicatorKindFilePath:    {core.MatchSourceInventory, core.MatchSourceLog},
		core.IndicatorKindFileName:    {core.MatchSourceInventory, core.MatchSourceLog},
		core.IndicatorKindProcessName: {core.MatchSourceLog},
	}
}

// SourcesFor returns the source kinds applicable to kind, in table order
func (d DispatchTable) SourcesFor(kind core.IndicatorKind) []core.MatchSourceKind {
	return d[kind]
}

// SourceRegistry resolves registered match sources through a dispatch table
type SourceRegistry struct {
	table   DispatchTable
	sources map[core.MatchSourceKind]MatchSource
}

// NewSourceRegistry creates a registry over table and the given sources.
// A nil table means DefaultDispatchTable.
func NewSourceRegistry(table DispatchTable, sources ...MatchSource) *SourceRegistry {
	if table == nil {
		table = DefaultDispatchTable()
	}
	r := &SourceRegistry{table: table, sources: make(map[core.MatchSourceKind]MatchSource, len(sources))}
	for _, s := range sources {
		if s != nil {
			r.sources[s.Kind()] = s
		}
	}
	return r
}

// Resolve returns the registered sources applicable to kind. Unregistered kinds are skipped.
func (r *SourceRegistry) Resolve(kind core.IndicatorKind) []MatchSource {
	kinds := r.table.SourcesFor(kind)
	out := make([]MatchSource, 0, len(kinds))
	for _, k := range kinds {
		if s, ok := r.sources[k]; ok {
			out = append(out, s)
		}
	}
	return out
}

// sourceRunner is the part of a backend call both adapters share
type sourceRunner struct {
	kind    core.MatchSourceKind
	opts    SourceOptions
	breaker *SourceBreaker
	logger  *zap.SugaredLogger
}

func newSourceRunner(kind core.MatchSourceKind, opts SourceOptions, logger *zap.SugaredLogger) (*sourceRunner, error) {
	if opts.ResultCap <= 0 {
		return nil, fmt.Errorf("%s source: result cap must be positive", kind)
	}
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("%s source: timeout must be positive", kind)
	}
	if opts.Breaker == (BreakerConfig{}) {
		opts.Breaker = DefaultBreakerConfig()
	}
	breaker, err := NewSourceBreaker(opts.Breaker)
	if err != nil {
		return nil, fmt.Errorf("%s source: %w", kind, err)
	}
	return &sourceRunner{kind: kind, opts: opts, breaker: breaker, logger: logger}, nil
}

type backendQuery func(ctx context.Context, limit int) ([]core.RawHit, error)

// run asks the backend for cap+1 rows so truncation is detectable, then trims to cap
func (r *sourceRunner) run(ctx context.Context, orgID string, ind *core.Indicator, kind core.IndicatorKind, query backendQuery) (*SourceResult, error) {
	ctx, span := startSpan(ctx, "source.search",
		attribute.String("source", string(r.kind)),
		attribute.String("org_id", orgID),
		attribute.String("indicator_kind", string(kind)),
	)
	defer span.End()

	source := string(r.kind)
	if err := r.breaker.Allow(); err != nil {
		metrics.SourceQueries.WithLabelValues(source, "rejected").Inc()
		span.SetStatus(codes.Error, err.Error())
		return nil, &core.SourceUnavailableError{Source: r.kind, Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	start := time.Now()
	hits, err := query(callCtx, r.opts.ResultCap+1)
	metrics.SourceQueryDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())

	if err != nil {
		// A cancelled caller says nothing about the backend's health
		if ctx.Err() == nil {
			r.breaker.RecordFailure()
		} else {
			r.breaker.Abandon()
		}
		metrics.SourceQueries.WithLabelValues(source, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "backend query failed")
		r.logger.Warnw("Match source query failed",
			"source", source, "org_id", orgID, "indicator_id", ind.ID, "error", err)
		return nil, &core.SourceUnavailableError{Source: r.kind, Err: err}
	}
	r.breaker.RecordSuccess()
	metrics.SourceQueries.WithLabelValues(source, "ok").Inc()

	result := &SourceResult{Source: r.kind, Hits: hits}
	if result.Hits == nil {
		result.Hits = []core.RawHit{}
	}
	if len(result.Hits) > r.opts.ResultCap {
		result.Hits = result.Hits[:r.opts.ResultCap]
		result.Truncated = true
		metrics.SourceTruncations.WithLabelValues(source).Inc()
		r.logger.Infow("Match source result truncated",
			"source", source, "org_id", orgID, "indicator_id", ind.ID, "cap", r.opts.ResultCap)
	}
	span.SetAttributes(attribute.Int("hits", len(result.Hits)), attribute.Bool("truncated", result.Truncated))
	return result, nil
}

func emptyResult(kind core.MatchSourceKind) *SourceResult {
	return &SourceResult{Source: kind, Hits: []core.RawHit{}}
}
