package threat

import (
	"context"
	"strings"

	"iochunt/core"

	"go.uber.org/zap"
)

// LogSource searches free-text endpoint event records
type LogSource struct {
	backend LogBackend
	runner  *sourceRunner
}

// NewLogSource creates the log match source
func NewLogSource(backend LogBackend, opts SourceOptions, logger *zap.SugaredLogger) (*LogSource, error) {
	runner, err := newSourceRunner(core.MatchSourceLog, opts, logger)
	if err != nil {
		return nil, err
	}
	return &LogSource{backend: backend, runner: runner}, nil
}

// Kind implements MatchSource
func (s *LogSource) Kind() core.MatchSourceKind { return core.MatchSourceLog }

// Search matches the raw value as a case-insensitive substring of the message.
// Hashes are skipped; log messages rarely carry them.
func (s *LogSource) Search(ctx context.Context, orgID string, ind *core.Indicator) (*SourceResult, error) {
	kind := ind.EffectiveKind()
	switch kind {
	case core.IndicatorKindFilePath, core.IndicatorKindFileName, core.IndicatorKindProcessName:
	default:
		return emptyResult(s.Kind()), nil
	}

	needle := strings.TrimSpace(ind.Value)
	return s.runner.run(ctx, orgID, ind, kind, func(ctx context.Context, limit int) ([]core.RawHit, error) {
		return s.backend.FindByMessageSubstring(ctx, orgID, needle, limit)
	})
}

// Breaker exposes the source's circuit breaker state
func (s *LogSource) Breaker() BreakerState { return s.runner.breaker.State() }
