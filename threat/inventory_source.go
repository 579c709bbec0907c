package threat

import (
	"context"
	"strings"

	"iochunt/core"

	"go.uber.org/zap"
)

// InventorySource searches the per-endpoint file catalogue
type InventorySource struct {
	backend InventoryBackend
	runner  *sourceRunner
}

// NewInventorySource creates the inventory match source
func NewInventorySource(backend InventoryBackend, opts SourceOptions, logger *zap.SugaredLogger) (*InventorySource, error) {
	runner, err := newSourceRunner(core.MatchSourceInventory, opts, logger)
	if err != nil {
		return nil, err
	}
	return &InventorySource{backend: backend, runner: runner}, nil
}

// Kind implements MatchSource
func (s *InventorySource) Kind() core.MatchSourceKind { return core.MatchSourceInventory }

// Search matches hashes exactly and paths or names by substring, all ignoring case.
// Process names are not catalogued here and return no hits without a backend call.
func (s *InventorySource) Search(ctx context.Context, orgID string, ind *core.Indicator) (*SourceResult, error) {
	kind := ind.EffectiveKind()
	value := strings.TrimSpace(ind.Value)

	var query backendQuery
	switch kind {
	case core.IndicatorKindFileHash:
		query = func(ctx context.Context, limit int) ([]core.RawHit, error) {
			return s.backend.FindByHash(ctx, orgID, value, limit)
		}
	case core.IndicatorKindFilePath:
		query = func(ctx context.Context, limit int) ([]core.RawHit, error) {
			return s.backend.FindByPathSubstring(ctx, orgID, value, limit)
		}
	case core.IndicatorKindFileName:
		query = func(ctx context.Context, limit int) ([]core.RawHit, error) {
			return s.backend.FindByNameSubstring(ctx, orgID, value, limit)
		}
	default:
		return emptyResult(s.Kind()), nil
	}

	return s.runner.run(ctx, orgID, ind, kind, query)
}

// Breaker exposes the source's circuit breaker state
func (s *InventorySource) Breaker() BreakerState { return s.runner.breaker.State() }
