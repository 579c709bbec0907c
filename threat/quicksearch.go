package threat

import (
	"context"
	"strings"

	"iochunt/core"
	"iochunt/metrics"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// QuickSearchResult is one hit of an ad-hoc search, labelled for display
type QuickSearchResult struct {
	Source       core.MatchSourceKind   `json:"source"`
	EndpointID   string                 `json:"endpoint_id"`
	Hostname     string                 `json:"hostname"`
	MatchedValue string                 `json:"matched_value"`
	Context      map[string]interface{} `json:"context,omitempty"`
}

// QuickSearchResponse is the outcome of QuickSearch
type QuickSearchResponse struct {
	Query            string                 `json:"query"`
	Kind             core.IndicatorKind     `json:"kind"`
	HashAlgorithm    core.HashAlgorithm     `json:"hash_algorithm,omitempty"`
	Results          []QuickSearchResult    `json:"results"`
	TruncatedSources []core.MatchSourceKind `json:"truncated_sources"`
}

// QuickSearcher runs one value against the match sources without persisting anything
type QuickSearcher struct {
	sources   *SourceRegistry
	endpoints core.EndpointDirectory
	logger    *zap.SugaredLogger
}

// NewQuickSearcher creates a quick searcher. endpoints may be nil, in which
// case hostnames are left empty.
func NewQuickSearcher(sources *SourceRegistry, endpoints core.EndpointDirectory, logger *zap.SugaredLogger) *QuickSearcher {
	return &QuickSearcher{sources: sources, endpoints: endpoints, logger: logger}
}

// QuickSearch classifies raw and searches every applicable source concurrently.
// Results follow dispatch order, each source's hits in the order it returned them.
func (q *QuickSearcher) QuickSearch(ctx context.Context, orgID, raw string) (resp *QuickSearchResponse, err error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, core.NewValidationError("value", "must not be empty")
	}

	class := core.Classify(value)
	ctx, span := startSpan(ctx, "quicksearch",
		attribute.String("org_id", orgID),
		attribute.String("indicator.kind", string(class.Kind)),
	)
	defer span.End()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, "quick search failed")
		}
		metrics.QuickSearches.WithLabelValues(string(class.Kind), outcome).Inc()
	}()

	// Ad-hoc indicator, never stored
	ind := &core.Indicator{
		OrgID:         orgID,
		Kind:          class.Kind,
		Value:         value,
		HashAlgorithm: class.HashAlgorithm,
		IsActive:      true,
	}

	sources := q.sources.Resolve(class.Kind)
	perSource := make([]*SourceResult, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			res, err := src.Search(gctx, orgID, ind)
			if err != nil {
				return err
			}
			perSource[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp = &QuickSearchResponse{
		Query:            value,
		Kind:             class.Kind,
		HashAlgorithm:    class.HashAlgorithm,
		Results:          make([]QuickSearchResult, 0),
		TruncatedSources: make([]core.MatchSourceKind, 0),
	}
	endpointIDs := make([]string, 0)
	seen := make(map[string]struct{})
	for _, res := range perSource {
		if res.Truncated {
			resp.TruncatedSources = append(resp.TruncatedSources, res.Source)
		}
		for _, hit := range res.Hits {
			resp.Results = append(resp.Results, QuickSearchResult{
				Source:       res.Source,
				EndpointID:   hit.EndpointID,
				MatchedValue: hit.MatchedValue,
				Context:      hit.Context,
			})
			if _, ok := seen[hit.EndpointID]; !ok {
				seen[hit.EndpointID] = struct{}{}
				endpointIDs = append(endpointIDs, hit.EndpointID)
			}
		}
	}

	q.labelHostnames(ctx, orgID, endpointIDs, resp.Results)
	span.SetAttributes(attribute.Int("results", len(resp.Results)))
	return resp, nil
}

// labelHostnames fills in hostnames. A directory failure only costs the labels.
func (q *QuickSearcher) labelHostnames(ctx context.Context, orgID string, ids []string, results []QuickSearchResult) {
	if q.endpoints == nil || len(ids) == 0 {
		return
	}
	known, err := q.endpoints.GetEndpoints(ctx, orgID, ids)
	if err != nil {
		q.logger.Warnw("Failed to resolve endpoint hostnames", "org_id", orgID, "error", err)
		return
	}
	for i := range results {
		if ep, ok := known[results[i].EndpointID]; ok {
			results[i].Hostname = ep.Hostname
		}
	}
}
