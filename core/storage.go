package core

import (
	"context"
	"time"
)

// IndicatorStorage persists indicators. Every call is scoped to an organization.
type IndicatorStorage interface {
	CreateIndicator(ctx context.Context, ind *Indicator) error
	GetIndicator(ctx context.Context, orgID, id string) (*Indicator, error)
	// GetIndicators returns the indicators that exist, in the order of ids.
	// Unknown ids are skipped.
	GetIndicators(ctx context.Context, orgID string, ids []string) ([]*Indicator, error)
	UpdateIndicator(ctx context.Context, ind *Indicator) error
	DeleteIndicator(ctx context.Context, orgID, id string) error
	ListIndicators(ctx context.Context, orgID string, filters *IndicatorFilters) ([]*Indicator, int64, error)
	BulkCreateIndicators(ctx context.Context, orgID string, inds []*Indicator) (created, skipped int, err error)
}

// HuntJobStorage persists hunt jobs.
type HuntJobStorage interface {
	CreateHuntJob(ctx context.Context, job *HuntJob) error
	GetHuntJob(ctx context.Context, orgID, id string) (*HuntJob, error)
	// UpdateHuntStatus persists the job's status, timestamps and aggregates
	// only if the stored status still equals from.
	UpdateHuntStatus(ctx context.Context, job *HuntJob, from HuntStatus) error
	// DeleteHuntJob removes a job and its matches. Running jobs are rejected.
	DeleteHuntJob(ctx context.Context, orgID, id string) error
	ListHuntJobs(ctx context.Context, orgID string, limit, offset int) ([]*HuntJob, int64, error)
}

// MatchStorage persists matches.
type MatchStorage interface {
	// InsertMatches stores matches in slice order within one transaction.
	InsertMatches(ctx context.Context, matches []*Match) (int, error)
	GetMatch(ctx context.Context, orgID, id string) (*Match, error)
	ListMatchesByJob(ctx context.Context, orgID, jobID string, filters *MatchFilters) ([]*Match, int64, error)
	CountMatchesByJob(ctx context.Context, orgID, jobID string) (int64, error)
	SetMatchReviewed(ctx context.Context, orgID, id string, reviewed bool, actor string, at time.Time) (*Match, error)
}

// EndpointDirectory resolves endpoint ids for display.
type EndpointDirectory interface {
	// GetEndpoints returns the known endpoints keyed by id. Unknown ids are absent.
	GetEndpoints(ctx context.Context, orgID string, ids []string) (map[string]*Endpoint, error)
}
