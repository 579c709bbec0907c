package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// HuntStatus represents the lifecycle status of a hunt job
type HuntStatus string

const (
	HuntStatusPending   HuntStatus = "pending"
	HuntStatusRunning   HuntStatus = "running"
	HuntStatusCompleted HuntStatus = "completed"
	HuntStatusFailed    HuntStatus = "failed"
)

// IsValid checks if the hunt status is valid
func (s HuntStatus) IsValid() bool {
	switch s {
	case HuntStatusPending, HuntStatusRunning, HuntStatusCompleted, HuntStatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true if no transition leaves this status
func (s HuntStatus) IsTerminal() bool {
	return s == HuntStatusCompleted || s == HuntStatusFailed
}

// CanTransitionTo reports whether pending -> running -> {completed, failed} allows next.
func (s HuntStatus) CanTransitionTo(next HuntStatus) bool {
	switch s {
	case HuntStatusPending:
		return next == HuntStatusRunning
	case HuntStatusRunning:
		return next == HuntStatusCompleted || next == HuntStatusFailed
	}
	return false
}

// HuntKind names what a hunt job searches for
type HuntKind string

const HuntKindIOC HuntKind = "ioc"

// MaxHuntIndicators bounds the indicator list of one hunt job.
const MaxHuntIndicators = 10000

// HuntJob is a single-shot execution of a set of indicators against the match sources
type HuntJob struct {
	ID             string     `json:"id"`
	OrgID          string     `json:"org_id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Status         HuntStatus `json:"status"`
	HuntKind       HuntKind   `json:"hunt_kind"`
	IndicatorIDs   []string   `json:"indicator_ids"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	TotalEndpoints int        `json:"total_endpoints"`
	MatchesFound   int        `json:"matches_found"`
	Error          string     `json:"error,omitempty"`
	CreatedBy      string     `json:"created_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// HuntResult carries the aggregates of a finished run
type HuntResult struct {
	TotalMatches   int `json:"total_matches"`
	TotalEndpoints int `json:"total_endpoints"`
}

// NewHuntJob creates a pending hunt job
func NewHuntJob(orgID, name, description string, indicatorIDs []string, createdBy string) (*HuntJob, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("name", "must not be empty")
	}
	if len(indicatorIDs) > MaxHuntIndicators {
		return nil, NewValidationError("indicator_ids", "too many indicators")
	}

	now := time.Now().UTC()
	ids := make([]string, len(indicatorIDs))
	copy(ids, indicatorIDs)

	return &HuntJob{
		ID:           uuid.New().String(),
		OrgID:        orgID,
		Name:         name,
		Description:  description,
		Status:       HuntStatusPending,
		HuntKind:     HuntKindIOC,
		IndicatorIDs: ids,
		CreatedBy:    createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (j *HuntJob) transition(next HuntStatus) error {
	if !j.Status.CanTransitionTo(next) {
		return NewConflictError("hunt job", j.ID, "cannot transition from "+string(j.Status)+" to "+string(next))
	}
	j.Status = next
	return nil
}

// Start moves a pending job to running and stamps started_at.
func (j *HuntJob) Start(now time.Time) error {
	if err := j.transition(HuntStatusRunning); err != nil {
		return err
	}
	j.StartedAt = &now
	j.UpdatedAt = now
	j.TotalEndpoints = 0
	j.MatchesFound = 0
	j.Error = ""
	return nil
}

// Complete moves a running job to completed with the run's aggregates.
func (j *HuntJob) Complete(now time.Time, totalEndpoints, matchesFound int) error {
	if err := j.transition(HuntStatusCompleted); err != nil {
		return err
	}
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.TotalEndpoints = totalEndpoints
	j.MatchesFound = matchesFound
	return nil
}

// Fail moves a running job to failed. Aggregates reflect whatever was persisted.
func (j *HuntJob) Fail(now time.Time, totalEndpoints, matchesFound int, cause error) error {
	if err := j.transition(HuntStatusFailed); err != nil {
		return err
	}
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.TotalEndpoints = totalEndpoints
	j.MatchesFound = matchesFound
	if cause != nil {
		j.Error = cause.Error()
	}
	return nil
}
