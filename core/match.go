package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MatchSourceKind names the data source a match came from
type MatchSourceKind string

const (
	MatchSourceInventory MatchSourceKind = "inventory"
	MatchSourceLog       MatchSourceKind = "log"
)

// IsValid checks if the match source kind is valid
func (s MatchSourceKind) IsValid() bool {
	return s == MatchSourceInventory || s == MatchSourceLog
}

// RawHit is one record a match source found for an indicator
type RawHit struct {
	EndpointID   string                 `json:"endpoint_id"`
	MatchedValue string                 `json:"matched_value"`
	Context      map[string]interface{} `json:"context,omitempty"`
}

// Match is a persisted hit of an indicator on an endpoint
type Match struct {
	ID           string                 `json:"id"`
	OrgID        string                 `json:"org_id"`
	HuntJobID    string                 `json:"hunt_job_id,omitempty"`
	IndicatorID  string                 `json:"indicator_id,omitempty"`
	EndpointID   string                 `json:"endpoint_id"`
	Source       MatchSourceKind        `json:"source"`
	MatchedValue string                 `json:"matched_value"`
	Context      map[string]interface{} `json:"context,omitempty"`
	Reviewed     bool                   `json:"reviewed"`
	ReviewedBy   string                 `json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time             `json:"reviewed_at,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// NewMatch builds a match for a hit produced by a hunt job.
func NewMatch(orgID, huntJobID, indicatorID string, source MatchSourceKind, hit RawHit) *Match {
	return &Match{
		ID:           uuid.New().String(),
		OrgID:        orgID,
		HuntJobID:    huntJobID,
		IndicatorID:  indicatorID,
		EndpointID:   hit.EndpointID,
		Source:       source,
		MatchedValue: hit.MatchedValue,
		Context:      hit.Context,
		CreatedAt:    time.Now().UTC(),
	}
}

// SetReviewed marks the match reviewed by actor at now, or clears the review.
// reviewed_by and reviewed_at are either both set or both empty.
func (m *Match) SetReviewed(reviewed bool, actor string, now time.Time) error {
	if !reviewed {
		m.Reviewed = false
		m.ReviewedBy = ""
		m.ReviewedAt = nil
		return nil
	}

	actor = strings.TrimSpace(actor)
	if actor == "" {
		return NewValidationError("actor", "required when marking a match reviewed")
	}
	m.Reviewed = true
	m.ReviewedBy = actor
	m.ReviewedAt = &now
	return nil
}

// MatchFilters narrows ListMatchesByJob
type MatchFilters struct {
	Source       MatchSourceKind `json:"source,omitempty"`
	IndicatorID  string          `json:"indicator_id,omitempty"`
	EndpointID   string          `json:"endpoint_id,omitempty"`
	ReviewedOnly *bool           `json:"reviewed,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}
