package threat

import (
	"context"
	"strconv"
	"strings"
	"time"

	"iochunt/core"
	"iochunt/metrics"

	"go.uber.org/zap"
)

// MatchReviewer records analyst review of persisted matches
type MatchReviewer struct {
	matches core.MatchStorage
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// NewMatchReviewer creates a match reviewer
func NewMatchReviewer(matches core.MatchStorage, logger *zap.SugaredLogger) *MatchReviewer {
	return &MatchReviewer{
		matches: matches,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetReviewed marks a match reviewed by actor, or clears the review.
// Hunt aggregates are not touched.
func (r *MatchReviewer) SetReviewed(ctx context.Context, orgID, matchID string, reviewed bool, actor string) (*core.Match, error) {
	actor = strings.TrimSpace(actor)
	if reviewed && actor == "" {
		return nil, core.NewValidationError("actor", "required when marking a match reviewed")
	}

	m, err := r.matches.SetMatchReviewed(ctx, orgID, matchID, reviewed, actor, r.now())
	if err != nil {
		return nil, err
	}

	metrics.MatchReviews.WithLabelValues(strconv.FormatBool(reviewed)).Inc()
	r.logger.Infow("Match review updated", "org_id", orgID, "match_id", matchID, "reviewed", reviewed, "actor", actor)
	return m, nil
}
