package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"iochunt/core"

	"go.uber.org/zap"
)

// SQLiteMatchStorage implements core.MatchStorage using SQLite
type SQLiteMatchStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteMatchStorage creates a new match storage instance
func NewSQLiteMatchStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteMatchStorage {
	return &SQLiteMatchStorage{sqlite: sqlite, logger: logger}
}

const matchColumns = `id, org_id, hunt_job_id, indicator_id, endpoint_id, source, matched_value,
	context, reviewed, reviewed_by, reviewed_at, created_at`

func (s *SQLiteMatchStorage) scanMatch(row rowScanner) (*core.Match, error) {
	var m core.Match
	var huntJobID, indicatorID, reviewedBy sql.NullString
	var reviewedAt sql.NullTime
	var contextJSON string

	err := row.Scan(
		&m.ID, &m.OrgID, &huntJobID, &indicatorID, &m.EndpointID, &m.Source, &m.MatchedValue,
		&contextJSON, &m.Reviewed, &reviewedBy, &reviewedAt, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.HuntJobID = huntJobID.String
	m.IndicatorID = indicatorID.String
	m.ReviewedBy = reviewedBy.String
	if reviewedAt.Valid {
		m.ReviewedAt = &reviewedAt.Time
	}
	if err := safeUnmarshalJSON(contextJSON, &m.Context); err != nil {
		s.logger.Warnw("Failed to parse match context", "match_id", m.ID, "error", err)
	}
	return &m, nil
}

// InsertMatches stores matches in slice order within one transaction
func (s *SQLiteMatchStorage) InsertMatches(ctx context.Context, matches []*core.Match) (int, error) {
	if len(matches) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	inserted := 0
	err := s.sqlite.WithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO matches (`+matchColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare match insert: %w", err)
		}
		defer stmt.Close()

		for _, m := range matches {
			if !m.Source.IsValid() {
				return core.NewValidationError("source", "invalid match source: "+string(m.Source))
			}

			contextJSON := "{}"
			if len(m.Context) > 0 {
				data, err := json.Marshal(m.Context)
				if err != nil {
					return fmt.Errorf("failed to marshal match context: %w", err)
				}
				contextJSON = string(data)
			}

			if _, err := stmt.ExecContext(ctx,
				m.ID, m.OrgID, nullString(m.HuntJobID), nullString(m.IndicatorID), m.EndpointID, m.Source,
				m.MatchedValue, contextJSON, m.Reviewed, nullString(m.ReviewedBy), m.ReviewedAt, m.CreatedAt,
			); err != nil {
				return fmt.Errorf("failed to insert match: %w", err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// GetMatch retrieves a match by ID
func (s *SQLiteMatchStorage) GetMatch(ctx context.Context, orgID, id string) (*core.Match, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := s.sqlite.ReadDB.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE org_id = ? AND id = ?`, orgID, id)
	m, err := s.scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("match", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

// ListMatchesByJob returns a page of a job's matches in insertion order and the filtered total
func (s *SQLiteMatchStorage) ListMatchesByJob(ctx context.Context, orgID, jobID string, filters *core.MatchFilters) ([]*core.Match, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if filters == nil {
		filters = &core.MatchFilters{}
	}

	conditions := []string{"org_id = ?", "hunt_job_id = ?"}
	args := []interface{}{orgID, jobID}
	if filters.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filters.Source)
	}
	if filters.IndicatorID != "" {
		conditions = append(conditions, "indicator_id = ?")
		args = append(args, filters.IndicatorID)
	}
	if filters.EndpointID != "" {
		conditions = append(conditions, "endpoint_id = ?")
		args = append(args, filters.EndpointID)
	}
	if filters.ReviewedOnly != nil {
		conditions = append(conditions, "reviewed = ?")
		args = append(args, *filters.ReviewedOnly)
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int64
	if err := s.sqlite.ReadDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count matches: %w", err)
	}

	limit := filters.Limit
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + matchColumns + ` FROM matches` + where + ` ORDER BY seq LIMIT ? OFFSET ?`
	rows, err := s.sqlite.ReadDB.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*core.Match, 0)
	for rows.Next() {
		m, err := s.scanMatch(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate matches: %w", err)
	}
	return matches, total, nil
}

// CountMatchesByJob returns the number of matches stored for a job
func (s *SQLiteMatchStorage) CountMatchesByJob(ctx context.Context, orgID, jobID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var count int64
	err := s.sqlite.ReadDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM matches WHERE org_id = ? AND hunt_job_id = ?`, orgID, jobID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", err)
	}
	return count, nil
}

// SetMatchReviewed toggles the review flag and returns the updated match
func (s *SQLiteMatchStorage) SetMatchReviewed(ctx context.Context, orgID, id string, reviewed bool, actor string, at time.Time) (*core.Match, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var updated *core.Match
	err := s.sqlite.WithTransaction(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+matchColumns+` FROM matches WHERE org_id = ? AND id = ?`, orgID, id)
		m, err := s.scanMatch(row)
		if errors.Is(err, sql.ErrNoRows) {
			return core.NewNotFoundError("match", id)
		}
		if err != nil {
			return fmt.Errorf("failed to load match: %w", err)
		}

		if err := m.SetReviewed(reviewed, actor, at); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE matches SET reviewed = ?, reviewed_by = ?, reviewed_at = ? WHERE org_id = ? AND id = ?`,
			m.Reviewed, nullString(m.ReviewedBy), m.ReviewedAt, orgID, id,
		); err != nil {
			return fmt.Errorf("failed to update match review: %w", err)
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
