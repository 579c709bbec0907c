package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"iochunt/core"

	"go.uber.org/zap"
)

// SQLiteHuntJobStorage implements core.HuntJobStorage using SQLite
type SQLiteHuntJobStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteHuntJobStorage creates a new hunt job storage instance
func NewSQLiteHuntJobStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteHuntJobStorage {
	return &SQLiteHuntJobStorage{sqlite: sqlite, logger: logger}
}

const huntJobColumns = `id, org_id, name, description, status, hunt_kind, indicator_ids,
	started_at, completed_at, total_endpoints, matches_found, error, created_by, created_at, updated_at`

func (s *SQLiteHuntJobStorage) scanHuntJob(row rowScanner) (*core.HuntJob, error) {
	var job core.HuntJob
	var idsJSON string
	var startedAt, completedAt sql.NullTime
	var errStr sql.NullString

	err := row.Scan(
		&job.ID, &job.OrgID, &job.Name, &job.Description, &job.Status, &job.HuntKind, &idsJSON,
		&startedAt, &completedAt, &job.TotalEndpoints, &job.MatchesFound, &errStr,
		&job.CreatedBy, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := safeUnmarshalJSON(idsJSON, &job.IndicatorIDs); err != nil {
		s.logger.Warnw("Failed to parse hunt indicator ids", "hunt_id", job.ID, "error", err)
	}
	if job.IndicatorIDs == nil {
		job.IndicatorIDs = []string{}
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	if errStr.Valid {
		job.Error = errStr.String
	}
	return &job, nil
}

// CreateHuntJob inserts a new hunt job
func (s *SQLiteHuntJobStorage) CreateHuntJob(ctx context.Context, job *core.HuntJob) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if !job.Status.IsValid() {
		return core.NewValidationError("status", "invalid hunt status: "+string(job.Status))
	}

	idsJSON, err := json.Marshal(job.IndicatorIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal indicator ids: %w", err)
	}

	_, err = s.sqlite.WriteDB.ExecContext(ctx, `
		INSERT INTO hunt_jobs (`+huntJobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.OrgID, job.Name, job.Description, job.Status, job.HuntKind, string(idsJSON),
		job.StartedAt, job.CompletedAt, job.TotalEndpoints, job.MatchesFound, nullString(job.Error),
		job.CreatedBy, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create hunt job: %w", err)
	}
	return nil
}

// GetHuntJob retrieves a hunt job by ID
func (s *SQLiteHuntJobStorage) GetHuntJob(ctx context.Context, orgID, id string) (*core.HuntJob, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := s.sqlite.ReadDB.QueryRowContext(ctx,
		`SELECT `+huntJobColumns+` FROM hunt_jobs WHERE org_id = ? AND id = ?`, orgID, id)
	job, err := s.scanHuntJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("hunt job", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hunt job: %w", err)
	}
	return job, nil
}

// UpdateHuntStatus writes the job's lifecycle fields if the stored status is still from.
// A lost race surfaces as ConflictError.
func (s *SQLiteHuntJobStorage) UpdateHuntStatus(ctx context.Context, job *core.HuntJob, from core.HuntStatus) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := s.sqlite.WriteDB.ExecContext(ctx, `
		UPDATE hunt_jobs SET status = ?, started_at = ?, completed_at = ?, total_endpoints = ?,
			matches_found = ?, error = ?, updated_at = ?
		WHERE org_id = ? AND id = ? AND status = ?`,
		job.Status, job.StartedAt, job.CompletedAt, job.TotalEndpoints,
		job.MatchesFound, nullString(job.Error), job.UpdatedAt,
		job.OrgID, job.ID, from,
	)
	if err != nil {
		return fmt.Errorf("failed to update hunt status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}

	current, err := s.GetHuntJob(ctx, job.OrgID, job.ID)
	if err != nil {
		return err
	}
	return core.NewConflictError("hunt job", job.ID,
		fmt.Sprintf("expected status %s, found %s", from, current.Status))
}

// DeleteHuntJob removes a job that is not running, together with its matches
func (s *SQLiteHuntJobStorage) DeleteHuntJob(ctx context.Context, orgID, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.sqlite.WithTransaction(ctx, func(tx *sql.Tx) error {
		var status core.HuntStatus
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM hunt_jobs WHERE org_id = ? AND id = ?`, orgID, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return core.NewNotFoundError("hunt job", id)
		}
		if err != nil {
			return fmt.Errorf("failed to load hunt job: %w", err)
		}
		if status == core.HuntStatusRunning {
			return core.NewConflictError("hunt job", id, "cannot delete a running hunt")
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM matches WHERE org_id = ? AND hunt_job_id = ?`, orgID, id); err != nil {
			return fmt.Errorf("failed to delete hunt matches: %w", err)
		}
		// The status guard covers a job that started between the read and the delete
		result, err := tx.ExecContext(ctx,
			`DELETE FROM hunt_jobs WHERE org_id = ? AND id = ? AND status != ?`, orgID, id, core.HuntStatusRunning)
		if err != nil {
			return fmt.Errorf("failed to delete hunt job: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return core.NewConflictError("hunt job", id, "cannot delete a running hunt")
		}
		return nil
	})
}

// ListHuntJobs returns a page of hunt jobs, newest first, and the total count
func (s *SQLiteHuntJobStorage) ListHuntJobs(ctx context.Context, orgID string, limit, offset int) ([]*core.HuntJob, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.sqlite.ReadDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM hunt_jobs WHERE org_id = ?`, orgID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count hunt jobs: %w", err)
	}

	rows, err := s.sqlite.ReadDB.QueryContext(ctx, `
		SELECT `+huntJobColumns+` FROM hunt_jobs WHERE org_id = ?
		ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, orgID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list hunt jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*core.HuntJob, 0)
	for rows.Next() {
		job, err := s.scanHuntJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan hunt job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate hunt jobs: %w", err)
	}
	return jobs, total, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
