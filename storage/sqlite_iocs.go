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

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// SQLite Indicator Storage
// =============================================================================

// SQLiteIndicatorStorage implements core.IndicatorStorage using SQLite
type SQLiteIndicatorStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteIndicatorStorage creates a new indicator storage instance
func NewSQLiteIndicatorStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteIndicatorStorage {
	return &SQLiteIndicatorStorage{sqlite: sqlite, logger: logger}
}

// maxJSONFieldSize bounds JSON columns read back from the database
const maxJSONFieldSize = 1024 * 1024

// safeUnmarshalJSON unmarshals a JSON column with a size limit
func safeUnmarshalJSON(data string, v interface{}) error {
	if len(data) > maxJSONFieldSize {
		return fmt.Errorf("JSON field exceeds maximum size (%d > %d bytes)", len(data), maxJSONFieldSize)
	}
	if data == "" || data == "null" {
		return nil
	}
	return json.Unmarshal([]byte(data), v)
}

const indicatorColumns = `id, org_id, kind, value, hash_algorithm, severity, source, description,
	is_active, created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIndicator(row rowScanner) (*core.Indicator, error) {
	var ind core.Indicator
	err := row.Scan(
		&ind.ID, &ind.OrgID, &ind.Kind, &ind.Value, &ind.HashAlgorithm, &ind.Severity, &ind.Source,
		&ind.Description, &ind.IsActive, &ind.CreatedBy, &ind.CreatedAt, &ind.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ind, nil
}

// CreateIndicator inserts a new indicator
func (s *SQLiteIndicatorStorage) CreateIndicator(ctx context.Context, ind *core.Indicator) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := ind.Validate(); err != nil {
		return err
	}

	_, err := s.sqlite.WriteDB.ExecContext(ctx, `
		INSERT INTO indicators (`+indicatorColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ind.ID, ind.OrgID, ind.Kind, ind.Value, ind.HashAlgorithm, ind.Severity, ind.Source,
		ind.Description, ind.IsActive, ind.CreatedBy, ind.CreatedAt, ind.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return core.NewConflictError("indicator", ind.Value, ErrDuplicateIndicator.Error())
	}
	if err != nil {
		return fmt.Errorf("failed to create indicator: %w", err)
	}
	return nil
}

// GetIndicator retrieves an indicator by ID
func (s *SQLiteIndicatorStorage) GetIndicator(ctx context.Context, orgID, id string) (*core.Indicator, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := s.sqlite.ReadDB.QueryRowContext(ctx,
		`SELECT `+indicatorColumns+` FROM indicators WHERE org_id = ? AND id = ?`, orgID, id)
	ind, err := scanIndicator(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("indicator", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get indicator: %w", err)
	}
	return ind, nil
}

// GetIndicators loads the indicators that still exist, preserving the order of ids
func (s *SQLiteIndicatorStorage) GetIndicators(ctx context.Context, orgID string, ids []string) ([]*core.Indicator, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if len(ids) == 0 {
		return []*core.Indicator{}, nil
	}

	found := make(map[string]*core.Indicator, len(ids))
	// SQLite caps bound parameters; chunk the IN list
	const chunkSize = 500
	for start := 0; start < len(ids); start += chunkSize {
		end := start + chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		args := make([]interface{}, 0, len(chunk)+1)
		args = append(args, orgID)
		for _, id := range chunk {
			args = append(args, id)
		}

		query := `SELECT ` + indicatorColumns + ` FROM indicators
			WHERE org_id = ? AND id IN (` + placeholders(len(chunk)) + `)`
		rows, err := s.sqlite.ReadDB.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to get indicators: %w", err)
		}
		for rows.Next() {
			ind, err := scanIndicator(rows)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan indicator: %w", err)
			}
			found[ind.ID] = ind
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate indicators: %w", err)
		}
	}

	result := make([]*core.Indicator, 0, len(found))
	seen := make(map[string]bool, len(found))
	for _, id := range ids {
		if ind, ok := found[id]; ok && !seen[id] {
			result = append(result, ind)
			seen[id] = true
		}
	}
	return result, nil
}

// UpdateIndicator updates an existing indicator
func (s *SQLiteIndicatorStorage) UpdateIndicator(ctx context.Context, ind *core.Indicator) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := ind.Validate(); err != nil {
		return err
	}
	ind.UpdatedAt = time.Now().UTC()

	result, err := s.sqlite.WriteDB.ExecContext(ctx, `
		UPDATE indicators SET kind = ?, value = ?, hash_algorithm = ?, severity = ?, source = ?,
			description = ?, is_active = ?, updated_at = ?
		WHERE org_id = ? AND id = ?`,
		ind.Kind, ind.Value, ind.HashAlgorithm, ind.Severity, ind.Source,
		ind.Description, ind.IsActive, ind.UpdatedAt, ind.OrgID, ind.ID,
	)
	if isUniqueViolation(err) {
		return core.NewConflictError("indicator", ind.ID, ErrDuplicateIndicator.Error())
	}
	if err != nil {
		return fmt.Errorf("failed to update indicator: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return core.NewNotFoundError("indicator", ind.ID)
	}
	return nil
}

// DeleteIndicator removes an indicator. Its historical matches are kept.
func (s *SQLiteIndicatorStorage) DeleteIndicator(ctx context.Context, orgID, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := s.sqlite.WriteDB.ExecContext(ctx,
		`DELETE FROM indicators WHERE org_id = ? AND id = ?`, orgID, id)
	if err != nil {
		return fmt.Errorf("failed to delete indicator: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return core.NewNotFoundError("indicator", id)
	}
	return nil
}

// ListIndicators returns a page of indicators and the total matching the filters
func (s *SQLiteIndicatorStorage) ListIndicators(ctx context.Context, orgID string, filters *core.IndicatorFilters) ([]*core.Indicator, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if filters == nil {
		filters = &core.IndicatorFilters{}
	}

	conditions := []string{"org_id = ?"}
	args := []interface{}{orgID}

	if filters.ActiveOnly {
		conditions = append(conditions, "is_active = 1")
	}
	if filters.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, filters.Kind)
	}
	if filters.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, filters.Severity)
	}
	if filters.Search != "" {
		conditions = append(conditions, "(instr(lower(value), lower(?)) > 0 OR instr(lower(description), lower(?)) > 0)")
		args = append(args, filters.Search, filters.Search)
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int64
	if err := s.sqlite.ReadDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM indicators`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count indicators: %w", err)
	}

	limit := filters.Limit
	if limit <= 0 || limit > 10000 {
		limit = 10000
	}
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + indicatorColumns + ` FROM indicators` + where + ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	rows, err := s.sqlite.ReadDB.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list indicators: %w", err)
	}
	defer rows.Close()

	indicators := make([]*core.Indicator, 0)
	for rows.Next() {
		ind, err := scanIndicator(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan indicator: %w", err)
		}
		indicators = append(indicators, ind)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate indicators: %w", err)
	}

	return indicators, total, nil
}

// BulkCreateIndicators imports indicators in one transaction. Entries without a
// kind are classified; invalid entries and duplicates are skipped.
func (s *SQLiteIndicatorStorage) BulkCreateIndicators(ctx context.Context, orgID string, inds []*core.Indicator) (created int, skipped int, err error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	if len(inds) == 0 {
		return 0, 0, nil
	}

	err = s.sqlite.WithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO indicators (`+indicatorColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for i, ind := range inds {
			ind.OrgID = orgID
			ind.Value = strings.TrimSpace(ind.Value)
			if ind.ID == "" {
				ind.ID = uuid.New().String()
			}
			if ind.Kind == "" {
				ind.SetKind("")
			}
			if ind.Severity == "" {
				ind.Severity = core.SeverityMedium
			}
			if ind.CreatedAt.IsZero() {
				ind.CreatedAt = now
				ind.UpdatedAt = now
			}

			if err := ind.Validate(); err != nil {
				s.logger.Debugw("Skipping invalid indicator in bulk import", "index", i, "error", err)
				skipped++
				continue
			}

			_, execErr := stmt.ExecContext(ctx,
				ind.ID, ind.OrgID, ind.Kind, ind.Value, ind.HashAlgorithm, ind.Severity, ind.Source,
				ind.Description, ind.IsActive, ind.CreatedBy, ind.CreatedAt, ind.UpdatedAt,
			)
			if isUniqueViolation(execErr) {
				skipped++
				continue
			}
			if execErr != nil {
				return fmt.Errorf("bulk insert failed at item %d: %w", i, execErr)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	s.logger.Infow("Bulk indicator import completed", "org_id", orgID, "created", created, "skipped", skipped)
	return created, skipped, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
