package storage

import (
	"context"
	"fmt"
	"time"

	"iochunt/core"

	"go.uber.org/zap"
)

// SQLiteEndpointStorage implements core.EndpointDirectory using SQLite
type SQLiteEndpointStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteEndpointStorage creates a new endpoint storage instance
func NewSQLiteEndpointStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteEndpointStorage {
	return &SQLiteEndpointStorage{sqlite: sqlite, logger: logger}
}

// UpsertEndpoint inserts or refreshes an endpoint
func (s *SQLiteEndpointStorage) UpsertEndpoint(ctx context.Context, ep *core.Endpoint) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if ep.ID == "" {
		return core.NewValidationError("id", "required")
	}
	if ep.LastSeen.IsZero() {
		ep.LastSeen = time.Now().UTC()
	}

	_, err := s.sqlite.WriteDB.ExecContext(ctx, `
		INSERT INTO endpoints (id, org_id, hostname, online, last_seen) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(org_id, id) DO UPDATE SET
			hostname = excluded.hostname, online = excluded.online, last_seen = excluded.last_seen`,
		ep.ID, ep.OrgID, ep.Hostname, ep.Online, ep.LastSeen,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert endpoint: %w", err)
	}
	return nil
}

// GetEndpoints returns the known endpoints keyed by id
func (s *SQLiteEndpointStorage) GetEndpoints(ctx context.Context, orgID string, ids []string) (map[string]*core.Endpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result := make(map[string]*core.Endpoint, len(ids))
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

		rows, err := s.sqlite.ReadDB.QueryContext(ctx, `
			SELECT id, org_id, hostname, online, last_seen FROM endpoints
			WHERE org_id = ? AND id IN (`+placeholders(len(chunk))+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query endpoints: %w", err)
		}

		for rows.Next() {
			var ep core.Endpoint
			if err := rows.Scan(&ep.ID, &ep.OrgID, &ep.Hostname, &ep.Online, &ep.LastSeen); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan endpoint: %w", err)
			}
			result[ep.ID] = &ep
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate endpoints: %w", err)
		}
	}
	return result, nil
}
