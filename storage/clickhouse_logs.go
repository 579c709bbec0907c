package storage

import (
	"context"
	"fmt"
	"time"

	"iochunt/core"

	"go.uber.org/zap"
)

// ClickHouseLogStorage serves endpoint log searches from ClickHouse
type ClickHouseLogStorage struct {
	clickhouse *ClickHouse
	logger     *zap.SugaredLogger
}

// NewClickHouseLogStorage creates the ClickHouse log backend
func NewClickHouseLogStorage(ch *ClickHouse, logger *zap.SugaredLogger) *ClickHouseLogStorage {
	return &ClickHouseLogStorage{clickhouse: ch, logger: logger}
}

// AppendLog stores one log record
func (s *ClickHouseLogStorage) AppendLog(ctx context.Context, rec *LogRecord) error {
	return s.AppendLogs(ctx, []*LogRecord{rec})
}

// AppendLogs stores records in a single batch insert
func (s *ClickHouseLogStorage) AppendLogs(ctx context.Context, recs []*LogRecord) error {
	if len(recs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	batch, err := s.clickhouse.Conn.PrepareBatch(ctx,
		`INSERT INTO endpoint_logs (org_id, endpoint_id, log_source, message, event_time)`)
	if err != nil {
		return fmt.Errorf("failed to prepare log batch: %w", err)
	}

	for _, rec := range recs {
		if err := rec.validate(); err != nil {
			_ = batch.Abort()
			return err
		}
		if err := batch.Append(rec.OrgID, rec.EndpointID, rec.LogSource, rec.Message, rec.EventTime.UTC()); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append log to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send log batch: %w", err)
	}
	return nil
}

// FindByMessageSubstring returns log records whose message contains needle, ignoring case
func (s *ClickHouseLogStorage) FindByMessageSubstring(ctx context.Context, orgID, needle string, limit int) ([]core.RawHit, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	rows, err := s.clickhouse.Conn.Query(ctx, `
		SELECT endpoint_id, log_source, message, event_time FROM endpoint_logs
		WHERE org_id = ? AND positionCaseInsensitiveUTF8(message, ?) > 0
		ORDER BY event_time DESC LIMIT ?`, orgID, needle, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query endpoint logs: %w", err)
	}
	defer rows.Close()

	hits := make([]core.RawHit, 0)
	for rows.Next() {
		var rec LogRecord
		if err := rows.Scan(&rec.EndpointID, &rec.LogSource, &rec.Message, &rec.EventTime); err != nil {
			return nil, fmt.Errorf("failed to scan log row: %w", err)
		}
		hits = append(hits, rec.hit())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate endpoint logs: %w", err)
	}
	return hits, nil
}
