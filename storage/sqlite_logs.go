package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"iochunt/core"

	"go.uber.org/zap"
)

// LogRecord is one free-text event reported by an endpoint
type LogRecord struct {
	OrgID      string    `json:"org_id" yaml:"org_id" bson:"org_id" ch:"org_id"`
	EndpointID string    `json:"endpoint_id" yaml:"endpoint_id" bson:"endpoint_id" ch:"endpoint_id"`
	LogSource  string    `json:"log_source" yaml:"log_source" bson:"log_source" ch:"log_source"`
	Message    string    `json:"message" yaml:"message" bson:"message" ch:"message"`
	EventTime  time.Time `json:"event_time" yaml:"event_time" bson:"event_time" ch:"event_time"`
}

func (r *LogRecord) validate() error {
	if r.EndpointID == "" {
		return core.NewValidationError("endpoint_id", "required")
	}
	if r.Message == "" {
		return core.NewValidationError("message", "required")
	}
	if r.EventTime.IsZero() {
		r.EventTime = time.Now().UTC()
	}
	return nil
}

func (r *LogRecord) hit() core.RawHit {
	return core.RawHit{
		EndpointID:   r.EndpointID,
		MatchedValue: r.Message,
		Context: map[string]interface{}{
			"message":    r.Message,
			"event_time": r.EventTime.UTC().Format(time.RFC3339),
			"log_source": r.LogSource,
		},
	}
}

// SQLiteLogStorage is the SQLite-backed endpoint log store
type SQLiteLogStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteLogStorage creates a new log storage instance
func NewSQLiteLogStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteLogStorage {
	return &SQLiteLogStorage{sqlite: sqlite, logger: logger}
}

// AppendLog stores one log record
func (s *SQLiteLogStorage) AppendLog(ctx context.Context, rec *LogRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rec.validate(); err != nil {
		return err
	}

	_, err := s.sqlite.WriteDB.ExecContext(ctx, `
		INSERT INTO endpoint_logs (org_id, endpoint_id, log_source, message, message_folded, event_time)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.OrgID, rec.EndpointID, rec.LogSource, rec.Message, strings.ToLower(rec.Message), rec.EventTime,
	)
	if err != nil {
		return fmt.Errorf("failed to append log: %w", err)
	}
	return nil
}

// FindByMessageSubstring returns log records whose message contains needle,
// ignoring case. Matching runs on the message folded in Go at write time.
func (s *SQLiteLogStorage) FindByMessageSubstring(ctx context.Context, orgID, needle string, limit int) ([]core.RawHit, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	rows, err := s.sqlite.ReadDB.QueryContext(ctx, `
		SELECT endpoint_id, log_source, message, event_time FROM endpoint_logs
		WHERE org_id = ? AND instr(message_folded, ?) > 0
		ORDER BY event_time DESC, id DESC LIMIT ?`, orgID, strings.ToLower(needle), limit)
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
