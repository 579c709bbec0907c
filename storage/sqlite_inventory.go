package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"iochunt/core"

	"go.uber.org/zap"
)

// InventoryRecord is one file observed on an endpoint
type InventoryRecord struct {
	OrgID      string    `json:"org_id" yaml:"org_id"`
	EndpointID string    `json:"endpoint_id" yaml:"endpoint_id"`
	FilePath   string    `json:"file_path" yaml:"file_path"`
	FileName   string    `json:"file_name" yaml:"file_name"`
	MD5        string    `json:"md5,omitempty" yaml:"md5,omitempty"`
	SHA1       string    `json:"sha1,omitempty" yaml:"sha1,omitempty"`
	SHA256     string    `json:"sha256,omitempty" yaml:"sha256,omitempty"`
	FirstSeen  time.Time `json:"first_seen" yaml:"first_seen"`
}

// SQLiteInventoryStorage is the SQLite-backed file inventory searched by hunts
type SQLiteInventoryStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteInventoryStorage creates a new inventory storage instance
func NewSQLiteInventoryStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteInventoryStorage {
	return &SQLiteInventoryStorage{sqlite: sqlite, logger: logger}
}

// RecordFile adds a file observation. Hashes are stored lowercase and must be
// hex of the algorithm's length when present.
func (s *SQLiteInventoryStorage) RecordFile(ctx context.Context, rec *InventoryRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if rec.EndpointID == "" {
		return core.NewValidationError("endpoint_id", "required")
	}
	for _, h := range []struct {
		field string
		algo  core.HashAlgorithm
		value *string
	}{
		{"md5", core.HashAlgorithmMD5, &rec.MD5},
		{"sha1", core.HashAlgorithmSHA1, &rec.SHA1},
		{"sha256", core.HashAlgorithmSHA256, &rec.SHA256},
	} {
		*h.value = strings.ToLower(strings.TrimSpace(*h.value))
		if *h.value != "" && !core.IsHash(*h.value, h.algo) {
			return core.NewValidationError(h.field, "must be a hex "+string(h.algo)+" digest")
		}
	}
	if rec.FilePath == "" && rec.FileName == "" {
		return core.NewValidationError("file_path", "file path or file name required")
	}
	if rec.FileName == "" {
		rec.FileName = baseName(rec.FilePath)
	}
	if rec.FirstSeen.IsZero() {
		rec.FirstSeen = time.Now().UTC()
	}

	_, err := s.sqlite.WriteDB.ExecContext(ctx, `
		INSERT INTO file_inventory (org_id, endpoint_id, file_path, file_name, file_path_folded, file_name_folded, md5, sha1, sha256, first_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.OrgID, rec.EndpointID, rec.FilePath, rec.FileName, strings.ToLower(rec.FilePath), strings.ToLower(rec.FileName),
		rec.MD5, rec.SHA1, rec.SHA256, rec.FirstSeen,
	)
	if err != nil {
		return fmt.Errorf("failed to record file: %w", err)
	}
	return nil
}

// FindByHash returns files whose md5, sha1 or sha256 equals hash, ignoring case
func (s *SQLiteInventoryStorage) FindByHash(ctx context.Context, orgID, hash string, limit int) ([]core.RawHit, error) {
	needle := strings.ToLower(strings.TrimSpace(hash))
	return s.query(ctx, `org_id = ? AND (md5 = ? OR sha1 = ? OR sha256 = ?)`,
		[]interface{}{orgID, needle, needle, needle}, limit,
		func(rec *InventoryRecord) string { return needle })
}

// FindByPathSubstring returns files whose full path contains needle, ignoring case.
// Folding happens in Go since SQLite's lower() only covers ASCII.
func (s *SQLiteInventoryStorage) FindByPathSubstring(ctx context.Context, orgID, needle string, limit int) ([]core.RawHit, error) {
	return s.query(ctx, `org_id = ? AND instr(file_path_folded, ?) > 0`,
		[]interface{}{orgID, strings.ToLower(needle)}, limit,
		func(rec *InventoryRecord) string { return rec.FilePath })
}

// FindByNameSubstring returns files whose name contains needle, ignoring case
func (s *SQLiteInventoryStorage) FindByNameSubstring(ctx context.Context, orgID, needle string, limit int) ([]core.RawHit, error) {
	return s.query(ctx, `org_id = ? AND instr(file_name_folded, ?) > 0`,
		[]interface{}{orgID, strings.ToLower(needle)}, limit,
		func(rec *InventoryRecord) string { return rec.FileName })
}

func (s *SQLiteInventoryStorage) query(ctx context.Context, where string, args []interface{}, limit int, matched func(*InventoryRecord) string) ([]core.RawHit, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	rows, err := s.sqlite.ReadDB.QueryContext(ctx, `
		SELECT endpoint_id, file_path, file_name, md5, sha1, sha256, first_seen
		FROM file_inventory WHERE `+where+` ORDER BY id LIMIT ?`, append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query file inventory: %w", err)
	}
	defer rows.Close()

	hits := make([]core.RawHit, 0)
	for rows.Next() {
		var rec InventoryRecord
		if err := rows.Scan(&rec.EndpointID, &rec.FilePath, &rec.FileName,
			&rec.MD5, &rec.SHA1, &rec.SHA256, &rec.FirstSeen); err != nil {
			return nil, fmt.Errorf("failed to scan inventory row: %w", err)
		}
		hits = append(hits, core.RawHit{
			EndpointID:   rec.EndpointID,
			MatchedValue: matched(&rec),
			Context:      inventoryContext(&rec),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate file inventory: %w", err)
	}
	return hits, nil
}

// inventoryContext leaves out hash columns that are not well-formed digests
func inventoryContext(rec *InventoryRecord) map[string]interface{} {
	ctx := map[string]interface{}{
		"file_path":  rec.FilePath,
		"file_name":  rec.FileName,
		"first_seen": rec.FirstSeen.UTC().Format(time.RFC3339),
	}
	for key, h := range map[core.HashAlgorithm]string{
		core.HashAlgorithmMD5:    rec.MD5,
		core.HashAlgorithmSHA1:   rec.SHA1,
		core.HashAlgorithmSHA256: rec.SHA256,
	} {
		if h = strings.ToLower(h); core.IsHash(h, key) {
			ctx[string(key)] = h
		}
	}
	return ctx
}

// baseName handles both separators since inventory paths come from Windows and Unix hosts
func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
