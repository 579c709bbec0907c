package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"iochunt/metrics"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLite holds the SQLite connections for indicators, hunt jobs, matches,
// endpoints and the SQLite-backed inventory and log sources.
// Writes go through a single-connection pool; reads use a separate
// query_only pool so WAL readers never block on the writer.
type SQLite struct {
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Path    string
	Logger  *zap.SugaredLogger

	prevWriteWaitCount int64
	prevReadWaitCount  int64
}

// configureSQLiteConnection sets WAL, foreign keys and busy timeout on a pool
func configureSQLiteConnection(db *sql.DB, logger *zap.SugaredLogger, dbPath string, poolType string) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite disables foreign keys by default; match cascade relies on them
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	var fkEnabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		return fmt.Errorf("failed to verify foreign keys: %w", err)
	}
	if fkEnabled != 1 {
		return fmt.Errorf("foreign keys not enabled (got: %d, expected: 1)", fkEnabled)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	// In-memory databases report "memory" instead of "wal"
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to query journal mode: %w", err)
	}
	if dbPath != ":memory:" && journalMode != "wal" {
		return fmt.Errorf("WAL mode not enabled (got: %s, expected: wal)", journalMode)
	}
	logger.Debugw("SQLite pool configured", "pool", poolType, "journal_mode", journalMode)

	return nil
}

// NewSQLite opens the database, configures both pools and creates the schema
func NewSQLite(dbPath string, logger *zap.SugaredLogger) (*SQLite, error) {
	if err := validateDatabasePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	// Without shared cache each pool would open its own empty in-memory database
	actualPath := dbPath
	if dbPath == ":memory:" {
		actualPath = "file::memory:?cache=shared"
	}

	writeDB, err := sql.Open("sqlite", actualPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite write database: %w", err)
	}
	if err := configureSQLiteConnection(writeDB, logger, dbPath, "write"); err != nil {
		_ = writeDB.Close()
		return nil, fmt.Errorf("failed to configure write connection: %w", err)
	}
	writeDB.SetMaxOpenConns(1)
	writeDB.SetMaxIdleConns(1)
	writeDB.SetConnMaxLifetime(0) // in-memory databases vanish with their last connection
	writeDB.SetConnMaxIdleTime(10 * time.Minute)

	readDB, err := sql.Open("sqlite", actualPath)
	if err != nil {
		_ = writeDB.Close()
		return nil, fmt.Errorf("failed to open SQLite read database: %w", err)
	}
	if err := configureSQLiteConnection(readDB, logger, dbPath, "read"); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("failed to configure read connection: %w", err)
	}
	if _, err := readDB.Exec("PRAGMA query_only=ON"); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("failed to enable query_only mode on read pool: %w", err)
	}
	readDB.SetMaxOpenConns(10)
	readDB.SetMaxIdleConns(5)
	readDB.SetConnMaxLifetime(5 * time.Minute)
	readDB.SetConnMaxIdleTime(10 * time.Minute)

	sqlite := &SQLite{
		WriteDB: writeDB,
		ReadDB:  readDB,
		Path:    dbPath,
		Logger:  logger,
	}

	if err := sqlite.createTables(); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Infow("SQLite database initialized", "path", dbPath)
	return sqlite, nil
}

// WithTransaction executes fn within a write transaction, rolling back on error or panic
func (s *SQLite) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.WriteDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("failed to rollback transaction (original error: %w, rollback error: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// createTables creates all tables owned by the SQLite backend
func (s *SQLite) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS indicators (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		value TEXT NOT NULL,
		hash_algorithm TEXT NOT NULL DEFAULT '',
		severity TEXT NOT NULL DEFAULT 'medium',
		source TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_by TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE(org_id, kind, value)
	);
	CREATE INDEX IF NOT EXISTS idx_indicators_org_active ON indicators(org_id, is_active);
	CREATE INDEX IF NOT EXISTS idx_indicators_org_created ON indicators(org_id, created_at);

	CREATE TABLE IF NOT EXISTS hunt_jobs (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		hunt_kind TEXT NOT NULL DEFAULT 'ioc',
		indicator_ids TEXT NOT NULL DEFAULT '[]',
		started_at DATETIME,
		completed_at DATETIME,
		total_endpoints INTEGER NOT NULL DEFAULT 0,
		matches_found INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_by TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_hunt_jobs_org_created ON hunt_jobs(org_id, created_at);

	CREATE TABLE IF NOT EXISTS matches (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		org_id TEXT NOT NULL,
		hunt_job_id TEXT REFERENCES hunt_jobs(id) ON DELETE CASCADE,
		indicator_id TEXT,
		endpoint_id TEXT NOT NULL,
		source TEXT NOT NULL,
		matched_value TEXT NOT NULL,
		context TEXT NOT NULL DEFAULT '{}',
		reviewed INTEGER NOT NULL DEFAULT 0,
		reviewed_by TEXT,
		reviewed_at DATETIME,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_matches_job ON matches(org_id, hunt_job_id);
	CREATE INDEX IF NOT EXISTS idx_matches_indicator ON matches(indicator_id);

	CREATE TABLE IF NOT EXISTS endpoints (
		id TEXT NOT NULL,
		org_id TEXT NOT NULL,
		hostname TEXT NOT NULL DEFAULT '',
		online INTEGER NOT NULL DEFAULT 0,
		last_seen DATETIME NOT NULL,
		PRIMARY KEY (org_id, id)
	);

	CREATE TABLE IF NOT EXISTS file_inventory (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		org_id TEXT NOT NULL,
		endpoint_id TEXT NOT NULL,
		file_path TEXT NOT NULL,
		file_name TEXT NOT NULL,
		file_path_folded TEXT NOT NULL,
		file_name_folded TEXT NOT NULL,
		md5 TEXT NOT NULL DEFAULT '',
		sha1 TEXT NOT NULL DEFAULT '',
		sha256 TEXT NOT NULL DEFAULT '',
		first_seen DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_file_inventory_md5 ON file_inventory(org_id, md5);
	CREATE INDEX IF NOT EXISTS idx_file_inventory_sha1 ON file_inventory(org_id, sha1);
	CREATE INDEX IF NOT EXISTS idx_file_inventory_sha256 ON file_inventory(org_id, sha256);

	CREATE TABLE IF NOT EXISTS endpoint_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		org_id TEXT NOT NULL,
		endpoint_id TEXT NOT NULL,
		log_source TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL,
		message_folded TEXT NOT NULL,
		event_time DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_endpoint_logs_org_time ON endpoint_logs(org_id, event_time);
	`

	if _, err := s.WriteDB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes both connection pools
func (s *SQLite) Close() error {
	var writeErr, readErr error
	if s.WriteDB != nil {
		writeErr = s.WriteDB.Close()
	}
	if s.ReadDB != nil {
		readErr = s.ReadDB.Close()
	}

	if writeErr != nil {
		return fmt.Errorf("failed to close write pool: %w", writeErr)
	}
	if readErr != nil {
		return fmt.Errorf("failed to close read pool: %w", readErr)
	}
	return nil
}

// HealthCheck pings both pools
func (s *SQLite) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.WriteDB.PingContext(ctx); err != nil {
		return fmt.Errorf("write pool unhealthy: %w", err)
	}
	if err := s.ReadDB.PingContext(ctx); err != nil {
		return fmt.Errorf("read pool unhealthy: %w", err)
	}
	return nil
}

// StartMetricsCollection periodically exports pool stats until ctx is done
func (s *SQLite) StartMetricsCollection(ctx context.Context, interval time.Duration) {
	s.updatePoolMetrics()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.updatePoolMetrics()
			}
		}
	}()
}

func (s *SQLite) updatePoolMetrics() {
	s.updatePoolMetricsForType("write", s.WriteDB.Stats(), &s.prevWriteWaitCount)
	s.updatePoolMetricsForType("read", s.ReadDB.Stats(), &s.prevReadWaitCount)
}

// Counters only receive deltas so they never decrease
func (s *SQLite) updatePoolMetricsForType(poolType string, stats sql.DBStats, prevWaitCount *int64) {
	metrics.SQLiteOpenConnections.WithLabelValues(poolType).Set(float64(stats.OpenConnections))

	if delta := stats.WaitCount - *prevWaitCount; delta > 0 {
		metrics.SQLiteWaitCount.WithLabelValues(poolType).Add(float64(delta))
		*prevWaitCount = stats.WaitCount
	}
}

// validateDatabasePath rejects traversal sequences, null bytes and empty paths
func validateDatabasePath(dbPath string) error {
	if dbPath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if dbPath == ":memory:" {
		return nil
	}
	if len(dbPath) > 512 {
		return fmt.Errorf("database path exceeds maximum length of 512 characters")
	}
	if strings.Contains(dbPath, "\x00") {
		return fmt.Errorf("null bytes not allowed in path")
	}
	if strings.Contains(dbPath, "..") {
		return fmt.Errorf("path traversal not allowed (..): %s", dbPath)
	}
	return nil
}
