package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"regexp"
	"time"

	"iochunt/config"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

var (
	// validDatabaseNameRegex ensures database names are safe to interpolate
	validDatabaseNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

// ClickHouse holds the ClickHouse connection used by the log backend
type ClickHouse struct {
	Conn   driver.Conn
	Config *config.Config
	Logger *zap.SugaredLogger
}

// NewClickHouse creates a new ClickHouse connection and ensures the database exists
func NewClickHouse(cfg *config.Config, logger *zap.SugaredLogger) (*ClickHouse, error) {
	options := &clickhouse.Options{
		Addr: []string{cfg.ClickHouse.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouse.Database,
			Username: cfg.ClickHouse.Username,
			Password: cfg.ClickHouse.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 10 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns:     cfg.ClickHouse.MaxPoolSize,
		MaxIdleConns:     cfg.ClickHouse.MaxPoolSize / 2,
		ConnMaxLifetime:  1 * time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		DialContext: func(ctx context.Context, addr string) (net.Conn, error) {
			var d net.Dialer
			d.Timeout = 10 * time.Second
			d.KeepAlive = 30 * time.Second
			return d.DialContext(ctx, "tcp", addr)
		},
	}

	if cfg.ClickHouse.TLS {
		options.TLS = &tls.Config{MinVersion: tls.VersionTLS13}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	logger.Infow("Connected to ClickHouse", "addr", cfg.ClickHouse.Addr)

	if err := ensureDatabase(ctx, conn, cfg.ClickHouse.Database, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure database exists: %w", err)
	}

	return &ClickHouse{
		Conn:   conn,
		Config: cfg,
		Logger: logger,
	}, nil
}

// validateDatabaseName rejects names that cannot be used as a bare identifier
func validateDatabaseName(database string) error {
	if database == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if len(database) > 64 {
		return fmt.Errorf("database name too long (max 64 characters)")
	}
	if !validDatabaseNameRegex.MatchString(database) {
		return fmt.Errorf("database name contains invalid characters (only alphanumeric and underscore allowed)")
	}
	return nil
}

func ensureDatabase(ctx context.Context, conn driver.Conn, database string, logger *zap.SugaredLogger) error {
	if err := validateDatabaseName(database); err != nil {
		return fmt.Errorf("invalid database name: %w", err)
	}

	query := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", database)
	if err := conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	logger.Infow("ClickHouse database ready", "database", database)
	return nil
}

// HealthCheck performs a health check on the ClickHouse connection
func (ch *ClickHouse) HealthCheck(ctx context.Context) error {
	return ch.Conn.Ping(ctx)
}

// Close closes the ClickHouse connection
func (ch *ClickHouse) Close() error {
	return ch.Conn.Close()
}

// GetVersion returns the ClickHouse server version
func (ch *ClickHouse) GetVersion(ctx context.Context) (string, error) {
	var version string
	if err := ch.Conn.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}

// CreateTablesIfNotExist creates the endpoint log table
func (ch *ClickHouse) CreateTablesIfNotExist(ctx context.Context) error {
	logsTable := `
	CREATE TABLE IF NOT EXISTS endpoint_logs (
		org_id LowCardinality(String),
		endpoint_id String,
		log_source LowCardinality(String),
		message String,
		event_time DateTime64(3, 'UTC'),
		INDEX idx_endpoint_id endpoint_id TYPE bloom_filter(0.01) GRANULARITY 1,
		INDEX idx_message_tokens lower(message) TYPE ngrambf_v1(4, 65536, 3, 0) GRANULARITY 1
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(event_time)
	ORDER BY (org_id, event_time, endpoint_id)
	TTL toDateTime(event_time) + INTERVAL 90 DAY
	SETTINGS index_granularity = 8192
	`

	if err := ch.Conn.Exec(ctx, logsTable); err != nil {
		return fmt.Errorf("failed to create endpoint_logs table: %w", err)
	}
	ch.Logger.Info("Endpoint logs table created/verified")
	return nil
}
