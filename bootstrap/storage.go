package bootstrap

import (
	"context"
	"fmt"
	"time"

	"iochunt/config"
	"iochunt/storage"
	"iochunt/threat"

	"go.uber.org/zap"
)

// LogWriter appends endpoint log records to the configured log backend
type LogWriter interface {
	AppendLog(ctx context.Context, rec *storage.LogRecord) error
}

// LogStore is the configured log backend: searchable by the log source and writable by ingestion
type LogStore interface {
	threat.LogBackend
	LogWriter
}

// StorageComponents holds all storage-related components.
type StorageComponents struct {
	SQLite     *storage.SQLite
	ClickHouse *storage.ClickHouse // nil unless the clickhouse log backend is selected
	MongoDB    *storage.MongoDB    // nil unless the mongodb log backend is selected

	Indicators *storage.SQLiteIndicatorStorage
	Jobs       *storage.SQLiteHuntJobStorage
	Matches    *storage.SQLiteMatchStorage
	Inventory  *storage.SQLiteInventoryStorage
	Endpoints  *storage.SQLiteEndpointStorage
	Logs       LogStore
}

// InitClickHouse initializes ClickHouse connection with retry logic.
func InitClickHouse(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (*storage.ClickHouse, error) {
	const maxRetries = 3
	retryDelays := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

	var clickhouse *storage.ClickHouse
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			sugar.Infow("Retrying ClickHouse connection",
				"attempt", attempt,
				"max_retries", maxRetries,
				"delay", retryDelays[attempt-1])
			select {
			case <-time.After(retryDelays[attempt-1]):
			case <-ctx.Done():
				return nil, fmt.Errorf("ClickHouse connection cancelled: %w", ctx.Err())
			}
		}

		clickhouse, lastErr = storage.NewClickHouse(cfg, sugar)
		if lastErr == nil {
			break
		}

		sugar.Warnw("ClickHouse connection attempt failed",
			"attempt", attempt+1,
			"error", lastErr)
	}

	if lastErr != nil {
		printFatalBanner("ClickHouse Connection Failed", ClassifyConnectionError("ClickHouse", lastErr, cfg.ClickHouse.Addr))
		return nil, fmt.Errorf("failed to connect to ClickHouse after %d attempts: %w", maxRetries+1, lastErr)
	}

	sugar.Info("Connected to ClickHouse successfully")

	if err := clickhouse.CreateTablesIfNotExist(ctx); err != nil {
		_ = clickhouse.Close()
		printFatalBanner("ClickHouse Schema Setup Failed", fmt.Sprintf(
			"Failed to create/verify ClickHouse tables: %v\n\nRemediation:\n"+
				"  - Check ClickHouse has sufficient permissions\n"+
				"  - Verify the database '%s' exists", err, cfg.ClickHouse.Database))
		return nil, fmt.Errorf("failed to ensure ClickHouse tables: %w", err)
	}

	return clickhouse, nil
}

// InitMongoDB connects to MongoDB and ensures the log collection indexes
func InitMongoDB(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (*storage.MongoDB, *storage.MongoLogStorage, error) {
	mongo, err := storage.NewMongoDB(cfg.MongoDB.URI, cfg.MongoDB.Database, cfg.MongoDB.MaxPoolSize, sugar)
	if err != nil {
		printFatalBanner("MongoDB Connection Failed", ClassifyConnectionError("MongoDB", err, cfg.Redacted().MongoDB.URI))
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	logs := storage.NewMongoLogStorage(mongo, cfg.MongoDB.Collection, sugar)
	if err := logs.EnsureIndexes(ctx); err != nil {
		sugar.Warnw("Failed to create MongoDB log indexes", "error", err)
	}

	sugar.Infow("Connected to MongoDB successfully", "database", cfg.MongoDB.Database, "collection", cfg.MongoDB.Collection)
	return mongo, logs, nil
}

// InitSQLite initializes SQLite connection.
func InitSQLite(dirs DataDirectories, sugar *zap.SugaredLogger) (*storage.SQLite, error) {
	sqlite, err := storage.NewSQLite(dirs.SQLite, sugar)
	if err != nil {
		printFatalBanner("SQLite Initialization Failed", ClassifySQLiteError(err, dirs.SQLite))
		return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
	}

	sugar.Infow("SQLite initialized successfully", "path", dirs.SQLite)
	return sqlite, nil
}

// InitStorage opens SQLite, the configured log backend and every store built on them
func InitStorage(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (*StorageComponents, error) {
	sqlite, err := InitSQLite(DataDirectoriesFromConfig(cfg), sugar)
	if err != nil {
		return nil, err
	}

	sc := &StorageComponents{
		SQLite:     sqlite,
		Indicators: storage.NewSQLiteIndicatorStorage(sqlite, sugar),
		Jobs:       storage.NewSQLiteHuntJobStorage(sqlite, sugar),
		Matches:    storage.NewSQLiteMatchStorage(sqlite, sugar),
		Inventory:  storage.NewSQLiteInventoryStorage(sqlite, sugar),
		Endpoints:  storage.NewSQLiteEndpointStorage(sqlite, sugar),
	}

	switch cfg.Sources.Log.Backend {
	case config.LogBackendClickHouse:
		ch, err := InitClickHouse(ctx, cfg, sugar)
		if err != nil {
			sc.Close(ctx, sugar)
			return nil, err
		}
		sc.ClickHouse = ch
		sc.Logs = storage.NewClickHouseLogStorage(ch, sugar)
	case config.LogBackendMongoDB:
		mongo, logs, err := InitMongoDB(ctx, cfg, sugar)
		if err != nil {
			sc.Close(ctx, sugar)
			return nil, err
		}
		sc.MongoDB = mongo
		sc.Logs = logs
	default:
		sc.Logs = storage.NewSQLiteLogStorage(sqlite, sugar)
	}

	sugar.Infow("Storage initialized", "log_backend", cfg.Sources.Log.Backend)
	return sc, nil
}

// HealthChecks returns a named probe per open database
func (sc *StorageComponents) HealthChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"sqlite": sc.SQLite.HealthCheck,
	}
	if sc.ClickHouse != nil {
		checks["clickhouse"] = sc.ClickHouse.HealthCheck
	}
	if sc.MongoDB != nil {
		checks["mongodb"] = sc.MongoDB.HealthCheck
	}
	return checks
}

// Close closes every open database connection
func (sc *StorageComponents) Close(ctx context.Context, sugar *zap.SugaredLogger) {
	if sc.ClickHouse != nil {
		if err := sc.ClickHouse.Close(); err != nil {
			sugar.Errorw("Failed to close ClickHouse connection", "error", err)
		}
	}
	if sc.MongoDB != nil {
		if err := sc.MongoDB.Close(ctx); err != nil {
			sugar.Errorw("Failed to close MongoDB connection", "error", err)
		}
	}
	if sc.SQLite != nil {
		if err := sc.SQLite.Close(); err != nil {
			sugar.Errorw("Failed to close SQLite", "error", err)
		}
	}
}
