package bootstrap

import (
	"context"
	"fmt"

	"iochunt/config"
	"iochunt/core"
	"iochunt/threat"

	"go.uber.org/zap"
)

// HuntComponents holds the hunt engine and the services built around it
type HuntComponents struct {
	Registry  *threat.SourceRegistry
	Endpoints core.EndpointDirectory
	Engine    *threat.HuntEngine
	Searcher  *threat.QuickSearcher
	Reviewer  *threat.MatchReviewer

	RunLock   *threat.RedisRunLock  // nil unless redis is enabled
	Publisher *threat.NATSPublisher // nil unless nats is enabled
}

// InitSources builds the inventory and log match sources and their registry
func InitSources(cfg *config.Config, sc *StorageComponents, sugar *zap.SugaredLogger) (*threat.SourceRegistry, error) {
	breaker := threat.BreakerConfig{
		MaxFailures: cfg.Sources.CircuitBreaker.MaxFailures,
		Timeout:     cfg.Sources.CircuitBreaker.Timeout,
	}

	inventory, err := threat.NewInventorySource(sc.Inventory, threat.SourceOptions{
		ResultCap: cfg.Sources.Inventory.ResultCap,
		Timeout:   cfg.Sources.Inventory.Timeout,
		Breaker:   breaker,
	}, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize inventory source: %w", err)
	}

	logs, err := threat.NewLogSource(sc.Logs, threat.SourceOptions{
		ResultCap: cfg.Sources.Log.ResultCap,
		Timeout:   cfg.Sources.Log.Timeout,
		Breaker:   breaker,
	}, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize log source: %w", err)
	}

	sugar.Infow("Match sources initialized",
		"inventory_cap", cfg.Sources.Inventory.ResultCap,
		"log_cap", cfg.Sources.Log.ResultCap,
		"log_backend", cfg.Sources.Log.Backend)
	return threat.NewSourceRegistry(nil, inventory, logs), nil
}

// InitHuntEngine wires sources, optional Redis lock and NATS publisher into a hunt engine
func InitHuntEngine(ctx context.Context, cfg *config.Config, sc *StorageComponents, sugar *zap.SugaredLogger) (*HuntComponents, error) {
	registry, err := InitSources(cfg, sc, sugar)
	if err != nil {
		return nil, err
	}

	validator, err := threat.NewContextValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to compile match context schemas: %w", err)
	}

	hc := &HuntComponents{
		Registry:  registry,
		Endpoints: threat.NewCachedEndpointDirectory(sc.Endpoints, cfg.EndpointCache.Size, cfg.EndpointCache.TTL),
		Reviewer:  threat.NewMatchReviewer(sc.Matches, sugar),
	}
	opts := []threat.HuntEngineOption{threat.WithContextValidator(validator)}

	if cfg.Redis.Enabled {
		lock := threat.NewRedisRunLock(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.LockTTL, sugar)
		if err := lock.Ping(ctx); err != nil {
			_ = lock.Close()
			printFatalBanner("Redis Connection Failed", ClassifyConnectionError("Redis", err, cfg.Redis.Addr))
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		hc.RunLock = lock
		opts = append(opts, threat.WithRunLock(lock))
		sugar.Infow("Redis hunt run lock enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.LockTTL)
	}

	if cfg.NATS.Enabled {
		pub, err := threat.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, cfg.NATS.Timeout, sugar)
		if err != nil {
			// Events are advisory: hunts run without them
			sugar.Warnw("NATS unavailable, hunt events disabled", "url", cfg.NATS.URL, "error", err)
		} else {
			hc.Publisher = pub
			opts = append(opts, threat.WithEventPublisher(pub))
			sugar.Infow("NATS hunt events enabled", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
		}
	}

	hc.Engine = threat.NewHuntEngine(sc.Indicators, sc.Jobs, sc.Matches, registry, &threat.HuntConfig{
		MaxConcurrentHunts:   cfg.Hunt.MaxConcurrentHunts,
		MaxConcurrentQueries: cfg.Hunt.MaxConcurrentQueries,
		MaxHuntDuration:      cfg.Hunt.MaxHuntDuration,
	}, sugar, opts...)
	hc.Searcher = threat.NewQuickSearcher(registry, hc.Endpoints, sugar)

	sugar.Infow("Hunt engine initialized",
		"max_concurrent_hunts", cfg.Hunt.MaxConcurrentHunts,
		"max_concurrent_queries", cfg.Hunt.MaxConcurrentQueries,
		"max_hunt_duration", cfg.Hunt.MaxHuntDuration)
	return hc, nil
}

// Close stops the engine and releases the lock and publisher connections
func (hc *HuntComponents) Close(cfg *config.Config, sugar *zap.SugaredLogger) {
	if hc.Engine != nil {
		if err := hc.Engine.Shutdown(cfg.Hunt.ShutdownTimeout); err != nil {
			sugar.Warnw("Hunt engine shutdown timed out", "error", err)
		}
	}
	if hc.Publisher != nil {
		if err := hc.Publisher.Close(); err != nil {
			sugar.Errorw("Failed to close NATS connection", "error", err)
		}
	}
	if hc.RunLock != nil {
		if err := hc.RunLock.Close(); err != nil {
			sugar.Errorw("Failed to close Redis client", "error", err)
		}
	}
}
