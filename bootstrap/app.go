package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"iochunt/api"
	"iochunt/config"
	"iochunt/util/goroutine"

	"go.uber.org/zap"
)

const poolMetricsInterval = 15 * time.Second

// App represents the hunt service with all its components.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	Storage   *StorageComponents
	Hunts     *HuntComponents
	APIServer *api.API

	shutdownTracing ShutdownFunc
	ownsLogger      bool

	serviceWg    *sync.WaitGroup
	cancel       context.CancelFunc
	shutdownOnce sync.Once
}

// AppOption customizes NewApp
type AppOption func(*App)

// WithLogger replaces the console logger, for CLI commands that own stdout
func WithLogger(logger *zap.Logger) AppOption {
	return func(a *App) {
		a.Logger = logger
		a.Sugar = logger.Sugar()
	}
}

// NewApp loads configuration and initializes storage, tracing and the hunt
// engine. configPath may be empty to search the default locations.
func NewApp(ctx context.Context, configPath string, opts ...AppOption) (*App, error) {
	app := &App{serviceWg: &sync.WaitGroup{}}
	for _, opt := range opts {
		opt(app)
	}

	if app.Logger == nil {
		_, bootSugar, err := InitLogger(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		cfg, err := InitConfig(configPath, bootSugar)
		if err != nil {
			return nil, err
		}
		logger, sugar, err := InitLogger(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		app.Config, app.Logger, app.Sugar, app.ownsLogger = cfg, logger, sugar, true
	} else {
		cfg, err := InitConfig(configPath, app.Sugar)
		if err != nil {
			return nil, err
		}
		app.Config = cfg
	}

	sugar := app.Sugar
	sugar.Info("iochunt starting...")

	sugar.Info("Running pre-flight checks...")
	if err := EnsureDataDirectories(DataDirectoriesFromConfig(app.Config), sugar); err != nil {
		return nil, fmt.Errorf("pre-flight check failed: %w", err)
	}

	shutdownTracing, err := InitTracing(ctx, app.Config, sugar)
	if err != nil {
		return nil, err
	}
	app.shutdownTracing = shutdownTracing

	storageComponents, err := InitStorage(ctx, app.Config, sugar)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}
	app.Storage = storageComponents

	hunts, err := InitHuntEngine(ctx, app.Config, storageComponents, sugar)
	if err != nil {
		storageComponents.Close(ctx, sugar)
		_ = shutdownTracing(ctx)
		return nil, err
	}
	app.Hunts = hunts

	return app, nil
}

// HealthChecks returns the probes reported by GET /health
func (a *App) HealthChecks() map[string]api.HealthCheck {
	checks := make(map[string]api.HealthCheck)
	for name, check := range a.Storage.HealthChecks() {
		checks[name] = check
	}
	if a.Hunts.RunLock != nil {
		checks["redis"] = a.Hunts.RunLock.Ping
	}
	return checks
}

// NewAPIServer builds the HTTP API over the app's services
func (a *App) NewAPIServer() *api.API {
	return api.NewAPI(a.Config, &api.Dependencies{
		Indicators:   a.Storage.Indicators,
		Jobs:         a.Storage.Jobs,
		Matches:      a.Storage.Matches,
		Hunts:        a.Hunts.Engine,
		Search:       a.Hunts.Searcher,
		Reviews:      a.Hunts.Reviewer,
		HealthChecks: a.HealthChecks(),
	}, a.Sugar)
}

// Start starts pool metrics collection and the API server.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)
	a.Storage.SQLite.StartMetricsCollection(ctx, poolMetricsInterval)

	a.APIServer = a.NewAPIServer()

	a.serviceWg.Add(1)
	go func() {
		defer a.serviceWg.Done()
		defer goroutine.Recover("api-server", a.Sugar)
		a.Sugar.Infow("API server listening",
			"host", a.Config.API.Host,
			"port", a.Config.API.Port,
			"swagger", a.Config.API.Swagger)
		if err := a.APIServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Sugar.Errorw("API server failed", "error", err)
		}
	}()

	return nil
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)
	<-c
}

// Shutdown gracefully shuts down all components. It is safe to call more than once.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(a.shutdown)
}

func (a *App) shutdown() {
	a.Sugar.Info("Shutting down...")

	// Phase 1 - Stop accepting requests
	a.Sugar.Info("Phase 1: Stopping API server...")
	if a.APIServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.APIServer.Stop(ctx); err != nil {
			a.Sugar.Errorw("Failed to stop API server", "error", err)
		}
		cancel()
	}

	// Phase 2 - Let running hunts finish, then cancel the rest
	a.Sugar.Infow("Phase 2: Stopping hunt engine...", "timeout", a.Config.Hunt.ShutdownTimeout)
	if a.Hunts != nil {
		a.Hunts.Close(a.Config, a.Sugar)
	}

	// Phase 3 - Wait for service goroutines
	a.Sugar.Info("Phase 3: Waiting for service goroutines to complete...")
	if a.cancel != nil {
		a.cancel()
	}
	done := make(chan struct{})
	go func() {
		a.serviceWg.Wait()
		close(done)
	}()
	select {
	case <-done:
		a.Sugar.Info("All service goroutines stopped successfully")
	case <-time.After(10 * time.Second):
		a.Sugar.Warn("Service goroutine shutdown timed out")
	}

	// Phase 4 - Flush spans
	a.Sugar.Info("Phase 4: Flushing traces...")
	if a.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.shutdownTracing(ctx); err != nil {
			a.Sugar.Warnw("Failed to flush traces", "error", err)
		}
		cancel()
	}

	// Phase 5 - Close databases last
	a.Sugar.Info("Phase 5: Closing database connections...")
	if a.Storage != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		a.Storage.Close(ctx, a.Sugar)
		cancel()
	}

	a.Sugar.Info("Shutdown complete")
	if a.ownsLogger {
		_ = a.Logger.Sync()
	}
}
