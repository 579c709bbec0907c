// Package api iochunt API
//
//	@title			iochunt API
//	@version		1.0
//	@description	API for classifying indicators of compromise, running threat hunts and reviewing matches
//	@termsOfService	http://swagger.io/terms/
//
// @license.name	MIT
// @license.url	https://opensource.org/licenses/MIT
//
// @host		localhost:8080
// @BasePath	/
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"iochunt/config"
	"iochunt/core"
	"iochunt/threat"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/http-swagger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// rateLimiterEntry holds a rate limiter with last seen time
type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// HuntService creates and runs hunt jobs
type HuntService interface {
	CreateHunt(ctx context.Context, orgID string, req *threat.CreateHuntRequest) (*core.HuntJob, error)
	StartHunt(orgID, jobID string) error
	ExecuteHunt(ctx context.Context, orgID, jobID string, indicatorIDs []string) (*core.HuntResult, error)
	GetActiveHunts() []string
}

// QuickSearchService runs ad-hoc single value searches
type QuickSearchService interface {
	QuickSearch(ctx context.Context, orgID, raw string) (*threat.QuickSearchResponse, error)
}

// MatchReviewService toggles the review flag of a match
type MatchReviewService interface {
	SetReviewed(ctx context.Context, orgID, matchID string, reviewed bool, actor string) (*core.Match, error)
}

// HealthCheck reports whether one backend is usable
type HealthCheck func(ctx context.Context) error

// Dependencies are the stores and services the handlers call
type Dependencies struct {
	Indicators   core.IndicatorStorage
	Jobs         core.HuntJobStorage
	Matches      core.MatchStorage
	Hunts        HuntService
	Search       QuickSearchService
	Reviews      MatchReviewService
	HealthChecks map[string]HealthCheck
}

// API represents the REST API server
type API struct {
	router         *mux.Router
	server         *http.Server
	deps           *Dependencies
	config         *config.Config
	logger         *zap.SugaredLogger
	validate       *validator.Validate
	rateLimiters   map[string]*rateLimiterEntry
	rateLimitersMu sync.Mutex
	stopCh         chan struct{}
	stopOnce       sync.Once
}

// NewAPI creates a new API instance
func NewAPI(cfg *config.Config, deps *Dependencies, logger *zap.SugaredLogger) *API {
	a := &API{
		router:       mux.NewRouter(),
		deps:         deps,
		config:       cfg,
		logger:       logger,
		validate:     validator.New(),
		rateLimiters: make(map[string]*rateLimiterEntry),
		stopCh:       make(chan struct{}),
	}
	a.setupRoutes()
	a.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		Handler:      a.router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}
	go a.cleanupRateLimiters()
	return a
}

func (a *API) setupRoutes() {
	a.router.Use(a.requestIDMiddleware)
	a.router.Use(a.rateLimitMiddleware)

	a.router.HandleFunc("/health", a.healthCheck).Methods("GET")
	a.router.Handle("/metrics", promhttp.Handler())
	if a.config.API.Swagger {
		a.router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)
	}

	org := a.router.PathPrefix("/api/v1/orgs/{org_id}").Subrouter()

	org.HandleFunc("/classify", a.classify).Methods("POST")
	org.HandleFunc("/search", a.quickSearch).Methods("POST")

	org.HandleFunc("/indicators", a.listIndicators).Methods("GET")
	org.HandleFunc("/indicators", a.createIndicator).Methods("POST")
	org.HandleFunc("/indicators/bulk", a.bulkCreateIndicators).Methods("POST")
	org.HandleFunc("/indicators/{id}", a.getIndicator).Methods("GET")
	org.HandleFunc("/indicators/{id}", a.updateIndicator).Methods("PUT")
	org.HandleFunc("/indicators/{id}", a.deleteIndicator).Methods("DELETE")

	org.HandleFunc("/hunts", a.listHunts).Methods("GET")
	org.HandleFunc("/hunts", a.createHunt).Methods("POST")
	org.HandleFunc("/hunts/active", a.getActiveHunts).Methods("GET")
	org.HandleFunc("/hunts/{id}", a.getHunt).Methods("GET")
	org.HandleFunc("/hunts/{id}", a.deleteHunt).Methods("DELETE")
	org.HandleFunc("/hunts/{id}/execute", a.executeHunt).Methods("POST")
	org.HandleFunc("/hunts/{id}/matches", a.listHuntMatches).Methods("GET")

	org.HandleFunc("/matches/{id}", a.getMatch).Methods("GET")
	org.HandleFunc("/matches/{id}/review", a.reviewMatch).Methods("PUT")
}

// Handler returns the routed handler with all middleware applied
func (a *API) Handler() http.Handler {
	return a.router
}

// Start starts the API server and blocks until it stops.
// After Stop it returns http.ErrServerClosed.
func (a *API) Start() error {
	return a.server.ListenAndServe()
}

// Stop stops the API server
func (a *API) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() { close(a.stopCh) })
	return a.server.Shutdown(ctx)
}
