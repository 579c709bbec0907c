package api

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// HealthResponse reports service and backend health
type HealthResponse struct {
	Status     string            `json:"status"`
	Time       string            `json:"time"`
	Components map[string]string `json:"components,omitempty"`
}

// healthCheck godoc
//
//	@Summary		Health check
//	@Description	Returns the health status of the service and its backends
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Failure		503	{object}	HealthResponse
//	@Router			/health [get]
func (a *API) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(a.deps.HealthChecks))
	for name := range a.deps.HealthChecks {
		names = append(names, name)
	}
	sort.Strings(names)

	response := HealthResponse{
		Status:     "healthy",
		Time:       time.Now().UTC().Format(time.RFC3339),
		Components: make(map[string]string, len(names)),
	}
	status := http.StatusOK
	for _, name := range names {
		if err := a.deps.HealthChecks[name](ctx); err != nil {
			a.logger.Warnw("Health check failed", "component", name, "error", err)
			response.Components[name] = "unhealthy"
			response.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		response.Components[name] = "healthy"
	}

	a.respondJSON(w, response, status)
}
