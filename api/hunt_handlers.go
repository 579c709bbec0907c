package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"iochunt/core"
	"iochunt/threat"
)

// ExecuteHuntRequest is the optional body of POST /hunts/{id}/execute
type ExecuteHuntRequest struct {
	IndicatorIDs []string `json:"indicator_ids,omitempty" validate:"max=10000,dive,required"`
}

// ExecuteHuntResponse reports an accepted or finished run
type ExecuteHuntResponse struct {
	HuntID string           `json:"hunt_id"`
	Status core.HuntStatus  `json:"status"`
	Result *core.HuntResult `json:"result,omitempty"`
}

// ActiveHuntsResponse lists hunts currently executing in this process
type ActiveHuntsResponse struct {
	HuntIDs []string `json:"hunt_ids"`
}

// listHunts godoc
//
//	@Summary		List hunts
//	@Tags			hunts
//	@Produce		json
//	@Param			org_id	path		string	true	"Organization ID"
//	@Param			page	query		int		false	"Page number (1-based)"	minimum(1)	default(1)
//	@Param			limit	query		int		false	"Items per page (1-1000)"	minimum(1)	maximum(1000)	default(100)
//	@Success		200		{object}	PaginationResponse
//	@Router			/api/v1/orgs/{org_id}/hunts [get]
func (a *API) listHunts(w http.ResponseWriter, r *http.Request) {
	params := ParsePaginationParams(r, defaultPageLimit, maxPageLimit)

	jobs, total, err := a.deps.Jobs.ListHuntJobs(r.Context(), orgIDFrom(r), params.Limit, params.CalculateOffset())
	if err != nil {
		a.writeDomainError(w, err, "Failed to retrieve hunts")
		return
	}
	if jobs == nil {
		jobs = []*core.HuntJob{}
	}
	a.respondJSON(w, NewPaginationResponse(jobs, total, params.Page, params.Limit), http.StatusOK)
}

// createHunt godoc
//
//	@Summary		Create hunt
//	@Description	Creates a pending hunt job. Without indicator_ids it covers every active indicator.
//	@Tags			hunts
//	@Accept			json
//	@Produce		json
//	@Param			org_id	path		string						true	"Organization ID"
//	@Param			hunt	body		threat.CreateHuntRequest	true	"Hunt to create"
//	@Success		201		{object}	core.HuntJob
//	@Failure		400		{object}	ErrorResponse
//	@Router			/api/v1/orgs/{org_id}/hunts [post]
func (a *API) createHunt(w http.ResponseWriter, r *http.Request) {
	var req threat.CreateHuntRequest
	if !a.decodeJSONBody(w, r, &req, maxRequestBodyBytes) {
		return
	}

	job, err := a.deps.Hunts.CreateHunt(r.Context(), orgIDFrom(r), &req)
	if err != nil {
		a.writeDomainError(w, err, "Failed to create hunt")
		return
	}
	a.respondJSON(w, job, http.StatusCreated)
}

// getHunt godoc
//
//	@Summary		Get hunt
//	@Tags			hunts
//	@Produce		json
//	@Param			org_id	path		string	true	"Organization ID"
//	@Param			id		path		string	true	"Hunt ID"
//	@Success		200		{object}	core.HuntJob
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/v1/orgs/{org_id}/hunts/{id} [get]
func (a *API) getHunt(w http.ResponseWriter, r *http.Request) {
	job, err := a.deps.Jobs.GetHuntJob(r.Context(), orgIDFrom(r), idFrom(r))
	if err != nil {
		a.writeDomainError(w, err, "Failed to retrieve hunt")
		return
	}
	a.respondJSON(w, job, http.StatusOK)
}

// deleteHunt godoc
//
//	@Summary		Delete hunt
//	@Description	Deletes a hunt and all its matches. Running hunts cannot be deleted.
//	@Tags			hunts
//	@Param			org_id	path	string	true	"Organization ID"
//	@Param			id		path	string	true	"Hunt ID"
//	@Success		204
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse	"Hunt is running"
//	@Router			/api/v1/orgs/{org_id}/hunts/{id} [delete]
func (a *API) deleteHunt(w http.ResponseWriter, r *http.Request) {
	orgID, id := orgIDFrom(r), idFrom(r)
	if err := a.deps.Jobs.DeleteHuntJob(r.Context(), orgID, id); err != nil {
		a.writeDomainError(w, err, "Failed to delete hunt")
		return
	}
	a.logger.Infow("Hunt deleted", "hunt_id", id, "org_id", orgID)
	w.WriteHeader(http.StatusNoContent)
}

// executeHunt godoc
//
//	@Summary		Execute hunt
//	@Description	Starts a pending hunt in the background (202). With wait=true the hunt runs
//	@Description	within the request and the totals are returned; only then may indicator_ids
//	@Description	override the job's stored list.
//	@Tags			hunts
//	@Accept			json
//	@Produce		json
//	@Param			org_id	path		string				true	"Organization ID"
//	@Param			id		path		string				true	"Hunt ID"
//	@Param			wait	query		bool				false	"Run synchronously"
//	@Param			body	body		ExecuteHuntRequest	false	"Indicator override"
//	@Success		200		{object}	ExecuteHuntResponse
//	@Success		202		{object}	ExecuteHuntResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse	"Hunt is not pending"
//	@Failure		429		{object}	ErrorResponse	"Too many concurrent hunts"
//	@Failure		503		{object}	ErrorResponse	"A match source is unavailable"
//	@Router			/api/v1/orgs/{org_id}/hunts/{id}/execute [post]
func (a *API) executeHunt(w http.ResponseWriter, r *http.Request) {
	orgID, id := orgIDFrom(r), idFrom(r)

	wait := false
	if v := r.URL.Query().Get("wait"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			a.writeError(w, http.StatusBadRequest, "wait must be a boolean", err)
			return
		}
		wait = parsed
	}

	var req ExecuteHuntRequest
	if r.ContentLength != 0 {
		if !a.decodeOptionalBody(w, r, &req) {
			return
		}
	}

	if !wait {
		if len(req.IndicatorIDs) > 0 {
			a.writeError(w, http.StatusBadRequest, "indicator_ids override requires wait=true", nil)
			return
		}
		if err := a.deps.Hunts.StartHunt(orgID, id); err != nil {
			a.writeDomainError(w, err, "Failed to start hunt")
			return
		}
		a.respondJSON(w, ExecuteHuntResponse{HuntID: id, Status: core.HuntStatusRunning}, http.StatusAccepted)
		return
	}

	result, err := a.deps.Hunts.ExecuteHunt(r.Context(), orgID, id, req.IndicatorIDs)
	if err != nil {
		a.writeDomainError(w, err, "Hunt failed")
		return
	}
	a.respondJSON(w, ExecuteHuntResponse{HuntID: id, Status: core.HuntStatusCompleted, Result: result}, http.StatusOK)
}

// decodeOptionalBody is decodeJSONBody that treats an empty body as no input
func (a *API) decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			a.writeError(w, http.StatusRequestEntityTooLarge, "Request body too large", err)
		} else {
			a.writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		}
		return false
	}
	if strings.TrimSpace(string(body)) == "" {
		return true
	}
	r.Body = io.NopCloser(strings.NewReader(string(body)))
	return a.decodeJSONBody(w, r, dst, maxRequestBodyBytes)
}

// getActiveHunts godoc
//
//	@Summary		Active hunts
//	@Description	Lists hunt ids executing in this process
//	@Tags			hunts
//	@Produce		json
//	@Param			org_id	path		string	true	"Organization ID"
//	@Success		200		{object}	ActiveHuntsResponse
//	@Router			/api/v1/orgs/{org_id}/hunts/active [get]
func (a *API) getActiveHunts(w http.ResponseWriter, r *http.Request) {
	ids := a.deps.Hunts.GetActiveHunts()
	if ids == nil {
		ids = []string{}
	}
	a.respondJSON(w, ActiveHuntsResponse{HuntIDs: ids}, http.StatusOK)
}

// listHuntMatches godoc
//
//	@Summary		List hunt matches
//	@Tags			matches
//	@Produce		json
//	@Param			org_id			path		string	true	"Organization ID"
//	@Param			id				path		string	true	"Hunt ID"
//	@Param			source			query		string	false	"Filter by source"	enums(inventory,log)
//	@Param			indicator_id	query		string	false	"Filter by indicator"
//	@Param			endpoint_id		query		string	false	"Filter by endpoint"
//	@Param			reviewed		query		bool	false	"Filter by review state"
//	@Param			page			query		int		false	"Page number (1-based)"	minimum(1)	default(1)
//	@Param			limit			query		int		false	"Items per page (1-1000)"	minimum(1)	maximum(1000)	default(100)
//	@Success		200				{object}	PaginationResponse
//	@Failure		404				{object}	ErrorResponse
//	@Router			/api/v1/orgs/{org_id}/hunts/{id}/matches [get]
func (a *API) listHuntMatches(w http.ResponseWriter, r *http.Request) {
	orgID, id := orgIDFrom(r), idFrom(r)
	query := r.URL.Query()
	params := ParsePaginationParams(r, defaultPageLimit, maxPageLimit)

	filters := &core.MatchFilters{
		Source:      core.MatchSourceKind(query.Get("source")),
		IndicatorID: query.Get("indicator_id"),
		EndpointID:  query.Get("endpoint_id"),
		Limit:       params.Limit,
		Offset:      params.CalculateOffset(),
	}
	if filters.Source != "" && !filters.Source.IsValid() {
		a.writeError(w, http.StatusBadRequest, "invalid source: "+string(filters.Source), nil)
		return
	}
	if v := query.Get("reviewed"); v != "" {
		reviewed, err := strconv.ParseBool(v)
		if err != nil {
			a.writeError(w, http.StatusBadRequest, "reviewed must be a boolean", err)
			return
		}
		filters.ReviewedOnly = &reviewed
	}

	if _, err := a.deps.Jobs.GetHuntJob(r.Context(), orgID, id); err != nil {
		a.writeDomainError(w, err, "Failed to retrieve hunt")
		return
	}

	matches, total, err := a.deps.Matches.ListMatchesByJob(r.Context(), orgID, id, filters)
	if err != nil {
		a.writeDomainError(w, err, "Failed to retrieve matches")
		return
	}
	if matches == nil {
		matches = []*core.Match{}
	}
	a.respondJSON(w, NewPaginationResponse(matches, total, params.Page, params.Limit), http.StatusOK)
}
