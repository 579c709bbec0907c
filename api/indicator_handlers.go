package api

import (
	"net/http"
	"strconv"
	"strings"

	"iochunt/core"
)

// CreateIndicatorRequest is the body of POST /indicators. An empty kind is
// classified from the value.
type CreateIndicatorRequest struct {
	Value       string             `json:"value" validate:"required,max=4096"`
	Kind        core.IndicatorKind `json:"kind,omitempty" validate:"omitempty,oneof=file_hash file_path file_name process_name"`
	Severity    core.Severity      `json:"severity,omitempty" validate:"omitempty,oneof=low medium high critical"`
	Source      string             `json:"source,omitempty" validate:"max=200"`
	Description string             `json:"description,omitempty" validate:"max=2000"`
	IsActive    *bool              `json:"is_active,omitempty"`
	CreatedBy   string             `json:"created_by,omitempty" validate:"max=255"`
}

// UpdateIndicatorRequest is the body of PUT /indicators/{id}. Nil fields are
// left unchanged; a new value without a kind is reclassified.
type UpdateIndicatorRequest struct {
	Value       *string             `json:"value,omitempty" validate:"omitempty,max=4096"`
	Kind        *core.IndicatorKind `json:"kind,omitempty" validate:"omitempty,oneof=file_hash file_path file_name process_name"`
	Severity    *core.Severity      `json:"severity,omitempty" validate:"omitempty,oneof=low medium high critical"`
	Source      *string             `json:"source,omitempty" validate:"omitempty,max=200"`
	Description *string             `json:"description,omitempty" validate:"omitempty,max=2000"`
	IsActive    *bool               `json:"is_active,omitempty"`
}

// BulkCreateIndicatorsRequest is the body of POST /indicators/bulk
type BulkCreateIndicatorsRequest struct {
	Indicators []CreateIndicatorRequest `json:"indicators" validate:"required,min=1,max=10000,dive"`
}

// BulkCreateIndicatorsResponse reports the outcome of a bulk create
type BulkCreateIndicatorsResponse struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

func (req *CreateIndicatorRequest) toIndicator(orgID string) (*core.Indicator, error) {
	ind, err := core.NewIndicator(orgID, req.Value, req.Kind, req.Source, req.CreatedBy)
	if err != nil {
		return nil, err
	}
	if req.Severity != "" {
		ind.Severity = req.Severity
	}
	ind.Description = req.Description
	if req.IsActive != nil {
		ind.IsActive = *req.IsActive
	}
	return ind, nil
}

// listIndicators godoc
//
//	@Summary		List indicators
//	@Description	Returns a page of indicators with optional filters
//	@Tags			indicators
//	@Produce		json
//	@Param			org_id		path		string	true	"Organization ID"
//	@Param			active		query		bool	false	"Only active indicators"
//	@Param			kind		query		string	false	"Filter by kind"	enums(file_hash,file_path,file_name,process_name)
//	@Param			severity	query		string	false	"Filter by severity"	enums(low,medium,high,critical)
//	@Param			search		query		string	false	"Substring of value or description"
//	@Param			page		query		int		false	"Page number (1-based)"	minimum(1)	default(1)
//	@Param			limit		query		int		false	"Items per page (1-1000)"	minimum(1)	maximum(1000)	default(100)
//	@Success		200			{object}	PaginationResponse
//	@Failure		500			{object}	ErrorResponse
//	@Router			/api/v1/orgs/{org_id}/indicators [get]
func (a *API) listIndicators(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := ParsePaginationParams(r, defaultPageLimit, maxPageLimit)

	filters := &core.IndicatorFilters{
		Kind:     core.IndicatorKind(strings.TrimSpace(query.Get("kind"))),
		Severity: core.Severity(strings.TrimSpace(query.Get("severity"))),
		Search:   strings.TrimSpace(query.Get("search")),
		Limit:    params.Limit,
		Offset:   params.CalculateOffset(),
	}
	if active := query.Get("active"); active != "" {
		parsed, err := strconv.ParseBool(active)
		if err != nil {
			a.writeError(w, http.StatusBadRequest, "active must be a boolean", err)
			return
		}
		filters.ActiveOnly = parsed
	}
	if filters.Kind != "" && !filters.Kind.IsValid() {
		a.writeError(w, http.StatusBadRequest, "invalid kind: "+string(filters.Kind), nil)
		return
	}
	if filters.Severity != "" && !filters.Severity.IsValid() {
		a.writeError(w, http.StatusBadRequest, "invalid severity: "+string(filters.Severity), nil)
		return
	}

	inds, total, err := a.deps.Indicators.ListIndicators(r.Context(), orgIDFrom(r), filters)
	if err != nil {
		a.writeDomainError(w, err, "Failed to retrieve indicators")
		return
	}
	if inds == nil {
		inds = []*core.Indicator{}
	}
	a.respondJSON(w, NewPaginationResponse(inds, total, params.Page, params.Limit), http.StatusOK)
}

// createIndicator godoc
//
//	@Summary		Create indicator
//	@Description	Creates an indicator; the kind is classified from the value unless given
//	@Tags			indicators
//	@Accept			json
//	@Produce		json
//	@Param			org_id		path		string					true	"Organization ID"
//	@Param			indicator	body		CreateIndicatorRequest	true	"Indicator to create"
//	@Success		201			{object}	core.Indicator
//	@Failure		400			{object}	ErrorResponse
//	@Failure		409			{object}	ErrorResponse	"Indicator already exists"
//	@Router			/api/v1/orgs/{org_id}/indicators [post]
func (a *API) createIndicator(w http.ResponseWriter, r *http.Request) {
	var req CreateIndicatorRequest
	if !a.decodeJSONBody(w, r, &req, maxRequestBodyBytes) {
		return
	}

	ind, err := req.toIndicator(orgIDFrom(r))
	if err != nil {
		a.writeDomainError(w, err, "Invalid indicator")
		return
	}
	if err := a.deps.Indicators.CreateIndicator(r.Context(), ind); err != nil {
		a.writeDomainError(w, err, "Failed to create indicator")
		return
	}

	a.logger.Infow("Indicator created", "indicator_id", ind.ID, "org_id", ind.OrgID, "kind", ind.Kind)
	a.respondJSON(w, ind, http.StatusCreated)
}

// bulkCreateIndicators godoc
//
//	@Summary		Bulk create indicators
//	@Description	Creates many indicators at once; duplicates are skipped and counted
//	@Tags			indicators
//	@Accept			json
//	@Produce		json
//	@Param			org_id		path		string						true	"Organization ID"
//	@Param			indicators	body		BulkCreateIndicatorsRequest	true	"Indicators to create"
//	@Success		200			{object}	BulkCreateIndicatorsResponse
//	@Failure		400			{object}	ErrorResponse
//	@Router			/api/v1/orgs/{org_id}/indicators/bulk [post]
func (a *API) bulkCreateIndicators(w http.ResponseWriter, r *http.Request) {
	var req BulkCreateIndicatorsRequest
	if !a.decodeJSONBody(w, r, &req, maxBulkBodyBytes) {
		return
	}

	orgID := orgIDFrom(r)
	inds := make([]*core.Indicator, 0, len(req.Indicators))
	for i := range req.Indicators {
		ind, err := req.Indicators[i].toIndicator(orgID)
		if err != nil {
			a.writeDomainError(w, err, "Invalid indicator")
			return
		}
		inds = append(inds, ind)
	}

	created, skipped, err := a.deps.Indicators.BulkCreateIndicators(r.Context(), orgID, inds)
	if err != nil {
		a.writeDomainError(w, err, "Failed to create indicators")
		return
	}

	a.logger.Infow("Indicators bulk created", "org_id", orgID, "created", created, "skipped", skipped)
	a.respondJSON(w, BulkCreateIndicatorsResponse{Created: created, Skipped: skipped}, http.StatusOK)
}

// getIndicator godoc
//
//	@Summary		Get indicator
//	@Tags			indicators
//	@Produce		json
//	@Param			org_id	path		string	true	"Organization ID"
//	@Param			id		path		string	true	"Indicator ID"
//	@Success		200		{object}	core.Indicator
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/v1/orgs/{org_id}/indicators/{id} [get]
func (a *API) getIndicator(w http.ResponseWriter, r *http.Request) {
	ind, err := a.deps.Indicators.GetIndicator(r.Context(), orgIDFrom(r), idFrom(r))
	if err != nil {
		a.writeDomainError(w, err, "Failed to retrieve indicator")
		return
	}
	a.respondJSON(w, ind, http.StatusOK)
}

// updateIndicator godoc
//
//	@Summary		Update indicator
//	@Description	Partially updates an indicator. Existing matches keep their snapshot of the old value.
//	@Tags			indicators
//	@Accept			json
//	@Produce		json
//	@Param			org_id		path		string					true	"Organization ID"
//	@Param			id			path		string					true	"Indicator ID"
//	@Param			indicator	body		UpdateIndicatorRequest	true	"Fields to change"
//	@Success		200			{object}	core.Indicator
//	@Failure		400			{object}	ErrorResponse
//	@Failure		404			{object}	ErrorResponse
//	@Failure		409			{object}	ErrorResponse
//	@Router			/api/v1/orgs/{org_id}/indicators/{id} [put]
func (a *API) updateIndicator(w http.ResponseWriter, r *http.Request) {
	var req UpdateIndicatorRequest
	if !a.decodeJSONBody(w, r, &req, maxRequestBodyBytes) {
		return
	}

	ind, err := a.deps.Indicators.GetIndicator(r.Context(), orgIDFrom(r), idFrom(r))
	if err != nil {
		a.writeDomainError(w, err, "Failed to retrieve indicator")
		return
	}

	switch {
	case req.Kind != nil:
		if req.Value != nil {
			ind.Value = strings.TrimSpace(*req.Value)
		}
		ind.SetKind(*req.Kind)
	case req.Value != nil:
		ind.Value = strings.TrimSpace(*req.Value)
		ind.SetKind("")
	}
	if req.Severity != nil {
		ind.Severity = *req.Severity
	}
	if req.Source != nil {
		ind.Source = *req.Source
	}
	if req.Description != nil {
		ind.Description = *req.Description
	}
	if req.IsActive != nil {
		ind.IsActive = *req.IsActive
	}

	if err := a.deps.Indicators.UpdateIndicator(r.Context(), ind); err != nil {
		a.writeDomainError(w, err, "Failed to update indicator")
		return
	}
	a.respondJSON(w, ind, http.StatusOK)
}

// deleteIndicator godoc
//
//	@Summary		Delete indicator
//	@Description	Deletes an indicator. Its historical matches are kept.
//	@Tags			indicators
//	@Param			org_id	path	string	true	"Organization ID"
//	@Param			id		path	string	true	"Indicator ID"
//	@Success		204
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/v1/orgs/{org_id}/indicators/{id} [delete]
func (a *API) deleteIndicator(w http.ResponseWriter, r *http.Request) {
	orgID, id := orgIDFrom(r), idFrom(r)
	if err := a.deps.Indicators.DeleteIndicator(r.Context(), orgID, id); err != nil {
		a.writeDomainError(w, err, "Failed to delete indicator")
		return
	}
	a.logger.Infow("Indicator deleted", "indicator_id", id, "org_id", orgID)
	w.WriteHeader(http.StatusNoContent)
}
