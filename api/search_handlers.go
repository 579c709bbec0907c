package api

import (
	"net/http"
	"strings"

	"iochunt/core"
)

// ValueRequest carries one raw indicator value
type ValueRequest struct {
	Value string `json:"value" validate:"required,max=4096"`
}

// ClassifyResponse is the classification of one value
type ClassifyResponse struct {
	Value string `json:"value"`
	core.Classification
}

// classify godoc
//
//	@Summary		Classify value
//	@Description	Assigns an indicator kind (and hash algorithm) to any string
//	@Tags			search
//	@Accept			json
//	@Produce		json
//	@Param			org_id	path		string			true	"Organization ID"
//	@Param			body	body		ValueRequest	true	"Value to classify"
//	@Success		200		{object}	ClassifyResponse
//	@Failure		400		{object}	ErrorResponse
//	@Router			/api/v1/orgs/{org_id}/classify [post]
func (a *API) classify(w http.ResponseWriter, r *http.Request) {
	var req ValueRequest
	if !a.decodeJSONBody(w, r, &req, maxRequestBodyBytes) {
		return
	}
	value := strings.TrimSpace(req.Value)
	if value == "" {
		a.writeDomainError(w, core.NewValidationError("value", "must not be empty"), "Invalid value")
		return
	}
	a.respondJSON(w, ClassifyResponse{Value: value, Classification: core.Classify(value)}, http.StatusOK)
}

// quickSearch godoc
//
//	@Summary		Quick search
//	@Description	Searches every applicable source for one value. Nothing is persisted.
//	@Tags			search
//	@Accept			json
//	@Produce		json
//	@Param			org_id	path		string			true	"Organization ID"
//	@Param			body	body		ValueRequest	true	"Value to search for"
//	@Success		200		{object}	threat.QuickSearchResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse	"A match source is unavailable"
//	@Router			/api/v1/orgs/{org_id}/search [post]
func (a *API) quickSearch(w http.ResponseWriter, r *http.Request) {
	var req ValueRequest
	if !a.decodeJSONBody(w, r, &req, maxRequestBodyBytes) {
		return
	}

	resp, err := a.deps.Search.QuickSearch(r.Context(), orgIDFrom(r), req.Value)
	if err != nil {
		a.writeDomainError(w, err, "Quick search failed")
		return
	}
	a.respondJSON(w, resp, http.StatusOK)
}
