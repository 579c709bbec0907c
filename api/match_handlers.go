package api

import (
	"net/http"
)

// ReviewMatchRequest is the body of PUT /matches/{id}/review
type ReviewMatchRequest struct {
	Reviewed *bool  `json:"reviewed" validate:"required"`
	Actor    string `json:"actor,omitempty" validate:"max=255"`
}

// getMatch godoc
//
//	@Summary		Get match
//	@Tags			matches
//	@Produce		json
//	@Param			org_id	path		string	true	"Organization ID"
//	@Param			id		path		string	true	"Match ID"
//	@Success		200		{object}	core.Match
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/v1/orgs/{org_id}/matches/{id} [get]
func (a *API) getMatch(w http.ResponseWriter, r *http.Request) {
	match, err := a.deps.Matches.GetMatch(r.Context(), orgIDFrom(r), idFrom(r))
	if err != nil {
		a.writeDomainError(w, err, "Failed to retrieve match")
		return
	}
	a.respondJSON(w, match, http.StatusOK)
}

// reviewMatch godoc
//
//	@Summary		Review match
//	@Description	Marks a match reviewed (actor required) or unreviewed (attribution cleared)
//	@Tags			matches
//	@Accept			json
//	@Produce		json
//	@Param			org_id	path		string				true	"Organization ID"
//	@Param			id		path		string				true	"Match ID"
//	@Param			review	body		ReviewMatchRequest	true	"Review state"
//	@Success		200		{object}	core.Match
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/v1/orgs/{org_id}/matches/{id}/review [put]
func (a *API) reviewMatch(w http.ResponseWriter, r *http.Request) {
	var req ReviewMatchRequest
	if !a.decodeJSONBody(w, r, &req, maxRequestBodyBytes) {
		return
	}

	match, err := a.deps.Reviews.SetReviewed(r.Context(), orgIDFrom(r), idFrom(r), *req.Reviewed, req.Actor)
	if err != nil {
		a.writeDomainError(w, err, "Failed to review match")
		return
	}
	a.respondJSON(w, match, http.StatusOK)
}
