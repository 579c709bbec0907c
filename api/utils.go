package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"iochunt/core"
	"iochunt/threat"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

const (
	maxErrorMessageLength = 500
	maxRequestBodyBytes   = 1 << 20
	maxBulkBodyBytes      = 10 << 20
)

var (
	connectionStringPattern = regexp.MustCompile(`(?:mongodb|mongodb\+srv|sqlite|redis|clickhouse|nats)://[^\s"']+`)
	privateIPPatterns       = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:10|127)(?:\.\d{1,3}){3}(?::\d{1,5})?\b`),
		regexp.MustCompile(`\b172\.(?:1[6-9]|2[0-9]|3[01])(?:\.\d{1,3}){2}(?::\d{1,5})?\b`),
		regexp.MustCompile(`\b192\.168(?:\.\d{1,3}){2}(?::\d{1,5})?\b`),
	}
	credentialPattern = regexp.MustCompile(`(?i)(password|secret|token)[:=]\s*["']?[^"'\s]+["']?`)
)

// ErrorResponse is the JSON body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// sanitizeErrorMessage removes connection strings, private addresses and credentials
// before a message is sent to clients
func sanitizeErrorMessage(message string) string {
	message = connectionStringPattern.ReplaceAllString(message, "[DATABASE_CONNECTION]")
	for _, p := range privateIPPatterns {
		message = p.ReplaceAllString(message, "[PRIVATE_IP]")
	}
	message = credentialPattern.ReplaceAllString(message, "$1=[REDACTED]")

	if len(message) > maxErrorMessageLength {
		message = message[:maxErrorMessageLength-3] + "..."
	}
	return message
}

// respondJSON writes a JSON response with proper error handling
func (a *API) respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.logger.Errorw("Failed to encode JSON response",
			"error", err,
			"data_type", fmt.Sprintf("%T", data))
	}
}

// writeError logs the full error and replies with a sanitized JSON message
func (a *API) writeError(w http.ResponseWriter, statusCode int, message string, err error) {
	if statusCode >= http.StatusInternalServerError {
		if err != nil {
			a.logger.Errorw(message, "error", err.Error(), "status_code", statusCode)
		} else {
			a.logger.Errorw(message, "status_code", statusCode)
		}
	} else if err != nil {
		a.logger.Debugw(message, "error", err.Error(), "status_code", statusCode)
	}

	a.respondJSON(w, ErrorResponse{Error: sanitizeErrorMessage(message)}, statusCode)
}

// writeDomainError maps domain sentinels to status codes. Domain error text is
// written as is; anything else becomes a generic 500 with fallback.
func (a *API) writeDomainError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, core.ErrValidation):
		a.writeError(w, http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, core.ErrNotFound):
		a.writeError(w, http.StatusNotFound, err.Error(), err)
	case errors.Is(err, core.ErrConflict):
		a.writeError(w, http.StatusConflict, err.Error(), err)
	case errors.Is(err, threat.ErrTooManyHunts):
		a.writeError(w, http.StatusTooManyRequests, err.Error(), err)
	case errors.Is(err, core.ErrSourceUnavailable):
		a.writeError(w, http.StatusServiceUnavailable, err.Error(), err)
	default:
		a.writeError(w, http.StatusInternalServerError, fallback, err)
	}
}

// decodeJSONBody decodes a JSON request body with a size limit and runs struct validation
func (a *API) decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}, maxBytes int64) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			a.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON syntax at byte offset %d", syntaxError.Offset), err)
		case errors.As(err, &unmarshalTypeError):
			a.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid type for field '%s'", unmarshalTypeError.Field), err)
		case errors.As(err, &maxBytesError):
			a.writeError(w, http.StatusRequestEntityTooLarge, "Request body too large", err)
		case strings.HasPrefix(err.Error(), "json: unknown field"):
			a.writeError(w, http.StatusBadRequest, "JSON contains "+strings.TrimPrefix(err.Error(), "json: "), err)
		default:
			a.writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		}
		return false
	}

	if err := a.validate.Struct(dst); err != nil {
		a.writeError(w, http.StatusBadRequest, validationMessage(err), err)
		return false
	}
	return true
}

// validationMessage renders validator errors as "field: rule" pairs
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Validation failed"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
	}
	return "Validation failed: " + strings.Join(parts, ", ")
}

func orgIDFrom(r *http.Request) string {
	return mux.Vars(r)["org_id"]
}

func idFrom(r *http.Request) string {
	return mux.Vars(r)["id"]
}
