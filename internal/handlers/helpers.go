package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gi8lino/jirabridge/internal/config"
	"github.com/gi8lino/jirabridge/internal/jira"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// errorResponse is the envelope for every failed request.
type errorResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	Details    any    `json:"details"`
	StatusCode int    `json:"statusCode"`
}

// errInvalidJSON marks a body that is not valid JSON.
var errInvalidJSON = errors.New("Invalid JSON body") // nolint:staticcheck

// errInvalidBody marks a validated body that still does not fit the request type.
var errInvalidBody = errors.New("Invalid request body") // nolint:staticcheck

// errNotObject marks a JSON body that is not an object.
var errNotObject = errors.New("Request body must be a JSON object") // nolint:staticcheck

// writeJSON writes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) // nolint:errcheck
}

// writeValidationError answers 400 with field-level messages.
func writeValidationError(w http.ResponseWriter, details []string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:      "Validation failed",
		Details:    details,
		StatusCode: http.StatusBadRequest,
	})
}

// writeError maps err to the error envelope. Upstream payloads and credentials never reach the client.
func writeError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	resp := errorResponse{
		Error:      "Internal server error",
		Details:    map[string]any{},
		StatusCode: http.StatusInternalServerError,
	}

	var je *jira.Error
	switch {
	case errors.As(err, &je):
		resp.Error = je.Message
		resp.Details = je.Details()
		resp.StatusCode = je.StatusCode
	case errors.Is(err, config.ErrCredentialsNotFound):
		resp.Error = config.ErrCredentialsNotFound.Error()
	case errors.Is(err, config.ErrInvalidCredentials):
		resp.Error = config.ErrInvalidCredentials.Error()
	}
	if resp.StatusCode < 400 || resp.StatusCode > 599 {
		resp.StatusCode = http.StatusInternalServerError
	}

	logger.Error("request failed", "handler", op, "status", resp.StatusCode, "error", err)
	writeJSON(w, resp.StatusCode, resp)
}

// decodeBody reads a JSON object. An empty body decodes to an empty object and
// a JSON null to a nil map.
func decodeBody(r *http.Request) (map[string]any, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, errInvalidJSON
	}
	if len(data) == 0 {
		return map[string]any{}, nil
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, errInvalidJSON
	}
	switch body := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return body, nil
	default:
		return nil, errNotObject
	}
}

// convert re-encodes a validated body into a typed request.
func convert(body map[string]any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
