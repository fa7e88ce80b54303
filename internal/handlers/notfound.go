package handlers

import (
	"net/http"
)

// AvailableEndpoints is listed in every 404 body.
var AvailableEndpoints = []string{
	"POST /jira/import - Import Jira issues",
	"POST /jira/issues - Get specific issues by keys",
}

type notFoundResponse struct {
	Success            bool     `json:"success"`
	Error              string   `json:"error"`
	Message            string   `json:"message"`
	AvailableEndpoints []string `json:"availableEndpoints"`
}

// NotFound answers unknown paths with the list of available endpoints.
func NotFound() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, notFoundResponse{
			Error:              "Not Found",
			Message:            "Path " + r.URL.Path + " not found",
			AvailableEndpoints: AvailableEndpoints,
		})
	}
}
