package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gi8lino/jirabridge/internal/jira"
	"github.com/gi8lino/jirabridge/internal/jql"
	"github.com/gi8lino/jirabridge/internal/normalize"
	"github.com/gi8lino/jirabridge/internal/stats"
	"github.com/gi8lino/jirabridge/internal/templates"
	"github.com/gi8lino/jirabridge/internal/utils"
	"github.com/gi8lino/jirabridge/internal/validate"
)

// importRequest is the typed form of a validated import body.
type importRequest struct {
	ProjectKey string       `json:"projectKey"`
	Filters    *jql.Filters `json:"filters"`
	JQL        string       `json:"jql"`
	SavedQuery string       `json:"savedQuery"`
	MaxResults int          `json:"maxResults"`
	StartAt    int          `json:"startAt"`
}

type importResponse struct {
	Success    bool              `json:"success"`
	Issues     []normalize.Issue `json:"issues"`
	Pagination pagination        `json:"pagination"`
	Statistics stats.Statistics  `json:"statistics"`
	Query      queryInfo         `json:"query"`
}

type pagination struct {
	Total         int    `json:"total"`
	StartAt       int    `json:"startAt"`
	MaxResults    int    `json:"maxResults"`
	Returned      int    `json:"returned"`
	IsLast        bool   `json:"isLast"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

type queryInfo struct {
	JQL        string `json:"jql"`
	ExecutedAt string `json:"executedAt"`
}

// ImportHandler runs a JQL search built from the request and returns normalized
// issues with pagination and statistics.
func ImportHandler(b Backend, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("import handler invoked", "method", r.Method, "path", r.URL.Path)

		body, err := decodeBody(r)
		if err != nil {
			writeValidationError(w, []string{err.Error()})
			return
		}

		if res := validate.ImportRequest(body); !res.Valid {
			writeValidationError(w, res.Errors)
			return
		}

		var req importRequest
		if err := convert(body, &req); err != nil {
			logger.Warn("import body does not fit request shape", "error", err)
			writeValidationError(w, []string{errInvalidBody.Error()})
			return
		}

		tracker, err := b.tracker()
		if err != nil {
			writeError(w, logger, "import", err)
			return
		}

		query, err := buildJQL(req, body, tracker, b.Queries)
		if err != nil {
			writeValidationError(w, []string{err.Error()})
			return
		}
		if query == "" {
			writeValidationError(w, []string{"Filters produced an empty JQL query"})
			return
		}

		if req.MaxResults == 0 {
			req.MaxResults = jira.DefaultMaxResults
		}

		logger.Info("executing jql query", "jql", query, "maxResults", req.MaxResults, "startAt", req.StartAt)

		result, err := tracker.SearchIssues(r.Context(), jira.SearchOptions{
			JQL:        query,
			MaxResults: req.MaxResults,
			StartAt:    req.StartAt,
			Fields:     b.Fields,
		})
		if err != nil {
			writeError(w, logger, "import", err)
			return
		}

		issues := b.normalizer().Issues(result.Issues)

		logger.Info("jira import successful", "returned", len(issues), "total", result.Total)

		writeJSON(w, http.StatusOK, importResponse{
			Success: true,
			Issues:  issues,
			Pagination: pagination{
				Total:         result.Total,
				StartAt:       result.StartAt,
				MaxResults:    result.MaxResults,
				Returned:      len(issues),
				IsLast:        result.IsLast,
				NextPageToken: result.NextPageToken,
			},
			Statistics: stats.Aggregate(issues),
			Query: queryInfo{
				JQL:        query,
				ExecutedAt: utils.ISOTimestamp(b.now()),
			},
		})
	}
}

// buildJQL picks the query: explicit jql, then a saved query, then projectKey
// plus filters, then filters alone.
func buildJQL(req importRequest, body map[string]any, tracker Tracker, queries *templates.QuerySet) (string, error) {
	if q := strings.TrimSpace(req.JQL); q != "" {
		return q, nil
	}

	if req.SavedQuery != "" {
		q, err := queries.Render(req.SavedQuery, body)
		if errors.Is(err, templates.ErrUnknownQuery) {
			return "", fmt.Errorf("Unknown savedQuery %q", req.SavedQuery) // nolint:staticcheck
		}
		return q, err
	}

	var filters string
	if req.Filters != nil {
		filters = tracker.BuildQuery(*req.Filters)
	}
	if req.ProjectKey != "" {
		return jql.And("project = "+req.ProjectKey, filters), nil
	}
	return filters, nil
}
