package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gi8lino/jirabridge/internal/normalize"
	"github.com/gi8lino/jirabridge/internal/utils"
	"github.com/gi8lino/jirabridge/internal/validate"
)

type issuesRequest struct {
	IssueKeys []string `json:"issueKeys"`
}

type issuesResponse struct {
	Success   bool              `json:"success"`
	Issues    []normalize.Issue `json:"issues"`
	Summary   issuesSummary     `json:"summary"`
	FetchedAt string            `json:"fetchedAt"`
}

type issuesSummary struct {
	Requested   int      `json:"requested"`
	Found       int      `json:"found"`
	Missing     int      `json:"missing"`
	MissingKeys []string `json:"missingKeys"`
}

// IssuesHandler fetches issues by key and reports keys Jira did not return.
func IssuesHandler(b Backend, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("issues handler invoked", "method", r.Method, "path", r.URL.Path)

		body, err := decodeBody(r)
		if err != nil {
			writeValidationError(w, []string{err.Error()})
			return
		}

		if res := validate.IssueKeysRequest(body); !res.Valid {
			writeValidationError(w, res.Errors)
			return
		}

		var req issuesRequest
		if err := convert(body, &req); err != nil {
			logger.Warn("issues body does not fit request shape", "error", err)
			writeValidationError(w, []string{errInvalidBody.Error()})
			return
		}

		tracker, err := b.tracker()
		if err != nil {
			writeError(w, logger, "issues", err)
			return
		}

		logger.Info("fetching issues", "keys", req.IssueKeys)

		raws, err := tracker.GetIssues(r.Context(), req.IssueKeys, b.Fields...)
		if err != nil {
			writeError(w, logger, "issues", err)
			return
		}

		issues := b.normalizer().Issues(raws)
		missing := missingKeys(req.IssueKeys, issues)

		logger.Info("issues fetched successfully",
			"requested", len(req.IssueKeys),
			"found", len(issues),
			"missing", len(missing),
		)

		writeJSON(w, http.StatusOK, issuesResponse{
			Success: true,
			Issues:  issues,
			Summary: issuesSummary{
				Requested:   len(req.IssueKeys),
				Found:       len(issues),
				Missing:     len(missing),
				MissingKeys: missing,
			},
			FetchedAt: utils.ISOTimestamp(b.now()),
		})
	}
}

// missingKeys returns the requested keys absent from issues, by exact match.
func missingKeys(requested []string, issues []normalize.Issue) []string {
	found := make(map[string]struct{}, len(issues))
	for _, issue := range issues {
		found[issue.Key] = struct{}{}
	}
	missing := []string{}
	for _, key := range requested {
		if _, ok := found[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}
