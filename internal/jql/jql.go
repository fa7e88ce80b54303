package jql

import (
	"strings"
)

// Filters is the structured filter object accepted by the import endpoint.
type Filters struct {
	ProjectKey string   `json:"projectKey,omitempty"`
	IssueTypes []string `json:"issueTypes,omitempty"`
	Status     []string `json:"status,omitempty"`
	Labels     []string `json:"labels,omitempty"`
	Sprint     string   `json:"sprint,omitempty"`
}

// Build translates filters into a JQL string with one AND-joined clause per set field.
// It returns "" when no field is set. The JQL itself is not validated.
func Build(f Filters) string {
	var clauses []string

	if f.ProjectKey != "" {
		clauses = append(clauses, "project = "+f.ProjectKey)
	}
	if len(f.IssueTypes) > 0 {
		clauses = append(clauses, "type in ("+QuoteList(f.IssueTypes)+")")
	}
	if len(f.Status) > 0 {
		clauses = append(clauses, "status in ("+QuoteList(f.Status)+")")
	}
	if len(f.Labels) > 0 {
		clauses = append(clauses, "labels in ("+QuoteList(f.Labels)+")")
	}
	if f.Sprint != "" {
		clauses = append(clauses, "sprint = "+Quote(f.Sprint))
	}

	return strings.Join(clauses, " AND ")
}

// KeyIn returns a "key in (...)" clause for the given issue keys.
func KeyIn(keys []string) string {
	return "key in (" + QuoteList(keys) + ")"
}

// And joins non-empty clauses with " AND ".
func And(clauses ...string) string {
	out := make([]string, 0, len(clauses))
	for _, c := range clauses {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return strings.Join(out, " AND ")
}

// Quote wraps s in double quotes, escaping backslashes and embedded quotes.
func Quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// QuoteList quotes every value and joins them with commas.
func QuoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = Quote(v)
	}
	return strings.Join(quoted, ",")
}
