package stats

import "github.com/gi8lino/jirabridge/internal/normalize"

// Statistics counts issues per status, priority and issue type.
type Statistics struct {
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"byStatus"`
	ByPriority  map[string]int `json:"byPriority"`
	ByIssueType map[string]int `json:"byIssueType"`
}

// Aggregate counts issues. Empty values fall into the normalizer's default buckets.
func Aggregate(issues []normalize.Issue) Statistics {
	s := Statistics{
		Total:       len(issues),
		ByStatus:    map[string]int{},
		ByPriority:  map[string]int{},
		ByIssueType: map[string]int{},
	}
	for _, issue := range issues {
		s.ByStatus[or(issue.Status, normalize.DefaultStatus)]++
		s.ByPriority[or(issue.Priority, normalize.DefaultPriority)]++
		s.ByIssueType[or(issue.IssueType, normalize.DefaultIssueType)]++
	}
	return s
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
