package normalize

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"

	"github.com/gi8lino/jirabridge/internal/adf"
	"github.com/gi8lino/jirabridge/internal/jira"
)

// Defaults applied when a field is missing or empty.
const (
	DefaultPriority  = "Medium"
	DefaultStatus    = "Unknown"
	DefaultIssueType = "Unknown"
)

// Issue is the flattened issue shape returned to API clients.
type Issue struct {
	ID           string         `json:"id"`
	Key          string         `json:"key"`
	Summary      string         `json:"summary"`
	Description  string         `json:"description"`
	IssueType    string         `json:"issueType"`
	Priority     string         `json:"priority"`
	Status       string         `json:"status"`
	Assignee     *Person        `json:"assignee"`
	Reporter     *Person        `json:"reporter"`
	Labels       []string       `json:"labels"`
	Components   []string       `json:"components"`
	Created      string         `json:"created"`
	Updated      string         `json:"updated"`
	CustomFields map[string]any `json:"customFields"`
}

// Person is an assignee or reporter.
type Person struct {
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
	AccountID    string `json:"accountId"`
}

// DefaultCustomFields returns the built-in custom field id to name table.
func DefaultCustomFields() map[string]string {
	return map[string]string{
		"customfield_10000": "acceptanceCriteria",
		"customfield_10001": "storyPoints",
		"customfield_10002": "epic",
		"customfield_10003": "sprint",
	}
}

// Normalizer converts raw issues using an injectable custom field table.
type Normalizer struct {
	customFields map[string]string
}

// New returns a Normalizer. A nil table uses DefaultCustomFields.
func New(customFields map[string]string) *Normalizer {
	if customFields == nil {
		customFields = DefaultCustomFields()
	}
	return &Normalizer{customFields: maps.Clone(customFields)}
}

// Issue normalizes one raw issue. It returns nil when the record has no fields object.
func (n *Normalizer) Issue(raw jira.RawIssue) *Issue {
	f := raw.Fields
	if f == nil {
		return nil
	}

	issue := &Issue{
		ID:           raw.ID,
		Key:          raw.Key,
		Summary:      f.Summary,
		Description:  adf.FromJSON(f.Description),
		IssueType:    nameOr(f.IssueType, DefaultIssueType),
		Priority:     nameOr(f.Priority, DefaultPriority),
		Status:       nameOr(f.Status, DefaultStatus),
		Assignee:     person(f.Assignee),
		Reporter:     person(f.Reporter),
		Labels:       []string{},
		Components:   []string{},
		Created:      f.Created,
		Updated:      f.Updated,
		CustomFields: n.custom(f.Custom),
	}
	if f.Labels != nil {
		issue.Labels = append(issue.Labels, f.Labels...)
	}
	for _, c := range f.Components {
		issue.Components = append(issue.Components, c.Name)
	}
	return issue
}

// Issues normalizes raws in order, skipping records without fields.
// The result is never nil.
func (n *Normalizer) Issues(raws []jira.RawIssue) []Issue {
	out := make([]Issue, 0, len(raws))
	for _, raw := range raws {
		if issue := n.Issue(raw); issue != nil {
			out = append(out, *issue)
		}
	}
	return out
}

// custom maps customfield_<n> values to their configured names.
// Unknown ids keep their raw key; null values are dropped.
func (n *Normalizer) custom(raw map[string]json.RawMessage) map[string]any {
	out := make(map[string]any, len(raw))
	for _, id := range slices.Sorted(maps.Keys(raw)) {
		v, ok := decodeValue(raw[id])
		if !ok {
			continue
		}
		name := id
		if mapped, found := n.customFields[id]; found && mapped != "" {
			name = mapped
		}
		out[name] = v
	}
	return out
}

// decodeValue decodes a JSON value keeping numbers exact. Null and invalid input report false.
func decodeValue(raw json.RawMessage) (any, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

func nameOr(f *jira.NamedField, def string) string {
	if f == nil || f.Name == "" {
		return def
	}
	return f.Name
}

func person(u *jira.User) *Person {
	if u == nil {
		return nil
	}
	return &Person{
		DisplayName:  u.DisplayName,
		EmailAddress: u.EmailAddress,
		AccountID:    u.AccountID,
	}
}
