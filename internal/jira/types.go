package jira

import (
	"bytes"
	"encoding/json"
	"strings"
)

// CustomFieldPrefix marks deployment-specific fields in an issue's field set.
const CustomFieldPrefix = "customfield_"

// RawIssue is one issue record as returned by the search and issue endpoints.
// Fields is nil when the record carries no usable fields object.
type RawIssue struct {
	ID     string     `json:"id"`
	Key    string     `json:"key"`
	Self   string     `json:"self,omitempty"`
	Fields *RawFields `json:"fields,omitempty"`
}

// RawFields holds the subset of issue fields the normalizer reads.
// Decoding is lenient: values with an unexpected shape are treated as absent.
type RawFields struct {
	Summary     string
	Description json.RawMessage // ADF document, plain string, or null
	Status      *NamedField
	Priority    *NamedField
	IssueType   *NamedField
	Assignee    *User
	Reporter    *User
	Labels      []string
	Components  []NamedField
	Created     string
	Updated     string
	Custom      map[string]json.RawMessage // keyed by customfield_<n>
}

// NamedField is the {name} shape shared by status, priority, issue type and components.
type NamedField struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// User is a person reference such as assignee or reporter.
type User struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

// UnmarshalJSON keeps the fields object only when it is a JSON object.
// It never fails: a record that is not an object decodes to an issue with nil
// Fields, so one bad element does not break a whole search page.
func (i *RawIssue) UnmarshalJSON(data []byte) error {
	*i = RawIssue{}

	var m map[string]json.RawMessage
	if json.Unmarshal(data, &m) != nil {
		return nil
	}

	i.ID = scalarString(m["id"])
	i.Key = scalarString(m["key"])
	i.Self = decodeString(m["self"])

	if raw := m["fields"]; isObject(raw) {
		var f RawFields
		if json.Unmarshal(raw, &f) == nil {
			i.Fields = &f
		}
	}
	return nil
}

// UnmarshalJSON decodes the known fields one by one and collects custom fields.
func (f *RawFields) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	f.Summary = decodeString(m["summary"])
	f.Description = m["description"]
	f.Status = decodeNamed(m["status"])
	f.Priority = decodeNamed(m["priority"])
	f.IssueType = decodeNamed(m["issuetype"])
	f.Assignee = decodeUser(m["assignee"])
	f.Reporter = decodeUser(m["reporter"])
	f.Labels = decodeStrings(m["labels"])
	f.Components = decodeNamedList(m["components"])
	f.Created = decodeString(m["created"])
	f.Updated = decodeString(m["updated"])

	f.Custom = map[string]json.RawMessage{}
	for k, v := range m {
		if strings.HasPrefix(k, CustomFieldPrefix) {
			f.Custom[k] = v
		}
	}
	return nil
}

// MarshalJSON writes the fields back in the tracker's wire shape.
func (f RawFields) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"summary":    f.Summary,
		"status":     f.Status,
		"priority":   f.Priority,
		"issuetype":  f.IssueType,
		"assignee":   f.Assignee,
		"reporter":   f.Reporter,
		"labels":     f.Labels,
		"components": f.Components,
		"created":    f.Created,
		"updated":    f.Updated,
	}
	if len(f.Description) > 0 {
		m["description"] = f.Description
	}
	for k, v := range f.Custom {
		m[k] = v
	}
	return json.Marshal(m)
}

// isObject reports whether raw holds a JSON object.
func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

// scalarString returns a JSON string or number as text.
func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func decodeString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func decodeStrings(raw json.RawMessage) []string {
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		var s string
		if json.Unmarshal(it, &s) == nil {
			out = append(out, s)
		}
	}
	return out
}

func decodeNamed(raw json.RawMessage) *NamedField {
	if !isObject(raw) {
		return nil
	}
	var n NamedField
	if json.Unmarshal(raw, &n) != nil {
		return nil
	}
	return &n
}

func decodeNamedList(raw json.RawMessage) []NamedField {
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return nil
	}
	out := make([]NamedField, 0, len(items))
	for _, it := range items {
		if n := decodeNamed(it); n != nil {
			out = append(out, *n)
		}
	}
	return out
}

func decodeUser(raw json.RawMessage) *User {
	if !isObject(raw) {
		return nil
	}
	var u User
	if json.Unmarshal(raw, &u) != nil {
		return nil
	}
	return &u
}

// SearchOptions are the parameters of a paginated JQL search.
type SearchOptions struct {
	JQL           string
	MaxResults    int      // defaults to DefaultMaxResults when <= 0
	StartAt       int      // offset of the first result
	Fields        []string // restricts the payload when non-empty
	NextPageToken string   // continuation token from a previous page
}

// SearchResult is one page of search results.
type SearchResult struct {
	Issues        []RawIssue `json:"issues"`
	Total         int        `json:"total"`
	StartAt       int        `json:"startAt"`
	MaxResults    int        `json:"maxResults"`
	IsLast        bool       `json:"isLast"`
	NextPageToken string     `json:"nextPageToken,omitempty"`
}

// searchResponse is the wire shape of GET /search/jql.
type searchResponse struct {
	Issues        []RawIssue `json:"issues"`
	Total         *int       `json:"total"`
	IsLast        bool       `json:"isLast"`
	NextPageToken string     `json:"nextPageToken"`
}
