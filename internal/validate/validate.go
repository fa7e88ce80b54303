package validate

import (
	"encoding/json"
	"math"
)

// MaxIssueKeys is the largest accepted issueKeys batch.
const MaxIssueKeys = 50

// Bounds for maxResults.
const (
	MinMaxResults = 1
	MaxMaxResults = 100
)

// MaxStartAt is the largest offset Jira accepts.
const MaxStartAt = math.MaxInt32

// Result is the outcome of a validation. Checks never fail; they collect every problem.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

func result(errs []string) Result {
	if errs == nil {
		errs = []string{}
	}
	return Result{Valid: len(errs) == 0, Errors: errs}
}

// ImportRequest validates the body of an import request.
func ImportRequest(body map[string]any) Result {
	if body == nil {
		return result([]string{"Request body is required"})
	}

	var errs []string

	if !present(body["projectKey"]) && !present(body["filters"]) {
		errs = append(errs, "Either projectKey or filters must be provided")
	}

	for _, key := range []string{"projectKey", "jql", "savedQuery"} {
		if v, ok := body[key]; ok && v != nil && !isString(v) {
			errs = append(errs, key+" must be a string")
		}
	}

	if v, ok := body["maxResults"]; ok {
		n, isNum := number(v)
		if !isNum || n < MinMaxResults || n > MaxMaxResults || n != math.Trunc(n) {
			errs = append(errs, "maxResults must be a number between 1 and 100")
		}
	}

	if v, ok := body["startAt"]; ok {
		n, isNum := number(v)
		if !isNum || n < 0 || n > MaxStartAt || n != math.Trunc(n) {
			errs = append(errs, "startAt must be a non-negative integer")
		}
	}

	if v := body["filters"]; present(v) {
		filters, ok := v.(map[string]any)
		if !ok {
			errs = append(errs, "filters must be an object")
		} else {
			errs = append(errs, checkFilters(filters)...)
		}
	}

	return result(errs)
}

func checkFilters(filters map[string]any) []string {
	var errs []string
	for _, key := range []string{"issueTypes", "status", "labels"} {
		v, ok := filters[key]
		if !ok || v == nil {
			continue
		}
		items, ok := v.([]any)
		if !ok {
			errs = append(errs, "filters."+key+" must be an array")
			continue
		}
		for _, item := range items {
			if !isString(item) {
				errs = append(errs, "filters."+key+" must contain only strings")
				break
			}
		}
	}
	for _, key := range []string{"projectKey", "sprint"} {
		if v, ok := filters[key]; ok && v != nil && !isString(v) {
			errs = append(errs, "filters."+key+" must be a string")
		}
	}
	return errs
}

// IssueKeysRequest validates the body of an issues-by-key request.
func IssueKeysRequest(body map[string]any) Result {
	if body == nil {
		return result([]string{"Request body is required"})
	}

	var errs []string

	v := body["issueKeys"]
	keys, isArray := v.([]any)
	switch {
	case !present(v):
		errs = append(errs, "issueKeys is required")
	case !isArray:
		errs = append(errs, "issueKeys must be an array")
	case len(keys) == 0:
		errs = append(errs, "issueKeys array cannot be empty")
	case len(keys) > MaxIssueKeys:
		errs = append(errs, "issueKeys array cannot contain more than 50 items")
	default:
		for _, k := range keys {
			if s, ok := k.(string); !ok || s == "" {
				errs = append(errs, "issueKeys must contain only non-empty strings")
				break
			}
		}
	}

	return result(errs)
}

// present mirrors JSON truthiness: null, false, 0 and "" count as absent.
func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	default:
		return true
	}
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

// number reports v as float64 when it is a JSON number.
func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
