package templates

import (
	"fmt"

	"github.com/gi8lino/jirabridge/internal/jql"
)

// jqlQuote quotes a single value for use in JQL.
func jqlQuote(v any) string {
	return jql.Quote(fmt.Sprint(v))
}

// jqlList renders a quoted, comma-separated JQL value list.
// It accepts []string, []any, or a single scalar.
func jqlList(v any) string {
	switch list := v.(type) {
	case nil:
		return ""
	case []string:
		return jql.QuoteList(list)
	case []any:
		values := make([]string, 0, len(list))
		for _, item := range list {
			values = append(values, fmt.Sprint(item))
		}
		return jql.QuoteList(values)
	default:
		return jql.Quote(fmt.Sprint(v))
	}
}

// templateDig returns the string value of m[key] if it exists and is a string.
// If m is itself a string, it is returned directly.
func templateDig(m any, key string) string {
	switch v := m.(type) {
	case map[string]any:
		if val, ok := v[key]; ok {
			if s, ok := val.(string); ok {
				return s
			}
		}
	case string:
		return v
	}
	return ""
}
