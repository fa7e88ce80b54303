package templates

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/template"
)

// ErrUnknownQuery is returned when rendering a name that was not parsed.
var ErrUnknownQuery = errors.New("unknown saved query")

// QuerySet holds parsed saved queries keyed by name.
type QuerySet struct {
	tmpl *template.Template
}

// ParseQuery parses a single saved query template.
func ParseQuery(name, text string) (*template.Template, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("saved query %q is empty", name)
	}
	t, err := template.New(name).
		Funcs(TemplateFuncMap()).
		Option("missingkey=error").
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("saved query %q: %w", name, err)
	}
	return t, nil
}

// ParseQueries parses all saved queries and reports every failure at once.
func ParseQueries(queries map[string]string) (*QuerySet, error) {
	root := template.New("").Funcs(TemplateFuncMap()).Option("missingkey=error")

	var errs []error
	for _, name := range slices.Sorted(maps.Keys(queries)) {
		t, err := ParseQuery(name, queries[name])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := root.AddParseTree(name, t.Tree); err != nil {
			errs = append(errs, fmt.Errorf("saved query %q: %w", name, err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &QuerySet{tmpl: root}, nil
}

// Has reports whether a saved query with the given name exists.
func (q *QuerySet) Has(name string) bool {
	return q != nil && name != "" && q.tmpl.Lookup(name) != nil
}

// Names returns the sorted saved query names.
func (q *QuerySet) Names() []string {
	if q == nil {
		return nil
	}
	var names []string
	for _, t := range q.tmpl.Templates() {
		if t.Name() != "" {
			names = append(names, t.Name())
		}
	}
	slices.Sort(names)
	return names
}

// Render executes the named query with data and returns the trimmed JQL.
func (q *QuerySet) Render(name string, data any) (string, error) {
	if !q.Has(name) {
		return "", fmt.Errorf("%w %q", ErrUnknownQuery, name)
	}
	var sb strings.Builder
	if err := q.tmpl.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("render saved query %q: %w", name, err)
	}
	return strings.TrimSpace(sb.String()), nil
}
