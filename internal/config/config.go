package config

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gi8lino/jirabridge/internal/normalize"
	"github.com/gi8lino/jirabridge/internal/templates"
)

// customFieldPrefix mirrors the tracker's custom field id prefix.
const customFieldPrefix = "customfield_"

// DefaultSearchFields are the fields requested by import searches.
func DefaultSearchFields() []string {
	return []string{
		"key", "summary", "description", "status", "issuetype", "priority",
		"assignee", "reporter", "created", "updated", "resolutiondate",
		"duedate", "resolution", "labels", "components",
	}
}

// Default returns the config used when no file is given.
func Default() AppConfig {
	cfg := AppConfig{}
	setDefaults(&cfg)
	return cfg
}

// LoadConfig loads the application config from the given path.
func LoadConfig(path string) (AppConfig, error) {
	cfg := AppConfig{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}

	setDefaults(&cfg)
	return cfg, nil
}

// ValidateConfig checks the config and reports every problem at once.
func ValidateConfig(cfg *AppConfig) error {
	var errs []string

	for _, id := range slices.Sorted(maps.Keys(cfg.CustomFields)) {
		if !strings.HasPrefix(id, customFieldPrefix) {
			errs = append(errs, fmt.Sprintf("customFields: %q must start with %q", id, customFieldPrefix))
		}
		if strings.TrimSpace(cfg.CustomFields[id]) == "" {
			errs = append(errs, fmt.Sprintf("customFields: name for %q is required", id))
		}
	}

	seen := make(map[string]bool, len(cfg.SearchFields))
	for i, f := range cfg.SearchFields {
		switch {
		case strings.TrimSpace(f) == "":
			errs = append(errs, fmt.Sprintf("searchFields[%d]: must not be empty", i))
		case seen[f]:
			errs = append(errs, fmt.Sprintf("searchFields[%d]: duplicate field %q", i, f))
		}
		seen[f] = true
	}

	for _, name := range slices.Sorted(maps.Keys(cfg.SavedQueries)) {
		if _, err := templates.ParseQuery(name, cfg.SavedQueries[name]); err != nil {
			errs = append(errs, fmt.Sprintf("savedQueries: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config has errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ImportFields returns the search fields followed by the configured custom field ids.
func (c AppConfig) ImportFields() []string {
	fields := slices.Clone(c.SearchFields)
	for _, id := range slices.Sorted(maps.Keys(c.CustomFields)) {
		if !slices.Contains(fields, id) {
			fields = append(fields, id)
		}
	}
	return fields
}

// setDefaults fills in missing sections with default values.
func setDefaults(cfg *AppConfig) {
	if cfg.CustomFields == nil {
		cfg.CustomFields = normalize.DefaultCustomFields()
	}
	if len(cfg.SearchFields) == 0 {
		cfg.SearchFields = DefaultSearchFields()
	}
	if cfg.SavedQueries == nil {
		cfg.SavedQueries = map[string]string{}
	}
}
