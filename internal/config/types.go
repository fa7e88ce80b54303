package config

// AppConfig is the optional YAML application config.
type AppConfig struct {
	CustomFields map[string]string `yaml:"customFields"` // customfield_<n> -> output name
	SearchFields []string          `yaml:"searchFields"` // fields requested by import searches
	SavedQueries map[string]string `yaml:"savedQueries"` // name -> JQL template
}

// Credentials identify the Jira site and the account used to query it.
type Credentials struct {
	URL      string // site URL, e.g. https://acme.atlassian.net
	Email    string
	APIToken string
	Source   string // where the values came from
}
