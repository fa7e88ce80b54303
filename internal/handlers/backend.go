package handlers

import (
	"context"
	"time"

	"github.com/gi8lino/jirabridge/internal/config"
	"github.com/gi8lino/jirabridge/internal/jira"
	"github.com/gi8lino/jirabridge/internal/jql"
	"github.com/gi8lino/jirabridge/internal/normalize"
	"github.com/gi8lino/jirabridge/internal/templates"
)

// Tracker is the subset of the Jira client used by the handlers.
type Tracker interface {
	SearchIssues(ctx context.Context, opts jira.SearchOptions) (*jira.SearchResult, error)
	GetIssues(ctx context.Context, keys []string, fields ...string) ([]jira.RawIssue, error)
	BuildQuery(f jql.Filters) string
}

// CredentialsLoader loads the Jira credentials for one request.
type CredentialsLoader func() (config.Credentials, error)

// TrackerFactory builds a Tracker for the given credentials.
type TrackerFactory func(config.Credentials) (Tracker, error)

// Backend bundles what the Jira handlers need per request.
type Backend struct {
	LoadCredentials CredentialsLoader
	NewTracker      TrackerFactory
	Normalizer      *normalize.Normalizer
	Queries         *templates.QuerySet
	Fields          []string         // fields requested from Jira
	Now             func() time.Time // defaults to time.Now
}

// tracker loads credentials and builds a Tracker. Nothing touches the network
// before both succeed.
func (b Backend) tracker() (Tracker, error) {
	creds, err := b.LoadCredentials()
	if err != nil {
		return nil, err
	}
	return b.NewTracker(creds)
}

func (b Backend) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

func (b Backend) normalizer() *normalize.Normalizer {
	if b.Normalizer == nil {
		return normalize.New(nil)
	}
	return b.Normalizer
}
