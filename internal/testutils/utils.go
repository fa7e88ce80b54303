package testutils

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gi8lino/jirabridge/internal/jira"
	"github.com/gi8lino/jirabridge/internal/jql"
)

// MustWriteFile writes data to a file or fails the test, creating parent directories if needed.
func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create directory %q: %v", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test file %q: %v", path, err)
	}
}

// MockTracker is a stub Jira tracker with overridable behavior.
type MockTracker struct {
	SearchFn    func(ctx context.Context, opts jira.SearchOptions) (*jira.SearchResult, error)
	GetIssuesFn func(ctx context.Context, keys []string, fields ...string) ([]jira.RawIssue, error)
}

// SearchIssues calls SearchFn or returns an empty page.
func (m *MockTracker) SearchIssues(ctx context.Context, opts jira.SearchOptions) (*jira.SearchResult, error) {
	if m.SearchFn == nil {
		return &jira.SearchResult{Issues: []jira.RawIssue{}, IsLast: true}, nil
	}
	return m.SearchFn(ctx, opts)
}

// GetIssues calls GetIssuesFn or returns no issues.
func (m *MockTracker) GetIssues(ctx context.Context, keys []string, fields ...string) ([]jira.RawIssue, error) {
	if m.GetIssuesFn == nil {
		return []jira.RawIssue{}, nil
	}
	return m.GetIssuesFn(ctx, keys, fields...)
}

// BuildQuery uses the real filter translation.
func (m *MockTracker) BuildQuery(f jql.Filters) string {
	return jql.Build(f)
}

// RawIssue builds a minimal raw issue with the given key, status and priority.
func RawIssue(key, status, priority string) jira.RawIssue {
	fields := &jira.RawFields{Summary: "Summary of " + key}
	if status != "" {
		fields.Status = &jira.NamedField{Name: status}
	}
	if priority != "" {
		fields.Priority = &jira.NamedField{Name: priority}
	}
	return jira.RawIssue{ID: key, Key: key, Fields: fields}
}
