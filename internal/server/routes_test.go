package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gi8lino/jirabridge/internal/config"
	"github.com/gi8lino/jirabridge/internal/handlers"
	"github.com/gi8lino/jirabridge/internal/jira"
	"github.com/gi8lino/jirabridge/internal/server"
	"github.com/gi8lino/jirabridge/internal/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T, prefix string, buf *bytes.Buffer) http.Handler {
	t.Helper()

	tracker := &testutils.MockTracker{
		SearchFn: func(ctx context.Context, opts jira.SearchOptions) (*jira.SearchResult, error) {
			return &jira.SearchResult{Issues: []jira.RawIssue{testutils.RawIssue("ABC-1", "Done", "High")}, Total: 1, IsLast: true}, nil
		},
		GetIssuesFn: func(ctx context.Context, keys []string, fields ...string) ([]jira.RawIssue, error) {
			return []jira.RawIssue{testutils.RawIssue("ABC-1", "Done", "High")}, nil
		},
	}
	b := handlers.Backend{
		LoadCredentials: func() (config.Credentials, error) { return config.Credentials{}, nil },
		NewTracker:      func(config.Credentials) (handlers.Tracker, error) { return tracker, nil },
	}
	logger := slog.New(slog.NewTextHandler(buf, nil))
	return server.NewRouter(b, prefix, logger)
}

func TestNewRouter(t *testing.T) {
	t.Parallel()

	t.Run("GET /healthz", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		router := newRouter(t, "", &buf)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
		assert.Empty(t, buf.String())
	})

	t.Run("dispatches import by path", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		router := newRouter(t, "", &buf)

		for _, path := range []string{"/jira/import", "/.netlify/functions/jira/import", "/import/x"} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"projectKey":"ABC"}`)))

			require.Equal(t, http.StatusOK, rec.Code, path)
			var out map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
			assert.Contains(t, out, "pagination", path)
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		}
		assert.Contains(t, buf.String(), "msg=request")
	})

	t.Run("import wins over issues", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		router := newRouter(t, "", &buf)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/issues/import", strings.NewReader(`{"projectKey":"ABC"}`)))

		require.Equal(t, http.StatusOK, rec.Code)
		var out map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Contains(t, out, "pagination")
	})

	t.Run("dispatches issues by path", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		router := newRouter(t, "", &buf)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jira/issues", strings.NewReader(`{"issueKeys":["ABC-1"]}`)))

		require.Equal(t, http.StatusOK, rec.Code)
		var out map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Contains(t, out, "summary")
	})

	t.Run("OPTIONS preflight", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		router := newRouter(t, "", &buf)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/jira/import", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
		assert.Equal(t, "GET,POST,OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	})

	t.Run("unknown path", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		router := newRouter(t, "", &buf)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jira/other", nil))

		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "Path /jira/other not found")
	})

	t.Run("route prefix", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		router := newRouter(t, "api/", &buf)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec2 := httptest.NewRecorder()
		router.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusNotFound, rec2.Code)
	})
}
