package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gi8lino/jirabridge/internal/handlers"
	"github.com/gi8lino/jirabridge/internal/middleware"
	"github.com/gi8lino/jirabridge/internal/utils"
)

// NewRouter creates the HTTP router. Jira requests are dispatched on the path:
// anything containing "/import" is an import, anything containing "/issues"
// fetches issues by key, and the rest answers 404.
func NewRouter(b handlers.Backend, routePrefix string, logger *slog.Logger) http.Handler {
	root := http.NewServeMux()

	// Health checks (no logging)
	root.Handle("GET /healthz", handlers.Healthz())

	importHandler := handlers.ImportHandler(b, logger)
	issuesHandler := handlers.IssuesHandler(b, logger)
	notFound := handlers.NotFound()

	jira := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/import"):
			importHandler(w, r)
		case strings.Contains(r.URL.Path, "/issues"):
			issuesHandler(w, r)
		default:
			notFound(w, r)
		}
	})

	root.Handle("/", middleware.Chain(
		jira,
		middleware.LoggingMiddleware(logger),
		middleware.CORS(),
		middleware.Recover(logger),
	))

	return mountUnderPrefix(root, utils.NormalizeRoutePrefix(routePrefix))
}
