package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gi8lino/jirabridge/internal/config"
	"github.com/gi8lino/jirabridge/internal/flag"
	"github.com/gi8lino/jirabridge/internal/handlers"
	"github.com/gi8lino/jirabridge/internal/jira"
	"github.com/gi8lino/jirabridge/internal/logging"
	"github.com/gi8lino/jirabridge/internal/normalize"
	"github.com/gi8lino/jirabridge/internal/server"
	"github.com/gi8lino/jirabridge/internal/telemetry"
	"github.com/gi8lino/jirabridge/internal/templates"
	"github.com/gi8lino/jirabridge/internal/utils"

	"github.com/containeroo/tinyflags"
)

// Run starts the jirabridge application.
func Run(ctx context.Context, version, commit string, args []string, w io.Writer, getEnv func(string) string) error {
	// Create a new context that listens for interrupt signals
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Parse command-line flags
	flags, err := flag.ParseArgs(version, args, w, getEnv)
	if err != nil {
		if tinyflags.IsHelpRequested(err) || tinyflags.IsVersionRequested(err) {
			fmt.Fprint(w, err.Error()) // nolint:errcheck
			return nil
		}
		return fmt.Errorf("parsing error: %w", err)
	}

	// Setup logger
	logger := logging.SetupLogger(flags.LogFormat, flags.Debug, w)

	logger.Info("Starting jirabridge",
		"version", version,
		"commit", commit,
	)

	// Setup telemetry
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Options{
		Enabled:      flags.Telemetry,
		ServiceName:  "jirabridge",
		Version:      version,
		Writer:       w,
		OTLPEndpoint: flags.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("telemetry error: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	// Load config
	cfg := config.Default()
	if flags.Config != "" {
		cfg, err = config.LoadConfig(flags.Config)
		if err != nil {
			return fmt.Errorf("loading config error: %w", err)
		}
	}

	// Validate config
	if err := config.ValidateConfig(&cfg); err != nil {
		return fmt.Errorf("validating config error: %w", err)
	}

	queries, err := templates.ParseQueries(cfg.SavedQueries)
	if err != nil {
		return fmt.Errorf("parsing saved queries error: %w", err)
	}

	policy := jira.DefaultRetryPolicy()
	policy.MaxRetries = uint64(flags.JiraRetries)
	policy.AttemptTimeout = flags.JiraTimeout

	newClient := func(creds config.Credentials) (*jira.Client, error) {
		apiURL, err := jira.APIURL(creds.URL)
		if err != nil {
			return nil, err
		}
		auth, err := jira.ResolveAuth(creds.Email, creds.APIToken)
		if err != nil {
			return nil, err
		}
		logger.Debug("jira auth",
			"credentials", creds,
			"header", utils.ObfuscateHeader(utils.GetAuthorizationHeader(auth)),
		)
		return jira.NewClient(apiURL, auth, policy, logger), nil
	}

	backend := handlers.Backend{
		LoadCredentials: func() (config.Credentials, error) {
			return config.LoadCredentials(flags.CredentialsFile, getEnv)
		},
		NewTracker: func(creds config.Credentials) (handlers.Tracker, error) {
			c, err := newClient(creds)
			if err != nil {
				logger.Error("invalid jira credentials", "error", err)
				return nil, config.ErrInvalidCredentials
			}
			return c, nil
		},
		Normalizer: normalize.New(cfg.CustomFields),
		Queries:    queries,
		Fields:     cfg.ImportFields(),
		Now:        time.Now,
	}

	if flags.Preflight {
		creds, err := backend.LoadCredentials()
		if err != nil {
			return fmt.Errorf("preflight error: %w", err)
		}
		c, err := newClient(creds)
		if err != nil {
			return fmt.Errorf("preflight error: %w", err)
		}
		if err := preflight(ctx, c, cfg, logger); err != nil {
			return fmt.Errorf("preflight error: %w", err)
		}
	}

	// Setup Server and run forever
	router := server.NewRouter(backend, flags.RoutePrefix, logger)
	writeTimeout := time.Duration(flags.JiraRetries+1)*flags.JiraTimeout + 30*time.Second

	err = server.RunHTTPServer(ctx, router, flags.ListenAddr, writeTimeout, logger)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("HTTP server exited with error", "error", err)
	}

	return err
}

// preflight checks that the credentials can list projects and warns about
// configured custom fields that the site does not know.
func preflight(ctx context.Context, c *jira.Client, cfg config.AppConfig, logger *slog.Logger) error {
	projects, err := c.GetProjects(ctx)
	if err != nil {
		return err
	}
	fields, err := c.GetFields(ctx)
	if err != nil {
		return err
	}

	known := make([]string, 0, len(fields))
	for _, f := range fields {
		known = append(known, f.ID)
	}
	for id, name := range cfg.CustomFields {
		if !slices.Contains(known, id) {
			logger.Warn("configured custom field not found in jira", "id", id, "name", name)
		}
	}

	logger.Info("jira preflight succeeded", "projects", len(projects), "fields", len(fields))
	return nil
}
