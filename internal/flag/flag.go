package flag

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/containeroo/tinyflags"

	"github.com/gi8lino/jirabridge/internal/logging"
	"github.com/gi8lino/jirabridge/internal/utils"
)

// Config holds all application and Jira-specific configuration.
type Config struct {
	ListenAddr      string            // HTTP bind address (e.g. ":8080")
	RoutePrefix     string            // Canonical path prefix ("" or "/jirabridge")
	Config          string            // Path to the optional YAML app config
	CredentialsFile string            // Path to the Jira credentials file
	JiraTimeout     time.Duration     // Ceiling per Jira HTTP attempt
	JiraRetries     int               // Retries after the first attempt
	Preflight       bool              // Verify Jira access at startup
	Telemetry       bool              // Export traces and metrics
	OTLPEndpoint    string            // OTLP/HTTP metrics endpoint (host:port)
	Debug           bool              // Enables debug logging
	LogFormat       logging.LogFormat // Log output format (text or json)
}

// ParseArgs parses CLI arguments into Config, handling version/help flags.
func ParseArgs(version string, args []string, out io.Writer, getEnv func(string) string) (Config, error) {
	var cfg Config
	tf := tinyflags.NewFlagSet("jirabridge", tinyflags.ContinueOnError)
	tf.Version(version)
	tf.SetGetEnvFn(getEnv)
	tf.EnvPrefix("JIRABRIDGE")
	tf.SetOutput(out)

	// Server
	listenAddr := tf.TCPAddr("listen-address", &net.TCPAddr{IP: nil, Port: 8080}, "HTTP server listen address").
		Placeholder("ADDR:PORT").
		Value()

	route := tf.String("route-prefix", "", "Path prefix to mount the app (e.g., /jirabridge). Empty = root.").
		Finalize(func(input string) string {
			return utils.NormalizeRoutePrefix(input)
		}).
		Placeholder("PATH").
		Value()

	tf.StringVar(&cfg.Config, "config", "", "Path to the optional YAML app config").
		Placeholder("FILE").
		Value()

	// Jira
	tf.StringVar(&cfg.CredentialsFile, "credentials-file", "config/jira-credentials.json", "Path to the Jira credentials file (falls back to JIRA_URL, JIRA_EMAIL, JIRA_API_TOKEN)").
		Placeholder("FILE").
		Value()

	jiraTimeout := tf.Duration("jira-timeout", 30*time.Second, "Timeout per Jira request attempt").
		Validate(func(d time.Duration) error {
			if d <= 0 {
				return fmt.Errorf("timeout must be > 0.")
			}
			return nil
		}).
		Value()

	jiraRetries := tf.Int("jira-retries", 3, "Retries for network errors, 429 and 5xx responses").
		Validate(func(n int) error {
			if n < 0 {
				return fmt.Errorf("retries must be >= 0.")
			}
			return nil
		}).
		Value()

	tf.BoolVar(&cfg.Preflight, "preflight", false, "Verify Jira credentials and custom fields at startup").Value()

	// Telemetry
	tf.BoolVar(&cfg.Telemetry, "otel", false, "Export traces and metrics to the log output").Value()
	tf.StringVar(&cfg.OTLPEndpoint, "otel-endpoint", "", "OTLP/HTTP endpoint for metrics (requires --otel)").
		Placeholder("HOST:PORT").
		Value()

	// Logging
	tf.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging").Value()
	logFormat := tf.String("log-format", "text", "Log format").Choices("text", "json").Short("l").Value()

	// Parse
	if err := tf.Parse(args); err != nil {
		return Config{}, err
	}

	// Post-parse
	cfg.ListenAddr = (*listenAddr).String()
	cfg.RoutePrefix = *route
	cfg.JiraTimeout = *jiraTimeout
	cfg.JiraRetries = *jiraRetries
	cfg.LogFormat = logging.LogFormat(*logFormat)

	return cfg, nil
}
