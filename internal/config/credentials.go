package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/containeroo/resolver"
	"github.com/spf13/viper"
)

// Environment variables read when the credentials file is absent or incomplete.
const (
	EnvURL      = "JIRA_URL"
	EnvEmail    = "JIRA_EMAIL"
	EnvAPIToken = "JIRA_API_TOKEN"
)

var (
	// ErrCredentialsNotFound means neither the file nor the environment provided all values.
	ErrCredentialsNotFound = errors.New("Jira credentials not found. Please provide credentials in config file or environment variables.") // nolint:staticcheck

	// ErrInvalidCredentials means a credentials source exists but could not be read.
	ErrInvalidCredentials = errors.New("Invalid Jira credentials configuration.") // nolint:staticcheck
)

// Complete reports whether all three values are set.
func (c Credentials) Complete() bool {
	return c.URL != "" && c.Email != "" && c.APIToken != ""
}

// LogValue masks the token so credentials can be logged safely.
func (c Credentials) LogValue() slog.Value {
	token := ""
	if c.APIToken != "" {
		token = "********"
	}
	return slog.GroupValue(
		slog.String("url", c.URL),
		slog.String("email", c.Email),
		slog.String("apiToken", token),
		slog.String("source", c.Source),
	)
}

// LoadCredentials reads credentials from path first and the environment second.
// Values may be resolver references such as "env:VAR" or "file:/path".
func LoadCredentials(path string, getEnv func(string) string) (Credentials, error) {
	if path != "" {
		creds, found, err := credentialsFromFile(path)
		if err != nil {
			return Credentials{}, err
		}
		if found && creds.Complete() {
			return creds, nil
		}
	}

	creds, err := resolveCredentials(Credentials{
		URL:      getEnv(EnvURL),
		Email:    getEnv(EnvEmail),
		APIToken: getEnv(EnvAPIToken),
		Source:   "env",
	})
	if err != nil {
		return Credentials{}, err
	}
	if !creds.Complete() {
		return Credentials{}, ErrCredentialsNotFound
	}
	return creds, nil
}

// credentialsFromFile reads jiraUrl, jiraEmail and jiraApiToken with viper.
// found is false when the file does not exist.
func credentialsFromFile(path string) (creds Credentials, found bool, err error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, false, nil
		}
		return Credentials{}, false, fmt.Errorf("%w: stat %s: %v", ErrInvalidCredentials, path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml", ".toml":
	default:
		v.SetConfigType("json")
	}
	if err := v.ReadInConfig(); err != nil {
		return Credentials{}, true, fmt.Errorf("%w: read %s: %v", ErrInvalidCredentials, path, err)
	}

	creds, err = resolveCredentials(Credentials{
		URL:      v.GetString("jiraUrl"),
		Email:    v.GetString("jiraEmail"),
		APIToken: v.GetString("jiraApiToken"),
		Source:   "file:" + path,
	})
	return creds, true, err
}

// resolveCredentials resolves each value and trims whitespace.
func resolveCredentials(c Credentials) (Credentials, error) {
	for _, field := range []struct {
		name string
		val  *string
	}{
		{"url", &c.URL},
		{"email", &c.Email},
		{"apiToken", &c.APIToken},
	} {
		raw := strings.TrimSpace(*field.val)
		if raw == "" {
			continue
		}
		resolved, err := resolver.ResolveVariable(raw)
		if err != nil {
			return Credentials{}, fmt.Errorf("%w: resolve %s from %s: %v", ErrInvalidCredentials, field.name, c.Source, err)
		}
		*field.val = strings.TrimSpace(resolved)
	}
	c.URL = strings.TrimRight(c.URL, "/")
	return c, nil
}
