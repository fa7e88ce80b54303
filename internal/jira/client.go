package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	gojira "github.com/andygrunwald/go-jira"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/gi8lino/jirabridge/internal/jql"
)

const (
	scopeName = "github.com/gi8lino/jirabridge/jira"

	// DefaultMaxResults is used when a search does not set MaxResults.
	DefaultMaxResults = 50

	apiPath = "/rest/api/3/"
)

// Client handles communication with the Jira REST API.
type Client struct {
	APIURL *url.URL     // Base API URL (must include /rest/api/3/)
	Client *http.Client // Underlying HTTP client
	auth   AuthFunc
	logger *slog.Logger
	tracer trace.Tracer
}

// APIURL derives the REST v3 base from the site URL, e.g. https://acme.atlassian.net.
func APIURL(siteURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(siteURL))
	if err != nil {
		return nil, fmt.Errorf("parse jira url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("jira url %q must be absolute", siteURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + apiPath
	u.RawQuery, u.Fragment = "", ""
	return u, nil
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithTracerProvider sets the provider for per-operation spans. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *clientOptions) { o.tracerProvider = tp }
}

// WithMeterProvider sets the provider for the retry counter. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *clientOptions) { o.meterProvider = mp }
}

// NewClient returns a Jira client whose transport retries according to policy.
func NewClient(apiURL *url.URL, auth AuthFunc, policy RetryPolicy, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	o := clientOptions{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		APIURL: apiURL,
		Client: &http.Client{Transport: newRetryTransport(newHTTPTransport(), policy, logger, o.meterProvider)},
		auth:   auth,
		logger: logger,
		tracer: o.tracerProvider.Tracer(scopeName),
	}
}

// BuildQuery translates structured filters into JQL.
func (c *Client) BuildQuery(f jql.Filters) string {
	return jql.Build(f)
}

// SearchIssues runs a JQL search. MaxResults defaults to DefaultMaxResults.
func (c *Client) SearchIssues(ctx context.Context, opts SearchOptions) (*SearchResult, error) {
	const op = "searchIssues"

	if strings.TrimSpace(opts.JQL) == "" {
		return nil, newBadRequestError(op, "JQL query is required")
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.StartAt < 0 {
		opts.StartAt = 0
	}

	params := url.Values{}
	params.Set("jql", opts.JQL)
	params.Set("maxResults", strconv.Itoa(opts.MaxResults))
	params.Set("startAt", strconv.Itoa(opts.StartAt))
	if len(opts.Fields) > 0 {
		params.Set("fields", strings.Join(opts.Fields, ","))
	}
	if opts.NextPageToken != "" {
		params.Set("nextPageToken", opts.NextPageToken)
	}

	c.logger.Debug("searching jira issues",
		"jql", opts.JQL,
		"maxResults", opts.MaxResults,
		"startAt", opts.StartAt,
		"fields", params.Get("fields"),
	)

	var resp searchResponse
	if err := c.get(ctx, op, "search/jql", params, &resp, attribute.String("jira.jql", opts.JQL)); err != nil {
		return nil, err
	}

	issues := resp.Issues
	if issues == nil {
		issues = []RawIssue{}
	}
	total := len(issues)
	if resp.Total != nil {
		total = *resp.Total
	}

	c.logger.Debug("jira search response",
		"issues", len(issues),
		"isLast", resp.IsLast,
		"nextPageToken", resp.NextPageToken,
	)

	return &SearchResult{
		Issues:        issues,
		Total:         total,
		StartAt:       opts.StartAt,
		MaxResults:    opts.MaxResults,
		IsLast:        resp.IsLast,
		NextPageToken: resp.NextPageToken,
	}, nil
}

// GetIssue fetches a single issue by key or id.
func (c *Client) GetIssue(ctx context.Context, idOrKey string, fields ...string) (*RawIssue, error) {
	const op = "getIssue"

	idOrKey = strings.TrimSpace(idOrKey)
	if idOrKey == "" {
		return nil, newBadRequestError(op, "Issue key is required")
	}

	params := url.Values{}
	if len(fields) > 0 {
		params.Set("fields", strings.Join(fields, ","))
	}

	c.logger.Debug("fetching jira issue", "issue", idOrKey)

	var issue RawIssue
	if err := c.get(ctx, op, "issue/"+url.PathEscape(idOrKey), params, &issue, attribute.String("jira.issue", idOrKey)); err != nil {
		return nil, err
	}
	return &issue, nil
}

// GetIssues fetches issues by key with a single "key in (...)" search.
// An empty key list returns an empty slice without calling Jira.
func (c *Client) GetIssues(ctx context.Context, keys []string, fields ...string) ([]RawIssue, error) {
	if len(keys) == 0 {
		return []RawIssue{}, nil
	}

	res, err := c.SearchIssues(ctx, SearchOptions{
		JQL:        jql.KeyIn(keys),
		MaxResults: len(keys),
		Fields:     fields,
	})
	if err != nil {
		if je, ok := err.(*Error); ok {
			je.Op = "getIssues"
		}
		return nil, err
	}
	return res.Issues, nil
}

// GetFields lists all system and custom field definitions.
func (c *Client) GetFields(ctx context.Context) ([]gojira.Field, error) {
	c.logger.Debug("fetching jira fields")

	var fields []gojira.Field
	if err := c.get(ctx, "getFields", "field", nil, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// GetProjects lists the projects visible to the authenticated user.
func (c *Client) GetProjects(ctx context.Context) ([]gojira.Project, error) {
	c.logger.Debug("fetching jira projects")

	var projects []gojira.Project
	if err := c.get(ctx, "getProjects", "project", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// get performs an authenticated GET and decodes a JSON response into out.
// Every failure is returned as *Error.
func (c *Client) get(ctx context.Context, op, path string, params url.Values, out any, attrs ...attribute.KeyValue) (err error) {
	ctx, span := c.tracer.Start(ctx, "jira."+op,
		trace.WithAttributes(append([]attribute.KeyValue{attribute.String("jira.operation", op)}, attrs...)...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	body, status, err := c.doRequest(ctx, http.MethodGet, resolvePath(path, params))
	if err != nil {
		c.logger.Error("jira request failed", "operation", op, "error", err)
		return newTransportError(op, err)
	}
	span.SetAttributes(attribute.Int("http.response.status_code", status))

	if status >= 400 {
		je := newStatusError(op, status, body)
		c.logger.Error("jira api error",
			"operation", op,
			"status", status,
			"message", je.Message,
		)
		return je
	}

	if err := json.Unmarshal(body, out); err != nil {
		return newDecodeError(op, fmt.Errorf("decode %s response: %w", op, err))
	}
	return nil
}

// doRequest performs an authenticated HTTP request and returns response body and status.
func (c *Client) doRequest(ctx context.Context, method, path string) (response []byte, statusCode int, err error) {
	relURL, err := url.Parse(path)
	if err != nil {
		return nil, 0, fmt.Errorf("parse path: %w", err)
	}
	fullURL := c.APIURL.ResolveReference(relURL).String()

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	if c.auth != nil {
		c.auth(req)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

// resolvePath appends encoded query parameters to a relative API path.
func resolvePath(path string, params url.Values) string {
	path = strings.TrimLeft(path, "/")
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}
