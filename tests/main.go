package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/containeroo/tinyflags"
	"gopkg.in/yaml.v3"
)

// Config is the mock Jira configuration root.
type Config struct {
	Port        int       `yaml:"port"`
	DataDir     string    `yaml:"dataDir"`
	IssuesFile  string    `yaml:"issuesFile"`  // JSON array of raw issues
	FieldsFile  string    `yaml:"fieldsFile"`  // JSON array served at /field
	ProjectFile string    `yaml:"projectFile"` // JSON array served at /project
	RandomDelay bool      `yaml:"randomDelay"`
	Failures    []Failure `yaml:"failures"`
}

// Failure injects error responses for requests whose path matches Path.
type Failure struct {
	Path   string        `yaml:"path"`            // regex matched against the request path
	Status int           `yaml:"status"`          // status to answer with; 0 drops the connection
	Times  int           `yaml:"times"`           // how many requests fail; 0 = all
	Delay  time.Duration `yaml:"delay,omitempty"` // sleep before answering
	Body   string        `yaml:"body,omitempty"`  // optional JSON body

	rx    *regexp.Regexp
	count int
}

var (
	keyInRx   = regexp.MustCompile(`(?i)key\s+in\s*\(([^)]*)\)`)
	projectRx = regexp.MustCompile(`(?i)project\s*=\s*"?([A-Za-z0-9_]+)"?`)
)

type mockServer struct {
	cfg      Config
	issues   []map[string]any
	fields   json.RawMessage
	projects json.RawMessage
	logBody  bool

	mu       sync.Mutex
	failures []*Failure
}

// main starts the mock Jira server with a required YAML config.
func main() {
	var (
		flagConfigPath string
		flagLogBody    bool
	)

	tf := tinyflags.NewFlagSet("mock-jira", tinyflags.ExitOnError)
	tf.StringVar(&flagConfigPath, "config", "", "Path to mock-jira config.yaml (required)").Value()
	tf.BoolVar(&flagLogBody, "log-body", false, "Log request bodies (may contain secrets)")

	if err := tf.Parse(os.Args[1:]); err != nil {
		log.Fatal("flag parse error:", err)
	}

	if strings.TrimSpace(flagConfigPath) == "" {
		log.Fatal("missing required --config=<path to yaml>")
	}

	cfg, err := loadConfig(flagConfigPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// absolute stays absolute
	if !filepath.IsAbs(cfg.DataDir) {
		base := filepath.Dir(flagConfigPath)
		cfg.DataDir, _ = filepath.Abs(filepath.Join(base, cfg.DataDir))
	}

	srv, err := newMockServer(cfg, flagLogBody)
	if err != nil {
		log.Fatalf("data error: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/api/3/search/jql", srv.wrap(srv.handleSearch))
	mux.HandleFunc("GET /rest/api/3/issue/{key}", srv.wrap(srv.handleIssue))
	mux.HandleFunc("GET /rest/api/3/field", srv.wrap(srv.static(srv.fields)))
	mux.HandleFunc("GET /rest/api/3/project", srv.wrap(srv.static(srv.projects)))

	addr := ":" + strconv.Itoa(cfg.Port)
	log.Printf("Mock jira listening on %s (data-dir: %s, issues: %d)", addr, cfg.DataDir, len(srv.issues))
	log.Fatal(http.ListenAndServe(addr, mux))
}

// loadConfig reads and validates the YAML configuration file.
func loadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.Port == 0 {
		cfg.Port = 8081
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./data"
	}
	if cfg.IssuesFile == "" {
		cfg.IssuesFile = "issues.json"
	}
	if cfg.FieldsFile == "" {
		cfg.FieldsFile = "fields.json"
	}
	if cfg.ProjectFile == "" {
		cfg.ProjectFile = "projects.json"
	}

	for i := range cfg.Failures {
		f := &cfg.Failures[i]
		if strings.TrimSpace(f.Path) == "" {
			return Config{}, fmt.Errorf("failures[%d]: path is required", i)
		}
		rx, err := regexp.Compile(f.Path)
		if err != nil {
			return Config{}, fmt.Errorf("failures[%d]: bad regex: %w", i, err)
		}
		f.rx = rx
	}

	return cfg, nil
}

func newMockServer(cfg Config, logBody bool) (*mockServer, error) {
	s := &mockServer{cfg: cfg, logBody: logBody}

	raw, err := os.ReadFile(filepath.Join(cfg.DataDir, cfg.IssuesFile))
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &s.issues); err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.IssuesFile, err)
	}

	s.fields = readOptional(filepath.Join(cfg.DataDir, cfg.FieldsFile))
	s.projects = readOptional(filepath.Join(cfg.DataDir, cfg.ProjectFile))

	for i := range cfg.Failures {
		s.failures = append(s.failures, &cfg.Failures[i])
	}
	return s, nil
}

// readOptional returns the file content or an empty JSON array.
func readOptional(path string) json.RawMessage {
	raw, err := os.ReadFile(path)
	if err != nil {
		return json.RawMessage("[]")
	}
	return raw
}

// wrap applies delay, logging and failure injection.
func (s *mockServer) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.RandomDelay {
			applyRandomDelay(200, 1000)
		}
		logRequest(r, s.logBody)

		if f := s.takeFailure(r.URL.Path); f != nil {
			if f.Delay > 0 {
				time.Sleep(f.Delay)
			}
			status := f.Status
			if status == 0 {
				if hj, ok := w.(http.Hijacker); ok {
					if conn, _, err := hj.Hijack(); err == nil {
						conn.Close() // nolint:errcheck
						return
					}
				}
				status = http.StatusBadGateway
			}
			body := f.Body
			if body == "" {
				body = fmt.Sprintf(`{"errorMessages":["injected failure %d"]}`, status)
			}
			writeJSON(w, status, []byte(body))
			return
		}

		next(w, r)
	}
}

// takeFailure returns the first failure matching path that still has budget.
func (s *mockServer) takeFailure(path string) *Failure {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.failures {
		if !f.rx.MatchString(path) {
			continue
		}
		if f.Times > 0 && f.count >= f.Times {
			continue
		}
		f.count++
		return f
	}
	return nil
}

// handleSearch filters issues by "key in (...)" and "project = X" clauses and paginates.
func (s *mockServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	jql := q.Get("jql")
	if strings.TrimSpace(jql) == "" {
		writeJSON(w, http.StatusBadRequest, []byte(`{"errorMessages":["JQL query is required"]}`))
		return
	}

	matched := filterIssues(s.issues, jql)

	start := asInt(q.Get("startAt"))
	if tok := q.Get("nextPageToken"); tok != "" {
		start = asInt(tok)
	}
	limit := asInt(q.Get("maxResults"))
	if limit <= 0 {
		limit = 50
	}

	total := len(matched)
	start = min(start, total)
	end := min(start+limit, total)

	resp := map[string]any{
		"issues": matched[start:end],
		"total":  total,
		"isLast": end >= total,
	}
	if end < total {
		resp["nextPageToken"] = strconv.Itoa(end)
	}

	b, _ := json.Marshal(resp)
	writeJSON(w, http.StatusOK, b)
}

// handleIssue serves one issue by key or id.
func (s *mockServer) handleIssue(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	for _, issue := range s.issues {
		if issue["key"] == key || issue["id"] == key {
			b, _ := json.Marshal(issue)
			writeJSON(w, http.StatusOK, b)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, []byte(`{"errorMessages":["Issue does not exist or you do not have permission to see it."]}`))
}

func (s *mockServer) static(raw json.RawMessage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, raw)
	}
}

// filterIssues applies the supported JQL subset. Unknown clauses match everything.
func filterIssues(issues []map[string]any, jql string) []map[string]any {
	var keys []string
	if m := keyInRx.FindStringSubmatch(jql); len(m) == 2 {
		for _, k := range strings.Split(m[1], ",") {
			if k = strings.Trim(strings.TrimSpace(k), `"`); k != "" {
				keys = append(keys, k)
			}
		}
	}
	var project string
	if m := projectRx.FindStringSubmatch(jql); len(m) == 2 {
		project = m[1]
	}

	out := []map[string]any{}
	for _, issue := range issues {
		key, _ := issue["key"].(string)
		if keys != nil && !slices.Contains(keys, key) {
			continue
		}
		if project != "" && !strings.HasPrefix(key, project+"-") {
			continue
		}
		out = append(out, issue)
	}
	return out
}

// writeJSON writes a JSON response with status and bytes.
func writeJSON(w http.ResponseWriter, status int, raw []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

// applyRandomDelay sleeps for a random duration between minMs and maxMs.
func applyRandomDelay(minMs, maxMs int) {
	if maxMs <= minMs {
		maxMs = minMs + 1
	}
	delta := rand.Intn(maxMs-minMs) + minMs
	time.Sleep(time.Duration(delta) * time.Millisecond)
}

// logRequest logs method, path, query, headers and optionally the body.
func logRequest(r *http.Request, logBody bool) {
	redacted := http.Header{}
	for k, vv := range r.Header {
		if strings.EqualFold(k, "Authorization") || strings.EqualFold(k, "Cookie") {
			redacted[k] = []string{"<redacted>"}
		} else {
			redacted[k] = vv
		}
	}

	var bodyPreview string
	if logBody && r.Body != nil {
		b, _ := io.ReadAll(r.Body)
		bodyPreview = string(b)
		r.Body = io.NopCloser(strings.NewReader(bodyPreview))
	}

	log.Printf("REQ %s %s?%s headers=%v body=%s",
		r.Method, r.URL.Path, r.URL.RawQuery, redacted, truncate(bodyPreview, 2048))
}

// asInt parses a non-negative integer, returning 0 on failure.
func asInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// truncate returns at most n bytes of s.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
