// Package backend is the HTTP client for the formu generation backends: the
// streaming prompt generator, the restyle (sora) and 3D (tripo) job APIs, and
// the usage endpoints that feed the quota store.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/formu/pkg/logger"
	"github.com/papercomputeco/formu/pkg/utils"
)

const (
	// DefaultBaseURL is the default backend URL.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout bounds every non-streaming request.
	DefaultTimeout = 60 * time.Second
)

var (
	// ErrNotLoggedIn is returned by authenticated calls when no token is set.
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrSessionExpired is returned when the backend rejects the token.
	ErrSessionExpired = errors.New("session expired, please log in again")

	// ErrMissingTaskID is returned when a submission response carries no task id.
	ErrMissingTaskID = errors.New("backend did not return a task_id")
)

// StatusError is a non-success HTTP response.
type StatusError struct {
	StatusCode int

	// Detail is the backend's "detail" field, or the raw body when the body
	// is not a detail object.
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Detail)
}

// Config holds configuration for the backend client.
type Config struct {
	// BaseURL is the backend URL (e.g., "http://localhost:8000").
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Token is the bearer token for the usage endpoints. Empty means logged out.
	Token string

	// Timeout bounds non-streaming requests. Defaults to DefaultTimeout.
	Timeout time.Duration

	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// Client talks to the formu backend.
type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a backend client.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// No client-wide timeout: prompt streams stay open as long as the
		// backend keeps writing. Per-request deadlines come from the context.
		httpClient = &http.Client{}
	}

	l := cfg.Logger
	if l == nil {
		l = logger.Nop()
	}

	return &Client{
		baseURL:    baseURL,
		token:      cfg.Token,
		timeout:    timeout,
		httpClient: httpClient,
		logger:     l,
	}
}

// BaseURL returns the backend URL requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// LoggedIn reports whether the client carries a bearer token.
func (c *Client) LoggedIn() bool {
	return c.token != ""
}

// send issues req and returns the response when its status is 2xx. Any other
// status is drained into a *StatusError.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", utils.UserAgent())
	c.logger.Debug("backend request", "method", req.Method, "path", req.URL.Path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending %s %s: %w", req.Method, req.URL.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		serr := &StatusError{StatusCode: resp.StatusCode, Detail: detailFrom(body)}
		c.logger.Debug("backend error response", "path", req.URL.Path, "status", resp.StatusCode, "detail", serr.Detail)
		return nil, serr
	}

	return resp, nil
}

// doJSON sends a request with an optional JSON body and decodes the JSON
// response into out, all under the client timeout.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any, authed bool) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeJSON(resp.Body, out)
}

// doForm posts a multipart form and decodes the JSON response into out.
func (c *Client) doForm(ctx context.Context, path string, form *multipartForm, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, form.body())
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", form.contentType())

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeJSON(resp.Body, out)
}

func decodeJSON(r io.Reader, out any) error {
	if out == nil {
		_, _ = io.Copy(io.Discard, r)
		return nil
	}
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// detailFrom extracts {"detail": "..."} from an error body, falling back to
// the trimmed body text.
func detailFrom(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil {
			return s
		}
		return string(payload.Detail)
	}
	return strings.TrimSpace(string(body))
}
