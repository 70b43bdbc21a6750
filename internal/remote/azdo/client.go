package azdo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/zuercheram/DevopsAutomate/internal/remote"
)

const apiVersion = "7.1"

// Client provides typed access to the work-tracking organization's REST API.
// One client serves all three collaborator roles for a single project.
type Client struct {
	baseURL    string
	project    string
	authHeader string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithTimeout overrides the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New constructs a Client for the organization base URL and project,
// authenticating every request with the personal access token.
func New(base, project, token string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		return nil, fmt.Errorf("organization url is empty")
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "https://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid organization url: %w", err)
	}
	if strings.TrimSpace(project) == "" {
		return nil, fmt.Errorf("project name is empty")
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		project:    project,
		authHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte(":"+strings.TrimSpace(token))),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the remote API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

// Unwrap maps HTTP statuses onto the error kinds callers dispatch on.
func (e APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return remote.ErrNotFound
	case http.StatusConflict:
		return remote.ErrAlreadyExists
	case http.StatusUnauthorized, http.StatusForbidden:
		return remote.ErrForbidden
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if query == nil {
		query = url.Values{}
	}
	query.Set("api-version", apiVersion)
	endpoint := c.baseURL + path + "?" + query.Encode()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", c.authHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return APIError{Status: resp.StatusCode, Message: extractError(resp.Body)}
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	if body == nil {
		return ""
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Message == "" {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Message)
}

// Ping verifies connectivity and credentials by listing teams, retrying with
// bounded exponential backoff before declaring the run dead on arrival.
func (c *Client) Ping(ctx context.Context) error {
	backoff := retry.WithMaxRetries(4, retry.NewExponential(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := c.ListTeams(ctx)
		if err == nil {
			return nil
		}
		var apiErr APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			// Auth and client errors will not heal with retries.
			return err
		}
		return retry.RetryableError(err)
	})
}
