// Package backend is the HTTP client for the storefront REST API: account,
// address, order and payment endpoints.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"storefront/apperr"
)

// DefaultBaseURL is the API root of a local development backend.
const DefaultBaseURL = "http://127.0.0.1:8000/api/"

const (
	userAgent       = "storefront/1.0"
	maxResponseSize = 1 << 20
)

// StatusError is a non-2xx response.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

// Client talks to the REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client rooted at baseURL. Paths are resolved relative
// to it, so baseURL should end with a slash.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend base url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: u,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: timeout,
				IdleConnTimeout:       90 * time.Second,
				MaxIdleConns:          10,
				MaxIdleConnsPerHost:   4,
			},
		},
	}, nil
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

type request struct {
	op             string
	method         string
	path           string
	access         string
	idempotencyKey string
	body           any
}

// errorBody covers the error shapes the API returns.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Detail  string `json:"detail"`
}

func (b errorBody) text() string {
	for _, s := range []string{b.Message, b.Error, b.Detail} {
		if s != "" {
			return s
		}
	}
	return ""
}

// do sends r and decodes a 2xx body into out. A 401 on a bearer call wraps
// apperr.ErrTokenExpired; a transport failure wraps apperr.ErrNetworkFailure.
func (c *Client) do(ctx context.Context, r request, out any) error {
	var payload io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", r.op, err)
		}
		payload = bytes.NewReader(data)
	}

	endpoint := c.baseURL.ResolveReference(&url.URL{Path: r.path})
	req, err := http.NewRequestWithContext(ctx, r.method, endpoint.String(), payload)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", r.op, err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.access != "" {
		req.Header.Set("Authorization", "Bearer "+r.access)
	}
	if r.idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", r.idempotencyKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed", "op", r.op, "request_id", requestID, "error", err)
		return fmt.Errorf("%s: %w: %w", r.op, apperr.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%s: %w: failed to read response: %w", r.op, apperr.ErrNetworkFailure, err)
	}

	c.logger.Debug("backend request",
		"op", r.op,
		"method", r.method,
		"path", r.path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(body, &eb)
		statusErr := &StatusError{Op: r.op, StatusCode: resp.StatusCode, Message: eb.text()}
		if r.access != "" && resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %w", apperr.ErrTokenExpired, statusErr)
		}
		return statusErr
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", r.op, err)
	}
	return nil
}
