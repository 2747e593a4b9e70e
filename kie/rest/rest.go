// Package rest is the JSON over HTTP plumbing shared by the Kie Server,
// controller and Workbench clients.
package rest

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kiegroup/kie-cloud-tests/test/framework/retry"
)

// DefaultTimeout bounds a single request when Config.Timeout is zero
const DefaultTimeout = 60 * time.Second

const maxErrorBody = 4096

// HTTPError is a non-2xx answer from a KIE REST endpoint
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// TransportError is a request that never produced an HTTP answer
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRemoteUnavailable reports whether err came from the remote side: either
// an HTTP error status or a failed connection.
func IsRemoteUnavailable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return true
	}
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// IsStatus reports whether err is an HTTPError with the given status code
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == code
}

// IsTransient reports whether a retry of an idempotent request may succeed
func IsTransient(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		strings.Contains(err.Error(), "connection reset") || strings.Contains(err.Error(), "connection refused")
}

// Config configures a Client
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
	// InsecureSkipVerify accepts the self signed certificates of OpenShift routes
	InsecureSkipVerify bool
	Logger             *slog.Logger
	// RetryOptions tune the retries of idempotent reads
	RetryOptions []retry.Option
}

// Client sends JSON requests with basic authentication
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
	retryOpts  []retry.Option
}

// New creates a Client
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}

	retryOpts := append([]retry.Option{retry.WithRetryIf(IsTransient)}, cfg.RetryOptions...)

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger:    logger,
		retryOpts: retryOpts,
	}, nil
}

// BaseURL returns the endpoint the client is bound to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends one request. A non-nil body is encoded as JSON; out, when
// non-nil, receives the decoded response body.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-KIE-ContentType", "JSON")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	c.logger.Debug("kie request", "method", method, "url", target)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{Method: method, URL: target, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to decode response of %s %s: %w", method, target, err)
	}
	return nil
}

// Get sends an idempotent GET, retrying transient failures
func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	_, err := Retry(ctx, c, path, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.Do(ctx, http.MethodGet, path, query, nil, out)
	})
	return err
}

// Retry runs fn with the retry policy of c. Errors marked with
// retry.Permanent are returned without another attempt.
func Retry[T any](ctx context.Context, c *Client, path string, fn func(ctx context.Context) (T, error)) (T, error) {
	opts := append([]retry.Option{
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			c.logger.Debug("retrying kie request", "path", path, "attempt", attempt, "delay", delay, "error", err)
		}),
	}, c.retryOpts...)
	return retry.DoWithData(ctx, fn, opts...)
}

// PathEscape escapes one path segment
func PathEscape(s string) string {
	return url.PathEscape(s)
}
