// Package remote talks to the spreadsheet-backed sync endpoint.
//
// The endpoint is one URL. GET returns the full serialized Dataset; POST
// accepts a full serialized Dataset (push) or a small probe payload
// (connection test). Script-hosted endpoints often answer POSTs with a
// redirect or an opaque page, so a push that completes the HTTP exchange
// is treated as best-effort success and the response is not interpreted.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/clubroster/roster/internal/schema"
)

// Errors returned by Fetch.
var (
	// ErrNoEndpoint is returned when an operation needs an endpoint URL
	// but none was given.
	ErrNoEndpoint = errors.New("no endpoint configured")

	// ErrMalformed is returned when the endpoint answered but the body
	// is not a Dataset.
	ErrMalformed = errors.New("malformed response from endpoint")

	// ErrStatus is returned when the endpoint answered with a non-2xx
	// status on fetch.
	ErrStatus = errors.New("unexpected status from endpoint")
)

// maxBodyBytes bounds how much of a fetch response is read.
const maxBodyBytes = 32 << 20

// Endpoint is the transport used by the sync coordinator.
type Endpoint interface {
	// Fetch retrieves the remote Dataset.
	Fetch(ctx context.Context, url string) (*schema.Dataset, error)

	// Send posts the full Dataset. A nil error means the request
	// completed, not that the remote side persisted it.
	Send(ctx context.Context, url string, ds *schema.Dataset) error

	// Probe posts a lightweight ping to check reachability.
	Probe(ctx context.Context, url string) error
}

// Config holds HTTP client configuration.
type Config struct {
	// Timeout bounds each request (default: 30s)
	Timeout time.Duration

	// UserAgent sent with every request
	UserAgent string

	// Logger for transport activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Timeout:   30 * time.Second,
		UserAgent: "roster-sync/1",
		Logger:    log.New(os.Stderr, "[remote] ", log.LstdFlags),
	}
}

// HTTPClient implements Endpoint over net/http.
type HTTPClient struct {
	client    *http.Client
	userAgent string
	logger    *log.Logger
}

// NewHTTPClient creates an Endpoint backed by net/http.
func NewHTTPClient(config *Config) *HTTPClient {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	return &HTTPClient{
		client:    &http.Client{Timeout: config.Timeout},
		userAgent: config.UserAgent,
		logger:    config.Logger,
	}
}

// Fetch implements Endpoint.Fetch.
func (c *HTTPClient) Fetch(ctx context.Context, url string) (*schema.Dataset, error) {
	if url == "" {
		return nil, ErrNoEndpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build fetch request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.setUserAgent(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dataset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read fetch response: %w", err)
	}

	ds, err := schema.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return ds, nil
}

// Send implements Endpoint.Send.
func (c *HTTPClient) Send(ctx context.Context, url string, ds *schema.Dataset) error {
	if url == "" {
		return ErrNoEndpoint
	}

	data, err := ds.Marshal()
	if err != nil {
		return err
	}

	status, err := c.post(ctx, url, data)
	if err != nil {
		return fmt.Errorf("failed to push dataset: %w", err)
	}

	c.logger.Printf("Pushed dataset version %d (%d bytes, remote answered %s)", ds.LastUpdated, len(data), status)
	return nil
}

// probePayload is what Probe sends. Endpoints are expected to ignore it.
type probePayload struct {
	Action    string `json:"action"`
	Timestamp int64  `json:"timestamp"`
}

// Probe implements Endpoint.Probe.
func (c *HTTPClient) Probe(ctx context.Context, url string) error {
	if url == "" {
		return ErrNoEndpoint
	}

	data, err := json.Marshal(probePayload{Action: "ping", Timestamp: time.Now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("failed to marshal probe: %w", err)
	}

	if _, err := c.post(ctx, url, data); err != nil {
		return fmt.Errorf("endpoint unreachable: %w", err)
	}
	return nil
}

// post sends a text/plain body and drains the response. The status is
// returned for logging only.
func (c *HTTPClient) post(ctx context.Context, url string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	// Plain text avoids a CORS preflight on script endpoints, which then
	// parse the body themselves.
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")
	c.setUserAgent(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	return resp.Status, nil
}

func (c *HTTPClient) setUserAgent(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}
