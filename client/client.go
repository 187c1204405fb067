package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/opendlt/aptos-toolkit/internal/logz"
	"github.com/opendlt/aptos-toolkit/internal/metrics"
	"github.com/opendlt/aptos-toolkit/internal/netprofiles"
)

// Client is a REST client for a full node's JSON API
type Client struct {
	baseURL    string
	httpClient *http.Client
	config     *Config
	limiter    *rate.Limiter
	logger     *logz.Logger
}

// Config defines configuration for the node client
type Config struct {
	// Full node base URL, e.g. https://fullnode.mainnet.aptoslabs.com/v1
	Endpoint string
	// Network name used when Endpoint is empty
	Network string
	// HTTP client timeout
	Timeout time.Duration
	// Maximum retries for transient failures
	MaxRetries int
	// Delay between retries
	RetryDelay time.Duration
	// User agent string
	UserAgent string
	// Client side request rate, 0 disables limiting
	RequestsPerSecond float64
	// Token bucket burst size
	Burst int
}

// DefaultConfig returns a default client configuration for a network
func DefaultConfig(network string) *Config {
	return &Config{
		Network:    network,
		Endpoint:   netprofiles.BaseURL(network),
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		RetryDelay: time.Second,
		UserAgent:  "aptos-toolkit/1.0",
		Burst:      1,
	}
}

// New creates a node client. The base URL is fixed at construction.
func New(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("client config cannot be nil")
	}

	endpoint := config.Endpoint
	if endpoint == "" && config.Network != "" {
		endpoint = netprofiles.BaseURL(config.Network)
		if endpoint == "" {
			return nil, fmt.Errorf("unknown network: %s", config.Network)
		}
	}
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid endpoint %s: %w", endpoint, err)
	}
	if config.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries cannot be negative")
	}

	c := &Client{
		baseURL:    strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
		logger:     logz.New(logz.INFO, "client"),
	}

	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	return c, nil
}

// NewForNetwork creates a client with default settings for a named network
func NewForNetwork(network string) (*Client, error) {
	return New(DefaultConfig(network))
}

// SetLogger replaces the client logger
func (c *Client) SetLogger(logger *logz.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// GetEndpoint returns the base URL
func (c *Client) GetEndpoint() string {
	return c.baseURL
}

// Close releases idle connections
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// getJSON issues a GET and decodes the response into out
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, query, nil, out)
}

// postJSON issues a POST with a JSON body and decodes the response into out
func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	return c.executeWithRetry(ctx, func() error {
		data, err := c.do(ctx, method, path, query, payload)
		if err != nil {
			return err
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return &DecodeError{Path: path, Err: err}
		}
		return nil
	})
}

// do performs a single HTTP round trip and returns the body of a 2xx response
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordRequest(err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordRequest(err)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(method, path, resp, data)
		metrics.RecordRequest(apiErr)
		return nil, apiErr
	}

	metrics.RecordRequest(nil)
	return data, nil
}

// executeWithRetry executes a function with retry logic
func (c *Client) executeWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.RecordRetry()
			c.logger.Debug("Retrying request (attempt %d/%d): %v", attempt, c.config.MaxRetries, lastErr)

			select {
			case <-time.After(c.config.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !shouldRetry(ctx, err) {
			break
		}
	}

	return lastErr
}

// shouldRetry reports whether an error is transient: network failures, 429 and 5xx
func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// IsHealthy checks whether the node answers the index endpoint
func (c *Client) IsHealthy(ctx context.Context) error {
	_, err := c.GetChainInfo(ctx)
	return err
}

// escapePath escapes every '/'-separated segment of a path parameter
func escapePath(value string) string {
	segments := strings.Split(value, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
