// Package practicum implements the homework status API client.
// This package issues the status query, maps transport and HTTP failures
// into typed homework errors and decodes the JSON envelope.
package practicum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/practicum-bots/homework-status-bot/internal/domain/homework"
)

// DefaultEndpoint is the homework status API endpoint.
const DefaultEndpoint = "https://practicum.yandex.ru/api/user_api/homework_statuses/"

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the homework status API client.
type ClientConfig struct {
	// Endpoint is the full URL of the homework status resource
	Endpoint string

	// Token is the OAuth token sent in the Authorization header
	Token string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// HTTPClient overrides the default client (tests, proxies)
	HTTPClient *http.Client

	// Logger for structured logging
	Logger *slog.Logger

	// Debug enables request debug logging
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(endpoint, token string) ClientConfig {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return ClientConfig{
		Endpoint: endpoint,
		Token:    token,
		Timeout:  30 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the homework status API client.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new homework status API client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: config.Timeout,
		}
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     config.Logger,
	}
}

// Fetch queries homework statuses changed since timestamp and returns the
// decoded body. The request is attempted exactly once.
func (c *Client) Fetch(ctx context.Context, timestamp int64) (any, error) {
	params := url.Values{}
	params.Set("from_date", strconv.FormatInt(timestamp, 10))

	target := c.config.Endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "OAuth "+c.config.Token)
	req.Header.Set("Accept", "application/json")

	if c.config.Debug {
		c.logger.Debug("homework api request", "endpoint", c.config.Endpoint, "from_date", timestamp)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &homework.ConnectivityError{Target: c.config.Endpoint, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &homework.ConnectivityError{Target: c.config.Endpoint, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("homework api error response",
			"status", resp.StatusCode,
			"body", truncate(respBody, 512),
		)
		return nil, &homework.UnexpectedStatusError{Code: resp.StatusCode}
	}

	body, err := decode(respBody)
	if err != nil {
		return nil, &homework.MalformedResponseError{Err: err}
	}

	if err := checkEnvelope(body); err != nil {
		return nil, err
	}

	return body, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// envelopeKeys are the fields that mark an API-level error, in check order.
var envelopeKeys = []string{"error", "code"}

// checkEnvelope reports an API error envelope carried in a 200 response.
func checkEnvelope(body any) error {
	fields, ok := body.(map[string]any)
	if !ok {
		return nil
	}
	for _, key := range envelopeKeys {
		if value, ok := fields[key]; ok {
			return &homework.RemoteError{Key: key, Value: value}
		}
	}
	return nil
}

// decode parses exactly one JSON value, keeping numbers as json.Number.
func decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return body, nil
}

// truncate shortens a response body for logging.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
