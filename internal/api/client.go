package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lumen-chat/rendezvous/internal/config"
	"github.com/lumen-chat/rendezvous/internal/metrics"
)

const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests
	DefaultHTTPTimeout = 30 * time.Second
	// DefaultMaxRetries is the default maximum number of retry attempts
	// for idempotent reads
	DefaultMaxRetries = 3
	// DefaultBaseRetryDelay is the base delay for exponential backoff
	DefaultBaseRetryDelay = 1 * time.Second
)

// Client handles HTTP requests to the remote date-session service.
//
// Reads (status, snapshot) retry with exponential backoff. Mutating calls
// are sent exactly once per invocation: the engine owns retry policy for
// those, and every mutating request carries a client-generated
// Idempotency-Key so a deliberate re-submission after a dropped response
// cannot be applied twice server-side.
type Client struct {
	httpClient      *http.Client
	rateLimiterPool *RateLimiterPool
	logger          *slog.Logger
	baseURL         string
	authToken       string
	rpm             int
	maxRetries      int
	baseRetryDelay  time.Duration
}

// NewClient creates a date-service client from the service config.
func NewClient(cfg config.ServiceConfig, secrets *config.Secrets, logger *slog.Logger) *Client {
	timeout := DefaultHTTPTimeout
	if cfg.HTTPTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second
	}
	maxRetries := DefaultMaxRetries
	if cfg.MaxRetries > 0 {
		maxRetries = cfg.MaxRetries
	}
	return &Client{
		httpClient:      &http.Client{Timeout: timeout},
		rateLimiterPool: NewRateLimiterPool(),
		logger:          logger.With("component", "api"),
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		authToken:       secrets.AuthToken,
		rpm:             cfg.RateLimitPerMinute,
		maxRetries:      maxRetries,
		baseRetryDelay:  DefaultBaseRetryDelay,
	}
}

// Status fetches date eligibility for a counterpart.
func (c *Client) Status(ctx context.Context, counterpartID string) (*StatusResponse, error) {
	endpoint := "/dates/status?counterpart_id=" + url.QueryEscape(counterpartID)
	var resp StatusResponse
	if err := c.get(ctx, "status", endpoint, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Snapshot fetches the authoritative session snapshot for resumption.
func (c *Client) Snapshot(ctx context.Context, sessionID string) (*SnapshotResponse, error) {
	endpoint := "/dates/sessions/" + url.PathEscape(sessionID)
	var resp SnapshotResponse
	if err := c.get(ctx, "snapshot", endpoint, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start begins a new session with a counterpart in a scenario.
func (c *Client) Start(ctx context.Context, counterpartID, scenarioID, idempotencyKey string) (*StartResponse, error) {
	req := StartRequest{CounterpartID: counterpartID, ScenarioID: scenarioID}
	var resp StartResponse
	if err := c.post(ctx, "start", "/dates/start", idempotencyKey, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Choose submits a presented option for the given stage.
func (c *Client) Choose(ctx context.Context, sessionID string, stageNum, choiceID int, idempotencyKey string) (*AdvanceResult, error) {
	req := ChooseRequest{StageNum: stageNum, ChoiceID: choiceID}
	endpoint := "/dates/sessions/" + url.PathEscape(sessionID) + "/choose"
	var resp AdvanceResult
	if err := c.post(ctx, "choose", endpoint, idempotencyKey, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FreeInput submits free-form text for server-side judging.
func (c *Client) FreeInput(ctx context.Context, sessionID string, stageNum int, text, idempotencyKey string) (*AdvanceResult, error) {
	req := FreeInputRequest{StageNum: stageNum, Text: text}
	endpoint := "/dates/sessions/" + url.PathEscape(sessionID) + "/free_input"
	var resp AdvanceResult
	if err := c.post(ctx, "free_input", endpoint, idempotencyKey, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Extend purchases the one-time session extension.
func (c *Client) Extend(ctx context.Context, sessionID, idempotencyKey string) (*ExtendResponse, error) {
	endpoint := "/dates/sessions/" + url.PathEscape(sessionID) + "/extend"
	var resp ExtendResponse
	if err := c.post(ctx, "extend", endpoint, idempotencyKey, struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Finish ends the session normally at the checkpoint.
func (c *Client) Finish(ctx context.Context, sessionID, idempotencyKey string) (*FinishResponse, error) {
	endpoint := "/dates/sessions/" + url.PathEscape(sessionID) + "/finish"
	var resp FinishResponse
	if err := c.post(ctx, "finish", endpoint, idempotencyKey, struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Abandon terminates the session irreversibly.
func (c *Client) Abandon(ctx context.Context, sessionID, idempotencyKey string) (*AbandonResponse, error) {
	endpoint := "/dates/sessions/" + url.PathEscape(sessionID) + "/abandon"
	var resp AbandonResponse
	if err := c.post(ctx, "abandon", endpoint, idempotencyKey, struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResetCooldown spends currency to clear a cooldown block.
func (c *Client) ResetCooldown(ctx context.Context, counterpartID, idempotencyKey string) (*ResetCooldownResponse, error) {
	req := ResetCooldownRequest{CounterpartID: counterpartID}
	var resp ResetCooldownResponse
	if err := c.post(ctx, "reset_cooldown", "/dates/cooldown/reset", idempotencyKey, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// get performs an idempotent read with retry and exponential backoff.
func (c *Client) get(ctx context.Context, name, endpoint string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.baseRetryDelay
			jitter := time.Duration(float64(backoff) * 0.1 * (2*float64(time.Now().UnixNano()%100)/100 - 1))

			c.logger.Warn("Retrying service request",
				"endpoint", name,
				"attempt", attempt,
				"max_retries", c.maxRetries,
				"backoff", backoff+jitter)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff + jitter):
			}
		}

		err := c.doRequest(ctx, name, http.MethodGet, endpoint, "", nil, out)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// post performs a mutating call exactly once, tagged with the idempotency key.
func (c *Client) post(ctx context.Context, name, endpoint, idempotencyKey string, body, out any) error {
	return c.doRequest(ctx, name, http.MethodPost, endpoint, idempotencyKey, body, out)
}

func (c *Client) doRequest(ctx context.Context, name, method, endpoint, idempotencyKey string, body, out any) error {
	if err := c.rateLimiterPool.Wait(ctx, c.baseURL, c.rpm); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.ObserveServiceRequest(name, "transport_error", time.Since(start).Seconds())
		return &APIError{
			Message:    fmt.Sprintf("request failed: %v", err),
			StatusCode: 0,
			Retryable:  true,
		}
	}
	defer func() {
		if err := httpResp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		metrics.ObserveServiceRequest(name, "read_error", time.Since(start).Seconds())
		return fmt.Errorf("failed to read response: %w", err)
	}

	metrics.ObserveServiceRequest(name, fmt.Sprintf("%d", httpResp.StatusCode), time.Since(start).Seconds())

	if httpResp.StatusCode != http.StatusOK {
		retryable := isStatusCodeRetryable(httpResp.StatusCode)

		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			return &APIError{
				Message:    errResp.Error.Message,
				StatusCode: httpResp.StatusCode,
				Code:       errResp.Error.Code,
				Retryable:  retryable,
			}
		}

		return &APIError{
			Message:    fmt.Sprintf("service request failed with status %d: %s", httpResp.StatusCode, string(respBody)),
			StatusCode: httpResp.StatusCode,
			Retryable:  retryable,
		}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.Retryable
	}
	return false
}

func isStatusCodeRetryable(statusCode int) bool {
	// Retry on rate limits and server errors
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusInternalServerError ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout
}

// APIError represents a transport- or HTTP-level failure talking to the
// date service. Logical refusals (success=false payloads) are not APIErrors.
type APIError struct {
	Message    string
	StatusCode int
	Code       string
	Retryable  bool
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("service error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("service error: %s", e.Message)
}
