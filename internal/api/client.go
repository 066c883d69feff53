// Package api is the HTTP client for the weekly planner server.
package api

import (
	"bytes"
	"context"
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

	"github.com/google/uuid"

	"github.com/josephgoksu/PlanWing/internal/task"
)

// DefaultTimeout applies when Config.Timeout is zero.
const DefaultTimeout = 15 * time.Second

// RequestIDHeader carries a fresh uuid on every request.
const RequestIDHeader = "X-Request-ID"

// Config holds configuration for the planner client.
type Config struct {
	// BaseURL is the server root (e.g., "https://planner.example.com/api")
	BaseURL string

	// Token is sent as a bearer token when set
	Token string

	// Timeout for HTTP requests (default: 15s)
	Timeout time.Duration

	// HTTPClient overrides the default client, mostly for tests
	HTTPClient *http.Client
}

// Client talks to the planner REST API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// New creates a new planner client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("planner base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid planner base URL: %w", err)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  hc,
	}, nil
}

// errorBody is the error envelope the server sends on failures.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// do sends one request and decodes a JSON response into out (when non-nil).
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return task.NewError(task.CodeInternal, op, "marshal request", err)
		}
		body = bytes.NewReader(raw)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return task.NewError(task.CodeInternal, op, "create request", err)
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		slog.Debug("planner request failed", "op", op, "method", method, "path", path, "request_id", reqID, "error", err)
		return transportError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	slog.Debug("planner request", "op", op, "method", method, "path", path, "status", resp.StatusCode,
		"request_id", reqID, "duration", time.Since(start))

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return statusError(op, resp.StatusCode, respBody)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return task.NewError(task.CodeInternal, op, "decode response", err)
	}
	return nil
}

// statusError maps an HTTP failure onto the error taxonomy. A known code in
// the body wins over the status.
func statusError(op string, status int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	msg := eb.Message
	if msg == "" {
		msg = eb.Error
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	cause := fmt.Errorf("server returned status %d", status)

	if code, ok := task.KnownCode(eb.Code); ok {
		return task.NewError(code, op, msg, cause)
	}

	var code task.Code
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		code = task.CodeValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		code = task.CodeForbidden
	case http.StatusNotFound:
		code = task.CodeNotFound
	case http.StatusConflict:
		code = task.CodeConflict
	case http.StatusLocked:
		code = task.CodeSprintClosed
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		code = task.CodeTimeout
	default:
		code = task.CodeNetwork
	}
	return task.NewError(code, op, msg, cause)
}

// transportError classifies failures that never produced a response.
func transportError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return task.NewError(task.CodeTimeout, op, "request timed out", err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return task.NewError(task.CodeTimeout, op, "request timed out", err)
	}
	return task.NewError(task.CodeNetwork, op, "request failed", err)
}
