// Package planning provides a client for the business-planning API.
package planning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout is the maximum time to wait for business-planning responses.
const DefaultTimeout = 30 * time.Second

// ErrInvalidResponse is returned when the upstream body is not JSON.
var ErrInvalidResponse = errors.New("business-planning API returned a non-JSON response")

// Response is an upstream answer relayed as-is.
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// Client forwards requests to the business-planning API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new business-planning client.
// baseURL is the API prefix, e.g. http://localhost:8000/api/business-planning.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("planning"),
	}
}

// BaseURL returns the upstream prefix.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetFrameworks fetches the go-to-market frameworks.
func (c *Client) GetFrameworks(ctx context.Context) (*Response, error) {
	return c.Forward(ctx, http.MethodGet, "gtm/frameworks", nil)
}

// SelectCompany posts a company selection. body is forwarded verbatim.
func (c *Client) SelectCompany(ctx context.Context, body []byte) (*Response, error) {
	return c.Forward(ctx, http.MethodPost, "select-company", body)
}

// Forward sends method to {baseURL}/{route} and returns the upstream status and JSON body.
// Any upstream status is returned as a Response; only transport failures and
// non-JSON bodies are errors.
func (c *Client) Forward(ctx context.Context, method, route string, body []byte) (*Response, error) {
	endpoint, err := buildURL(c.baseURL, route)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Forwarding to business-planning API",
		zap.String("method", method),
		zap.String("url", endpoint))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call business-planning API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if !json.Valid(respBody) {
		c.logger.Error("business-planning API returned non-JSON body",
			zap.Int("status", resp.StatusCode),
			zap.String("url", endpoint),
			zap.Int("bytes", len(respBody)))
		return nil, fmt.Errorf("%w (status %d)", ErrInvalidResponse, resp.StatusCode)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Warn("business-planning API returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("url", endpoint))
	}

	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}

// buildURL constructs a URL by parsing the base and joining path segments.
func buildURL(baseURL string, pathSegments ...string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	segments := append([]string{u.Path}, pathSegments...)
	u.Path = path.Join(segments...)

	return u.String(), nil
}
