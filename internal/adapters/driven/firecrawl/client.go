// Package firecrawl adapts the Firecrawl map and batch scrape APIs to the
// discovery and batch fetch ports.
package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
)

// DefaultBaseURL is the hosted Firecrawl API.
const DefaultBaseURL = "https://api.firecrawl.dev"

// maxErrorBody bounds how much of an error response is kept in messages
const maxErrorBody = 512

// Config configures the HTTP client.
type Config struct {
	BaseURL string
	APIKey  string

	// RequestsPerSecond and Burst shape outgoing traffic. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int

	// Timeout applies to each request
	Timeout time.Duration

	// HTTPClient overrides the default transport (tests)
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// DefaultConfig returns the settings used against the hosted API.
func DefaultConfig(apiKey string) Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		APIKey:            apiKey,
		RequestsPerSecond: 2,
		Burst:             4,
		Timeout:           30 * time.Second,
	}
}

// Client performs single authenticated requests. It never retries; callers
// decide using domain.IsTransient on the returned *domain.RemoteError.
type Client struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient validates cfg and builds a client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: firecrawl api key is required", domain.ErrInvalidInput)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid firecrawl base url %q", domain.ErrInvalidInput, cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    httpClient,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// resolve turns an API path or an absolute cursor URL into a request URL.
// Absolute URLs must use the configured scheme and host so the API key is
// never sent elsewhere or in plaintext.
func (c *Client) resolve(target string) (string, error) {
	if strings.HasPrefix(target, "/") {
		return c.baseURL.String() + target, nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	if u.Scheme != c.baseURL.Scheme || u.Host != c.baseURL.Host {
		return "", fmt.Errorf("cursor %s://%s does not match %s://%s", u.Scheme, u.Host, c.baseURL.Scheme, c.baseURL.Host)
	}
	return u.String(), nil
}

// doJSON sends one request and returns the response body of a 2xx reply.
func (c *Client) doJSON(ctx context.Context, op, method, target string, payload any) ([]byte, error) {
	endpoint, err := c.resolve(target)
	if err != nil {
		return nil, &domain.RemoteError{Op: op, Message: err.Error()}
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%s: rate limiter: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &domain.RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.RemoteError{Op: op, Err: err}
	}

	c.logger.Debug("firecrawl request", "op", op, "method", method, "status", resp.StatusCode, "bytes", len(data))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.RemoteError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
	if !gjson.ValidBytes(data) {
		return nil, &domain.RemoteError{Op: op, StatusCode: resp.StatusCode, Message: "response is not valid JSON"}
	}
	return data, nil
}

// checkSuccess turns a success=false envelope into a permanent error.
func checkSuccess(op string, data []byte) error {
	res := gjson.GetBytes(data, "success")
	if res.Exists() && !res.Bool() {
		return &domain.RemoteError{Op: op, StatusCode: http.StatusOK, Message: "success=false: " + errorMessage(data)}
	}
	return nil
}

func errorMessage(data []byte) string {
	if msg := gjson.GetBytes(data, "error").String(); msg != "" {
		return msg
	}
	s := strings.TrimSpace(string(data))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}

// errMissingField reports a required response field that was absent.
var errMissingField = errors.New("missing field in response")
