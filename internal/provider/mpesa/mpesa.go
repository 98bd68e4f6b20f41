// internal/provider/mpesa/mpesa.go
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Doc-Scripter/HelpingHand/config"
	"github.com/Doc-Scripter/HelpingHand/pkg/retry"
)

const (
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"
	oauthPath    = "/oauth/v1/generate?grant_type=client_credentials"

	timestampLayout = "20060102150405"

	// maxResponseBody caps how much of a provider response is read.
	maxResponseBody = 1 << 20
)

// Client talks to the Daraja STK push and query APIs.
type Client struct {
	config     config.MpesaConfig
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	queryRetry retry.Policy
	logger     *zap.Logger
	now        func() time.Time
}

type Option func(*Client)

// WithHTTPClient replaces the default http client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenSource replaces the OAuth authenticator.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithClock sets the clock used for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithQueryRetry overrides the status query retry policy.
func WithQueryRetry(p retry.Policy) Option {
	return func(c *Client) { c.queryRetry = p }
}

func NewClient(cfg config.MpesaConfig, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		panic("mpesa: nil logger")
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		config:     cfg,
		baseURL:    cfg.ResolveBaseURL(),
		httpClient: &http.Client{Timeout: timeout},
		queryRetry: retry.Policy{
			MaxAttempts: cfg.QueryMaxAttempts,
			Delay:       cfg.QueryRetryDelay,
			Retryable:   retry.IsTransient,
		},
		logger: logger.With(zap.String("component", "mpesa_client")),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokens == nil {
		c.tokens = NewAuthenticator(c.baseURL, cfg.ConsumerKey, cfg.ConsumerSecret, c.httpClient)
	}

	return c
}

// password is base64(shortcode + passkey + timestamp).
func (c *Client) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(
		c.config.ShortCode + c.config.Passkey + timestamp,
	))
}

func (c *Client) timestamp() string {
	return c.now().Format(timestampLayout)
}

// apiResponse is a raw provider answer. Interpretation is left to the caller
// because the STK and query endpoints read error bodies differently.
type apiResponse struct {
	StatusCode int
	Body       []byte
}

func (r apiResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// makeRequest POSTs payload as JSON with a bearer token. Only transport and
// encoding failures are returned as errors.
func (c *Client) makeRequest(ctx context.Context, path, token string, payload interface{}) (apiResponse, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return apiResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return apiResponse{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apiResponse{}, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return apiResponse{}, fmt.Errorf("failed to read response: %w", err)
	}

	return apiResponse{StatusCode: resp.StatusCode, Body: body}, nil
}
