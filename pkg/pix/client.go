package pix

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mihaimyh/pixbridge/pkg/billing"
)

const (
	providerName       = "pix"
	defaultBaseURL     = "https://api.abacatepay.com"
	defaultHTTPTimeout = 10 * time.Second
)

// Config holds the configuration for the PIX provider client.
type Config struct {
	// APIKey is the provider bearer token.
	APIKey string

	// BaseURL overrides the provider API base URL. Used by tests.
	BaseURL string

	// HTTPClient is an optional HTTP client. If nil, a default client with a
	// 10s timeout is used.
	HTTPClient *http.Client

	// Logger is used for structured logging. Optional.
	Logger zerolog.Logger

	// Metrics is an optional metrics collector. If nil, metrics are dropped.
	Metrics billing.Metrics
}

// Client talks to the PIX QR-code provider. All payloads are JSON over a
// bearer-token API; a non-2xx response surfaces the provider's error message
// when one is present. No call is retried.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        zerolog.Logger
	metrics    billing.Metrics
}

// NewClient creates a new PIX provider client.
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if strings.HasPrefix(strings.ToLower(apiKey), "bearer ") {
		apiKey = strings.TrimSpace(apiKey[len("bearer "):])
	}
	if apiKey == "" {
		return nil, errors.New("pix API key not configured")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &billing.NoopMetrics{}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		log:        cfg.Logger,
		metrics:    metrics,
	}, nil
}

// envelope is the provider's standard response wrapper.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *string         `json:"error"`
}

// request executes one call and returns the raw data payload. The error
// message from the provider body is forwarded when present.
func (c *Client) request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	start := time.Now()

	var reqBody io.Reader = http.NoBody
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordAPICall(providerName, path, "error")
		c.metrics.RecordAPICallDuration(providerName, path, time.Since(start))
		return nil, fmt.Errorf("pix request failed: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	c.metrics.RecordAPICall(providerName, path, fmt.Sprintf("%d", res.StatusCode))
	c.metrics.RecordAPICallDuration(providerName, path, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		if decodeErr == nil && env.Error != nil && *env.Error != "" {
			return nil, fmt.Errorf("%w: %s", billing.ErrProviderAPIError, *env.Error)
		}
		return nil, fmt.Errorf("%w: status %d, body: %s", billing.ErrProviderAPIError, res.StatusCode, string(raw))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to parse response: %w", decodeErr)
	}
	if env.Error != nil && *env.Error != "" {
		return nil, fmt.Errorf("%w: %s", billing.ErrProviderAPIError, *env.Error)
	}
	return env.Data, nil
}

// CreateCharge issues a new PIX QR code tagged with params.ExternalID.
func (c *Client) CreateCharge(ctx context.Context, params CreateChargeParams) (*Charge, error) {
	expiresIn := params.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}

	payload := map[string]any{
		"amount":      params.Amount,
		"expiresIn":   expiresIn,
		"description": params.Description,
		"customer": map[string]string{
			"name":      params.Customer.Name,
			"cellphone": params.Customer.Cellphone,
			"email":     params.Customer.Email,
			"taxId":     params.Customer.TaxID,
		},
		"metadata": map[string]string{
			"externalId": params.ExternalID,
		},
	}

	data, err := c.request(ctx, http.MethodPost, "/v1/pixQrCode/create", payload)
	if err != nil {
		return nil, err
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse charge: %w", err)
	}

	charge := chargeFromMap(m)
	if charge.ID == "" {
		return nil, fmt.Errorf("%w: response has no charge id", billing.ErrProviderAPIError)
	}
	if charge.ExternalID == "" {
		charge.ExternalID = params.ExternalID
	}

	c.log.Info().
		Str("pix_id", charge.ID).
		Str("invoice_id", params.ExternalID).
		Int64("amount", params.Amount).
		Msg("pix charge created")

	return charge, nil
}

// Charge fetches the current status of one charge by id.
func (c *Client) Charge(ctx context.Context, id string) (*Charge, error) {
	path := "/v1/pixQrCode/check?id=" + url.QueryEscape(id)
	data, err := c.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse charge: %w", err)
	}

	charge := chargeFromMap(m)
	if charge.ID == "" {
		charge.ID = id
	}
	if charge.Status == "" {
		return nil, billing.ErrChargeNotFound
	}
	return charge, nil
}

// ListCharges fetches all charges. Used as a fallback when the direct status
// lookup fails; the provider's check endpoint is eventually consistent.
func (c *Client) ListCharges(ctx context.Context) ([]*Charge, error) {
	data, err := c.request(ctx, http.MethodGet, "/v1/pixQrCode/list", nil)
	if err != nil {
		return nil, err
	}

	var items []map[string]any
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse charge list: %w", err)
	}

	charges := make([]*Charge, 0, len(items))
	for _, m := range items {
		charges = append(charges, chargeFromMap(m))
	}
	return charges, nil
}
