// Package yookassa implements gateway.Gateway against the YooKassa REST
// API v3.
package yookassa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/checkout/gateway"
	"github.com/xraph/checkout/payment"
)

const (
	defaultBaseURL = "https://api.yookassa.ru/v3"
	defaultTimeout = 10 * time.Second
)

// ErrNotConfigured is returned when shop credentials are missing.
var ErrNotConfigured = errors.New("yookassa: shop id and secret key are required")

// compile-time interface check
var _ gateway.Gateway = (*Client)(nil)

// Client talks to YooKassa with basic auth. Every create carries a fresh
// Idempotence-Key.
type Client struct {
	shopID    string
	secretKey string
	baseURL   string
	client    *http.Client
	newKey    func() string
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client.Timeout = d }
}

// New creates a YooKassa client.
func New(shopID, secretKey string, opts ...Option) (*Client, error) {
	if shopID == "" || secretKey == "" {
		return nil, ErrNotConfigured
	}
	c := &Client{
		shopID:    shopID,
		secretKey: secretKey,
		baseURL:   defaultBaseURL,
		client:    &http.Client{Timeout: defaultTimeout},
		newKey:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name implements gateway.Gateway.
func (c *Client) Name() string { return "yookassa" }

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type createPaymentRequest struct {
	Amount       amount            `json:"amount"`
	Capture      bool              `json:"capture"`
	Description  string            `json:"description,omitempty"`
	Confirmation *confirmation     `json:"confirmation,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type paymentResponse struct {
	ID           string         `json:"id"`
	Status       payment.Status `json:"status"`
	Confirmation *confirmation  `json:"confirmation,omitempty"`
}

type apiError struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// CreatePayment implements gateway.Gateway.
func (c *Client) CreatePayment(ctx context.Context, req gateway.CreateRequest) (*gateway.Payment, error) {
	body := createPaymentRequest{
		Amount: amount{
			Value:    req.Amount.FormatMajor(),
			Currency: strings.ToUpper(req.Amount.Currency),
		},
		Capture:     true,
		Description: req.Description,
		Metadata:    map[string]string{"order_id": req.OrderID.String()},
	}
	if req.ReturnURL != "" {
		body.Confirmation = &confirmation{Type: "redirect", ReturnURL: req.ReturnURL}
	}

	var resp paymentResponse
	if err := c.do(ctx, http.MethodPost, "/payments", body, &resp); err != nil {
		return nil, fmt.Errorf("yookassa: create payment for %s: %w", req.OrderID, err)
	}

	p := &gateway.Payment{Ref: resp.ID}
	if resp.Confirmation != nil {
		p.ConfirmationURL = resp.Confirmation.ConfirmationURL
	}
	return p, nil
}

// CheckPayment implements gateway.Gateway.
func (c *Client) CheckPayment(ctx context.Context, ref string) (payment.Status, error) {
	var resp paymentResponse
	if err := c.do(ctx, http.MethodGet, "/payments/"+ref, nil, &resp); err != nil {
		return "", fmt.Errorf("yookassa: check payment %s: %w", ref, err)
	}
	return resp.Status, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.shopID, c.secretKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotence-Key", c.newKey())
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Description != "" {
			return fmt.Errorf("status %d: %s: %s", resp.StatusCode, apiErr.Code, apiErr.Description)
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
