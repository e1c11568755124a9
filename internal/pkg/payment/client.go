package payment

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

	"github.com/catalystschool/checkout/internal/pkg/env"
)

const defaultProviderBaseURL = "https://api.razorpay.com"

// Client talks to the payment provider's order API.
type Client struct {
	KeyID     string
	KeySecret string

	BaseURL string

	HTTPClient *http.Client
}

// CreateOrderInput describes a provider order request. Amounts are in the
// currency's smallest unit (paise for INR).
type CreateOrderInput struct {
	AmountPaise int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Receipt     string            `json:"receipt"`
	Notes       map[string]string `json:"notes,omitempty"`
}

// Order is the provider's view of a created order.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// NewClientFromEnv builds a client from PAYMENT_KEY_ID / PAYMENT_KEY_SECRET.
// Every outbound call carries a bounded timeout; a provider that never
// responds fails the request instead of hanging it.
func NewClientFromEnv() *Client {
	return &Client{
		KeyID:     strings.TrimSpace(env.GetEnv("PAYMENT_KEY_ID", "")),
		KeySecret: strings.TrimSpace(env.GetEnv("PAYMENT_KEY_SECRET", "")),
		BaseURL:   strings.TrimRight(env.GetEnv("PAYMENT_API_BASE_URL", defaultProviderBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// CreateOrder creates a provider order for the validated amount.
func (c *Client) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	if strings.TrimSpace(c.KeyID) == "" || strings.TrimSpace(c.KeySecret) == "" {
		return nil, errors.New("PAYMENT_KEY_ID/PAYMENT_KEY_SECRET are not configured")
	}
	if in.AmountPaise <= 0 {
		return nil, errors.New("order amount must be positive")
	}
	if in.Currency == "" {
		in.Currency = "INR"
	}

	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.KeyID, c.KeySecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider order request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("provider order create returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var order Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("invalid provider order response: %w", err)
	}
	if order.ID == "" {
		return nil, errors.New("provider order response missing id")
	}
	return &order, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}
