package mainapp

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

	"github.com/catalystschool/checkout/internal/pkg/env"
)

// ErrSchoolNotFound signals that the referenced school does not exist in the
// system of record.
var ErrSchoolNotFound = errors.New("school not found")

// Client talks to the main application, which holds canonical school data
// and receives confirmed subscription state.
type Client struct {
	BaseURL string
	APIKey  string

	HTTPClient *http.Client
}

// School is the subset of the system-of-record school row the checkout
// flow needs.
type School struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Status string `json:"status"`
}

// SyncPayload propagates a locally confirmed subscription to the system of
// record. It carries everything the main application needs to provision.
type SyncPayload struct {
	SubscriptionID  string     `json:"subscription_id"`
	SchoolID        string     `json:"school_id"`
	PlanName        string     `json:"plan_name"`
	StudentCount    int        `json:"student_count"`
	BillingCycle    string     `json:"billing_cycle"`
	Status          string     `json:"status"`
	Amount          float64    `json:"amount"`
	Currency        string     `json:"currency"`
	TrialEndDate    *time.Time `json:"trial_end_date,omitempty"`
	NextBillingDate *time.Time `json:"next_billing_date,omitempty"`
}

// NewClientFromEnv builds a client from MAINAPP_BASE_URL / MAINAPP_API_KEY.
func NewClientFromEnv() *Client {
	return &Client{
		BaseURL: strings.TrimRight(env.GetEnv("MAINAPP_BASE_URL", ""), "/"),
		APIKey:  strings.TrimSpace(env.GetEnv("MAINAPP_API_KEY", "")),
		HTTPClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// GetSchool looks the school up in the system of record.
func (c *Client) GetSchool(ctx context.Context, schoolID string) (*School, error) {
	id := strings.TrimSpace(schoolID)
	if id == "" {
		return nil, errors.New("school id is required")
	}
	if c.BaseURL == "" {
		return nil, errors.New("MAINAPP_BASE_URL is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/internal/schools/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	c.setAuth(req)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("school lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrSchoolNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("school lookup returned status %d", resp.StatusCode)
	}

	var school School
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&school); err != nil {
		return nil, fmt.Errorf("invalid school response: %w", err)
	}
	return &school, nil
}

// SyncSubscription pushes the confirmed subscription to the main
// application. Non-2xx counts as a failure so the caller can queue a retry.
func (c *Client) SyncSubscription(ctx context.Context, payload SyncPayload) error {
	if c.BaseURL == "" {
		return errors.New("MAINAPP_BASE_URL is not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/internal/subscriptions/sync", bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setAuth(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("subscription sync failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("subscription sync returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.APIKey != "" {
		req.Header.Set("X-Internal-Api-Key", c.APIKey)
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 5 * time.Second}
}
