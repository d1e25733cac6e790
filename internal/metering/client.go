// Package metering reports billable usage to an external metering API.
package metering

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Feature identifiers reported to the metering API.
const (
	FeatureMessages = "messages"
)

// Tracker records usage. Implementations are best-effort from the caller's
// point of view: a failed Track never fails the user-facing operation.
type Tracker interface {
	Track(ctx context.Context, customerID, feature string, value float64) error
}

// Client talks to the metering API. A nil *Client is valid and disabled.
type Client struct {
	httpClient *resty.Client
}

type trackRequest struct {
	CustomerID string  `json:"customer_id"`
	FeatureID  string  `json:"feature_id"`
	Value      float64 `json:"value"`
}

// NewClient returns nil when baseURL is empty, which disables tracking.
func NewClient(baseURL, apiKey string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil
	}
	hc := resty.New().
		SetBaseURL(baseURL).
		SetHeader("User-Agent", "chat-metering/1.0").
		SetTimeout(5 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond)
	if apiKey != "" {
		hc.SetAuthToken(apiKey)
	}
	return &Client{httpClient: hc}
}

// IsEnabled reports whether usage is actually sent anywhere.
func (c *Client) IsEnabled() bool { return c != nil && c.httpClient != nil }

// Track implements Tracker.
func (c *Client) Track(ctx context.Context, customerID, feature string, value float64) error {
	if !c.IsEnabled() || customerID == "" {
		return nil
	}
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(trackRequest{CustomerID: customerID, FeatureID: feature, Value: value}).
		Post("/track")
	if err != nil {
		return fmt.Errorf("metering request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("metering error (%d): %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// CustomerID derives the billing customer from an identity provider token
// identifier of the form "issuer|provider|subject". Identifiers without that
// shape are used whole.
func CustomerID(tokenIdentifier string) string {
	parts := strings.Split(tokenIdentifier, "|")
	if len(parts) >= 3 && parts[2] != "" {
		return parts[2]
	}
	return tokenIdentifier
}
