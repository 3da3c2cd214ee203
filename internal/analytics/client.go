// Package analytics delivers business events to the external events API.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/middleware"
)

// Business event names emitted by the invite flow.
const (
	EventInviteLinkIssued   = "invite_link_issued"
	EventInviteLinkRedeemed = "invite_link_redeemed"
)

// Sink receives named business events for a recipient. Implementations report
// delivery as a boolean: callers latch flags on true and move on on false,
// they never retry here.
type Sink interface {
	Send(ctx context.Context, recipientID, eventName string, payload map[string]any) bool
}

// Client posts events to an HTTP events API.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// ClientConfig configures the analytics client.
type ClientConfig struct {
	URL        string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewClient creates a new analytics events client.
func NewClient(cfg *ClientConfig) *Client {
	if cfg == nil {
		cfg = &ClientConfig{}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	return &Client{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}
}

type eventEnvelope struct {
	RecipientID string         `json:"recipient_id"`
	Event       string         `json:"event"`
	Payload     map[string]any `json:"payload,omitempty"`
	SentAt      time.Time      `json:"sent_at"`
}

// Send delivers one event and reports success. Failures are logged and
// counted, never returned: event delivery is best-effort and must not block
// the request lifecycle.
func (c *Client) Send(ctx context.Context, recipientID, eventName string, payload map[string]any) bool {
	if c.url == "" {
		// Sink not configured; treat as permanently unsent rather than lying.
		return false
	}

	body, err := json.Marshal(eventEnvelope{
		RecipientID: recipientID,
		Event:       eventName,
		Payload:     payload,
		SentAt:      time.Now().UTC(),
	})
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "analytics event marshal failed",
			slog.String("event", eventName), slog.String("error", err.Error()))
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "analytics event delivery failed",
			slog.String("event", eventName), slog.String("error", err.Error()))
		middleware.EventsEmitted.WithLabelValues(eventName, "error").Inc()
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		middleware.Logger.WarnContext(ctx, "analytics event rejected",
			slog.String("event", eventName), slog.Int("status", resp.StatusCode))
		middleware.EventsEmitted.WithLabelValues(eventName, "rejected").Inc()
		return false
	}

	middleware.EventsEmitted.WithLabelValues(eventName, "ok").Inc()
	return true
}
