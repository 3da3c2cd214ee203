// Package telegram implements the Bot API client used to mint invite links.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// InviteLinkNameLimit is the Bot API's maximum length for an invite link name.
const InviteLinkNameLimit = 32

// DefaultAPIBaseURL is the public Bot API endpoint.
const DefaultAPIBaseURL = "https://api.telegram.org"

// RateLimitedError reports Bot API backpressure together with the server's
// wait hint. RetryAfter is zero when the response carried no hint.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("telegram: rate limited, retry after %s", e.RetryAfter)
}

// Issuer mints single-use invite links for the community chat.
type Issuer interface {
	CreateInviteLink(ctx context.Context, name string) (string, error)
}

// Client is an HTTP Bot API client scoped to one bot and one community chat.
type Client struct {
	baseURL    string
	token      string
	chatID     int64
	httpClient *http.Client
}

// ClientConfig configures the Bot API client.
type ClientConfig struct {
	// BaseURL overrides the Bot API endpoint (optional, used by tests and
	// self-hosted Bot API servers)
	BaseURL string

	// BotToken authenticates the bot
	BotToken string

	// ChatID is the paid community chat links are minted for
	ChatID int64

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// Timeout for requests (optional, defaults to 30s)
	Timeout time.Duration
}

// NewClient creates a new Bot API client.
func NewClient(cfg *ClientConfig) *Client {
	if cfg == nil {
		cfg = &ClientConfig{}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	return &Client{
		baseURL:    baseURL,
		token:      cfg.BotToken,
		chatID:     cfg.ChatID,
		httpClient: httpClient,
	}
}

type createInviteLinkRequest struct {
	ChatID      int64  `json:"chat_id"`
	Name        string `json:"name,omitempty"`
	MemberLimit int    `json:"member_limit"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
}

type chatInviteLink struct {
	InviteLink string `json:"invite_link"`
}

// CreateInviteLink mints a fresh invite link limited to a single member.
// The name labels the link in chat admin tooling; it is truncated to the
// API's limit. A 429 is returned as *RateLimitedError.
func (c *Client) CreateInviteLink(ctx context.Context, name string) (string, error) {
	if len(name) > InviteLinkNameLimit {
		name = name[:InviteLinkNameLimit]
	}

	payload := createInviteLinkRequest{
		ChatID:      c.chatID,
		Name:        name,
		MemberLimit: 1,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/createChatInviteLink", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("telegram request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}

	if !apiResp.OK {
		if resp.StatusCode == http.StatusTooManyRequests || apiResp.ErrorCode == http.StatusTooManyRequests {
			rle := &RateLimitedError{}
			if apiResp.Parameters != nil && apiResp.Parameters.RetryAfter > 0 {
				rle.RetryAfter = time.Duration(apiResp.Parameters.RetryAfter) * time.Second
			}
			return "", rle
		}
		return "", fmt.Errorf("telegram error %d: %s", apiResp.ErrorCode, apiResp.Description)
	}

	var link chatInviteLink
	if err := json.Unmarshal(apiResp.Result, &link); err != nil {
		return "", fmt.Errorf("failed to decode invite link result: %w", err)
	}
	if link.InviteLink == "" {
		return "", fmt.Errorf("telegram returned an empty invite link")
	}

	return link.InviteLink, nil
}
