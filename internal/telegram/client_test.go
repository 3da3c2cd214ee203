package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(&ClientConfig{
		BaseURL:  srv.URL,
		BotToken: "123456:test-token",
		ChatID:   -100987654321,
	})
}

func TestCreateInviteLinkSuccess(t *testing.T) {
	var gotPath string
	var gotPayload map[string]any

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"result": map[string]any{
				"invite_link": "https://t.me/+minted123",
				"creator":     map[string]any{"id": 42},
			},
		})
	})

	link, err := client.CreateInviteLink(context.Background(), "user-1|pay-1|abcd1234|a1")
	require.NoError(t, err)
	assert.Equal(t, "https://t.me/+minted123", link)

	assert.Equal(t, "/bot123456:test-token/createChatInviteLink", gotPath)
	assert.Equal(t, float64(-100987654321), gotPayload["chat_id"])
	assert.Equal(t, "user-1|pay-1|abcd1234|a1", gotPayload["name"])
	// Single-use: the link dies after one join.
	assert.Equal(t, float64(1), gotPayload["member_limit"])
}

func TestCreateInviteLinkTruncatesName(t *testing.T) {
	var gotName string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		gotName, _ = payload["name"].(string)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"invite_link": "https://t.me/+x"},
		})
	})

	_, err := client.CreateInviteLink(context.Background(), strings.Repeat("n", 100))
	require.NoError(t, err)
	assert.Len(t, gotName, InviteLinkNameLimit)
}

func TestCreateInviteLinkRateLimited(t *testing.T) {
	tests := []struct {
		name     string
		body     map[string]any
		status   int
		wantHint time.Duration
	}{
		{
			name:   "429 with retry_after hint",
			status: http.StatusTooManyRequests,
			body: map[string]any{
				"ok":          false,
				"error_code":  429,
				"description": "Too Many Requests: retry after 41",
				"parameters":  map[string]any{"retry_after": 41},
			},
			wantHint: 41 * time.Second,
		},
		{
			name:   "429 without hint",
			status: http.StatusTooManyRequests,
			body: map[string]any{
				"ok":          false,
				"error_code":  429,
				"description": "Too Many Requests",
			},
			wantHint: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(tt.body)
			})

			_, err := client.CreateInviteLink(context.Background(), "label")
			require.Error(t, err)

			var rle *RateLimitedError
			require.ErrorAs(t, err, &rle)
			assert.Equal(t, tt.wantHint, rle.RetryAfter)
		})
	}
}

func TestCreateInviteLinkAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":          false,
			"error_code":  400,
			"description": "Bad Request: not enough rights",
		})
	})

	_, err := client.CreateInviteLink(context.Background(), "label")
	require.Error(t, err)

	var rle *RateLimitedError
	assert.False(t, errors.As(err, &rle))
	assert.Contains(t, err.Error(), "not enough rights")
}

func TestCreateInviteLinkEmptyResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{},
		})
	})

	_, err := client.CreateInviteLink(context.Background(), "label")
	require.Error(t, err)
}

func TestIsPositiveMembership(t *testing.T) {
	assert.True(t, IsPositiveMembership("member"))
	assert.True(t, IsPositiveMembership("administrator"))
	assert.True(t, IsPositiveMembership("creator"))
	assert.False(t, IsPositiveMembership("left"))
	assert.False(t, IsPositiveMembership("kicked"))
	assert.False(t, IsPositiveMembership("restricted"))
	assert.False(t, IsPositiveMembership(""))
}
