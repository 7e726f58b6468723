package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:   baseURL,
		BotToken:  "test-token",
		RateLimit: 1000, // effectively unlimited in tests
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "http://localhost"})
	assert.Error(t, err)
}

func TestClient_SendChannelMessage(t *testing.T) {
	var gotPath, gotAuth string
	var gotPayload map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id": "msg-1"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	err := client.SendChannelMessage(context.Background(), "100", "hello")
	require.NoError(t, err)

	assert.Equal(t, "/channels/100/messages", gotPath)
	assert.Equal(t, "Bot test-token", gotAuth)
	assert.Equal(t, map[string]string{"content": "hello"}, gotPayload)
}

func TestClient_SendDirectMessage(t *testing.T) {
	var paths []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)

		switch r.URL.Path {
		case "/users/@me/channels":
			var payload map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "42", payload["recipient_id"])
			_, _ = w.Write([]byte(`{"id": "dm-900"}`))
		case "/channels/dm-900/messages":
			_, _ = w.Write([]byte(`{"id": "msg-1"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	err := client.SendDirectMessage(context.Background(), "42", "hello")
	require.NoError(t, err)

	assert.Equal(t, []string{"/users/@me/channels", "/channels/dm-900/messages"}, paths)
}

func TestClient_SendDirectMessage_NoDMChannel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	err := client.SendDirectMessage(context.Background(), "42", "hello")

	var permErr *PermanentError
	assert.ErrorAs(t, err, &permErr)
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, false},
		{"forbidden", http.StatusForbidden, false},
		{"not found", http.StatusNotFound, false},
		{"bad request", http.StatusBadRequest, false},
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"bad gateway", http.StatusBadGateway, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)

			err := client.SendChannelMessage(context.Background(), "100", "hello")
			require.Error(t, err)

			if tt.retryable {
				var retryErr *RetryableError
				require.ErrorAs(t, err, &retryErr)
				assert.True(t, retryErr.IsRetryable())
				assert.Equal(t, tt.status, retryErr.Code)
			} else {
				var permErr *PermanentError
				require.ErrorAs(t, err, &permErr)
				assert.False(t, permErr.IsRetryable())
				assert.Equal(t, tt.status, permErr.Code)
			}
		})
	}
}

func TestClient_TransportErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := newTestClient(t, server.URL)

	err := client.SendChannelMessage(context.Background(), "100", "hello")

	var retryErr *RetryableError
	assert.ErrorAs(t, err, &retryErr)
}
