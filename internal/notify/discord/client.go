// Package discord delivers notifications through a Discord-style bot API.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultRateLimit = 5 // requests per second
)

// Config holds chat platform API configuration.
type Config struct {
	BaseURL   string  // API base, e.g. https://discord.com/api/v10
	BotToken  string  // bot credential, required
	RateLimit float64 // requests per second across all senders
	Timeout   time.Duration
}

// Client is the shared HTTP client behind the channel and direct senders.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new chat platform client.
func NewClient(config Config) (*Client, error) {
	if config.BotToken == "" {
		return nil, errors.New("discord client: bot token is required")
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.RateLimit <= 0 {
		config.RateLimit = defaultRateLimit
	}

	slog.Info("discord client configured",
		"base_url", config.BaseURL,
		"rate_limit", config.RateLimit,
	)

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}, nil
}

// SendChannelMessage posts content to a channel.
func (c *Client) SendChannelMessage(ctx context.Context, channelID, content string) error {
	path := fmt.Sprintf("/channels/%s/messages", channelID)
	return c.post(ctx, path, messagePayload{Content: content}, nil)
}

// SendDirectMessage opens (or reuses) the DM channel for a recipient and
// posts content there.
func (c *Client) SendDirectMessage(ctx context.Context, recipientID, content string) error {
	var dm dmChannel
	if err := c.post(ctx, "/users/@me/channels", dmOpenPayload{RecipientID: recipientID}, &dm); err != nil {
		return fmt.Errorf("open dm channel for %s: %w", recipientID, err)
	}
	if dm.ID == "" {
		return &PermanentError{Message: fmt.Sprintf("dm channel for %s has no id", recipientID)}
	}
	return c.SendChannelMessage(ctx, dm.ID, content)
}

type messagePayload struct {
	Content string `json:"content"`
}

type dmOpenPayload struct {
	RecipientID string `json:"recipient_id"`
}

type dmChannel struct {
	ID string `json:"id"`
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &RetryableError{Message: fmt.Sprintf("rate limiter: %v", err)}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bot "+c.config.BotToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RetryableError{Message: fmt.Sprintf("send request: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.handleResponse(resp, path); err != nil {
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) handleResponse(resp *http.Response, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		slog.Debug("discord request ok", "path", path, "status", resp.StatusCode)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &PermanentError{
			Code:    resp.StatusCode,
			Message: "invalid token or missing permission",
		}

	case resp.StatusCode == http.StatusNotFound:
		// Channel or recipient is gone; the destination is stale, not us.
		return &PermanentError{
			Code:    resp.StatusCode,
			Message: "channel or recipient not found",
		}

	case resp.StatusCode == http.StatusBadRequest:
		return &PermanentError{
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("bad request: %s", string(body)),
		}

	case resp.StatusCode == http.StatusTooManyRequests:
		return &RetryableError{
			Code:    resp.StatusCode,
			Message: "rate limited by platform",
		}

	case resp.StatusCode >= 500:
		return &RetryableError{
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("server error: %s", string(body)),
		}

	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}

// PermanentError indicates a delivery failure retrying will not fix.
type PermanentError struct {
	Code    int
	Message string
}

func (e *PermanentError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("discord error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("discord error: %s", e.Message)
}

// IsRetryable reports that the error is not worth retrying.
func (e *PermanentError) IsRetryable() bool { return false }

// RetryableError indicates a temporary delivery failure.
type RetryableError struct {
	Code    int
	Message string
}

func (e *RetryableError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("discord error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("discord error: %s", e.Message)
}

// IsRetryable reports that the error is temporary.
func (e *RetryableError) IsRetryable() bool { return true }
