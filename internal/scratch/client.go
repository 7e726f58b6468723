// Package scratch provides read-only access to the tracked platform's API.
package scratch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tkazmier/projectwatch/internal/domain"
	"github.com/tkazmier/projectwatch/internal/pkg/ctxlog"
)

const defaultTimeout = 15 * time.Second

// FetchError reports a failed project-list fetch for a subject. The caller
// decides the retry policy; the client never retries on its own.
type FetchError struct {
	Subject string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch projects for %q: %v", e.Subject, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Config holds client configuration.
type Config struct {
	BaseURL string        // API base, e.g. https://api.scratch.mit.edu
	Timeout time.Duration // per-request timeout, default 15s
}

// Client fetches project lists from the upstream platform.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new upstream client.
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	return &Client{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// UserProjects returns the full current list of projects shared by the given
// subject. An empty list means the subject has zero projects, not failure.
// Any non-200 status or transport error returns a *FetchError; a partial
// list is never returned as success. Records missing an id are skipped.
func (c *Client) UserProjects(ctx context.Context, subject string) ([]domain.Project, error) {
	if subject == "" {
		return nil, &FetchError{Subject: subject, Err: fmt.Errorf("empty subject")}
	}

	reqURL := fmt.Sprintf("%s/users/%s/projects/", c.baseURL, url.PathEscape(subject))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &FetchError{Subject: subject, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Subject: subject, Err: fmt.Errorf("send request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &FetchError{
			Subject: subject,
			Err:     fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var records []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, &FetchError{Subject: subject, Err: fmt.Errorf("decode response: %w", err)}
	}

	projects := make([]domain.Project, 0, len(records))
	for _, record := range records {
		var p domain.Project
		if err := json.Unmarshal(record, &p); err != nil {
			ctxlog.FromContext(ctx).Warn("skipping malformed project record",
				"subject", subject,
				"error", err,
			)
			continue
		}
		projects = append(projects, p)
	}

	return projects, nil
}
