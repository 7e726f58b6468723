//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tkazmier/projectwatch/internal/domain"
	"github.com/tkazmier/projectwatch/internal/testutil"
)

// fakeUpstream mimics the platform's read API: GET /users/{name}/projects/
// returns the projects published for that user. Users can be toggled to fail.
type fakeUpstream struct {
	mu       sync.Mutex
	projects map[string][]map[string]interface{}
	failing  map[string]bool
	server   *httptest.Server
}

func newFakeUpstream() *fakeUpstream {
	u := &fakeUpstream{
		projects: make(map[string][]map[string]interface{}),
		failing:  make(map[string]bool),
	}
	u.server = httptest.NewServer(http.HandlerFunc(u.handle))
	return u
}

func (u *fakeUpstream) URL() string { return u.server.URL }

func (u *fakeUpstream) Close() { u.server.Close() }

func (u *fakeUpstream) handle(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[0] != "users" || parts[2] != "projects" {
		http.NotFound(w, r)
		return
	}
	user := parts[1]

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.failing[user] {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	list := u.projects[user]
	if list == nil {
		list = []map[string]interface{}{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

// Publish replaces the user's project list.
func (u *fakeUpstream) Publish(user string, projects ...map[string]interface{}) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.projects[user] = projects
}

// Fail toggles upstream failure for a user.
func (u *fakeUpstream) Fail(user string, failing bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failing[user] = failing
}

// Reset clears all published projects and failure toggles.
func (u *fakeUpstream) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.projects = make(map[string][]map[string]interface{})
	u.failing = make(map[string]bool)
}

func upstreamProject(id int, title string) map[string]interface{} {
	return map[string]interface{}{"id": id, "title": title}
}

func subscriptionPayload(kind, destID, subject string) map[string]string {
	return map[string]string{
		"destination_kind": kind,
		"destination_id":   destID,
		"subject":          subject,
	}
}

// createSubscription subscribes via the API and registers cleanup.
func createSubscription(t *testing.T, kind, destID, subject string) {
	t.Helper()

	resp, err := testClient.POST("/api/v1/subscriptions", subscriptionPayload(kind, destID, subject))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	t.Cleanup(func() {
		resp, err := testClient.DELETE("/api/v1/subscriptions", subscriptionPayload(kind, destID, subject))
		if err != nil {
			t.Logf("cleanup warning (%s %s %s): %v", kind, destID, subject, err)
			return
		}
		_ = resp.Body.Close()
	})
}

// listSubjects fetches the tracked subjects for a destination via the API.
func listSubjects(t *testing.T, kind, destID string) []string {
	t.Helper()

	resp, err := testClient.GET(fmt.Sprintf(
		"/api/v1/subscriptions?destination_kind=%s&destination_id=%s", kind, destID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Subjects []string `json:"subjects"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.Subjects
}

// knownItemIDs reads the stored known-item set straight from the database.
func knownItemIDs(t *testing.T, dest domain.Destination, subject string) []string {
	t.Helper()

	var ids []string
	err := testDB.QueryRow(context.Background(),
		`SELECT known_item_ids FROM subscriptions
		 WHERE destination_kind = $1 AND destination_id = $2 AND subject = $3`,
		string(dest.Kind), dest.ID, subject,
	).Scan(&ids)
	require.NoError(t, err)
	return ids
}
