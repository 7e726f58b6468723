//go:build integration

package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkazmier/projectwatch/internal/domain"
	"github.com/tkazmier/projectwatch/internal/reconcile"
	"github.com/tkazmier/projectwatch/internal/scratch"
	subscriptionspostgres "github.com/tkazmier/projectwatch/internal/subscriptions/postgres"
)

// recordingDispatcher captures dispatched notifications instead of
// delivering them.
type recordingDispatcher struct {
	mu   sync.Mutex
	sent []string // "kind/destID/subject/itemID"
}

func (d *recordingDispatcher) Notify(_ context.Context, dest domain.Destination, subject string, item domain.Project) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, string(dest.Kind)+"/"+dest.ID+"/"+subject+"/"+item.ID)
	return nil
}

func (d *recordingDispatcher) snapshot() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.sent...)
}

func newIntegrationEngine(dispatcher reconcile.Dispatcher) *reconcile.Engine {
	repo := subscriptionspostgres.NewRepository(testDB)
	gateway := scratch.NewClient(scratch.Config{
		BaseURL: testUpstream.URL(),
		Timeout: 5 * time.Second,
	})
	return reconcile.NewEngine(reconcile.Config{
		Interval:     time.Hour,
		FetchTimeout: 5 * time.Second,
	}, repo, gateway, dispatcher)
}

func TestReconcile_FullCycle(t *testing.T) {
	ctx := context.Background()
	dispatcher := &recordingDispatcher{}
	engine := newIntegrationEngine(dispatcher)

	testUpstream.Publish("cycle_user", upstreamProject(1, "Game"))
	t.Cleanup(testUpstream.Reset)

	createSubscription(t, "channel", "ch-cycle", "cycle_user")
	dest := domain.ChannelDestination("ch-cycle")

	// First cycle over the seeded snapshot is silent
	engine.RunCycle(ctx)
	assert.Empty(t, dispatcher.snapshot())

	// A new project appears upstream
	testUpstream.Publish("cycle_user",
		upstreamProject(1, "Game"),
		upstreamProject(2, "Sequel"),
	)

	stats := engine.RunCycle(ctx)
	assert.Equal(t, 1, stats.Notified)
	assert.Equal(t, []string{"channel/ch-cycle/cycle_user/2"}, dispatcher.snapshot())
	assert.ElementsMatch(t, []string{"1", "2"}, knownItemIDs(t, dest, "cycle_user"))

	// Repeating the cycle stays silent
	engine.RunCycle(ctx)
	assert.Len(t, dispatcher.snapshot(), 1)
}

func TestReconcile_ForgetAndReappear(t *testing.T) {
	ctx := context.Background()
	dispatcher := &recordingDispatcher{}
	engine := newIntegrationEngine(dispatcher)

	testUpstream.Publish("forget_user",
		upstreamProject(1, "Keep"),
		upstreamProject(2, "Unshared"),
	)
	t.Cleanup(testUpstream.Reset)

	createSubscription(t, "channel", "ch-forget", "forget_user")
	dest := domain.ChannelDestination("ch-forget")

	// Project 2 is unshared upstream; it is forgotten, silently
	testUpstream.Publish("forget_user", upstreamProject(1, "Keep"))
	stats := engine.RunCycle(ctx)
	assert.Equal(t, 1, stats.Forgotten)
	assert.Empty(t, dispatcher.snapshot())
	assert.Equal(t, []string{"1"}, knownItemIDs(t, dest, "forget_user"))

	// Reshared with the same id: counts as new again
	testUpstream.Publish("forget_user",
		upstreamProject(1, "Keep"),
		upstreamProject(2, "Reshared"),
	)
	stats = engine.RunCycle(ctx)
	assert.Equal(t, 1, stats.Notified)
	assert.Equal(t, []string{"channel/ch-forget/forget_user/2"}, dispatcher.snapshot())
}

func TestReconcile_FetchFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	dispatcher := &recordingDispatcher{}
	engine := newIntegrationEngine(dispatcher)

	testUpstream.Publish("flaky_user", upstreamProject(1, "Game"))
	testUpstream.Publish("steady_user", upstreamProject(10, "Steady"))
	t.Cleanup(testUpstream.Reset)

	createSubscription(t, "channel", "ch-flaky", "flaky_user")
	createSubscription(t, "channel", "ch-steady", "steady_user")

	testUpstream.Fail("flaky_user", true)
	testUpstream.Publish("steady_user",
		upstreamProject(10, "Steady"),
		upstreamProject(11, "Fresh"),
	)

	stats := engine.RunCycle(ctx)
	require.GreaterOrEqual(t, stats.FetchFailures, 1)
	assert.Contains(t, dispatcher.snapshot(), "channel/ch-steady/steady_user/11",
		"one unreachable subject must not block the rest")
	assert.Equal(t, []string{"1"},
		knownItemIDs(t, domain.ChannelDestination("ch-flaky"), "flaky_user"))

	// Recovery: a project added while unreachable still notifies
	testUpstream.Fail("flaky_user", false)
	testUpstream.Publish("flaky_user",
		upstreamProject(1, "Game"),
		upstreamProject(2, "Missed"),
	)

	engine.RunCycle(ctx)
	assert.Contains(t, dispatcher.snapshot(), "channel/ch-flaky/flaky_user/2")
}

func TestReconcile_UnsubscribedPairNotProcessed(t *testing.T) {
	ctx := context.Background()
	dispatcher := &recordingDispatcher{}
	engine := newIntegrationEngine(dispatcher)

	testUpstream.Publish("gone_user", upstreamProject(1, "Game"))
	t.Cleanup(testUpstream.Reset)

	resp, err := testClient.POST("/api/v1/subscriptions",
		subscriptionPayload("channel", "ch-gone", "gone_user"))
	require.NoError(t, err)
	_ = resp.Body.Close()

	resp, err = testClient.DELETE("/api/v1/subscriptions",
		subscriptionPayload("channel", "ch-gone", "gone_user"))
	require.NoError(t, err)
	_ = resp.Body.Close()

	testUpstream.Publish("gone_user",
		upstreamProject(1, "Game"),
		upstreamProject(2, "After unsubscribe"),
	)

	engine.RunCycle(ctx)
	for _, entry := range dispatcher.snapshot() {
		assert.NotContains(t, entry, "ch-gone")
	}
}
