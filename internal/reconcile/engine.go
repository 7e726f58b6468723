// Package reconcile implements the periodic change-detection loop: for every
// tracked (destination, subject) pair it fetches the subject's current
// projects, diffs them against the recorded known-item set, notifies for
// additions and forgets removals.
package reconcile

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tkazmier/projectwatch/internal/domain"
	"github.com/tkazmier/projectwatch/internal/subscriptions"
)

// Gateway fetches the current project list for a subject.
type Gateway interface {
	UserProjects(ctx context.Context, subject string) ([]domain.Project, error)
}

// Dispatcher delivers one notification for a newly observed item.
type Dispatcher interface {
	Notify(ctx context.Context, dest domain.Destination, subject string, item domain.Project) error
}

// Config contains engine configuration.
type Config struct {
	// Interval between cycles, measured from the end of one cycle to the
	// start of the next; cycles never overlap.
	Interval time.Duration
	// FetchTimeout bounds a single upstream fetch so one unresponsive
	// subject cannot starve the cycle. Should not exceed Interval.
	FetchTimeout time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Interval:     60 * time.Second,
		FetchTimeout: 15 * time.Second,
	}
}

// CycleStats summarizes one reconciliation cycle.
type CycleStats struct {
	Destinations  int
	Subscriptions int
	FetchFailures int
	Notified      int
	NotifyFailed  int
	Forgotten     int
}

// Engine drives reconciliation. It is the sole mutator of known-item sets;
// within a cycle subscriptions are processed one at a time, so no two
// mutations of the same (destination, subject) pair can race.
type Engine struct {
	config     Config
	repo       subscriptions.Repository
	gateway    Gateway
	dispatcher Dispatcher

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewEngine creates a reconciliation engine.
func NewEngine(config Config, repo subscriptions.Repository, gateway Gateway, dispatcher Dispatcher) *Engine {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = DefaultConfig().FetchTimeout
	}
	return &Engine{
		config:     config,
		repo:       repo,
		gateway:    gateway,
		dispatcher: dispatcher,
		stopCh:     make(chan struct{}),
	}
}

// Start launches the periodic loop in a goroutine.
func (e *Engine) Start(ctx context.Context) {
	slog.Info("starting reconciliation engine",
		"interval", e.config.Interval,
		"fetch_timeout", e.config.FetchTimeout,
	)

	e.wg.Add(1)
	go e.run(ctx)
}

// Stop aborts the loop and waits for the in-flight cycle step to finish.
// A cycle is never interrupted between a dispatch and the matching
// known-item write.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
	slog.Info("reconciliation engine stopped")
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	for {
		e.RunCycle(ctx)

		// The timer is armed only after the cycle completes, so a slow
		// cycle delays the next one instead of overlapping it.
		timer := time.NewTimer(e.config.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-e.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// RunCycle executes one full reconciliation pass. Errors are handled per
// subscription; no failure aborts the rest of the cycle. Exported so tests
// can drive cycles deterministically without real time.
func (e *Engine) RunCycle(ctx context.Context) CycleStats {
	start := time.Now()
	var stats CycleStats

	dests, err := e.repo.ListDestinations(ctx)
	if err != nil {
		// Store unavailable fails this cycle only; the loop keeps going.
		slog.Error("list destinations failed, skipping cycle", "error", err)
		recordCycle(time.Since(start), stats)
		return stats
	}
	stats.Destinations = len(dests)

	for _, dest := range dests {
		if cancelled(ctx, e.stopCh) {
			break
		}

		subs, err := e.repo.ListByDestination(ctx, dest)
		if err != nil {
			slog.Error("list subscriptions failed",
				"destination_kind", dest.Kind,
				"destination_id", dest.ID,
				"error", err,
			)
			continue
		}

		for i := range subs {
			if cancelled(ctx, e.stopCh) {
				break
			}
			stats.Subscriptions++
			e.reconcileSubscription(ctx, &subs[i], &stats)
		}
	}

	recordCycle(time.Since(start), stats)
	slog.Info("reconciliation cycle complete",
		"destinations", stats.Destinations,
		"subscriptions", stats.Subscriptions,
		"fetch_failures", stats.FetchFailures,
		"notified", stats.Notified,
		"notify_failed", stats.NotifyFailed,
		"forgotten", stats.Forgotten,
		"duration", time.Since(start),
	)
	return stats
}

func (e *Engine) reconcileSubscription(ctx context.Context, sub *domain.Subscription, stats *CycleStats) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.config.FetchTimeout)
	items, err := e.gateway.UserProjects(fetchCtx, sub.Subject)
	cancel()
	if err != nil {
		// Skip this subscription for the cycle: no mutation, no
		// notification. The next cycle retries from unchanged state.
		stats.FetchFailures++
		recordFetchFailure()
		slog.Warn("fetch failed, skipping subscription",
			"subject", sub.Subject,
			"destination_kind", sub.Destination.Kind,
			"destination_id", sub.Destination.ID,
			"error", err,
		)
		return
	}

	byID := make(map[string]domain.Project, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	known := make(map[string]struct{}, len(sub.KnownItemIDs))
	for _, id := range sub.KnownItemIDs {
		known[id] = struct{}{}
	}

	// Items that disappeared upstream are forgotten so a reappearance with
	// the same id notifies again.
	var stale []string
	for id := range known {
		if _, ok := byID[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := e.repo.RemoveKnownItems(ctx, sub.Destination, sub.Subject, stale); err != nil {
			slog.Error("remove known items failed",
				"subject", sub.Subject,
				"destination_id", sub.Destination.ID,
				"error", err,
			)
			return
		}
		stats.Forgotten += len(stale)
	}

	var newIDs []string
	for id := range byID {
		if _, ok := known[id]; !ok {
			newIDs = append(newIDs, id)
		}
	}
	sortItemIDs(newIDs)

	for _, id := range newIDs {
		if cancelled(ctx, e.stopCh) {
			return
		}

		// Dispatch first, record after: a failed dispatch leaves the id
		// unknown so the next cycle retries it. A crash in between can
		// duplicate the notification (at-least-once delivery).
		if err := e.dispatcher.Notify(ctx, sub.Destination, sub.Subject, byID[id]); err != nil {
			stats.NotifyFailed++
			recordNotification("failed")
			slog.Error("notification dispatch failed",
				"subject", sub.Subject,
				"destination_kind", sub.Destination.Kind,
				"destination_id", sub.Destination.ID,
				"item_id", id,
				"error", err,
			)
			continue
		}

		if err := e.repo.AddKnownItems(ctx, sub.Destination, sub.Subject, []string{id}); err != nil {
			slog.Error("record known item failed, may re-notify next cycle",
				"subject", sub.Subject,
				"destination_id", sub.Destination.ID,
				"item_id", id,
				"error", err,
			)
		}
		stats.Notified++
		recordNotification("sent")
	}
}

// sortItemIDs orders ids ascending, numerically where both sides are
// numeric. Upstream ids are numbers today, but the ids stay opaque strings.
func sortItemIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		if isDigits(a) && isDigits(b) {
			if len(a) != len(b) {
				return len(a) < len(b)
			}
		}
		return a < b
	})
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func cancelled(ctx context.Context, stopCh <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return true
	case <-stopCh:
		return true
	default:
		return false
	}
}
