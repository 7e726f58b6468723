// Package memory provides an in-memory subscriptions.Repository. It backs
// unit tests and storeless demo runs; semantics mirror the postgres store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tkazmier/projectwatch/internal/domain"
	"github.com/tkazmier/projectwatch/internal/subscriptions"
)

type pairKey struct {
	kind    domain.DestinationKind
	destID  string
	subject string
}

// Store is a mutex-guarded map keyed by (destination, subject).
type Store struct {
	mu   sync.RWMutex
	subs map[pairKey]*domain.Subscription
	now  func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		subs: make(map[pairKey]*domain.Subscription),
		now:  time.Now,
	}
}

func key(dest domain.Destination, subject string) pairKey {
	return pairKey{kind: dest.Kind, destID: dest.ID, subject: subject}
}

// Create persists a new subscription seeded with initialKnownItems.
func (s *Store) Create(_ context.Context, dest domain.Destination, subject string, initialKnownItems []string) (*domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(dest, subject)
	if _, ok := s.subs[k]; ok {
		return nil, subscriptions.ErrAlreadyExists
	}

	now := s.now()
	sub := &domain.Subscription{
		ID:           uuid.NewString(),
		Destination:  dest,
		Subject:      subject,
		KnownItemIDs: dedupe(initialKnownItems),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.subs[k] = sub

	return copySub(sub), nil
}

// Delete removes the matching subscription, reporting whether one existed.
func (s *Store) Delete(_ context.Context, dest domain.Destination, subject string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(dest, subject)
	if _, ok := s.subs[k]; !ok {
		return false, nil
	}
	delete(s.subs, k)
	return true, nil
}

// ListByDestination returns all subscriptions for a destination.
func (s *Store) ListByDestination(_ context.Context, dest domain.Destination) ([]domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Subscription, 0)
	for k, sub := range s.subs {
		if k.kind == dest.Kind && k.destID == dest.ID {
			out = append(out, *copySub(sub))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out, nil
}

// ListDestinations returns the distinct destinations with a subscription.
func (s *Store) ListDestinations(_ context.Context) ([]domain.Destination, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[domain.Destination]struct{})
	out := make([]domain.Destination, 0)
	for _, sub := range s.subs {
		if _, ok := seen[sub.Destination]; ok {
			continue
		}
		seen[sub.Destination] = struct{}{}
		out = append(out, sub.Destination)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// AddKnownItems adds ids to the known set. No-op for a deleted subscription.
func (s *Store) AddKnownItems(_ context.Context, dest domain.Destination, subject string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[key(dest, subject)]
	if !ok {
		return nil
	}

	known := make(map[string]struct{}, len(sub.KnownItemIDs))
	for _, id := range sub.KnownItemIDs {
		known[id] = struct{}{}
	}
	for _, id := range ids {
		if _, exists := known[id]; !exists {
			known[id] = struct{}{}
			sub.KnownItemIDs = append(sub.KnownItemIDs, id)
		}
	}
	sub.UpdatedAt = s.now()
	return nil
}

// RemoveKnownItems removes ids from the known set. Ids not present and
// deleted subscriptions are ignored.
func (s *Store) RemoveKnownItems(_ context.Context, dest domain.Destination, subject string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[key(dest, subject)]
	if !ok {
		return nil
	}

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	kept := sub.KnownItemIDs[:0]
	for _, id := range sub.KnownItemIDs {
		if _, gone := drop[id]; !gone {
			kept = append(kept, id)
		}
	}
	sub.KnownItemIDs = kept
	sub.UpdatedAt = s.now()
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func copySub(sub *domain.Subscription) *domain.Subscription {
	cp := *sub
	cp.KnownItemIDs = append([]string(nil), sub.KnownItemIDs...)
	return &cp
}
